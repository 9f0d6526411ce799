package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	"github.com/shopspring/decimal"
)

// OddsSnapshotRepository keeps each (game, provider) history ordered by
// capture time. One lock guards every write, which gives the same
// single-opening guarantee the SQL partial index does.
type OddsSnapshotRepository struct {
	mu      sync.RWMutex
	history map[oddssnapshot.Key][]oddssnapshot.Snapshot
}

func NewOddsSnapshotRepository() *OddsSnapshotRepository {
	return &OddsSnapshotRepository{history: make(map[oddssnapshot.Key][]oddssnapshot.Snapshot)}
}

func (r *OddsSnapshotRepository) AppendBatch(_ context.Context, items []oddssnapshot.Snapshot) (oddssnapshot.AppendResult, error) {
	for _, item := range items {
		if err := validateSnapshot(item); err != nil {
			return oddssnapshot.AppendResult{}, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var result oddssnapshot.AppendResult
	for _, item := range items {
		key := item.Key()
		rows := r.history[key]

		idx := sort.Search(len(rows), func(i int) bool {
			return !rows[i].CapturedAt.Before(item.CapturedAt)
		})
		if idx < len(rows) && rows[idx].CapturedAt.Equal(item.CapturedAt) {
			result.Duplicates++
			continue
		}

		row := cloneSnapshot(item)
		row.IsOpening = len(rows) == 0
		row.IsClosing = false

		rows = append(rows, oddssnapshot.Snapshot{})
		copy(rows[idx+1:], rows[idx:])
		rows[idx] = row
		r.history[key] = rows

		result.Inserted++
		if row.IsOpening {
			result.Openings++
		}
	}
	return result, nil
}

func (r *OddsSnapshotRepository) ExistsOpening(_ context.Context, key oddssnapshot.Key) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.history[key]) > 0, nil
}

func (r *OddsSnapshotRepository) ExistingOpenings(_ context.Context, keys []oddssnapshot.Key) (map[oddssnapshot.Key]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[oddssnapshot.Key]bool, len(keys))
	for _, key := range keys {
		if len(r.history[key]) > 0 {
			out[key] = true
		}
	}
	return out, nil
}

func (r *OddsSnapshotRepository) LatestFor(_ context.Context, key oddssnapshot.Key) (oddssnapshot.Snapshot, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.history[key]
	if len(rows) == 0 {
		return oddssnapshot.Snapshot{}, false, nil
	}
	return cloneSnapshot(rows[len(rows)-1]), true, nil
}

func (r *OddsSnapshotRepository) MarkClosing(_ context.Context, key oddssnapshot.Key) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.history[key]
	if len(rows) == 0 {
		return false, nil
	}
	for i := range rows {
		rows[i].IsClosing = false
	}
	rows[len(rows)-1].IsClosing = true
	return true, nil
}

func (r *OddsSnapshotRepository) ClosingFor(_ context.Context, gameID string) ([]oddssnapshot.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]oddssnapshot.Snapshot, 0, 4)
	for key, rows := range r.history {
		if key.GameID != gameID {
			continue
		}
		for _, row := range rows {
			if row.IsClosing {
				out = append(out, cloneSnapshot(row))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Provider < out[j].Provider
	})
	return out, nil
}

func (r *OddsSnapshotRepository) ListStartedWithoutClosing(_ context.Context, startedBefore time.Time, limit int) ([]oddssnapshot.Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]oddssnapshot.Key, 0)
	for key, rows := range r.history {
		if len(rows) == 0 {
			continue
		}
		if rows[len(rows)-1].ScheduledAt.After(startedBefore) {
			continue
		}
		closed := false
		for _, row := range rows {
			if row.IsClosing {
				closed = true
				break
			}
		}
		if !closed {
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GameID != out[j].GameID {
			return out[i].GameID < out[j].GameID
		}
		return out[i].Provider < out[j].Provider
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// History returns every stored row of the pair, oldest first.
func (r *OddsSnapshotRepository) History(key oddssnapshot.Key) []oddssnapshot.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.history[key]
	out := make([]oddssnapshot.Snapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, cloneSnapshot(row))
	}
	return out
}

func validateSnapshot(item oddssnapshot.Snapshot) error {
	switch {
	case strings.TrimSpace(item.GameID) == "":
		return fmt.Errorf("snapshot game id is required")
	case strings.TrimSpace(item.Provider) == "":
		return fmt.Errorf("snapshot provider is required game=%s", item.GameID)
	case item.CapturedAt.IsZero():
		return fmt.Errorf("snapshot captured_at is required game=%s provider=%s", item.GameID, item.Provider)
	}
	return nil
}

func cloneSnapshot(item oddssnapshot.Snapshot) oddssnapshot.Snapshot {
	copied := item
	copied.Spread = cloneDecimal(item.Spread)
	copied.Total = cloneDecimal(item.Total)
	copied.HomeMoneyline = cloneInt(item.HomeMoneyline)
	copied.AwayMoneyline = cloneInt(item.AwayMoneyline)
	return copied
}

func cloneDecimal(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
