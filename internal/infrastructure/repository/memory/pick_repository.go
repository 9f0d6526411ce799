package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/shopspring/decimal"
)

type PickRepository struct {
	mu    sync.RWMutex
	items map[string]pick.Pick
}

func NewPickRepository(items ...pick.Pick) *PickRepository {
	repo := &PickRepository{items: make(map[string]pick.Pick, len(items))}
	for _, item := range items {
		repo.items[item.ID] = clonePick(item)
	}
	return repo
}

// Insert stores a new pick. Pick entry is owned elsewhere; this exists for
// seeding local runs and tests.
func (r *PickRepository) Insert(_ context.Context, item pick.Pick) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ID]; exists {
		return fmt.Errorf("pick %s already exists", item.ID)
	}
	if item.Status == "" {
		item.Status = pick.StatusPending
	}
	r.items[item.ID] = clonePick(item)
	return nil
}

func (r *PickRepository) ListPendingConcluded(_ context.Context, now time.Time, limit int) ([]pick.Pick, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]pick.Pick, 0)
	for _, item := range r.items {
		if item.Status != pick.StatusPending || item.GameStartsAt.After(now) {
			continue
		}
		out = append(out, clonePick(item))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GameStartsAt.Equal(out[j].GameStartsAt) {
			return out[i].GameStartsAt.Before(out[j].GameStartsAt)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *PickRepository) GetByID(_ context.Context, pickID string) (pick.Pick, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[pickID]
	if !ok {
		return pick.Pick{}, false, nil
	}
	return clonePick(item), true, nil
}

func (r *PickRepository) Settle(_ context.Context, settlement pick.Settlement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.settleLocked(settlement, "")
}

// settleLocked is the compare-and-set: only a pending pick moves. capperID,
// when set, must match the pick owner.
func (r *PickRepository) settleLocked(settlement pick.Settlement, capperID string) (bool, error) {
	if !settlement.Status.IsSettled() {
		return false, fmt.Errorf("%w: got %q", pick.ErrInvalidStatus, settlement.Status)
	}
	item, ok := r.items[settlement.PickID]
	if !ok {
		return false, fmt.Errorf("%w: %s", pick.ErrNotFound, settlement.PickID)
	}
	if capperID != "" && item.CapperID != capperID {
		return false, fmt.Errorf("%w: %s for capper %s", pick.ErrNotFound, settlement.PickID, capperID)
	}
	if item.Status != pick.StatusPending {
		return false, nil
	}

	settledAt := settlement.SettledAt
	pl := settlement.ProfitLoss
	item.Status = settlement.Status
	item.SettledAt = &settledAt
	item.ProfitLoss = &pl
	item.CLV = cloneDecimal(settlement.CLV)
	r.items[item.ID] = item
	return true, nil
}

func (r *PickRepository) SetCLV(_ context.Context, pickID string, clv decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[pickID]
	if !ok {
		return fmt.Errorf("%w: %s", pick.ErrNotFound, pickID)
	}
	if !item.Status.IsSettled() {
		return fmt.Errorf("%w: %s", pick.ErrNotSettled, pickID)
	}
	item.CLV = &clv
	r.items[pickID] = item
	return nil
}

func (r *PickRepository) ListSettledWithoutCLV(_ context.Context, limit int) ([]pick.Pick, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]pick.Pick, 0)
	for _, item := range r.items {
		if item.Status.IsSettled() && item.CLV == nil {
			out = append(out, clonePick(item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GameStartsAt.Equal(out[j].GameStartsAt) {
			return out[i].GameStartsAt.Before(out[j].GameStartsAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *PickRepository) ListSettledByCapper(_ context.Context, capperID string) ([]pick.Pick, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]pick.Pick, 0)
	for _, item := range r.items {
		if item.CapperID == capperID && item.Status.IsSettled() {
			out = append(out, clonePick(item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GameStartsAt.Equal(out[j].GameStartsAt) {
			return out[i].GameStartsAt.Before(out[j].GameStartsAt)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func clonePick(item pick.Pick) pick.Pick {
	copied := item
	copied.Line = cloneDecimal(item.Line)
	copied.ProfitLoss = cloneDecimal(item.ProfitLoss)
	copied.CLV = cloneDecimal(item.CLV)
	copied.SettledAt = cloneTime(item.SettledAt)
	return copied
}
