package memory

import (
	"context"
	"sync"
	"time"

	"github.com/riskibarqy/odds-grading/internal/domain/capper"
	"github.com/riskibarqy/odds-grading/internal/domain/pick"
)

// CapperRepository shares the pick store so settlement and the stats
// update happen under one critical section.
type CapperRepository struct {
	mu    sync.Mutex
	picks *PickRepository
	stats map[string]capper.Stats
	now   func() time.Time
}

func NewCapperRepository(picks *PickRepository) *CapperRepository {
	return &CapperRepository{
		picks: picks,
		stats: make(map[string]capper.Stats),
		now:   time.Now,
	}
}

func (r *CapperRepository) Get(_ context.Context, capperID string) (capper.Stats, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.stats[capperID]
	return item, ok, nil
}

func (r *CapperRepository) SettleAndApply(_ context.Context, capperID string, settlement pick.Settlement) (bool, capper.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.picks.mu.Lock()
	applied, err := r.picks.settleLocked(settlement, capperID)
	r.picks.mu.Unlock()
	if err != nil {
		return false, capper.Stats{}, err
	}

	current, ok := r.stats[capperID]
	if !ok {
		current = capper.NewStats(capperID)
	}
	if !applied {
		return false, current, nil
	}

	next := current.Apply(settlement.Status, settlement.ProfitLoss)
	next.UpdatedAt = r.now().UTC()
	r.stats[capperID] = next
	return true, next, nil
}

func (r *CapperRepository) Replace(_ context.Context, stats capper.Stats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stats.UpdatedAt.IsZero() {
		stats.UpdatedAt = r.now().UTC()
	}
	r.stats[stats.CapperID] = stats
	return nil
}
