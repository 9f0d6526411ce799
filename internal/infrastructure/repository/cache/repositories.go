package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	basecache "github.com/riskibarqy/odds-grading/internal/platform/cache"
)

// uncachedClosing carries rows that were loaded but must not be kept.
type uncachedClosing struct {
	items []oddssnapshot.Snapshot
}

func (e *uncachedClosing) Error() string {
	return "closing snapshots not cacheable"
}

// OddsSnapshotRepository caches closing rows per game. Games only gain
// closing rows after kickoff and then stop changing. When a consensus
// provider is configured, a result is kept only once that provider's closing
// row is present, since CLV selection cannot change after that. Without one,
// another process marking a new provider closed is seen after at most the
// cache TTL. Empty results are never cached.
type OddsSnapshotRepository struct {
	next      oddssnapshot.Repository
	cache     *basecache.Store[[]oddssnapshot.Snapshot]
	consensus string
}

func NewOddsSnapshotRepository(next oddssnapshot.Repository, cache *basecache.Store[[]oddssnapshot.Snapshot], consensusProvider string) *OddsSnapshotRepository {
	return &OddsSnapshotRepository{next: next, cache: cache, consensus: strings.TrimSpace(consensusProvider)}
}

func (r *OddsSnapshotRepository) ClosingFor(ctx context.Context, gameID string) ([]oddssnapshot.Snapshot, error) {
	items, err := r.cache.GetOrLoad(ctx, closingKey(gameID), func(ctx context.Context) ([]oddssnapshot.Snapshot, error) {
		items, err := r.next.ClosingFor(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if !r.settled(items) {
			return nil, &uncachedClosing{items: items}
		}
		return append([]oddssnapshot.Snapshot(nil), items...), nil
	})
	var uncached *uncachedClosing
	if errors.As(err, &uncached) {
		return append([]oddssnapshot.Snapshot{}, uncached.items...), nil
	}
	if err != nil {
		return nil, err
	}
	return append([]oddssnapshot.Snapshot(nil), items...), nil
}

func (r *OddsSnapshotRepository) settled(items []oddssnapshot.Snapshot) bool {
	if len(items) == 0 {
		return false
	}
	if r.consensus == "" {
		return true
	}
	for _, item := range items {
		if item.Provider == r.consensus {
			return true
		}
	}
	return false
}

func (r *OddsSnapshotRepository) MarkClosing(ctx context.Context, key oddssnapshot.Key) (bool, error) {
	ok, err := r.next.MarkClosing(ctx, key)
	r.cache.Delete(ctx, closingKey(key.GameID))
	return ok, err
}

func (r *OddsSnapshotRepository) AppendBatch(ctx context.Context, items []oddssnapshot.Snapshot) (oddssnapshot.AppendResult, error) {
	return r.next.AppendBatch(ctx, items)
}

func (r *OddsSnapshotRepository) ExistsOpening(ctx context.Context, key oddssnapshot.Key) (bool, error) {
	return r.next.ExistsOpening(ctx, key)
}

func (r *OddsSnapshotRepository) ExistingOpenings(ctx context.Context, keys []oddssnapshot.Key) (map[oddssnapshot.Key]bool, error) {
	return r.next.ExistingOpenings(ctx, keys)
}

func (r *OddsSnapshotRepository) LatestFor(ctx context.Context, key oddssnapshot.Key) (oddssnapshot.Snapshot, bool, error) {
	return r.next.LatestFor(ctx, key)
}

func (r *OddsSnapshotRepository) ListStartedWithoutClosing(ctx context.Context, startedBefore time.Time, limit int) ([]oddssnapshot.Key, error) {
	return r.next.ListStartedWithoutClosing(ctx, startedBefore, limit)
}

func closingKey(gameID string) string {
	return "closing:" + gameID
}
