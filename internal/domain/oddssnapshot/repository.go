package oddssnapshot

import (
	"context"
	"time"
)

type Repository interface {
	// AppendBatch inserts snapshots idempotently on (game_id, provider,
	// captured_at) and assigns is_opening atomically: exactly one row per
	// (game_id, provider) ever carries it, regardless of concurrent writers.
	AppendBatch(ctx context.Context, items []Snapshot) (AppendResult, error)
	ExistsOpening(ctx context.Context, key Key) (bool, error)
	ExistingOpenings(ctx context.Context, keys []Key) (map[Key]bool, error)
	LatestFor(ctx context.Context, key Key) (Snapshot, bool, error)
	// MarkClosing flags the latest snapshot of the pair as closing and clears
	// the flag on any earlier row. Returns false when the pair has no rows.
	MarkClosing(ctx context.Context, key Key) (bool, error)
	ClosingFor(ctx context.Context, gameID string) ([]Snapshot, error)
	ListStartedWithoutClosing(ctx context.Context, startedBefore time.Time, limit int) ([]Key, error)
}
