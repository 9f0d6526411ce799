package jobscheduler

import "context"

type Repository interface {
	UpsertEvent(ctx context.Context, event DispatchEvent) error
	// GetByDispatchID returns ErrNotFound for unknown ids.
	GetByDispatchID(ctx context.Context, dispatchID string) (DispatchRecord, error)
}
