package pick

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Repository interface {
	// ListPendingConcluded returns pending picks whose game started at or
	// before now, oldest game first.
	ListPendingConcluded(ctx context.Context, now time.Time, limit int) ([]Pick, error)
	GetByID(ctx context.Context, pickID string) (Pick, bool, error)
	// Settle moves a pending pick to its outcome. Returns false when the pick
	// is no longer pending.
	Settle(ctx context.Context, settlement Settlement) (bool, error)
	SetCLV(ctx context.Context, pickID string, clv decimal.Decimal) error
	ListSettledWithoutCLV(ctx context.Context, limit int) ([]Pick, error)
	ListSettledByCapper(ctx context.Context, capperID string) ([]Pick, error)
}
