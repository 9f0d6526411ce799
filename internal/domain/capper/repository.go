package capper

import (
	"context"

	"github.com/riskibarqy/odds-grading/internal/domain/pick"
)

type Repository interface {
	Get(ctx context.Context, capperID string) (Stats, bool, error)
	// SettleAndApply settles the pick and folds the outcome into the capper's
	// stats in one transaction. applied is false when the pick was already
	// settled; stats are then left unchanged.
	SettleAndApply(ctx context.Context, capperID string, settlement pick.Settlement) (applied bool, stats Stats, err error)
	Replace(ctx context.Context, stats Stats) error
}
