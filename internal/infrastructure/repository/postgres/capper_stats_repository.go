package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/odds-grading/internal/domain/capper"
	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	qb "github.com/riskibarqy/odds-grading/internal/platform/querybuilder"
)

type CapperStatsRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewCapperStatsRepository(db *sqlx.DB) *CapperStatsRepository {
	return &CapperStatsRepository{db: db, now: time.Now}
}

func (r *CapperStatsRepository) Get(ctx context.Context, capperID string) (capper.Stats, bool, error) {
	query, args, err := capperStatsBaseSelectBuilder().
		Where(qb.Eq("capper_id", capperID)).
		ToSQL()
	if err != nil {
		return capper.Stats{}, false, fmt.Errorf("build get capper stats query: %w", err)
	}

	var row capperStatsTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return capper.Stats{}, false, nil
		}
		return capper.Stats{}, false, fmt.Errorf("get capper stats capper=%s: %w", capperID, err)
	}
	return capperStatsFromRow(row), true, nil
}

// SettleAndApply locks the capper row first so concurrent runs settling
// different picks of the same capper serialize on it, then performs the pick
// compare-and-set and folds the outcome in.
func (r *CapperStatsRepository) SettleAndApply(ctx context.Context, capperID string, settlement pick.Settlement) (bool, capper.Stats, error) {
	var (
		applied bool
		stats   capper.Stats
	)
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		applied = false

		if _, err := tx.ExecContext(ctx, `INSERT INTO capper_stats (capper_id) VALUES ($1) ON CONFLICT (capper_id) DO NOTHING`, capperID); err != nil {
			return fmt.Errorf("ensure capper stats row: %w", err)
		}

		query, args, err := capperStatsBaseSelectBuilder().
			Where(qb.Eq("capper_id", capperID)).
			ForUpdate().
			ToSQL()
		if err != nil {
			return fmt.Errorf("build lock capper stats query: %w", err)
		}
		var row capperStatsTableModel
		if err := tx.GetContext(ctx, &row, query, args...); err != nil {
			return fmt.Errorf("lock capper stats: %w", err)
		}
		stats = capperStatsFromRow(row)

		ok, err := settlePick(ctx, tx, settlement, capperID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		next := stats.Apply(settlement.Status, settlement.ProfitLoss)
		next.UpdatedAt = r.now().UTC()
		if err := updateCapperStats(ctx, tx, next); err != nil {
			return err
		}
		stats = next
		applied = true
		return nil
	})
	if err != nil {
		return false, capper.Stats{}, fmt.Errorf("settle and apply capper=%s pick=%s: %w", capperID, settlement.PickID, err)
	}
	return applied, stats, nil
}

func (r *CapperStatsRepository) Replace(ctx context.Context, stats capper.Stats) error {
	updatedAt := stats.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = r.now().UTC()
	}

	query, args, err := qb.InsertModel("capper_stats", capperStatsInsertModel{
		CapperID:      stats.CapperID,
		Wins:          stats.Wins,
		Losses:        stats.Losses,
		Pushes:        stats.Pushes,
		Units:         stats.Units,
		CurrentStreak: stats.CurrentStreak,
		UpdatedAt:     updatedAt,
	}, `ON CONFLICT (capper_id) DO UPDATE SET
    wins = EXCLUDED.wins,
    losses = EXCLUDED.losses,
    pushes = EXCLUDED.pushes,
    units = EXCLUDED.units,
    current_streak = EXCLUDED.current_streak,
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("build replace capper stats query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("replace capper stats capper=%s: %w", stats.CapperID, err)
	}
	return nil
}

func updateCapperStats(ctx context.Context, tx *sqlx.Tx, stats capper.Stats) error {
	query, args, err := qb.Update("capper_stats").
		Set("wins", stats.Wins).
		Set("losses", stats.Losses).
		Set("pushes", stats.Pushes).
		Set("units", stats.Units).
		Set("current_streak", stats.CurrentStreak).
		Set("updated_at", stats.UpdatedAt).
		Where(qb.Eq("capper_id", stats.CapperID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update capper stats query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update capper stats: %w", err)
	}
	return nil
}

func capperStatsBaseSelectBuilder() *qb.SelectBuilder {
	return qb.Select("*").From("capper_stats")
}

func capperStatsFromRow(row capperStatsTableModel) capper.Stats {
	return capper.Stats{
		CapperID:      row.CapperID,
		Wins:          row.Wins,
		Losses:        row.Losses,
		Pushes:        row.Pushes,
		Units:         row.Units,
		CurrentStreak: row.CurrentStreak,
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}
