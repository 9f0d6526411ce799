package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	qb "github.com/riskibarqy/odds-grading/internal/platform/querybuilder"
	"github.com/shopspring/decimal"
)

type PickRepository struct {
	db *sqlx.DB
}

func NewPickRepository(db *sqlx.DB) *PickRepository {
	return &PickRepository{db: db}
}

func (r *PickRepository) ListPendingConcluded(ctx context.Context, now time.Time, limit int) ([]pick.Pick, error) {
	builder := pickBaseSelectBuilder().
		Where(
			qb.Eq("status", string(pick.StatusPending)),
			qb.Expr("game_starts_at <= ?", now.UTC()),
		).
		OrderBy("game_starts_at", "created_at", "id")
	if limit > 0 {
		builder = builder.Limit(limit)
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list pending picks query: %w", err)
	}

	var rows []pickTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list pending picks: %w", err)
	}
	return picksFromRows(rows), nil
}

func (r *PickRepository) GetByID(ctx context.Context, pickID string) (pick.Pick, bool, error) {
	query, args, err := pickBaseSelectBuilder().
		Where(qb.Eq("id", pickID)).
		ToSQL()
	if err != nil {
		return pick.Pick{}, false, fmt.Errorf("build get pick query: %w", err)
	}

	var row pickTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return pick.Pick{}, false, nil
		}
		return pick.Pick{}, false, fmt.Errorf("get pick id=%s: %w", pickID, err)
	}
	return pickFromRow(row), true, nil
}

func (r *PickRepository) Settle(ctx context.Context, settlement pick.Settlement) (bool, error) {
	applied := false
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		applied, err = settlePick(ctx, tx, settlement, "")
		return err
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *PickRepository) SetCLV(ctx context.Context, pickID string, clv decimal.Decimal) error {
	query, args, err := qb.Update("picks").
		Set("clv", clv).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("id", pickID),
			qb.Expr("status <> ?", string(pick.StatusPending)),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build set clv query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set clv pick=%s: %w", pickID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set clv rows affected pick=%s: %w", pickID, err)
	}
	if affected > 0 {
		return nil
	}

	_, ok, err := r.GetByID(ctx, pickID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", pick.ErrNotFound, pickID)
	}
	return fmt.Errorf("%w: %s", pick.ErrNotSettled, pickID)
}

func (r *PickRepository) ListSettledWithoutCLV(ctx context.Context, limit int) ([]pick.Pick, error) {
	builder := pickBaseSelectBuilder().
		Where(
			qb.Expr("status <> ?", string(pick.StatusPending)),
			qb.IsNull("clv"),
		).
		OrderBy("game_starts_at", "id")
	if limit > 0 {
		builder = builder.Limit(limit)
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list settled without clv query: %w", err)
	}

	var rows []pickTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list settled without clv: %w", err)
	}
	return picksFromRows(rows), nil
}

func (r *PickRepository) ListSettledByCapper(ctx context.Context, capperID string) ([]pick.Pick, error) {
	query, args, err := pickBaseSelectBuilder().
		Where(
			qb.Eq("capper_id", capperID),
			qb.Expr("status <> ?", string(pick.StatusPending)),
		).
		OrderBy("game_starts_at", "created_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list settled by capper query: %w", err)
	}

	var rows []pickTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list settled picks capper=%s: %w", capperID, err)
	}
	return picksFromRows(rows), nil
}

// settlePick is the pending -> settled compare-and-set. When capperID is set
// the pick must also belong to that capper.
func settlePick(ctx context.Context, tx *sqlx.Tx, settlement pick.Settlement, capperID string) (bool, error) {
	if !settlement.Status.IsSettled() {
		return false, fmt.Errorf("%w: got %q", pick.ErrInvalidStatus, settlement.Status)
	}

	conditions := []qb.Condition{
		qb.Eq("id", settlement.PickID),
		qb.Eq("status", string(pick.StatusPending)),
	}
	if capperID != "" {
		conditions = append(conditions, qb.Eq("capper_id", capperID))
	}

	query, args, err := qb.Update("picks").
		Set("status", string(settlement.Status)).
		Set("settled_at", settlement.SettledAt.UTC()).
		Set("profit_loss", settlement.ProfitLoss).
		Set("clv", toNullDecimal(settlement.CLV)).
		SetExpr("updated_at", "NOW()").
		Where(conditions...).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build settle pick query: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("settle pick id=%s: %w", settlement.PickID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("settle pick rows affected id=%s: %w", settlement.PickID, err)
	}
	if affected > 0 {
		return true, nil
	}

	var owner string
	if err := tx.GetContext(ctx, &owner, `SELECT capper_id FROM picks WHERE id = $1`, settlement.PickID); err != nil {
		if isNotFound(err) {
			return false, fmt.Errorf("%w: %s", pick.ErrNotFound, settlement.PickID)
		}
		return false, fmt.Errorf("check pick id=%s: %w", settlement.PickID, err)
	}
	if capperID != "" && owner != capperID {
		return false, fmt.Errorf("%w: %s for capper %s", pick.ErrNotFound, settlement.PickID, capperID)
	}
	return false, nil
}

func pickBaseSelectBuilder() *qb.SelectBuilder {
	return qb.Select("*").From("picks")
}

func picksFromRows(rows []pickTableModel) []pick.Pick {
	out := make([]pick.Pick, 0, len(rows))
	for _, row := range rows {
		out = append(out, pickFromRow(row))
	}
	return out
}

func pickFromRow(row pickTableModel) pick.Pick {
	return pick.Pick{
		ID:           row.ID,
		CapperID:     row.CapperID,
		GameID:       row.GameID,
		Sport:        row.Sport,
		BetType:      pick.BetType(row.BetType),
		Selection:    pick.Selection(row.Selection),
		Line:         fromNullDecimal(row.Line),
		Price:        row.Price,
		Stake:        row.Stake,
		GameStartsAt: row.GameStartsAt.UTC(),
		Status:       pick.Status(row.Status),
		SettledAt:    row.SettledAt,
		ProfitLoss:   fromNullDecimal(row.ProfitLoss),
		CLV:          fromNullDecimal(row.CLV),
		CreatedAt:    row.CreatedAt.UTC(),
	}
}
