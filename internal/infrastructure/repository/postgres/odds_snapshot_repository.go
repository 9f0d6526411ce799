package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	qb "github.com/riskibarqy/odds-grading/internal/platform/querybuilder"
	"github.com/shopspring/decimal"
)

const oddsSnapshotOpeningExpr = `NOT EXISTS (SELECT 1 FROM odds_snapshots s WHERE s.game_id = v.game_id AND s.provider = v.provider)`

type OddsSnapshotRepository struct {
	db *sqlx.DB
}

func NewOddsSnapshotRepository(db *sqlx.DB) *OddsSnapshotRepository {
	return &OddsSnapshotRepository{db: db}
}

// AppendBatch inserts in two passes. The first derives is_opening inside
// the statement; rows that lose an opening race hit the partial unique index
// and are dropped by ON CONFLICT DO NOTHING. The second pass re-inserts
// whatever the first did not return as plain non-opening rows. Anything still
// missing already existed.
func (r *OddsSnapshotRepository) AppendBatch(ctx context.Context, items []oddssnapshot.Snapshot) (oddssnapshot.AppendResult, error) {
	items = dedupeSnapshots(items)
	if len(items) == 0 {
		return oddssnapshot.AppendResult{}, nil
	}

	var result oddssnapshot.AppendResult
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result = oddssnapshot.AppendResult{}

		first, err := r.insertSnapshots(ctx, tx, items, oddsSnapshotOpeningExpr)
		if err != nil {
			return err
		}
		inserted := make(map[snapshotIdentity]struct{}, len(first))
		for _, row := range first {
			inserted[identityOf(row.GameID, row.Provider, row.CapturedAt)] = struct{}{}
			result.Inserted++
			if row.IsOpening {
				result.Openings++
			}
		}

		remaining := make([]oddssnapshot.Snapshot, 0, len(items)-len(first))
		for _, item := range items {
			if _, ok := inserted[identityOf(item.GameID, item.Provider, item.CapturedAt)]; !ok {
				remaining = append(remaining, item)
			}
		}
		if len(remaining) == 0 {
			return nil
		}

		second, err := r.insertSnapshots(ctx, tx, remaining, "FALSE")
		if err != nil {
			return err
		}
		result.Inserted += len(second)
		result.Duplicates = len(remaining) - len(second)
		return nil
	})
	if err != nil {
		return oddssnapshot.AppendResult{}, err
	}
	return result, nil
}

func (r *OddsSnapshotRepository) insertSnapshots(ctx context.Context, tx *sqlx.Tx, items []oddssnapshot.Snapshot, openingExpr string) ([]oddsSnapshotInsertedRow, error) {
	builder := qb.InsertSelect("odds_snapshots").
		Columns(oddsSnapshotInsertColumns...).
		Casts(oddsSnapshotInsertCasts...).
		Computed("is_opening", openingExpr).
		Suffix("ON CONFLICT DO NOTHING RETURNING game_id, provider, captured_at, is_opening")
	for _, item := range items {
		builder.Values(
			item.GameID,
			item.Provider,
			item.ProviderEventID,
			item.Sport,
			item.ScheduledAt.UTC(),
			item.HomeTeam,
			item.AwayTeam,
			toNullDecimal(item.Spread),
			item.SpreadHomePrice,
			item.SpreadAwayPrice,
			toNullDecimal(item.Total),
			item.OverPrice,
			item.UnderPrice,
			item.HomeMoneyline,
			item.AwayMoneyline,
			item.CapturedAt.UTC(),
		)
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build append odds snapshots query: %w", err)
	}

	var rows []oddsSnapshotInsertedRow
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("append odds snapshots: %w", err)
	}
	return rows, nil
}

func (r *OddsSnapshotRepository) ExistsOpening(ctx context.Context, key oddssnapshot.Key) (bool, error) {
	query, args, err := qb.Select("1").
		From("odds_snapshots").
		Where(
			qb.Eq("game_id", key.GameID),
			qb.Eq("provider", key.Provider),
			qb.Expr("is_opening"),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build exists opening query: %w", err)
	}

	var one int
	if err := r.db.GetContext(ctx, &one, query, args...); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("exists opening game=%s provider=%s: %w", key.GameID, key.Provider, err)
	}
	return true, nil
}

func (r *OddsSnapshotRepository) ExistingOpenings(ctx context.Context, keys []oddssnapshot.Key) (map[oddssnapshot.Key]bool, error) {
	out := make(map[oddssnapshot.Key]bool, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	gameIDs := make([]string, 0, len(keys))
	providers := make([]string, 0, len(keys))
	for _, key := range keys {
		gameIDs = append(gameIDs, key.GameID)
		providers = append(providers, key.Provider)
	}

	query, args, err := qb.Select("game_id", "provider").
		From("odds_snapshots").
		Where(
			qb.Expr("(game_id, provider) IN (SELECT * FROM UNNEST(?::text[], ?::text[]))", pq.Array(gameIDs), pq.Array(providers)),
			qb.Expr("is_opening"),
		).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build existing openings query: %w", err)
	}

	var rows []oddsSnapshotKeyRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("existing openings: %w", err)
	}
	for _, row := range rows {
		out[oddssnapshot.Key{GameID: row.GameID, Provider: row.Provider}] = true
	}
	return out, nil
}

func (r *OddsSnapshotRepository) LatestFor(ctx context.Context, key oddssnapshot.Key) (oddssnapshot.Snapshot, bool, error) {
	query, args, err := oddsSnapshotBaseSelectBuilder().
		Where(
			qb.Eq("game_id", key.GameID),
			qb.Eq("provider", key.Provider),
		).
		OrderBy("captured_at DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return oddssnapshot.Snapshot{}, false, fmt.Errorf("build latest snapshot query: %w", err)
	}

	var row oddsSnapshotTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return oddssnapshot.Snapshot{}, false, nil
		}
		return oddssnapshot.Snapshot{}, false, fmt.Errorf("latest snapshot game=%s provider=%s: %w", key.GameID, key.Provider, err)
	}
	return oddsSnapshotFromRow(row), true, nil
}

func (r *OddsSnapshotRepository) MarkClosing(ctx context.Context, key oddssnapshot.Key) (bool, error) {
	marked := false
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		marked = false
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || '|' || $2))`, key.GameID, key.Provider); err != nil {
			return fmt.Errorf("lock closing pair: %w", err)
		}

		clearQuery, clearArgs, err := qb.Update("odds_snapshots").
			Set("is_closing", false).
			Where(
				qb.Eq("game_id", key.GameID),
				qb.Eq("provider", key.Provider),
				qb.Expr("is_closing"),
			).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build clear closing query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, clearQuery, clearArgs...); err != nil {
			return fmt.Errorf("clear closing flag: %w", err)
		}

		setQuery, setArgs, err := qb.Update("odds_snapshots").
			Set("is_closing", true).
			Where(qb.Expr(`id = (
    SELECT id FROM odds_snapshots
    WHERE game_id = ? AND provider = ?
    ORDER BY captured_at DESC
    LIMIT 1
)`, key.GameID, key.Provider)).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build set closing query: %w", err)
		}
		res, err := tx.ExecContext(ctx, setQuery, setArgs...)
		if err != nil {
			return fmt.Errorf("set closing flag: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("set closing rows affected: %w", err)
		}
		marked = affected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("mark closing game=%s provider=%s: %w", key.GameID, key.Provider, err)
	}
	return marked, nil
}

func (r *OddsSnapshotRepository) ClosingFor(ctx context.Context, gameID string) ([]oddssnapshot.Snapshot, error) {
	query, args, err := oddsSnapshotBaseSelectBuilder().
		Where(
			qb.Eq("game_id", gameID),
			qb.Expr("is_closing"),
		).
		OrderBy("provider").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build closing snapshots query: %w", err)
	}

	var rows []oddsSnapshotTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("closing snapshots game=%s: %w", gameID, err)
	}

	out := make([]oddssnapshot.Snapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, oddsSnapshotFromRow(row))
	}
	return out, nil
}

func (r *OddsSnapshotRepository) ListStartedWithoutClosing(ctx context.Context, startedBefore time.Time, limit int) ([]oddssnapshot.Key, error) {
	builder := qb.Select("game_id", "provider").
		From("odds_snapshots").
		GroupBy("game_id", "provider").
		Having(
			qb.Expr("MAX(scheduled_at) <= ?", startedBefore.UTC()),
			qb.Expr("NOT BOOL_OR(is_closing)"),
		).
		OrderBy("game_id", "provider")
	if limit > 0 {
		builder = builder.Limit(limit)
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build started without closing query: %w", err)
	}

	var rows []oddsSnapshotKeyRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list started without closing: %w", err)
	}

	out := make([]oddssnapshot.Key, 0, len(rows))
	for _, row := range rows {
		out = append(out, oddssnapshot.Key{GameID: row.GameID, Provider: row.Provider})
	}
	return out, nil
}

func oddsSnapshotBaseSelectBuilder() *qb.SelectBuilder {
	return qb.Select("*").From("odds_snapshots")
}

type snapshotIdentity struct {
	gameID     string
	provider   string
	capturedAt int64
}

func identityOf(gameID, provider string, capturedAt time.Time) snapshotIdentity {
	return snapshotIdentity{gameID: gameID, provider: provider, capturedAt: capturedAt.UTC().UnixMicro()}
}

// dedupeSnapshots drops repeated identities within one batch, keeping the first.
func dedupeSnapshots(items []oddssnapshot.Snapshot) []oddssnapshot.Snapshot {
	seen := make(map[snapshotIdentity]struct{}, len(items))
	out := make([]oddssnapshot.Snapshot, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.GameID) == "" || strings.TrimSpace(item.Provider) == "" {
			continue
		}
		id := identityOf(item.GameID, item.Provider, item.CapturedAt)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}

func oddsSnapshotFromRow(row oddsSnapshotTableModel) oddssnapshot.Snapshot {
	return oddssnapshot.Snapshot{
		GameID:          row.GameID,
		Provider:        row.Provider,
		ProviderEventID: row.ProviderEventID,
		Sport:           row.Sport,
		ScheduledAt:     row.ScheduledAt.UTC(),
		HomeTeam:        row.HomeTeam,
		AwayTeam:        row.AwayTeam,
		Spread:          fromNullDecimal(row.Spread),
		SpreadHomePrice: row.SpreadHomePrice,
		SpreadAwayPrice: row.SpreadAwayPrice,
		Total:           fromNullDecimal(row.Total),
		OverPrice:       row.OverPrice,
		UnderPrice:      row.UnderPrice,
		HomeMoneyline:   row.HomeMoneyline,
		AwayMoneyline:   row.AwayMoneyline,
		IsOpening:       row.IsOpening,
		IsClosing:       row.IsClosing,
		CapturedAt:      row.CapturedAt.UTC(),
	}
}

func toNullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}

func fromNullDecimal(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	out := v.Decimal
	return &out
}
