package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/odds-grading/internal/domain/jobscheduler"
	qb "github.com/riskibarqy/odds-grading/internal/platform/querybuilder"
)

// jobDispatchUpsertSuffix folds a new event into the existing row with the
// same rules as jobscheduler.DispatchRecord.Apply.
const jobDispatchUpsertSuffix = `ON CONFLICT (dispatch_id) WHERE deleted_at IS NULL
DO UPDATE SET
    job_name = EXCLUDED.job_name,
    job_path = EXCLUDED.job_path,
    sport = EXCLUDED.sport,
    payload = EXCLUDED.payload,
    status = EXCLUDED.status,
    sent_at = COALESCE(EXCLUDED.sent_at, job_dispatches.sent_at),
    completed_at = COALESCE(EXCLUDED.completed_at, job_dispatches.completed_at),
    failed_at = CASE
        WHEN EXCLUDED.status = 'completed' THEN NULL
        ELSE COALESCE(EXCLUDED.failed_at, job_dispatches.failed_at)
    END,
    last_error = CASE
        WHEN EXCLUDED.status = 'failed' THEN EXCLUDED.last_error
        ELSE NULL
    END,
    trace_id = COALESCE(EXCLUDED.trace_id, job_dispatches.trace_id),
    span_id = COALESCE(EXCLUDED.span_id, job_dispatches.span_id),
    updated_at = NOW(),
    deleted_at = NULL`

type JobDispatchRepository struct {
	db *sqlx.DB
}

func NewJobDispatchRepository(db *sqlx.DB) *JobDispatchRepository {
	return &JobDispatchRepository{db: db}
}

func (r *JobDispatchRepository) UpsertEvent(ctx context.Context, event jobscheduler.DispatchEvent) error {
	event = event.Normalize(time.Now())
	if event.DispatchID == "" {
		return fmt.Errorf("dispatch id is required")
	}
	if !event.Status.Valid() {
		return fmt.Errorf("invalid dispatch status %q", event.Status)
	}

	model, err := newJobDispatchInsertModel(event)
	if err != nil {
		return fmt.Errorf("marshal job dispatch payload: %w", err)
	}

	query, args, err := qb.InsertModel("job_dispatches", model, jobDispatchUpsertSuffix)
	if err != nil {
		return fmt.Errorf("build upsert job dispatch query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert job dispatch dispatch_id=%s status=%s: %w", event.DispatchID, event.Status, err)
	}
	return nil
}

func (r *JobDispatchRepository) GetByDispatchID(ctx context.Context, dispatchID string) (jobscheduler.DispatchRecord, error) {
	query, args, err := qb.Select(qb.ColumnsOf(jobDispatchRow{})...).
		From("job_dispatches").
		Where(
			qb.Eq("dispatch_id", strings.TrimSpace(dispatchID)),
			qb.IsNull("deleted_at"),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return jobscheduler.DispatchRecord{}, fmt.Errorf("build get job dispatch query: %w", err)
	}

	var row jobDispatchRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return jobscheduler.DispatchRecord{}, jobscheduler.ErrNotFound
		}
		return jobscheduler.DispatchRecord{}, fmt.Errorf("get job dispatch dispatch_id=%s: %w", dispatchID, err)
	}

	record, err := row.toDomain()
	if err != nil {
		return jobscheduler.DispatchRecord{}, fmt.Errorf("decode job dispatch payload dispatch_id=%s: %w", dispatchID, err)
	}
	return record, nil
}
