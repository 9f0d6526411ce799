package postgres

import (
	"database/sql"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/odds-grading/internal/domain/jobscheduler"
)

type jobDispatchInsertModel struct {
	DispatchID  string     `db:"dispatch_id"`
	JobName     string     `db:"job_name"`
	JobPath     string     `db:"job_path"`
	Sport       string     `db:"sport"`
	Payload     string     `db:"payload"`
	Status      string     `db:"status"`
	SentAt      *time.Time `db:"sent_at"`
	CompletedAt *time.Time `db:"completed_at"`
	FailedAt    *time.Time `db:"failed_at"`
	LastError   *string    `db:"last_error"`
	TraceID     *string    `db:"trace_id"`
	SpanID      *string    `db:"span_id"`
}

func newJobDispatchInsertModel(event jobscheduler.DispatchEvent) (jobDispatchInsertModel, error) {
	payload := "{}"
	if len(event.Payload) > 0 {
		raw, err := sonic.Marshal(event.Payload)
		if err != nil {
			return jobDispatchInsertModel{}, err
		}
		payload = string(raw)
	}

	at := event.OccurredAt
	model := jobDispatchInsertModel{
		DispatchID: event.DispatchID,
		JobName:    event.JobName,
		JobPath:    event.JobPath,
		Sport:      event.Sport,
		Payload:    payload,
		Status:     string(event.Status),
		TraceID:    optionalString(event.TraceID),
		SpanID:     optionalString(event.SpanID),
	}
	switch event.Status {
	case jobscheduler.StatusSent:
		model.SentAt = &at
	case jobscheduler.StatusCompleted:
		model.CompletedAt = &at
	case jobscheduler.StatusFailed:
		model.FailedAt = &at
		model.LastError = optionalString(event.ErrorMessage)
	}
	return model, nil
}

type jobDispatchRow struct {
	DispatchID  string         `db:"dispatch_id"`
	JobName     string         `db:"job_name"`
	JobPath     string         `db:"job_path"`
	Sport       string         `db:"sport"`
	Payload     []byte         `db:"payload"`
	Status      string         `db:"status"`
	SentAt      sql.NullTime   `db:"sent_at"`
	CompletedAt sql.NullTime   `db:"completed_at"`
	FailedAt    sql.NullTime   `db:"failed_at"`
	LastError   sql.NullString `db:"last_error"`
}

func (r jobDispatchRow) toDomain() (jobscheduler.DispatchRecord, error) {
	record := jobscheduler.DispatchRecord{
		DispatchID:  r.DispatchID,
		JobName:     r.JobName,
		JobPath:     r.JobPath,
		Sport:       r.Sport,
		Status:      jobscheduler.DispatchStatus(r.Status),
		SentAt:      nullTimePtr(r.SentAt),
		CompletedAt: nullTimePtr(r.CompletedAt),
		FailedAt:    nullTimePtr(r.FailedAt),
		LastError:   r.LastError.String,
	}
	if len(r.Payload) > 0 {
		if err := sonic.Unmarshal(r.Payload, &record.Payload); err != nil {
			return jobscheduler.DispatchRecord{}, err
		}
	}
	return record, nil
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
