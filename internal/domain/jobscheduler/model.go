package jobscheduler

import (
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("job dispatch not found")

type DispatchStatus string

const (
	// StatusSent marks a follow-up that was handed to the job queue but has
	// not run yet.
	StatusSent      DispatchStatus = "sent"
	StatusCompleted DispatchStatus = "completed"
	StatusFailed    DispatchStatus = "failed"
)

func (s DispatchStatus) Valid() bool {
	switch s {
	case StatusSent, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// DispatchEvent is one status transition of a collect, grade, closing or
// backfill run.
type DispatchEvent struct {
	DispatchID   string
	JobName      string
	JobPath      string
	Sport        string
	Status       DispatchStatus
	Payload      map[string]any
	ErrorMessage string
	OccurredAt   time.Time
	TraceID      string
	SpanID       string
}

// Normalize fills the placeholder job name, path and sport used when a caller
// leaves them blank, and stamps OccurredAt with now when unset.
func (e DispatchEvent) Normalize(now time.Time) DispatchEvent {
	e.DispatchID = strings.TrimSpace(e.DispatchID)
	e.JobName = strings.TrimSpace(e.JobName)
	if e.JobName == "" {
		e.JobName = "unknown"
	}
	e.JobPath = strings.TrimSpace(e.JobPath)
	if e.JobPath == "" {
		e.JobPath = "/unknown"
	}
	e.Sport = strings.ToLower(strings.TrimSpace(e.Sport))
	if e.Sport == "" {
		e.Sport = "all"
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now
	}
	e.OccurredAt = e.OccurredAt.UTC()
	return e
}

// DispatchRecord is the folded state of every event seen for a dispatch id.
type DispatchRecord struct {
	DispatchID  string         `json:"dispatchId"`
	JobName     string         `json:"jobName"`
	JobPath     string         `json:"jobPath"`
	Sport       string         `json:"sport"`
	Status      DispatchStatus `json:"status"`
	Payload     map[string]any `json:"payload"`
	SentAt      *time.Time     `json:"sentAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	FailedAt    *time.Time     `json:"failedAt,omitempty"`
	LastError   string         `json:"lastError,omitempty"`
}

// Apply folds event into the record. A completion clears an earlier failure;
// a retry that fails again keeps the original sent time.
func (r DispatchRecord) Apply(event DispatchEvent) DispatchRecord {
	r.DispatchID = event.DispatchID
	r.JobName = event.JobName
	r.JobPath = event.JobPath
	r.Sport = event.Sport
	r.Status = event.Status
	r.Payload = event.Payload

	at := event.OccurredAt
	switch event.Status {
	case StatusSent:
		r.SentAt = &at
		r.LastError = ""
	case StatusCompleted:
		r.CompletedAt = &at
		r.FailedAt = nil
		r.LastError = ""
	case StatusFailed:
		r.FailedAt = &at
		r.LastError = event.ErrorMessage
	}
	return r
}
