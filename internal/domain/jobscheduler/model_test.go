package jobscheduler

import (
	"testing"
	"time"
)

func TestDispatchEvent_Normalize(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	got := DispatchEvent{DispatchID: "  run-1 ", Sport: " NFL "}.Normalize(now)

	if got.DispatchID != "run-1" || got.JobName != "unknown" || got.JobPath != "/unknown" || got.Sport != "nfl" {
		t.Fatalf("unexpected normalized event: %+v", got)
	}
	if !got.OccurredAt.Equal(now) {
		t.Fatalf("unexpected occurred at got=%s want=%s", got.OccurredAt, now)
	}
}

func TestDispatchRecord_Apply(t *testing.T) {
	t.Parallel()

	sentAt := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	failedAt := sentAt.Add(time.Minute)
	doneAt := sentAt.Add(2 * time.Minute)

	var record DispatchRecord
	record = record.Apply(DispatchEvent{DispatchID: "run-1", JobName: "mark-closing", Status: StatusSent, OccurredAt: sentAt})
	record = record.Apply(DispatchEvent{DispatchID: "run-1", JobName: "mark-closing", Status: StatusFailed, ErrorMessage: "timeout", OccurredAt: failedAt})

	if record.Status != StatusFailed || record.LastError != "timeout" || record.SentAt == nil || !record.SentAt.Equal(sentAt) {
		t.Fatalf("unexpected record after failure: %+v", record)
	}

	record = record.Apply(DispatchEvent{DispatchID: "run-1", JobName: "mark-closing", Status: StatusCompleted, OccurredAt: doneAt})
	if record.Status != StatusCompleted || record.FailedAt != nil || record.LastError != "" {
		t.Fatalf("unexpected record after completion: %+v", record)
	}
	if record.CompletedAt == nil || !record.CompletedAt.Equal(doneAt) {
		t.Fatalf("unexpected completed at: %v", record.CompletedAt)
	}
}

func TestDispatchStatus_Valid(t *testing.T) {
	t.Parallel()

	if !StatusSent.Valid() || !StatusFailed.Valid() {
		t.Fatalf("expected known statuses to be valid")
	}
	if DispatchStatus("queued").Valid() {
		t.Fatalf("expected unknown status to be invalid")
	}
}
