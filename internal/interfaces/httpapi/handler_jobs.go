package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/odds-grading/internal/domain/game"
	"github.com/riskibarqy/odds-grading/internal/domain/jobscheduler"
	"github.com/riskibarqy/odds-grading/internal/usecase"
	"go.opentelemetry.io/otel/trace"
)

const maxJobRequestBytes = 64 << 10

var (
	internalJobDispatchUnsafeRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	strictJSON                     = sonic.Config{DisallowUnknownFields: true}.Froze()
)

type collectSnapshotsRequest struct {
	Sports     []string `json:"sports" validate:"omitempty,max=16,dive,required,max=16"`
	Date       string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	DispatchID string   `json:"dispatchId" validate:"omitempty,max=128"`
}

type gradePicksRequest struct {
	DispatchID string `json:"dispatchId" validate:"omitempty,max=128"`
}

type backfillCLVRequest struct {
	Limit      int    `json:"limit" validate:"omitempty,min=1,max=5000"`
	DispatchID string `json:"dispatchId" validate:"omitempty,max=128"`
}

type markClosingRequest struct {
	DispatchID string `json:"dispatchId" validate:"omitempty,max=128"`
}

const maxFollowUpDispatchBase = 100

// jobRun describes one invocation for the dispatch log.
type jobRun struct {
	name       string
	path       string
	sport      string
	dispatchID string
	payload    map[string]any
}

type followUpJob struct {
	name string
	path string
}

// jobFollowUps lists the jobs queued after a successful run.
var jobFollowUps = map[string][]followUpJob{
	"collect-snapshots": {{name: "backfill-clv", path: "/v1/internal/jobs/backfill-clv"}},
	"mark-closing":      {{name: "backfill-clv", path: "/v1/internal/jobs/backfill-clv"}},
}

func (h *Handler) CollectSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CollectSnapshots")
	defer span.End()

	if h.collector == nil {
		writeError(ctx, w, fmt.Errorf("%w: snapshot collector is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	var req collectSnapshotsRequest
	if err := h.decodeJobRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	input := usecase.CollectInput{Sports: req.Sports}
	if req.Date != "" {
		date, err := game.ParseScheduleDate(req.Date)
		if err != nil {
			writeError(ctx, w, fmt.Errorf("%w: invalid date %q", usecase.ErrInvalidInput, req.Date))
			return
		}
		input.Date = date
	}

	payload := map[string]any{"sports": req.Sports}
	if req.Date != "" {
		payload["date"] = req.Date
	}
	run := jobRun{
		name:       "collect-snapshots",
		path:       "/v1/internal/jobs/collect-snapshots",
		sport:      sportLabel(req.Sports),
		dispatchID: req.DispatchID,
		payload:    payload,
	}
	runInternalJob(ctx, h, w, run, func(ctx context.Context) (usecase.CollectSummary, error) {
		return h.collector.Collect(ctx, input)
	})
}

func (h *Handler) GradePicks(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GradePicks")
	defer span.End()

	if h.grader == nil {
		writeError(ctx, w, fmt.Errorf("%w: grading service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	var req gradePicksRequest
	if err := h.decodeJobRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	run := jobRun{name: "grade-picks", path: "/v1/internal/jobs/grade-picks", dispatchID: req.DispatchID}
	runInternalJob(ctx, h, w, run, h.grader.Grade)
}

func (h *Handler) BackfillCLV(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.BackfillCLV")
	defer span.End()

	if h.clv == nil {
		writeError(ctx, w, fmt.Errorf("%w: clv calculator is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	var req backfillCLVRequest
	if err := h.decodeJobRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	run := jobRun{
		name:       "backfill-clv",
		path:       "/v1/internal/jobs/backfill-clv",
		dispatchID: req.DispatchID,
		payload:    map[string]any{"limit": req.Limit},
	}
	runInternalJob(ctx, h, w, run, func(ctx context.Context) (usecase.BackfillCLVSummary, error) {
		return h.clv.BackfillCLV(ctx, req.Limit)
	})
}

func (h *Handler) MarkClosing(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.MarkClosing")
	defer span.End()

	if h.collector == nil {
		writeError(ctx, w, fmt.Errorf("%w: snapshot collector is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	var req markClosingRequest
	if err := h.decodeJobRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	run := jobRun{name: "mark-closing", path: "/v1/internal/jobs/mark-closing", dispatchID: req.DispatchID}
	runInternalJob(ctx, h, w, run, func(ctx context.Context) (usecase.MarkClosingSummary, error) {
		return h.collector.MarkClosingLines(ctx, h.now())
	})
}

func runInternalJob[T any](ctx context.Context, h *Handler, w http.ResponseWriter, run jobRun, fn func(context.Context) (T, error)) {
	dispatchID := strings.TrimSpace(run.dispatchID)
	if dispatchID == "" {
		dispatchID = buildManualDispatchID(run.name, run.sport, h.now())
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(jobSpanAttributes(run, dispatchID)...)

	var (
		result T
		err    error
	)
	h.labelJob(ctx, run.name, run.sport, func(ctx context.Context) {
		result, err = fn(ctx)
	})
	if err != nil {
		span.RecordError(err)
		h.recordInternalJobDispatch(ctx, dispatchID, run, jobscheduler.StatusFailed, err)
		h.logger.WarnContext(ctx, "internal job failed", "job_name", run.name, "sport", run.sport, "error", err)
		writeError(ctx, w, err)
		return
	}
	h.recordInternalJobDispatch(ctx, dispatchID, run, jobscheduler.StatusCompleted, nil)
	h.scheduleFollowUps(ctx, dispatchID, run)

	writeSuccess(ctx, w, http.StatusOK, result)
}

// scheduleFollowUps queues the jobs chained after run. Queue failures are
// logged and recorded but never fail the finished run.
func (h *Handler) scheduleFollowUps(ctx context.Context, parentID string, run jobRun) {
	if h.jobQueue == nil {
		return
	}

	base := parentID
	if len(base) > maxFollowUpDispatchBase {
		base = base[:maxFollowUpDispatchBase]
	}
	for _, next := range jobFollowUps[run.name] {
		dispatchID := base + "-" + next.name
		followUp := jobRun{
			name:       next.name,
			path:       next.path,
			sport:      run.sport,
			dispatchID: dispatchID,
			payload:    map[string]any{"parent_dispatch_id": parentID},
		}

		err := h.jobQueue.Enqueue(ctx, next.path, map[string]any{"dispatchId": dispatchID}, h.followUpDelay, dispatchID)
		if err != nil {
			h.logger.WarnContext(ctx, "queue follow-up job failed", "job_name", next.name, "parent_dispatch_id", parentID, "error", err)
			h.recordInternalJobDispatch(ctx, dispatchID, followUp, jobscheduler.StatusFailed, err)
			continue
		}
		h.recordInternalJobDispatch(ctx, dispatchID, followUp, jobscheduler.StatusSent, nil)
	}
}

// decodeJobRequest accepts an empty body; anything else must be a JSON
// object with known fields only.
func (h *Handler) decodeJobRequest(ctx context.Context, r *http.Request, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxJobRequestBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read request body: %v", usecase.ErrInvalidInput, err)
	}
	if len(raw) > maxJobRequestBytes {
		return fmt.Errorf("%w: request body exceeds %d bytes", usecase.ErrInvalidInput, maxJobRequestBytes)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := strictJSON.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return h.validateRequest(ctx, dst)
}

func (h *Handler) recordInternalJobDispatch(ctx context.Context, dispatchID string, run jobRun, status jobscheduler.DispatchStatus, runErr error) {
	if h.jobDispatchRepo == nil {
		return
	}

	occurredAt := h.now().UTC()

	payload := make(map[string]any, len(run.payload)+1)
	for k, v := range run.payload {
		payload[k] = v
	}
	if strings.TrimSpace(run.dispatchID) != "" {
		payload["dispatch_id"] = run.dispatchID
	}

	event := jobscheduler.DispatchEvent{
		DispatchID: dispatchID,
		JobName:    run.name,
		JobPath:    run.path,
		Sport:      run.sport,
		Status:     status,
		Payload:    payload,
		OccurredAt: occurredAt,
	}
	if runErr != nil {
		event.ErrorMessage = runErr.Error()
	}
	event.TraceID, event.SpanID = traceMetaFromContext(ctx)

	if err := h.jobDispatchRepo.UpsertEvent(ctx, event); err != nil {
		h.logger.WarnContext(ctx, "record internal job dispatch failed",
			"dispatch_id", event.DispatchID,
			"job_name", event.JobName,
			"status", event.Status,
			"error", err,
		)
	}
}

func sportLabel(sports []string) string {
	if len(sports) == 0 {
		return "all"
	}
	return strings.ToLower(strings.Join(sports, "+"))
}

func buildManualDispatchID(jobName, sport string, now time.Time) string {
	jobName = sanitizeDispatchPart(jobName)
	sport = sanitizeDispatchPart(sport)
	ts := now.UTC().Format("20060102T150405.000000000Z")
	return "manual-" + jobName + "-" + sport + "-" + ts
}

func sanitizeDispatchPart(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "all"
	}
	return internalJobDispatchUnsafeRegex.ReplaceAllString(value, "-")
}

func traceMetaFromContext(ctx context.Context) (string, string) {
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if !spanContext.IsValid() {
		return "", ""
	}
	return spanContext.TraceID().String(), spanContext.SpanID().String()
}

func (h *Handler) GetJobDispatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetJobDispatch")
	defer span.End()

	if h.jobDispatchRepo == nil {
		writeError(ctx, w, fmt.Errorf("%w: job dispatch log is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	dispatchID := strings.TrimSpace(r.PathValue("dispatchID"))
	record, err := h.jobDispatchRepo.GetByDispatchID(ctx, dispatchID)
	if err != nil {
		if errors.Is(err, jobscheduler.ErrNotFound) {
			writeError(ctx, w, fmt.Errorf("%w: dispatch %s", usecase.ErrNotFound, dispatchID))
			return
		}
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, record)
}
