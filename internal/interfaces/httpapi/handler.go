package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/odds-grading/internal/domain/jobscheduler"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/riskibarqy/odds-grading/internal/usecase"
)

type SnapshotCollector interface {
	Collect(ctx context.Context, input usecase.CollectInput) (usecase.CollectSummary, error)
	MarkClosingLines(ctx context.Context, now time.Time) (usecase.MarkClosingSummary, error)
}

type PickGrader interface {
	Grade(ctx context.Context) (usecase.GradeSummary, error)
}

type CLVBackfiller interface {
	BackfillCLV(ctx context.Context, limit int) (usecase.BackfillCLVSummary, error)
}

type CapperAuditor interface {
	Verify(ctx context.Context, capperID string) (usecase.CapperAuditResult, error)
	Rebuild(ctx context.Context, capperID string) (usecase.CapperAuditResult, error)
}

// JobQueue schedules a delayed call to one of the internal job routes.
type JobQueue interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error
}

// JobLabeler runs fn under profiling labels for one job run.
type JobLabeler func(ctx context.Context, job, sport string, fn func(context.Context))

type HandlerDeps struct {
	Collector       SnapshotCollector
	Grader          PickGrader
	CLV             CLVBackfiller
	Auditor         CapperAuditor
	JobDispatchRepo jobscheduler.Repository
	JobQueue        JobQueue
	FollowUpDelay   time.Duration
	JobLabeler      JobLabeler
	Logger          *logging.Logger
}

type Handler struct {
	collector       SnapshotCollector
	grader          PickGrader
	clv             CLVBackfiller
	auditor         CapperAuditor
	jobDispatchRepo jobscheduler.Repository
	jobQueue        JobQueue
	followUpDelay   time.Duration
	labelJob        JobLabeler
	logger          *logging.Logger
	validator       *validator.Validate
	now             func() time.Time
}

func NewHandler(deps HandlerDeps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	labelJob := deps.JobLabeler
	if labelJob == nil {
		labelJob = func(ctx context.Context, _, _ string, fn func(context.Context)) { fn(ctx) }
	}

	return &Handler{
		collector:       deps.Collector,
		grader:          deps.Grader,
		clv:             deps.CLV,
		auditor:         deps.Auditor,
		jobDispatchRepo: deps.JobDispatchRepo,
		jobQueue:        deps.JobQueue,
		followUpDelay:   deps.FollowUpDelay,
		labelJob:        labelJob,
		logger:          logger,
		validator:       validator.New(),
		now:             time.Now,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}
