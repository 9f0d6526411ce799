package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/odds-grading/internal/domain/capper"
	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// CapperStatsView is the JSON shape of a capper's record.
type CapperStatsView struct {
	CapperID      string          `json:"capperId"`
	Wins          int             `json:"wins"`
	Losses        int             `json:"losses"`
	Pushes        int             `json:"pushes"`
	Units         decimal.Decimal `json:"units"`
	CurrentStreak int             `json:"currentStreak"`
}

func newCapperStatsView(stats capper.Stats) CapperStatsView {
	return CapperStatsView{
		CapperID:      stats.CapperID,
		Wins:          stats.Wins,
		Losses:        stats.Losses,
		Pushes:        stats.Pushes,
		Units:         stats.Units,
		CurrentStreak: stats.CurrentStreak,
	}
}

type CapperAuditResult struct {
	CapperID string           `json:"capperId"`
	Stored   *CapperStatsView `json:"stored"`
	Rebuilt  CapperStatsView  `json:"rebuilt"`
	Drift    bool             `json:"drift"`
	Repaired bool             `json:"repaired"`
	Settled  int              `json:"settledPicks"`
}

type CapperAuditService struct {
	picks   pick.Repository
	cappers capper.Repository
	logger  *logging.Logger
	now     func() time.Time
}

func NewCapperAuditService(picks pick.Repository, cappers capper.Repository, logger *logging.Logger) *CapperAuditService {
	if logger == nil {
		logger = logging.Default()
	}
	return &CapperAuditService{picks: picks, cappers: cappers, logger: logger, now: time.Now}
}

// Verify recomputes the capper's stats from the settled pick ledger and
// compares them with the stored row without writing anything.
func (s *CapperAuditService) Verify(ctx context.Context, capperID string) (CapperAuditResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CapperAuditService.Verify", attribute.String("capper.id", capperID))
	defer span.End()

	result, _, err := s.audit(ctx, capperID)
	return result, err
}

// Rebuild is Verify followed by overwriting the stored row when it drifted
// from the ledger or does not exist yet.
func (s *CapperAuditService) Rebuild(ctx context.Context, capperID string) (CapperAuditResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CapperAuditService.Rebuild", attribute.String("capper.id", capperID))
	defer span.End()

	result, rebuilt, err := s.audit(ctx, capperID)
	if err != nil {
		return CapperAuditResult{}, err
	}
	if !result.Drift && result.Stored != nil {
		return result, nil
	}

	rebuilt.UpdatedAt = s.now().UTC()
	if err := s.cappers.Replace(ctx, rebuilt); err != nil {
		return CapperAuditResult{}, fmt.Errorf("%w: replace capper stats %s: %w", ErrStoreWrite, result.CapperID, err)
	}
	result.Repaired = true
	s.logger.WarnContext(ctx, "capper stats rebuilt from ledger",
		"capper_id", result.CapperID,
		"drift", result.Drift,
		"settled_picks", result.Settled,
	)
	return result, nil
}

func (s *CapperAuditService) audit(ctx context.Context, capperID string) (CapperAuditResult, capper.Stats, error) {
	capperID = strings.TrimSpace(capperID)
	if capperID == "" {
		return CapperAuditResult{}, capper.Stats{}, fmt.Errorf("%w: capper id is required", ErrInvalidInput)
	}
	if s.picks == nil || s.cappers == nil {
		return CapperAuditResult{}, capper.Stats{}, fmt.Errorf("%w: capper audit is not configured", ErrDependencyUnavailable)
	}

	settled, err := s.picks.ListSettledByCapper(ctx, capperID)
	if err != nil {
		return CapperAuditResult{}, capper.Stats{}, fmt.Errorf("list settled picks capper=%s: %w", capperID, err)
	}
	stored, exists, err := s.cappers.Get(ctx, capperID)
	if err != nil {
		return CapperAuditResult{}, capper.Stats{}, fmt.Errorf("get capper stats %s: %w", capperID, err)
	}
	if !exists && len(settled) == 0 {
		return CapperAuditResult{}, capper.Stats{}, fmt.Errorf("%w: capper %s", ErrNotFound, capperID)
	}

	rebuilt := capper.Rebuild(capperID, settled)
	result := CapperAuditResult{
		CapperID: capperID,
		Rebuilt:  newCapperStatsView(rebuilt),
		Settled:  rebuilt.Settled(),
	}
	if exists {
		view := newCapperStatsView(stored)
		result.Stored = &view
		result.Drift = !stored.Equal(rebuilt)
	}
	return result, rebuilt, nil
}
