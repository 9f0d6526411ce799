package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/riskibarqy/odds-grading/internal/domain/settlement"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type CLVConfig struct {
	// ConsensusProvider is preferred when it has a closing row; otherwise the
	// smallest provider id with one is used.
	ConsensusProvider string
	BackfillLimit     int
	// CentsPerPoint values line movement on spreads and totals. Zero means
	// settlement.DefaultCentsPerPoint.
	CentsPerPoint decimal.Decimal
}

type BackfillCLVSummary struct {
	Candidates int      `json:"candidates"`
	Updated    int      `json:"updated"`
	NoClosing  int      `json:"noClosing"`
	Errors     []string `json:"errors"`
}

type CLVCalculator struct {
	snapshots oddssnapshot.Repository
	picks     pick.Repository
	cfg       CLVConfig
	logger    *logging.Logger
}

func NewCLVCalculator(snapshots oddssnapshot.Repository, picks pick.Repository, cfg CLVConfig, logger *logging.Logger) *CLVCalculator {
	if logger == nil {
		logger = logging.Default()
	}
	cfg.ConsensusProvider = strings.TrimSpace(cfg.ConsensusProvider)
	if cfg.BackfillLimit <= 0 {
		cfg.BackfillLimit = 500
	}
	if !cfg.CentsPerPoint.IsPositive() {
		cfg.CentsPerPoint = settlement.DefaultCentsPerPoint
	}
	return &CLVCalculator{snapshots: snapshots, picks: picks, cfg: cfg, logger: logger}
}

// ComputeCLV returns the pick's closing line value in cents, or nil when the
// game has no closing line for the picked market yet. Nil is not an error.
// A spread or total that moved counts the points beaten as well as price.
func (c *CLVCalculator) ComputeCLV(ctx context.Context, p pick.Pick) (*decimal.Decimal, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CLVCalculator.ComputeCLV", attribute.String("pick.id", p.ID))
	defer span.End()

	if c == nil || c.snapshots == nil {
		return nil, nil
	}

	closing, err := c.snapshots.ClosingFor(ctx, p.GameID)
	if err != nil {
		return nil, fmt.Errorf("load closing snapshots game=%s: %w", p.GameID, err)
	}
	selected, ok := settlement.SelectClosing(closing, c.cfg.ConsensusProvider)
	if !ok {
		return nil, nil
	}
	cents, ok, err := settlement.PickCLV(p, selected, c.cfg.CentsPerPoint)
	if err != nil {
		return nil, fmt.Errorf("%w: pick %s clv: %w", ErrInvalidInput, p.ID, err)
	}
	if !ok {
		return nil, nil
	}
	return &cents, nil
}

// BackfillCLV fills CLV on settled picks graded before their closing line
// was recorded.
func (c *CLVCalculator) BackfillCLV(ctx context.Context, limit int) (BackfillCLVSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CLVCalculator.BackfillCLV", attribute.Int("clv.limit", limit))
	defer span.End()

	if c.picks == nil || c.snapshots == nil {
		return BackfillCLVSummary{}, fmt.Errorf("%w: clv backfill is not configured", ErrDependencyUnavailable)
	}
	if limit <= 0 || limit > c.cfg.BackfillLimit {
		limit = c.cfg.BackfillLimit
	}

	candidates, err := c.picks.ListSettledWithoutCLV(ctx, limit)
	if err != nil {
		return BackfillCLVSummary{}, fmt.Errorf("list settled picks without clv: %w", err)
	}

	out := BackfillCLVSummary{Candidates: len(candidates), Errors: []string{}}
	for _, item := range candidates {
		if ctx.Err() != nil {
			out.Errors = append(out.Errors, ctx.Err().Error())
			break
		}

		clv, err := c.ComputeCLV(ctx, item)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("pick %s: %v", item.ID, err))
			continue
		}
		if clv == nil {
			out.NoClosing++
			continue
		}
		if err := c.picks.SetCLV(ctx, item.ID, *clv); err != nil {
			if errors.Is(err, pick.ErrNotFound) {
				c.logger.WarnContext(ctx, "pick vanished during clv backfill", "pick_id", item.ID)
			}
			out.Errors = append(out.Errors, fmt.Sprintf("pick %s: %v", item.ID, err))
			continue
		}
		out.Updated++
	}

	c.logger.InfoContext(ctx, "clv backfill finished",
		"candidates", out.Candidates,
		"updated", out.Updated,
		"no_closing", out.NoClosing,
		"errors", len(out.Errors),
	)
	return out, nil
}
