package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/odds-grading/internal/domain/capper"
	"github.com/riskibarqy/odds-grading/internal/domain/game"
	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/riskibarqy/odds-grading/internal/domain/settlement"
	"github.com/riskibarqy/odds-grading/internal/platform/cache"
	"github.com/riskibarqy/odds-grading/internal/platform/id"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// PickSettledEvent is emitted once per pick that this run moved out of pending.
type PickSettledEvent struct {
	RunID         string           `json:"runId"`
	PickID        string           `json:"pickId"`
	CapperID      string           `json:"capperId"`
	GameID        string           `json:"gameId"`
	Sport         string           `json:"sport"`
	Status        pick.Status      `json:"status"`
	ProfitLoss    decimal.Decimal  `json:"profitLoss"`
	CLV           *decimal.Decimal `json:"clv"`
	HomeScore     int              `json:"homeScore"`
	AwayScore     int              `json:"awayScore"`
	SettledAt     time.Time        `json:"settledAt"`
	CurrentStreak int              `json:"currentStreak"`
	Units         decimal.Decimal  `json:"units"`
}

type SettlementPublisher interface {
	PublishSettled(ctx context.Context, events []PickSettledEvent) error
}

type noopSettlementPublisher struct{}

func (noopSettlementPublisher) PublishSettled(context.Context, []PickSettledEvent) error {
	return nil
}

type GradingConfig struct {
	Workers    int
	BatchLimit int
	RunTimeout time.Duration
	// NotFinalHold is how long after kickoff a game without a final score
	// keeps the capper's later picks pending. Past it the game is treated as
	// postponed and stops holding the queue.
	NotFinalHold time.Duration
}

type UnsettleablePick struct {
	PickID string `json:"pickId"`
	Reason string `json:"reason"`
}

type GradeSummary struct {
	RunID        string             `json:"runId"`
	PendingPicks int                `json:"pendingPicks"`
	Graded       int                `json:"graded"`
	Failed       int                `json:"failed"`
	NotFinal     int                `json:"notFinal"`
	Skipped      int                `json:"skipped"`
	Deferred     int                `json:"deferred"`
	HeldBack     int                `json:"heldBack"`
	Cappers      int                `json:"cappers"`
	DurationMs   int64              `json:"durationMs"`
	Unsettleable []UnsettleablePick `json:"unsettleable"`
	Errors       []string           `json:"errors"`
}

type pickOutcome int

const (
	outcomeGraded pickOutcome = iota
	outcomeFailed
	outcomeUnsettleable
	outcomeNotFinal
	outcomeSkipped
	outcomeDeferred
)

type GradingService struct {
	picks     pick.Repository
	cappers   capper.Repository
	scores    []ScoreProvider
	clv       *CLVCalculator
	engine    settlement.Engine
	finals    *cache.Store[game.FinalScore]
	publisher SettlementPublisher
	ids       id.Generator
	metrics   Metrics
	cfg       GradingConfig
	logger    *logging.Logger
	now       func() time.Time
}

func NewGradingService(
	picks pick.Repository,
	cappers capper.Repository,
	scores []ScoreProvider,
	clv *CLVCalculator,
	engine settlement.Engine,
	finals *cache.Store[game.FinalScore],
	publisher SettlementPublisher,
	ids id.Generator,
	metrics Metrics,
	cfg GradingConfig,
	logger *logging.Logger,
) *GradingService {
	if finals == nil {
		finals = cache.NewStore[game.FinalScore](4096, 12*time.Hour)
	}
	if publisher == nil {
		publisher = noopSettlementPublisher{}
	}
	if ids == nil {
		ids = id.NewUUIDGenerator()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 500
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	if cfg.NotFinalHold <= 0 {
		cfg.NotFinalHold = 72 * time.Hour
	}

	return &GradingService{
		picks:     picks,
		cappers:   cappers,
		scores:    scores,
		clv:       clv,
		engine:    engine,
		finals:    finals,
		publisher: publisher,
		ids:       ids,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Grade settles every pending pick whose game has a final score. Picks of
// one capper are applied in game order on a single worker; different cappers
// run in parallel. Re-running over the same picks is a no-op because each
// settlement is a compare-and-set on the pending status.
func (s *GradingService) Grade(ctx context.Context) (GradeSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GradingService.Grade")
	defer span.End()

	if s.picks == nil || s.cappers == nil {
		return GradeSummary{}, fmt.Errorf("%w: grading is not configured", ErrDependencyUnavailable)
	}

	start := s.now()
	runID, err := s.ids.NewID()
	if err != nil {
		return GradeSummary{}, fmt.Errorf("generate grading run id: %w", err)
	}
	span.SetAttributes(attribute.String("grading.run_id", runID))

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	pending, err := s.picks.ListPendingConcluded(runCtx, start.UTC(), s.cfg.BatchLimit)
	if err != nil {
		recordSpanError(span, err)
		return GradeSummary{}, fmt.Errorf("list pending picks: %w", err)
	}

	summary := GradeSummary{
		RunID:        runID,
		PendingPicks: len(pending),
		Unsettleable: []UnsettleablePick{},
		Errors:       []string{},
	}
	if len(pending) == 0 {
		summary.DurationMs = s.now().Sub(start).Milliseconds()
		return summary, nil
	}

	finals := s.loadFinals(runCtx, pending)
	groups := groupByCapper(pending)
	summary.Cappers = len(groups)

	var (
		graded   atomic.Int32
		failed   atomic.Int32
		notFinal atomic.Int32
		skipped  atomic.Int32
		deferred atomic.Int32
		heldBack atomic.Int32

		mu     sync.Mutex
		events = make([]PickSettledEvent, 0, len(pending))
	)

	pool, err := ants.NewPool(normalizeGradeWorkerCount(s.cfg.Workers, len(groups)))
	if err != nil {
		return GradeSummary{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for _, group := range groups {
		group := group
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			// a pick left pending ahead of later games blocks the rest of
			// the group so stats are applied in game order
			blocked := false
			for _, item := range group.picks {
				if runCtx.Err() != nil {
					deferred.Add(1)
					continue
				}
				if blocked {
					heldBack.Add(1)
					continue
				}

				outcome, event, reason := s.gradePick(runCtx, runID, item, finals)
				switch outcome {
				case outcomeGraded:
					graded.Add(1)
					mu.Lock()
					events = append(events, event)
					mu.Unlock()
				case outcomeUnsettleable:
					failed.Add(1)
					mu.Lock()
					summary.Unsettleable = append(summary.Unsettleable, UnsettleablePick{PickID: item.ID, Reason: reason})
					mu.Unlock()
				case outcomeFailed:
					failed.Add(1)
					mu.Lock()
					summary.Errors = append(summary.Errors, fmt.Sprintf("pick %s: %s", item.ID, reason))
					mu.Unlock()
					blocked = true
				case outcomeNotFinal:
					notFinal.Add(1)
					blocked = s.holdsQueue(item, start)
				case outcomeSkipped:
					skipped.Add(1)
				case outcomeDeferred:
					deferred.Add(1)
					blocked = true
				}
			}
		}); err != nil {
			workers.Done()
			return GradeSummary{}, fmt.Errorf("submit capper to worker pool: %w", err)
		}
	}
	workers.Wait()

	sort.Slice(summary.Unsettleable, func(i, j int) bool {
		return summary.Unsettleable[i].PickID < summary.Unsettleable[j].PickID
	})
	sort.Strings(summary.Errors)

	if len(events) > 0 {
		sort.Slice(events, func(i, j int) bool {
			return events[i].PickID < events[j].PickID
		})
		if err := s.publisher.PublishSettled(ctx, events); err != nil {
			s.logger.WarnContext(ctx, "publish settled picks failed", "run_id", runID, "count", len(events), "error", err)
		}
	}

	summary.Graded = int(graded.Load())
	summary.Failed = int(failed.Load())
	summary.NotFinal = int(notFinal.Load())
	summary.Skipped = int(skipped.Load())
	summary.Deferred = int(deferred.Load())
	summary.HeldBack = int(heldBack.Load())

	elapsed := s.now().Sub(start)
	summary.DurationMs = elapsed.Milliseconds()
	s.metrics.JobDuration("grade_picks", elapsed)
	s.logger.InfoContext(ctx, "grading run finished",
		"run_id", runID,
		"pending", summary.PendingPicks,
		"graded", summary.Graded,
		"failed", summary.Failed,
		"not_final", summary.NotFinal,
		"skipped", summary.Skipped,
		"deferred", summary.Deferred,
		"held_back", summary.HeldBack,
		"duration_ms", summary.DurationMs,
	)
	return summary, nil
}

func (s *GradingService) gradePick(ctx context.Context, runID string, item pick.Pick, finals map[string]game.FinalScore) (pickOutcome, PickSettledEvent, string) {
	final, ok := finals[item.GameID]
	if !ok || !final.Completed {
		return outcomeNotFinal, PickSettledEvent{}, ErrGameNotFinal.Error()
	}

	sport := item.Sport
	if strings.TrimSpace(sport) == "" {
		sport = final.Sport
	}
	result, err := s.engine.Grade(settlement.Input{
		Sport:     sport,
		BetType:   item.BetType,
		Selection: item.Selection,
		Line:      item.Line,
		Price:     item.Price,
		Stake:     item.Stake,
		HomeScore: final.HomeScore,
		AwayScore: final.AwayScore,
	})
	if err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrUnsettleablePick, err)
		s.metrics.PickUnsettleable(unsettleableReason(err))
		s.logger.WarnContext(ctx, "pick cannot be settled", "pick_id", item.ID, "capper_id", item.CapperID, "game_id", item.GameID, "error", wrapped)
		return outcomeUnsettleable, PickSettledEvent{}, wrapped.Error()
	}

	var clv *decimal.Decimal
	if s.clv != nil {
		clv, err = s.clv.ComputeCLV(ctx, item)
		if err != nil {
			s.logger.WarnContext(ctx, "compute clv failed, settling without it", "pick_id", item.ID, "game_id", item.GameID, "error", err)
			clv = nil
		}
	}

	settledAt := s.now().UTC()
	applied, stats, err := s.cappers.SettleAndApply(ctx, item.CapperID, pick.Settlement{
		PickID:     item.ID,
		Status:     result.Status,
		ProfitLoss: result.ProfitLoss,
		CLV:        clv,
		SettledAt:  settledAt,
	})
	if err != nil {
		if ctx.Err() != nil {
			return outcomeDeferred, PickSettledEvent{}, ctx.Err().Error()
		}
		s.logger.ErrorContext(ctx, "settle pick failed", "pick_id", item.ID, "capper_id", item.CapperID, "error", err)
		return outcomeFailed, PickSettledEvent{}, err.Error()
	}
	if !applied {
		s.logger.DebugContext(ctx, "pick already settled by another run", "pick_id", item.ID)
		return outcomeSkipped, PickSettledEvent{}, ""
	}

	s.metrics.PickGraded(sport, string(result.Status))
	return outcomeGraded, PickSettledEvent{
		RunID:         runID,
		PickID:        item.ID,
		CapperID:      item.CapperID,
		GameID:        item.GameID,
		Sport:         sport,
		Status:        result.Status,
		ProfitLoss:    result.ProfitLoss,
		CLV:           clv,
		HomeScore:     final.HomeScore,
		AwayScore:     final.AwayScore,
		SettledAt:     settledAt,
		CurrentStreak: stats.CurrentStreak,
		Units:         stats.Units,
	}, ""
}

type scoreLookup struct {
	sport string
	date  time.Time
}

// loadFinals resolves completed scores for every game referenced by the
// picks. Completed finals never change, so they are memoised across runs;
// each (sport, date) is fetched at most once per run, walking the score
// providers in order until every game of that date is found.
func (s *GradingService) loadFinals(ctx context.Context, items []pick.Pick) map[string]game.FinalScore {
	out := make(map[string]game.FinalScore, len(items))
	missing := make(map[scoreLookup]map[string]struct{})

	for _, item := range items {
		if _, ok := out[item.GameID]; ok {
			continue
		}
		if final, ok := s.finals.Get(ctx, item.GameID); ok {
			out[item.GameID] = final
			continue
		}
		sport := strings.ToLower(strings.TrimSpace(item.Sport))
		if sport == "" {
			sport = sportFromGameID(item.GameID)
		}
		lookup := scoreLookup{sport: sport, date: game.ScheduleDate(item.GameStartsAt)}
		if missing[lookup] == nil {
			missing[lookup] = make(map[string]struct{})
		}
		missing[lookup][item.GameID] = struct{}{}
	}

	lookups := make([]scoreLookup, 0, len(missing))
	for lookup := range missing {
		lookups = append(lookups, lookup)
	}
	sort.Slice(lookups, func(i, j int) bool {
		if !lookups[i].date.Equal(lookups[j].date) {
			return lookups[i].date.Before(lookups[j].date)
		}
		return lookups[i].sport < lookups[j].sport
	})

	for _, lookup := range lookups {
		wanted := missing[lookup]
		for _, provider := range s.scores {
			if len(wanted) == 0 || ctx.Err() != nil {
				break
			}
			finals, err := provider.FetchFinalScores(ctx, lookup.sport, lookup.date)
			if err != nil {
				s.logger.WarnContext(ctx, "fetch final scores failed",
					"provider", provider.Name(),
					"sport", lookup.sport,
					"date", lookup.date.Format("2006-01-02"),
					"error", err,
				)
				continue
			}
			for _, final := range finals {
				if !final.Completed {
					continue
				}
				s.finals.Set(ctx, final.GameID, final)
				if _, ok := wanted[final.GameID]; ok {
					out[final.GameID] = final
					delete(wanted, final.GameID)
				}
			}
		}
	}
	return out
}

type capperGroup struct {
	capperID string
	picks    []pick.Pick
}

func groupByCapper(items []pick.Pick) []capperGroup {
	byCapper := make(map[string][]pick.Pick)
	for _, item := range items {
		byCapper[item.CapperID] = append(byCapper[item.CapperID], item)
	}

	out := make([]capperGroup, 0, len(byCapper))
	for capperID, picks := range byCapper {
		sort.SliceStable(picks, func(i, j int) bool {
			if !picks[i].GameStartsAt.Equal(picks[j].GameStartsAt) {
				return picks[i].GameStartsAt.Before(picks[j].GameStartsAt)
			}
			if !picks[i].CreatedAt.Equal(picks[j].CreatedAt) {
				return picks[i].CreatedAt.Before(picks[j].CreatedAt)
			}
			return picks[i].ID < picks[j].ID
		})
		out = append(out, capperGroup{capperID: capperID, picks: picks})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].capperID < out[j].capperID
	})
	return out
}

// holdsQueue reports whether a not-final pick still blocks the capper's
// later picks. Games far past kickoff without a final are postponed or
// abandoned and are skipped over.
func (s *GradingService) holdsQueue(item pick.Pick, now time.Time) bool {
	return now.Sub(item.GameStartsAt) < s.cfg.NotFinalHold
}

func normalizeGradeWorkerCount(requested, groups int) int {
	if requested <= 0 {
		requested = 1
	}
	if groups > 0 && requested > groups {
		return groups
	}
	return requested
}

func sportFromGameID(gameID string) string {
	if idx := strings.IndexByte(gameID, ':'); idx > 0 {
		return gameID[:idx]
	}
	return ""
}

func unsettleableReason(err error) string {
	switch {
	case errors.Is(err, settlement.ErrUnknownBetType):
		return "unknown_bet_type"
	case errors.Is(err, settlement.ErrMissingLine):
		return "missing_line"
	case errors.Is(err, settlement.ErrInvalidSelection):
		return "invalid_selection"
	case errors.Is(err, settlement.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, settlement.ErrInvalidStake):
		return "invalid_stake"
	case errors.Is(err, settlement.ErrInvalidScore):
		return "invalid_score"
	case errors.Is(err, settlement.ErrTieUndefined):
		return "tie_undefined"
	default:
		return "other"
	}
}
