package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/odds-grading/internal/domain/game"
	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	"github.com/riskibarqy/odds-grading/internal/domain/season"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"
)

const maxSnapshotBatchSize = 100

// SnapshotPublisher fans freshly stored snapshots out to live consumers.
// Failures are logged and never fail the run.
type SnapshotPublisher interface {
	PublishSnapshots(ctx context.Context, sport string, items []oddssnapshot.Snapshot) error
}

type noopSnapshotPublisher struct{}

func (noopSnapshotPublisher) PublishSnapshots(context.Context, string, []oddssnapshot.Snapshot) error {
	return nil
}

type CollectorConfig struct {
	Sports          []string
	BatchSize       int
	RunTimeout      time.Duration
	ProviderTimeout time.Duration
	ClosingLimit    int
}

type CollectInput struct {
	Sports []string
	Date   time.Time
}

type SportCollectResult struct {
	Saved          int      `json:"saved"`
	Duplicates     int      `json:"duplicates"`
	Openings       int      `json:"openings"`
	Errors         []string `json:"errors"`
	Provider       string   `json:"provider,omitempty"`
	Fallback       bool     `json:"fallback"`
	SkippedRecords int      `json:"skippedRecords"`
	Skipped        bool     `json:"skipped,omitempty"`
}

type CollectSummary struct {
	Sports        map[string]SportCollectResult `json:"sports"`
	Total         int                           `json:"total"`
	ClosingMarked int                           `json:"closingMarked"`
	CapturedAt    time.Time                     `json:"capturedAt"`
	DurationMs    int64                         `json:"durationMs"`
}

type MarkClosingSummary struct {
	Candidates int      `json:"candidates"`
	Marked     int      `json:"marked"`
	Errors     []string `json:"errors"`
}

type SnapshotCollector struct {
	primary   OddsProvider
	backup    OddsProvider
	store     oddssnapshot.Repository
	calendar  season.Calendar
	publisher SnapshotPublisher
	metrics   Metrics
	cfg       CollectorConfig
	logger    *logging.Logger
	now       func() time.Time
}

func NewSnapshotCollector(
	primary OddsProvider,
	backup OddsProvider,
	store oddssnapshot.Repository,
	calendar season.Calendar,
	publisher SnapshotPublisher,
	metrics Metrics,
	cfg CollectorConfig,
	logger *logging.Logger,
) *SnapshotCollector {
	if publisher == nil {
		publisher = noopSnapshotPublisher{}
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxSnapshotBatchSize {
		cfg.BatchSize = maxSnapshotBatchSize
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 20 * time.Second
	}
	if cfg.ClosingLimit <= 0 {
		cfg.ClosingLimit = 500
	}

	return &SnapshotCollector{
		primary:   primary,
		backup:    backup,
		store:     store,
		calendar:  calendar,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Collect polls every in-season sport in parallel and appends what it gets.
// A failure in one sport never affects another; the error return is reserved
// for unusable input.
func (s *SnapshotCollector) Collect(ctx context.Context, input CollectInput) (CollectSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotCollector.Collect")
	defer span.End()

	if s.primary == nil || s.store == nil {
		return CollectSummary{}, fmt.Errorf("%w: snapshot collector is not configured", ErrDependencyUnavailable)
	}

	sports, err := normalizeSports(input.Sports, s.cfg.Sports)
	if err != nil {
		return CollectSummary{}, err
	}

	start := s.now()
	capturedAt := start.UTC().Truncate(time.Second)
	date := input.Date
	if date.IsZero() {
		date = capturedAt
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	summary := CollectSummary{
		Sports:     make(map[string]SportCollectResult, len(sports)),
		CapturedAt: capturedAt,
	}

	var mu sync.Mutex
	var wg conc.WaitGroup
	for _, sport := range sports {
		sport := sport
		if !s.calendar.InSeason(sport, date) {
			mu.Lock()
			summary.Sports[sport] = SportCollectResult{Errors: []string{}, Skipped: true}
			mu.Unlock()
			continue
		}

		wg.Go(func() {
			var res SportCollectResult
			var catcher panics.Catcher
			catcher.Try(func() {
				res = s.collectSport(runCtx, sport, date, capturedAt)
			})
			if recovered := catcher.Recovered(); recovered != nil {
				s.logger.ErrorContext(runCtx, "snapshot collection panicked", "sport", sport, "panic", fmt.Sprint(recovered.Value))
				res = SportCollectResult{Errors: []string{fmt.Sprintf("panic: %v", recovered.Value)}}
			}

			mu.Lock()
			summary.Sports[sport] = res
			mu.Unlock()
		})
	}
	wg.Wait()

	for _, res := range summary.Sports {
		summary.Total += res.Saved
	}

	// closing marks only need the store, so they still run when every provider failed
	if runCtx.Err() == nil {
		closing, err := s.MarkClosingLines(runCtx, capturedAt)
		if err != nil {
			s.logger.WarnContext(runCtx, "mark closing lines failed", "error", err)
		}
		summary.ClosingMarked = closing.Marked
	}

	elapsed := s.now().Sub(start)
	summary.DurationMs = elapsed.Milliseconds()
	s.metrics.JobDuration("collect_snapshots", elapsed)
	s.logger.InfoContext(ctx, "snapshot collection finished",
		"sports", len(summary.Sports),
		"total", summary.Total,
		"closing_marked", summary.ClosingMarked,
		"duration_ms", summary.DurationMs,
	)
	return summary, nil
}

func (s *SnapshotCollector) collectSport(ctx context.Context, sport string, date, capturedAt time.Time) SportCollectResult {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotCollector.collectSport", attribute.String("sport", sport))
	defer span.End()

	res := SportCollectResult{Errors: []string{}}

	fetched, provider, fallback, errs := s.fetchWithFailover(ctx, sport, date)
	res.Provider = provider
	res.Fallback = fallback
	res.Errors = append(res.Errors, errs...)
	res.SkippedRecords = fetched.Skipped

	snapshots, dropped := buildSnapshots(sport, fetched.Games, capturedAt)
	res.SkippedRecords += dropped
	if res.SkippedRecords > 0 {
		s.metrics.RecordsSkipped(provider, sport, res.SkippedRecords)
	}
	if len(snapshots) == 0 {
		return res
	}

	s.logNewPairs(ctx, sport, snapshots)

	saved := make([]oddssnapshot.Snapshot, 0, len(snapshots))
	for chunkIdx, chunk := range chunkSnapshots(snapshots, s.cfg.BatchSize) {
		appended, err := s.store.AppendBatch(ctx, chunk)
		if err != nil {
			wrapped := fmt.Errorf("%w: batch %d (%d rows): %v", ErrStoreWrite, chunkIdx, len(chunk), err)
			res.Errors = append(res.Errors, wrapped.Error())
			s.metrics.StoreWriteFailure(sport)
			s.logger.ErrorContext(ctx, "append snapshot batch failed", "sport", sport, "batch", chunkIdx, "rows", len(chunk), "error", err)
			continue
		}
		res.Saved += appended.Inserted
		res.Duplicates += appended.Duplicates
		res.Openings += appended.Openings
		saved = append(saved, chunk...)
	}

	s.metrics.SnapshotsSaved(sport, provider, res.Saved, res.Openings)

	if len(saved) > 0 {
		if err := s.publisher.PublishSnapshots(ctx, sport, saved); err != nil {
			s.logger.WarnContext(ctx, "publish snapshots failed", "sport", sport, "count", len(saved), "error", err)
		}
	}
	return res
}

// fetchWithFailover asks the primary first and the backup only when the
// primary is empty or unavailable. Each call gets its own timeout derived from
// the run context, so a hung primary cannot eat the backup's budget.
func (s *SnapshotCollector) fetchWithFailover(ctx context.Context, sport string, date time.Time) (FetchResult, string, bool, []string) {
	errs := make([]string, 0, 2)

	result, err := s.fetchOnce(ctx, s.primary, sport, date)
	if err == nil {
		return result, s.primary.Name(), false, errs
	}
	if !errors.Is(err, ErrProviderEmpty) {
		errs = append(errs, err.Error())
		s.metrics.ProviderFailure(s.primary.Name(), sport, failureReason(err))
		s.logger.WarnContext(ctx, "primary odds provider failed", "provider", s.primary.Name(), "sport", sport, "error", err)
	}

	if s.backup == nil || ctx.Err() != nil {
		return FetchResult{}, s.primary.Name(), false, errs
	}

	s.metrics.ProviderFallback(sport)
	result, err = s.fetchOnce(ctx, s.backup, sport, date)
	if err == nil {
		return result, s.backup.Name(), true, errs
	}
	if !errors.Is(err, ErrProviderEmpty) {
		errs = append(errs, err.Error())
		s.metrics.ProviderFailure(s.backup.Name(), sport, failureReason(err))
		s.logger.WarnContext(ctx, "backup odds provider failed", "provider", s.backup.Name(), "sport", sport, "error", err)
	}
	return FetchResult{}, s.backup.Name(), true, errs
}

func (s *SnapshotCollector) fetchOnce(ctx context.Context, provider OddsProvider, sport string, date time.Time) (FetchResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	result, err := provider.FetchOdds(callCtx, sport, date)
	if err != nil {
		if errors.Is(err, ErrProviderEmpty) || errors.Is(err, ErrProviderUnavailable) {
			return FetchResult{}, err
		}
		return FetchResult{}, fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, provider.Name(), err)
	}
	if len(result.Games) == 0 {
		return result, fmt.Errorf("%w: %s", ErrProviderEmpty, provider.Name())
	}
	return result, nil
}

// logNewPairs runs the advisory existence check. The store assigns the
// opening flag itself; this only reports how many pairs are new.
func (s *SnapshotCollector) logNewPairs(ctx context.Context, sport string, snapshots []oddssnapshot.Snapshot) {
	keys := make([]oddssnapshot.Key, 0, len(snapshots))
	for _, item := range snapshots {
		keys = append(keys, item.Key())
	}
	existing, err := s.store.ExistingOpenings(ctx, keys)
	if err != nil {
		s.logger.WarnContext(ctx, "opening pre-check failed", "sport", sport, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "opening pre-check", "sport", sport, "pairs", len(keys), "new_pairs", len(keys)-len(existing))
}

// MarkClosingLines flags the latest snapshot of every pair whose game has
// started. Snapshots are only captured before kickoff, so the latest one is
// the closing line.
func (s *SnapshotCollector) MarkClosingLines(ctx context.Context, now time.Time) (MarkClosingSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotCollector.MarkClosingLines")
	defer span.End()

	if s.store == nil {
		return MarkClosingSummary{}, fmt.Errorf("%w: snapshot store is not configured", ErrDependencyUnavailable)
	}
	if now.IsZero() {
		now = s.now()
	}

	keys, err := s.store.ListStartedWithoutClosing(ctx, now.UTC(), s.cfg.ClosingLimit)
	if err != nil {
		return MarkClosingSummary{}, fmt.Errorf("list started games without closing: %w", err)
	}

	out := MarkClosingSummary{Candidates: len(keys), Errors: []string{}}
	for _, key := range keys {
		if ctx.Err() != nil {
			out.Errors = append(out.Errors, ctx.Err().Error())
			break
		}
		ok, err := s.store.MarkClosing(ctx, key)
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
			s.logger.WarnContext(ctx, "mark closing failed", "game_id", key.GameID, "provider", key.Provider, "error", err)
			continue
		}
		if ok {
			out.Marked++
		}
	}
	return out, nil
}

// buildSnapshots normalises provider games into snapshots. Games already
// started, or missing teams or every market, are dropped and counted.
func buildSnapshots(sport string, games []RawGameOdds, capturedAt time.Time) ([]oddssnapshot.Snapshot, int) {
	out := make([]oddssnapshot.Snapshot, 0, len(games))
	dropped := 0
	for _, item := range games {
		snapshot, ok := snapshotFromRaw(sport, item, capturedAt)
		if !ok {
			dropped++
			continue
		}
		out = append(out, snapshot)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].GameID != out[j].GameID {
			return out[i].GameID < out[j].GameID
		}
		return out[i].Provider < out[j].Provider
	})
	return out, dropped
}

func snapshotFromRaw(sport string, item RawGameOdds, capturedAt time.Time) (oddssnapshot.Snapshot, bool) {
	home := strings.TrimSpace(item.HomeTeam)
	away := strings.TrimSpace(item.AwayTeam)
	provider := strings.TrimSpace(item.Provider)
	if home == "" || away == "" || provider == "" || item.ScheduledAt.IsZero() {
		return oddssnapshot.Snapshot{}, false
	}
	if !item.ScheduledAt.After(capturedAt) {
		return oddssnapshot.Snapshot{}, false
	}

	out := oddssnapshot.Snapshot{
		GameID:          game.CanonicalID(sport, item.ScheduledAt, home, away),
		Provider:        provider,
		ProviderEventID: item.EventID,
		Sport:           sport,
		ScheduledAt:     item.ScheduledAt.UTC(),
		HomeTeam:        home,
		AwayTeam:        away,
		CapturedAt:      capturedAt,
	}
	if item.Spread != nil {
		line := item.Spread.HomeLine
		out.Spread = &line
		out.SpreadHomePrice = item.Spread.HomePrice
		out.SpreadAwayPrice = item.Spread.AwayPrice
	}
	if item.Total != nil {
		line := item.Total.Line
		out.Total = &line
		out.OverPrice = item.Total.OverPrice
		out.UnderPrice = item.Total.UnderPrice
	}
	if item.Moneyline != nil {
		out.HomeMoneyline = item.Moneyline.Home
		out.AwayMoneyline = item.Moneyline.Away
	}
	if !out.HasMarkets() {
		return oddssnapshot.Snapshot{}, false
	}
	return out, true
}

func chunkSnapshots(items []oddssnapshot.Snapshot, size int) [][]oddssnapshot.Snapshot {
	if size <= 0 {
		size = maxSnapshotBatchSize
	}
	chunks := make([][]oddssnapshot.Snapshot, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func normalizeSports(requested, configured []string) ([]string, error) {
	allowed := make(map[string]struct{}, len(configured))
	for _, sport := range configured {
		allowed[strings.ToLower(strings.TrimSpace(sport))] = struct{}{}
	}

	source := requested
	if len(source) == 0 {
		source = configured
	}

	seen := make(map[string]struct{}, len(source))
	out := make([]string, 0, len(source))
	for _, raw := range source {
		sport := strings.ToLower(strings.TrimSpace(raw))
		if sport == "" {
			continue
		}
		if _, ok := allowed[sport]; len(allowed) > 0 && !ok {
			return nil, fmt.Errorf("%w: sport %q is not enabled", ErrInvalidInput, raw)
		}
		if _, ok := seen[sport]; ok {
			continue
		}
		seen[sport] = struct{}{}
		out = append(out, sport)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no sports to collect", ErrInvalidInput)
	}
	sort.Strings(out)
	return out, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrMalformedRecord):
		return "malformed"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
