package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/odds-grading/internal/domain/game"
	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/riskibarqy/odds-grading/internal/domain/settlement"
	"github.com/riskibarqy/odds-grading/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/odds-grading/internal/platform/cache"
	"github.com/riskibarqy/odds-grading/internal/platform/id"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/shopspring/decimal"
)

type fakeScoreProvider struct {
	name   string
	finals []game.FinalScore
	err    error

	mu    sync.Mutex
	calls int
}

func (p *fakeScoreProvider) Name() string { return p.name }

func (p *fakeScoreProvider) FetchFinalScores(_ context.Context, sport string, _ time.Time) ([]game.FinalScore, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	out := make([]game.FinalScore, 0, len(p.finals))
	for _, item := range p.finals {
		if item.Sport == sport {
			out = append(out, item)
		}
	}
	return out, nil
}

type capturingSettlementPublisher struct {
	mu     sync.Mutex
	events []PickSettledEvent
}

func (p *capturingSettlementPublisher) PublishSettled(_ context.Context, events []PickSettledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

var gradingNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type gradingFixture struct {
	picks     *memory.PickRepository
	cappers   *memory.CapperRepository
	snapshots *memory.OddsSnapshotRepository
	publisher *capturingSettlementPublisher
	service   *GradingService
}

func newGradingFixture(t *testing.T, scores []ScoreProvider, items ...pick.Pick) gradingFixture {
	t.Helper()

	picks := memory.NewPickRepository()
	for _, item := range items {
		if err := picks.Insert(context.Background(), item); err != nil {
			t.Fatalf("insert pick %s: %v", item.ID, err)
		}
	}
	cappers := memory.NewCapperRepository(picks)
	snapshots := memory.NewOddsSnapshotRepository()
	publisher := &capturingSettlementPublisher{}
	logger := logging.NewNop()

	service := NewGradingService(
		picks,
		cappers,
		scores,
		NewCLVCalculator(snapshots, picks, CLVConfig{}, logger),
		settlement.NewEngine(settlement.DefaultTiePolicy()),
		cache.NewStore[game.FinalScore](64, time.Hour),
		publisher,
		id.Static("run-1"),
		nil,
		GradingConfig{Workers: 4},
		logger,
	)
	service.now = func() time.Time { return gradingNow }

	return gradingFixture{picks: picks, cappers: cappers, snapshots: snapshots, publisher: publisher, service: service}
}

func decimalPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func spreadPick(pickID, capperID, gameID string, selection pick.Selection, line string, startsAt time.Time) pick.Pick {
	return pick.Pick{
		ID:           pickID,
		CapperID:     capperID,
		GameID:       gameID,
		Sport:        game.SportNFL,
		BetType:      pick.BetTypeSpread,
		Selection:    selection,
		Line:         decimalPtr(line),
		Price:        -110,
		Stake:        decimal.NewFromInt(100),
		GameStartsAt: startsAt,
		Status:       pick.StatusPending,
		CreatedAt:    startsAt.Add(-24 * time.Hour),
	}
}

func nflFinal(home, away string, startsAt time.Time, homeScore, awayScore int) game.FinalScore {
	return game.FinalScore{
		GameID:      game.CanonicalID(game.SportNFL, startsAt, home, away),
		Sport:       game.SportNFL,
		HomeTeam:    home,
		AwayTeam:    away,
		HomeScore:   homeScore,
		AwayScore:   awayScore,
		Completed:   true,
		ScheduledAt: startsAt,
	}
}

func TestGradingService_Grade_SettlesInGameOrderAndTracksStreak(t *testing.T) {
	t.Parallel()

	sunday := time.Date(2026, 10, 18, 17, 0, 0, 0, time.UTC)
	thursday := time.Date(2026, 10, 16, 0, 15, 0, 0, time.UTC)

	chiefs := nflFinal("Kansas City Chiefs", "Las Vegas Raiders", thursday, 27, 20)
	bills := nflFinal("Buffalo Bills", "Miami Dolphins", sunday, 17, 24)

	scores := &fakeScoreProvider{name: "espn", finals: []game.FinalScore{chiefs, bills}}
	fx := newGradingFixture(t, []ScoreProvider{scores},
		// created first but played later
		spreadPick("p-bills", "capper-1", bills.GameID, pick.SelectionHome, "-3.5", sunday),
		spreadPick("p-chiefs", "capper-1", chiefs.GameID, pick.SelectionHome, "-3.5", thursday),
	)

	summary, err := fx.service.Grade(context.Background())
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if summary.RunID != "run-1" || summary.PendingPicks != 2 || summary.Graded != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	stats, ok, err := fx.cappers.Get(context.Background(), "capper-1")
	if err != nil || !ok {
		t.Fatalf("get capper stats ok=%v err=%v", ok, err)
	}
	if stats.Wins != 1 || stats.Losses != 1 {
		t.Fatalf("unexpected record: %+v", stats)
	}
	// chiefs win first, bills loss last
	if stats.CurrentStreak != -1 {
		t.Fatalf("unexpected streak got=%d want=-1", stats.CurrentStreak)
	}
	if !stats.Units.Equal(decimal.RequireFromString("-9.09")) {
		t.Fatalf("unexpected units got=%s want=-9.09", stats.Units)
	}

	chiefsPick, _, _ := fx.picks.GetByID(context.Background(), "p-chiefs")
	if chiefsPick.Status != pick.StatusWin || !chiefsPick.ProfitLoss.Equal(decimal.RequireFromString("90.91")) {
		t.Fatalf("unexpected chiefs pick: status=%s pl=%v", chiefsPick.Status, chiefsPick.ProfitLoss)
	}
	if chiefsPick.CLV != nil {
		t.Fatalf("clv must stay nil without a closing line, got=%s", chiefsPick.CLV)
	}

	if len(fx.publisher.events) != 2 {
		t.Fatalf("unexpected published events got=%d want=2", len(fx.publisher.events))
	}
}

func TestGradingService_Grade_RerunDoesNotSettleTwice(t *testing.T) {
	t.Parallel()

	kickoff := time.Date(2026, 10, 18, 17, 0, 0, 0, time.UTC)
	final := nflFinal("Detroit Lions", "Minnesota Vikings", kickoff, 31, 10)
	fx := newGradingFixture(t, []ScoreProvider{&fakeScoreProvider{name: "espn", finals: []game.FinalScore{final}}},
		spreadPick("p-1", "capper-1", final.GameID, pick.SelectionHome, "-7", kickoff),
		spreadPick("p-2", "capper-2", final.GameID, pick.SelectionAway, "7", kickoff),
	)

	var wg sync.WaitGroup
	results := make([]GradeSummary, 4)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := fx.service.Grade(context.Background())
			if err != nil {
				t.Errorf("grade run %d: %v", i, err)
				return
			}
			results[i] = summary
		}()
	}
	wg.Wait()

	graded := 0
	for _, summary := range results {
		graded += summary.Graded
	}
	if graded != 2 {
		t.Fatalf("each pick must be graded exactly once across runs, graded=%d", graded)
	}

	for _, capperID := range []string{"capper-1", "capper-2"} {
		stats, _, _ := fx.cappers.Get(context.Background(), capperID)
		if stats.Settled() != 1 {
			t.Fatalf("capper %s settled count got=%d want=1", capperID, stats.Settled())
		}
	}
}

func TestGradingService_Grade_LeavesUnfinishedGamesPending(t *testing.T) {
	t.Parallel()

	kickoff := time.Date(2026, 10, 19, 0, 15, 0, 0, time.UTC)
	live := nflFinal("Seattle Seahawks", "Los Angeles Rams", kickoff, 14, 10)
	live.Completed = false

	fx := newGradingFixture(t, []ScoreProvider{&fakeScoreProvider{name: "espn", finals: []game.FinalScore{live}}},
		spreadPick("p-live", "capper-1", live.GameID, pick.SelectionHome, "-2.5", kickoff),
	)

	summary, err := fx.service.Grade(context.Background())
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if summary.NotFinal != 1 || summary.Graded != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	item, _, _ := fx.picks.GetByID(context.Background(), "p-live")
	if item.Status != pick.StatusPending {
		t.Fatalf("unexpected status got=%s want=pending", item.Status)
	}
}

func TestGradingService_Grade_EarlierGameFinalLaterKeepsStatsConsistent(t *testing.T) {
	t.Parallel()

	saturday := time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 10, 18, 17, 0, 0, 0, time.UTC)

	early := nflFinal("Green Bay Packers", "Chicago Bears", saturday, 24, 17)
	early.Completed = false
	late := nflFinal("Buffalo Bills", "Miami Dolphins", sunday, 17, 24)

	scores := &fakeScoreProvider{name: "espn", finals: []game.FinalScore{early, late}}
	fx := newGradingFixture(t, []ScoreProvider{scores},
		spreadPick("p-early", "capper-1", early.GameID, pick.SelectionHome, "-3.5", saturday),
		spreadPick("p-late", "capper-1", late.GameID, pick.SelectionHome, "-3.5", sunday),
	)

	first, err := fx.service.Grade(context.Background())
	if err != nil {
		t.Fatalf("first grade: %v", err)
	}
	if first.Graded != 0 || first.NotFinal != 1 || first.HeldBack != 1 {
		t.Fatalf("unexpected first summary: %+v", first)
	}
	held, _, _ := fx.picks.GetByID(context.Background(), "p-late")
	if held.Status != pick.StatusPending {
		t.Fatalf("later game must wait for the earlier one, got=%s", held.Status)
	}

	scores.mu.Lock()
	scores.finals[0].Completed = true
	scores.mu.Unlock()

	second, err := fx.service.Grade(context.Background())
	if err != nil {
		t.Fatalf("second grade: %v", err)
	}
	if second.Graded != 2 || second.HeldBack != 0 {
		t.Fatalf("unexpected second summary: %+v", second)
	}

	stats, _, _ := fx.cappers.Get(context.Background(), "capper-1")
	// packers win first, bills loss last
	if stats.CurrentStreak != -1 {
		t.Fatalf("unexpected streak got=%d want=-1", stats.CurrentStreak)
	}

	audit, err := NewCapperAuditService(fx.picks, fx.cappers, logging.NewNop()).Verify(context.Background(), "capper-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if audit.Drift {
		t.Fatalf("incremental stats drifted from the ledger: stored=%+v rebuilt=%+v", audit.Stored, audit.Rebuilt)
	}
}

func TestGradingService_Grade_PostponedGameStopsHoldingQueue(t *testing.T) {
	t.Parallel()

	postponedKickoff := gradingNow.Add(-5 * 24 * time.Hour)
	postponed := nflFinal("New York Jets", "New England Patriots", postponedKickoff, 0, 0)
	postponed.Completed = false
	later := nflFinal("Denver Broncos", "Los Angeles Chargers", gradingNow.Add(-20*time.Hour), 21, 20)

	fx := newGradingFixture(t, []ScoreProvider{&fakeScoreProvider{name: "espn", finals: []game.FinalScore{postponed, later}}},
		spreadPick("p-postponed", "capper-1", postponed.GameID, pick.SelectionHome, "-1", postponedKickoff),
		spreadPick("p-later", "capper-1", later.GameID, pick.SelectionAway, "3", later.ScheduledAt),
	)

	summary, err := fx.service.Grade(context.Background())
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if summary.Graded != 1 || summary.NotFinal != 1 || summary.HeldBack != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestGradingService_Grade_UnsettleablePickDoesNotBlockCapper(t *testing.T) {
	t.Parallel()

	kickoff := time.Date(2026, 10, 17, 23, 30, 0, 0, time.UTC)
	tie := game.FinalScore{
		GameID:    game.CanonicalID(game.SportNBA, kickoff, "Boston Celtics", "New York Knicks"),
		Sport:     game.SportNBA,
		HomeScore: 110,
		AwayScore: 110,
		Completed: true,
	}
	later := nflFinal("Dallas Cowboys", "Philadelphia Eagles", kickoff.Add(24*time.Hour), 20, 23)

	moneyline := pick.Pick{
		ID:           "p-tie",
		CapperID:     "capper-1",
		GameID:       tie.GameID,
		Sport:        game.SportNBA,
		BetType:      pick.BetTypeMoneyline,
		Selection:    pick.SelectionHome,
		Price:        -150,
		Stake:        decimal.NewFromInt(100),
		GameStartsAt: kickoff,
		Status:       pick.StatusPending,
		CreatedAt:    kickoff.Add(-time.Hour),
	}

	fx := newGradingFixture(t, []ScoreProvider{&fakeScoreProvider{name: "espn", finals: []game.FinalScore{tie, later}}},
		moneyline,
		spreadPick("p-eagles", "capper-1", later.GameID, pick.SelectionAway, "1.5", kickoff.Add(24*time.Hour)),
	)

	summary, err := fx.service.Grade(context.Background())
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if summary.Graded != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Unsettleable) != 1 || summary.Unsettleable[0].PickID != "p-tie" {
		t.Fatalf("unexpected unsettleable list: %+v", summary.Unsettleable)
	}

	tiePick, _, _ := fx.picks.GetByID(context.Background(), "p-tie")
	if tiePick.Status != pick.StatusPending {
		t.Fatalf("unsettleable pick must stay pending, got=%s", tiePick.Status)
	}
	eagles, _, _ := fx.picks.GetByID(context.Background(), "p-eagles")
	if eagles.Status != pick.StatusWin {
		t.Fatalf("unexpected eagles status got=%s want=win", eagles.Status)
	}
}

func TestGradingService_Grade_FallsBackToSecondScoreProviderAndMemoizes(t *testing.T) {
	t.Parallel()

	kickoff := time.Date(2026, 10, 18, 20, 25, 0, 0, time.UTC)
	final := nflFinal("San Francisco 49ers", "Arizona Cardinals", kickoff, 24, 24)

	broken := &fakeScoreProvider{name: "espn", err: errors.New("status 502")}
	backup := &fakeScoreProvider{name: "theoddsapi", finals: []game.FinalScore{final}}
	fx := newGradingFixture(t, []ScoreProvider{broken, backup},
		spreadPick("p-1", "capper-1", final.GameID, pick.SelectionHome, "0", kickoff),
	)

	summary, err := fx.service.Grade(context.Background())
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if summary.Graded != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	item, _, _ := fx.picks.GetByID(context.Background(), "p-1")
	if item.Status != pick.StatusPush || !item.ProfitLoss.IsZero() {
		t.Fatalf("unexpected pick: status=%s pl=%v", item.Status, item.ProfitLoss)
	}

	if err := fx.picks.Insert(context.Background(), spreadPick("p-2", "capper-2", final.GameID, pick.SelectionAway, "3", kickoff)); err != nil {
		t.Fatalf("insert second pick: %v", err)
	}
	if _, err := fx.service.Grade(context.Background()); err != nil {
		t.Fatalf("second grade: %v", err)
	}
	if broken.calls != 1 || backup.calls != 1 {
		t.Fatalf("completed finals must be memoized, calls espn=%d theoddsapi=%d", broken.calls, backup.calls)
	}
}

func TestGradingService_Grade_RecordsCLVAgainstClosingLine(t *testing.T) {
	t.Parallel()

	kickoff := time.Date(2026, 10, 18, 17, 0, 0, 0, time.UTC)
	final := nflFinal("Baltimore Ravens", "Cleveland Browns", kickoff, 28, 14)
	fx := newGradingFixture(t, []ScoreProvider{&fakeScoreProvider{name: "espn", finals: []game.FinalScore{final}}},
		spreadPick("p-1", "capper-1", final.GameID, pick.SelectionHome, "-6.5", kickoff),
	)

	closing := oddssnapshot.Snapshot{
		GameID:          final.GameID,
		Provider:        "theoddsapi:draftkings",
		Sport:           game.SportNFL,
		ScheduledAt:     kickoff,
		HomeTeam:        "Baltimore Ravens",
		AwayTeam:        "Cleveland Browns",
		Spread:          decimalPtr("-7.5"),
		SpreadHomePrice: -130,
		SpreadAwayPrice: 110,
		CapturedAt:      kickoff.Add(-10 * time.Minute),
	}
	if _, err := fx.snapshots.AppendBatch(context.Background(), []oddssnapshot.Snapshot{closing}); err != nil {
		t.Fatalf("append closing snapshot: %v", err)
	}
	if _, err := fx.snapshots.MarkClosing(context.Background(), closing.Key()); err != nil {
		t.Fatalf("mark closing: %v", err)
	}

	if _, err := fx.service.Grade(context.Background()); err != nil {
		t.Fatalf("grade: %v", err)
	}

	item, _, _ := fx.picks.GetByID(context.Background(), "p-1")
	// 4.14 cents of price plus one point beaten at 3 cents
	if item.CLV == nil || !item.CLV.Equal(decimal.RequireFromString("7.14")) {
		t.Fatalf("unexpected clv got=%v want=7.14", item.CLV)
	}
	if len(fx.publisher.events) != 1 || fx.publisher.events[0].CLV == nil {
		t.Fatalf("expected one settled event carrying clv, got=%+v", fx.publisher.events)
	}
}

func TestGroupByCapper_OrdersByGameThenCreation(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 10, 18, 17, 0, 0, 0, time.UTC)
	groups := groupByCapper([]pick.Pick{
		{ID: "c", CapperID: "b", GameStartsAt: base},
		{ID: "b", CapperID: "a", GameStartsAt: base, CreatedAt: base.Add(-time.Hour)},
		{ID: "a", CapperID: "a", GameStartsAt: base, CreatedAt: base.Add(-2 * time.Hour)},
		{ID: "d", CapperID: "a", GameStartsAt: base.Add(-time.Hour)},
	})

	if len(groups) != 2 || groups[0].capperID != "a" || groups[1].capperID != "b" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	got := make([]string, 0, 3)
	for _, item := range groups[0].picks {
		got = append(got, item.ID)
	}
	want := []string{"d", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order got=%v want=%v", got, want)
		}
	}
}
