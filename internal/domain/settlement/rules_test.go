package settlement

import (
	"errors"
	"testing"

	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/shopspring/decimal"
)

func line(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestEngine_Grade(t *testing.T) {
	t.Parallel()

	engine := NewEngine(DefaultTiePolicy())
	stake := decimal.NewFromInt(100)

	tests := []struct {
		name       string
		in         Input
		wantStatus pick.Status
		wantPL     string
	}{
		{
			name:       "home favourite covers",
			in:         Input{Sport: "nfl", BetType: pick.BetTypeSpread, Selection: pick.SelectionHome, Line: line("-3.5"), Price: -110, Stake: stake, HomeScore: 27, AwayScore: 20},
			wantStatus: pick.StatusWin,
			wantPL:     "90.91",
		},
		{
			name:       "pick'em tie pushes",
			in:         Input{Sport: "nfl", BetType: pick.BetTypeSpread, Selection: pick.SelectionHome, Line: line("0"), Price: -110, Stake: stake, HomeScore: 24, AwayScore: 24},
			wantStatus: pick.StatusPush,
			wantPL:     "0",
		},
		{
			name:       "away underdog covers with points",
			in:         Input{Sport: "nfl", BetType: pick.BetTypeSpread, Selection: pick.SelectionAway, Line: line("3.5"), Price: -110, Stake: stake, HomeScore: 27, AwayScore: 24},
			wantStatus: pick.StatusWin,
			wantPL:     "90.91",
		},
		{
			name:       "away favourite fails to cover",
			in:         Input{Sport: "nba", BetType: pick.BetTypeSpread, Selection: pick.SelectionAway, Line: line("-6.5"), Price: -105, Stake: stake, HomeScore: 100, AwayScore: 105},
			wantStatus: pick.StatusLoss,
			wantPL:     "-100",
		},
		{
			name:       "away spread lands on the number",
			in:         Input{Sport: "nfl", BetType: pick.BetTypeSpread, Selection: pick.SelectionAway, Line: line("-3"), Price: -110, Stake: stake, HomeScore: 17, AwayScore: 20},
			wantStatus: pick.StatusPush,
			wantPL:     "0",
		},
		{
			name:       "under hits",
			in:         Input{Sport: "nfl", BetType: pick.BetTypeTotal, Selection: pick.SelectionUnder, Line: line("40.5"), Price: -110, Stake: stake, HomeScore: 21, AwayScore: 17},
			wantStatus: pick.StatusWin,
			wantPL:     "90.91",
		},
		{
			name:       "over misses",
			in:         Input{Sport: "nfl", BetType: pick.BetTypeTotal, Selection: pick.SelectionOver, Line: line("40.5"), Price: -110, Stake: stake, HomeScore: 21, AwayScore: 17},
			wantStatus: pick.StatusLoss,
			wantPL:     "-100",
		},
		{
			name:       "total on the number pushes",
			in:         Input{Sport: "nba", BetType: pick.BetTypeTotal, Selection: pick.SelectionOver, Line: line("210"), Price: -110, Stake: stake, HomeScore: 110, AwayScore: 100},
			wantStatus: pick.StatusPush,
			wantPL:     "0",
		},
		{
			name:       "moneyline favourite wins",
			in:         Input{Sport: "mlb", BetType: pick.BetTypeMoneyline, Selection: pick.SelectionHome, Price: -150, Stake: stake, HomeScore: 5, AwayScore: 3},
			wantStatus: pick.StatusWin,
			wantPL:     "66.67",
		},
		{
			name:       "moneyline underdog wins",
			in:         Input{Sport: "mlb", BetType: pick.BetTypeMoneyline, Selection: pick.SelectionAway, Price: 150, Stake: stake, HomeScore: 3, AwayScore: 5},
			wantStatus: pick.StatusWin,
			wantPL:     "150",
		},
		{
			name:       "moneyline loses",
			in:         Input{Sport: "nba", BetType: pick.BetTypeMoneyline, Selection: pick.SelectionAway, Price: 240, Stake: stake, HomeScore: 120, AwayScore: 101},
			wantStatus: pick.StatusLoss,
			wantPL:     "-100",
		},
		{
			name:       "hockey moneyline tie pushes",
			in:         Input{Sport: "nhl", BetType: pick.BetTypeMoneyline, Selection: pick.SelectionHome, Price: -130, Stake: stake, HomeScore: 2, AwayScore: 2},
			wantStatus: pick.StatusPush,
			wantPL:     "0",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := engine.Grade(tc.in)
			if err != nil {
				t.Fatalf("grade: %v", err)
			}
			if got.Status != tc.wantStatus {
				t.Fatalf("unexpected status got=%s want=%s", got.Status, tc.wantStatus)
			}
			if !got.ProfitLoss.Equal(decimal.RequireFromString(tc.wantPL)) {
				t.Fatalf("unexpected profit/loss got=%s want=%s", got.ProfitLoss, tc.wantPL)
			}
		})
	}
}

func TestEngine_GradeRejectsUnsettleableInput(t *testing.T) {
	t.Parallel()

	engine := NewEngine(DefaultTiePolicy())
	stake := decimal.NewFromInt(1)

	tests := []struct {
		name      string
		in        Input
		targetErr error
	}{
		{
			name:      "unknown bet type",
			in:        Input{BetType: "teaser", Selection: pick.SelectionHome, Price: -110, Stake: stake},
			targetErr: ErrUnknownBetType,
		},
		{
			name:      "spread without line",
			in:        Input{BetType: pick.BetTypeSpread, Selection: pick.SelectionHome, Price: -110, Stake: stake},
			targetErr: ErrMissingLine,
		},
		{
			name:      "total without line",
			in:        Input{BetType: pick.BetTypeTotal, Selection: pick.SelectionOver, Price: -110, Stake: stake},
			targetErr: ErrMissingLine,
		},
		{
			name:      "total with team selection",
			in:        Input{BetType: pick.BetTypeTotal, Selection: pick.SelectionHome, Line: line("40"), Price: -110, Stake: stake},
			targetErr: ErrInvalidSelection,
		},
		{
			name:      "basketball moneyline tie",
			in:        Input{Sport: "nba", BetType: pick.BetTypeMoneyline, Selection: pick.SelectionHome, Price: -110, Stake: stake, HomeScore: 99, AwayScore: 99},
			targetErr: ErrTieUndefined,
		},
		{
			name:      "win at impossible price",
			in:        Input{Sport: "nba", BetType: pick.BetTypeMoneyline, Selection: pick.SelectionHome, Price: 50, Stake: stake, HomeScore: 100, AwayScore: 99},
			targetErr: ErrInvalidPrice,
		},
		{
			name:      "zero stake",
			in:        Input{Sport: "nba", BetType: pick.BetTypeMoneyline, Selection: pick.SelectionHome, Price: -110, HomeScore: 100, AwayScore: 99},
			targetErr: ErrInvalidStake,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := engine.Grade(tc.in)
			if !errors.Is(err, tc.targetErr) {
				t.Fatalf("expected %v, got %v", tc.targetErr, err)
			}
		})
	}
}

func TestEngine_GradeIsDeterministic(t *testing.T) {
	t.Parallel()

	engine := NewEngine(DefaultTiePolicy())
	in := Input{Sport: "nfl", BetType: pick.BetTypeSpread, Selection: pick.SelectionAway, Line: line("2.5"), Price: -115, Stake: decimal.RequireFromString("3.3"), HomeScore: 23, AwayScore: 21}

	first, err := engine.Grade(in)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := engine.Grade(in)
		if err != nil {
			t.Fatalf("grade run %d: %v", i, err)
		}
		if again.Status != first.Status || !again.ProfitLoss.Equal(first.ProfitLoss) {
			t.Fatalf("run %d differs: first=%+v again=%+v", i, first, again)
		}
	}
}

func TestHomeRelativeSpread(t *testing.T) {
	t.Parallel()

	if got := HomeRelativeSpread(pick.SelectionAway, decimal.RequireFromString("3.5")); !got.Equal(decimal.RequireFromString("-3.5")) {
		t.Fatalf("unexpected home-relative line got=%s", got)
	}
	if got := HomeRelativeSpread(pick.SelectionHome, decimal.RequireFromString("-7")); !got.Equal(decimal.RequireFromString("-7")) {
		t.Fatalf("unexpected home-relative line got=%s", got)
	}
}
