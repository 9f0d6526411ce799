package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	oddssnapshotmock "github.com/riskibarqy/odds-grading/internal/mocks/domain/oddssnapshot"
	pickmock "github.com/riskibarqy/odds-grading/internal/mocks/domain/pick"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

func intRef(v int) *int { return &v }

func closingRow(provider string, homeML, awayML int) oddssnapshot.Snapshot {
	return oddssnapshot.Snapshot{
		GameID:        "nhl:20261017:boston-bruins@toronto-maple-leafs",
		Provider:      provider,
		HomeMoneyline: intRef(homeML),
		AwayMoneyline: intRef(awayML),
		IsClosing:     true,
		CapturedAt:    time.Date(2026, 10, 17, 23, 0, 0, 0, time.UTC),
	}
}

func moneylinePick(pickID string, selection pick.Selection, price int) pick.Pick {
	return pick.Pick{
		ID:        pickID,
		CapperID:  "capper-1",
		GameID:    "nhl:20261017:boston-bruins@toronto-maple-leafs",
		Sport:     "nhl",
		BetType:   pick.BetTypeMoneyline,
		Selection: selection,
		Price:     price,
		Stake:     decimal.NewFromInt(100),
		Status:    pick.StatusWin,
	}
}

func TestCLVCalculator_ComputeCLV_PrefersConsensusProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	snapshots := oddssnapshotmock.NewRepository(t)
	calculator := NewCLVCalculator(snapshots, nil, CLVConfig{ConsensusProvider: "theoddsapi:pinnacle"}, logging.NewNop())

	snapshots.
		On("ClosingFor", mock.Anything, "nhl:20261017:boston-bruins@toronto-maple-leafs").
		Return([]oddssnapshot.Snapshot{
			closingRow("espn", -110, -110),
			closingRow("theoddsapi:pinnacle", -130, 110),
		}, nil).
		Once()

	got, err := calculator.ComputeCLV(ctx, moneylinePick("p-1", pick.SelectionHome, -110))
	if err != nil {
		t.Fatalf("compute clv: %v", err)
	}
	if got == nil || !got.Equal(decimal.RequireFromString("4.14")) {
		t.Fatalf("unexpected clv got=%v want=4.14", got)
	}
}

func TestCLVCalculator_ComputeCLV_NilWithoutClosingMarket(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		closing []oddssnapshot.Snapshot
		item    pick.Pick
	}{
		{name: "no closing rows", closing: nil, item: moneylinePick("p-1", pick.SelectionHome, -110)},
		{
			name:    "closing row lacks market",
			closing: []oddssnapshot.Snapshot{closingRow("espn", -110, -110)},
			item: pick.Pick{
				ID:        "p-2",
				GameID:    "nhl:20261017:boston-bruins@toronto-maple-leafs",
				BetType:   pick.BetTypeTotal,
				Selection: pick.SelectionOver,
				Price:     -110,
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			snapshots := oddssnapshotmock.NewRepository(t)
			snapshots.On("ClosingFor", mock.Anything, tc.item.GameID).Return(tc.closing, nil).Once()

			got, err := NewCLVCalculator(snapshots, nil, CLVConfig{}, logging.NewNop()).ComputeCLV(context.Background(), tc.item)
			if err != nil {
				t.Fatalf("compute clv: %v", err)
			}
			if got != nil {
				t.Fatalf("expected nil clv, got=%s", got)
			}
		})
	}
}

func TestCLVCalculator_ComputeCLV_InvalidPickPrice(t *testing.T) {
	t.Parallel()

	snapshots := oddssnapshotmock.NewRepository(t)
	snapshots.
		On("ClosingFor", mock.Anything, mock.AnythingOfType("string")).
		Return([]oddssnapshot.Snapshot{closingRow("espn", -120, 100)}, nil).
		Once()

	_, err := NewCLVCalculator(snapshots, nil, CLVConfig{}, logging.NewNop()).
		ComputeCLV(context.Background(), moneylinePick("p-1", pick.SelectionAway, 50))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCLVCalculator_BackfillCLV(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	snapshots := oddssnapshotmock.NewRepository(t)
	picks := pickmock.NewRepository(t)
	calculator := NewCLVCalculator(snapshots, picks, CLVConfig{BackfillLimit: 50}, logging.NewNop())

	withClosing := moneylinePick("p-1", pick.SelectionAway, 120)
	withoutClosing := moneylinePick("p-2", pick.SelectionHome, -110)
	withoutClosing.GameID = "nhl:20261018:new-york-rangers@new-jersey-devils"
	vanished := moneylinePick("p-3", pick.SelectionHome, -110)

	picks.On("ListSettledWithoutCLV", mock.Anything, 50).
		Return([]pick.Pick{withClosing, withoutClosing, vanished}, nil).
		Once()
	snapshots.On("ClosingFor", mock.Anything, withClosing.GameID).
		Return([]oddssnapshot.Snapshot{closingRow("espn", -140, 120)}, nil).
		Twice()
	snapshots.On("ClosingFor", mock.Anything, withoutClosing.GameID).
		Return([]oddssnapshot.Snapshot{}, nil).
		Once()
	picks.On("SetCLV", mock.Anything, "p-1", mock.MatchedBy(func(v decimal.Decimal) bool { return v.IsZero() })).
		Return(nil).
		Once()
	picks.On("SetCLV", mock.Anything, "p-3", mock.AnythingOfType("decimal.Decimal")).
		Return(pick.ErrNotFound).
		Once()

	summary, err := calculator.BackfillCLV(ctx, 0)
	if err != nil {
		t.Fatalf("backfill clv: %v", err)
	}
	if summary.Candidates != 3 || summary.Updated != 1 || summary.NoClosing != 1 || len(summary.Errors) != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestCLVCalculator_ComputeCLV_CountsSpreadMovement(t *testing.T) {
	t.Parallel()

	gameID := "nfl:20261018:cleveland-browns@baltimore-ravens"
	spread := decimal.RequireFromString("-7")
	closing := oddssnapshot.Snapshot{
		GameID:          gameID,
		Provider:        "theoddsapi:draftkings",
		Spread:          &spread,
		SpreadHomePrice: -110,
		SpreadAwayPrice: -110,
		IsClosing:       true,
	}
	line := decimal.RequireFromString("-3")
	item := pick.Pick{
		ID:        "p-9",
		GameID:    gameID,
		BetType:   pick.BetTypeSpread,
		Selection: pick.SelectionHome,
		Line:      &line,
		Price:     -110,
	}

	snapshots := oddssnapshotmock.NewRepository(t)
	snapshots.On("ClosingFor", mock.Anything, gameID).Return([]oddssnapshot.Snapshot{closing}, nil).Once()

	calculator := NewCLVCalculator(snapshots, nil, CLVConfig{CentsPerPoint: decimal.NewFromInt(2)}, logging.NewNop())
	got, err := calculator.ComputeCLV(context.Background(), item)
	if err != nil {
		t.Fatalf("compute clv: %v", err)
	}
	if got == nil || !got.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("unexpected clv got=%v want=8", got)
	}
}
