package settlement

import (
	"errors"
	"testing"

	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/shopspring/decimal"
)

func TestProfitLoss(t *testing.T) {
	t.Parallel()

	stake := decimal.NewFromInt(100)
	tests := []struct {
		status pick.Status
		price  int
		want   string
	}{
		{status: pick.StatusWin, price: -150, want: "66.67"},
		{status: pick.StatusWin, price: 150, want: "150"},
		{status: pick.StatusWin, price: -110, want: "90.91"},
		{status: pick.StatusWin, price: 100, want: "100"},
		{status: pick.StatusLoss, price: -150, want: "-100"},
		{status: pick.StatusLoss, price: 250, want: "-100"},
		{status: pick.StatusPush, price: -150, want: "0"},
		{status: pick.StatusPush, price: 0, want: "0"},
	}

	for _, tc := range tests {
		got, err := ProfitLoss(tc.status, stake, tc.price)
		if err != nil {
			t.Fatalf("profit/loss %s@%d: %v", tc.status, tc.price, err)
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("unexpected profit/loss for %s@%d got=%s want=%s", tc.status, tc.price, got, tc.want)
		}
	}
}

func TestProfitLoss_FractionalStakeRoundsOnce(t *testing.T) {
	t.Parallel()

	got, err := ProfitLoss(pick.StatusWin, decimal.RequireFromString("1.5"), -115)
	if err != nil {
		t.Fatalf("profit/loss: %v", err)
	}
	// 1.5 * 100 / 115 = 1.304347...
	if !got.Equal(decimal.RequireFromString("1.3")) {
		t.Fatalf("unexpected profit/loss got=%s want=1.30", got)
	}
}

func TestProfitLoss_RejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := ProfitLoss(pick.StatusWin, decimal.Zero, -110); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("expected ErrInvalidStake, got %v", err)
	}
	if _, err := ProfitLoss(pick.StatusWin, decimal.NewFromInt(1), 99); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if _, err := ProfitLoss(pick.StatusPending, decimal.NewFromInt(1), -110); err == nil {
		t.Fatalf("expected error for pending status")
	}
}

func TestImpliedProbability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		price int
		want  string
	}{
		{price: -110, want: "0.5238"},
		{price: 100, want: "0.5"},
		{price: -100, want: "0.5"},
		{price: 300, want: "0.25"},
		{price: -300, want: "0.75"},
	}
	for _, tc := range tests {
		got, err := ImpliedProbability(tc.price)
		if err != nil {
			t.Fatalf("implied probability %d: %v", tc.price, err)
		}
		if !got.Round(4).Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("unexpected implied probability for %d got=%s want=%s", tc.price, got.Round(4), tc.want)
		}
	}
}

func TestDecimalOdds(t *testing.T) {
	t.Parallel()

	got, err := DecimalOdds(150)
	if err != nil {
		t.Fatalf("decimal odds: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("unexpected decimal odds got=%s want=2.5", got)
	}
	got, err = DecimalOdds(-200)
	if err != nil {
		t.Fatalf("decimal odds: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("unexpected decimal odds got=%s want=1.5", got)
	}
}
