package settlement

import (
	"testing"

	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

func TestCLVCents_SignFollowsBeatingTheClose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pick    int
		closing int
		want    string
	}{
		{name: "favourite got shorter", pick: -110, closing: -130, want: "4.14"},
		{name: "favourite drifted", pick: -130, closing: -110, want: "-4.14"},
		{name: "underdog got shorter", pick: 150, closing: 120, want: "5.45"},
		{name: "unchanged", pick: -110, closing: -110, want: "0"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := CLVCents(tc.pick, tc.closing)
			if err != nil {
				t.Fatalf("clv: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("unexpected clv got=%s want=%s", got, tc.want)
			}
		})
	}
}

func TestSelectClosing(t *testing.T) {
	t.Parallel()

	snapshots := []oddssnapshot.Snapshot{
		{Provider: "theoddsapi:fanduel", IsClosing: true},
		{Provider: "espn", IsClosing: false},
		{Provider: "theoddsapi:draftkings", IsClosing: true},
	}

	got, ok := SelectClosing(snapshots, "theoddsapi:fanduel")
	if !ok || got.Provider != "theoddsapi:fanduel" {
		t.Fatalf("expected consensus provider, got=%q ok=%v", got.Provider, ok)
	}

	got, ok = SelectClosing(snapshots, "pinnacle")
	if !ok || got.Provider != "theoddsapi:draftkings" {
		t.Fatalf("expected smallest provider id, got=%q ok=%v", got.Provider, ok)
	}

	if _, ok := SelectClosing([]oddssnapshot.Snapshot{{Provider: "espn"}}, ""); ok {
		t.Fatalf("expected no closing snapshot")
	}
}

func TestClosingPrice(t *testing.T) {
	t.Parallel()

	spread := decimal.RequireFromString("-3.5")
	total := decimal.RequireFromString("44")
	s := oddssnapshot.Snapshot{
		Spread:          &spread,
		SpreadHomePrice: -115,
		SpreadAwayPrice: -105,
		Total:           &total,
		OverPrice:       -110,
		UnderPrice:      -110,
		HomeMoneyline:   intPtr(-170),
		AwayMoneyline:   intPtr(145),
	}

	tests := []struct {
		betType   pick.BetType
		selection pick.Selection
		want      int
	}{
		{pick.BetTypeSpread, pick.SelectionHome, -115},
		{pick.BetTypeSpread, pick.SelectionAway, -105},
		{pick.BetTypeTotal, pick.SelectionOver, -110},
		{pick.BetTypeMoneyline, pick.SelectionAway, 145},
	}
	for _, tc := range tests {
		got, ok := ClosingPrice(s, tc.betType, tc.selection)
		if !ok || got != tc.want {
			t.Fatalf("unexpected closing price for %s/%s got=%d ok=%v want=%d", tc.betType, tc.selection, got, ok, tc.want)
		}
	}

	if _, ok := ClosingPrice(oddssnapshot.Snapshot{HomeMoneyline: intPtr(-120)}, pick.BetTypeTotal, pick.SelectionOver); ok {
		t.Fatalf("expected missing total market")
	}
}

func TestPickCLV_LineMovement(t *testing.T) {
	t.Parallel()

	spreadClose := func(homeSpread string, homePrice, awayPrice int) oddssnapshot.Snapshot {
		d := decimal.RequireFromString(homeSpread)
		return oddssnapshot.Snapshot{Spread: &d, SpreadHomePrice: homePrice, SpreadAwayPrice: awayPrice, IsClosing: true}
	}
	totalClose := func(total string, overPrice, underPrice int) oddssnapshot.Snapshot {
		d := decimal.RequireFromString(total)
		return oddssnapshot.Snapshot{Total: &d, OverPrice: overPrice, UnderPrice: underPrice, IsClosing: true}
	}
	linePick := func(betType pick.BetType, selection pick.Selection, line string) pick.Pick {
		d := decimal.RequireFromString(line)
		return pick.Pick{BetType: betType, Selection: selection, Line: &d, Price: -110}
	}

	tests := []struct {
		name    string
		item    pick.Pick
		closing oddssnapshot.Snapshot
		want    string
	}{
		{name: "home spread unchanged", item: linePick(pick.BetTypeSpread, pick.SelectionHome, "-3"), closing: spreadClose("-3", -130, 110), want: "4.14"},
		{name: "home beat a steamed favourite", item: linePick(pick.BetTypeSpread, pick.SelectionHome, "-3"), closing: spreadClose("-7", -110, -110), want: "12"},
		{name: "home got the worse number at a cheaper close", item: linePick(pick.BetTypeSpread, pick.SelectionHome, "-3"), closing: spreadClose("1", -130, 110), want: "-7.86"},
		{name: "away dog before the move", item: linePick(pick.BetTypeSpread, pick.SelectionAway, "7"), closing: spreadClose("-5.5", -110, -110), want: "4.5"},
		{name: "away dog after the move", item: linePick(pick.BetTypeSpread, pick.SelectionAway, "5.5"), closing: spreadClose("-7", -110, -110), want: "-4.5"},
		{name: "over before the total rose", item: linePick(pick.BetTypeTotal, pick.SelectionOver, "44.5"), closing: totalClose("47", -110, -110), want: "7.5"},
		{name: "under before the total rose", item: linePick(pick.BetTypeTotal, pick.SelectionUnder, "44.5"), closing: totalClose("47", -110, -110), want: "-7.5"},
		{name: "under before the total fell", item: linePick(pick.BetTypeTotal, pick.SelectionUnder, "47"), closing: totalClose("45", -110, -120), want: "8.16"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok, err := PickCLV(tc.item, tc.closing, DefaultCentsPerPoint)
			if err != nil || !ok {
				t.Fatalf("pick clv ok=%v err=%v", ok, err)
			}
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("unexpected clv got=%s want=%s", got, tc.want)
			}
		})
	}
}

func TestPickCLV_NoComparableMarket(t *testing.T) {
	t.Parallel()

	closing := oddssnapshot.Snapshot{HomeMoneyline: intPtr(-120), AwayMoneyline: intPtr(100)}
	noLine := pick.Pick{BetType: pick.BetTypeSpread, Selection: pick.SelectionHome, Price: -110}
	spread := decimal.RequireFromString("-3")
	withSpread := oddssnapshot.Snapshot{Spread: &spread, SpreadHomePrice: -110, SpreadAwayPrice: -110}

	if _, ok, _ := PickCLV(noLine, closing, DefaultCentsPerPoint); ok {
		t.Fatalf("expected no clv when the close has no spread")
	}
	if _, ok, _ := PickCLV(noLine, withSpread, DefaultCentsPerPoint); ok {
		t.Fatalf("expected no clv for a spread pick without a line")
	}

	moneyline := pick.Pick{BetType: pick.BetTypeMoneyline, Selection: pick.SelectionHome, Price: -110}
	got, ok, err := PickCLV(moneyline, closing, DefaultCentsPerPoint)
	if err != nil || !ok || !got.Equal(decimal.RequireFromString("2.16")) {
		t.Fatalf("unexpected moneyline clv got=%s ok=%v err=%v", got, ok, err)
	}
}
