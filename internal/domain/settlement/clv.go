package settlement

import (
	"sort"
	"strings"

	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/shopspring/decimal"
)

// SelectClosing applies the closing line rule: the consensus provider's
// closing snapshot when present, otherwise the closing snapshot of the
// lexicographically smallest provider. Non-closing rows are ignored.
func SelectClosing(snapshots []oddssnapshot.Snapshot, consensusProvider string) (oddssnapshot.Snapshot, bool) {
	closing := make([]oddssnapshot.Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.IsClosing {
			closing = append(closing, s)
		}
	}
	if len(closing) == 0 {
		return oddssnapshot.Snapshot{}, false
	}

	consensusProvider = strings.TrimSpace(consensusProvider)
	if consensusProvider != "" {
		for _, s := range closing {
			if s.Provider == consensusProvider {
				return s, true
			}
		}
	}

	sort.SliceStable(closing, func(i, j int) bool {
		return closing[i].Provider < closing[j].Provider
	})
	return closing[0], true
}

// ClosingPrice picks the price quoted for the pick's side in the snapshot.
// It returns false when that market was not offered.
func ClosingPrice(s oddssnapshot.Snapshot, betType pick.BetType, selection pick.Selection) (int, bool) {
	switch betType {
	case pick.BetTypeSpread:
		if s.Spread == nil {
			return 0, false
		}
		switch selection {
		case pick.SelectionHome:
			return s.SpreadHomePrice, ValidPrice(s.SpreadHomePrice)
		case pick.SelectionAway:
			return s.SpreadAwayPrice, ValidPrice(s.SpreadAwayPrice)
		}
	case pick.BetTypeTotal:
		if s.Total == nil {
			return 0, false
		}
		switch selection {
		case pick.SelectionOver:
			return s.OverPrice, ValidPrice(s.OverPrice)
		case pick.SelectionUnder:
			return s.UnderPrice, ValidPrice(s.UnderPrice)
		}
	case pick.BetTypeMoneyline:
		switch selection {
		case pick.SelectionHome:
			if s.HomeMoneyline != nil {
				return *s.HomeMoneyline, ValidPrice(*s.HomeMoneyline)
			}
		case pick.SelectionAway:
			if s.AwayMoneyline != nil {
				return *s.AwayMoneyline, ValidPrice(*s.AwayMoneyline)
			}
		}
	}
	return 0, false
}

// DefaultCentsPerPoint prices one point of line movement on spreads and
// totals in implied-probability cents.
var DefaultCentsPerPoint = decimal.NewFromInt(3)

// ClosingLine returns the closing number from the pick's side: a spread is
// converted to the selection's perspective, a total is returned as is.
func ClosingLine(s oddssnapshot.Snapshot, betType pick.BetType, selection pick.Selection) (decimal.Decimal, bool) {
	switch betType {
	case pick.BetTypeSpread:
		if s.Spread == nil {
			return decimal.Zero, false
		}
		return HomeRelativeSpread(selection, *s.Spread), true
	case pick.BetTypeTotal:
		if s.Total == nil {
			return decimal.Zero, false
		}
		return *s.Total, true
	}
	return decimal.Zero, false
}

// PointsBeaten is how many points the pick's number is better than the
// close for the bettor. Moneylines have no number and always return zero.
func PointsBeaten(p pick.Pick, closing oddssnapshot.Snapshot) (decimal.Decimal, bool) {
	if p.BetType == pick.BetTypeMoneyline {
		return decimal.Zero, true
	}
	if p.Line == nil {
		return decimal.Zero, false
	}
	closingLine, ok := ClosingLine(closing, p.BetType, p.Selection)
	if !ok {
		return decimal.Zero, false
	}

	switch {
	case p.BetType == pick.BetTypeSpread:
		return p.Line.Sub(closingLine), true
	case p.Selection == pick.SelectionOver:
		return closingLine.Sub(*p.Line), true
	case p.Selection == pick.SelectionUnder:
		return p.Line.Sub(closingLine), true
	}
	return decimal.Zero, false
}

// PickCLV scores a pick against the selected closing snapshot. The price
// difference is taken as is; points beaten on spreads and totals are added
// at centsPerPoint each. It returns false when the closing snapshot has no
// comparable market for the pick.
func PickCLV(p pick.Pick, closing oddssnapshot.Snapshot, centsPerPoint decimal.Decimal) (decimal.Decimal, bool, error) {
	closingPrice, ok := ClosingPrice(closing, p.BetType, p.Selection)
	if !ok {
		return decimal.Zero, false, nil
	}
	points, ok := PointsBeaten(p, closing)
	if !ok {
		return decimal.Zero, false, nil
	}

	cents, err := CLVCents(p.Price, closingPrice)
	if err != nil {
		return decimal.Zero, false, err
	}
	return cents.Add(points.Mul(centsPerPoint)).Round(moneyPlaces), true, nil
}

// CLVCents is the closing implied probability minus the implied probability
// the bettor got, in percentage points. Both prices are for the side that was
// picked, so a positive value always means the bettor beat the close.
func CLVCents(pickPrice, closingPrice int) (decimal.Decimal, error) {
	got, err := ImpliedProbability(pickPrice)
	if err != nil {
		return decimal.Zero, err
	}
	closing, err := ImpliedProbability(closingPrice)
	if err != nil {
		return decimal.Zero, err
	}
	return closing.Sub(got).Mul(hundred).Round(moneyPlaces), nil
}
