package settlement

import (
	"fmt"

	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/shopspring/decimal"
)

// DefaultJuice is the standard -110 price assumed when a feed omits one.
const DefaultJuice = -110

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// ValidPrice reports whether p is a usable American price (|p| >= 100).
func ValidPrice(p int) bool {
	return p <= -100 || p >= 100
}

// ProfitLoss returns the net result of a settled stake at an American price,
// rounded to cents. A push is always zero, whatever the price.
func ProfitLoss(status pick.Status, stake decimal.Decimal, price int) (decimal.Decimal, error) {
	if !stake.IsPositive() {
		return decimal.Zero, ErrInvalidStake
	}

	switch status {
	case pick.StatusPush:
		return decimal.Zero, nil
	case pick.StatusLoss:
		return stake.Neg(), nil
	case pick.StatusWin:
		if !ValidPrice(price) {
			return decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidPrice, price)
		}
		p := decimal.NewFromInt(int64(price))
		if price < 0 {
			return stake.Mul(hundred).DivRound(p.Abs(), moneyPlaces), nil
		}
		return stake.Mul(p).DivRound(hundred, moneyPlaces), nil
	default:
		return decimal.Zero, fmt.Errorf("cannot compute profit for status %q", status)
	}
}

// ImpliedProbability converts an American price into the break-even win
// probability it implies, vig included.
func ImpliedProbability(price int) (decimal.Decimal, error) {
	if !ValidPrice(price) {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidPrice, price)
	}
	p := decimal.NewFromInt(int64(price))
	if price < 0 {
		abs := p.Abs()
		return abs.Div(abs.Add(hundred)), nil
	}
	return hundred.Div(p.Add(hundred)), nil
}

// DecimalOdds converts an American price into decimal odds (stake included).
func DecimalOdds(price int) (decimal.Decimal, error) {
	if !ValidPrice(price) {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidPrice, price)
	}
	p := decimal.NewFromInt(int64(price))
	if price < 0 {
		return decimal.NewFromInt(1).Add(hundred.Div(p.Abs())), nil
	}
	return decimal.NewFromInt(1).Add(p.Div(hundred)), nil
}
