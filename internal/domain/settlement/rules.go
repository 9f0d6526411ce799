package settlement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownBetType   = errors.New("unknown bet type")
	ErrMissingLine      = errors.New("line is required")
	ErrInvalidSelection = errors.New("selection does not match bet type")
	ErrInvalidPrice     = errors.New("invalid american price")
	ErrInvalidStake     = errors.New("stake must be positive")
	ErrInvalidScore     = errors.New("scores cannot be negative")
	ErrTieUndefined     = errors.New("moneyline tie is undefined for sport")
)

// Input is everything needed to grade one pick against one final score.
type Input struct {
	Sport     string
	BetType   pick.BetType
	Selection pick.Selection
	// Line is from the selected side's perspective for spreads, the posted
	// total for totals, and ignored for moneylines.
	Line      *decimal.Decimal
	Price     int
	Stake     decimal.Decimal
	HomeScore int
	AwayScore int
}

type Result struct {
	Status     pick.Status
	ProfitLoss decimal.Decimal
}

// TiePolicy lists the sports where a tied final settles a moneyline as a push.
type TiePolicy struct {
	pushSports map[string]struct{}
}

func NewTiePolicy(sports []string) TiePolicy {
	out := TiePolicy{pushSports: make(map[string]struct{}, len(sports))}
	for _, sport := range sports {
		key := strings.ToLower(strings.TrimSpace(sport))
		if key == "" {
			continue
		}
		out.pushSports[key] = struct{}{}
	}
	return out
}

// DefaultTiePolicy pushes ties where a regulation or regular-season draw is
// a legal final: hockey and soccer lines, and NFL regular season.
func DefaultTiePolicy() TiePolicy {
	return NewTiePolicy([]string{"nfl", "nhl", "epl", "mls"})
}

func (p TiePolicy) PushesTies(sport string) bool {
	_, ok := p.pushSports[strings.ToLower(strings.TrimSpace(sport))]
	return ok
}

// Engine grades picks. It holds no state beyond its tie policy, so the same
// input always yields the same result.
type Engine struct {
	ties TiePolicy
}

func NewEngine(ties TiePolicy) Engine {
	return Engine{ties: ties}
}

func (e Engine) Grade(in Input) (Result, error) {
	if in.HomeScore < 0 || in.AwayScore < 0 {
		return Result{}, ErrInvalidScore
	}

	var (
		status pick.Status
		err    error
	)
	switch in.BetType {
	case pick.BetTypeSpread:
		status, err = gradeSpread(in)
	case pick.BetTypeTotal:
		status, err = gradeTotal(in)
	case pick.BetTypeMoneyline:
		status, err = e.gradeMoneyline(in)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownBetType, in.BetType)
	}
	if err != nil {
		return Result{}, err
	}

	profitLoss, err := ProfitLoss(status, in.Stake, in.Price)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: status, ProfitLoss: profitLoss}, nil
}

func gradeSpread(in Input) (pick.Status, error) {
	if in.Line == nil {
		return "", fmt.Errorf("%w: spread pick", ErrMissingLine)
	}
	margin := decimal.NewFromInt(int64(in.HomeScore - in.AwayScore))
	switch in.Selection {
	case pick.SelectionHome:
	case pick.SelectionAway:
		margin = margin.Neg()
	default:
		return "", fmt.Errorf("%w: spread selection %q", ErrInvalidSelection, in.Selection)
	}
	return statusFromSign(margin.Add(*in.Line).Sign()), nil
}

func gradeTotal(in Input) (pick.Status, error) {
	if in.Line == nil {
		return "", fmt.Errorf("%w: total pick", ErrMissingLine)
	}
	diff := decimal.NewFromInt(int64(in.HomeScore + in.AwayScore)).Sub(*in.Line)
	switch in.Selection {
	case pick.SelectionOver:
	case pick.SelectionUnder:
		diff = diff.Neg()
	default:
		return "", fmt.Errorf("%w: total selection %q", ErrInvalidSelection, in.Selection)
	}
	return statusFromSign(diff.Sign()), nil
}

func (e Engine) gradeMoneyline(in Input) (pick.Status, error) {
	margin := in.HomeScore - in.AwayScore
	switch in.Selection {
	case pick.SelectionHome:
	case pick.SelectionAway:
		margin = -margin
	default:
		return "", fmt.Errorf("%w: moneyline selection %q", ErrInvalidSelection, in.Selection)
	}
	if margin == 0 && !e.ties.PushesTies(in.Sport) {
		return "", fmt.Errorf("%w: %s", ErrTieUndefined, in.Sport)
	}
	return statusFromSign(margin), nil
}

func statusFromSign(sign int) pick.Status {
	switch {
	case sign > 0:
		return pick.StatusWin
	case sign < 0:
		return pick.StatusLoss
	default:
		return pick.StatusPush
	}
}

// HomeRelativeSpread converts a side-relative spread line into the
// home-relative convention used by odds snapshots, and back (the mapping is
// its own inverse).
func HomeRelativeSpread(selection pick.Selection, line decimal.Decimal) decimal.Decimal {
	if selection == pick.SelectionAway {
		return line.Neg()
	}
	return line
}
