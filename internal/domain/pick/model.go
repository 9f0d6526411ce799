package pick

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("pick not found")
	ErrInvalidStatus = errors.New("settlement status must be win, loss or push")
	ErrNotSettled    = errors.New("pick is not settled")
)

type BetType string

const (
	BetTypeSpread    BetType = "spread"
	BetTypeTotal     BetType = "total"
	BetTypeMoneyline BetType = "moneyline"
)

type Selection string

const (
	SelectionHome  Selection = "home"
	SelectionAway  Selection = "away"
	SelectionOver  Selection = "over"
	SelectionUnder Selection = "under"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusWin     Status = "win"
	StatusLoss    Status = "loss"
	StatusPush    Status = "push"
)

// IsSettled reports whether s is one of the terminal outcomes.
func (s Status) IsSettled() bool {
	return s == StatusWin || s == StatusLoss || s == StatusPush
}

// Pick is a wager on one game. Line is stored from the selected side's
// perspective for spreads (an away +3.5 pick has Line=+3.5).
type Pick struct {
	ID           string
	CapperID     string
	GameID       string
	Sport        string
	BetType      BetType
	Selection    Selection
	Line         *decimal.Decimal
	Price        int
	Stake        decimal.Decimal
	GameStartsAt time.Time
	Status       Status
	SettledAt    *time.Time
	ProfitLoss   *decimal.Decimal
	CLV          *decimal.Decimal
	CreatedAt    time.Time
}

// Settlement is the single pending -> settled transition of a pick.
type Settlement struct {
	PickID     string
	Status     Status
	ProfitLoss decimal.Decimal
	CLV        *decimal.Decimal
	SettledAt  time.Time
}
