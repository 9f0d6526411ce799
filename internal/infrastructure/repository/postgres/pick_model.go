package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

type pickTableModel struct {
	ID           string              `db:"id"`
	CapperID     string              `db:"capper_id"`
	GameID       string              `db:"game_id"`
	Sport        string              `db:"sport"`
	BetType      string              `db:"bet_type"`
	Selection    string              `db:"selection"`
	Line         decimal.NullDecimal `db:"line"`
	Price        int                 `db:"price"`
	Stake        decimal.Decimal     `db:"stake"`
	GameStartsAt time.Time           `db:"game_starts_at"`
	Status       string              `db:"status"`
	SettledAt    *time.Time          `db:"settled_at"`
	ProfitLoss   decimal.NullDecimal `db:"profit_loss"`
	CLV          decimal.NullDecimal `db:"clv"`
	CreatedAt    time.Time           `db:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at"`
}

type capperStatsTableModel struct {
	CapperID      string          `db:"capper_id"`
	Wins          int             `db:"wins"`
	Losses        int             `db:"losses"`
	Pushes        int             `db:"pushes"`
	Units         decimal.Decimal `db:"units"`
	CurrentStreak int             `db:"current_streak"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

type capperStatsInsertModel struct {
	CapperID      string          `db:"capper_id"`
	Wins          int             `db:"wins"`
	Losses        int             `db:"losses"`
	Pushes        int             `db:"pushes"`
	Units         decimal.Decimal `db:"units"`
	CurrentStreak int             `db:"current_streak"`
	UpdatedAt     time.Time       `db:"updated_at"`
}
