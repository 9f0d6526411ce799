package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

type oddsSnapshotTableModel struct {
	ID              int64               `db:"id"`
	GameID          string              `db:"game_id"`
	Provider        string              `db:"provider"`
	ProviderEventID string              `db:"provider_event_id"`
	Sport           string              `db:"sport"`
	ScheduledAt     time.Time           `db:"scheduled_at"`
	HomeTeam        string              `db:"home_team"`
	AwayTeam        string              `db:"away_team"`
	Spread          decimal.NullDecimal `db:"spread"`
	SpreadHomePrice int                 `db:"spread_home_price"`
	SpreadAwayPrice int                 `db:"spread_away_price"`
	Total           decimal.NullDecimal `db:"total"`
	OverPrice       int                 `db:"over_price"`
	UnderPrice      int                 `db:"under_price"`
	HomeMoneyline   *int                `db:"home_moneyline"`
	AwayMoneyline   *int                `db:"away_moneyline"`
	IsOpening       bool                `db:"is_opening"`
	IsClosing       bool                `db:"is_closing"`
	CapturedAt      time.Time           `db:"captured_at"`
	CreatedAt       time.Time           `db:"created_at"`
}

// oddsSnapshotInsertedRow is what AppendBatch reads back from RETURNING.
type oddsSnapshotInsertedRow struct {
	GameID     string    `db:"game_id"`
	Provider   string    `db:"provider"`
	CapturedAt time.Time `db:"captured_at"`
	IsOpening  bool      `db:"is_opening"`
}

type oddsSnapshotKeyRow struct {
	GameID   string `db:"game_id"`
	Provider string `db:"provider"`
}

var oddsSnapshotInsertColumns = []string{
	"game_id",
	"provider",
	"provider_event_id",
	"sport",
	"scheduled_at",
	"home_team",
	"away_team",
	"spread",
	"spread_home_price",
	"spread_away_price",
	"total",
	"over_price",
	"under_price",
	"home_moneyline",
	"away_moneyline",
	"captured_at",
}

var oddsSnapshotInsertCasts = []string{
	"text",
	"text",
	"text",
	"text",
	"timestamptz",
	"text",
	"text",
	"numeric",
	"integer",
	"integer",
	"numeric",
	"integer",
	"integer",
	"integer",
	"integer",
	"timestamptz",
}
