package oddssnapshot

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is one provider's quoted line for one game at one instant.
// Identity is (GameID, Provider, CapturedAt).
type Snapshot struct {
	GameID          string
	Provider        string
	ProviderEventID string
	Sport           string
	ScheduledAt     time.Time
	HomeTeam        string
	AwayTeam        string

	// Spread is home-relative: -3.5 means the home side gives 3.5 points.
	// Side prices are only meaningful when the market line is present.
	Spread          *decimal.Decimal
	SpreadHomePrice int
	SpreadAwayPrice int

	Total      *decimal.Decimal
	OverPrice  int
	UnderPrice int

	HomeMoneyline *int
	AwayMoneyline *int

	// IsOpening is assigned by the store from existence. Values set by
	// callers are ignored on append.
	IsOpening bool
	IsClosing bool

	CapturedAt time.Time
}

func (s Snapshot) Key() Key {
	return Key{GameID: s.GameID, Provider: s.Provider}
}

// HasMarkets reports whether the snapshot carries at least one priced market.
func (s Snapshot) HasMarkets() bool {
	return s.Spread != nil || s.Total != nil || s.HomeMoneyline != nil || s.AwayMoneyline != nil
}

// Key addresses the line history of one game at one provider.
type Key struct {
	GameID   string
	Provider string
}

// AppendResult summarises one batch append.
type AppendResult struct {
	Inserted   int
	Duplicates int
	Openings   int
}

func (r AppendResult) Add(other AppendResult) AppendResult {
	return AppendResult{
		Inserted:   r.Inserted + other.Inserted,
		Duplicates: r.Duplicates + other.Duplicates,
		Openings:   r.Openings + other.Openings,
	}
}
