package usecase

import (
	"context"
	"time"

	"github.com/riskibarqy/odds-grading/internal/domain/game"
	"github.com/shopspring/decimal"
)

// SpreadMarket carries the home-relative point spread and both side prices.
type SpreadMarket struct {
	HomeLine  decimal.Decimal
	HomePrice int
	AwayPrice int
}

type TotalMarket struct {
	Line       decimal.Decimal
	OverPrice  int
	UnderPrice int
}

type MoneylineMarket struct {
	Home *int
	Away *int
}

// RawGameOdds is one provider quote for one game, already normalised to
// canonical sport keys and team names. Absent markets are nil.
type RawGameOdds struct {
	Provider    string
	EventID     string
	Sport       string
	HomeTeam    string
	AwayTeam    string
	ScheduledAt time.Time

	Spread    *SpreadMarket
	Total     *TotalMarket
	Moneyline *MoneylineMarket
}

// FetchResult holds the valid games of one provider call. Skipped counts
// records dropped as malformed.
type FetchResult struct {
	Games   []RawGameOdds
	Skipped int
}

type OddsProvider interface {
	Name() string
	FetchOdds(ctx context.Context, sport string, date time.Time) (FetchResult, error)
}

type ScoreProvider interface {
	Name() string
	FetchFinalScores(ctx context.Context, sport string, date time.Time) ([]game.FinalScore, error)
}
