package capper

import (
	"sort"
	"time"

	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/shopspring/decimal"
)

// Stats is the running record of one capper.
type Stats struct {
	CapperID      string
	Wins          int
	Losses        int
	Pushes        int
	Units         decimal.Decimal
	CurrentStreak int
	UpdatedAt     time.Time
}

func NewStats(capperID string) Stats {
	return Stats{CapperID: capperID, Units: decimal.Zero}
}

// Settled is wins+losses+pushes.
func (s Stats) Settled() int {
	return s.Wins + s.Losses + s.Pushes
}

// Apply folds one settlement into the stats. A push leaves the streak
// untouched; an outcome against the current streak direction restarts it at +1/-1.
func (s Stats) Apply(status pick.Status, profitLoss decimal.Decimal) Stats {
	switch status {
	case pick.StatusWin:
		s.Wins++
		if s.CurrentStreak > 0 {
			s.CurrentStreak++
		} else {
			s.CurrentStreak = 1
		}
	case pick.StatusLoss:
		s.Losses++
		if s.CurrentStreak < 0 {
			s.CurrentStreak--
		} else {
			s.CurrentStreak = -1
		}
	case pick.StatusPush:
		s.Pushes++
	default:
		return s
	}
	s.Units = s.Units.Add(profitLoss)
	return s
}

// Rebuild re-derives stats from a capper's settled picks, applying them in
// game order, then creation order, then id. Grading settles a capper's
// picks in the same order. Used to audit the incrementally maintained row.
func Rebuild(capperID string, settled []pick.Pick) Stats {
	ordered := append([]pick.Pick(nil), settled...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].GameStartsAt.Equal(ordered[j].GameStartsAt) {
			return ordered[i].GameStartsAt.Before(ordered[j].GameStartsAt)
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	out := NewStats(capperID)
	for _, p := range ordered {
		if !p.Status.IsSettled() {
			continue
		}
		pl := decimal.Zero
		if p.ProfitLoss != nil {
			pl = *p.ProfitLoss
		}
		out = out.Apply(p.Status, pl)
	}
	return out
}

// Equal compares the counters, units and streak; UpdatedAt is ignored.
func (s Stats) Equal(other Stats) bool {
	return s.CapperID == other.CapperID &&
		s.Wins == other.Wins &&
		s.Losses == other.Losses &&
		s.Pushes == other.Pushes &&
		s.Units.Equal(other.Units) &&
		s.CurrentStreak == other.CurrentStreak
}
