package game

import (
	"strings"
	"time"
	_ "time/tzdata"
	"unicode"
)

// Canonical sport keys shared by every adapter.
const (
	SportNFL   = "nfl"
	SportNBA   = "nba"
	SportMLB   = "mlb"
	SportNHL   = "nhl"
	SportNCAAF = "ncaaf"
	SportNCAAB = "ncaab"
	SportEPL   = "epl"
	SportMLS   = "mls"
)

// Schedules are published in US Eastern time, so the game date is taken there.
var scheduleLocation = mustLoadLocation("America/New_York")

// FinalScore is a completed (or in-progress) result reported by a score source.
type FinalScore struct {
	GameID      string
	Sport       string
	HomeTeam    string
	AwayTeam    string
	HomeScore   int
	AwayScore   int
	Completed   bool
	ScheduledAt time.Time
}

// CanonicalID builds the provider-independent game key:
// sport:YYYYMMDD:away-slug@home-slug. Providers disagree on event ids, so picks,
// snapshots and scores join on this key instead.
func CanonicalID(sport string, scheduledAt time.Time, homeTeam, awayTeam string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(sport)))
	b.WriteByte(':')
	b.WriteString(ScheduleDate(scheduledAt).Format("20060102"))
	b.WriteByte(':')
	b.WriteString(TeamSlug(awayTeam))
	b.WriteByte('@')
	b.WriteString(TeamSlug(homeTeam))
	return b.String()
}

// ScheduleDate truncates t to midnight of its calendar day in the schedule timezone.
func ScheduleDate(t time.Time) time.Time {
	local := t.In(scheduleLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, scheduleLocation)
}

// ParseScheduleDate reads a YYYY-MM-DD calendar day in the schedule timezone.
func ParseScheduleDate(raw string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), scheduleLocation)
}

// TeamSlug lowercases and hyphenates a team display name.
func TeamSlug(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
