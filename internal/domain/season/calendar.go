package season

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is an inclusive month/day range. A window whose end precedes its
// start wraps the year boundary (e.g. NFL 09-01..02-15).
type Window struct {
	Sport      string
	StartMonth time.Month
	StartDay   int
	EndMonth   time.Month
	EndDay     int
}

func (w Window) Contains(t time.Time) bool {
	md := monthDay(t.Month(), t.Day())
	start := monthDay(w.StartMonth, w.StartDay)
	end := monthDay(w.EndMonth, w.EndDay)
	if start <= end {
		return md >= start && md <= end
	}
	return md >= start || md <= end
}

func (w Window) String() string {
	return fmt.Sprintf("%s:%02d-%02d:%02d-%02d", w.Sport, int(w.StartMonth), w.StartDay, int(w.EndMonth), w.EndDay)
}

// Calendar answers whether a sport should be polled on a date. Sports with no
// window are treated as always in season.
type Calendar struct {
	windows map[string][]Window
}

func NewCalendar(windows []Window) Calendar {
	byKey := make(map[string][]Window, len(windows))
	for _, w := range windows {
		key := strings.ToLower(strings.TrimSpace(w.Sport))
		byKey[key] = append(byKey[key], w)
	}
	return Calendar{windows: byKey}
}

func (c Calendar) InSeason(sport string, t time.Time) bool {
	windows, ok := c.windows[strings.ToLower(strings.TrimSpace(sport))]
	if !ok || len(windows) == 0 {
		return true
	}
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

// DefaultWindows mirrors the usual US calendars; deployments override them
// through SEASON_WINDOWS.
func DefaultWindows() []Window {
	return []Window{
		{Sport: "nfl", StartMonth: time.September, StartDay: 1, EndMonth: time.February, EndDay: 15},
		{Sport: "ncaaf", StartMonth: time.August, StartDay: 20, EndMonth: time.January, EndDay: 20},
		{Sport: "nba", StartMonth: time.October, StartDay: 1, EndMonth: time.June, EndDay: 30},
		{Sport: "ncaab", StartMonth: time.November, StartDay: 1, EndMonth: time.April, EndDay: 10},
		{Sport: "nhl", StartMonth: time.October, StartDay: 1, EndMonth: time.June, EndDay: 30},
		{Sport: "mlb", StartMonth: time.March, StartDay: 15, EndMonth: time.November, EndDay: 10},
		{Sport: "epl", StartMonth: time.August, StartDay: 1, EndMonth: time.May, EndDay: 31},
		{Sport: "mls", StartMonth: time.February, StartDay: 15, EndMonth: time.December, EndDay: 15},
	}
}

// ParseWindows reads "sport:MM-DD:MM-DD" items separated by commas.
func ParseWindows(raw string) ([]Window, error) {
	out := make([]Window, 0, 8)
	for _, part := range strings.Split(raw, ",") {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		segments := strings.Split(item, ":")
		if len(segments) != 3 {
			return nil, fmt.Errorf("invalid season window %q, expected sport:MM-DD:MM-DD", item)
		}
		sport := strings.ToLower(strings.TrimSpace(segments[0]))
		if sport == "" {
			return nil, fmt.Errorf("empty sport in season window %q", item)
		}
		startMonth, startDay, err := parseMonthDay(segments[1])
		if err != nil {
			return nil, fmt.Errorf("invalid start in season window %q: %w", item, err)
		}
		endMonth, endDay, err := parseMonthDay(segments[2])
		if err != nil {
			return nil, fmt.Errorf("invalid end in season window %q: %w", item, err)
		}
		out = append(out, Window{
			Sport:      sport,
			StartMonth: startMonth,
			StartDay:   startDay,
			EndMonth:   endMonth,
			EndDay:     endDay,
		})
	}
	return out, nil
}

func parseMonthDay(raw string) (time.Month, int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected MM-DD, got %q", raw)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month %q", parts[0])
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil || day < 1 || day > 31 {
		return 0, 0, fmt.Errorf("invalid day %q", parts[1])
	}
	return time.Month(month), day, nil
}

func monthDay(m time.Month, d int) int {
	return int(m)*100 + d
}
