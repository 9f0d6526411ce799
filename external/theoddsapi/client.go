package theoddsapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/odds-grading/internal/domain/game"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/riskibarqy/odds-grading/internal/platform/resilience"
	"github.com/riskibarqy/odds-grading/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/time/rate"
)

const (
	ProviderName = "theoddsapi"

	defaultBaseURL  = "https://api.the-odds-api.com/v4"
	defaultRegions  = "us"
	defaultMarkets  = "h2h,spreads,totals"
	scoresDaysFrom  = "3"
	maxResponseSize = 6 << 20

	// DefaultJuice is assumed when a market quotes a line without a price.
	DefaultJuice = -110
)

var apiKeyParamRegex = regexp.MustCompile(`apiKey=[^&\s"']+`)
var errOddsAPITransient = crerr.New("the odds api transient failure")

// sportKeys maps canonical sport keys to The Odds API sport keys.
var sportKeys = map[string]string{
	game.SportNFL:   "americanfootball_nfl",
	game.SportNCAAF: "americanfootball_ncaaf",
	game.SportNBA:   "basketball_nba",
	game.SportNCAAB: "basketball_ncaab",
	game.SportMLB:   "baseball_mlb",
	game.SportNHL:   "icehockey_nhl",
	game.SportEPL:   "soccer_epl",
	game.SportMLS:   "soccer_usa_mls",
}

type ClientConfig struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Regions    string
	// Bookmakers restricts the books requested. Empty means every book the
	// region returns.
	Bookmakers        []string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	Logger            *logging.Logger
	CircuitBreaker    resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	regions        string
	bookmakers     []string
	maxRetries     int
	retryBackoff   time.Duration
	limiter        *rate.Limiter
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	regions := strings.TrimSpace(cfg.Regions)
	if regions == "" {
		regions = defaultRegions
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		regions:        regions,
		bookmakers:     normalizeBookmakers(cfg.Bookmakers),
		maxRetries:     max(cfg.MaxRetries, 0),
		retryBackoff:   time.Second,
		limiter:        rate.NewLimiter(limit, 1),
		logger:         logger,
		breaker:        breakerCfg.Build(),
		circuitEnabled: breakerCfg.Enabled,
	}
}

func (c *Client) Name() string {
	return ProviderName
}

// FetchOdds returns one RawGameOdds per (event, bookmaker) for games starting
// on date's schedule day. Each bookmaker is reported as its own provider so
// opening and closing lines are tracked per book.
func (c *Client) FetchOdds(ctx context.Context, sport string, date time.Time) (usecase.FetchResult, error) {
	sportKey, ok := sportKeys[strings.ToLower(strings.TrimSpace(sport))]
	if !ok {
		return usecase.FetchResult{}, fmt.Errorf("%w: sport %q is not supported by %s", usecase.ErrInvalidInput, sport, ProviderName)
	}
	if date.IsZero() {
		date = time.Now()
	}
	dayStart := game.ScheduleDate(date).UTC()

	query := map[string]string{
		"regions":          c.regions,
		"markets":          defaultMarkets,
		"oddsFormat":       "american",
		"dateFormat":       "iso",
		"commenceTimeFrom": dayStart.Format(time.RFC3339),
		"commenceTimeTo":   dayStart.Add(24 * time.Hour).Format(time.RFC3339),
	}
	if len(c.bookmakers) > 0 {
		query["bookmakers"] = strings.Join(c.bookmakers, ",")
	}

	var events []oddsEvent
	if err := c.doJSON(ctx, "/sports/"+sportKey+"/odds", query, &events); err != nil {
		return usecase.FetchResult{}, err
	}

	result := parseOddsEvents(sport, events, c.bookmakers)
	if result.Skipped > 0 {
		c.logger.WarnContext(ctx, "skipped malformed odds records", "provider", ProviderName, "sport", sport, "skipped", result.Skipped)
	}
	if len(result.Games) == 0 {
		return result, fmt.Errorf("%w: %s returned no usable games for %s", usecase.ErrProviderEmpty, ProviderName, sport)
	}
	return result, nil
}

// FetchFinalScores returns the scores feed for the last three days. The feed
// is not date-addressable, so date only narrows the result to one schedule day.
func (c *Client) FetchFinalScores(ctx context.Context, sport string, date time.Time) ([]game.FinalScore, error) {
	sportKey, ok := sportKeys[strings.ToLower(strings.TrimSpace(sport))]
	if !ok {
		return nil, fmt.Errorf("%w: sport %q is not supported by %s", usecase.ErrInvalidInput, sport, ProviderName)
	}

	var events []scoreEvent
	if err := c.doJSON(ctx, "/sports/"+sportKey+"/scores", map[string]string{
		"daysFrom":   scoresDaysFrom,
		"dateFormat": "iso",
	}, &events); err != nil {
		return nil, err
	}

	finals := parseScoreEvents(sport, events)
	if date.IsZero() {
		return finals, nil
	}
	day := game.ScheduleDate(date)
	out := finals[:0]
	for _, item := range finals {
		if game.ScheduleDate(item.ScheduledAt).Equal(day) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "the odds api circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("%w: %s: %w", usecase.ErrProviderUnavailable, ProviderName, err)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	values.Set("apiKey", c.apiKey)
	fullURL := c.baseURL + path + "?" + values.Encode()

	out, err, _ := c.flight.DoContext(ctx, flightKey(path, query), func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && isOddsAPICircuitFailure(reqErr) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", usecase.ErrProviderUnavailable, ProviderName, err)
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("%w: unexpected response payload type %T", usecase.ErrProviderUnavailable, out)
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %s: decode payload: %v body=%s", usecase.ErrProviderUnavailable, ProviderName, err, abbreviateBody(raw))
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %s", sanitizeSensitiveText(err.Error(), c.apiKey))
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errOddsAPITransient, sanitizeSensitiveText(err.Error(), c.apiKey))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
			_ = resp.Body.Close()
			if remaining := resp.Header.Get("x-requests-remaining"); remaining != "" {
				c.logger.DebugContext(ctx, "the odds api quota", "remaining", remaining, "used", resp.Header.Get("x-requests-used"))
			}
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errOddsAPITransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errOddsAPITransient, resp.StatusCode, abbreviateBody(raw))
			default:
				lastErr = fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
				c.logger.WarnContext(ctx, "the odds api request rejected", "url", redactAPIURL(fullURL), "error", lastErr)
				return nil, lastErr
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * c.retryBackoff
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "the odds api request failed", "url", redactAPIURL(fullURL), "error", lastErr)
	return nil, lastErr
}

func parseOddsEvents(sport string, events []oddsEvent, allowedBooks []string) usecase.FetchResult {
	allowed := make(map[string]struct{}, len(allowedBooks))
	for _, key := range allowedBooks {
		allowed[key] = struct{}{}
	}

	result := usecase.FetchResult{Games: make([]usecase.RawGameOdds, 0, len(events))}
	for _, event := range events {
		home := strings.TrimSpace(event.HomeTeam)
		away := strings.TrimSpace(event.AwayTeam)
		commence, err := time.Parse(time.RFC3339, strings.TrimSpace(event.CommenceTime))
		if home == "" || away == "" || err != nil {
			result.Skipped++
			continue
		}

		for _, book := range event.Bookmakers {
			key := strings.ToLower(strings.TrimSpace(book.Key))
			if key == "" {
				result.Skipped++
				continue
			}
			if _, ok := allowed[key]; len(allowed) > 0 && !ok {
				continue
			}

			item := usecase.RawGameOdds{
				Provider:    ProviderName + ":" + key,
				EventID:     event.ID,
				Sport:       sport,
				HomeTeam:    home,
				AwayTeam:    away,
				ScheduledAt: commence.UTC(),
			}
			for _, m := range book.Markets {
				switch m.Key {
				case "h2h":
					item.Moneyline = parseMoneyline(m.Outcomes, home, away)
				case "spreads":
					item.Spread = parseSpread(m.Outcomes, home, away)
				case "totals":
					item.Total = parseTotal(m.Outcomes)
				}
			}
			if item.Moneyline == nil && item.Spread == nil && item.Total == nil {
				result.Skipped++
				continue
			}
			result.Games = append(result.Games, item)
		}
	}

	sort.SliceStable(result.Games, func(i, j int) bool {
		if !result.Games[i].ScheduledAt.Equal(result.Games[j].ScheduledAt) {
			return result.Games[i].ScheduledAt.Before(result.Games[j].ScheduledAt)
		}
		if result.Games[i].EventID != result.Games[j].EventID {
			return result.Games[i].EventID < result.Games[j].EventID
		}
		return result.Games[i].Provider < result.Games[j].Provider
	})
	return result
}

func parseMoneyline(outcomes []outcome, home, away string) *usecase.MoneylineMarket {
	var out usecase.MoneylineMarket
	for _, o := range outcomes {
		price, ok := americanPrice(o.Price)
		if !ok {
			continue
		}
		switch {
		case strings.EqualFold(o.Name, home):
			out.Home = &price
		case strings.EqualFold(o.Name, away):
			out.Away = &price
		}
	}
	if out.Home == nil && out.Away == nil {
		return nil
	}
	return &out
}

// parseSpread reads the line from the home outcome. When only the away side
// is quoted the home line is its negation.
func parseSpread(outcomes []outcome, home, away string) *usecase.SpreadMarket {
	var (
		homeLine, awayLine   *float64
		homePrice, awayPrice = DefaultJuice, DefaultJuice
	)
	for _, o := range outcomes {
		switch {
		case strings.EqualFold(o.Name, home):
			homeLine = o.Point
			if price, ok := americanPrice(o.Price); ok {
				homePrice = price
			}
		case strings.EqualFold(o.Name, away):
			awayLine = o.Point
			if price, ok := americanPrice(o.Price); ok {
				awayPrice = price
			}
		}
	}

	var line decimal.Decimal
	switch {
	case homeLine != nil && isFinite(*homeLine):
		line = decimal.NewFromFloat(*homeLine)
	case awayLine != nil && isFinite(*awayLine):
		line = decimal.NewFromFloat(*awayLine).Neg()
	default:
		return nil
	}
	return &usecase.SpreadMarket{HomeLine: line, HomePrice: homePrice, AwayPrice: awayPrice}
}

func parseTotal(outcomes []outcome) *usecase.TotalMarket {
	var (
		point                 *float64
		overPrice, underPrice = DefaultJuice, DefaultJuice
	)
	for _, o := range outcomes {
		switch {
		case strings.EqualFold(o.Name, "over"):
			if o.Point != nil {
				point = o.Point
			}
			if price, ok := americanPrice(o.Price); ok {
				overPrice = price
			}
		case strings.EqualFold(o.Name, "under"):
			if point == nil && o.Point != nil {
				point = o.Point
			}
			if price, ok := americanPrice(o.Price); ok {
				underPrice = price
			}
		}
	}
	if point == nil || !isFinite(*point) || *point < 0 {
		return nil
	}
	return &usecase.TotalMarket{Line: decimal.NewFromFloat(*point), OverPrice: overPrice, UnderPrice: underPrice}
}

func parseScoreEvents(sport string, events []scoreEvent) []game.FinalScore {
	out := make([]game.FinalScore, 0, len(events))
	for _, event := range events {
		home := strings.TrimSpace(event.HomeTeam)
		away := strings.TrimSpace(event.AwayTeam)
		commence, err := time.Parse(time.RFC3339, strings.TrimSpace(event.CommenceTime))
		if home == "" || away == "" || err != nil {
			continue
		}

		final := game.FinalScore{
			GameID:      game.CanonicalID(sport, commence, home, away),
			Sport:       sport,
			HomeTeam:    home,
			AwayTeam:    away,
			ScheduledAt: commence.UTC(),
		}
		homeScore, homeOK := scoreFor(event.Scores, home)
		awayScore, awayOK := scoreFor(event.Scores, away)
		if homeOK && awayOK {
			final.HomeScore = homeScore
			final.AwayScore = awayScore
			final.Completed = event.Completed
		}
		out = append(out, final)
	}
	return out
}

func scoreFor(scores []teamScore, team string) (int, bool) {
	for _, s := range scores {
		if !strings.EqualFold(strings.TrimSpace(s.Name), team) {
			continue
		}
		value, err := strconv.Atoi(strings.TrimSpace(s.Score))
		if err != nil || value < 0 {
			return 0, false
		}
		return value, true
	}
	return 0, false
}

// americanPrice accepts whole American prices only; |p| < 100 is not a price.
func americanPrice(raw *float64) (int, bool) {
	if raw == nil || !isFinite(*raw) {
		return 0, false
	}
	price := int(math.Round(*raw))
	if price > -100 && price < 100 {
		return 0, false
	}
	return price, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func flightKey(path string, query map[string]string) string {
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(path)
	for _, key := range keys {
		_ = buf.WriteByte('|')
		_, _ = buf.WriteString(key)
		_ = buf.WriteByte('=')
		_, _ = buf.WriteString(query[key])
	}
	return buf.String()
}

func normalizeBookmakers(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func sanitizeSensitiveText(value, apiKey string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if apiKey != "" {
		value = strings.ReplaceAll(value, apiKey, "REDACTED")
	}
	return apiKeyParamRegex.ReplaceAllString(value, "apiKey=REDACTED")
}

func redactAPIURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return apiKeyParamRegex.ReplaceAllString(rawURL, "apiKey=REDACTED")
	}
	query := parsed.Query()
	if query.Has("apiKey") {
		query.Set("apiKey", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func isOddsAPICircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errOddsAPITransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
