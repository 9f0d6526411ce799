package espn

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
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
	"github.com/valyala/fasthttp"
)

const (
	ProviderName = "espn"

	defaultBaseURL   = "https://site.api.espn.com/apis/site/v2/sports"
	defaultUserAgent = "odds-grading/1.0"
	maxResponseSize  = 6 << 20

	// DefaultJuice is assumed when ESPN posts a line without a price.
	DefaultJuice = -110
)

var errESPNTransient = crerr.New("espn transient failure")

var sportPaths = map[string]string{
	game.SportNFL:   "football/nfl",
	game.SportNCAAF: "football/college-football",
	game.SportNBA:   "basketball/nba",
	game.SportNCAAB: "basketball/mens-college-basketball",
	game.SportMLB:   "baseball/mlb",
	game.SportNHL:   "hockey/nhl",
	game.SportEPL:   "soccer/eng.1",
	game.SportMLS:   "soccer/usa.1",
}

var eventTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04Z07:00"}

type ClientConfig struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client reads the public ESPN scoreboard. It serves both as the backup
// odds source and as the primary final-score source.
type Client struct {
	httpClient     *fasthttp.Client
	baseURL        string
	userAgent      string
	timeout        time.Duration
	maxRetries     int
	retryBackoff   time.Duration
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
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient: &fasthttp.Client{
			Name:                userAgent,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxResponseBodySize: maxResponseSize,
		},
		baseURL:        baseURL,
		userAgent:      userAgent,
		timeout:        timeout,
		maxRetries:     max(cfg.MaxRetries, 0),
		retryBackoff:   500 * time.Millisecond,
		logger:         logger,
		breaker:        breakerCfg.Build(),
		circuitEnabled: breakerCfg.Enabled,
	}
}

func (c *Client) Name() string {
	return ProviderName
}

// FetchOdds reads the first odds entry of each scheduled competition.
func (c *Client) FetchOdds(ctx context.Context, sport string, date time.Time) (usecase.FetchResult, error) {
	board, err := c.fetchScoreboard(ctx, sport, date)
	if err != nil {
		return usecase.FetchResult{}, err
	}

	result := parseOdds(sport, board)
	if result.Skipped > 0 {
		c.logger.WarnContext(ctx, "skipped malformed odds records", "provider", ProviderName, "sport", sport, "skipped", result.Skipped)
	}
	if len(result.Games) == 0 {
		return result, fmt.Errorf("%w: %s returned no usable games for %s", usecase.ErrProviderEmpty, ProviderName, sport)
	}
	return result, nil
}

func (c *Client) FetchFinalScores(ctx context.Context, sport string, date time.Time) ([]game.FinalScore, error) {
	board, err := c.fetchScoreboard(ctx, sport, date)
	if err != nil {
		return nil, err
	}
	return parseFinals(sport, board), nil
}

func (c *Client) fetchScoreboard(ctx context.Context, sport string, date time.Time) (scoreboard, error) {
	path, ok := sportPaths[strings.ToLower(strings.TrimSpace(sport))]
	if !ok {
		return scoreboard{}, fmt.Errorf("%w: sport %q is not supported by %s", usecase.ErrInvalidInput, sport, ProviderName)
	}
	if date.IsZero() {
		date = time.Now()
	}
	fullURL := scoreboardURL(c.baseURL, path, game.ScheduleDate(date))

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "espn circuit breaker rejected request", "state", c.breaker.State())
			return scoreboard{}, fmt.Errorf("%w: %s: %w", usecase.ErrProviderUnavailable, ProviderName, err)
		}
	}

	out, err, _ := c.flight.DoContext(ctx, fullURL, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && isESPNCircuitFailure(reqErr) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return scoreboard{}, fmt.Errorf("%w: %s: %w", usecase.ErrProviderUnavailable, ProviderName, err)
	}

	raw, ok := out.([]byte)
	if !ok {
		return scoreboard{}, fmt.Errorf("%w: unexpected response payload type %T", usecase.ErrProviderUnavailable, out)
	}
	var board scoreboard
	if err := sonic.Unmarshal(raw, &board); err != nil {
		return scoreboard{}, fmt.Errorf("%w: %s: decode scoreboard: %v", usecase.ErrProviderUnavailable, ProviderName, err)
	}
	return board, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, statusCode, err := c.do(ctx, fullURL)
		switch {
		case err != nil:
			lastErr = fmt.Errorf("%w: send request: %v", errESPNTransient, err)
		case statusCode >= 200 && statusCode < 300:
			return raw, nil
		case isRetryableStatus(statusCode):
			lastErr = fmt.Errorf("%w: provider status=%d body=%s", errESPNTransient, statusCode, abbreviateBody(raw))
		default:
			return nil, fmt.Errorf("provider status=%d body=%s", statusCode, abbreviateBody(raw))
		}

		if attempt == c.maxRetries {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * c.retryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.logger.WarnContext(ctx, "espn request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

// do issues one GET. fasthttp has no context support, so the context
// deadline is turned into a request deadline.
func (c *Client) do(ctx context.Context, fullURL string) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fullURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	req.Header.SetUserAgent(c.userAgent)

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.httpClient.DoDeadline(req, resp, deadline); err != nil {
		return nil, 0, err
	}

	body := append([]byte(nil), resp.Body()...)
	return body, resp.StatusCode(), nil
}

func parseOdds(sport string, board scoreboard) usecase.FetchResult {
	result := usecase.FetchResult{Games: make([]usecase.RawGameOdds, 0, len(board.Events))}
	for _, ev := range board.Events {
		if len(ev.Competitions) == 0 {
			result.Skipped++
			continue
		}
		comp := ev.Competitions[0]
		home, away, ok := sides(comp.Competitors)
		scheduledAt, timeOK := parseEventTime(firstNonEmpty(comp.Date, ev.Date))
		if !ok || !timeOK {
			result.Skipped++
			continue
		}
		if len(comp.Odds) == 0 {
			// scheduled but not priced yet
			continue
		}
		line := comp.Odds[0]

		item := usecase.RawGameOdds{
			Provider:    ProviderName,
			EventID:     ev.ID,
			Sport:       sport,
			HomeTeam:    home.Team.DisplayName,
			AwayTeam:    away.Team.DisplayName,
			ScheduledAt: scheduledAt.UTC(),
		}
		if spread, ok := homeSpread(line, home.Team.Abbreviation, away.Team.Abbreviation); ok {
			item.Spread = &usecase.SpreadMarket{
				HomeLine:  spread,
				HomePrice: priceOrDefault(line.HomeTeamOdds.SpreadOdds),
				AwayPrice: priceOrDefault(line.AwayTeamOdds.SpreadOdds),
			}
		}
		if line.OverUnder != nil && isFinite(*line.OverUnder) && *line.OverUnder > 0 {
			item.Total = &usecase.TotalMarket{
				Line:       decimal.NewFromFloat(*line.OverUnder),
				OverPrice:  priceOrDefault(line.OverOdds),
				UnderPrice: priceOrDefault(line.UnderOdds),
			}
		}
		homeML, homeOK := americanPrice(line.HomeTeamOdds.MoneyLine)
		awayML, awayOK := americanPrice(line.AwayTeamOdds.MoneyLine)
		if homeOK || awayOK {
			item.Moneyline = &usecase.MoneylineMarket{}
			if homeOK {
				item.Moneyline.Home = &homeML
			}
			if awayOK {
				item.Moneyline.Away = &awayML
			}
		}

		if item.Spread == nil && item.Total == nil && item.Moneyline == nil {
			result.Skipped++
			continue
		}
		result.Games = append(result.Games, item)
	}

	sort.SliceStable(result.Games, func(i, j int) bool {
		if !result.Games[i].ScheduledAt.Equal(result.Games[j].ScheduledAt) {
			return result.Games[i].ScheduledAt.Before(result.Games[j].ScheduledAt)
		}
		return result.Games[i].EventID < result.Games[j].EventID
	})
	return result
}

func parseFinals(sport string, board scoreboard) []game.FinalScore {
	out := make([]game.FinalScore, 0, len(board.Events))
	for _, ev := range board.Events {
		if len(ev.Competitions) == 0 {
			continue
		}
		comp := ev.Competitions[0]
		home, away, ok := sides(comp.Competitors)
		scheduledAt, timeOK := parseEventTime(firstNonEmpty(comp.Date, ev.Date))
		if !ok || !timeOK {
			continue
		}

		final := game.FinalScore{
			GameID:      game.CanonicalID(sport, scheduledAt, home.Team.DisplayName, away.Team.DisplayName),
			Sport:       sport,
			HomeTeam:    home.Team.DisplayName,
			AwayTeam:    away.Team.DisplayName,
			ScheduledAt: scheduledAt.UTC(),
		}
		homeScore, homeErr := strconv.Atoi(strings.TrimSpace(home.Score))
		awayScore, awayErr := strconv.Atoi(strings.TrimSpace(away.Score))
		if homeErr == nil && awayErr == nil && homeScore >= 0 && awayScore >= 0 {
			final.HomeScore = homeScore
			final.AwayScore = awayScore
			final.Completed = comp.Status.Type.Completed
		}
		out = append(out, final)
	}
	return out
}

func sides(items []competitor) (competitor, competitor, bool) {
	var home, away competitor
	var homeOK, awayOK bool
	for _, item := range items {
		item.Team.DisplayName = strings.TrimSpace(item.Team.DisplayName)
		if item.Team.DisplayName == "" {
			continue
		}
		switch strings.ToLower(item.HomeAway) {
		case "home":
			home, homeOK = item, true
		case "away":
			away, awayOK = item, true
		}
	}
	return home, away, homeOK && awayOK
}

// homeSpread prefers the numeric spread field, which ESPN quotes for the
// home side. Otherwise it reads details such as "KC -3.5" or "EVEN".
func homeSpread(line odds, homeAbbr, awayAbbr string) (decimal.Decimal, bool) {
	if line.Spread != nil && isFinite(*line.Spread) {
		return decimal.NewFromFloat(*line.Spread), true
	}

	details := strings.TrimSpace(line.Details)
	if strings.EqualFold(details, "even") || strings.EqualFold(details, "pk") {
		return decimal.Zero, true
	}
	fields := strings.Fields(details)
	if len(fields) != 2 {
		return decimal.Decimal{}, false
	}
	value, err := decimal.NewFromString(fields[1])
	if err != nil {
		return decimal.Decimal{}, false
	}
	switch {
	case strings.EqualFold(fields[0], homeAbbr):
		return value, true
	case strings.EqualFold(fields[0], awayAbbr):
		return value.Neg(), true
	default:
		return decimal.Decimal{}, false
	}
}

func parseEventTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range eventTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func priceOrDefault(raw *float64) int {
	if price, ok := americanPrice(raw); ok {
		return price
	}
	return DefaultJuice
}

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

func scoreboardURL(baseURL, sportPath string, day time.Time) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(baseURL)
	_ = buf.WriteByte('/')
	_, _ = buf.WriteString(sportPath)
	_, _ = buf.WriteString("/scoreboard?dates=")
	_, _ = buf.WriteString(day.Format("20060102"))
	return buf.String()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func isESPNCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errESPNTransient)
}

func isRetryableStatus(code int) bool {
	return code == fasthttp.StatusTooManyRequests || code >= fasthttp.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
