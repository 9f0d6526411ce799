package theoddsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/riskibarqy/odds-grading/internal/platform/resilience"
	"github.com/riskibarqy/odds-grading/internal/usecase"
	"github.com/shopspring/decimal"
)

const oddsPayload = `[
  {
    "id": "evt-1",
    "sport_key": "americanfootball_nfl",
    "commence_time": "2026-10-16T00:15:00Z",
    "home_team": "Kansas City Chiefs",
    "away_team": "Las Vegas Raiders",
    "bookmakers": [
      {
        "key": "draftkings",
        "title": "DraftKings",
        "markets": [
          {"key": "h2h", "outcomes": [{"name": "Kansas City Chiefs", "price": -180}, {"name": "Las Vegas Raiders", "price": 155}]},
          {"key": "spreads", "outcomes": [{"name": "Kansas City Chiefs", "price": -108, "point": -3.5}, {"name": "Las Vegas Raiders", "point": 3.5}]},
          {"key": "totals", "outcomes": [{"name": "Over", "price": -112, "point": 44.5}, {"name": "Under", "price": -108, "point": 44.5}]}
        ]
      },
      {
        "key": "fanduel",
        "title": "FanDuel",
        "markets": [
          {"key": "spreads", "outcomes": [{"name": "Las Vegas Raiders", "price": -105, "point": 4}]}
        ]
      },
      {
        "key": "bovada",
        "markets": []
      }
    ]
  },
  {
    "id": "evt-bad",
    "commence_time": "not-a-time",
    "home_team": "Buffalo Bills",
    "away_team": "Miami Dolphins",
    "bookmakers": []
  }
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		APIKey:     "secret-key",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		Logger:     logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	})
	client.retryBackoff = time.Millisecond
	return client
}

func TestClient_FetchOdds_NormalizesBookmakersAsProviders(t *testing.T) {
	t.Parallel()

	var gotQuery atomic.Value
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sports/americanfootball_nfl/odds" {
			t.Errorf("unexpected path got=%s", r.URL.Path)
		}
		gotQuery.Store(r.URL.Query())
		_, _ = w.Write([]byte(oddsPayload))
	})

	result, err := client.FetchOdds(context.Background(), "nfl", time.Date(2026, 10, 15, 15, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("fetch odds: %v", err)
	}

	query := gotQuery.Load().(url.Values)
	if query["apiKey"][0] != "secret-key" || query["oddsFormat"][0] != "american" {
		t.Fatalf("unexpected query: %v", query)
	}
	if query["commenceTimeFrom"][0] != "2026-10-15T04:00:00Z" {
		t.Fatalf("unexpected commenceTimeFrom got=%s want=2026-10-15T04:00:00Z", query["commenceTimeFrom"][0])
	}

	if len(result.Games) != 2 {
		t.Fatalf("unexpected game count got=%d want=2", len(result.Games))
	}
	// bad commence time and the market-less bovada entry
	if result.Skipped != 2 {
		t.Fatalf("unexpected skipped got=%d want=2", result.Skipped)
	}

	dk := result.Games[0]
	if dk.Provider != "theoddsapi:draftkings" {
		t.Fatalf("unexpected provider got=%s want=theoddsapi:draftkings", dk.Provider)
	}
	if dk.Spread == nil || !dk.Spread.HomeLine.Equal(decimal.RequireFromString("-3.5")) {
		t.Fatalf("unexpected spread: %+v", dk.Spread)
	}
	if dk.Spread.HomePrice != -108 || dk.Spread.AwayPrice != DefaultJuice {
		t.Fatalf("unexpected spread prices home=%d away=%d", dk.Spread.HomePrice, dk.Spread.AwayPrice)
	}
	if dk.Total == nil || dk.Total.OverPrice != -112 || dk.Total.UnderPrice != -108 {
		t.Fatalf("unexpected total: %+v", dk.Total)
	}
	if dk.Moneyline == nil || *dk.Moneyline.Home != -180 || *dk.Moneyline.Away != 155 {
		t.Fatalf("unexpected moneyline: %+v", dk.Moneyline)
	}

	fd := result.Games[1]
	if fd.Provider != "theoddsapi:fanduel" || fd.Spread == nil || !fd.Spread.HomeLine.Equal(decimal.RequireFromString("-4")) {
		t.Fatalf("away-only spread must be negated onto the home side: %+v", fd.Spread)
	}
}

func TestClient_FetchOdds_EmptyBodyIsProviderEmpty(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.FetchOdds(context.Background(), "nba", time.Now())
	if !errors.Is(err, usecase.ErrProviderEmpty) {
		t.Fatalf("expected provider empty, got %v", err)
	}
}

func TestClient_FetchOdds_RetriesTransientStatusThenOpensCircuit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"down"}`))
	})

	_, err := client.FetchOdds(context.Background(), "nhl", time.Now())
	if !errors.Is(err, usecase.ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("unexpected attempts got=%d want=3", got)
	}

	_, err = client.FetchOdds(context.Background(), "nhl", time.Now())
	if !errors.Is(err, usecase.ErrProviderUnavailable) || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("open circuit must not reach the server, attempts=%d", got)
	}
}

func TestClient_FetchOdds_UnauthorizedIsNotRetriedAndRedactsKey(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
	})

	_, err := client.FetchOdds(context.Background(), "mlb", time.Now())
	if !errors.Is(err, usecase.ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, attempts=%d", calls.Load())
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Fatalf("api key leaked into error: %v", err)
	}
}

func TestClient_FetchOdds_NonJSONBodyIsUnavailable(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := client.FetchOdds(context.Background(), "epl", time.Now())
	if !errors.Is(err, usecase.ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
}

func TestClient_FetchOdds_UnknownSport(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("server must not be called")
	})
	if _, err := client.FetchOdds(context.Background(), "cricket", time.Now()); !errors.Is(err, usecase.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestClient_FetchFinalScores(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("daysFrom") != "3" {
			t.Errorf("unexpected daysFrom got=%s", r.URL.Query().Get("daysFrom"))
		}
		_, _ = w.Write([]byte(`[
		  {"id":"a","commence_time":"2026-10-16T00:15:00Z","completed":true,"home_team":"Kansas City Chiefs","away_team":"Las Vegas Raiders",
		   "scores":[{"name":"Las Vegas Raiders","score":"20"},{"name":"Kansas City Chiefs","score":"27"}]},
		  {"id":"b","commence_time":"2026-10-15T23:00:00Z","completed":false,"home_team":"Buffalo Bills","away_team":"Miami Dolphins",
		   "scores":[{"name":"Buffalo Bills","score":"7"},{"name":"Miami Dolphins","score":"3"}]},
		  {"id":"c","commence_time":"2026-10-13T23:00:00Z","completed":true,"home_team":"Denver Broncos","away_team":"New York Jets",
		   "scores":[{"name":"Denver Broncos","score":"21"},{"name":"New York Jets","score":"14"}]}
		]`))
	})

	finals, err := client.FetchFinalScores(context.Background(), "nfl", time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("fetch final scores: %v", err)
	}
	if len(finals) != 2 {
		t.Fatalf("unexpected final count got=%d want=2", len(finals))
	}

	chiefs := finals[0]
	if chiefs.GameID != "nfl:20261015:las-vegas-raiders@kansas-city-chiefs" {
		t.Fatalf("unexpected game id got=%s", chiefs.GameID)
	}
	if !chiefs.Completed || chiefs.HomeScore != 27 || chiefs.AwayScore != 20 {
		t.Fatalf("unexpected final: %+v", chiefs)
	}
	if finals[1].Completed {
		t.Fatalf("in-progress game must not be completed: %+v", finals[1])
	}
}

func TestSanitizeSensitiveText(t *testing.T) {
	t.Parallel()

	got := sanitizeSensitiveText(`Get "https://api.the-odds-api.com/v4/sports?apiKey=abc123&regions=us": timeout`, "")
	want := `Get "https://api.the-odds-api.com/v4/sports?apiKey=REDACTED&regions=us": timeout`
	if got != want {
		t.Fatalf("unexpected sanitized text got=%q want=%q", got, want)
	}
}
