package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.SnapshotsSaved("nfl", "theoddsapi:draftkings", 12, 3)
	m.SnapshotsSaved("nfl", "theoddsapi:draftkings", 0, 0)
	m.ProviderFailure("theoddsapi", "nfl", "unavailable")
	m.ProviderFallback("nfl")
	m.RecordsSkipped("espn", "nfl", 2)
	m.PickGraded("nba", "win")
	m.PickGraded("nba", "win")
	m.PickUnsettleable("tie_undefined")
	m.JobDuration("grade_picks", 1500*time.Millisecond)

	if got := testutil.ToFloat64(m.snapshotsSaved.WithLabelValues("nfl", "theoddsapi:draftkings")); got != 12 {
		t.Fatalf("unexpected snapshots saved got=%v want=12", got)
	}
	if got := testutil.ToFloat64(m.openingsSaved.WithLabelValues("nfl")); got != 3 {
		t.Fatalf("unexpected openings got=%v want=3", got)
	}
	if got := testutil.ToFloat64(m.picksGraded.WithLabelValues("nba", "win")); got != 2 {
		t.Fatalf("unexpected graded got=%v want=2", got)
	}
	if got := testutil.ToFloat64(m.recordsSkipped.WithLabelValues("espn", "nfl")); got != 2 {
		t.Fatalf("unexpected skipped got=%v want=2", got)
	}
	if got := testutil.CollectAndCount(m.jobDuration); got != 1 {
		t.Fatalf("unexpected histogram series got=%d want=1", got)
	}
}

func TestMetrics_CircuitStateChanged(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.CircuitStateChanged("theoddsapi", "open")
	if got := testutil.ToFloat64(m.circuitOpen.WithLabelValues("theoddsapi")); got != 1 {
		t.Fatalf("unexpected open gauge got=%v want=1", got)
	}

	m.CircuitStateChanged("theoddsapi", "half_open")
	m.CircuitStateChanged("theoddsapi", "closed")
	if got := testutil.ToFloat64(m.circuitOpen.WithLabelValues("theoddsapi")); got != 0 {
		t.Fatalf("unexpected open gauge got=%v want=0", got)
	}
	if got := testutil.ToFloat64(m.circuitChanges.WithLabelValues("theoddsapi", "open")); got != 1 {
		t.Fatalf("unexpected transitions got=%v want=1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.HTTPRequest(http.MethodPost, "/v1/internal/jobs/grade-picks", http.StatusOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status got=%d want=%d", rec.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `odds_grading_http_requests_total{method="POST",route="/v1/internal/jobs/grade-picks",status="200"} 1`) {
		t.Fatalf("metrics output missing http counter:\n%s", body)
	}
}
