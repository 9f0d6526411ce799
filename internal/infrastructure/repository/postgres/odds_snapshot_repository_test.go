package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
)

// openTestDB connects to TEST_DB_URL and applies the snapshot table DDL,
// which is idempotent. Tests skip when the variable is unset.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_DB_URL"))
	if dsn == "" {
		t.Skip("TEST_DB_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ddl, err := os.ReadFile("../../../../db/migrations/1791331200_create_odds_snapshots.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := db.Exec(string(ddl)); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	return db
}

func testGameID(t *testing.T, db *sqlx.DB) string {
	t.Helper()

	gameID := "test-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM odds_snapshots WHERE game_id = $1`, gameID)
	})
	return gameID
}

func testSnapshot(gameID string, capturedAt time.Time) oddssnapshot.Snapshot {
	spread := decimal.RequireFromString("-3.5")
	total := decimal.RequireFromString("44.5")
	return oddssnapshot.Snapshot{
		GameID:          gameID,
		Provider:        "consensus",
		Sport:           "nfl",
		ScheduledAt:     capturedAt.Add(48 * time.Hour),
		HomeTeam:        "Kansas City Chiefs",
		AwayTeam:        "Buffalo Bills",
		Spread:          &spread,
		SpreadHomePrice: -110,
		SpreadAwayPrice: -110,
		Total:           &total,
		OverPrice:       -110,
		UnderPrice:      -110,
		CapturedAt:      capturedAt,
	}
}

func TestOddsSnapshotRepository_AppendBatch_ConcurrentWritersMarkOneOpening(t *testing.T) {
	db := openTestDB(t)
	repo := NewOddsSnapshotRepository(db)
	gameID := testGameID(t, db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	const writers = 8
	results := make([]oddssnapshot.AppendResult, writers)
	errs := make([]error, writers)

	var wg conc.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Go(func() {
			results[i], errs[i] = repo.AppendBatch(ctx, []oddssnapshot.Snapshot{
				testSnapshot(gameID, base.Add(time.Duration(i)*time.Minute)),
			})
		})
	}
	wg.Wait()

	var total oddssnapshot.AppendResult
	for i := 0; i < writers; i++ {
		if errs[i] != nil {
			t.Fatalf("append %d: %v", i, errs[i])
		}
		total = total.Add(results[i])
	}
	if total.Inserted != writers {
		t.Fatalf("unexpected inserted got=%d want=%d", total.Inserted, writers)
	}
	if total.Openings != 1 {
		t.Fatalf("unexpected reported openings got=%d want=1", total.Openings)
	}

	var openings int
	if err := db.Get(&openings, `SELECT COUNT(*) FROM odds_snapshots WHERE game_id = $1 AND is_opening`, gameID); err != nil {
		t.Fatalf("count openings: %v", err)
	}
	if openings != 1 {
		t.Fatalf("unexpected opening rows got=%d want=1", openings)
	}
}

func TestOddsSnapshotRepository_AppendBatch_RepeatedBatchCountsDuplicates(t *testing.T) {
	db := openTestDB(t)
	repo := NewOddsSnapshotRepository(db)
	gameID := testGameID(t, db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	batch := []oddssnapshot.Snapshot{
		testSnapshot(gameID, base),
		testSnapshot(gameID, base.Add(time.Minute)),
	}

	first, err := repo.AppendBatch(ctx, batch)
	if err != nil {
		t.Fatalf("first append: %v", err)
	}
	if first.Inserted != 2 || first.Openings != 1 {
		t.Fatalf("unexpected first result got=%+v", first)
	}

	second, err := repo.AppendBatch(ctx, batch)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if second.Inserted != 0 || second.Duplicates != 2 || second.Openings != 0 {
		t.Fatalf("unexpected second result got=%+v want inserted=0 duplicates=2 openings=0", second)
	}

	var opening time.Time
	if err := db.Get(&opening, `SELECT captured_at FROM odds_snapshots WHERE game_id = $1 AND is_opening`, gameID); err != nil {
		t.Fatalf("load opening: %v", err)
	}
	if !opening.Equal(base) {
		t.Fatalf("unexpected opening captured_at got=%s want=%s", opening, base)
	}
}
