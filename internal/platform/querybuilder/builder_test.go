package querybuilder

import "testing"

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("id", "capper_id").
		From("picks").
		Where(Eq("status", "pending"), IsNull("settled_at")).
		OrderBy("id").
		Limit(10).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT id, capper_id FROM picks WHERE status = $1 AND settled_at IS NULL ORDER BY id LIMIT 10"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 1 || args[0] != "pending" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertBuilder(t *testing.T) {
	query, args, err := InsertInto("picks").
		Columns("id", "capper_id").
		Values("p1", "capper-1").
		Suffix("RETURNING id").
		ToSQL()
	if err != nil {
		t.Fatalf("build insert query: %v", err)
	}

	wantQuery := "INSERT INTO picks (id, capper_id) VALUES ($1, $2) RETURNING id"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "p1" || args[1] != "capper-1" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestUpdateBuilder(t *testing.T) {
	query, args, err := Update("picks").
		Set("status", "won").
		SetExpr("settled_at", "NOW()").
		Where(Eq("id", "p1")).
		ToSQL()
	if err != nil {
		t.Fatalf("build update query: %v", err)
	}

	wantQuery := "UPDATE picks SET status = $1, settled_at = NOW() WHERE id = $2"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "won" || args[1] != "p1" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestSelectBuilder_HavingAndForUpdate(t *testing.T) {
	query, args, err := Select("game_id", "provider").
		From("odds_snapshots").
		Where(Expr("scheduled_at <= ?", 10)).
		GroupBy("game_id", "provider").
		Having(Expr("NOT BOOL_OR(is_closing)")).
		Limit(5).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT game_id, provider FROM odds_snapshots WHERE scheduled_at <= $1 GROUP BY game_id, provider HAVING NOT BOOL_OR(is_closing) LIMIT 5"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 1 || args[0] != 10 {
		t.Fatalf("unexpected args: %+v", args)
	}

	query, _, err = Select("*").From("capper_stats").Where(Eq("capper_id", "c1")).ForUpdate().ToSQL()
	if err != nil {
		t.Fatalf("build for update query: %v", err)
	}
	if query != "SELECT * FROM capper_stats WHERE capper_id = $1 FOR UPDATE" {
		t.Fatalf("unexpected for update query: %s", query)
	}
}

func TestInsertSelectBuilder(t *testing.T) {
	query, args, err := InsertSelect("odds_snapshots").
		Columns("game_id", "provider").
		Casts("text", "text").
		Values("g1", "p1").
		Values("g2", "p1").
		Computed("is_opening", "NOT EXISTS (SELECT 1 FROM odds_snapshots s WHERE s.game_id = v.game_id)").
		Suffix("ON CONFLICT DO NOTHING").
		ToSQL()
	if err != nil {
		t.Fatalf("build insert select query: %v", err)
	}

	wantQuery := "INSERT INTO odds_snapshots (game_id, provider, is_opening) SELECT v.game_id, v.provider, " +
		"NOT EXISTS (SELECT 1 FROM odds_snapshots s WHERE s.game_id = v.game_id) " +
		"FROM (VALUES ($1::text, $2::text), ($3::text, $4::text)) AS v (game_id, provider) ON CONFLICT DO NOTHING"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 4 || args[2] != "g2" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertSelectBuilder_RejectsCastMismatch(t *testing.T) {
	_, _, err := InsertSelect("t").Columns("a", "b").Casts("text").Values(1, 2).ToSQL()
	if err == nil {
		t.Fatalf("expected cast count mismatch error")
	}
}

type dispatchModel struct {
	DispatchID string  `db:"dispatch_id"`
	Status     string  `db:"status,omitempty"`
	LastError  *string `db:"last_error"`
	Ignored    string  `db:"-"`
	internal   string
}

func TestInsertModel(t *testing.T) {
	query, args, err := InsertModel("job_dispatches", dispatchModel{DispatchID: "d1", Status: "sent", internal: "x"}, "ON CONFLICT DO NOTHING")
	if err != nil {
		t.Fatalf("build insert model query: %v", err)
	}

	wantQuery := "INSERT INTO job_dispatches (dispatch_id, status, last_error) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 3 || args[0] != "d1" || args[2] != (*string)(nil) {
		t.Fatalf("unexpected args: %+v", args)
	}

	if _, _, err := InsertModel("job_dispatches", (*dispatchModel)(nil), ""); err == nil {
		t.Fatalf("expected error for nil model")
	}
	if _, _, err := InsertModel("job_dispatches", 42, ""); err == nil {
		t.Fatalf("expected error for non-struct model")
	}
}

func TestColumnsOf(t *testing.T) {
	got := ColumnsOf(&dispatchModel{})
	if len(got) != 3 || got[0] != "dispatch_id" || got[2] != "last_error" {
		t.Fatalf("unexpected columns got=%v", got)
	}
	if ColumnsOf("nope") != nil {
		t.Fatalf("expected nil columns for non-struct")
	}
}
