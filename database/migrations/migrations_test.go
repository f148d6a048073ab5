package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	for _, table := range []string{"users", "posts", "likes", "reposts", "follows", "comments", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	err := CheckDBMigrationStatus(db, SQLite)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}
	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("first MigrateUp() error = %v", err)
	}
	if err := MigrateUp(db, SQLite); err != nil {
		t.Errorf("second MigrateUp() error = %v", err)
	}
	if err := CheckDBMigrationStatus(db, SQLite); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration error = %v", err)
	}
}

func TestFollowsRejectSelfEdge(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	if _, err := db.Exec(`INSERT INTO users (id, handle, email, created_at) VALUES ('u1', 'alice', 'a@example.com', 0)`); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO follows (follower_id, followee_id, created_at) VALUES ('u1', 'u1', 0)`); err == nil {
		t.Error("self follow was accepted")
	}
}

func TestUnsupportedDialect(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db, "oracle"); err == nil {
		t.Error("MigrateUp() with unknown dialect succeeded")
	}
}

func TestCommentsNumberedInInsertionOrder(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	if _, err := db.Exec(`INSERT INTO users (id, handle, email, created_at) VALUES ('u1', 'alice', 'a@example.com', 0)`); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO posts (id, author_id, text, created_at) VALUES ('p1', 'u1', 'x', 0)`); err != nil {
		t.Fatalf("insert post: %v", err)
	}
	// ids and timestamps both disagree with insertion order.
	for _, c := range []struct {
		id string
		ms int
	}{{"c9", 30}, {"c1", 10}, {"c5", 20}} {
		if _, err := db.Exec(`INSERT INTO comments (id, post_id, author_id, text, created_at) VALUES (?, 'p1', 'u1', 'x', ?)`, c.id, c.ms); err != nil {
			t.Fatalf("insert comment %s: %v", c.id, err)
		}
	}

	rows, err := db.Query(`SELECT id FROM comments WHERE post_id = 'p1' ORDER BY seq`)
	if err != nil {
		t.Fatalf("query comments: %v", err)
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, id)
	}
	want := []string{"c9", "c1", "c5"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}
