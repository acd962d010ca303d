package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	reveal "github.com/goliatone/go-reveal"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}
	dialects := map[string]bool{}
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		dialects[entry.Dialect] = true
	}
	if !dialects[DialectPostgres] || !dialects[DialectSQLite] {
		t.Fatalf("expected postgres and sqlite filesystems, got %v", dialects)
	}
}

func TestFilesystems_RejectsMissingDownMigration(t *testing.T) {
	source := fstest.MapFS{
		"data/sql/migrations/00001_a.up.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00001_a.down.sql":      {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.up.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := Filesystems(source); err == nil || !strings.Contains(err.Error(), "no down migration") {
		t.Fatalf("expected missing down migration error, got %v", err)
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		calls = append(calls, dialect+":"+label)
		return nil
	}, WithValidationTargets(" SQLite "), WithSourceLabel("reveal-tests"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != "sqlite:reveal-tests" {
		t.Fatalf("expected single sqlite registration, got %v", calls)
	}
	if reg.SourceLabel != "reveal-tests" {
		t.Fatalf("unexpected source label %q", reg.SourceLabel)
	}

	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected missing register func error")
	}
}

func TestDialectForDriver(t *testing.T) {
	if dialect, err := DialectForDriver("sqlite3"); err != nil || dialect != DialectSQLite {
		t.Fatalf("unexpected sqlite mapping %q %v", dialect, err)
	}
	if dialect, err := DialectForDriver("postgres"); err != nil || dialect != DialectPostgres {
		t.Fatalf("unexpected postgres mapping %q %v", dialect, err)
	}
	if _, err := DialectForDriver("mysql"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestSQLiteAttemptsMigration_ApplyAndRollback(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file:migrations-reveal-attempts?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(reveal.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_reveal_attempts.up.sql"); err != nil {
		t.Fatalf("apply up: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO reveal_attempts (id, outcome, identifier_kinds) VALUES (?, ?, ?)`,
		"att_1", "succeeded", `["record_id"]`,
	); err != nil {
		t.Fatalf("insert attempt: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reveal_attempts`).Scan(&count); err != nil {
		t.Fatalf("count attempts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one attempt, got %d", count)
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_reveal_attempts.down.sql"); err != nil {
		t.Fatalf("apply down: %v", err)
	}
	var name string
	err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'reveal_attempts'`).Scan(&name)
	if err != sql.ErrNoRows {
		t.Fatalf("expected table dropped, got %q %v", name, err)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filename)
	if err != nil {
		return err
	}
	for _, statement := range strings.Split(string(content), "--bun:split") {
		if strings.TrimSpace(statement) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return err
		}
	}
	return nil
}
