package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestNew_CreatesDatabase(t *testing.T) {
	database := openTestDB(t)

	tables := []string{"projects", "project_revisions", "config", "_migrations"}
	for _, table := range tables {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_Pragmas(t *testing.T) {
	database := openTestDB(t)

	var journalMode string
	if err := database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	var fk int
	if err := database.Conn().QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys error = %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migrationNames() error = %v", err)
	}
	var count int
	if err := db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations error = %v", err)
	}
	if count != len(names) || count != 2 {
		t.Errorf("migration count = %d, want %d", count, len(names))
	}
	if db2.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db2.Path(), dbPath)
	}
}

func TestRevisionsCascadeWithProject(t *testing.T) {
	database := openTestDB(t)
	conn := database.Conn()

	if _, err := conn.Exec(`INSERT INTO projects (id, name, created_at, updated_at) VALUES ('p1', 'demo', 'now', 'now')`); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO project_revisions (project_id, revision, timeline_hash, source, created_at) VALUES ('p1', 1, 'h', 'create', 'now')`); err != nil {
		t.Fatalf("insert revision: %v", err)
	}
	if _, err := conn.Exec(`DELETE FROM projects WHERE id = 'p1'`); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM project_revisions`).Scan(&n); err != nil {
		t.Fatalf("count revisions: %v", err)
	}
	if n != 0 {
		t.Errorf("revisions left = %d, want 0", n)
	}
}

func TestInTx(t *testing.T) {
	database := openTestDB(t)
	conn := database.Conn()
	ctx := context.Background()

	err := InTx(ctx, conn, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO config (key, value) VALUES ('committed', 'yes')`)
		return err
	})
	if err != nil {
		t.Fatalf("InTx() commit error = %v", err)
	}

	boom := errors.New("boom")
	err = InTx(ctx, conn, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO config (key, value) VALUES ('rolled_back', 'yes')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic was swallowed")
			}
		}()
		_ = InTx(ctx, conn, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `INSERT INTO config (key, value) VALUES ('panicked', 'yes')`); err != nil {
				return err
			}
			panic("mid-transaction")
		})
	}()

	keys := map[string]bool{}
	rows, err := conn.Query(`SELECT key FROM config`)
	if err != nil {
		t.Fatalf("query config: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			t.Fatalf("scan: %v", err)
		}
		keys[k] = true
	}
	if !keys["committed"] || keys["rolled_back"] || keys["panicked"] {
		t.Errorf("config keys = %v, want only committed", keys)
	}
}

func TestLockDataDir_Exclusive(t *testing.T) {
	dir := t.TempDir()

	first, err := LockDataDir(dir)
	if err != nil {
		t.Fatalf("LockDataDir() error = %v", err)
	}

	if _, err := LockDataDir(dir); !errors.Is(err, ErrDataDirLocked) {
		t.Fatalf("second LockDataDir() error = %v, want ErrDataDirLocked", err)
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	again, err := LockDataDir(dir)
	if err != nil {
		t.Fatalf("LockDataDir() after unlock error = %v", err)
	}
	_ = again.Unlock()
}
