package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpenMemory_Pragmas(t *testing.T) {
	db := OpenMemory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("pragma foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys: got %d, want 1", fk)
	}
}

func TestOpen_WithSchema(t *testing.T) {
	db := OpenMemory(t, WithSchema(`CREATE TABLE items (id TEXT PRIMARY KEY)`))

	if _, err := db.Exec(`INSERT INTO items (id) VALUES ('a')`); err != nil {
		t.Fatalf("insert into schema table: %v", err)
	}
}

func TestRunTx_CommitsOnSuccess(t *testing.T) {
	db := OpenMemory(t, WithSchema(`CREATE TABLE items (id TEXT PRIMARY KEY)`))

	err := RunTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO items (id) VALUES ('a')`)
		return err
	})
	if err != nil {
		t.Fatalf("RunTx: %v", err)
	}

	var n int
	db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n)
	if n != 1 {
		t.Errorf("rows after commit: got %d, want 1", n)
	}
}

func TestRunTx_RollsBackOnError(t *testing.T) {
	db := OpenMemory(t, WithSchema(`CREATE TABLE items (id TEXT PRIMARY KEY)`))

	boom := errors.New("boom")
	err := RunTx(context.Background(), db, func(tx *sql.Tx) error {
		tx.Exec(`INSERT INTO items (id) VALUES ('a')`)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunTx error: got %v, want boom", err)
	}

	var n int
	db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n)
	if n != 0 {
		t.Errorf("rows after rollback: got %d, want 0", n)
	}
}

func TestIsBusy(t *testing.T) {
	if IsBusy(nil) {
		t.Error("nil should not be busy")
	}
	if !IsBusy(errors.New("SQLITE_BUSY: database is locked")) {
		t.Error("SQLITE_BUSY should be busy")
	}
	if IsBusy(errors.New("syntax error")) {
		t.Error("syntax error should not be busy")
	}
}
