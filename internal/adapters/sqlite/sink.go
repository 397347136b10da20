// Package sqlite persists windows to a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/bft-labs/platewatch/internal/domain"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "licensePlatesDatabase.db"

const schema = `
CREATE TABLE IF NOT EXISTS LicensePlates (
	start_time    TEXT NOT NULL,
	end_time      TEXT NOT NULL,
	license_plate TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_license_plates_window ON LicensePlates(start_time, end_time);
`

const insertRecord = `INSERT INTO LicensePlates(start_time, end_time, license_plate) VALUES (?, ?, ?)`

// Row is one stored record as read back from the table.
type Row struct {
	StartTime string
	EndTime   string
	Plate     string
}

// Sink implements ports.WindowSink. Each window is written in one transaction.
type Sink struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Sink, error) {
	if path == "" {
		path = DefaultPath
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection keeps transactions serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, multierr.Append(fmt.Errorf("create schema: %w", err), db.Close())
	}
	return &Sink{db: db}, nil
}

// Flush inserts one row per plate. Either every row of the window is
// committed or none is.
func (s *Sink) Flush(ctx context.Context, w *domain.Window) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, ignoreDone(tx.Rollback()))
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range w.Records() {
		if _, err := stmt.ExecContext(ctx, r.StartTime(), r.EndTime(), r.Plate); err != nil {
			return fmt.Errorf("insert %s: %w", r.Plate, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rows returns every stored record in insertion order.
func (s *Sink) Rows(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT start_time, end_time, license_plate FROM LicensePlates ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.StartTime, &r.EndTime, &r.Plate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Sink) Close() error {
	return s.db.Close()
}

func ignoreDone(err error) error {
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
