package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotblauer/catmode/types/mode"
	"github.com/rotblauer/catmode/types/trip"
	_ "modernc.org/sqlite"
)

// DefaultSQLiteQuery selects one row per fix.
const DefaultSQLiteQuery = `SELECT trip_id, mode, unix_ms, lat, lon FROM fixes ORDER BY trip_id, unix_ms`

const sqliteSchema = `CREATE TABLE IF NOT EXISTS fixes (
	trip_id TEXT NOT NULL,
	mode    TEXT NOT NULL,
	unix_ms INTEGER NOT NULL,
	lat     REAL NOT NULL,
	lon     REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS fixes_trip ON fixes (trip_id, unix_ms);`

// SQLite reads trips from fix rows.
// The query must yield (trip_id, mode, unix_ms, lat, lon); rows sharing a trip_id form a trip.
// A trip's label is taken from its first row.
type SQLite struct {
	Path  string
	Query string
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (s SQLite) Trips(ctx context.Context) ([]*trip.Trip, error) {
	db, err := openSQLite(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	query := s.Query
	if query == "" {
		query = DefaultSQLiteQuery
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query fixes: %w", err)
	}
	defer rows.Close()

	var out []*trip.Trip
	byID := make(map[string]*trip.Trip)
	for rows.Next() {
		var (
			id, label string
			ms        int64
			lat, lon  float64
		)
		if err := rows.Scan(&id, &label, &ms, &lat, &lon); err != nil {
			return nil, fmt.Errorf("scan fix: %w", err)
		}
		t, ok := byID[id]
		if !ok {
			t = &trip.Trip{ID: id, Mode: mode.FromString(label)}
			byID[id] = t
			out = append(out, t)
		}
		t.Fixes = append(t.Fixes, trip.Fix{Time: time.UnixMilli(ms).UTC(), Lat: lat, Lon: lon})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read fixes: %w", err)
	}
	return out, nil
}

// WriteSQLite appends trips as fix rows, creating the table if needed.
func WriteSQLite(ctx context.Context, path string, trips []*trip.Trip) error {
	db, err := openSQLite(path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO fixes (trip_id, mode, unix_ms, lat, lon) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, t := range trips {
		for _, f := range t.Fixes {
			if _, err := stmt.ExecContext(ctx, t.ID, t.Mode.String(), f.Time.UnixMilli(), f.Lat, f.Lon); err != nil {
				return fmt.Errorf("insert trip %s: %w", t.ID, err)
			}
		}
	}
	return tx.Commit()
}
