// Package sqlite reads the monitoring agent's local database. The database
// belongs to the agent, so it is only ever opened read-only.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/storage"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	domain.CaptureLayout,
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// Reader opens the database lazily and retries on every call until the
// file exists, so the server can start before the agent has written anything.
type Reader struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func NewReader(path string) *Reader {
	return &Reader{path: path}
}

func (r *Reader) Path() string { return r.path }

func (r *Reader) conn() (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		return r.db, nil
	}
	if _, err := os.Stat(r.path); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	db, err := sql.Open("sqlite3", readOnlyDSN(r.path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	r.db = db
	return db, nil
}

func readOnlyDSN(path string) string {
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Entries returns samples captured between start and end (DayLayout, both inclusive).
func (r *Reader) Entries(ctx context.Context, start, end string) ([]domain.CaptureSample, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT captured_at_utc, app_name, window_title, details
		 FROM captured_entries
		 WHERE date(captured_at_utc) >= ? AND date(captured_at_utc) <= ?
		 ORDER BY captured_at_utc ASC`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query captured entries: %w", err)
	}
	defer rows.Close()

	var samples []domain.CaptureSample
	for rows.Next() {
		var capturedAt, app, title, details sql.NullString
		if err := rows.Scan(&capturedAt, &app, &title, &details); err != nil {
			return nil, fmt.Errorf("scan captured entry: %w", err)
		}
		samples = append(samples, domain.CaptureSample{
			AppName:     app.String,
			WindowTitle: title.String,
			DetailURL:   details.String,
			CapturedAt:  parseTimestamp(capturedAt.String),
		})
	}
	return samples, rows.Err()
}

// parseTimestamp returns the zero time for values it cannot read.
func parseTimestamp(v string) time.Time {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Stats never fails; an unreachable database reports Connected=false.
func (r *Reader) Stats(ctx context.Context) storage.Stats {
	db, err := r.conn()
	if err != nil {
		return storage.Stats{}
	}
	st := storage.Stats{Connected: true, DBPath: r.path}
	var minDate, maxDate sql.NullString
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(date(captured_at_utc)), MAX(date(captured_at_utc)) FROM captured_entries`,
	).Scan(&st.Count, &minDate, &maxDate)
	if err != nil {
		return storage.Stats{DBPath: r.path}
	}
	st.MinDate, st.MaxDate = minDate.String, maxDate.String
	return st
}

// AppBreakdown returns per-app capture time for the range, largest first.
func (r *Reader) AppBreakdown(ctx context.Context, start, end string) ([]storage.AppUsage, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT app_name, COUNT(*) AS seconds
		 FROM captured_entries
		 WHERE date(captured_at_utc) >= ? AND date(captured_at_utc) <= ?
		 GROUP BY app_name
		 ORDER BY seconds DESC, app_name ASC`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query app breakdown: %w", err)
	}
	defer rows.Close()

	var out []storage.AppUsage
	for rows.Next() {
		var app sql.NullString
		var u storage.AppUsage
		if err := rows.Scan(&app, &u.Seconds); err != nil {
			return nil, fmt.Errorf("scan app breakdown: %w", err)
		}
		u.App = app.String
		u.Hours = math.Round(float64(u.Seconds)/36) / 100
		out = append(out, u)
	}
	return out, rows.Err()
}

// Settings returns the agent's settings table. JSON values are decoded;
// anything else is returned as the raw string.
func (r *Reader) Settings(ctx context.Context) (map[string]any, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	settings := map[string]any{}
	for rows.Next() {
		var key string
		var raw sql.NullString
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
			v = raw.String
		}
		settings[key] = v
	}
	return settings, rows.Err()
}
