// Package db records request samples in SQLite so that repeated runs of
// hitreq poll can be inspected and compared afterwards.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	migrate "github.com/rubenv/sql-migrate"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// migrations creates and evolves the samples schema. Applied ids are
// tracked in the gorp_migrations table.
var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1_samples",
			Up: []string{`
CREATE TABLE samples (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	seq         INTEGER NOT NULL,
	started_at  INTEGER NOT NULL,
	url         TEXT    NOT NULL,
	transport   TEXT    NOT NULL,
	status      INTEGER NOT NULL,
	redirected  INTEGER NOT NULL,
	bytes       INTEGER NOT NULL,
	latency_us  INTEGER NOT NULL,
	error_kind  TEXT    NOT NULL DEFAULT '',
	error       TEXT    NOT NULL DEFAULT ''
)`,
				`CREATE INDEX samples_run ON samples (run_id, seq)`,
			},
			Down: []string{`DROP TABLE samples`},
		},
	},
}

// Sample is one recorded request outcome. Status is 0 when the dispatch
// failed before a response arrived.
type Sample struct {
	RunID      string
	Seq        int
	StartedAt  time.Time
	URL        string
	Transport  string
	Status     int
	Redirected bool
	Bytes      int64
	Latency    time.Duration
	ErrorKind  string
	Error      string
}

// Failed reports whether the sample carries an error.
func (s Sample) Failed() bool {
	return s.ErrorKind != "" || s.Error != ""
}

// QueryResult represents the result of a database query
type QueryResult struct {
	Columns []string
	Rows    []map[string]interface{}
}

// Summary aggregates the samples of one run.
type Summary struct {
	Count    int
	Failures int
	Statuses map[int]int
}

// Recorder stores samples in a SQLite database
type Recorder struct {
	db           *sql.DB
	dataSource   string
	queryTimeout time.Duration
}

// Open opens (creating when needed) the recorder database named by
// connectionString and applies pending migrations.
func Open(connectionString string) (*Recorder, error) {
	driver, dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; observers record from several goroutines
	db.SetMaxOpenConns(1)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	n, err := migrate.Exec(db, "sqlite3", migrations, migrate.Up)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Debugf("performed %d migrations", n)

	return &Recorder{
		db:           db,
		dataSource:   dsn,
		queryTimeout: 30 * time.Second,
	}, nil
}

// Close closes the database connection
func (r *Recorder) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Record appends s.
func (r *Recorder) Record(ctx context.Context, s Sample) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO samples (run_id, seq, started_at, url, transport, status, redirected, bytes, latency_us, error_kind, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Seq, s.StartedAt.UnixMicro(), s.URL, s.Transport, s.Status,
		s.Redirected, s.Bytes, s.Latency.Microseconds(), s.ErrorKind, s.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record sample: %w", err)
	}
	return nil
}

// Samples returns the samples of runID in sequence order.
func (r *Recorder) Samples(ctx context.Context, runID string) ([]Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, seq, started_at, url, transport, status, redirected, bytes, latency_us, error_kind, error
		FROM samples WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var (
			s         Sample
			startedAt int64
			latency   int64
		)
		if err := rows.Scan(&s.RunID, &s.Seq, &startedAt, &s.URL, &s.Transport, &s.Status,
			&s.Redirected, &s.Bytes, &latency, &s.ErrorKind, &s.Error); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.StartedAt = time.UnixMicro(startedAt)
		s.Latency = time.Duration(latency) * time.Microsecond
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return samples, nil
}

// Summarize counts the samples of runID by outcome.
func (r *Recorder) Summarize(runID string) (*Summary, error) {
	result, err := r.Query(`
		SELECT status, COUNT(*) AS n, SUM(error_kind <> '' OR error <> '') AS failures
		FROM samples WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Statuses: make(map[int]int)}
	for _, row := range result.Rows {
		status, _ := row["status"].(int64)
		n, _ := row["n"].(int64)
		failures, _ := row["failures"].(int64)
		summary.Count += int(n)
		summary.Failures += int(failures)
		summary.Statuses[int(status)] += int(n)
	}
	return summary, nil
}

// Query executes a SQL query and returns the result
func (r *Recorder) Query(query string, args ...interface{}) (*QueryResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := &QueryResult{
		Columns: columns,
		Rows:    make([]map[string]interface{}, 0),
	}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			val := values[i]
			// Convert []byte to string for better handling
			if b, ok := val.([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = val
			}
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return result, nil
}

// parseConnectionString parses a connection string into driver and DSN
// Supported formats:
// - sqlite://path/to/db.sqlite
// - sqlite:./test.db
// - a bare path ending in .db, .sqlite or .sqlite3
func parseConnectionString(connStr string) (driver string, dsn string, err error) {
	connStr = strings.TrimSpace(connStr)

	// Handle sqlite:// and sqlite: prefixes
	if strings.HasPrefix(connStr, "sqlite://") {
		return "sqlite3", strings.TrimPrefix(connStr, "sqlite://"), nil
	}
	if strings.HasPrefix(connStr, "sqlite:") {
		return "sqlite3", strings.TrimPrefix(connStr, "sqlite:"), nil
	}
	for _, ext := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(connStr, ext) && !strings.Contains(connStr, "://") {
			return "sqlite3", connStr, nil
		}
	}

	return "", "", fmt.Errorf("unsupported database %q: only sqlite is supported", connStr)
}
