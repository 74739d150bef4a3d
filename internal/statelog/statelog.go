// Package statelog implements an optional SQLite-backed audit log of
// routing table mutations, so an operator can query a node's convergence
// history after the fact. It is purely observational: disabling it (by not
// passing -state-db) changes no routing behavior.
package statelog

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/gzip"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS route_changes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	at_unix     INTEGER NOT NULL,
	dest_id     INTEGER NOT NULL,
	next_hop    INTEGER NOT NULL,
	cost        REAL NOT NULL,
	reachable   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS route_changes_dest_id ON route_changes(dest_id);
`

// Log appends route change rows to a SQLite database, opened the way
// db/atlasdb.Open does (WAL mode, a larger page cache, a busy timeout so
// concurrent readers don't collide with the writer).
type Log struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the audit log at path.
func Open(path string) (*Log, error) {
	dsn := (&url.URL{
		Path: path,
		RawQuery: (url.Values{
			"_journal":      {"WAL"},
			"_cache_size":   {"-32000"},
			"_busy_timeout": {"6000"},
		}).Encode(),
	}).String()

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state log: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state log schema: %w", err)
	}
	return &Log{db: db}, nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

// RouteChange is one row describing a routing table mutation.
type RouteChange struct {
	At        time.Time
	Dest      int
	NextHop   int
	Cost      float64
	Reachable bool
}

// Record appends one route change row.
func (l *Log) Record(ctx context.Context, c RouteChange) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO route_changes (at_unix, dest_id, next_hop, cost, reachable) VALUES (?, ?, ?, ?, ?)`,
		c.At.Unix(), c.Dest, c.NextHop, c.Cost, c.Reachable,
	)
	return err
}

// History returns every recorded change for dest, oldest first.
func (l *Log) History(ctx context.Context, dest int) ([]RouteChange, error) {
	var rows []struct {
		AtUnix    int64   `db:"at_unix"`
		DestID    int     `db:"dest_id"`
		NextHop   int     `db:"next_hop"`
		Cost      float64 `db:"cost"`
		Reachable bool    `db:"reachable"`
	}
	if err := l.db.SelectContext(ctx, &rows,
		`SELECT at_unix, dest_id, next_hop, cost, reachable FROM route_changes WHERE dest_id = ? ORDER BY id ASC`, dest); err != nil {
		return nil, err
	}
	out := make([]RouteChange, len(rows))
	for i, r := range rows {
		out[i] = RouteChange{
			At:        time.Unix(r.AtUnix, 0),
			Dest:      r.DestID,
			NextHop:   r.NextHop,
			Cost:      r.Cost,
			Reachable: r.Reachable,
		}
	}
	return out, nil
}

// RotateGzip writes a gzip-compressed copy of src to src+".gz", replacing
// any existing file of that name. src itself is left unchanged. Uses the
// same compress/gzip-compatible library the teacher uses for HTTP response
// compression (pkg/atlas/server.go), here applied to log rotation instead.
func RotateGzip(src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open state log for rotation: %w", err)
	}
	defer in.Close()

	out, err := os.Create(src + ".gz")
	if err != nil {
		return fmt.Errorf("create rotated state log: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := gw.ReadFrom(in); err != nil {
		gw.Close()
		return fmt.Errorf("compress state log: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("flush rotated state log: %w", err)
	}
	return nil
}
