// Package sqlitestore is an alternative snapshot store backed by
// SQLite, for deployments that want a queryable history of snapshots
// rather than a single overwritten file. It follows the teacher
// pack's database/marketdata.go pattern: a WAL-mode connection, a
// prepared insert statement reused across saves, and exponential
// backoff retry around the open.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at INTEGER NOT NULL,
	blob       BLOB NOT NULL
);
`

// Store persists snapshot blobs as rows in a SQLite database, keeping
// every version ever saved rather than overwriting in place.
type Store struct {
	db         *sql.DB
	stmtInsert *sql.Stmt
}

// Open opens (creating if necessary) a SQLite database at path in WAL
// mode, retrying the initial connection with exponential backoff —
// useful when the database file sits on a volume that is still being
// mounted at process start.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000"

	var db *sql.DB
	open := func() error {
		var err error
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return err
		}
		return db.PingContext(ctx)
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(open, bo); err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}

	stmtInsert, err := db.PrepareContext(ctx, `INSERT INTO snapshots (created_at, blob) VALUES (?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: prepare insert: %w", err)
	}

	return &Store{db: db, stmtInsert: stmtInsert}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	s.stmtInsert.Close()
	return s.db.Close()
}

// Save inserts a new snapshot row. createdAtNs is a caller-supplied
// Unix-nanosecond timestamp — the store never calls time.Now itself, so
// callers that need reproducible tests can control it.
func (s *Store) Save(ctx context.Context, createdAtNs int64, blob []byte) error {
	_, err := s.stmtInsert.ExecContext(ctx, createdAtNs, blob)
	if err != nil {
		return fmt.Errorf("sqlitestore: insert snapshot: %w", err)
	}
	return nil
}

// LoadLatest returns the most recently saved blob, or nil, nil if the
// table is empty.
func (s *Store) LoadLatest(ctx context.Context) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT blob FROM snapshots ORDER BY id DESC LIMIT 1`)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlitestore: load latest: %w", err)
	}
	return blob, nil
}

// Prune deletes every snapshot row older than cutoffNs, bounding table
// growth for deployments that save on every tick.
func (s *Store) Prune(ctx context.Context, cutoffNs int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE created_at < ?`, cutoffNs)
	if err != nil {
		return fmt.Errorf("sqlitestore: prune: %w", err)
	}
	return nil
}
