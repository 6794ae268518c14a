package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLiteCache(connectionString string, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" would otherwise see its own database
	db.SetMaxOpenConns(1)

	return &SQLiteCache{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}, nil
}

func (s *SQLiteCache) CreateTable() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS verdicts (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	)`)
	return err
}

// DoesDatabaseExist reports whether the database can be reached.
func (s *SQLiteCache) DoesDatabaseExist() bool {
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT value, expires_at FROM verdicts WHERE key = ?", key)
	var value []byte
	var expires int64
	if err := row.Scan(&value, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if s.now().UnixNano() >= expires {
		_, err := s.db.ExecContext(ctx, "DELETE FROM verdicts WHERE key = ?", key)
		return nil, false, err
	}
	return value, true, nil
}

func (s *SQLiteCache) Set(ctx context.Context, key string, value []byte) error {
	now := s.now()
	// drop expired rows so the table does not grow without bound
	if _, err := s.db.ExecContext(ctx, "DELETE FROM verdicts WHERE expires_at <= ?", now.UnixNano()); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO verdicts (key, value, expires_at) VALUES (?, ?, ?)",
		key, value, now.Add(s.ttl).UnixNano())
	return err
}

func (s *SQLiteCache) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
