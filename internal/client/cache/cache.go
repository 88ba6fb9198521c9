// Package cache is the local, best-effort mirror of server state: the egg
// state snapshot, the event list, a small bounded image cache, and a plain
// key-value store for session data. It is backed by a single SQLite file.
//
// The cache is never a source of truth. A record that cannot be decoded is
// treated as absent, and callers must tolerate empty results.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/eggsregaco/regaco/internal/client/cache/migrations"
)

// Logical store names, matching the Clear contract.
const (
	KindEggState = "eggState"
	KindEvents   = "events"
	KindImages   = "processedImages"
	KindKV       = "kv"
)

// Store aggregates the cache repositories over one SQLite database.
type Store struct {
	db *sql.DB

	EggState *EggStateRepo
	Events   *EventRepo
	Images   *ImageRepo
	KV       *KVRepo
}

// Open opens (creating if needed) the cache database at path and applies
// embedded migrations. Use ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	if path == ":memory:" {
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Store{
		db:       db,
		EggState: NewEggStateRepo(db),
		Events:   NewEventRepo(db),
		Images:   NewImageRepo(db),
		KV:       NewKVRepo(db),
	}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Clear wipes one logical store, or all of them when kind is empty.
func (s *Store) Clear(ctx context.Context, kind string) error {
	tables := map[string]string{
		KindEggState: "egg_state",
		KindEvents:   "events",
		KindImages:   "processed_images",
		KindKV:       "kv",
	}

	if kind != "" {
		table, ok := tables[kind]
		if !ok {
			return fmt.Errorf("unknown cache store %q", kind)
		}
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", kind, err)
		}
		return nil
	}

	for kind, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", kind, err)
		}
	}
	return nil
}

// tsLayout is fixed-width so the timestamp column sorts lexicographically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func tsFormat(t time.Time) string {
	return t.UTC().Format(tsLayout)
}
