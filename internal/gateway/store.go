package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eggsregaco/regaco/internal/dbx"
)

// Asset is one cached response body, keyed by cache generation and URL path.
type Asset struct {
	URL         string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// Subscription is the gateway's half of the device push subscription: the
// endpoint plus the private key material needed to decrypt deliveries.
type Subscription struct {
	Endpoint   string
	PrivateKey []byte
	AuthSecret []byte
	CreatedAt  time.Time
}

// Store is the gateway's SQLite database, separate from the client cache
// file. It holds the versioned asset cache and the push subscription.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the gateway database and applies the schema.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open gateway db: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS assets (
			generation TEXT NOT NULL,
			url TEXT NOT NULL,
			content_type TEXT NOT NULL,
			body BLOB NOT NULL,
			fetched_at TIMESTAMP NOT NULL,
			PRIMARY KEY (generation, url)
		);`,
		`CREATE TABLE IF NOT EXISTS subscription (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			endpoint TEXT NOT NULL,
			private_key BLOB NOT NULL,
			auth_secret BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply gateway schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// InstallGeneration writes all assets of a generation in one transaction, so
// a failed install leaves no partial cache behind.
func (s *Store) InstallGeneration(ctx context.Context, generation string, assets []Asset) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, a := range assets {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO assets(generation, url, content_type, body, fetched_at)
				 VALUES(?, ?, ?, ?, ?)
				 ON CONFLICT(generation, url) DO UPDATE SET
					content_type = excluded.content_type,
					body = excluded.body,
					fetched_at = excluded.fetched_at`,
				generation, a.URL, a.ContentType, a.Body, a.FetchedAt.UTC().Format(time.RFC3339Nano),
			)
			if err != nil {
				return fmt.Errorf("install asset %s: %w", a.URL, err)
			}
		}
		return nil
	})
}

// PutAsset caches one fetched response in the given generation.
func (s *Store) PutAsset(ctx context.Context, generation string, a Asset) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assets(generation, url, content_type, body, fetched_at)
		 VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(generation, url) DO UPDATE SET
			content_type = excluded.content_type,
			body = excluded.body,
			fetched_at = excluded.fetched_at`,
		generation, a.URL, a.ContentType, a.Body, a.FetchedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("cache asset %s: %w", a.URL, err)
	}
	return nil
}

// GetAsset returns a cached asset, or nil when the generation has no entry
// for the URL.
func (s *Store) GetAsset(ctx context.Context, generation, url string) (*Asset, error) {
	var a Asset
	var fetchedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT url, content_type, body, fetched_at FROM assets WHERE generation = ? AND url = ?`,
		generation, url,
	).Scan(&a.URL, &a.ContentType, &a.Body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached asset %s: %w", url, err)
	}
	a.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetchedAt)
	return &a, nil
}

// Generations lists the distinct cache generations present in the store.
func (s *Store) Generations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT generation FROM assets ORDER BY generation`)
	if err != nil {
		return nil, fmt.Errorf("list cache generations: %w", err)
	}
	defer rows.Close()

	var gens []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// DeleteGeneration drops every asset of a stale generation.
func (s *Store) DeleteGeneration(ctx context.Context, generation string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE generation = ?`, generation); err != nil {
		return fmt.Errorf("delete cache generation %s: %w", generation, err)
	}
	return nil
}

// SaveSubscription stores the device subscription, replacing any previous
// one. The gateway holds at most one subscription.
func (s *Store) SaveSubscription(ctx context.Context, sub Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscription(id, endpoint, private_key, auth_secret, created_at)
		 VALUES(1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			endpoint = excluded.endpoint,
			private_key = excluded.private_key,
			auth_secret = excluded.auth_secret,
			created_at = excluded.created_at`,
		sub.Endpoint, sub.PrivateKey, sub.AuthSecret, sub.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// Subscription returns the stored subscription, or nil when none exists.
func (s *Store) Subscription(ctx context.Context) (*Subscription, error) {
	var sub Subscription
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT endpoint, private_key, auth_secret, created_at FROM subscription WHERE id = 1`,
	).Scan(&sub.Endpoint, &sub.PrivateKey, &sub.AuthSecret, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read subscription: %w", err)
	}
	sub.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &sub, nil
}

// DeleteSubscription removes the stored subscription if present.
func (s *Store) DeleteSubscription(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM subscription WHERE id = 1`); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}
