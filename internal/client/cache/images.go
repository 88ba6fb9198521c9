package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eggsregaco/regaco/internal/dbx"
)

// MaxImages bounds the image cache. Inserting beyond the bound evicts the
// oldest entries by insert timestamp (FIFO, not LRU).
const MaxImages = 20

// ProcessedImage is one cached image reference tied to the event it came from.
type ProcessedImage struct {
	ID        string
	URL       string
	EventID   string
	Timestamp time.Time
}

// ImageRepo maintains the bounded image cache.
type ImageRepo struct {
	db *sql.DB
}

func NewImageRepo(db *sql.DB) *ImageRepo {
	return &ImageRepo{db: db}
}

// Put inserts one image and evicts the oldest entries beyond MaxImages, in
// a single transaction.
func (r *ImageRepo) Put(ctx context.Context, img ProcessedImage) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO processed_images (id, url, event_id, timestamp) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				url = excluded.url,
				event_id = excluded.event_id,
				timestamp = excluded.timestamp
		`, img.ID, img.URL, img.EventID, tsFormat(img.Timestamp))
		if err != nil {
			return fmt.Errorf("insert image %s: %w", img.ID, err)
		}

		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_images`).Scan(&n); err != nil {
			return fmt.Errorf("count images: %w", err)
		}
		if n <= MaxImages {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM processed_images WHERE id IN (
				SELECT id FROM processed_images ORDER BY timestamp ASC, id ASC LIMIT ?
			)
		`, n-MaxImages)
		if err != nil {
			return fmt.Errorf("evict images: %w", err)
		}
		return nil
	})
}

// List returns all cached images, most recent first.
func (r *ImageRepo) List(ctx context.Context) ([]ProcessedImage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, url, event_id, timestamp FROM processed_images ORDER BY timestamp DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var result []ProcessedImage
	for rows.Next() {
		var img ProcessedImage
		var ts string
		if err := rows.Scan(&img.ID, &img.URL, &img.EventID, &ts); err != nil {
			return nil, err
		}
		t, err := time.Parse(tsLayout, ts)
		if err != nil {
			continue
		}
		img.Timestamp = t
		result = append(result, img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
