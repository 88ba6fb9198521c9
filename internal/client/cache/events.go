package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eggsregaco/regaco/internal/client/models"
	"github.com/eggsregaco/regaco/internal/dbx"
)

// EventRepo caches EggEvent records keyed by id, indexed by timestamp and
// box id.
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

// Put upserts one event by id.
func (r *EventRepo) Put(ctx context.Context, event *models.EggEvent) error {
	return putEvent(ctx, r.db, event)
}

func putEvent(ctx context.Context, db dbx.DBTX, event *models.EggEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO events (id, box_id, timestamp, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			box_id = excluded.box_id,
			timestamp = excluded.timestamp,
			data = excluded.data
	`, event.ID, event.BoxID, tsFormat(event.Timestamp), string(data))
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", event.ID, err)
	}
	return nil
}

// PutAll mirrors a fetched event list in one transaction, so an abandoned
// fetch never leaves a partially written list behind.
func (r *EventRepo) PutAll(ctx context.Context, events []models.EggEvent) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for i := range events {
			if err := putEvent(ctx, tx, &events[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns one cached event, or nil when it is absent or unreadable.
func (r *EventRepo) Get(ctx context.Context, id string) (*models.EggEvent, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM events WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}

	var event models.EggEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, nil
	}
	return &event, nil
}

// Delete removes one cached event. Absence is not an error.
func (r *EventRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

// ListByTimestamp returns all cached events, most recent first. Unreadable
// rows are skipped.
func (r *EventRepo) ListByTimestamp(ctx context.Context) ([]models.EggEvent, error) {
	return r.list(ctx, `SELECT data FROM events ORDER BY timestamp DESC`)
}

// ListByBox returns the cached events of one box, most recent first.
func (r *EventRepo) ListByBox(ctx context.Context, boxID string) ([]models.EggEvent, error) {
	return r.list(ctx, `SELECT data FROM events WHERE box_id = ? ORDER BY timestamp DESC`, boxID)
}

func (r *EventRepo) list(ctx context.Context, query string, args ...any) ([]models.EggEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var result []models.EggEvent
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var event models.EggEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
