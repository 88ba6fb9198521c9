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

// stateKey is the fixed key of the singleton snapshot.
const stateKey = "current"

// EggStateRepo persists the singleton EggState snapshot.
type EggStateRepo struct {
	db dbx.DBTX
}

func NewEggStateRepo(db dbx.DBTX) *EggStateRepo {
	return &EggStateRepo{db: db}
}

// Save overwrites the snapshot wholesale.
func (r *EggStateRepo) Save(ctx context.Context, state *models.EggState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal egg state: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO egg_state (key, data) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data
	`, stateKey, string(data))
	if err != nil {
		return fmt.Errorf("save egg state: %w", err)
	}
	return nil
}

// Get returns the cached snapshot, or nil when there is none. A snapshot
// that no longer decodes is treated as absent.
func (r *EggStateRepo) Get(ctx context.Context) (*models.EggState, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM egg_state WHERE key = ?`, stateKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get egg state: %w", err)
	}

	var state models.EggState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, nil
	}
	return &state, nil
}
