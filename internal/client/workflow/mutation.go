package workflow

import (
	"context"
	"fmt"

	"github.com/eggsregaco/regaco/internal/client/cache"
	"github.com/eggsregaco/regaco/internal/client/models"
)

// Mutation is one optimistic update on a single event, applied in three
// phases: Apply writes the optimistic value, Commit replaces it with the
// server's authoritative value, Rollback restores the pre-optimistic state.
// Exactly one of Commit or Rollback must follow a successful Apply.
type Mutation struct {
	events   *cache.EventRepo
	eventID  string
	snapshot *models.EggEvent
	applied  bool
}

// NewMutation captures the pre-mutation snapshot for eventID. A nil snapshot
// means the event was not cached before the mutation.
func NewMutation(events *cache.EventRepo, eventID string, snapshot *models.EggEvent) *Mutation {
	return &Mutation{events: events, eventID: eventID, snapshot: snapshot.Clone()}
}

// Apply writes the optimistic value so readers observe the new state before
// the network round-trip resolves.
func (m *Mutation) Apply(ctx context.Context, optimistic *models.EggEvent) error {
	if err := m.events.Put(ctx, optimistic); err != nil {
		return fmt.Errorf("apply optimistic update: %w", err)
	}
	m.applied = true
	return nil
}

// Commit replaces the optimistic value with the server's representation.
func (m *Mutation) Commit(ctx context.Context, server *models.EggEvent) error {
	if err := m.events.Put(ctx, server); err != nil {
		return fmt.Errorf("commit server value: %w", err)
	}
	m.applied = false
	return nil
}

// Rollback restores the snapshot. If the event was never cached, the
// optimistic record is removed entirely.
func (m *Mutation) Rollback(ctx context.Context) error {
	if !m.applied {
		return nil
	}
	m.applied = false
	if m.snapshot == nil {
		if err := m.events.Delete(ctx, m.eventID); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		return nil
	}
	if err := m.events.Put(ctx, m.snapshot); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
