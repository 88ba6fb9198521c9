// Package push manages one device's push subscription: asking permission,
// creating the subscription on the local gateway, and registering it with the
// backend. Push is strictly best-effort, so every unsupported or denied path
// degrades to "no subscription" without an error.
package push

import (
	"context"
	"errors"

	"github.com/eggsregaco/regaco/internal/client/models"
	"github.com/eggsregaco/regaco/internal/common"
	"github.com/eggsregaco/regaco/internal/logging"
)

// Permission is the user's push-notification permission on this device.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
)

// PermissionProvider answers permission questions for this device. Request
// may interact with the user; Query must not.
type PermissionProvider interface {
	Query(ctx context.Context) (Permission, error)
	Request(ctx context.Context) (Permission, error)
}

// Agent is the local delivery endpoint that holds subscription key material,
// the gateway process. Subscribe is idempotent: an existing subscription is
// returned as is.
type Agent interface {
	Subscribe(ctx context.Context) (*models.PushSubscriptionData, error)
	Unsubscribe(ctx context.Context) error
	Subscription(ctx context.Context) (*models.PushSubscriptionData, error)
}

// Registrar mirrors the subscription to the backend. *api.Client satisfies
// it.
type Registrar interface {
	RegisterPushSubscription(ctx context.Context, sub models.PushSubscriptionData) error
	UnregisterPushSubscription(ctx context.Context, endpoint string) error
}

// Manager drives the subscription lifecycle.
type Manager struct {
	agent      Agent
	registrar  Registrar
	permission PermissionProvider
	log        logging.Logger
}

func NewManager(agent Agent, registrar Registrar, permission PermissionProvider, log logging.Logger) *Manager {
	return &Manager{agent: agent, registrar: registrar, permission: permission, log: log}
}

// IsSupported reports whether push can work at all on this device, i.e. a
// gateway is reachable.
func (m *Manager) IsSupported(ctx context.Context) bool {
	if m.agent == nil {
		return false
	}
	_, err := m.agent.Subscription(ctx)
	return err == nil || !errors.Is(err, common.ErrUnavailable)
}

// PermissionState reports the current permission without prompting.
func (m *Manager) PermissionState(ctx context.Context) Permission {
	if m.permission == nil {
		return PermissionDenied
	}
	p, err := m.permission.Query(ctx)
	if err != nil {
		m.log.Warn(ctx, "querying push permission", "error", err)
		return PermissionDenied
	}
	return p
}

// Subscribe obtains permission, creates the subscription on the gateway and
// registers it with the backend. A nil subscription with a nil error means
// push is unavailable or was declined; callers continue without it.
func (m *Manager) Subscribe(ctx context.Context) (*models.PushSubscriptionData, error) {
	if !m.IsSupported(ctx) {
		m.log.Info(ctx, "push not supported on this device")
		return nil, nil
	}

	perm, err := m.permission.Request(ctx)
	if err != nil {
		m.log.Warn(ctx, "requesting push permission", "error", err)
		return nil, nil
	}
	if perm != PermissionGranted {
		m.log.Info(ctx, "push permission not granted", "permission", string(perm))
		return nil, nil
	}

	sub, err := m.agent.Subscribe(ctx)
	if err != nil {
		m.log.Warn(ctx, "creating push subscription", "error", err)
		return nil, nil
	}

	if err := m.registrar.RegisterPushSubscription(ctx, *sub); err != nil {
		// the backend never saw this subscription, do not keep it locally
		m.log.Warn(ctx, "registering push subscription", "error", err)
		if uerr := m.agent.Unsubscribe(ctx); uerr != nil {
			m.log.Warn(ctx, "discarding unregistered subscription", "error", uerr)
		}
		return nil, nil
	}
	m.log.Info(ctx, "push subscription active", "endpoint", sub.Endpoint)
	return sub, nil
}

// Unsubscribe removes the subscription from the backend first, then from the
// gateway. It is idempotent and safe to call without an active subscription.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	sub, err := m.Current(ctx)
	if err != nil || sub == nil {
		return err
	}

	if err := m.registrar.UnregisterPushSubscription(ctx, sub.Endpoint); err != nil {
		// a stale server-side registration would keep delivering pushes
		// to a dead endpoint, so keep the local subscription until the
		// server forgets it
		return err
	}
	if err := m.agent.Unsubscribe(ctx); err != nil {
		m.log.Warn(ctx, "removing local subscription", "error", err)
	}
	return nil
}

// Current returns the active subscription, or nil when there is none.
func (m *Manager) Current(ctx context.Context) (*models.PushSubscriptionData, error) {
	if m.agent == nil {
		return nil, nil
	}
	sub, err := m.agent.Subscription(ctx)
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) || errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}
