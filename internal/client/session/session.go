// Package session holds the authenticated session (token + user) as an
// explicit object with a load/save/clear lifecycle, persisted in the local
// key-value store. The REST client and the confirmation workflow receive it
// at construction instead of reading ambient state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/eggsregaco/regaco/internal/client/models"
)

// ErrInvalidated signals that the server rejected the session (HTTP 401) and
// it has been purged. The composing layer decides how to react, typically by
// sending the user back to login.
var ErrInvalidated = errors.New("session invalidated")

const (
	keyToken = "auth_token"
	keyUser  = "user"
)

// KV is the persistence the store needs; *cache.KVRepo satisfies it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Session is one authenticated session.
type Session struct {
	Token string
	User  *models.User
}

// Store keeps the current session in memory and mirrors it to the KV store.
type Store struct {
	kv KV

	mu     sync.RWMutex
	cur    *Session
	loaded bool
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load reads the persisted session. An absent token, an expired token, or an
// unreadable user record yields no session rather than an error.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) (*Session, error) {
	s.loaded = true
	s.cur = nil

	tok, err := s.kv.Get(ctx, keyToken)
	if err != nil {
		return nil, fmt.Errorf("load session token: %w", err)
	}
	if len(tok) == 0 {
		return nil, nil
	}
	if tokenExpired(string(tok)) {
		_ = s.kv.Delete(ctx, keyToken)
		_ = s.kv.Delete(ctx, keyUser)
		return nil, nil
	}

	sess := &Session{Token: string(tok)}
	if raw, err := s.kv.Get(ctx, keyUser); err == nil && len(raw) > 0 {
		var u models.User
		if json.Unmarshal(raw, &u) == nil {
			sess.User = &u
		}
	}

	s.cur = sess
	return sess, nil
}

// Save persists the session and makes it current.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(ctx, keyToken, []byte(sess.Token)); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	if sess.User != nil {
		raw, err := json.Marshal(sess.User)
		if err != nil {
			return fmt.Errorf("marshal session user: %w", err)
		}
		if err := s.kv.Set(ctx, keyUser, raw); err != nil {
			return fmt.Errorf("save session user: %w", err)
		}
	} else {
		_ = s.kv.Delete(ctx, keyUser)
	}

	s.cur = sess
	s.loaded = true
	return nil
}

// Clear purges the session from memory and storage.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = nil
	s.loaded = true
	if err := s.kv.Delete(ctx, keyToken); err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	if err := s.kv.Delete(ctx, keyUser); err != nil {
		return fmt.Errorf("clear session user: %w", err)
	}
	return nil
}

// Current returns the active session, loading it on first use. Returns nil
// when there is none.
func (s *Store) Current(ctx context.Context) *Session {
	s.mu.RLock()
	if s.loaded {
		cur := s.cur
		s.mu.RUnlock()
		return cur
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		_, _ = s.loadLocked(ctx)
	}
	return s.cur
}

// Token returns the bearer token of the active session, or "".
func (s *Store) Token(ctx context.Context) string {
	if cur := s.Current(ctx); cur != nil {
		return cur.Token
	}
	return ""
}

// User returns the user of the active session, or nil.
func (s *Store) User(ctx context.Context) *models.User {
	if cur := s.Current(ctx); cur != nil {
		return cur.User
	}
	return nil
}

// tokenExpired inspects the JWT exp claim without verifying the signature;
// verification is the server's job. Opaque (non-JWT) tokens never expire
// locally.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
