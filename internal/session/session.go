package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"powerdash/internal/localstore"
	"powerdash/internal/model"
)

// LoginAPI is the slice of the backend client the session store needs.
type LoginAPI interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Store owns the bearer token lifecycle. It is constructed once at startup
// and injected everywhere a session decision is needed; the token is mirrored
// into the state store so a restart rehydrates the same session without a
// network round trip.
//
// The token is never validated against the server. Claims are decoded
// locally, once per token value: a token that does not decode leaves the
// store unauthenticated even though the raw string is kept (fail closed).
type Store struct {
	mu     sync.RWMutex
	api    LoginAPI
	state  *localstore.Store
	logger *slog.Logger

	token string
	user  *model.User
}

func New(api LoginAPI, state *localstore.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{api: api, state: state, logger: logger}

	var tok string
	ok, err := state.Get(localstore.KeyToken, &tok)
	if err != nil {
		logger.Warn("stored token unreadable", "error", err)
	}
	if ok && tok != "" {
		s.token = tok
		s.user = decodeClaims(tok)
		if s.user == nil {
			logger.Warn("stored token did not decode, starting unauthenticated")
		}
	}
	return s
}

// Login posts credentials to the backend, then decodes and persists the
// returned token. The raw token is persisted even when its payload does not
// decode; the store just stays unauthenticated in that case.
func (s *Store) Login(ctx context.Context, username, password string) error {
	tok, err := s.api.Login(ctx, username, password)
	if err != nil {
		return err
	}

	user := decodeClaims(tok)

	s.mu.Lock()
	s.token = tok
	s.user = user
	s.mu.Unlock()

	if err := s.state.Set(localstore.KeyToken, tok); err != nil {
		s.logger.Warn("token persistence failed", "error", err)
	}
	return nil
}

// Logout clears the session unconditionally. The server is never contacted.
func (s *Store) Logout() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()
	s.state.Delete(localstore.KeyToken)
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

// User returns the last successfully decoded claims, or nil.
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token returns the raw bearer token, empty when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// decodeClaims splits the token, base64url-decodes the payload segment and
// reads the claims as JSON. No signature or expiry check happens here: the
// backend is the authority, and a stale token simply fails on first use.
func decodeClaims(token string) *model.User {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}

	user := &model.User{}
	if sub, ok := claims["sub"].(string); ok {
		user.Sub = sub
	}
	if role, ok := claims["role"].(string); ok {
		user.Role = role
	}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}
	if id, ok := claims["id"].(float64); ok {
		user.ID = int64(id)
	}
	return user
}
