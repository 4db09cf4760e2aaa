// internal/auth/session.go
//
// Authentication state for one player.
// Responsibilities:
//   - Login / register: store the token pair and the user profile.
//   - Logout: tell the server when a session exists, then always clear.
//   - Refresh: renew the pair; any failure clears the session.
//   - Restore a stored session at start-up.
//   - Partial user updates (gems, hint totals) persisted to the cache.
//
// IsAuthenticated needs both a user and an access token. The API client may
// clear the vault behind our back when a session expires; that flips
// IsAuthenticated to false without any call into Session.

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/phanda-client/internal/api"
	"github.com/robalobadob/phanda-client/internal/store"
)

// ErrNoSession is returned by Refresh when there is nothing to refresh.
var ErrNoSession = errors.New("auth: no session")

// Remote is the part of the API client the session needs.
type Remote interface {
	Login(ctx context.Context, creds api.Credentials) (api.AuthResult, error)
	Register(ctx context.Context, reg api.Registration) (api.AuthResult, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context, refreshToken string) (api.Tokens, error)
}

// UserPatch is a partial update of the cached user. Nil fields are kept.
type UserPatch struct {
	Username       *string
	Email          *string
	TotalGems      *int
	TotalHintsUsed *int
}

// Session tracks who is signed in.
type Session struct {
	kv     store.Store
	vault  *TokenVault
	remote Remote

	mu      sync.RWMutex
	user    *api.User
	lastErr string
}

// New returns a signed-out session.
func New(kv store.Store, vault *TokenVault, remote Remote) *Session {
	return &Session{kv: kv, vault: vault, remote: remote}
}

// IsAuthenticated reports whether requests can be made on the user's behalf.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.vault.HasSession()
}

// IsGuest is the negation of IsAuthenticated.
func (s *Session) IsGuest() bool { return !s.IsAuthenticated() }

// User returns the signed-in user, or nil.
func (s *Session) User() *api.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil || !s.vault.HasSession() {
		return nil
	}
	u := *s.user
	return &u
}

// LastError returns the message of the last failed login or register.
func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *Session) Login(ctx context.Context, creds api.Credentials) (api.User, error) {
	res, err := s.remote.Login(ctx, creds)
	return s.establish(ctx, res, err, "login")
}

func (s *Session) Register(ctx context.Context, reg api.Registration) (api.User, error) {
	res, err := s.remote.Register(ctx, reg)
	return s.establish(ctx, res, err, "registration")
}

func (s *Session) establish(ctx context.Context, res api.AuthResult, err error, what string) (api.User, error) {
	if err == nil && res.Tokens.AccessToken == "" {
		err = fmt.Errorf("%s failed: no token issued", what)
	}
	if err == nil {
		err = s.vault.SetTokens(ctx, res.Tokens)
	}
	if err == nil {
		err = s.setUser(ctx, res.User)
	}
	if err != nil {
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
		return api.User{}, err
	}
	s.ClearError()
	log.Info().Str("user", res.User.Username).Msgf("%s ok", what)
	return res.User, nil
}

// Logout ends the session. The server is told only when a session exists,
// and its answer does not matter: local state is always cleared.
func (s *Session) Logout(ctx context.Context) error {
	if s.vault.HasSession() {
		if err := s.remote.Logout(ctx); err != nil {
			log.Warn().Err(err).Msg("logout request failed")
		}
	}
	return s.clear(ctx)
}

// Refresh renews the token pair and returns the new access token. Every
// failure clears the session.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	rt := s.vault.RefreshToken()
	if rt == "" {
		_ = s.clear(ctx)
		return "", ErrNoSession
	}
	pair, err := s.remote.Refresh(ctx, rt)
	if err == nil {
		err = s.vault.SetTokens(ctx, pair)
	}
	if err != nil {
		log.Warn().Err(err).Msg("token refresh failed")
		_ = s.clear(ctx)
		return "", err
	}
	return pair.AccessToken, nil
}

// LoadStored restores a session saved by an earlier run. It is a no-op
// unless both tokens and the user are stored; an unreadable user clears
// everything.
func (s *Session) LoadStored(ctx context.Context) error {
	if err := s.vault.Load(ctx); err != nil {
		return err
	}
	raw, ok, err := s.kv.Get(ctx, store.KeyUser)
	if err != nil {
		return err
	}
	if !ok || !s.vault.HasSession() {
		return nil
	}
	var u api.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		_ = s.clear(ctx)
		return fmt.Errorf("stored user: %w", err)
	}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	return nil
}

// UpdateUser merges patch into the cached user. It does nothing when no one
// is signed in.
func (s *Session) UpdateUser(ctx context.Context, patch UserPatch) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil
	}
	u := *s.user
	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.TotalGems != nil {
		u.TotalGems = *patch.TotalGems
	}
	if patch.TotalHintsUsed != nil {
		u.TotalHintsUsed = *patch.TotalHintsUsed
	}
	s.mu.Unlock()
	return s.setUser(ctx, u)
}

func (s *Session) setUser(ctx context.Context, u api.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, store.KeyUser, string(b)); err != nil {
		return err
	}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	return nil
}

func (s *Session) clear(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	return s.vault.ClearSession(ctx)
}
