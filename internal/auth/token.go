// internal/auth/token.go
//
// Token storage for the API client.
// Responsibilities:
//   - Keep the access/refresh pair in memory and in the key/value store.
//   - Expose it as an oauth2.Token whose Expiry comes from the access
//     token's own "exp" claim, so the client can refresh ahead of time.
//   - Clear the whole stored session (tokens and cached user) at once.
//
// The signature is never checked here; only the server can do that.

package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/robalobadob/phanda-client/internal/api"
	"github.com/robalobadob/phanda-client/internal/store"
)

// TokenVault implements api.TokenStore on top of a store.Store.
type TokenVault struct {
	kv store.Store

	mu      sync.RWMutex
	access  string
	refresh string
	expiry  time.Time
}

var _ api.TokenStore = (*TokenVault)(nil)

// NewTokenVault returns an empty vault. Call Load to pick up a stored pair.
func NewTokenVault(kv store.Store) *TokenVault {
	return &TokenVault{kv: kv}
}

// Load reads the stored pair. A half-stored pair counts as none.
func (v *TokenVault) Load(ctx context.Context) error {
	access, okA, err := v.kv.Get(ctx, store.KeyAccessToken)
	if err != nil {
		return err
	}
	refresh, okR, err := v.kv.Get(ctx, store.KeyRefreshToken)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !okA || !okR || access == "" || refresh == "" {
		v.access, v.refresh, v.expiry = "", "", time.Time{}
		return nil
	}
	v.access, v.refresh, v.expiry = access, refresh, accessExpiry(access)
	return nil
}

// Token returns the current pair, or nil when there is none.
func (v *TokenVault) Token(context.Context) (*oauth2.Token, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.access == "" {
		return nil, nil
	}
	return &oauth2.Token{
		AccessToken:  v.access,
		RefreshToken: v.refresh,
		TokenType:    "Bearer",
		Expiry:       v.expiry,
	}, nil
}

// SetTokens stores a new pair.
func (v *TokenVault) SetTokens(ctx context.Context, t api.Tokens) error {
	if t.AccessToken == "" {
		return errors.New("auth: empty access token")
	}
	if err := v.kv.Set(ctx, store.KeyAccessToken, t.AccessToken); err != nil {
		return err
	}
	if err := v.kv.Set(ctx, store.KeyRefreshToken, t.RefreshToken); err != nil {
		return err
	}
	v.mu.Lock()
	v.access, v.refresh, v.expiry = t.AccessToken, t.RefreshToken, accessExpiry(t.AccessToken)
	v.mu.Unlock()
	return nil
}

// ClearSession forgets the tokens and the cached user, in memory and on disk.
func (v *TokenVault) ClearSession(ctx context.Context) error {
	v.mu.Lock()
	v.access, v.refresh, v.expiry = "", "", time.Time{}
	v.mu.Unlock()

	return errors.Join(
		v.kv.Remove(ctx, store.KeyAccessToken),
		v.kv.Remove(ctx, store.KeyRefreshToken),
		v.kv.Remove(ctx, store.KeyUser),
	)
}

// HasSession reports whether an access token is held.
func (v *TokenVault) HasSession() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.access != ""
}

// RefreshToken returns the stored refresh token, if any.
func (v *TokenVault) RefreshToken() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.refresh
}

// accessExpiry reads the exp claim of a JWT without verifying it.
// Opaque or claim-less tokens get the zero time, which oauth2 treats as
// never expiring.
func accessExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
