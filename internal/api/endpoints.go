package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// ----------------------------- languages -----------------------------------

func (c *Client) Languages(ctx context.Context) ([]Language, error) {
	var out []Language
	err := c.call(ctx, http.MethodGet, "/languages", nil, nil, &out)
	return out, err
}

func (c *Client) Language(ctx context.Context, id string) (Language, error) {
	var out Language
	err := c.call(ctx, http.MethodGet, "/languages/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// ------------------------------- levels ------------------------------------

// Levels lists levels, optionally only those of one language.
func (c *Client) Levels(ctx context.Context, languageID string) ([]Level, error) {
	var q url.Values
	if languageID != "" {
		q = url.Values{"languageId": {languageID}}
	}
	var out []Level
	err := c.call(ctx, http.MethodGet, "/levels", q, nil, &out)
	return out, err
}

func (c *Client) Level(ctx context.Context, id int) (Level, error) {
	var out Level
	err := c.call(ctx, http.MethodGet, "/levels/"+strconv.Itoa(id), nil, nil, &out)
	return out, err
}

// ------------------------------ progress -----------------------------------

// AllProgress returns the user's records for every language played.
func (c *Client) AllProgress(ctx context.Context) ([]Progress, error) {
	var out []Progress
	err := c.call(ctx, http.MethodGet, "/progress", nil, nil, &out)
	return out, err
}

func (c *Client) LanguageProgress(ctx context.Context, languageID string) (Progress, error) {
	var out Progress
	err := c.call(ctx, http.MethodGet, "/progress/"+url.PathEscape(languageID), nil, nil, &out)
	return out, err
}

// CompleteLevel records a level completion and returns the updated record
// for its language.
func (c *Client) CompleteLevel(ctx context.Context, req CompleteLevelRequest) (Progress, error) {
	var out Progress
	err := c.call(ctx, http.MethodPost, "/progress/complete-level", nil, req, &out)
	return out, err
}

func (c *Client) UseHint(ctx context.Context) (HintResult, error) {
	var out HintResult
	err := c.call(ctx, http.MethodPost, "/progress/use-hint", nil, nil, &out)
	return out, err
}

func (c *Client) AddGems(ctx context.Context, amount int) (GemsResult, error) {
	var out GemsResult
	err := c.call(ctx, http.MethodPost, "/progress/add-gems", nil, map[string]int{"amount": amount}, &out)
	return out, err
}

// -------------------------------- auth -------------------------------------

func (c *Client) Login(ctx context.Context, creds Credentials) (AuthResult, error) {
	var out AuthResult
	err := c.call(ctx, http.MethodPost, "/auth/login", nil, creds, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, reg Registration) (AuthResult, error) {
	var out AuthResult
	err := c.call(ctx, http.MethodPost, "/auth/register", nil, reg, &out)
	return out, err
}

// Logout tells the server to drop the session. It never retries on 401.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	var out struct {
		Tokens Tokens `json:"tokens"`
	}
	err := c.call(ctx, http.MethodPost, "/auth/refresh", nil, map[string]string{"refreshToken": refreshToken}, &out)
	if err == nil && out.Tokens.AccessToken == "" {
		err = errors.New("api: refresh returned no access token")
	}
	return out.Tokens, err
}

// -------------------------------- users ------------------------------------

func (c *Client) Profile(ctx context.Context) (User, error) {
	var out User
	err := c.call(ctx, http.MethodGet, "/users/profile", nil, nil, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	err := c.call(ctx, http.MethodGet, "/users/stats", nil, nil, &out)
	return out, err
}
