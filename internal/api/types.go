// internal/api/types.go
//
// Wire types for the remote Phanda API.
// Every response is wrapped in an envelope:
//   - success: {"success": true, "data": <T>}
//   - failure: {"success": false, "error": "...", "message": "..."}

package api

import "encoding/json"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Language is a selectable puzzle track.
type Language struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Flag       string `json:"flag"`
	Color      string `json:"color"`
	IsUnlocked bool   `json:"isUnlocked"`
}

// Level is a level as served by the catalog endpoints. It carries no grid;
// the client lays one out from TargetWords.
type Level struct {
	ID          int      `json:"id"`
	LanguageID  string   `json:"languageId"`
	Name        string   `json:"name"`
	Letters     []string `json:"letters"`
	TargetWords []string `json:"targetWords"`
	Landmark    string   `json:"landmark"`
	OrderIndex  int      `json:"orderIndex"`
}

// Progress is the server's record of one user's progress in one language.
type Progress struct {
	ID              string `json:"id"`
	UserID          string `json:"userId"`
	LanguageID      string `json:"languageId"`
	CurrentLevel    int    `json:"currentLevel"`
	CompletedLevels []int  `json:"completedLevels"`
	TotalStars      int    `json:"totalStars"`
	HintsUsed       int    `json:"hintsUsed"`
}

// CompleteLevelRequest is the body of POST /progress/complete-level.
type CompleteLevelRequest struct {
	LevelID    int    `json:"levelId"`
	LanguageID string `json:"languageId"`
	Stars      int    `json:"stars"`
	HintsUsed  int    `json:"hintsUsed"`
}

// HintResult is returned by POST /progress/use-hint.
type HintResult struct {
	GemsUsed      int `json:"gemsUsed"`
	RemainingGems int `json:"remainingGems"`
}

// GemsResult is returned by POST /progress/add-gems.
type GemsResult struct {
	TotalGems int `json:"totalGems"`
}

// User is the authenticated account.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	TotalGems      int    `json:"totalGems"`
	TotalHintsUsed int    `json:"totalHintsUsed"`
	CreatedAt      string `json:"createdAt"`
}

// Tokens is an access/refresh token pair.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by login and register.
type AuthResult struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Stats is the free-form payload of GET /users/stats.
type Stats map[string]any
