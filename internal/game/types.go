// internal/game/types.go
//
// Core type definitions for a word-wheel level.
// Defines:
//   - Cell: one square of the crossword grid, tied to a word and a position in it.
//   - Level: a playable level as served by the catalog (read-only to the session).
//   - State: coarse session state (idle/active/solved).

package game

// Cell is one square of a level's crossword grid.
// Letter is empty until the square is revealed.
type Cell struct {
	WordIndex int    `json:"wordIndex"` // index into Level.TargetWords
	CellIndex int    `json:"cellIndex"` // position within that word
	Letter    string `json:"letter,omitempty"`
	Revealed  bool   `json:"isRevealed"`
}

// Level holds everything needed to play one puzzle.
// IsUnlocked, IsCompleted and Stars are filled in per player by the catalog.
type Level struct {
	ID            int      `json:"id"`
	LanguageID    string   `json:"languageId"`
	Name          string   `json:"name"`
	Letters       []string `json:"letters"`
	TargetWords   []string `json:"targetWords"`
	CrosswordGrid [][]Cell `json:"crosswordGrid"`
	IsUnlocked    bool     `json:"isUnlocked"`
	IsCompleted   bool     `json:"isCompleted"`
	Stars         int      `json:"stars"`
	Landmark      string   `json:"landmark"`
	OrderIndex    int      `json:"orderIndex"`
}

// State reports where a session is in its lifecycle.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
	StateSolved State = "solved"
)

// WordReward is the gem bonus for the first discovery of a target word.
const WordReward = 5
