// internal/game/engine.go
//
// Game session for a single word-wheel level.
// Responsibilities:
//   - Load a level and lay its letters out on the wheel (shuffled per load).
//   - Grow the connection path under the wheel's connection-range rule.
//   - Commit a path: validate the word, record first discoveries, pay rewards.
//   - Report progress toward solving the level and the revealed grid.
//
// Notes:
//   - Path indices refer to positions on the session's wheel, not Level.Letters.
//   - The path is cleared after every commit, whatever the outcome.
//   - Completing a level is never automatic; the caller confirms it through
//     the coordinator once IsSolved reports true.
package game

import (
	"context"
	"slices"
	"strings"

	"github.com/robalobadob/phanda-client/internal/words"
)

// Rewarder pays out gems for word discoveries.
type Rewarder interface {
	AwardGems(ctx context.Context, amount int)
}

// Option configures a Session.
type Option func(*Session)

// WithWheelOrder replaces the per-load shuffle. Tests use it to pin the
// wheel to the level's own letter order.
func WithWheelOrder(order func([]string) []string) Option {
	return func(s *Session) { s.order = order }
}

// Session holds the active level and the player's in-progress input.
// It is not safe for concurrent use.
type Session struct {
	rewarder Rewarder
	order    func([]string) []string

	level  *Level
	active bool
	wheel  []string
	path   []int
	found  []string
	seen   map[string]struct{}
	hinted map[[2]int]struct{} // grid squares as {row, col}
}

// NewSession returns an idle session. A nil rewarder disables rewards.
func NewSession(r Rewarder, opts ...Option) *Session {
	s := &Session{
		rewarder: r,
		order:    words.Shuffle[string],
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCurrentLevel loads level and makes the session active. The path, found
// words and hints of any previous level are discarded.
func (s *Session) SetCurrentLevel(level Level) {
	lv := cloneLevel(level)
	s.level = &lv
	s.wheel = s.order(slices.Clone(lv.Letters))
	s.path = nil
	s.found = nil
	s.seen = make(map[string]struct{}, len(lv.TargetWords))
	s.hinted = make(map[[2]int]struct{})
	s.active = true
}

// Level returns the loaded level, if any.
func (s *Session) Level() (Level, bool) {
	if s.level == nil {
		return Level{}, false
	}
	return cloneLevel(*s.level), true
}

// IsActive reports whether input is currently accepted.
func (s *Session) IsActive() bool { return s.active }

// State reports a coarse string representation of the session.
func (s *Session) State() State {
	switch {
	case !s.active:
		return StateIdle
	case s.IsSolved():
		return StateSolved
	default:
		return StateActive
	}
}

// ExtendPath appends a wheel index to the connection path. It returns false,
// leaving the path unchanged, when the session is idle, the index is off the
// wheel, or the index cannot be connected to the end of the path.
func (s *Session) ExtendPath(index int) bool {
	if !s.active || index < 0 || index >= len(s.wheel) {
		return false
	}
	if !words.CanConnectLetters(s.path, index, len(s.wheel)) {
		return false
	}
	s.path = append(s.path, index)
	return true
}

// Path returns a copy of the current connection path.
func (s *Session) Path() []int { return slices.Clone(s.path) }

// SelectedLetters returns the letters under the current path.
func (s *Session) SelectedLetters() []string {
	letters, _ := words.LettersForPath(s.wheel, s.path)
	return letters
}

// CommitPath submits the current path as a word and clears it.
//
// word is the upper-cased word when the path spells one of the level's target
// words, "" otherwise. isNew is true only for its first discovery, which is
// also the only time a reward is paid.
func (s *Session) CommitPath(ctx context.Context) (word string, isNew bool) {
	if !s.active {
		return "", false
	}
	path := s.path
	s.path = nil

	if len(path) < 3 {
		return "", false
	}
	letters, ok := words.LettersForPath(s.wheel, path)
	if !ok {
		return "", false
	}
	word, ok = words.ValidateConnectedWord(letters)
	if !ok || words.WordPositionInGrid(word, s.level.TargetWords) < 0 {
		return "", false
	}
	if _, dup := s.seen[word]; dup {
		return word, false
	}

	s.seen[word] = struct{}{}
	s.found = append(s.found, word)
	if s.rewarder != nil {
		s.rewarder.AwardGems(ctx, WordReward)
	}
	return word, true
}

// ClearPath drops the in-progress path without submitting it.
func (s *Session) ClearPath() { s.path = nil }

// ResetGame drops the in-progress path and deactivates the session.
// The level and its found words are kept.
func (s *Session) ResetGame() {
	s.path = nil
	s.active = false
}

// FoundWords returns the discovered words in discovery order.
func (s *Session) FoundWords() []string { return slices.Clone(s.found) }

// Progress is the fraction of target words found, in [0,1].
func (s *Session) Progress() float64 {
	if s.level == nil || len(s.level.TargetWords) == 0 {
		return 0
	}
	return min(float64(len(s.found))/float64(len(s.level.TargetWords)), 1)
}

// IsSolved reports whether every target word has been found.
func (s *Session) IsSolved() bool {
	return s.level != nil && len(s.level.TargetWords) > 0 && len(s.found) >= len(s.level.TargetWords)
}

// ShuffledWheel returns the wheel in its presentation order.
func (s *Session) ShuffledWheel() []string { return slices.Clone(s.wheel) }

// Reshuffle lays the wheel out again and clears the path.
func (s *Session) Reshuffle() {
	if s.level == nil {
		return
	}
	s.wheel = s.order(s.wheel)
	s.path = nil
}

// RevealHint uncovers the next hidden letter of the first word not yet found
// and returns its cell. It returns false when nothing is left to reveal.
// Paying for the hint is the caller's concern; check NextHint first.
func (s *Session) RevealHint() (Cell, bool) {
	c, at, ok := s.nextHint()
	if !ok {
		return Cell{}, false
	}
	s.hinted[at] = struct{}{}
	return c, true
}

// NextHint returns the cell RevealHint would uncover, without uncovering it.
func (s *Session) NextHint() (Cell, bool) {
	c, _, ok := s.nextHint()
	return c, ok
}

// nextHint walks the unfound words in order and returns the first letter
// whose grid square is still hidden, with the square's row and column.
// Letters without a square in the grid are skipped.
func (s *Session) nextHint() (Cell, [2]int, bool) {
	if !s.active {
		return Cell{}, [2]int{}, false
	}
	for wi, target := range s.level.TargetWords {
		if s.isFound(target) {
			continue
		}
		for ci, r := range []rune(strings.ToUpper(target)) {
			at, ok := s.square(wi, ci)
			if !ok || s.shown(at) {
				continue
			}
			return Cell{WordIndex: wi, CellIndex: ci, Letter: string(r), Revealed: true}, at, true
		}
	}
	return Cell{}, [2]int{}, false
}

// square locates the grid square showing letter ci of word wi.
func (s *Session) square(wi, ci int) ([2]int, bool) {
	for i, row := range s.level.CrosswordGrid {
		for j, c := range row {
			if c.WordIndex == wi && c.CellIndex == ci {
				return [2]int{i, j}, true
			}
		}
	}
	return [2]int{}, false
}

// shown reports whether the square at is visible, hinted or part of a found word.
func (s *Session) shown(at [2]int) bool {
	if _, ok := s.hinted[at]; ok {
		return true
	}
	c := s.level.CrosswordGrid[at[0]][at[1]]
	return c.WordIndex >= 0 && c.WordIndex < len(s.level.TargetWords) &&
		s.isFound(s.level.TargetWords[c.WordIndex])
}

// RevealedGrid returns a copy of the crossword grid with the letters of found
// words and hinted cells filled in.
func (s *Session) RevealedGrid() [][]Cell {
	if s.level == nil {
		return nil
	}
	grid := make([][]Cell, len(s.level.CrosswordGrid))
	for i, row := range s.level.CrosswordGrid {
		grid[i] = slices.Clone(row)
		for j, c := range grid[i] {
			if c.WordIndex < 0 || c.WordIndex >= len(s.level.TargetWords) {
				continue
			}
			target := []rune(strings.ToUpper(s.level.TargetWords[c.WordIndex]))
			if c.CellIndex < 0 || c.CellIndex >= len(target) {
				continue
			}
			_, hinted := s.hinted[[2]int{i, j}]
			if hinted || s.isFound(s.level.TargetWords[c.WordIndex]) {
				grid[i][j].Letter = string(target[c.CellIndex])
				grid[i][j].Revealed = true
			}
		}
	}
	return grid
}

func (s *Session) isFound(target string) bool {
	_, ok := s.seen[strings.ToUpper(target)]
	return ok
}

func cloneLevel(l Level) Level {
	l.Letters = slices.Clone(l.Letters)
	l.TargetWords = slices.Clone(l.TargetWords)
	grid := make([][]Cell, len(l.CrosswordGrid))
	for i, row := range l.CrosswordGrid {
		grid[i] = slices.Clone(row)
	}
	l.CrosswordGrid = grid
	return l
}
