// internal/catalog/catalog.go
//
// Level and language catalog.
// Responsibilities:
//   - Parse the YAML level pack (embedded default or LEVELS_FILE override).
//   - Convert API levels into playable game levels with a crossword grid.
//   - Hold the current catalog, replaceable as fresher data arrives.
//   - Derive per-player unlock and completion flags from progress.
//
// Unlock rule: within a language, the level with the lowest OrderIndex is
// always unlocked; any other level is unlocked once the level right before
// it (by OrderIndex) is completed.

package catalog

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/robalobadob/phanda-client/assets"
	"github.com/robalobadob/phanda-client/internal/api"
	"github.com/robalobadob/phanda-client/internal/game"
	"github.com/robalobadob/phanda-client/internal/progress"
	"github.com/robalobadob/phanda-client/internal/words"
)

// Pack is a parsed level pack.
type Pack struct {
	Languages []api.Language
	Levels    []game.Level
}

type packFile struct {
	Languages []struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		Flag       string `yaml:"flag"`
		Color      string `yaml:"color"`
		IsUnlocked bool   `yaml:"is_unlocked"`
	} `yaml:"languages"`
	Levels []struct {
		ID          int      `yaml:"id"`
		LanguageID  string   `yaml:"language_id"`
		Name        string   `yaml:"name"`
		Letters     []string `yaml:"letters"`
		TargetWords []string `yaml:"target_words"`
		Landmark    string   `yaml:"landmark"`
		OrderIndex  int      `yaml:"order_index"`
	} `yaml:"levels"`
}

// Parse decodes a YAML level pack.
func Parse(data []byte) (*Pack, error) {
	var f packFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse level pack: %w", err)
	}
	p := &Pack{}
	for _, l := range f.Languages {
		p.Languages = append(p.Languages, api.Language{
			ID: l.ID, Name: l.Name, Flag: l.Flag, Color: l.Color, IsUnlocked: l.IsUnlocked,
		})
	}
	seen := make(map[int]bool, len(f.Levels))
	for _, l := range f.Levels {
		if l.ID <= 0 || len(l.Letters) == 0 || len(l.TargetWords) == 0 {
			return nil, fmt.Errorf("parse level pack: level %d is incomplete", l.ID)
		}
		if seen[l.ID] {
			return nil, fmt.Errorf("parse level pack: duplicate level id %d", l.ID)
		}
		seen[l.ID] = true
		p.Levels = append(p.Levels, FromAPI(api.Level{
			ID: l.ID, LanguageID: l.LanguageID, Name: l.Name, Letters: l.Letters,
			TargetWords: l.TargetWords, Landmark: l.Landmark, OrderIndex: l.OrderIndex,
		}))
	}
	return p, nil
}

// Load reads the level pack at path, or the embedded pack when path is "".
func Load(path string) (*Pack, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = assets.LevelPack()
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read level pack: %w", err)
	}
	return Parse(data)
}

// FromAPI turns a catalog level into a playable one. Letters and words are
// upper-cased; the grid gets one row per target word. Target words missing
// from the dictionary are logged, since they can never be found.
func FromAPI(l api.Level) game.Level {
	letters := make([]string, len(l.Letters))
	for i, s := range l.Letters {
		letters[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	targets := make([]string, len(l.TargetWords))
	for i, w := range l.TargetWords {
		targets[i] = strings.ToUpper(strings.TrimSpace(w))
	}
	order := l.OrderIndex
	if order == 0 {
		order = l.ID
	}
	lv := game.Level{
		ID:            l.ID,
		LanguageID:    cmp.Or(l.LanguageID, progress.DefaultLanguage),
		Name:          l.Name,
		Letters:       letters,
		TargetWords:   targets,
		CrosswordGrid: BuildGrid(targets),
		Landmark:      l.Landmark,
		OrderIndex:    order,
	}
	if missing := MissingFromDictionary(lv); len(missing) > 0 {
		log.Warn().Int("level", lv.ID).Strs("words", missing).Msg("target words not in dictionary")
	}
	return lv
}

// MissingFromDictionary returns the target words of l the dictionary does
// not accept.
func MissingFromDictionary(l game.Level) []string {
	var out []string
	for _, w := range l.TargetWords {
		if !words.IsValidWord(w) {
			out = append(out, w)
		}
	}
	return out
}

// BuildGrid lays out one row per word with every cell hidden.
func BuildGrid(targets []string) [][]game.Cell {
	grid := make([][]game.Cell, len(targets))
	for wi, w := range targets {
		n := len([]rune(w))
		row := make([]game.Cell, n)
		for ci := range n {
			row[ci] = game.Cell{WordIndex: wi, CellIndex: ci}
		}
		grid[wi] = row
	}
	return grid
}

// WithUnlockState returns copies of levels with IsUnlocked, IsCompleted and
// Stars set from lp. Levels are returned in OrderIndex order.
func WithUnlockState(levels []game.Level, lp progress.LanguageProgress) []game.Level {
	out := slices.Clone(levels)
	slices.SortStableFunc(out, byOrder)
	for i := range out {
		out[i].IsCompleted = lp.IsCompleted(out[i].ID)
		out[i].Stars = 0
		if out[i].IsCompleted {
			out[i].Stars = progress.LevelCompleteStars
		}
		out[i].IsUnlocked = i == 0 || lp.IsCompleted(out[i-1].ID)
	}
	return out
}

func byOrder(a, b game.Level) int {
	return cmp.Or(cmp.Compare(a.OrderIndex, b.OrderIndex), cmp.Compare(a.ID, b.ID))
}

// Catalog is the current set of languages and levels. It is safe for
// concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	languages []api.Language
	levels    []game.Level
}

// New returns a catalog holding pack, which may be nil.
func New(pack *Pack) *Catalog {
	c := &Catalog{}
	if pack != nil {
		c.languages = slices.Clone(pack.Languages)
		c.levels = slices.Clone(pack.Levels)
	}
	return c
}

// SetLanguages replaces the language list. An empty list is ignored.
func (c *Catalog) SetLanguages(langs []api.Language) {
	if len(langs) == 0 {
		return
	}
	c.mu.Lock()
	c.languages = slices.Clone(langs)
	c.mu.Unlock()
}

// SetLevels replaces the level list. An empty list is ignored.
func (c *Catalog) SetLevels(levels []game.Level) {
	if len(levels) == 0 {
		return
	}
	c.mu.Lock()
	c.levels = slices.Clone(levels)
	c.mu.Unlock()
}

func (c *Catalog) Languages() []api.Language {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.languages)
}

// Levels returns the levels of one language in OrderIndex order.
func (c *Catalog) Levels(languageID string) []game.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []game.Level
	for _, l := range c.levels {
		if l.LanguageID == languageID {
			out = append(out, l)
		}
	}
	slices.SortStableFunc(out, byOrder)
	return out
}

// Get returns the level with id.
func (c *Catalog) Get(id int) (game.Level, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range c.levels {
		if l.ID == id {
			return l, true
		}
	}
	return game.Level{}, false
}

// Unlocked returns the levels of a language the player may start.
func (c *Catalog) Unlocked(languageID string, lp progress.LanguageProgress) []game.Level {
	var out []game.Level
	for _, l := range WithUnlockState(c.Levels(languageID), lp) {
		if l.IsUnlocked {
			out = append(out, l)
		}
	}
	return out
}
