package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/phanda-client/internal/api"
	"github.com/robalobadob/phanda-client/internal/game"
	"github.com/robalobadob/phanda-client/internal/progress"
)

func TestLoadEmbeddedPack(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)

	require.Len(t, p.Languages, 1)
	assert.Equal(t, "english", p.Languages[0].ID)
	assert.True(t, p.Languages[0].IsUnlocked)

	require.Len(t, p.Levels, 3)
	first := p.Levels[0]
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, []string{"C", "A", "T", "R"}, first.Letters)
	assert.Equal(t, []string{"CAT", "CART"}, first.TargetWords)
	require.Len(t, first.CrosswordGrid, 2)
	assert.Len(t, first.CrosswordGrid[1], 4)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "levels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
languages:
  - id: spanish
    name: Spanish
levels:
  - id: 10
    language_id: spanish
    name: Madrid
    letters: [s, o, l]
    target_words: [sol]
`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	require.Len(t, p.Levels, 1)
	assert.Equal(t, []string{"S", "O", "L"}, p.Levels[0].Letters)
	assert.Equal(t, 10, p.Levels[0].OrderIndex, "order defaults to id")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "levels: [: nope"},
		{"missing words", "levels:\n  - id: 1\n    letters: [A]\n"},
		{"duplicate id", "levels:\n  - {id: 1, letters: [A], target_words: [A]}\n  - {id: 1, letters: [B], target_words: [B]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestFromAPI(t *testing.T) {
	lv := FromAPI(api.Level{ID: 4, Letters: []string{"w", "o"}, TargetWords: []string{"ow"}})
	assert.Equal(t, progress.DefaultLanguage, lv.LanguageID)
	assert.Equal(t, []string{"OW"}, lv.TargetWords)
	assert.Equal(t, [][]game.Cell{{{WordIndex: 0, CellIndex: 0}, {WordIndex: 0, CellIndex: 1}}}, lv.CrosswordGrid)
}

func TestMissingFromDictionary(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	for _, l := range p.Levels {
		assert.Empty(t, MissingFromDictionary(l), "embedded level %d", l.ID)
	}

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	lv := FromAPI(api.Level{ID: 12, Letters: []string{"Z", "Q", "X"}, TargetWords: []string{"cat", "zqx"}})
	assert.Equal(t, []string{"ZQX"}, MissingFromDictionary(lv))
	assert.Contains(t, buf.String(), "target words not in dictionary")
	assert.Contains(t, buf.String(), `"ZQX"`)
}

func TestWithUnlockState(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name      string
		completed []int
		unlocked  []bool
	}{
		{"fresh", nil, []bool{true, false, false}},
		{"first done", []int{1}, []bool{true, true, false}},
		{"second done out of order", []int{2}, []bool{true, false, true}},
		{"all done", []int{1, 2, 3}, []bool{true, true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lp := progress.NewLanguage()
			lp.CompletedLevels = append(lp.CompletedLevels, tt.completed...)
			got := WithUnlockState(p.Levels, lp)
			for i, l := range got {
				assert.Equal(t, tt.unlocked[i], l.IsUnlocked, "level %d", l.ID)
				assert.Equal(t, lp.IsCompleted(l.ID), l.IsCompleted)
			}
		})
	}
}

func TestCatalog(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	c := New(p)

	lv, ok := c.Get(2)
	require.True(t, ok)
	assert.Equal(t, "Paris - Eiffel Tower", lv.Name)
	_, ok = c.Get(99)
	assert.False(t, ok)

	assert.Len(t, c.Levels("english"), 3)
	assert.Empty(t, c.Levels("spanish"))

	lp := progress.NewLanguage()
	lp.CompletedLevels = []int{1}
	unlocked := c.Unlocked("english", lp)
	require.Len(t, unlocked, 2)
	assert.Equal(t, 3, unlocked[0].Stars)

	c.SetLevels(nil)
	assert.Len(t, c.Levels("english"), 3, "empty replacement ignored")

	c.SetLevels([]game.Level{
		{ID: 7, LanguageID: "english", OrderIndex: 2},
		{ID: 8, LanguageID: "english", OrderIndex: 1},
	})
	levels := c.Levels("english")
	require.Len(t, levels, 2)
	assert.Equal(t, 8, levels[0].ID, "sorted by order index")

	c.SetLanguages([]api.Language{{ID: "english"}, {ID: "spanish"}})
	assert.Len(t, c.Languages(), 2)
	assert.Empty(t, New(nil).Languages())
}
