// internal/progress/model.go
//
// Player progress: one record per language plus process-wide counters.
//
// Mutations are methods on *UserProgress and never do I/O; persisting and
// syncing is the coordinator's job. Derived values (current language,
// total stars, hint affordability) are plain functions recomputed on demand.
//
// Hint counters: the per-language HintsUsed is the canonical count for a
// track. The top-level HintsUsed is a lifetime total kept for the stored
// format and bumped alongside it.

package progress

import "slices"

const (
	DefaultLanguage = "english"

	StartingGems       = 100
	HintCost           = 20
	LevelCompleteGems  = 50
	LevelCompleteStars = 3
)

// LanguageProgress is the progression through one language's levels.
type LanguageProgress struct {
	CurrentLevel    int   `json:"currentLevel"`
	CompletedLevels []int `json:"completedLevels"`
	TotalStars      int   `json:"totalStars"`
	HintsUsed       int   `json:"hintsUsed"`
}

// UserProgress is the persisted aggregate for one player.
type UserProgress struct {
	Gems             int                         `json:"gems"`
	HintsUsed        int                         `json:"hintsUsed"`
	SelectedLanguage string                      `json:"selectedLanguage"`
	Languages        map[string]LanguageProgress `json:"languages"`
}

// NewLanguage returns the progress of a language nobody has played yet.
func NewLanguage() LanguageProgress {
	return LanguageProgress{CurrentLevel: 1, CompletedLevels: []int{}}
}

// NewUser returns first-run progress: starting gems and the default language.
func NewUser() UserProgress {
	return UserProgress{
		Gems:             StartingGems,
		SelectedLanguage: DefaultLanguage,
		Languages:        map[string]LanguageProgress{DefaultLanguage: NewLanguage()},
	}
}

// IsCompleted reports whether levelID is in the completed set.
func (lp LanguageProgress) IsCompleted(levelID int) bool {
	return slices.Contains(lp.CompletedLevels, levelID)
}

// Clone returns a deep copy.
func (lp LanguageProgress) Clone() LanguageProgress {
	lp.CompletedLevels = slices.Clone(lp.CompletedLevels)
	if lp.CompletedLevels == nil {
		lp.CompletedLevels = []int{}
	}
	return lp
}

// Clone returns a deep copy.
func (p UserProgress) Clone() UserProgress {
	langs := make(map[string]LanguageProgress, len(p.Languages))
	for id, lp := range p.Languages {
		langs[id] = lp.Clone()
	}
	p.Languages = langs
	return p
}

// CurrentLanguageProgress returns the selected language's record, or a fresh
// one when it has none yet.
func CurrentLanguageProgress(p UserProgress) LanguageProgress {
	if lp, ok := p.Languages[p.SelectedLanguage]; ok {
		return lp
	}
	return NewLanguage()
}

// TotalStars sums stars over every language.
func TotalStars(p UserProgress) int {
	total := 0
	for _, lp := range p.Languages {
		total += lp.TotalStars
	}
	return total
}

// CanUseHint reports whether the player can pay for a hint.
func CanUseHint(p UserProgress) bool {
	return p.Gems >= HintCost
}

// SetSelectedLanguage points the aggregate at id, creating a fresh record
// when it has none. It reports whether a record was created.
func (p *UserProgress) SetSelectedLanguage(id string) bool {
	p.SelectedLanguage = id
	if p.Languages == nil {
		p.Languages = make(map[string]LanguageProgress)
	}
	if _, ok := p.Languages[id]; ok {
		return false
	}
	p.Languages[id] = NewLanguage()
	return true
}

// CompleteLevel records levelID as completed in the selected language.
// Stars and gems are only granted the first time; the current level always
// moves to at least levelID+1. It reports whether a reward was granted.
func (p *UserProgress) CompleteLevel(levelID int) bool {
	p.SetSelectedLanguage(p.SelectedLanguage)
	lp := p.Languages[p.SelectedLanguage].Clone()

	awarded := false
	if !lp.IsCompleted(levelID) {
		lp.CompletedLevels = append(lp.CompletedLevels, levelID)
		lp.TotalStars += LevelCompleteStars
		p.Gems += LevelCompleteGems
		awarded = true
	}
	lp.CurrentLevel = max(lp.CurrentLevel, levelID+1)
	p.Languages[p.SelectedLanguage] = lp
	return awarded
}

// UseHint pays for a hint. It returns false, leaving everything unchanged,
// when the player cannot afford it.
func (p *UserProgress) UseHint() bool {
	if !CanUseHint(*p) {
		return false
	}
	p.Gems -= HintCost
	p.RecordHint()
	return true
}

// RecordHint bumps the hint counters without touching gems.
func (p *UserProgress) RecordHint() {
	p.SetSelectedLanguage(p.SelectedLanguage)
	lp := p.Languages[p.SelectedLanguage]
	lp.HintsUsed++
	p.Languages[p.SelectedLanguage] = lp
	p.HintsUsed++
}

// AddGems adds n gems. The balance never drops below zero.
func (p *UserProgress) AddGems(n int) {
	p.Gems = max(p.Gems+n, 0)
}

// ReplaceLanguage overwrites a language's record, e.g. from a remote snapshot.
func (p *UserProgress) ReplaceLanguage(id string, lp LanguageProgress) {
	if p.Languages == nil {
		p.Languages = make(map[string]LanguageProgress)
	}
	p.Languages[id] = normalizeLanguage(lp)
}

// Reset restores first-run progress.
func (p *UserProgress) Reset() {
	*p = NewUser()
}

// Normalize repairs a record read from storage or the network: it fills
// missing maps and the selected language, clamps negative counters,
// removes duplicate completed levels and keeps CurrentLevel ahead of them.
func Normalize(p UserProgress) UserProgress {
	if p.Languages == nil {
		p.Languages = make(map[string]LanguageProgress)
	}
	for id, lp := range p.Languages {
		p.Languages[id] = normalizeLanguage(lp)
	}
	if p.SelectedLanguage == "" {
		p.SelectedLanguage = DefaultLanguage
	}
	if _, ok := p.Languages[p.SelectedLanguage]; !ok {
		p.Languages[p.SelectedLanguage] = NewLanguage()
	}
	p.Gems = max(p.Gems, 0)
	p.HintsUsed = max(p.HintsUsed, 0)
	return p
}

func normalizeLanguage(lp LanguageProgress) LanguageProgress {
	seen := make(map[int]struct{}, len(lp.CompletedLevels))
	completed := make([]int, 0, len(lp.CompletedLevels))
	highest := 0
	for _, id := range lp.CompletedLevels {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		completed = append(completed, id)
		highest = max(highest, id)
	}
	lp.CompletedLevels = completed
	lp.CurrentLevel = max(lp.CurrentLevel, 1, highest+1)
	lp.TotalStars = max(lp.TotalStars, 0)
	lp.HintsUsed = max(lp.HintsUsed, 0)
	return lp
}
