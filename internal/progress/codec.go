package progress

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when stored progress cannot be decoded.
var ErrMalformed = errors.New("progress: malformed data")

// legacyProgress is the single-language shape written by early clients.
// It is recognised by its top-level currentLevel field.
type legacyProgress struct {
	CurrentLevel    int   `json:"currentLevel"`
	Gems            int   `json:"gems"`
	CompletedLevels []int `json:"completedLevels"`
	TotalStars      int   `json:"totalStars"`
	HintsUsed       int   `json:"hintsUsed"`
}

// Encode serialises progress in the current multi-language format.
func Encode(p UserProgress) ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses stored progress. Legacy blobs are migrated into the current
// format under the default language; migrated reports whether that happened.
func Decode(data []byte) (p UserProgress, migrated bool, err error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return UserProgress{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return UserProgress{}, false, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	if _, legacy := fields["currentLevel"]; legacy {
		var old legacyProgress
		if err := json.Unmarshal(data, &old); err != nil {
			return UserProgress{}, false, fmt.Errorf("%w: legacy: %v", ErrMalformed, err)
		}
		return Normalize(migrateLegacy(old)), true, nil
	}

	if err := json.Unmarshal(data, &p); err != nil {
		return UserProgress{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Normalize(p), false, nil
}

// migrateLegacy wraps a single-language record under the default language.
// The old hint count stays on the aggregate; the language starts at zero.
func migrateLegacy(old legacyProgress) UserProgress {
	completed := old.CompletedLevels
	if completed == nil {
		completed = []int{}
	}
	return UserProgress{
		Gems:             old.Gems,
		HintsUsed:        old.HintsUsed,
		SelectedLanguage: DefaultLanguage,
		Languages: map[string]LanguageProgress{
			DefaultLanguage: {
				CurrentLevel:    old.CurrentLevel,
				CompletedLevels: completed,
				TotalStars:      old.TotalStars,
				HintsUsed:       0,
			},
		},
	}
}
