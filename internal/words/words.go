// internal/words/words.go
//
// Dictionary management for connected-word validation.
//
// Responsibilities:
//   - Load the dictionary from a file or fall back to the embedded default.
//   - Keep an upper-case set for case-insensitive lookups.
//   - Answer IsValidWord and Stats.
//
// Initialization behavior (Init):
//   1. If path is set, load one word per line from it.
//   2. Otherwise use assets/words.txt.
//   If the file cannot be read the embedded list stays active and the error
//   is returned, so callers can log it and keep going.
//
// Initialization is run once (sync.Once). Lookups before Init use the
// embedded dictionary.

package words

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/robalobadob/phanda-client/assets"
)

var (
	initOnce   sync.Once
	dict       map[string]struct{} // upper-case words
	initialErr error
)

// Init loads the dictionary exactly once.
func Init(path string) error {
	initOnce.Do(func() {
		embedded, err := assets.WordList()
		if err != nil {
			initialErr = fmt.Errorf("words: embedded list: %w", err)
		}
		dict = toSet(embedded)

		if path == "" {
			return
		}
		list, err := readWordFile(path)
		if err != nil {
			initialErr = fmt.Errorf("words: %s: %w", path, err)
			return
		}
		if len(list) == 0 {
			initialErr = fmt.Errorf("words: %s: no words", path)
			return
		}
		dict = toSet(list)
	})
	return initialErr
}

func ensure() { _ = Init("") }

// readWordFile loads one word per line from a file.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return assets.ReadWords(f)
}

// toSet converts a list of words into an upper-case lookup set.
func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[strings.ToUpper(w)] = struct{}{}
	}
	return m
}

// IsValidWord reports whether word is in the dictionary, ignoring case.
// There is no partial matching or stemming.
func IsValidWord(word string) bool {
	ensure()
	_, ok := dict[strings.ToUpper(word)]
	return ok
}

// Stats returns the number of loaded dictionary words.
func Stats() int {
	ensure()
	return len(dict)
}
