// assets/embed.go
//
// Embedded defaults shipped with the client:
//   - words.txt:   the connected-word dictionary.
//   - levels.yaml: the offline level pack.

package assets

import (
	"bufio"
	"embed"
	"io"
	"strings"
)

//go:embed words.txt levels.yaml
var FS embed.FS

// ReadWords parses one word per line, skipping blanks and # comments.
// Words are upper-cased.
func ReadWords(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, strings.ToUpper(s))
	}
	return out, sc.Err()
}

// WordList returns the embedded dictionary.
func WordList() ([]string, error) {
	f, err := FS.Open("words.txt")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadWords(f)
}

// LevelPack returns the raw embedded level pack.
func LevelPack() ([]byte, error) {
	return FS.ReadFile("levels.yaml")
}
