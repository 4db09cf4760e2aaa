// internal/words/validator.go
//
// Rules for turning a drag across the letter wheel into a word.
//
// The wheel is a circle of n letters: index 0 sits next to index n-1.
// Two distances matter:
//   - adjacency: the geometric neighbour on the circle (distance 1).
//   - connection range: distance <= 2, which is what the drag logic uses.
//     Small touch targets make strict adjacency reject too many drags.

package words

import (
	"math/rand/v2"
	"slices"
	"strings"
)

// minWordLen is the shortest sequence that can form a word.
const minWordLen = 3

// maxConnectionDistance is the circular distance tolerated between two
// consecutive letters of a path.
const maxConnectionDistance = 2

// ValidateConnectedWord joins the letters in path order and returns the
// upper-cased word when it is in the dictionary. Sequences shorter than
// three letters never validate.
func ValidateConnectedWord(letters []string) (string, bool) {
	if len(letters) < minWordLen {
		return "", false
	}
	word := strings.ToUpper(strings.Join(letters, ""))
	if !IsValidWord(word) {
		return "", false
	}
	return word, true
}

// AreLettersAdjacent reports whether i and j are neighbours on a circle of
// n letters.
func AreLettersAdjacent(i, j, n int) bool {
	diff := abs(i - j)
	return diff == 1 || diff == n-1
}

// IsWithinConnectionRange reports whether the circular distance between i
// and j is at most two positions.
func IsWithinConnectionRange(i, j, n int) bool {
	diff := abs(i - j)
	return min(diff, n-diff) <= maxConnectionDistance
}

// CanConnectLetters reports whether next may be appended to path.
// Any index may start an empty path; afterwards next must be within
// connection range of the last index and not already used.
func CanConnectLetters(path []int, next, n int) bool {
	if len(path) == 0 {
		return true
	}
	last := path[len(path)-1]
	return IsWithinConnectionRange(last, next, n) && !slices.Contains(path, next)
}

// LettersForPath returns the wheel letters selected by path, in path order.
// It returns false if any index falls outside the wheel.
func LettersForPath(wheel []string, path []int) ([]string, bool) {
	out := make([]string, 0, len(path))
	for _, i := range path {
		if i < 0 || i >= len(wheel) {
			return nil, false
		}
		out = append(out, wheel[i])
	}
	return out, true
}

// Shuffle returns a uniformly shuffled copy of xs (Fisher–Yates).
// xs itself is left untouched.
func Shuffle[T any](xs []T) []T {
	out := slices.Clone(xs)
	for i := len(out) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// WordPositionInGrid returns the index of the first target equal to word,
// ignoring case, or -1.
func WordPositionInGrid(word string, targets []string) int {
	return slices.IndexFunc(targets, func(t string) bool {
		return strings.EqualFold(t, word)
	})
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
