// Package gazetteer ranks gazetteer candidates (city and street names)
// against free-form user input. The address wizard depends only on the
// Searcher contract, so the similarity backend can be swapped independently.
package gazetteer

import (
	"sort"
	"strings"
)

// Match is one ranked candidate.
type Match struct {
	Name  string
	Score float64 // 0..1, higher is better
}

// Searcher ranks candidates against a query.
type Searcher interface {
	Search(query string, candidates []string) []Match
}

// Levenshtein ranks by normalized edit distance, with a bonus for substring
// containment — users usually type a prefix or a fragment of the real name.
type Levenshtein struct {
	MinScore float64 // matches below this are dropped
	Limit    int     // max matches returned, 0 means all
}

func NewSearcher() *Levenshtein {
	return &Levenshtein{MinScore: 0.55, Limit: 5}
}

func (l *Levenshtein) Search(query string, candidates []string) []Match {
	q := normalize(query)
	if q == "" {
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		n := normalize(c)
		score := similarity(q, n)
		if strings.Contains(n, q) && score < 0.9 {
			score = 0.9
		}
		if score >= l.MinScore {
			matches = append(matches, Match{Name: c, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if l.Limit > 0 && len(matches) > l.Limit {
		matches = matches[:l.Limit]
	}
	return matches
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// similarity is 1 - normalized Levenshtein distance over runes.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(distance(ra, rb))/float64(longest)
}

// distance is the classic two-row Levenshtein edit distance.
func distance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
