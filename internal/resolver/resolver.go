// Package resolver links a payer name reported by the payment gateway to a
// member of the roster by approximate name matching.
package resolver

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"tesouraria/internal/core"
)

// Threshold is the minimum score for a payer to be linked to a member.
const Threshold = 85

// Match is the best roster entry for a payer name.
type Match struct {
	Member core.RosterEntry
	Score  int
}

// Resolve returns the roster entry whose full name scores highest against
// payerName, provided the score reaches Threshold. Ties go to the lowest
// member id, whatever order the roster is in.
func Resolve(payerName string, roster []core.RosterEntry) (Match, bool) {
	if len(roster) == 0 {
		return Match{}, false
	}

	payer := tokenize(payerName)
	best := Match{Score: -1}
	for _, entry := range roster {
		score := scoreTokens(payer, tokenize(entry.FullName))
		if score > best.Score || (score == best.Score && entry.ID < best.Member.ID) {
			best = Match{Member: entry, Score: score}
		}
	}

	if best.Score < Threshold {
		return best, false
	}
	return best, true
}

// Score rates the similarity of two names from 0 to 100. It ignores case,
// accents, punctuation and word order.
func Score(a, b string) int {
	return scoreTokens(tokenize(a), tokenize(b))
}

func scoreTokens(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	best := ratio(strings.Join(sorted(a), " "), strings.Join(sorted(b), " "))
	if s, ok := tokenSetRatio(a, b); ok && s > best {
		best = s
	}
	return best
}

// tokenSetRatio compares the shared tokens against each side's remainder, so
// an extra middle name costs little. It needs at least two shared tokens; a
// single common surname is not evidence of identity.
func tokenSetRatio(a, b []string) (int, bool) {
	setA, setB := toSet(a), toSet(b)
	var common, onlyA, onlyB []string
	for t := range setA {
		if _, ok := setB[t]; ok {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if _, ok := setA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	if len(common) < 2 {
		return 0, false
	}

	base := strings.Join(sorted(common), " ")
	withA := strings.TrimSpace(base + " " + strings.Join(sorted(onlyA), " "))
	withB := strings.TrimSpace(base + " " + strings.Join(sorted(onlyB), " "))

	return max(ratio(base, withA), ratio(base, withB), ratio(withA, withB)), true
}

// ratio is the Levenshtein similarity normalized by the longer string.
func ratio(a, b string) int {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return int(math.Round(100 * (1 - float64(dist)/float64(longest))))
}

var fold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// tokenize lower-cases, strips accents and splits on anything that is not a
// letter or digit.
func tokenize(s string) []string {
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	return strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func sorted(tokens []string) []string {
	out := append([]string(nil), tokens...)
	sort.Strings(out)
	return out
}
