// Package similarity provides normalized [0,1] similarity measures for strings,
// numbers and locations. Every function is total: absent inputs resolve to a
// documented score instead of an error.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

// Neutral is the score used when a comparison cannot be made.
const Neutral = 0.5

// DefaultNGramSize is used when a non-positive n-gram size is requested.
const DefaultNGramSize = 3

// Jaro-Winkler parameters.
const (
	jaroWinklerBoost     = 0.7
	jaroWinklerPrefixLen = 4
)

// Levenshtein returns 1 - editDistance/maxLength, computed over runes.
func Levenshtein(a, b string) float64 {
	if s, ok := emptyCase(a, b); ok {
		return s
	}

	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	dist := levenshtein.ComputeDistance(a, b)
	return clamp(1 - float64(dist)/float64(maxLen))
}

// JaroWinkler returns the case-insensitive Jaro-Winkler similarity.
func JaroWinkler(a, b string) float64 {
	a, b = fold(a), fold(b)
	if s, ok := emptyCase(a, b); ok {
		return s
	}
	return clamp(smetrics.JaroWinkler(a, b, jaroWinklerBoost, jaroWinklerPrefixLen))
}

// NGram returns the Jaccard similarity of the two strings' character n-gram sets.
// Strings shorter than n are compared with n reduced to the shorter length.
func NGram(a, b string, n int) float64 {
	a, b = fold(a), fold(b)
	if s, ok := emptyCase(a, b); ok {
		return s
	}
	if a == b {
		return 1
	}
	if n <= 0 {
		n = DefaultNGramSize
	}
	shortest := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l < shortest {
		shortest = l
	}
	if shortest < n {
		n = shortest
	}

	jaccard := metrics.NewJaccard()
	jaccard.CaseSensitive = true
	jaccard.NgramSize = n
	return clamp(strutil.Similarity(a, b, jaccard))
}

// emptyCase handles comparisons where at least one side is empty:
// both empty are identical, one empty shares nothing.
func emptyCase(a, b string) (float64, bool) {
	switch {
	case a == "" && b == "":
		return 1, true
	case a == "" || b == "":
		return 0, true
	default:
		return 0, false
	}
}

func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
