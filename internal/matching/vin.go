package matching

import (
	"strings"

	"github.com/Veraticus/relisted/internal/similarity"
)

// VIN scoring levels.
const (
	vinSuffixLen          = 8
	vinSuffixScore        = 0.9
	vinLevenshteinMinimum = 0.9
)

var vinReplacer = strings.NewReplacer(
	"O", "0",
	"I", "1",
	"Q", "0",
	" ", "",
	"-", "",
)

// NormalizeVIN upper-cases a VIN, maps the letters O, I and Q to the digits they
// are commonly misread as, and strips spaces and hyphens.
func NormalizeVIN(vin string) string {
	return vinReplacer.Replace(strings.ToUpper(strings.TrimSpace(vin)))
}

// VINScore compares two VINs. A missing VIN on either side is neutral.
func VINScore(a, b string) float64 {
	na, nb := NormalizeVIN(a), NormalizeVIN(b)
	if na == "" || nb == "" {
		return similarity.Neutral
	}
	if na == nb {
		return 1
	}
	if len(na) >= vinSuffixLen && len(nb) >= vinSuffixLen &&
		na[len(na)-vinSuffixLen:] == nb[len(nb)-vinSuffixLen:] {
		return vinSuffixScore
	}
	if lev := similarity.Levenshtein(na, nb); lev > vinLevenshteinMinimum {
		return lev
	}
	return 0
}
