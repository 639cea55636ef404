package matching

import (
	"strings"

	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/similarity"
)

// TitleScore blends attribute agreement with string similarity of the titles.
// When year, make and model are known on both sides the attribute blend weights
// apply; otherwise only the title strings are compared. A blank title is replaced
// by "year make model".
func TitleScore(a, b model.ListingData, cfg model.DeduplicationConfig) float64 {
	titleA, titleB := a.DisplayTitle(), b.DisplayTitle()

	if a.HasAttributes() && b.HasAttributes() {
		return blend(
			weighted{cfg.TitleAttributeWeight, attributeScore(a, b)},
			weighted{cfg.TitleJaroWinklerWeight, similarity.JaroWinkler(titleA, titleB)},
			weighted{cfg.TitleNGramWeight, similarity.NGram(titleA, titleB, cfg.NGramSize)},
		)
	}

	if titleA == "" || titleB == "" {
		return similarity.Neutral
	}
	return blend(
		weighted{cfg.TitleOnlyJaroWinklerWeight, similarity.JaroWinkler(titleA, titleB)},
		weighted{cfg.TitleOnlyNGramWeight, similarity.NGram(titleA, titleB, cfg.NGramSize)},
	)
}

// attributeScore is the mean of exact year, make and model agreement.
func attributeScore(a, b model.ListingData) float64 {
	var agree float64
	if *a.Year == *b.Year {
		agree++
	}
	if strings.EqualFold(strings.TrimSpace(a.Make), strings.TrimSpace(b.Make)) {
		agree++
	}
	if strings.EqualFold(strings.TrimSpace(a.Model), strings.TrimSpace(b.Model)) {
		agree++
	}
	return agree / 3
}

type weighted struct {
	weight float64
	score  float64
}

// blend returns the weighted mean of the parts, or Neutral when no weight is set.
func blend(parts ...weighted) float64 {
	var sum, total float64
	for _, p := range parts {
		sum += p.weight * p.score
		total += p.weight
	}
	if total <= 0 {
		return similarity.Neutral
	}
	return sum / total
}
