package imagematch

import (
	"math"

	"github.com/Veraticus/relisted/internal/imagehash"
	"github.com/Veraticus/relisted/internal/similarity"
)

// majorityFraction of source hashes that must match for an image match.
const majorityFraction = 0.5

// Selection reasons.
const (
	ReasonMatched  = "matched"
	ReasonNoImages = "no_images"
	ReasonNoMatch  = "no_match"
)

// Comparison summarizes how a source hash set matches one candidate's hashes.
type Comparison struct {
	MatchingCount     int
	SourceCount       int
	AverageSimilarity float64
	IsMajorityMatch   bool
}

// Candidate is a listing with stored fingerprints.
type Candidate struct {
	ID     string
	Hashes []uint64
}

// Selection is the outcome of choosing the best image-matching candidate.
type Selection struct {
	CandidateID string
	Reason      string
	Comparison  Comparison
	Found       bool
}

// RequiredMatches returns ceil(sourceCount * 0.5).
func RequiredMatches(sourceCount int) int {
	return int(math.Ceil(float64(sourceCount) * majorityFraction))
}

// Compare pairs each source hash with its most similar candidate hash.
// A pair counts as a match when its distance is within threshold.
// AverageSimilarity is the mean best similarity in [0,1] over all source hashes.
func Compare(source, candidate []uint64, threshold int) Comparison {
	cmp := Comparison{SourceCount: len(source)}
	if len(source) == 0 || len(candidate) == 0 {
		return cmp
	}

	var total float64
	for _, s := range source {
		best := imagehash.Bits + 1
		for _, c := range candidate {
			if d := imagehash.Distance(s, c); d < best {
				best = d
			}
		}
		total += float64(imagehash.Bits-best) / imagehash.Bits
		if best <= threshold {
			cmp.MatchingCount++
		}
	}

	cmp.AverageSimilarity = total / float64(len(source))
	cmp.IsMajorityMatch = cmp.MatchingCount >= RequiredMatches(cmp.SourceCount)
	return cmp
}

// BestCandidate picks the candidate with the most matching hashes, breaking ties
// by higher average similarity. Found is false when no candidate wins a majority.
func BestCandidate(source []uint64, candidates []Candidate, threshold int) Selection {
	if len(source) == 0 {
		return Selection{Reason: ReasonNoImages}
	}

	var (
		best     Selection
		haveBest bool
	)
	for _, c := range candidates {
		if len(c.Hashes) == 0 {
			continue
		}
		cmp := Compare(source, c.Hashes, threshold)
		if !haveBest ||
			cmp.MatchingCount > best.Comparison.MatchingCount ||
			(cmp.MatchingCount == best.Comparison.MatchingCount && cmp.AverageSimilarity > best.Comparison.AverageSimilarity) {
			best = Selection{CandidateID: c.ID, Comparison: cmp}
			haveBest = true
		}
	}

	if !haveBest || !best.Comparison.IsMajorityMatch {
		best.Reason = ReasonNoMatch
		best.Found = false
		return best
	}
	best.Reason = ReasonMatched
	best.Found = true
	return best
}

// Score returns a symmetric image agreement score for two hash sets.
// Either set empty yields similarity.Neutral.
func Score(a, b []uint64, threshold int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return similarity.Neutral
	}
	return (directional(a, b, threshold) + directional(b, a, threshold)) / 2
}

func directional(source, candidate []uint64, threshold int) float64 {
	cmp := Compare(source, candidate, threshold)
	if cmp.IsMajorityMatch {
		return cmp.AverageSimilarity
	}
	return cmp.AverageSimilarity * float64(cmp.MatchingCount) / float64(cmp.SourceCount)
}
