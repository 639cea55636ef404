package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidDedupConfig is returned when a configuration fails validation.
var ErrInvalidDedupConfig = errors.New("invalid deduplication config")

// DefaultProfileName is the name given to lazily created tenant profiles.
const DefaultProfileName = "default"

// weightSumTolerance is how far the weight sum may drift from 1.0 before a warning.
const weightSumTolerance = 0.05

// DeduplicationConfig is a named, versioned parameter set for the matching engine.
type DeduplicationConfig struct {
	CreatedAt time.Time `yaml:"-"`
	UpdatedAt time.Time `yaml:"-"`
	ID        string    `yaml:"-"`
	TenantID  string    `yaml:"tenant_id"`
	Name      string    `yaml:"name"`

	OverallMatchThreshold float64 `yaml:"overall_match_threshold"`
	ReviewThreshold       float64 `yaml:"review_threshold"`

	VINWeight      float64 `yaml:"vin_weight"`
	TitleWeight    float64 `yaml:"title_weight"`
	PriceWeight    float64 `yaml:"price_weight"`
	MileageWeight  float64 `yaml:"mileage_weight"`
	LocationWeight float64 `yaml:"location_weight"`
	ImageWeight    float64 `yaml:"image_weight"`

	MileageTolerance    float64 `yaml:"mileage_tolerance"`
	PriceTolerance      float64 `yaml:"price_tolerance"`
	YearTolerance       int     `yaml:"year_tolerance"`
	LocationToleranceKm float64 `yaml:"location_tolerance_km"`
	NGramSize           int     `yaml:"ngram_size"`
	HammingThreshold    int     `yaml:"hamming_threshold"`

	// Title blend used when year/make/model are known on both sides.
	TitleAttributeWeight   float64 `yaml:"title_attribute_weight"`
	TitleJaroWinklerWeight float64 `yaml:"title_jaro_winkler_weight"`
	TitleNGramWeight       float64 `yaml:"title_ngram_weight"`
	// Title blend used when attributes are missing.
	TitleOnlyJaroWinklerWeight float64 `yaml:"title_only_jaro_winkler_weight"`
	TitleOnlyNGramWeight       float64 `yaml:"title_only_ngram_weight"`
	// VINOverrideFloor is the minimum overall score for an exact VIN match.
	VINOverrideFloor float64 `yaml:"vin_override_floor"`

	Version  int  `yaml:"-"`
	IsActive bool `yaml:"-"`
}

// DefaultDeduplicationConfig returns the default profile for a tenant.
// The title blend and VIN floor are heuristics awaiting re-tuning against labeled audit data.
func DefaultDeduplicationConfig(tenantID string) DeduplicationConfig {
	return DeduplicationConfig{
		TenantID:                   tenantID,
		Name:                       DefaultProfileName,
		Version:                    1,
		OverallMatchThreshold:      0.85,
		ReviewThreshold:            0.65,
		VINWeight:                  0.30,
		TitleWeight:                0.20,
		PriceWeight:                0.10,
		MileageWeight:              0.10,
		LocationWeight:             0.10,
		ImageWeight:                0.20,
		MileageTolerance:           5000,
		PriceTolerance:             1000,
		YearTolerance:              1,
		LocationToleranceKm:        100,
		NGramSize:                  3,
		HammingThreshold:           10,
		TitleAttributeWeight:       0.60,
		TitleJaroWinklerWeight:     0.25,
		TitleNGramWeight:           0.15,
		TitleOnlyJaroWinklerWeight: 0.60,
		TitleOnlyNGramWeight:       0.40,
		VINOverrideFloor:           0.95,
	}
}

// WeightSum returns the sum of the six field weights.
func (c *DeduplicationConfig) WeightSum() float64 {
	return c.VINWeight + c.TitleWeight + c.PriceWeight + c.MileageWeight + c.LocationWeight + c.ImageWeight
}

// Validate checks the configuration. Weight sums away from 1.0 are reported as warnings,
// since callers may intentionally use partial weighting.
func (c *DeduplicationConfig) Validate() ([]string, error) {
	if strings.TrimSpace(c.TenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidDedupConfig)
	}
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDedupConfig)
	}

	unit := map[string]float64{
		"overall match threshold": c.OverallMatchThreshold,
		"review threshold":        c.ReviewThreshold,
		"vin override floor":      c.VINOverrideFloor,
	}
	for name, v := range unit {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: %s must be between 0 and 1, got %.2f", ErrInvalidDedupConfig, name, v)
		}
	}
	if c.ReviewThreshold > c.OverallMatchThreshold {
		return nil, fmt.Errorf("%w: review threshold %.2f exceeds overall match threshold %.2f",
			ErrInvalidDedupConfig, c.ReviewThreshold, c.OverallMatchThreshold)
	}

	nonNegative := map[string]float64{
		"vin weight":                     c.VINWeight,
		"title weight":                   c.TitleWeight,
		"price weight":                   c.PriceWeight,
		"mileage weight":                 c.MileageWeight,
		"location weight":                c.LocationWeight,
		"image weight":                   c.ImageWeight,
		"mileage tolerance":              c.MileageTolerance,
		"price tolerance":                c.PriceTolerance,
		"year tolerance":                 float64(c.YearTolerance),
		"location tolerance":             c.LocationToleranceKm,
		"hamming threshold":              float64(c.HammingThreshold),
		"title attribute weight":         c.TitleAttributeWeight,
		"title jaro-winkler weight":      c.TitleJaroWinklerWeight,
		"title n-gram weight":            c.TitleNGramWeight,
		"title-only jaro-winkler weight": c.TitleOnlyJaroWinklerWeight,
		"title-only n-gram weight":       c.TitleOnlyNGramWeight,
	}
	for name, v := range nonNegative {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: %s cannot be negative", ErrInvalidDedupConfig, name)
		}
	}
	if c.HammingThreshold > 64 {
		return nil, fmt.Errorf("%w: hamming threshold cannot exceed 64", ErrInvalidDedupConfig)
	}

	var warnings []string
	if sum := c.WeightSum(); math.Abs(sum-1.0) > weightSumTolerance {
		warnings = append(warnings, fmt.Sprintf("field weights sum to %.2f, expected about 1.0", sum))
	}
	return warnings, nil
}
