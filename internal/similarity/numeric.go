package similarity

import "math"

// Proximity scores two optional quantities against a tolerance T.
// The score decays as 1 - (D/T)^2 for an absolute difference D and reaches 0 at D >= T.
// An absent side yields Neutral. A non-positive tolerance demands equality.
func Proximity(a, b *float64, tolerance float64) float64 {
	if a == nil || b == nil {
		return Neutral
	}

	diff := math.Abs(*a - *b)
	if tolerance <= 0 {
		if diff == 0 {
			return 1
		}
		return 0
	}

	ratio := diff / tolerance
	return clamp(1 - ratio*ratio)
}

// IntProximity is Proximity for integer quantities such as mileage.
func IntProximity(a, b *int, tolerance float64) float64 {
	if a == nil || b == nil {
		return Neutral
	}
	fa, fb := float64(*a), float64(*b)
	return Proximity(&fa, &fb, tolerance)
}
