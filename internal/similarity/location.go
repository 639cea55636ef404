package similarity

import (
	"math"
	"strings"
)

// EarthRadiusKm is the mean earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// Blend of geographic and address agreement when both are available.
const (
	geoWeight     = 0.7
	addressWeight = 0.3
)

// Address agreement levels.
const (
	postalExactScore  = 1.0
	postalPrefixScore = 0.9
	cityScore         = 0.8
	provinceScore     = 0.5
	postalPrefixLen   = 3
)

// Place is the location part of a listing.
type Place struct {
	Latitude   *float64
	Longitude  *float64
	City       string
	Province   string
	PostalCode string
}

// Haversine returns the great-circle distance in kilometres between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Location combines geographic distance with postal code, city and province agreement.
// Neutral is returned when neither signal can be computed.
func Location(a, b Place, toleranceKm float64) float64 {
	geo, hasGeo := geoScore(a, b, toleranceKm)
	addr, hasAddr := addressScore(a, b)

	switch {
	case hasGeo && hasAddr:
		return clamp(geoWeight*geo + addressWeight*addr)
	case hasGeo:
		return geo
	case hasAddr:
		return addr
	default:
		return Neutral
	}
}

func geoScore(a, b Place, toleranceKm float64) (float64, bool) {
	if a.Latitude == nil || a.Longitude == nil || b.Latitude == nil || b.Longitude == nil {
		return 0, false
	}
	d := Haversine(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
	if toleranceKm <= 0 {
		if d == 0 {
			return 1, true
		}
		return 0, true
	}
	return clamp(1 - d/toleranceKm), true
}

func addressScore(a, b Place) (float64, bool) {
	postalA, postalB := normalizePostal(a.PostalCode), normalizePostal(b.PostalCode)
	cityA, cityB := fold(a.City), fold(b.City)
	provA, provB := fold(a.Province), fold(b.Province)

	comparable := false
	if postalA != "" && postalB != "" {
		comparable = true
		if postalA == postalB {
			return postalExactScore, true
		}
		if len(postalA) >= postalPrefixLen && len(postalB) >= postalPrefixLen &&
			postalA[:postalPrefixLen] == postalB[:postalPrefixLen] {
			return postalPrefixScore, true
		}
	}

	provincesConflict := provA != "" && provB != "" && provA != provB
	if cityA != "" && cityB != "" {
		comparable = true
		if cityA == cityB && !provincesConflict {
			return cityScore, true
		}
	}

	if provA != "" && provB != "" {
		comparable = true
		if provA == provB {
			return provinceScore, true
		}
	}

	return 0, comparable
}

func normalizePostal(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if r == ' ' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
