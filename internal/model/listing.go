// Package model defines the core domain models used throughout the application.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ListingData is a read-only view of a vehicle listing supplied by the listing store.
// Optional numeric fields are pointers; empty strings mean the field is absent.
type ListingData struct {
	Price       *float64
	Mileage     *int
	Year        *int
	Latitude    *float64
	Longitude   *float64
	ID          string
	VIN         string
	Title       string
	Make        string
	Model       string
	City        string
	Province    string
	PostalCode  string
	ImageHashes []uint64
	ImageURLs   []string
}

// HasCoordinates reports whether both latitude and longitude are known.
func (l ListingData) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// HasAttributes reports whether year, make and model are all known.
func (l ListingData) HasAttributes() bool {
	return l.Year != nil && strings.TrimSpace(l.Make) != "" && strings.TrimSpace(l.Model) != ""
}

// DisplayTitle returns the listing title, falling back to "year make model".
func (l ListingData) DisplayTitle() string {
	if title := strings.TrimSpace(l.Title); title != "" {
		return title
	}

	parts := make([]string, 0, 3)
	if l.Year != nil {
		parts = append(parts, strconv.Itoa(*l.Year))
	}
	if m := strings.TrimSpace(l.Make); m != "" {
		parts = append(parts, m)
	}
	if m := strings.TrimSpace(l.Model); m != "" {
		parts = append(parts, m)
	}
	return strings.Join(parts, " ")
}

// EncodeImageHashes serializes fingerprints as a flat JSON array of unsigned 64-bit integers.
func EncodeImageHashes(hashes []uint64) (string, error) {
	if hashes == nil {
		hashes = []uint64{}
	}
	data, err := json.Marshal(hashes)
	if err != nil {
		return "", fmt.Errorf("failed to encode image hashes: %w", err)
	}
	return string(data), nil
}

// DecodeImageHashes parses a JSON array of unsigned 64-bit integers.
// Blank input decodes to an empty set.
func DecodeImageHashes(raw string) ([]uint64, error) {
	if strings.TrimSpace(raw) == "" || strings.TrimSpace(raw) == "null" {
		return []uint64{}, nil
	}

	var hashes []uint64
	if err := json.Unmarshal([]byte(raw), &hashes); err != nil {
		return nil, fmt.Errorf("failed to decode image hashes: %w", err)
	}
	return hashes, nil
}
