package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/relisted/internal/model"
)

// listingRecord is one listing in a scan input file.
type listingRecord struct {
	Price       *float64 `json:"price"`
	Mileage     *int     `json:"mileage"`
	Year        *int     `json:"year"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	ID          string   `json:"id"`
	VIN         string   `json:"vin"`
	Title       string   `json:"title"`
	Make        string   `json:"make"`
	Model       string   `json:"model"`
	City        string   `json:"city"`
	Province    string   `json:"province"`
	PostalCode  string   `json:"postal_code"`
	ImageURLs   []string `json:"image_urls"`
	ImageHashes []uint64 `json:"image_hashes"`
}

func (r listingRecord) toListing() model.ListingData {
	return model.ListingData{
		ID:          strings.TrimSpace(r.ID),
		VIN:         r.VIN,
		Title:       r.Title,
		Make:        r.Make,
		Model:       r.Model,
		Year:        r.Year,
		Price:       r.Price,
		Mileage:     r.Mileage,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		City:        r.City,
		Province:    r.Province,
		PostalCode:  r.PostalCode,
		ImageURLs:   r.ImageURLs,
		ImageHashes: r.ImageHashes,
	}
}

// readListings decodes a JSON array of listings. Every listing needs a unique id.
func readListings(r io.Reader) ([]model.ListingData, error) {
	var records []listingRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}

	listings := make([]model.ListingData, 0, len(records))
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		l := rec.toListing()
		if l.ID == "" {
			return nil, fmt.Errorf("listing %d has no id", i+1)
		}
		if first, ok := seen[l.ID]; ok {
			return nil, fmt.Errorf("listing %d repeats id %q from listing %d", i+1, l.ID, first+1)
		}
		seen[l.ID] = i
		listings = append(listings, l)
	}
	return listings, nil
}
