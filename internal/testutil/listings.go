package testutil

import "github.com/Veraticus/relisted/internal/model"

// ListingBuilder provides a fluent interface for constructing test listings.
type ListingBuilder struct {
	listing model.ListingData
}

// NewListing starts a listing with the given id and no other fields.
func NewListing(id string) *ListingBuilder {
	return &ListingBuilder{listing: model.ListingData{ID: id}}
}

// WithVIN sets the VIN.
func (b *ListingBuilder) WithVIN(vin string) *ListingBuilder {
	b.listing.VIN = vin
	return b
}

// WithTitle sets the free-text title.
func (b *ListingBuilder) WithTitle(title string) *ListingBuilder {
	b.listing.Title = title
	return b
}

// WithVehicle sets year, make and model.
func (b *ListingBuilder) WithVehicle(year int, manufacturer, modelName string) *ListingBuilder {
	b.listing.Year = &year
	b.listing.Make = manufacturer
	b.listing.Model = modelName
	return b
}

// WithPrice sets the asking price.
func (b *ListingBuilder) WithPrice(price float64) *ListingBuilder {
	b.listing.Price = &price
	return b
}

// WithMileage sets the odometer reading.
func (b *ListingBuilder) WithMileage(km int) *ListingBuilder {
	b.listing.Mileage = &km
	return b
}

// WithCoordinates sets latitude and longitude.
func (b *ListingBuilder) WithCoordinates(lat, lon float64) *ListingBuilder {
	b.listing.Latitude = &lat
	b.listing.Longitude = &lon
	return b
}

// WithAddress sets city, province and postal code.
func (b *ListingBuilder) WithAddress(city, province, postal string) *ListingBuilder {
	b.listing.City = city
	b.listing.Province = province
	b.listing.PostalCode = postal
	return b
}

// WithImageHashes sets the stored image fingerprints.
func (b *ListingBuilder) WithImageHashes(hashes ...uint64) *ListingBuilder {
	b.listing.ImageHashes = hashes
	return b
}

// WithImageURLs sets the image URLs.
func (b *ListingBuilder) WithImageURLs(urls ...string) *ListingBuilder {
	b.listing.ImageURLs = urls
	return b
}

// Build returns the listing.
func (b *ListingBuilder) Build() model.ListingData {
	return b.listing
}

// Civic returns a fully populated listing used as a baseline in tests.
func Civic(id string) *ListingBuilder {
	return NewListing(id).
		WithVIN("1HGBH41JXMN109186").
		WithTitle("2019 Honda Civic LX Sedan").
		WithVehicle(2019, "Honda", "Civic").
		WithPrice(18500).
		WithMileage(62000).
		WithCoordinates(43.6532, -79.3832).
		WithAddress("Toronto", "ON", "M5H 2N2")
}
