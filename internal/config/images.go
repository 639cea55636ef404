package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/fetch"
	"github.com/Veraticus/relisted/internal/imagematch"
)

// Configuration keys.
const (
	KeyDatabasePath           = "database.path"
	KeyTenant                 = "tenant"
	KeyImagesMaxPerListing    = "images.max_per_listing"
	KeyImagesHammingThreshold = "images.hamming_threshold"
	KeyImagesMaxBytes         = "images.max_bytes"
	KeyImagesTimeout          = "images.timeout"
	KeyImagesRequestsPerSec   = "images.requests_per_second"
	KeyImagesUserAgent        = "images.user_agent"
)

// DefaultTenant is used when no tenant is configured.
const DefaultTenant = "default"

// Tenant returns the configured tenant id.
func Tenant() string {
	if v := viper.GetString(KeyTenant); v != "" {
		return v
	}
	return DefaultTenant
}

// LoadImageOptions loads image aggregation options from Viper.
// Unset keys keep the aggregator defaults.
func LoadImageOptions() (imagematch.Options, error) {
	opts := imagematch.DefaultOptions()

	if viper.IsSet(KeyImagesMaxPerListing) {
		opts.MaxImages = viper.GetInt(KeyImagesMaxPerListing)
	}
	if viper.IsSet(KeyImagesHammingThreshold) {
		opts.HammingThreshold = viper.GetInt(KeyImagesHammingThreshold)
	}
	if viper.IsSet(KeyImagesMaxBytes) {
		opts.MaxImageBytes = viper.GetInt(KeyImagesMaxBytes)
	}

	if opts.MaxImages < 1 {
		return opts, fmt.Errorf("%w: %s must be at least 1", common.ErrInvalidConfig, KeyImagesMaxPerListing)
	}
	if opts.HammingThreshold < 0 || opts.HammingThreshold > 64 {
		return opts, fmt.Errorf("%w: %s must be between 0 and 64", common.ErrInvalidConfig, KeyImagesHammingThreshold)
	}
	if opts.MaxImageBytes < 1 {
		return opts, fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeyImagesMaxBytes)
	}
	return opts, nil
}

// LoadFetcherOptions loads HTTP image fetcher options from Viper.
func LoadFetcherOptions() (fetch.Options, error) {
	opts := fetch.DefaultOptions()

	if viper.IsSet(KeyImagesTimeout) {
		opts.Timeout = viper.GetDuration(KeyImagesTimeout)
	}
	if viper.IsSet(KeyImagesRequestsPerSec) {
		opts.RequestsPerSecond = viper.GetFloat64(KeyImagesRequestsPerSec)
	}
	if viper.IsSet(KeyImagesMaxBytes) {
		opts.MaxBytes = viper.GetInt64(KeyImagesMaxBytes)
	}
	if v := viper.GetString(KeyImagesUserAgent); v != "" {
		opts.UserAgent = v
	}

	if opts.Timeout <= 0 {
		return opts, fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeyImagesTimeout)
	}
	if opts.MaxBytes < 1 {
		return opts, fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeyImagesMaxBytes)
	}
	return opts, nil
}
