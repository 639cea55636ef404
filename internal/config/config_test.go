package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/imagematch"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("RELISTED_TEST_DIR", "/srv/data")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/relisted.db", filepath.Join(home, "relisted.db")},
		{"$RELISTED_TEST_DIR/relisted.db", "/srv/data/relisted.db"},
		{"/abs/path.db", "/abs/path.db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestDatabasePathAndTenant(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	t.Setenv("XDG_DATA_HOME", "")

	assert.Equal(t, DefaultTenant, Tenant())
	assert.Contains(t, DatabasePath(), filepath.Join(".local", "share", "relisted", "relisted.db"))

	viper.Set(KeyTenant, "dealer-42")
	viper.Set(KeyDatabasePath, "/tmp/custom.db")
	assert.Equal(t, "dealer-42", Tenant())
	assert.Equal(t, "/tmp/custom.db", DatabasePath())
}

func TestXDGDirectories(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/etc/xdg")
	t.Setenv("XDG_DATA_HOME", "/var/lib")
	viper.Reset()
	defer viper.Reset()

	assert.Equal(t, "/etc/xdg/relisted", ConfigDir())
	assert.Equal(t, "/var/lib/relisted", DataDir())
	assert.Equal(t, "/var/lib/relisted/relisted.db", DatabasePath())
}

func TestLoadImageOptions(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	opts, err := LoadImageOptions()
	require.NoError(t, err)
	assert.Equal(t, imagematch.DefaultMaxImages, opts.MaxImages)

	viper.Set(KeyImagesMaxPerListing, 5)
	viper.Set(KeyImagesHammingThreshold, 8)
	opts, err = LoadImageOptions()
	require.NoError(t, err)
	assert.Equal(t, 5, opts.MaxImages)
	assert.Equal(t, 8, opts.HammingThreshold)

	viper.Set(KeyImagesHammingThreshold, 65)
	_, err = LoadImageOptions()
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLoadFetcherOptions(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set(KeyImagesTimeout, "3s")
	viper.Set(KeyImagesRequestsPerSec, 2.5)
	viper.Set(KeyImagesUserAgent, "tester/1.0")
	opts, err := LoadFetcherOptions()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.InDelta(t, 2.5, opts.RequestsPerSecond, 1e-9)
	assert.Equal(t, "tester/1.0", opts.UserAgent)

	viper.Set(KeyImagesTimeout, "0s")
	_, err = LoadFetcherOptions()
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
