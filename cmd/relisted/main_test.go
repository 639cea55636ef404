package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/config"
	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/service"
	"github.com/Veraticus/relisted/internal/storage"
)

const testListings = `[
  {
    "id": "A",
    "vin": "1HGBH41JXMN109186",
    "title": "2019 Honda Civic LX Sedan",
    "make": "Honda",
    "model": "Civic",
    "year": 2019,
    "price": 18500,
    "mileage": 62000,
    "latitude": 43.6532,
    "longitude": -79.3832,
    "city": "Toronto",
    "province": "ON"
  },
  {
    "id": "B",
    "vin": "1HGBH41JXMN109186",
    "title": "2019 Honda Civic LX Sedan",
    "make": "Honda",
    "model": "Civic",
    "year": 2019,
    "price": 18500,
    "mileage": 62000,
    "latitude": 43.6532,
    "longitude": -79.3832,
    "city": "Toronto",
    "province": "ON"
  },
  {
    "id": "C",
    "title": "2012 Ford F-150 XLT",
    "make": "Ford",
    "model": "F-150",
    "year": 2012,
    "price": 9000,
    "mileage": 210000
  }
]`

// useTempDatabase points the CLI at a fresh database for the test's duration.
func useTempDatabase(t *testing.T, tenant string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "relisted.db")
	viper.Set(config.KeyDatabasePath, dbPath)
	viper.Set(config.KeyTenant, tenant)
	t.Cleanup(viper.Reset)
	return dbPath
}

func openStorage(t *testing.T, dbPath string) service.Storage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInitConfig_NestedEnvironmentKeys(t *testing.T) {
	t.Cleanup(viper.Reset)
	defaultLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(defaultLogger) })

	dir := t.TempDir()
	cfgFile = filepath.Join(dir, "config.yaml")
	t.Cleanup(func() { cfgFile = "" })
	require.NoError(t, os.WriteFile(cfgFile, []byte("images:\n  max_per_listing: 3\n"), 0o600))

	t.Setenv("RELISTED_IMAGES_MAX_PER_LISTING", "7")
	t.Setenv("RELISTED_DATABASE_PATH", filepath.Join(dir, "env.db"))
	t.Setenv("RELISTED_LOGGING_LEVEL", "warn")

	require.NoError(t, initConfig(nil, nil))
	assert.Equal(t, 7, viper.GetInt(config.KeyImagesMaxPerListing))
	assert.Equal(t, filepath.Join(dir, "env.db"), config.DatabasePath())
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
}

func TestRunScan(t *testing.T) {
	dbPath := useTempDatabase(t, "tenant-scan")
	input := filepath.Join(t.TempDir(), "listings.json")
	require.NoError(t, os.WriteFile(input, []byte(testListings), 0o600))

	cmd := scanCmd()
	cmd.SetContext(context.Background())
	require.NoError(t, cmd.Flags().Set("no-progress", "true"))
	require.NoError(t, runScan(cmd, []string{input}))

	ctx := context.Background()
	store := openStorage(t, dbPath)

	match, err := store.FindDuplicateMatch(ctx, "tenant-scan", "B", "A")
	require.NoError(t, err)
	assert.Equal(t, "B", match.SourceListingID)
	assert.Equal(t, model.ConfidenceHigh, match.Confidence)

	_, err = store.FindDuplicateMatch(ctx, "tenant-scan", "A", "C")
	assert.ErrorIs(t, err, common.ErrNotFound)

	entries, err := store.ListAuditEntries(ctx, service.AuditFilter{TenantID: "tenant-scan"})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	decisions := make(map[string]model.AuditDecision, len(entries))
	for _, e := range entries {
		decisions[e.Listing1ID] = e.Decision
	}
	assert.Equal(t, model.DecisionNewListing, decisions["A"])
	assert.Equal(t, model.DecisionDuplicate, decisions["B"])
	assert.Equal(t, model.DecisionNewListing, decisions["C"])

	active, err := store.GetActiveConfig(ctx, "tenant-scan")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultProfileName, active.Name)
}

func TestRunScan_InvalidFile(t *testing.T) {
	useTempDatabase(t, "tenant-scan")
	input := filepath.Join(t.TempDir(), "listings.json")
	require.NoError(t, os.WriteFile(input, []byte(`[{"title": "no id"}]`), 0o600))

	cmd := scanCmd()
	cmd.SetContext(context.Background())
	err := runScan(cmd, []string{input})

	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, err.Error(), "no id")
}

func TestReadListings(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		errContains string
		wantIDs     []string
	}{
		{
			name:    "valid listings",
			input:   testListings,
			wantIDs: []string{"A", "B", "C"},
		},
		{
			name:    "empty array",
			input:   `[]`,
			wantIDs: []string{},
		},
		{
			name:        "missing id",
			input:       `[{"id": " "}]`,
			errContains: "listing 1 has no id",
		},
		{
			name:        "repeated id",
			input:       `[{"id": "A"}, {"id": "A"}]`,
			errContains: `listing 2 repeats id "A"`,
		},
		{
			name:        "not an array",
			input:       `{"id": "A"}`,
			errContains: "failed to decode listings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listings, err := readListings(strings.NewReader(tt.input))
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			ids := make([]string, 0, len(listings))
			for _, l := range listings {
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestReadListings_OptionalFields(t *testing.T) {
	listings, err := readListings(strings.NewReader(testListings))
	require.NoError(t, err)

	a := listings[0]
	require.NotNil(t, a.Price)
	assert.InDelta(t, 18500, *a.Price, 1e-9)
	assert.True(t, a.HasCoordinates())
	assert.True(t, a.HasAttributes())

	c := listings[2]
	assert.Empty(t, c.VIN)
	assert.False(t, c.HasCoordinates())
}

func TestApplySetting(t *testing.T) {
	tests := []struct {
		name       string
		assignment string
		check      func(t *testing.T, cfg model.DeduplicationConfig)
		wantErr    bool
	}{
		{
			name:       "float field",
			assignment: "overall_match_threshold=0.9",
			check: func(t *testing.T, cfg model.DeduplicationConfig) {
				assert.InDelta(t, 0.9, cfg.OverallMatchThreshold, 1e-9)
			},
		},
		{
			name:       "int field with spaces",
			assignment: " year_tolerance = 2 ",
			check: func(t *testing.T, cfg model.DeduplicationConfig) {
				assert.Equal(t, 2, cfg.YearTolerance)
			},
		},
		{
			name:       "name",
			assignment: "name=strict",
			check: func(t *testing.T, cfg model.DeduplicationConfig) {
				assert.Equal(t, "strict", cfg.Name)
			},
		},
		{name: "unknown key", assignment: "colour=red", wantErr: true},
		{name: "missing value separator", assignment: "price_tolerance", wantErr: true},
		{name: "non numeric", assignment: "price_tolerance=lots", wantErr: true},
		{name: "float for int", assignment: "ngram_size=2.5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := model.DefaultDeduplicationConfig("t")
			err := applySetting(&cfg, tt.assignment)
			if tt.wantErr {
				var userErr *common.UserError
				assert.ErrorAs(t, err, &userErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestParseVerdict(t *testing.T) {
	status, err := parseVerdict("Duplicate")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewConfirmedDuplicate, status)

	status, err = parseVerdict("not-duplicate")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewConfirmedNotDuplicate, status)

	_, err = parseVerdict("maybe")
	assert.Error(t, err)
}

func TestParseDecision(t *testing.T) {
	d, err := parseDecision("near")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionNearMatch, d)

	_, err = parseDecision("unsure")
	assert.Error(t, err)
}

func TestAuditFilter(t *testing.T) {
	newCmd := func(t *testing.T, from, to string) *cobra.Command {
		t.Helper()
		cmd := &cobra.Command{}
		cmd.Flags().String("from", "", "")
		cmd.Flags().String("to", "", "")
		cmd.Flags().Int("days", 0, "")
		require.NoError(t, cmd.Flags().Set("from", from))
		require.NoError(t, cmd.Flags().Set("to", to))
		return cmd
	}
	t.Cleanup(viper.Reset)
	viper.Set(config.KeyTenant, "tenant-f")

	filter, err := auditFilter(newCmd(t, "2024-03-01", "2024-04-01"))
	require.NoError(t, err)
	assert.Equal(t, "tenant-f", filter.TenantID)
	require.NotNil(t, filter.From)
	require.NotNil(t, filter.To)
	assert.Equal(t, "2024-03-01T00:00:00Z", filter.From.Format("2006-01-02T15:04:05Z07:00"))
	assert.Nil(t, filter.Automatic)

	_, err = auditFilter(newCmd(t, "2024-04-01", "2024-04-01"))
	assert.Error(t, err)

	_, err = auditFilter(newCmd(t, "March", ""))
	assert.Error(t, err)
}
