package app

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazard-reporter/internal/common/config"
	"hazard-reporter/internal/common/logger"
	"hazard-reporter/internal/location"
	"hazard-reporter/internal/models"
)

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	return &config.Config{
		App:     config.AppConfig{Name: "hazard-reporter-test"},
		Session: config.SessionConfig{StorageKey: "userAppSession", TTL: 3600000, AuthSettleTimeout: 100},
		Storage: config.StorageConfig{Driver: driver, SQLitePath: filepath.Join(t.TempDir(), "storage.db")},
		Database: config.DatabaseConfig{
			Documents: "memory",
		},
		Location: config.LocationConfig{
			PermissionTimeout: 1000,
			PositionTimeout:   1000,
			IPTimeout:         100,
			CountryTimeout:    100,
			IPEndpoint:        "http://127.0.0.1:1/json/",
			Default:           config.ViewportConfig{Latitude: -27.4698, Longitude: 153.0251, LatitudeDelta: 0.1, LongitudeDelta: 0.1},
			Device: config.DeviceConfig{
				ServicesEnabled:   true,
				PermissionGranted: true,
				HasPosition:       true,
				Latitude:          -33.8688,
				Longitude:         151.2093,
			},
		},
		Geocoding: config.GeocodingConfig{BaseURL: "http://127.0.0.1:1", Timeout: 100},
		Hazards:   config.HazardsConfig{Index: "hazards", DefaultRadiusKm: 10, MaxResults: 20},
	}
}

func TestNew_MemoryBackends(t *testing.T) {
	var notices []string
	a, err := New(context.Background(), testConfig(t, "memory"), logger.NewTestLogger(t), location.NotifierFunc(func(m string) {
		notices = append(notices, m)
	}))
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.Session.IsAuthenticated())
	assert.Equal(t, models.DefaultSession(), a.Session.Snapshot())

	res := a.Resolver.Resolve(context.Background())
	assert.Equal(t, models.TierDevice, res.Tier)
	assert.InDelta(t, -33.8688, res.Fix.Latitude, 1e-9)
	assert.Empty(t, notices)

	near, err := a.Hazards.Near(context.Background(), res.Fix, 5)
	require.NoError(t, err)
	assert.Empty(t, near)
}

func TestNew_SQLiteSessionSurvivesRestart(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	ctx := context.Background()

	a, err := New(ctx, cfg, logger.NewTestLogger(t), nil)
	require.NoError(t, err)
	fix := a.Session.EnsureLocation(ctx, a.Resolver)
	a.Close()

	b, err := New(ctx, cfg, logger.NewTestLogger(t), nil)
	require.NoError(t, err)
	defer b.Close()

	current, ok := b.Session.Snapshot().CurrentLocation.Get()
	require.True(t, ok)
	assert.Equal(t, fix.Viewport(), current)
}

func TestNew_BadDocumentStore(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Database.Documents = "postgres"
	cfg.Database.Postgres = config.PostgresConfig{Host: "127.0.0.1", Port: 1, Database: "hazards", User: "hazards", Password: "hazards", SSLMode: "disable"}

	_, err := New(context.Background(), cfg, logger.NewTestLogger(t), nil)
	assert.Error(t, err)
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after a failure", func(t *testing.T) {
		attempts := 0
		err := retryWithBackoff(func() error {
			attempts++
			if attempts < 2 {
				return stderrors.New("not yet")
			}
			return nil
		}, logger.NewNoOpLogger(), "test op")
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
	})

	t.Run("gives up", func(t *testing.T) {
		if testing.Short() {
			t.Skip("waits for the full backoff")
		}
		attempts := 0
		cause := stderrors.New("down")
		err := retryWithBackoff(func() error {
			attempts++
			return cause
		}, logger.NewNoOpLogger(), "test op")
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, connectAttempts, attempts)
		assert.Contains(t, err.Error(), "test op failed after 3 attempts")
	})
}
