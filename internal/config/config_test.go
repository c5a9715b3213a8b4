package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 500*time.Millisecond, cfg.Data.FetchDelay)
	assert.Equal(t, 0.9, cfg.Data.JitterMin)
	assert.Equal(t, 1.1, cfg.Data.JitterMax)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SALESDASH_SERVER_PORT", "9090")
	t.Setenv("SALESDASH_DATA_DEFAULT_YEAR", "2022")
	t.Setenv("SALESDASH_DATA_FETCH_DELAY", "0s")
	t.Setenv("SALESDASH_LOGGING_LEVEL", "debug")
	t.Setenv("SALESDASH_SERVER_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2022, cfg.Data.DefaultYear)
	assert.Zero(t, cfg.Data.FetchDelay)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoadDotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SALESDASH_SERVER_PORT=7070\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SALESDASH_SERVER_PORT") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"SALESDASH_LOGGING_LEVEL":     "verbose",
		"SALESDASH_SERVER_PORT":       "70000",
		"SALESDASH_DATA_JITTER_MAX":   "0.5",
		"SALESDASH_TRACING_EXPORTER":  "zipkin",
		"SALESDASH_DATA_CATALOG_FILE": "/does/not/exist.yaml",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestInitialYear(t *testing.T) {
	supported := []int{2022, 2023, 2024}
	jun := func(y int) time.Time { return time.Date(y, time.June, 1, 0, 0, 0, 0, time.UTC) }

	cases := []struct {
		name string
		cfg  DataConfig
		now  int
		want int
	}{
		{"configured", DataConfig{DefaultYear: 2022}, 2024, 2022},
		{"calendar year", DataConfig{}, 2023, 2023},
		{"latest supported", DataConfig{}, 2026, 2024},
	}
	for _, tc := range cases {
		got, err := tc.cfg.InitialYear(jun(tc.now), supported)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}

	_, err := DataConfig{DefaultYear: 2030}.InitialYear(jun(2024), supported)
	assert.ErrorContains(t, err, "SALESDASH_DATA_DEFAULT_YEAR=2030")

	_, err = DataConfig{}.InitialYear(jun(2026), nil)
	assert.Error(t, err)
}
