package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"DATA_DIR", "SQLITE_PATH", "DATABASE_URL",
	"ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_BASE_URL", "ALPACA_DATA_URL",
	"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	"POLYGON_API_KEY", "LOG_LEVEL",
	"EXPORT_S3_ACCESS_KEY_ID", "EXPORT_S3_SECRET_ACCESS_KEY",
}

// clearEnv unsets every override for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assets.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  driver: "sqlite"
  data_dir: "/tmp/assets/data"
  sqlite_path: "/tmp/assets/assets.db"
provider:
  name: "polygon"
  rate_limit_per_min: 5
  batch_size: 100
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
polygon:
  api_key: "poly-key"
  adjusted: true
logging:
  level: "debug"
  format: "json"
universe:
  inclusion_file: "lists/in.txt"
  index_max_age: "168h"
  indexes:
    - name: "sp500"
      url: "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"
      column: "Symbol"
      cache_file: "sp500.parquet"
sync:
  start_date: "2020-01-02"
  calendar: "weekday"
  holidays: ["2024-07-04"]
export:
  endpoint: "minio.local:9000"
  bucket: "exports"
  prefix: "assets"
`)
	t.Setenv("EXPORT_S3_SECRET_ACCESS_KEY", "s3-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.SQLitePath != "/tmp/assets/assets.db" {
		t.Errorf("Storage.SQLitePath = %q", cfg.Storage.SQLitePath)
	}

	// -- Provider --
	if cfg.Provider.Name != "polygon" || cfg.Provider.RateLimitPerMin != 5 || cfg.Provider.BatchSize != 100 {
		t.Errorf("Provider = %+v", cfg.Provider)
	}
	if cfg.Provider.Feed != "sip" {
		t.Errorf("Provider.Feed = %q, want default sip", cfg.Provider.Feed)
	}
	if cfg.Polygon.APIKey != "poly-key" || !cfg.Polygon.Adjusted {
		t.Errorf("Polygon = %+v", cfg.Polygon)
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}

	// -- Universe --
	if cfg.Universe.InclusionFile != "lists/in.txt" {
		t.Errorf("Universe.InclusionFile = %q", cfg.Universe.InclusionFile)
	}
	if cfg.Universe.CacheDir != filepath.Join("/tmp/assets/data", "index") {
		t.Errorf("Universe.CacheDir = %q", cfg.Universe.CacheDir)
	}
	if cfg.Universe.MaxAge() != 7*24*time.Hour {
		t.Errorf("Universe.MaxAge() = %v", cfg.Universe.MaxAge())
	}
	if len(cfg.Universe.Indexes) != 1 || cfg.Universe.Indexes[0].Column != "Symbol" {
		t.Errorf("Universe.Indexes = %+v", cfg.Universe.Indexes)
	}

	// -- Sync --
	epoch, err := cfg.Sync.Epoch()
	if err != nil || !epoch.Equal(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Sync.Epoch() = %v, %v", epoch, err)
	}
	holidays, err := cfg.Sync.HolidayDates()
	if err != nil || len(holidays) != 1 {
		t.Errorf("Sync.HolidayDates() = %v, %v", holidays, err)
	}
	if cfg.Sync.StateDir != "/tmp/assets/data" {
		t.Errorf("Sync.StateDir = %q", cfg.Sync.StateDir)
	}

	// -- Export --
	if !cfg.Export.Enabled() || cfg.Export.Prefix != "assets" || cfg.Export.SecretAccessKey != "s3-secret" {
		t.Errorf("Export = %+v", cfg.Export)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}

	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Storage.SQLitePath != filepath.Join("data", "assets.db") {
		t.Errorf("Storage.SQLitePath = %q", cfg.Storage.SQLitePath)
	}
	if cfg.Provider.Name != "alpaca" || cfg.Provider.RateLimitPerMin != 200 {
		t.Errorf("Provider = %+v", cfg.Provider)
	}
	if cfg.Sync.StartDate != "2015-01-01" || cfg.Sync.Calendar != "alpaca" {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.Sync.LockStaleAfter() != 12*time.Hour {
		t.Errorf("Sync.LockStaleAfter() = %v", cfg.Sync.LockStaleAfter())
	}
	if cfg.Universe.MaxAge() != 0 {
		t.Errorf("Universe.MaxAge() = %v, want 0", cfg.Universe.MaxAge())
	}
	if cfg.Universe.PicksFile != "mypicks.csv" {
		t.Errorf("Universe.PicksFile = %q", cfg.Universe.PicksFile)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("POLYGON_API_KEY", "env-poly")
	t.Setenv("DATABASE_URL", "postgres://localhost/assets")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Polygon.APIKey != "env-poly" {
		t.Errorf("Polygon.APIKey = %q", cfg.Polygon.APIKey)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.PostgresURL != "postgres://localhost/assets" {
		t.Errorf("Storage = %+v, want postgres from DATABASE_URL", cfg.Storage)
	}

	// SDK names win over the ALPACA_* names.
	t.Setenv("APCA_API_KEY_ID", "sdk-key")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "sdk-key" {
		t.Errorf("Alpaca.APIKey = %q, want sdk-key", cfg.Alpaca.APIKey)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  driver: "mysql"
provider:
  name: "yahoo"
logging:
  format: "xml"
sync:
  start_date: "01/02/2015"
  calendar: "lunar"
  stale_lock_after: "-1h"
universe:
  indexes:
    - name: "partial"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() accepted an invalid config")
	}
	for _, want := range []string{
		"storage.driver", "provider.name", "logging.format",
		"sync.start_date", "sync.calendar", "sync.stale_lock_after", "universe.indexes[0]",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "storage:\n  driver: postgres\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "postgres_url") {
		t.Errorf("Load() err = %v, want postgres_url error", err)
	}
}
