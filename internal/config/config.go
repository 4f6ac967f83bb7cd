package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for assets-sync.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Provider Provider `yaml:"provider"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Polygon  Polygon  `yaml:"polygon"`
	Logging  Logging  `yaml:"logging"`
	Universe Universe `yaml:"universe"`
	Sync     Sync     `yaml:"sync"`
	Export   Export   `yaml:"export"`
}

// Storage selects and locates the bar database.
type Storage struct {
	Driver      string `yaml:"driver"` // sqlite | postgres
	DataDir     string `yaml:"data_dir"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url"`
	Timescale   bool   `yaml:"timescale"`
}

// Provider selects the market-data vendor and paces its calls.
type Provider struct {
	Name            string `yaml:"name"` // alpaca | polygon
	Feed            string `yaml:"feed"`
	Adjustment      string `yaml:"adjustment"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	BatchSize       int    `yaml:"batch_size"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Polygon holds credentials for the Polygon REST API.
type Polygon struct {
	APIKey   string `yaml:"api_key"`
	Adjusted bool   `yaml:"adjusted"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Universe locates the ticker sources.
type Universe struct {
	InclusionFile string        `yaml:"inclusion_file"`
	ExclusionFile string        `yaml:"exclusion_file"`
	PicksFile     string        `yaml:"picks_file"`
	CacheDir      string        `yaml:"cache_dir"`
	IndexMaxAge   string        `yaml:"index_max_age"` // Go duration; empty never expires
	Indexes       []IndexSource `yaml:"indexes"`
}

// IndexSource overrides one index constituents page.
type IndexSource struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	Column    string `yaml:"column"`
	CacheFile string `yaml:"cache_file"`
}

// Sync controls the run itself.
type Sync struct {
	StartDate      string   `yaml:"start_date"`
	Calendar       string   `yaml:"calendar"` // alpaca | weekday
	Holidays       []string `yaml:"holidays"` // used by the weekday calendar
	StateDir       string   `yaml:"state_dir"`
	StaleLockAfter string   `yaml:"stale_lock_after"`
}

// Export locates the S3-compatible bucket that receives close-matrix
// exports. It is optional.
type Export struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Secure          bool   `yaml:"secure"`
}

// Enabled reports whether an export destination is configured.
func (e Export) Enabled() bool { return e.Endpoint != "" && e.Bucket != "" }

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and defaults, and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.PostgresURL = v
		if cfg.Storage.Driver == "" {
			cfg.Storage.Driver = "postgres"
		}
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		cfg.Polygon.APIKey = v
	}

	if v := os.Getenv("EXPORT_S3_ACCESS_KEY_ID"); v != "" {
		cfg.Export.AccessKeyID = v
	}
	if v := os.Getenv("EXPORT_S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.Export.SecretAccessKey = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars take precedence: they are the names the SDK reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// applyDefaults fills every unset field. Derived paths live under DataDir.
func applyDefaults(cfg *Config) {
	s := &cfg.Storage
	setDefault(&s.Driver, "sqlite")
	setDefault(&s.DataDir, "data")
	setDefault(&s.SQLitePath, filepath.Join(s.DataDir, "assets.db"))

	p := &cfg.Provider
	setDefault(&p.Name, "alpaca")
	setDefault(&p.Feed, "sip")
	setDefault(&p.Adjustment, "raw")
	if p.RateLimitPerMin == 0 {
		p.RateLimitPerMin = 200
	}
	setDefault(&cfg.Alpaca.BaseURL, "https://api.alpaca.markets")

	setDefault(&cfg.Logging.Level, "info")
	setDefault(&cfg.Logging.Format, "text")

	u := &cfg.Universe
	setDefault(&u.InclusionFile, "inclusion_list.txt")
	setDefault(&u.ExclusionFile, "exclusion_list.txt")
	setDefault(&u.PicksFile, "mypicks.csv")
	setDefault(&u.CacheDir, filepath.Join(s.DataDir, "index"))

	y := &cfg.Sync
	setDefault(&y.StartDate, "2015-01-01")
	setDefault(&y.Calendar, "alpaca")
	setDefault(&y.StateDir, s.DataDir)
	setDefault(&y.StaleLockAfter, "12h")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// ---------------------------------------------------------------------------
// Validation and derived values
// ---------------------------------------------------------------------------

// Validate reports every structural problem in cfg.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("storage.postgres_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q: want sqlite or postgres", c.Storage.Driver))
	}

	switch c.Provider.Name {
	case "alpaca", "polygon":
	default:
		errs = append(errs, fmt.Errorf("provider.name %q: want alpaca or polygon", c.Provider.Name))
	}
	if c.Provider.RateLimitPerMin < 0 {
		errs = append(errs, errors.New("provider.rate_limit_per_min must not be negative"))
	}
	if c.Provider.BatchSize < 0 {
		errs = append(errs, errors.New("provider.batch_size must not be negative"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want json or text", c.Logging.Format))
	}

	if _, err := c.Sync.Epoch(); err != nil {
		errs = append(errs, fmt.Errorf("sync.start_date: %w", err))
	}
	if _, err := c.Sync.HolidayDates(); err != nil {
		errs = append(errs, fmt.Errorf("sync.holidays: %w", err))
	}
	switch c.Sync.Calendar {
	case "alpaca", "weekday":
	default:
		errs = append(errs, fmt.Errorf("sync.calendar %q: want alpaca or weekday", c.Sync.Calendar))
	}
	if _, err := parseDuration(c.Sync.StaleLockAfter); err != nil {
		errs = append(errs, fmt.Errorf("sync.stale_lock_after: %w", err))
	}
	if _, err := parseDuration(c.Universe.IndexMaxAge); err != nil {
		errs = append(errs, fmt.Errorf("universe.index_max_age: %w", err))
	}
	for i, idx := range c.Universe.Indexes {
		if idx.Name == "" || idx.URL == "" || idx.Column == "" {
			errs = append(errs, fmt.Errorf("universe.indexes[%d]: name, url and column are required", i))
		}
	}

	return errors.Join(errs...)
}

// Epoch returns the parsed start date.
func (s Sync) Epoch() (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s.StartDate, time.UTC)
}

// HolidayDates returns the parsed holiday list.
func (s Sync) HolidayDates() ([]time.Time, error) {
	out := make([]time.Time, 0, len(s.Holidays))
	for _, h := range s.Holidays {
		d, err := time.ParseInLocation("2006-01-02", h, time.UTC)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// LockStaleAfter returns the parsed stale-lock threshold.
func (s Sync) LockStaleAfter() time.Duration {
	d, _ := parseDuration(s.StaleLockAfter)
	return d
}

// MaxAge returns the parsed index cache lifetime; zero never expires.
func (u Universe) MaxAge() time.Duration {
	d, _ := parseDuration(u.IndexMaxAge)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
