package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable, e.g. SALESDASH_SERVER_PORT.
const EnvPrefix = "SALESDASH"

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `envconfig:"SERVER"`
	Logging LoggingConfig `envconfig:"LOGGING"`
	Data    DataConfig    `envconfig:"DATA"`
	Tracing TracingConfig `envconfig:"TRACING"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration   `envconfig:"WRITE_TIMEOUT" default:"15s" validate:"gt=0"`
	ShutdownTimeout time.Duration   `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
	AllowedOrigins  []string        `envconfig:"ALLOWED_ORIGINS" default:"*" validate:"min=1,dive,required"`
	RateLimit       RateLimitConfig `envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `envconfig:"ENABLED" default:"true"`
	RPS     float64 `envconfig:"RPS" default:"20" validate:"gt=0"`
	Burst   int     `envconfig:"BURST" default:"40" validate:"min=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format     string `envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	FilePath   string `envconfig:"FILE_PATH"`
	MaxSizeMB  int    `envconfig:"MAX_SIZE_MB" default:"50" validate:"min=1"`
	MaxBackups int    `envconfig:"MAX_BACKUPS" default:"3" validate:"min=0"`
	MaxAgeDays int    `envconfig:"MAX_AGE_DAYS" default:"14" validate:"min=0"`
}

// DataConfig controls how sales data is fabricated.
type DataConfig struct {
	// DefaultYear is the first year fetched. 0 means the current calendar year.
	DefaultYear   int           `envconfig:"DEFAULT_YEAR" validate:"omitempty,min=1900,max=9999"`
	FetchDelay    time.Duration `envconfig:"FETCH_DELAY" default:"500ms" validate:"min=0"`
	JitterMin     float64       `envconfig:"JITTER_MIN" default:"0.9" validate:"gte=0"`
	JitterMax     float64       `envconfig:"JITTER_MAX" default:"1.1" validate:"gtefield=JitterMin"`
	Seed          uint64        `envconfig:"SEED"`
	CatalogFile   string        `envconfig:"CATALOG_FILE"`
	BaseTableFile string        `envconfig:"BASE_TABLE_FILE"`
}

// TracingConfig contains OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled     bool    `envconfig:"ENABLED" default:"false"`
	Exporter    string  `envconfig:"EXPORTER" default:"stdout" validate:"oneof=stdout none"`
	SampleRatio float64 `envconfig:"SAMPLE_RATIO" default:"1" validate:"gte=0,lte=1"`
	Environment string  `envconfig:"ENVIRONMENT" default:"development"`
}

// Load reads an optional .env file, then the environment, then validates.
// Variables already set in the environment win over the .env file.
func Load(dotenvPaths ...string) (*Config, error) {
	if len(dotenvPaths) == 0 {
		dotenvPaths = []string{".env"}
	}
	for _, p := range dotenvPaths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field tag and the files the data section points at.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for _, p := range []string{c.Data.CatalogFile, c.Data.BaseTableFile} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("data file: %w", err)
		}
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string { return fmt.Sprintf(":%d", s.Port) }

// InitialYear resolves the first year to fetch against the supported years.
// An unset DefaultYear falls back to now's year if supported, else the latest.
// A DefaultYear outside supported is a configuration error.
func (d DataConfig) InitialYear(now time.Time, supported []int) (int, error) {
	if d.DefaultYear != 0 {
		if !slices.Contains(supported, d.DefaultYear) {
			return 0, fmt.Errorf("default year: SALESDASH_DATA_DEFAULT_YEAR=%d is not one of %v", d.DefaultYear, supported)
		}
		return d.DefaultYear, nil
	}
	year := now.Year()
	if slices.Contains(supported, year) {
		return year, nil
	}
	if len(supported) > 0 {
		return supported[len(supported)-1], nil
	}
	return 0, errors.New("default year: catalog has no supported years")
}
