package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ilyakaznacheev/cleanenv"

	"goinsight/domain/dataset"
	"goinsight/internal/analysis"
	"goinsight/internal/errors"
	"goinsight/internal/quality"
)

// Config represents the complete application configuration.
// Values come from an optional YAML file; environment variables override them.
type Config struct {
	Server   ServerConfig       `yaml:"server"`
	Log      LogConfig          `yaml:"log"`
	Parser   ParserConfig       `yaml:"parser"`
	Quality  quality.Thresholds `yaml:"quality"`
	Store    StoreConfig        `yaml:"store"`
	Analysis analysis.Options   `yaml:"analysis"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port               string        `yaml:"port" env:"PORT"`
	GinMode            string        `yaml:"gin_mode" env:"GIN_MODE"`
	UploadDir          string        `yaml:"upload_dir" env:"UPLOAD_DIR"`
	MaxUploadMB        int64         `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB"`
	AllowLocalPaths    bool          `yaml:"allow_local_paths" env:"ALLOW_LOCAL_PATHS"`
	MaxConcurrentScans int64         `yaml:"max_concurrent_scans" env:"MAX_CONCURRENT_SCANS"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig selects the logger level and encoding
type LogConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT"`
}

// ParserConfig holds the default file parsing options
type ParserConfig struct {
	Delimiter  string `yaml:"delimiter" env:"PARSER_DELIMITER"`
	HasHeaders bool   `yaml:"has_headers" env:"PARSER_HAS_HEADERS"`
}

// StoreConfig selects the dataset store backend
type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER"`
	DSN    string `yaml:"dsn" env:"STORE_DSN"`
}

// Store drivers
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite3"
	StorePostgres = "postgres"
)

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               "8080",
			GinMode:            "release",
			UploadDir:          filepath.Join(os.TempDir(), "goinsight-uploads"),
			MaxUploadMB:        50,
			MaxConcurrentScans: 4,
			ShutdownTimeout:    10 * time.Second,
		},
		Log:      LogConfig{Level: "info"},
		Parser:   ParserConfig{Delimiter: ",", HasHeaders: true},
		Quality:  quality.DefaultThresholds(),
		Store:    StoreConfig{Driver: StoreMemory},
		Analysis: analysis.DefaultOptions(),
	}
}

// Load reads path (when non-empty) on top of the defaults, applies
// environment overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeConfigInvalid, "config file %s", path)
		}
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeConfigInvalid, "failed to read %s", path)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeConfigInvalid, "failed to read environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseOptions converts the parser section into dataset.ParseOptions
func (c *Config) ParseOptions() dataset.ParseOptions {
	opts := dataset.DefaultParseOptions()
	opts.HasHeaders = c.Parser.HasHeaders
	if r, ok := delimiterRune(c.Parser.Delimiter); ok {
		opts.Delimiter = r
	}
	return opts
}

// delimiterRune accepts a single character or the names tab and \t
func delimiterRune(s string) (rune, bool) {
	switch strings.ToLower(s) {
	case "tab", `\t`:
		return '\t', true
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, true
}

// Validate checks every section and reports the first problem
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.ConfigInvalid("server.port is required")
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return errors.Newf(errors.CodeConfigInvalid, "server.gin_mode %q must be debug, release or test", c.Server.GinMode)
	}
	if c.Server.MaxUploadMB <= 0 || c.Server.MaxConcurrentScans <= 0 {
		return errors.ConfigInvalid("server.max_upload_mb and server.max_concurrent_scans must be positive")
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.ConfigInvalid("server.shutdown_timeout must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return errors.Newf(errors.CodeConfigInvalid, "log.level %q is not a known level", c.Log.Level)
	}

	if _, ok := delimiterRune(c.Parser.Delimiter); !ok {
		return errors.Newf(errors.CodeConfigInvalid, "parser.delimiter %q must be a single character", c.Parser.Delimiter)
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.Store.DSN == "" {
			return errors.Newf(errors.CodeConfigInvalid, "store.dsn is required for driver %s", c.Store.Driver)
		}
	default:
		return errors.Newf(errors.CodeConfigInvalid, "store.driver %q must be memory, sqlite3 or postgres", c.Store.Driver)
	}

	q := c.Quality
	if q.CriticalRowCount < 0 || q.MinRowCount < q.CriticalRowCount {
		return errors.ConfigInvalid("quality row counts must satisfy 0 <= critical_row_count <= min_row_count")
	}
	for name, ratio := range map[string]float64{
		"low_coverage_ratio":  q.LowCoverageRatio,
		"sparse_latest_ratio": q.SparseLatestRatio,
		"null_ratio":          q.NullRatio,
		"outlier_ratio":       q.OutlierRatio,
	} {
		if ratio <= 0 || ratio > 1 {
			return errors.Newf(errors.CodeConfigInvalid, "quality.%s must be in (0, 1], got %v", name, ratio)
		}
	}
	if q.IQRMultiplier <= 0 {
		return errors.ConfigInvalid("quality.iqr_multiplier must be positive")
	}

	if c.Analysis.HistogramBins < 0 || c.Analysis.MaxCategoryCardinality < 0 {
		return errors.ConfigInvalid("analysis settings must not be negative")
	}
	return nil
}
