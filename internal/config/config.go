package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is read when no config file is given and GEO_MAPPER_CONFIG is unset.
const DefaultPath = "geo-mapper.yaml"

// Config holds all configuration for geo-mapper. Values come from an
// optional YAML file; environment variables override the file.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Mapping  MappingConfig  `yaml:"mapping"`
	Geodata  GeodataConfig  `yaml:"geodata"`
	Export   ExportConfig   `yaml:"export"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
}

type LogConfig struct {
	Mode  string `yaml:"mode" env:"GEO_MAPPER_LOG_MODE" env-default:"development"`
	Debug bool   `yaml:"debug" env:"GEO_MAPPER_DEBUG" env-default:"false"`
}

// MappingConfig controls the resolver.
type MappingConfig struct {
	// Mappers is the strategy order; empty selects strategies automatically.
	Mappers     []string `yaml:"mappers" env:"GEO_MAPPER_MAPPERS" env-separator:","`
	Parallelism int      `yaml:"parallelism" env:"GEO_MAPPER_PARALLELISM" env-default:"1"`
	MaxTokens   int      `yaml:"max_tokens" env:"GEO_MAPPER_MAX_TOKENS" env-default:"6"`
}

// GeodataConfig selects the reference catalogue.
type GeodataConfig struct {
	Root string `yaml:"root" env:"GEO_MAPPER_GEODATA_ROOT" env-default:"geodata_clean/csv"`
	// Level is "LAU", "NUTS", "NUTS <n>" or empty for everything.
	Level string `yaml:"level" env:"GEO_MAPPER_GEODATA_LEVEL"`
	Year  string `yaml:"year" env:"GEO_MAPPER_GEODATA_YEAR"`
}

type ExportConfig struct {
	ResultsRoot string `yaml:"results_root" env:"GEO_MAPPER_RESULTS_ROOT" env-default:"results"`
	Format      string `yaml:"format" env:"GEO_MAPPER_EXPORT_FORMAT" env-default:"csv"`
	AutoSource  bool   `yaml:"auto_source" env:"GEO_MAPPER_AUTO_EXPORT_SOURCE" env-default:"true"`
}

// DatabaseConfig holds PostgreSQL settings for the optional audit store.
type DatabaseConfig struct {
	Enabled        bool   `yaml:"enabled" env:"GEO_MAPPER_DB_ENABLED" env-default:"false"`
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"geo"`
	Password       string `yaml:"-" env:"PGPASSWORD"`
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"geo_mapper"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int    `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"WEB_HOST" env-default:"0.0.0.0"`
	Port            int           `yaml:"port" env:"WEB_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"WEB_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WEB_WRITE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"WEB_SHUTDOWN_TIMEOUT" env-default:"30s"`
	// APIKey protects /api routes except health when set.
	APIKey string `yaml:"-" env:"WEB_API_KEY"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatBoth = "both"
)

// Load reads path (or GEO_MAPPER_CONFIG, or DefaultPath) with environment
// overrides. A missing file is not an error; env and defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetEnv("GEO_MAPPER_CONFIG", DefaultPath)
	}

	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Export.Format = strings.ToLower(strings.TrimSpace(c.Export.Format))
	switch c.Export.Format {
	case FormatCSV, FormatXLSX, FormatBoth:
	default:
		return fmt.Errorf("export format %q: want csv, xlsx or both", c.Export.Format)
	}
	if c.Mapping.Parallelism < 1 {
		c.Mapping.Parallelism = 1
	}
	if c.Mapping.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.Mapping.MaxTokens)
	}
	var mappers []string
	for _, m := range c.Mapping.Mappers {
		if m = strings.TrimSpace(m); m != "" {
			mappers = append(mappers, m)
		}
	}
	c.Mapping.Mappers = mappers
	if _, _, err := ParseLevel(c.Geodata.Level); err != nil {
		return err
	}
	return nil
}

// Usage returns the environment variable help text.
func Usage() string {
	text, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return text
}
