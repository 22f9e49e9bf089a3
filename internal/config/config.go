// Package config loads previa settings from defaults, an optional YAML
// file and PREVIA_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/roach88/previa/internal/logger"
)

// EnvPrefix prefixes every environment variable, e.g. PREVIA_DB_PATH.
const EnvPrefix = "PREVIA"

// Config is the resolved configuration.
type Config struct {
	// DBPath is the SQLite file holding the snapshot. Empty runs in
	// memory only.
	DBPath          string
	StorageKey      string
	Locale          string
	DefaultVAT      float64
	DocumentTimeout time.Duration
	// SeriesMonths is the length of the ledger chart series.
	SeriesMonths int

	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func setDefaults(v *viper.Viper) {
	def := logger.DefaultConfig()
	v.SetDefault("db_path", "previa.db")
	v.SetDefault("storage_key", "previa_works_state_v2")
	v.SetDefault("locale", "it")
	v.SetDefault("default_vat", 22.0)
	v.SetDefault("document_timeout", "15s")
	v.SetDefault("series_months", 6)
	v.SetDefault("log.level", def.Level)
	v.SetDefault("log.format", def.Format)
	v.SetDefault("log.time_format", def.TimeFormat)
	v.SetDefault("log.output", def.Output)
}

// Load resolves the configuration. file may be empty; a named file that
// does not exist is an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	c := &Config{
		DBPath:          v.GetString("db_path"),
		StorageKey:      v.GetString("storage_key"),
		Locale:          v.GetString("locale"),
		DefaultVAT:      v.GetFloat64("default_vat"),
		DocumentTimeout: v.GetDuration("document_timeout"),
		SeriesMonths:    v.GetInt("series_months"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
		LogTimeFormat:   v.GetString("log.time_format"),
		LogOutput:       v.GetString("log.output"),
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.StorageKey) == "" {
		return errors.New("storage_key is required")
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("locale %q: %w", c.Locale, err)
	}
	if c.DefaultVAT < 0 || c.DefaultVAT > 100 {
		return fmt.Errorf("default_vat must be between 0 and 100, got %v", c.DefaultVAT)
	}
	if c.DocumentTimeout <= 0 {
		return fmt.Errorf("document_timeout must be positive, got %s", c.DocumentTimeout)
	}
	if c.SeriesMonths < 1 || c.SeriesMonths > 120 {
		return fmt.Errorf("series_months must be between 1 and 120, got %d", c.SeriesMonths)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// Language returns the parsed locale. Load has already validated it.
func (c *Config) Language() language.Tag {
	return language.Make(c.Locale)
}

// LoggerConfig returns the logger configuration.
func (c *Config) LoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}
