// Package config loads shopfloor settings from an optional YAML file and
// SHOPFLOOR_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath string `yaml:"db_path"`
	Actor  string `yaml:"actor"`

	Log LogConfig `yaml:"log"`

	// TickInterval is how often a running timer credits spent time.
	TickInterval time.Duration `yaml:"tick_interval"`
	// RemoteTimeout bounds each gateway call made for a mutation.
	RemoteTimeout time.Duration `yaml:"remote_timeout"`

	Push PushConfig `yaml:"push"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// PushConfig selects the push sources. Both are optional.
type PushConfig struct {
	URL           string        `yaml:"url"`
	MaterialsFile string        `yaml:"materials_file"`
	Debounce      time.Duration `yaml:"debounce"`
	// ReconnectMax caps the wait between redials of a dropped push channel.
	ReconnectMax time.Duration `yaml:"reconnect_max"`
}

// DefaultConfig stores data under ~/.shopfloor and logs at info level.
func DefaultConfig() Config {
	dbPath := "shopfloor.db"
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".shopfloor", "shopfloor.db")
	}
	return Config{
		DBPath:        dbPath,
		Actor:         "Operator",
		Log:           LogConfig{Level: "info"},
		TickInterval:  time.Second,
		RemoteTimeout: 10 * time.Second,
		Push:          PushConfig{Debounce: 200 * time.Millisecond, ReconnectMax: 30 * time.Second},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error; an empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SHOPFLOOR_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SHOPFLOOR_ACTOR"); v != "" {
		cfg.Actor = v
	}
	if v := os.Getenv("SHOPFLOOR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SHOPFLOOR_LOG_DEVELOPMENT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Log.Development = b
		}
	}
	applyDurationEnv(&cfg.TickInterval, "SHOPFLOOR_TICK_INTERVAL")
	applyDurationEnv(&cfg.RemoteTimeout, "SHOPFLOOR_REMOTE_TIMEOUT")
	if v := os.Getenv("SHOPFLOOR_PUSH_URL"); v != "" {
		cfg.Push.URL = v
	}
	if v := os.Getenv("SHOPFLOOR_MATERIALS_FILE"); v != "" {
		cfg.Push.MaterialsFile = v
	}
	applyDurationEnv(&cfg.Push.Debounce, "SHOPFLOOR_PUSH_DEBOUNCE")
	applyDurationEnv(&cfg.Push.ReconnectMax, "SHOPFLOOR_PUSH_RECONNECT_MAX")
}

// applyDurationEnv ignores unparsable or non-positive values.
func applyDurationEnv(dst *time.Duration, envName string) {
	v := os.Getenv(envName)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return
	}
	*dst = d
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("config: db_path is required")
	}
	if c.TickInterval < time.Second {
		return fmt.Errorf("config: tick_interval must be at least 1s, got %s", c.TickInterval)
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("config: remote_timeout must be positive, got %s", c.RemoteTimeout)
	}
	if c.Push.Debounce < 0 {
		return fmt.Errorf("config: push.debounce must not be negative")
	}
	if c.Push.ReconnectMax <= 0 {
		return fmt.Errorf("config: push.reconnect_max must be positive, got %s", c.Push.ReconnectMax)
	}
	return nil
}
