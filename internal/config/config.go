package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// AppDir is the directory name under DataDir that holds the agent's files.
const AppDir = "EventSpool"

type Config struct {
	GatewayURL           string  `toml:"gateway_url"`
	GatewaySecret        string  `toml:"gateway_secret"`
	GatewayRatePerSecond float64 `toml:"gateway_rate_per_second"`
	LogLevel             string  `toml:"log_level"`
	DBPath               string  `toml:"db_path"`
	DBDriver             string  `toml:"db_driver"`
	BatchSize            int     `toml:"batch_size"`
	CollectSchedule      string  `toml:"collect_schedule"`
	FlushSchedule        string  `toml:"flush_schedule"`
	PolicyFile           string  `toml:"policy_file"`
	PolicyURL            string  `toml:"policy_url"`
	PolicySchedule       string  `toml:"policy_schedule"`
	MetricsAddr          string  `toml:"metrics_addr"`
}

// DataDir returns the machine-wide data directory: %ProgramData% when set,
// otherwise the user config dir, otherwise the temp dir.
func DataDir() string {
	if progData := os.Getenv("ProgramData"); progData != "" {
		return progData
	}
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return dir
	}
	return os.TempDir()
}

// DefaultDBPath is where the event store lives when no path is configured.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), AppDir, "events.db")
}

func Default() *Config {
	return &Config{
		GatewayURL:           "",
		GatewayRatePerSecond: 5,
		LogLevel:             "info",
		DBPath:               DefaultDBPath(),
		DBDriver:             "sqlite",
		BatchSize:            100,
		CollectSchedule:      "@every 60s",
		FlushSchedule:        "@every 30s",
		PolicySchedule:       "@every 5m",
	}
}

// Path returns the default config file location, creating its directory.
func Path() (string, error) {
	dir := filepath.Join(DataDir(), AppDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile decodes the TOML file at path. A missing file is created with the
// defaults and those defaults are returned.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults(Default())
	return &cfg, nil
}

func (c *Config) fillDefaults(def *Config) {
	if c.GatewayRatePerSecond == 0 {
		c.GatewayRatePerSecond = def.GatewayRatePerSecond
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.DBDriver == "" {
		c.DBDriver = def.DBDriver
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.CollectSchedule == "" {
		c.CollectSchedule = def.CollectSchedule
	}
	if c.FlushSchedule == "" {
		c.FlushSchedule = def.FlushSchedule
	}
	if c.PolicySchedule == "" {
		c.PolicySchedule = def.PolicySchedule
	}
}
