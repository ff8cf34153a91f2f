package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// AccountConfig holds login material. The password and trade PIN should
// come from the environment rather than the yaml file.
type AccountConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TradePIN string `yaml:"trade_pin"`
	RegionID int    `yaml:"region_id"`
	Paper    bool   `yaml:"paper"`
}

// DeviceConfig controls device identity persistence.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	File string `yaml:"file"`
	Name string `yaml:"name"`
}

// StreamConfig tunes the push-data connection.
type StreamConfig struct {
	URL            string `yaml:"url"`
	Reconnect      bool   `yaml:"reconnect"`
	MaxReconnect   int    `yaml:"max_reconnect"`
	PingIntervalMS int    `yaml:"ping_interval_ms"`
	QueueSize      int    `yaml:"queue_size"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Level      string `yaml:"level"`
	OutputFile string `yaml:"output_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Config is the full application configuration.
type Config struct {
	Account AccountConfig `yaml:"account"`
	Device  DeviceConfig  `yaml:"device"`
	Stream  StreamConfig  `yaml:"stream"`
	Log     LogConfig     `yaml:"log"`
}

func defaults() *Config {
	return &Config{
		Account: AccountConfig{RegionID: 6, Paper: true},
		Device:  DeviceConfig{File: ".webull_device_id", Name: "default_string"},
		Stream:  StreamConfig{Reconnect: true, MaxReconnect: 10, QueueSize: 256},
		Log:     LogConfig{Level: "info"},
	}
}

// LoadEnv loads a .env file into the process environment. A missing file
// is not an error; the process environment still applies.
func LoadEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// Load reads the optional yaml file at path, layers a .env file and
// process environment on top, and validates the result. Environment
// variables win over yaml values.
func Load(path string) (*Config, error) {
	LoadEnv()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "read config %s", path)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Account.Username = getEnv("WEBULL_USERNAME", c.Account.Username)
	c.Account.Password = getEnv("WEBULL_PASSWORD", c.Account.Password)
	c.Account.TradePIN = getEnv("WEBULL_TRADE_PIN", c.Account.TradePIN)
	c.Account.RegionID = parseIntEnv("WEBULL_REGION", c.Account.RegionID)
	c.Account.Paper = parseBoolEnv("WEBULL_PAPER", c.Account.Paper)
	c.Device.ID = getEnv("WEBULL_DEVICE_ID", c.Device.ID)
	c.Device.File = getEnv("WEBULL_DEVICE_ID_FILE", c.Device.File)
	c.Stream.URL = getEnv("WEBULL_STREAM_URL", c.Stream.URL)
	c.Log.Level = getEnv("WEBULL_LOG_LEVEL", c.Log.Level)
}

func (c *Config) validate() error {
	if c.Account.Username == "" {
		return errors.New("config: account username is required (WEBULL_USERNAME)")
	}
	if c.Account.Password == "" {
		return errors.New("config: account password is required (WEBULL_PASSWORD)")
	}
	if c.Account.RegionID <= 0 {
		return errors.New("config: region_id must be positive")
	}
	if c.Stream.QueueSize < 0 {
		return errors.New("config: stream queue_size must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBoolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
