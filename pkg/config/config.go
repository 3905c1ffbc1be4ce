package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STREAMKIT_"

// Config is the runtime configuration of the streamkit server and CLI.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Widgets WidgetsConfig `yaml:"widgets"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// PublicURL is the externally visible origin used in generated widget URLs.
	PublicURL string `yaml:"public_url"`
}

type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	AssetsURL  string        `yaml:"assets_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Mock serves canned demo data instead of calling the API.
	Mock bool `yaml:"mock"`
}

type WidgetsConfig struct {
	RefreshInterval      time.Duration `yaml:"refresh_interval"`
	VersionCheckInterval time.Duration `yaml:"version_check_interval"`
	PreviewDebounce      time.Duration `yaml:"preview_debounce"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is provided.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8080",
			PublicURL: "http://localhost:8080",
		},
		API: APIConfig{
			BaseURL:    "https://api.deadlock-api.com",
			AssetsURL:  "https://assets.deadlock-api.com",
			Timeout:    5 * time.Second,
			Retries:    3,
			RetryDelay: 100 * time.Millisecond,
		},
		Widgets: WidgetsConfig{
			RefreshInterval:      5 * time.Minute,
			VersionCheckInterval: time.Minute,
			PreviewDebounce:      500 * time.Millisecond,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the optional YAML file at path, then applies STREAMKIT_*
// overrides read through getenv. A nil getenv uses os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnvWithDotEnv returns a getenv that falls back to the values of the first
// readable .env file in paths. Real environment variables always win.
func EnvWithDotEnv(getenv func(string) string, paths ...string) func(string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	var fileEnv map[string]string
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if err == nil {
			fileEnv = values
			break
		}
	}
	return func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fileEnv[key]
	}
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("config: server.addr is required"))
	}
	for name, raw := range map[string]string{
		"server.public_url": c.Server.PublicURL,
		"api.base_url":      c.API.BaseURL,
		"api.assets_url":    c.API.AssetsURL,
	} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			errs = append(errs, fmt.Errorf("config: %s is not a valid URL", name))
		}
	}
	if c.API.Retries < 1 {
		errs = append(errs, errors.New("config: api.retries must be at least 1"))
	}
	if c.Widgets.RefreshInterval <= 10*time.Second {
		errs = append(errs, errors.New("config: widgets.refresh_interval must exceed 10s"))
	}
	return errors.Join(errs...)
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	strs := map[string]*string{
		"ADDR":       &cfg.Server.Addr,
		"PUBLIC_URL": &cfg.Server.PublicURL,
		"API_URL":    &cfg.API.BaseURL,
		"ASSETS_URL": &cfg.API.AssetsURL,
		"LOG_LEVEL":  &cfg.Logging.Level,
		"LOG_FORMAT": &cfg.Logging.Format,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(getenv(EnvPrefix + key)); v != "" {
			*dst = v
		}
	}
	durations := map[string]*time.Duration{
		"API_TIMEOUT":            &cfg.API.Timeout,
		"API_RETRY_DELAY":        &cfg.API.RetryDelay,
		"REFRESH_INTERVAL":       &cfg.Widgets.RefreshInterval,
		"VERSION_CHECK_INTERVAL": &cfg.Widgets.VersionCheckInterval,
		"PREVIEW_DEBOUNCE":       &cfg.Widgets.PreviewDebounce,
	}
	for key, dst := range durations {
		v := strings.TrimSpace(getenv(EnvPrefix + key))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "API_RETRIES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sAPI_RETRIES: %w", EnvPrefix, err)
		}
		cfg.API.Retries = n
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "MOCK")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sMOCK: %w", EnvPrefix, err)
		}
		cfg.API.Mock = b
	}
	return nil
}
