package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int
	GinMode     string
	TLSCertFile string
	TLSKeyFile  string

	// BackendURL is the base URL of the energy backend API.
	BackendURL string
	// PushURL is the websocket endpoint delivering notifications. When empty
	// it is derived from BackendURL.
	PushURL string

	// StateFile holds the persisted client state (token, layout, caches).
	StateFile string

	DeviceCacheTTL    time.Duration
	HTTPTimeout       time.Duration
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration

	LogFormat string // text or json
	Debug     bool
}

// fileConfig mirrors Config for the YAML file; durations are strings in
// time.ParseDuration form.
type fileConfig struct {
	Port              *int    `yaml:"port"`
	GinMode           string  `yaml:"gin_mode"`
	TLSCertFile       string  `yaml:"tls_cert_file"`
	TLSKeyFile        string  `yaml:"tls_key_file"`
	BackendURL        string  `yaml:"backend_url"`
	PushURL           string  `yaml:"push_url"`
	StateFile         string  `yaml:"state_file"`
	DeviceCacheTTL    string  `yaml:"device_cache_ttl"`
	HTTPTimeout       string  `yaml:"http_timeout"`
	ReconnectMinDelay string  `yaml:"reconnect_min_delay"`
	ReconnectMaxDelay string  `yaml:"reconnect_max_delay"`
	LogFormat         string  `yaml:"log_format"`
	Debug             *bool   `yaml:"debug"`
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

// LoadConfigFromEnv builds the config from defaults, an optional YAML file
// named by CONFIG_FILE, and finally environment variable overrides.
func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:              4000,
		GinMode:           "release",
		DeviceCacheTTL:    5 * time.Minute,
		HTTPTimeout:       15 * time.Second,
		ReconnectMinDelay: time.Second,
		ReconnectMaxDelay: time.Minute,
		LogFormat:         "text",
	}

	if path := env.Getenv("CONFIG_FILE"); path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config file does not exist: %s", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := applyFile(&cfg, data); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}
	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}
	if raw := env.Getenv("BACKEND_URL"); raw != "" {
		cfg.BackendURL = raw
	}
	if raw := env.Getenv("PUSH_URL"); raw != "" {
		cfg.PushURL = raw
	}
	if raw := env.Getenv("STATE_FILE"); raw != "" {
		cfg.StateFile = raw
	}
	if raw := env.Getenv("DEVICE_CACHE_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEVICE_CACHE_TTL")
		}
		cfg.DeviceCacheTTL = d
	}
	if raw := env.Getenv("HTTP_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid HTTP_TIMEOUT")
		}
		cfg.HTTPTimeout = d
	}
	if raw := env.Getenv("LOG_FORMAT"); raw != "" {
		cfg.LogFormat = raw
	}
	if raw := env.Getenv("DEBUG"); raw != "" {
		cfg.Debug = raw == "1" || strings.EqualFold(raw, "true")
	}
	cfg.TLSCertFile = firstNonEmpty(env.Getenv("TLS_CERT_FILE"), cfg.TLSCertFile)
	cfg.TLSKeyFile = firstNonEmpty(env.Getenv("TLS_KEY_FILE"), cfg.TLSKeyFile)

	if cfg.StateFile == "" {
		cfg.StateFile = defaultStateFile()
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if cfg.PushURL == "" {
		cfg.PushURL = derivePushURL(cfg.BackendURL)
	}
	return cfg, nil
}

func applyFile(cfg *Config, data []byte) error {
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Port != nil {
		cfg.Port = *file.Port
	}
	if file.GinMode != "" {
		cfg.GinMode = file.GinMode
	}
	if file.TLSCertFile != "" {
		cfg.TLSCertFile = file.TLSCertFile
	}
	if file.TLSKeyFile != "" {
		cfg.TLSKeyFile = file.TLSKeyFile
	}
	if file.BackendURL != "" {
		cfg.BackendURL = file.BackendURL
	}
	if file.PushURL != "" {
		cfg.PushURL = file.PushURL
	}
	if file.StateFile != "" {
		cfg.StateFile = file.StateFile
	}
	if file.LogFormat != "" {
		cfg.LogFormat = file.LogFormat
	}
	if file.Debug != nil {
		cfg.Debug = *file.Debug
	}
	for _, field := range []struct {
		raw string
		dst *time.Duration
	}{
		{file.DeviceCacheTTL, &cfg.DeviceCacheTTL},
		{file.HTTPTimeout, &cfg.HTTPTimeout},
		{file.ReconnectMinDelay, &cfg.ReconnectMinDelay},
		{file.ReconnectMaxDelay, &cfg.ReconnectMaxDelay},
	} {
		if field.raw == "" {
			continue
		}
		d, err := time.ParseDuration(field.raw)
		if err != nil {
			return err
		}
		*field.dst = d
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1-65535, got: %d", c.Port)
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid BACKEND_URL: %s", c.BackendURL)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log format must be text or json, got: %s", c.LogFormat)
	}
	return nil
}

// derivePushURL maps the backend base URL to its notification websocket
// endpoint (http -> ws, https -> wss).
func derivePushURL(backendURL string) string {
	ws := backendURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return strings.TrimSuffix(ws, "/") + "/api/notifications/ws"
}

func defaultStateFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "powerdash", "state.json")
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
