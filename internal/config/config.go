package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultServerAddress   = ":8090"
	DefaultMaxInputChars   = 1024
	DefaultMinTitleTokens  = 5
	DefaultMaxTitleTokens  = 30
	DefaultSessionTTL      = 120 // minutes
	DefaultCleanupInterval = 10  // minutes
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Model       ModelConfig               `json:"model"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Redis       RedisConfig               `json:"redis"`
	Databases   map[string]DatabaseConfig `json:"databases"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress   string `json:"server_address"`
	SessionTTL      int    `json:"session_ttl_minutes"`
	CleanupInterval int    `json:"cleanup_interval_minutes"`
}

// ModelConfig selects the summarization engine and bounds its output.
type ModelConfig struct {
	Preferred      string `json:"preferred"`
	Fallback       string `json:"fallback"`
	MaxInputChars  int    `json:"max_input_chars"`
	MinTokens      int    `json:"min_tokens"`
	MaxTokens      int    `json:"max_tokens"`
	RatePerMinute  int    `json:"rate_per_minute"`
	CacheTTLMinute int    `json:"cache_ttl_minutes"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

// providerKeyEnv names the environment variables consulted when a provider
// has no api_key in the config file.
var providerKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
	"gemini": "GEMINI_API_KEY",
}

// Default returns a configuration usable without any file on disk.
func Default() *Config {
	cfg := &Config{
		Providers: map[string]ProviderConfig{},
		Databases: map[string]DatabaseConfig{},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file at the default location yields the default configuration.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()

	for name, db := range cfg.Databases {
		if strings.HasPrefix(name, "sqlite") && db.DSN != "" && db.DSN != ":memory:" &&
			!strings.HasPrefix(db.DSN, "file:") && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the model section against the configured providers.
func (c *Config) Validate() error {
	if c.Model.MinTokens > c.Model.MaxTokens {
		return fmt.Errorf("model.min_tokens (%d) exceeds model.max_tokens (%d)", c.Model.MinTokens, c.Model.MaxTokens)
	}
	for _, name := range []string{c.Model.Preferred, c.Model.Fallback} {
		if name == "" {
			continue
		}
		if _, ok := c.Providers[name]; !ok {
			return fmt.Errorf("provider %s not configured", name)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	if c.Databases == nil {
		c.Databases = map[string]DatabaseConfig{}
	}
	if _, ok := c.Databases["sqlite3"]; !ok {
		c.Databases["sqlite3"] = DatabaseConfig{DSN: ":memory:"}
	}
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	if c.BasicConfig.SessionTTL <= 0 {
		c.BasicConfig.SessionTTL = DefaultSessionTTL
	}
	if c.BasicConfig.CleanupInterval <= 0 {
		c.BasicConfig.CleanupInterval = DefaultCleanupInterval
	}
	if c.Model.MaxInputChars <= 0 {
		c.Model.MaxInputChars = DefaultMaxInputChars
	}
	if c.Model.MinTokens <= 0 {
		c.Model.MinTokens = DefaultMinTitleTokens
	}
	if c.Model.MaxTokens <= 0 {
		c.Model.MaxTokens = DefaultMaxTitleTokens
	}
}

// applyEnv fills empty provider keys from the environment.
func (c *Config) applyEnv() {
	for name, envKey := range providerKeyEnv {
		val := strings.TrimSpace(os.Getenv(envKey))
		if val == "" {
			continue
		}
		prov := c.Providers[name]
		if prov.APIKey != "" {
			continue
		}
		prov.APIKey = val
		c.Providers[name] = prov
	}
	if c.Model.Preferred == "" && c.Model.Fallback == "" {
		for _, name := range []string{"openai", "claude", "gemini"} {
			if p, ok := c.Providers[name]; ok && p.APIKey != "" {
				c.Model.Fallback = name
				break
			}
		}
	}
}
