package agentctx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/memory"
	"github.com/youssefsiam38/agentctx/worker"
)

// Duration is a time.Duration that reads and writes as a string such as
// "5s" in YAML and JSON.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats d as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// WorkerConfig configures the background memory worker.
type WorkerConfig struct {
	// Debounce is how long a transcript must stay quiet before a pass.
	// Default: 5s
	Debounce Duration `yaml:"debounce" json:"debounce"`

	// IdleTimeout is how long an idle session keeps its goroutine.
	// Default: 10m
	IdleTimeout Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// PassTimeout bounds a single pass. Zero means unbounded.
	PassTimeout Duration `yaml:"pass_timeout" json:"pass_timeout"`
}

// StorageConfig selects the observation store.
type StorageConfig struct {
	// Driver is "sqlite3" (default) or "pgx"/"postgres".
	Driver string `yaml:"driver" json:"driver"`

	// DSN is a file path for SQLite or a connection string for Postgres.
	// Empty disables Observational Memory unless a store is supplied with
	// WithStore.
	DSN string `yaml:"dsn" json:"dsn"`
}

// LLMConfig configures the default Anthropic collaborator.
type LLMConfig struct {
	// APIKey authenticates requests. Empty falls back to ANTHROPIC_API_KEY.
	APIKey string `yaml:"api_key" json:"api_key"`

	// BaseURL overrides the API endpoint.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// MaxTokens bounds responses that do not set their own bound.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`
}

// Config is the complete engine configuration.
type Config struct {
	Compaction *compaction.Config `yaml:"compaction" json:"compaction"`
	Memory     *memory.Config     `yaml:"memory" json:"memory"`
	Worker     WorkerConfig       `yaml:"worker" json:"worker"`
	Storage    StorageConfig      `yaml:"storage" json:"storage"`
	LLM        LLMConfig          `yaml:"llm" json:"llm"`
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Compaction == nil {
		c.Compaction = compaction.DefaultConfig()
	} else {
		c.Compaction.ApplyDefaults()
	}
	if c.Memory == nil {
		c.Memory = memory.DefaultConfig()
	} else {
		c.Memory.ApplyDefaults()
	}

	defaults := worker.DefaultConfig()
	if c.Worker.Debounce == 0 {
		c.Worker.Debounce = Duration(defaults.Debounce)
	}
	if c.Worker.IdleTimeout == 0 {
		c.Worker.IdleTimeout = Duration(defaults.IdleTimeout)
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite3"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Compaction != nil {
		if err := c.Compaction.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if c.Memory != nil {
		if err := c.Memory.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if c.Worker.Debounce < 0 || c.Worker.IdleTimeout < 0 || c.Worker.PassTimeout < 0 {
		return fmt.Errorf("%w: worker durations must not be negative", ErrInvalidConfig)
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("%w: llm.max_tokens must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads a configuration file. Files ending in .yaml or .yml are
// YAML; anything else is JSON, which may contain comments and trailing
// commas. ${VAR} references are expanded from the environment before
// parsing. Defaults are applied and the result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data, filepath.Ext(path))
}

// ParseConfig parses configuration data in the format named by ext.
func ParseConfig(data []byte, ext string) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	cfg := &Config{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) workerConfig() *worker.Config {
	return &worker.Config{
		Debounce:    time.Duration(c.Worker.Debounce),
		IdleTimeout: time.Duration(c.Worker.IdleTimeout),
		PassTimeout: time.Duration(c.Worker.PassTimeout),
	}
}
