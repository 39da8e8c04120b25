package memory

import "fmt"

// Default configuration values.
const (
	DefaultObserverThresholdTokens = 30000
	DefaultReflectorCeilingTokens  = 40000
	DefaultMaxReflectionDepth      = 3
	DefaultModel                   = "claude-3-5-haiku-20241022"
	DefaultMaxOutputTokens         = 4096
)

// Config holds Observational Memory configuration.
type Config struct {
	// ObserverThresholdTokens is how many unobserved tokens must accumulate
	// before the Observer runs.
	// Default: 30000
	ObserverThresholdTokens int `yaml:"observer_threshold_tokens" json:"observer_threshold_tokens"`

	// ReflectorCeilingTokens is the generation weight above which the
	// Reflector condenses it.
	// Default: 40000
	ReflectorCeilingTokens int `yaml:"reflector_ceiling_tokens" json:"reflector_ceiling_tokens"`

	// MaxReflectionDepth bounds how many generations one pass reflects.
	// Default: 3
	MaxReflectionDepth int `yaml:"max_reflection_depth" json:"max_reflection_depth"`

	// Model and MaxOutputTokens are passed to the generator.
	Model           string `yaml:"model" json:"model"`
	MaxOutputTokens int    `yaml:"max_output_tokens" json:"max_output_tokens"`

	// ToolResultMaxChars truncates tool results when serializing for the Observer.
	// Default: 2000
	ToolResultMaxChars int `yaml:"tool_result_max_chars" json:"tool_result_max_chars"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ObserverThresholdTokens: DefaultObserverThresholdTokens,
		ReflectorCeilingTokens:  DefaultReflectorCeilingTokens,
		MaxReflectionDepth:      DefaultMaxReflectionDepth,
		Model:                   DefaultModel,
		MaxOutputTokens:         DefaultMaxOutputTokens,
		ToolResultMaxChars:      DefaultToolResultMaxChars,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.ObserverThresholdTokens == 0 {
		c.ObserverThresholdTokens = DefaultObserverThresholdTokens
	}
	if c.ReflectorCeilingTokens == 0 {
		c.ReflectorCeilingTokens = DefaultReflectorCeilingTokens
	}
	if c.MaxReflectionDepth == 0 {
		c.MaxReflectionDepth = DefaultMaxReflectionDepth
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.ToolResultMaxChars == 0 {
		c.ToolResultMaxChars = DefaultToolResultMaxChars
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.ObserverThresholdTokens < 0 {
		return fmt.Errorf("%w: observer_threshold_tokens must be non-negative, got %d", ErrInvalidConfig, c.ObserverThresholdTokens)
	}
	if c.ReflectorCeilingTokens <= 0 {
		return fmt.Errorf("%w: reflector_ceiling_tokens must be positive, got %d", ErrInvalidConfig, c.ReflectorCeilingTokens)
	}
	if c.MaxReflectionDepth < 1 {
		return fmt.Errorf("%w: max_reflection_depth must be at least 1, got %d", ErrInvalidConfig, c.MaxReflectionDepth)
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("%w: max_output_tokens must be positive, got %d", ErrInvalidConfig, c.MaxOutputTokens)
	}
	if c.ToolResultMaxChars <= 0 {
		return fmt.Errorf("%w: tool_result_max_chars must be positive, got %d", ErrInvalidConfig, c.ToolResultMaxChars)
	}
	return nil
}
