package compaction

import (
	"fmt"
)

// Default configuration values.
const (
	DefaultContextWindow       = 200000 // Claude context window
	DefaultReserveTokens       = 16384  // Room left for the summary itself
	DefaultTrigger             = 0.85   // 85% context usage
	DefaultSummarizerModel     = "claude-3-5-haiku-20241022"
	DefaultBaseChunkRatio      = 0.4
	DefaultMinChunkRatio       = 0.15
	DefaultParts               = 2
	DefaultMinMessagesForSplit = 4
	DefaultMaxHistoryShare     = 0.5
	DefaultPreserveLastN       = 4     // Always keep last 4 messages verbatim
	DefaultKeepRecentTokens    = 20000 // Never summarize the last 20K tokens
	DefaultPreserveTurns       = 3
	DefaultPreserveTokens      = 40000 // Tool output always retained (OpenCode pattern)
	DefaultMinSavings          = 20000 // Only prune when it frees at least this much
)

// Config holds compaction configuration.
type Config struct {
	// ContextWindow is the maximum number of tokens a model call may include.
	// Default: 200000
	ContextWindow int `yaml:"context_window" json:"context_window"`

	// ReserveTokens is the budget handed to the summarizer for its output.
	// Default: 16384
	ReserveTokens int `yaml:"reserve_tokens" json:"reserve_tokens"`

	// Trigger is the context usage threshold (0.0-1.0) that triggers compaction.
	// Default: 0.85
	Trigger float64 `yaml:"trigger" json:"trigger"`

	// SummarizerModel is the model passed to the summarizer.
	// Default: "claude-3-5-haiku-20241022"
	SummarizerModel string `yaml:"summarizer_model" json:"summarizer_model"`

	// APIKey is forwarded to the summarizer. Empty means the summarizer's own
	// credentials are used.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Instructions are extra focus instructions appended to summary requests.
	Instructions string `yaml:"instructions" json:"instructions"`

	// BaseChunkRatio and MinChunkRatio bound the per-call chunk size as a
	// fraction of ContextWindow.
	// Default: 0.4 / 0.15
	BaseChunkRatio float64 `yaml:"base_chunk_ratio" json:"base_chunk_ratio"`
	MinChunkRatio  float64 `yaml:"min_chunk_ratio" json:"min_chunk_ratio"`

	// Parts is the number of balanced shares used by staged summarization and
	// by the history pruner.
	// Default: 2
	Parts int `yaml:"parts" json:"parts"`

	// MinMessagesForSplit is the smallest input that staged summarization splits.
	// Default: 4
	MinMessagesForSplit int `yaml:"min_messages_for_split" json:"min_messages_for_split"`

	// MaxHistoryShare caps kept history at ContextWindow*MaxHistoryShare.
	// Default: 0.5
	MaxHistoryShare float64 `yaml:"max_history_share" json:"max_history_share"`

	// PreserveLastN is the minimum number of recent messages kept verbatim.
	// Default: 4
	PreserveLastN int `yaml:"preserve_last_n" json:"preserve_last_n"`

	// KeepRecentTokens is the token span at the end of the transcript that is
	// never summarized.
	// Default: 20000
	KeepRecentTokens int `yaml:"keep_recent_tokens" json:"keep_recent_tokens"`

	// PreserveToolOutputs disables the tool-output pruning pass.
	// Default: false
	PreserveToolOutputs bool `yaml:"preserve_tool_outputs" json:"preserve_tool_outputs"`

	// PreserveTurns, PreserveTokens and MinSavings configure tool-output pruning.
	// Default: 3 / 40000 / 20000
	PreserveTurns  int `yaml:"preserve_turns" json:"preserve_turns"`
	PreserveTokens int `yaml:"preserve_tokens" json:"preserve_tokens"`
	MinSavings     int `yaml:"min_savings" json:"min_savings"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ContextWindow:       DefaultContextWindow,
		ReserveTokens:       DefaultReserveTokens,
		Trigger:             DefaultTrigger,
		SummarizerModel:     DefaultSummarizerModel,
		BaseChunkRatio:      DefaultBaseChunkRatio,
		MinChunkRatio:       DefaultMinChunkRatio,
		Parts:               DefaultParts,
		MinMessagesForSplit: DefaultMinMessagesForSplit,
		MaxHistoryShare:     DefaultMaxHistoryShare,
		PreserveLastN:       DefaultPreserveLastN,
		KeepRecentTokens:    DefaultKeepRecentTokens,
		PreserveTurns:       DefaultPreserveTurns,
		PreserveTokens:      DefaultPreserveTokens,
		MinSavings:          DefaultMinSavings,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.ContextWindow == 0 {
		c.ContextWindow = DefaultContextWindow
	}
	if c.ReserveTokens == 0 {
		c.ReserveTokens = DefaultReserveTokens
	}
	if c.Trigger == 0 {
		c.Trigger = DefaultTrigger
	}
	if c.SummarizerModel == "" {
		c.SummarizerModel = DefaultSummarizerModel
	}
	if c.BaseChunkRatio == 0 {
		c.BaseChunkRatio = DefaultBaseChunkRatio
	}
	if c.MinChunkRatio == 0 {
		c.MinChunkRatio = DefaultMinChunkRatio
	}
	if c.Parts == 0 {
		c.Parts = DefaultParts
	}
	if c.MinMessagesForSplit == 0 {
		c.MinMessagesForSplit = DefaultMinMessagesForSplit
	}
	if c.MaxHistoryShare == 0 {
		c.MaxHistoryShare = DefaultMaxHistoryShare
	}
	if c.PreserveLastN == 0 {
		c.PreserveLastN = DefaultPreserveLastN
	}
	if c.KeepRecentTokens == 0 {
		c.KeepRecentTokens = DefaultKeepRecentTokens
	}
	if c.PreserveTurns == 0 {
		c.PreserveTurns = DefaultPreserveTurns
	}
	if c.PreserveTokens == 0 {
		c.PreserveTokens = DefaultPreserveTokens
	}
	if c.MinSavings == 0 {
		c.MinSavings = DefaultMinSavings
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.ContextWindow <= 0 {
		return fmt.Errorf("%w: context_window must be positive, got %d", ErrInvalidConfig, c.ContextWindow)
	}

	if c.ReserveTokens < 0 || c.ReserveTokens >= c.ContextWindow {
		return fmt.Errorf("%w: reserve_tokens (%d) must be in [0, context_window)", ErrInvalidConfig, c.ReserveTokens)
	}

	if c.Trigger <= 0 || c.Trigger > 1.0 {
		return fmt.Errorf("%w: trigger must be between 0 and 1, got %f", ErrInvalidConfig, c.Trigger)
	}

	if c.MinChunkRatio <= 0 || c.BaseChunkRatio < c.MinChunkRatio || c.BaseChunkRatio > 1.0 {
		return fmt.Errorf("%w: chunk ratios must satisfy 0 < min (%f) <= base (%f) <= 1",
			ErrInvalidConfig, c.MinChunkRatio, c.BaseChunkRatio)
	}

	if c.Parts < 1 {
		return fmt.Errorf("%w: parts must be at least 1, got %d", ErrInvalidConfig, c.Parts)
	}

	if c.MaxHistoryShare <= 0 || c.MaxHistoryShare > 1.0 {
		return fmt.Errorf("%w: max_history_share must be between 0 and 1, got %f", ErrInvalidConfig, c.MaxHistoryShare)
	}

	if c.PreserveLastN < 0 {
		return fmt.Errorf("%w: preserve_last_n must be non-negative, got %d", ErrInvalidConfig, c.PreserveLastN)
	}

	if c.KeepRecentTokens < 0 || c.PreserveTokens < 0 || c.MinSavings < 0 {
		return fmt.Errorf("%w: token thresholds must be non-negative", ErrInvalidConfig)
	}

	if c.PreserveTurns < 0 {
		return fmt.Errorf("%w: preserve_turns must be non-negative, got %d", ErrInvalidConfig, c.PreserveTurns)
	}

	if c.SummarizerModel == "" {
		return fmt.Errorf("%w: summarizer_model is required", ErrInvalidConfig)
	}

	return nil
}

// TriggerThreshold returns the absolute token count that triggers compaction.
func (c *Config) TriggerThreshold() int {
	return int(float64(c.ContextWindow) * c.Trigger)
}

// HistoryBudget returns the token ceiling for kept history.
func (c *Config) HistoryBudget() int {
	return max(1, int(float64(c.ContextWindow)*c.MaxHistoryShare))
}
