// Package llm adapts model clients to the collaborator interfaces of the
// compaction and memory packages.
//
// [Anthropic] talks to the Messages API through anthropic-sdk-go and streams
// every response. [LangChain] wraps any langchaingo llms.Model, which covers
// OpenAI, Ollama and the other providers langchaingo supports.
//
// Both types implement compaction.Summarizer and memory.Generator:
//
//	client := llm.NewAnthropic(llm.AnthropicConfig{APIKey: os.Getenv("ANTHROPIC_API_KEY")})
//	compactor := compaction.New(nil, client, logger)
//	mem := memory.New(store, client, nil, logger)
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/memory"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty response from model")

// DefaultMaxTokens bounds responses when a request does not.
const DefaultMaxTokens = 4096

// AnthropicConfig configures an Anthropic client.
type AnthropicConfig struct {
	// APIKey authenticates requests. Empty falls back to the
	// ANTHROPIC_API_KEY environment variable.
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is used when a request does not name one.
	Model string

	// MaxTokens is used when a request does not bound its output.
	// Default: 4096
	MaxTokens int

	// Options are passed to the underlying client.
	Options []option.RequestOption
}

// Anthropic implements Summarizer and Generator over the Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic creates an Anthropic adapter.
func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, cfg.Options...)

	return NewAnthropicFromClient(anthropic.NewClient(opts...), cfg.Model, cfg.MaxTokens)
}

// NewAnthropicFromClient wraps an existing client.
func NewAnthropicFromClient(client anthropic.Client, model string, maxTokens int) *Anthropic {
	if model == "" {
		model = compaction.DefaultSummarizerModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Anthropic{client: client, model: model, maxTokens: maxTokens}
}

// Summarize implements compaction.Summarizer.
func (a *Anthropic) Summarize(ctx context.Context, req compaction.SummarizeRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", compaction.ErrNoMessagesToCompact
	}

	params := a.params(req.Model, summaryMaxTokens(req.ReserveTokens, a.maxTokens),
		SummarizationSystemPrompt, summaryUserPrompt(req))

	var opts []option.RequestOption
	if req.APIKey != "" {
		opts = append(opts, option.WithAPIKey(req.APIKey))
	}
	return a.stream(ctx, params, opts...)
}

// Generate implements memory.Generator.
func (a *Anthropic) Generate(ctx context.Context, req memory.GenerateRequest) (string, error) {
	params := a.params(req.Model.Model, req.Model.MaxTokens, req.SystemPrompt, req.UserText)
	if req.Model.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Model.Temperature)
	}
	return a.stream(ctx, params)
}

func (a *Anthropic) params(model string, maxTokens int, system, user string) anthropic.MessageNewParams {
	if model == "" {
		model = a.model
	}
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

// stream sends a streaming request and concatenates the text blocks of the
// accumulated message.
func (a *Anthropic) stream(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (string, error) {
	stream := a.client.Messages.NewStreaming(ctx, params, opts...)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		if err := message.Accumulate(stream.Current()); err != nil {
			return "", fmt.Errorf("failed to accumulate stream: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}
