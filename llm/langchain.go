package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/memory"
)

// LangChain implements Summarizer and Generator over a langchaingo model.
type LangChain struct {
	model     llms.Model
	maxTokens int
}

// NewLangChain wraps model. maxTokens bounds responses for requests that do
// not set their own bound; zero uses DefaultMaxTokens.
func NewLangChain(model llms.Model, maxTokens int) *LangChain {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &LangChain{model: model, maxTokens: maxTokens}
}

// Summarize implements compaction.Summarizer. The request's APIKey is
// ignored; langchaingo models carry their own credentials.
func (l *LangChain) Summarize(ctx context.Context, req compaction.SummarizeRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", compaction.ErrNoMessagesToCompact
	}

	opts := []llms.CallOption{llms.WithMaxTokens(summaryMaxTokens(req.ReserveTokens, l.maxTokens))}
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	return l.generate(ctx, SummarizationSystemPrompt, summaryUserPrompt(req), opts...)
}

// Generate implements memory.Generator.
func (l *LangChain) Generate(ctx context.Context, req memory.GenerateRequest) (string, error) {
	maxTokens := req.Model.MaxTokens
	if maxTokens <= 0 {
		maxTokens = l.maxTokens
	}

	opts := []llms.CallOption{llms.WithMaxTokens(maxTokens)}
	if req.Model.Model != "" {
		opts = append(opts, llms.WithModel(req.Model.Model))
	}
	if req.Model.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Model.Temperature))
	}
	return l.generate(ctx, req.SystemPrompt, req.UserText, opts...)
}

func (l *LangChain) generate(ctx context.Context, system, user string, opts ...llms.CallOption) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, user))

	response, err := l.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}
	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Content) == "" {
		return "", ErrEmptyResponse
	}
	return response.Choices[0].Content, nil
}
