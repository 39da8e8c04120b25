package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

// RunObserver compresses the messages past the session's high-water mark
// into raw observations once they outweigh ObserverThresholdTokens. It
// returns nil when the threshold is not met or the response holds nothing
// parseable. On a generator or store failure nothing is persisted and the
// same range is retried on the next pass.
func (m *Memory) RunObserver(ctx context.Context, sessionKey string, messages []*types.Message) ([]*Observation, error) {
	hwm, err := m.store.HighWaterMark(ctx, sessionKey)
	if err != nil {
		return nil, &PassError{Op: "Observe", SessionKey: sessionKey, Generation: -1, Err: err}
	}

	if hwm > len(messages) {
		m.logger.Warn("transcript shorter than observed history",
			"session_key", sessionKey,
			"high_water_mark", hwm,
			"messages", len(messages),
		)
		return nil, nil
	}

	unobserved := messages[hwm:]
	pending := tokens.EstimateAll(unobserved)
	if pending <= m.config.ObserverThresholdTokens {
		m.logger.Debug("observer threshold not met",
			"session_key", sessionKey,
			"unobserved_tokens", pending,
			"threshold", m.config.ObserverThresholdTokens,
		)
		return nil, nil
	}

	start, end := hwm, len(messages)
	serialized := SerializeMessages(unobserved, m.config.ToolResultMaxChars)

	response, err := m.generator.Generate(ctx, GenerateRequest{
		SystemPrompt: ObserverSystemPrompt,
		UserText:     buildObserverPrompt(serialized, start, end),
		Model:        m.modelConfig(),
	})
	if err != nil {
		return nil, &PassError{Op: "Observe", SessionKey: sessionKey, Generation: -1,
			Err: fmt.Errorf("%w: %w", ErrGenerationFailed, err)}
	}

	drafts := ParseObservations(response)
	if len(drafts) == 0 {
		m.logger.Debug("observer response held no observations",
			"session_key", sessionKey,
			"response_chars", len(response),
		)
		return nil, nil
	}

	now := time.Now().UTC()
	rows := make([]*Observation, len(drafts))
	for i, draft := range drafts {
		rows[i] = &Observation{
			ID:                uuid.NewString(),
			SessionKey:        sessionKey,
			Content:           draft.Content,
			CreatedAt:         now,
			MessageStartIndex: start,
			MessageEndIndex:   end,
			TokenEstimate:     tokens.Approximate(draft.Content),
			Origin:            RawOrigin{},
			Priority:          draft.Priority,
		}
	}

	if err := m.store.Insert(ctx, rows...); err != nil {
		return nil, &PassError{Op: "Observe", SessionKey: sessionKey, Generation: -1, Err: err}
	}

	m.logger.Info("observations recorded",
		"session_key", sessionKey,
		"observations", len(rows),
		"range_start", start,
		"range_end", end,
		"input_tokens", pending,
	)
	return rows, nil
}
