package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/agentctx/tokens"
)

// ReflectLevel describes one generation condensed by the Reflector.
type ReflectLevel struct {
	// Generation is the generation that was replaced.
	Generation int

	Replaced     int
	Produced     int
	InputTokens  int
	OutputTokens int
}

// ReflectResult lists the generations a Reflector pass condensed, shallowest
// first. An empty Levels means nothing was over the ceiling.
type ReflectResult struct {
	Levels []ReflectLevel
}

// Reflected reports whether any generation was replaced.
func (r *ReflectResult) Reflected() bool {
	return r != nil && len(r.Levels) > 0
}

// RunReflector condenses each generation, starting at 0, whose token weight
// exceeds ReflectorCeilingTokens into rows one generation deeper, replacing
// it atomically. At most MaxReflectionDepth generations are visited per
// pass. A failure stops the pass; generations already replaced stay
// replaced and the failed one is untouched.
func (m *Memory) RunReflector(ctx context.Context, sessionKey string) (*ReflectResult, error) {
	result := &ReflectResult{}

	for depth := 0; depth < m.config.MaxReflectionDepth; depth++ {
		level, err := m.reflectGeneration(ctx, sessionKey, depth)
		if err != nil {
			return result, &PassError{Op: "Reflect", SessionKey: sessionKey, Generation: depth, Err: err}
		}
		if level != nil {
			result.Levels = append(result.Levels, *level)
		}
	}
	return result, nil
}

func (m *Memory) reflectGeneration(ctx context.Context, sessionKey string, generation int) (*ReflectLevel, error) {
	weight, err := m.store.TokenSum(ctx, sessionKey, Generation(generation))
	if err != nil {
		return nil, err
	}
	if weight <= m.config.ReflectorCeilingTokens {
		return nil, nil
	}

	rows, err := m.store.List(ctx, sessionKey, Generation(generation))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// List is most recent first; the generator reads oldest first. Rows of
	// one batch share a timestamp and keep their listed order.
	slices.SortStableFunc(rows, func(a, b *Observation) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	target := m.config.ReflectorCeilingTokens / 2
	response, err := m.generator.Generate(ctx, GenerateRequest{
		SystemPrompt: ReflectorSystemPrompt,
		UserText:     buildReflectorPrompt(rows, weight, target),
		Model:        m.modelConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	drafts := ParseObservations(response)
	if len(drafts) == 0 {
		m.logger.Debug("reflector response held no observations",
			"session_key", sessionKey,
			"generation", generation,
		)
		return nil, nil
	}

	start, end := rows[0].MessageStartIndex, rows[0].MessageEndIndex
	for _, row := range rows[1:] {
		start = min(start, row.MessageStartIndex)
		end = max(end, row.MessageEndIndex)
	}

	now := time.Now().UTC()
	origin := ReflectedOrigin{Depth: generation + 1}
	replacements := make([]*Observation, len(drafts))
	produced := 0
	for i, draft := range drafts {
		replacements[i] = &Observation{
			ID:                uuid.NewString(),
			SessionKey:        sessionKey,
			Content:           draft.Content,
			CreatedAt:         now,
			MessageStartIndex: start,
			MessageEndIndex:   end,
			TokenEstimate:     tokens.Approximate(draft.Content),
			Origin:            origin,
			Priority:          draft.Priority,
		}
		produced += replacements[i].TokenEstimate
	}

	if err := m.store.ReplaceGeneration(ctx, sessionKey, generation, replacements); err != nil {
		return nil, err
	}

	m.logger.Info("observations reflected",
		"session_key", sessionKey,
		"generation", generation,
		"replaced", len(rows),
		"produced", len(replacements),
		"input_tokens", weight,
		"output_tokens", produced,
	)

	return &ReflectLevel{
		Generation:   generation,
		Replaced:     len(rows),
		Produced:     len(replacements),
		InputTokens:  weight,
		OutputTokens: produced,
	}, nil
}
