package compaction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/youssefsiam38/agentctx/types"
)

var errSummarizerDown = errors.New("summarizer unavailable")

// scriptedSummarizer records every request and answers through respond.
type scriptedSummarizer struct {
	mu       sync.Mutex
	requests []SummarizeRequest
	respond  func(call int, req SummarizeRequest) (string, error)
}

func (s *scriptedSummarizer) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	s.mu.Lock()
	call := len(s.requests)
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.respond == nil {
		return fmt.Sprintf("summary #%d of %d messages", call, len(req.Messages)), nil
	}
	return s.respond(call, req)
}

func (s *scriptedSummarizer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedSummarizer) sawMessage(msg *types.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		for _, m := range req.Messages {
			if m == msg {
				return true
			}
		}
	}
	return false
}

func flatten(chunks [][]*types.Message) []*types.Message {
	var out []*types.Message
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out
}
