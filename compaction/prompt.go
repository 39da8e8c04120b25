package compaction

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/youssefsiam38/agentctx/types"
)

// DefaultSummaryFallback is returned when there is nothing to summarize and no
// previous summary exists.
const DefaultSummaryFallback = "No prior history."

// MergeSummariesInstructions is sent with the partial summaries produced by
// staged summarization.
const MergeSummariesInstructions = "Merge these partial summaries into a single cohesive summary. " +
	"Preserve decisions, TODOs, open questions, and any constraints."

// SummaryMessagePrefix introduces the summary message placed at the head of a
// compacted transcript.
const SummaryMessagePrefix = "The conversation history before this point was compacted into the following summary:"

func mergeInstructions(custom string) string {
	if strings.TrimSpace(custom) == "" {
		return MergeSummariesInstructions
	}
	return MergeSummariesInstructions + "\n\nAdditional focus:\n" + custom
}

// omissionNote describes a message that was too large to summarize.
func omissionNote(msg *types.Message, estimated int) string {
	role := string(msg.Role)
	if role == "" {
		role = "message"
	}
	chars := 0
	for _, b := range msg.Content {
		chars += len(b.Text) + len(b.ToolContent) + len(b.ToolInput)
	}
	return fmt.Sprintf("[Large %s message (~%dK tokens, %s chars) omitted from summary]",
		role, (estimated+500)/1000, humanize.Comma(int64(chars)))
}

// unavailableSummary is the last rung of the fallback ladder. It makes no
// collaborator call.
func unavailableSummary(total int, notes []string) string {
	text := fmt.Sprintf("Context contained %d messages (%d oversized). Summary unavailable due to size limits.",
		total, len(notes))
	if len(notes) > 0 {
		text += "\n\n" + strings.Join(notes, "\n")
	}
	return text
}

// newSummaryMessage wraps summary text as the first message of a compacted
// transcript.
func newSummaryMessage(summary string) *types.Message {
	return types.NewTextMessage(types.RoleUser, SummaryMessagePrefix+"\n<summary>\n"+summary+"\n</summary>")
}
