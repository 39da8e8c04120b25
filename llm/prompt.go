package llm

import (
	"strings"

	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/memory"
)

// SummarizationSystemPrompt asks for a structured summary that can stand in
// for the messages it covers.
const SummarizationSystemPrompt = `You compress conversations for an AI agent. The summary you write replaces the original messages, so anything you leave out is gone for good.

Organize the summary under these nine headings. Write "None" under a heading with nothing to report.

1. **Primary Request and Intent**: what the user is trying to achieve, with any constraints they set.
2. **Key Technical Concepts**: technologies, APIs, patterns and design decisions that came up.
3. **Files and Code Sections**: files read, created or changed, with the snippets and paths that matter.
4. **Errors and Fixes**: failures hit along the way and how each was resolved.
5. **Problem Solving**: approaches taken, alternatives rejected, and the reasons.
6. **User Preferences and Constraints**: stated preferences, limits and style requirements.
7. **Pending Tasks**: work that was requested or promised but not done.
8. **Current Work**: what was in progress when the conversation was cut, and its state.
9. **Next Step**: the next concrete action, with whatever context it needs.

Rules:
- Prefer specifics: file names, function names, identifiers, exact error text.
- Quote the user verbatim when the wording carries intent.
- Keep events in the order they happened within each heading.
- Never add anything the conversation does not support.`

// summaryUserPrompt renders a summarization request. A previous summary is
// carried forward so the new summary extends it instead of starting over.
func summaryUserPrompt(req compaction.SummarizeRequest) string {
	var b strings.Builder

	if prev := strings.TrimSpace(req.PreviousSummary); prev != "" {
		b.WriteString("Summary of the conversation so far:\n<previous_summary>\n")
		b.WriteString(prev)
		b.WriteString("\n</previous_summary>\n\n")
		b.WriteString("Extend it with the messages below. The result must cover both.\n\n")
	} else {
		b.WriteString("Summarize the following conversation using the format in your instructions.\n\n")
	}

	b.WriteString("<conversation>\n")
	b.WriteString(memory.SerializeMessages(req.Messages, 0))
	b.WriteString("\n</conversation>")

	if instr := strings.TrimSpace(req.Instructions); instr != "" {
		b.WriteString("\n\n")
		b.WriteString(instr)
	}
	return b.String()
}

// summaryMaxTokens leaves a fifth of the reserve as headroom for the
// summary message wrapper and estimation error.
func summaryMaxTokens(reserve, fallback int) int {
	if n := reserve * 4 / 5; n > 0 {
		return n
	}
	return fallback
}
