package memory

import (
	"fmt"
	"strings"
)

// ObserverSystemPrompt instructs the generator how to extract observations.
const ObserverSystemPrompt = `You are the observational memory of a long-running coding agent. You read a slice of the conversation and write down what the agent must remember once those messages are gone.

Return a markdown bullet list, one observation per bullet. Start each bullet with a priority marker:
- [high] for decisions, constraints, user preferences, errors and their fixes, and unfinished work
- [medium] for useful context: files touched, commands run, intermediate results
- [low] for background that may help later

Observation Guidelines:
1. Be dense: one fact per bullet, no filler
2. Preserve specifics: file paths, function names, identifiers, numbers, dates
3. Record what was decided and why it matters, not the back-and-forth
4. Ignore greetings, pleasantries, and meta-conversation
5. Do not repeat the conversation verbatim

If nothing in the messages is worth remembering, return an empty response.`

// ReflectorSystemPrompt instructs the generator how to condense observations.
const ReflectorSystemPrompt = `You are an observation compression system. You receive a list of observations recorded over a long conversation and condense them into fewer, denser observations.

Return a markdown bullet list, one observation per bullet, each starting with [high], [medium] or [low].

Compression Guidelines:
1. Combine related observations into one
2. Remove redundant, outdated or superseded information
3. Keep specific details: names, paths, decisions, constraints
4. Never drop a [high] observation unless it was superseded
5. Maintain chronological order where relevant

Target: compress to approximately the requested token count while preserving all essential information.`

func buildObserverPrompt(serialized string, start, end int) string {
	return fmt.Sprintf("New messages to observe (messages %d to %d):\n\n%s", start, end-1, serialized)
}

func buildReflectorPrompt(rows []*Observation, currentTokens, targetTokens int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current observations (%d tokens):\n\n", currentTokens)
	for _, row := range rows {
		fmt.Fprintf(&b, "- [%s] %s\n", row.Priority, row.Content)
	}
	fmt.Fprintf(&b, "\nCompress these observations to approximately %d tokens while preserving essential information.", targetTokens)
	return b.String()
}

// renderContext formats observations for injection into a system prompt.
func renderContext(rows []*Observation) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<observations>\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "- [%s] %s\n", row.Priority, row.Content)
	}
	b.WriteString("</observations>")
	return b.String()
}
