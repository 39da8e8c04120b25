package memory

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Draft is one parsed observation before it is tagged with a range and origin.
type Draft struct {
	Content  string
	Priority Priority
}

var (
	markdown = goldmark.New()

	// Observation text ends up inside prompts; markup is never meaningful.
	sanitizer = bluemonday.StrictPolicy()

	priorityMarker = regexp.MustCompile(`(?i)^(?:\[(high|medium|med|low)\]|\((high|medium|med|low)\)|(🔴|🟡|🟢))\s*[:\-]?\s*`)
)

// ParseObservations extracts observations from a generator response. Each
// markdown list item becomes one Draft; a response without lists falls back
// to top-level paragraphs. Items may start with a [high], [medium] or [low]
// marker (default medium). Anything else, including an empty response,
// yields no drafts.
func ParseObservations(response string) []Draft {
	source := []byte(response)
	if len(bytes.TrimSpace(source)) == 0 {
		return nil
	}

	doc := markdown.Parser().Parse(text.NewReader(source))

	var items, paragraphs []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindListItem:
			items = append(items, ownText(n, source))
		case ast.KindParagraph:
			if n.Parent() != nil && n.Parent().Kind() == ast.KindDocument {
				paragraphs = append(paragraphs, nodeLines(n, source))
			}
		}
		return ast.WalkContinue, nil
	})

	if len(items) == 0 {
		items = paragraphs
	}

	drafts := make([]Draft, 0, len(items))
	for _, item := range items {
		if draft, ok := newDraft(item); ok {
			drafts = append(drafts, draft)
		}
	}
	return drafts
}

func newDraft(raw string) (Draft, bool) {
	content := strings.Join(strings.Fields(raw), " ")

	priority := PriorityMedium
	if m := priorityMarker.FindStringSubmatch(content); m != nil {
		switch {
		case m[1] != "":
			priority, _ = ParsePriority(m[1])
		case m[2] != "":
			priority, _ = ParsePriority(m[2])
		case m[3] == "🔴":
			priority = PriorityHigh
		case m[3] == "🟢":
			priority = PriorityLow
		}
		content = content[len(m[0]):]
	}

	content = strings.TrimSpace(Sanitize(content))
	if content == "" {
		return Draft{}, false
	}
	return Draft{Content: content, Priority: priority}, true
}

// Sanitize strips any HTML from observation text.
func Sanitize(s string) string {
	return html.UnescapeString(sanitizer.Sanitize(s))
}

// ownText returns the text of a list item without its nested lists, which
// are visited as items of their own.
func ownText(item ast.Node, source []byte) string {
	var parts []string
	for child := item.FirstChild(); child != nil; child = child.NextSibling() {
		if child.Kind() == ast.KindList {
			continue
		}
		parts = append(parts, nodeLines(child, source))
	}
	return strings.Join(parts, " ")
}

func nodeLines(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		buf.Write(segment.Value(source))
		buf.WriteByte(' ')
	}
	return buf.String()
}
