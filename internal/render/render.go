package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nurlabs/nurchat/internal/models"
)

// Markdown renders markdown content for terminal display using a pooled
// renderer.
func Markdown(content string, opts Options) (string, error) {
	renderer, err := globalPool.get(opts)
	if err != nil {
		return "", err
	}
	defer globalPool.put(opts, renderer)

	return renderer.Render(content)
}

// OrderFootnotes returns footnotes in the order their verses are cited in
// content. Footnotes whose verse is not cited inline keep their relative
// order after the cited ones.
func OrderFootnotes(content string, footnotes []models.Footnote) []models.Footnote {
	if len(footnotes) < 2 {
		return footnotes
	}
	pos := make(map[string]int)
	for i, ref := range models.InlineCitations(content) {
		pos[ref] = i
	}
	rank := func(fn models.Footnote) int {
		if i, ok := pos[strings.TrimSpace(fn.Reference)]; ok {
			return i
		}
		return len(pos)
	}

	out := append([]models.Footnote(nil), footnotes...)
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

// FootnotesMarkdown formats cited verses as a markdown section appended below
// an assistant reply. Empty input yields "".
func FootnotesMarkdown(footnotes []models.Footnote) string {
	if len(footnotes) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n\n---\n\n")
	for i, fn := range footnotes {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "**(%s)**", fn.Reference)
		if fn.Arabic != "" {
			fmt.Fprintf(&sb, " %s", fn.Arabic)
		}
		sb.WriteString("\n")
		if fn.English != "" {
			fmt.Fprintf(&sb, "\n> %s\n", fn.English)
		}
	}
	return sb.String()
}

// FootnotesPlain formats cited verses for raw output, one block per verse.
func FootnotesPlain(footnotes []models.Footnote) string {
	if len(footnotes) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n")
	for _, fn := range footnotes {
		fmt.Fprintf(&sb, "\n[%s]", fn.Reference)
		if fn.Arabic != "" {
			fmt.Fprintf(&sb, " %s", fn.Arabic)
		}
		if fn.English != "" {
			fmt.Fprintf(&sb, "\n    %s", fn.English)
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// Message renders one stored message. Assistant messages get their footnotes
// appended.
func Message(msg models.Message, opts Options) (string, error) {
	content := msg.Content
	if msg.Role == models.RoleAssistant {
		content += FootnotesMarkdown(OrderFootnotes(msg.Content, msg.Footnotes))
	}
	return Markdown(content, opts)
}

// PlainMessage returns the message text with plain footnotes and no styling.
func PlainMessage(msg models.Message) string {
	content := strings.TrimSpace(msg.Content)
	if msg.Role == models.RoleAssistant {
		content += FootnotesPlain(OrderFootnotes(msg.Content, msg.Footnotes))
	}
	return content
}
