package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nurlabs/nurchat/internal/models"
)

// ExportFormat represents the format for exporting conversations
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatJSON     ExportFormat = "json"
)

// ParseExportFormat accepts "markdown", "md" or "json"
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return ExportFormatMarkdown, nil
	case "json":
		return ExportFormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (use markdown or json)", s)
	}
}

// Extension returns the file extension for the format
func (f ExportFormat) Extension() string {
	if f == ExportFormatJSON {
		return ".json"
	}
	return ".md"
}

// ExportOptions configures how conversations are exported
type ExportOptions struct {
	Format            ExportFormat
	IncludeFootnotes  bool
	IncludeTimestamps bool
}

// DefaultExportOptions returns sensible defaults for export
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:            ExportFormatMarkdown,
		IncludeFootnotes:  true,
		IncludeTimestamps: true,
	}
}

// Export fetches a conversation and renders it in opts.Format
func (s *Store) Export(ctx context.Context, id string, opts ExportOptions) ([]byte, error) {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if opts.Format == ExportFormatJSON {
		return ExportJSON(conv, opts)
	}
	return []byte(ExportMarkdown(conv, opts)), nil
}

// ExportMarkdown renders a conversation as a Markdown document
func ExportMarkdown(conv *models.Conversation, opts ExportOptions) string {
	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(conv.DisplayTitle())
	sb.WriteString("\n\n")

	sb.WriteString("**ID:** ")
	sb.WriteString(conv.ID)
	sb.WriteString("\n")
	if !conv.CreatedAt.IsZero() {
		sb.WriteString("**Created:** ")
		sb.WriteString(conv.CreatedAt.Format("2006-01-02 15:04:05"))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("**Messages:** %d\n\n---\n\n", len(conv.Messages)))

	for i, msg := range conv.Messages {
		role := "User"
		if msg.Role == models.RoleAssistant {
			role = "Assistant"
		}

		sb.WriteString("## ")
		sb.WriteString(role)
		if opts.IncludeTimestamps && !msg.Timestamp.IsZero() {
			sb.WriteString(" (")
			sb.WriteString(msg.Timestamp.Format("15:04:05"))
			sb.WriteString(")")
		}
		sb.WriteString("\n\n")

		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n")

		if opts.IncludeFootnotes && len(msg.Footnotes) > 0 {
			sb.WriteString("\n")
			for _, fn := range msg.Footnotes {
				sb.WriteString(fmt.Sprintf("- **(%s)** %s\n", fn.Reference, fn.Arabic))
				if fn.English != "" {
					sb.WriteString("  > ")
					sb.WriteString(fn.English)
					sb.WriteString("\n")
				}
			}
		}

		if i < len(conv.Messages)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return sb.String()
}

// ExportJSON renders a conversation as indented JSON
func ExportJSON(conv *models.Conversation, opts ExportOptions) ([]byte, error) {
	type exportMessage struct {
		Role      models.Role       `json:"role"`
		Content   string            `json:"content"`
		Timestamp *time.Time        `json:"timestamp,omitempty"`
		Footnotes []models.Footnote `json:"footnotes,omitempty"`
	}

	type exportConversation struct {
		ID        string          `json:"id"`
		Title     string          `json:"title"`
		CreatedAt *time.Time      `json:"created_at,omitempty"`
		Messages  []exportMessage `json:"messages"`
	}

	export := exportConversation{
		ID:       conv.ID,
		Title:    conv.DisplayTitle(),
		Messages: make([]exportMessage, len(conv.Messages)),
	}
	if !conv.CreatedAt.IsZero() {
		created := conv.CreatedAt.UTC()
		export.CreatedAt = &created
	}

	for i, msg := range conv.Messages {
		export.Messages[i] = exportMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		if opts.IncludeTimestamps && !msg.Timestamp.IsZero() {
			ts := msg.Timestamp.UTC()
			export.Messages[i].Timestamp = &ts
		}
		if opts.IncludeFootnotes {
			export.Messages[i].Footnotes = msg.Footnotes
		}
	}

	return json.MarshalIndent(export, "", "  ")
}

// SearchResult represents a search match in conversations
type SearchResult struct {
	Conversation models.Conversation
	MatchSnippet string // Snippet where the term was found
	MatchField   string // "title" or "content"
	MatchIndex   int    // Message index if MatchField is "content", -1 for title
}

// SearchConversations lists conversations and searches them for query
func (s *Store) SearchConversations(ctx context.Context, query string, searchContent bool) ([]SearchResult, error) {
	convs, err := s.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	return Search(convs, query, searchContent), nil
}

// Search matches query against titles and, when searchContent is set,
// message content. Each conversation yields at most one result.
func Search(convs []models.Conversation, query string, searchContent bool) []SearchResult {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	if queryLower == "" {
		return nil
	}

	var results []SearchResult
	for _, conv := range convs {
		if strings.Contains(strings.ToLower(conv.Title), queryLower) {
			results = append(results, SearchResult{
				Conversation: conv,
				MatchSnippet: conv.Title,
				MatchField:   "title",
				MatchIndex:   -1,
			})
			continue
		}

		if !searchContent {
			continue
		}
		for i, msg := range conv.Messages {
			if strings.Contains(strings.ToLower(msg.Content), queryLower) {
				results = append(results, SearchResult{
					Conversation: conv,
					MatchSnippet: extractSnippet(msg.Content, queryLower, 100),
					MatchField:   "content",
					MatchIndex:   i,
				})
				break
			}
		}
	}

	return results
}

// extractSnippet returns up to maxLen runes around the first occurrence of
// query, with newlines flattened.
func extractSnippet(content, query string, maxLen int) string {
	runes := []rune(strings.Join(strings.Fields(content), " "))
	lower := []rune(strings.ToLower(string(runes)))
	needle := []rune(strings.ToLower(query))

	idx := runeIndex(lower, needle)
	if idx == -1 || len(lower) != len(runes) {
		idx = 0
	}

	half := maxLen / 2
	start := idx - half
	end := idx + len(needle) + half

	if start < 0 {
		start = 0
		end = maxLen
	}
	if end > len(runes) {
		end = len(runes)
		start = end - maxLen
		if start < 0 {
			start = 0
		}
	}

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet += "..."
	}
	return snippet
}

func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// FormatRelativeTime formats t relative to now, like "2h ago" or "yesterday"
func FormatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 48*time.Hour:
		return "yesterday"
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / 24 / 7)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	case diff < 365*24*time.Hour:
		months := int(diff.Hours() / 24 / 30)
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	default:
		return t.Format("2006-01-02")
	}
}
