package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nurlabs/nurchat/internal/history"
	"github.com/nurlabs/nurchat/internal/models"
)

// ConversationLister loads the conversations offered by the picker
type ConversationLister interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
}

// conversationsLoadedMsg is sent when the picker's list arrives
type conversationsLoadedMsg struct {
	conversations []models.Conversation
	err           error
}

// pickedMsg reports the picker's outcome to an embedding model
type pickedMsg struct {
	result PickerResult
}

// PickerResult is what the user chose
type PickerResult struct {
	Conversation *models.Conversation // nil for new conversation
	IsNew        bool
	Confirmed    bool
}

// PickerModel is a filterable conversation list. Standalone pickers quit the
// program on selection; embedded ones emit a pickedMsg instead.
type PickerModel struct {
	lister     ConversationLister
	standalone bool
	now        func() time.Time

	conversations []models.Conversation
	filter        string
	cursor        int

	loading bool
	err     error
	result  PickerResult

	width  int
	height int
	ready  bool
}

// NewPickerModel creates a picker that loads its list from lister
func NewPickerModel(lister ConversationLister) PickerModel {
	return PickerModel{
		lister:     lister,
		standalone: true,
		now:        time.Now,
		loading:    true,
	}
}

func newEmbeddedPicker(lister ConversationLister, width, height int) PickerModel {
	m := NewPickerModel(lister)
	m.standalone = false
	m.width = width
	m.height = height
	m.ready = true
	return m
}

// Init starts loading conversations
func (m PickerModel) Init() tea.Cmd {
	return m.loadConversations()
}

func (m PickerModel) loadConversations() tea.Cmd {
	lister := m.lister
	return func() tea.Msg {
		convs, err := lister.ListConversations(context.Background())
		if err != nil {
			return conversationsLoadedMsg{err: err}
		}
		history.SortByActivity(convs)
		return conversationsLoadedMsg{conversations: convs}
	}
}

// filtered returns the conversations matching the filter by title or content
func (m PickerModel) filtered() []models.Conversation {
	if m.filter == "" {
		return m.conversations
	}
	needle := strings.ToLower(m.filter)
	var out []models.Conversation
	for _, conv := range m.conversations {
		if strings.Contains(strings.ToLower(conv.DisplayTitle()), needle) {
			out = append(out, conv)
			continue
		}
		for _, msg := range conv.Messages {
			if strings.Contains(strings.ToLower(msg.Content), needle) {
				out = append(out, conv)
				break
			}
		}
	}
	return out
}

// Update handles messages and updates the model
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case conversationsLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.conversations = msg.conversations

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.finish(PickerResult{})
		}
		if m.loading {
			return m, nil
		}

		// item 0 is "New Conversation"
		count := len(m.filtered()) + 1

		switch msg.String() {
		case "esc":
			return m, m.finish(PickerResult{})

		case "up", "ctrl+p":
			m.cursor--
			if m.cursor < 0 {
				m.cursor = count - 1
			}

		case "down", "ctrl+n":
			m.cursor++
			if m.cursor >= count {
				m.cursor = 0
			}

		case "home":
			m.cursor = 0

		case "end":
			m.cursor = count - 1

		case "enter":
			if m.cursor == 0 {
				return m, m.finish(PickerResult{IsNew: true, Confirmed: true})
			}
			conv := m.filtered()[m.cursor-1]
			return m, m.finish(PickerResult{Conversation: &conv, Confirmed: true})

		case "backspace":
			if m.filter != "" {
				runes := []rune(m.filter)
				m.filter = string(runes[:len(runes)-1])
				m.cursor = 0
			}

		default:
			switch msg.Type {
			case tea.KeySpace:
				m.filter += " "
				m.cursor = 0
			case tea.KeyRunes:
				m.filter += string(msg.Runes)
				m.cursor = 0
			}
		}
	}

	return m, nil
}

func (m *PickerModel) finish(result PickerResult) tea.Cmd {
	m.result = result
	if m.standalone {
		return tea.Quit
	}
	return func() tea.Msg { return pickedMsg{result: result} }
}

// Result returns the selection once the picker has finished
func (m PickerModel) Result() PickerResult {
	return m.result
}

// View renders the picker
func (m PickerModel) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	width := m.width - 8
	if width < 40 {
		width = 40
	}

	var content strings.Builder
	content.WriteString(pickerTitleStyle.Render("Select Conversation"))
	content.WriteString("\n\n")

	if m.filter != "" {
		content.WriteString(inputLabelStyle.Render("Filter:") + m.filter + "_")
		content.WriteString("\n\n")
	}

	switch {
	case m.loading:
		content.WriteString(loadingStyle.Render("  Loading conversations..."))
	case m.err != nil:
		content.WriteString(errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	default:
		content.WriteString(m.renderList(width - 6))
	}

	content.WriteString("\n\n")
	shortcuts := []string{
		statusKeyStyle.Render("↑↓") + statusDescStyle.Render(" Navigate"),
		statusKeyStyle.Render("Enter") + statusDescStyle.Render(" Open"),
		statusKeyStyle.Render("Esc") + statusDescStyle.Render(" Cancel"),
	}
	content.WriteString(strings.Join(shortcuts, "  │  "))

	return pickerPanelStyle.Width(width).Render(content.String())
}

func (m PickerModel) renderList(width int) string {
	convs := m.filtered()
	items := []string{m.renderItem(0, "+ New Conversation", "")}

	if len(convs) == 0 {
		if m.filter != "" {
			items = append(items, hintStyle.Render("  No conversations match filter"))
		} else {
			items = append(items, hintStyle.Render("  No saved conversations"))
		}
		return lipgloss.JoinVertical(lipgloss.Left, items...)
	}

	maxItems := max(5, m.height-14)
	offset := 0
	if m.cursor > maxItems {
		offset = m.cursor - maxItems
	}
	end := min(offset+maxItems, len(convs))

	if offset > 0 {
		items = append(items, hintStyle.Render("  ↑ more above"))
	}
	for i := offset; i < end; i++ {
		conv := convs[i]
		meta := fmt.Sprintf("%d messages", len(conv.Messages))
		if age := formatAge(history.LastActivity(conv), m.now()); age != "" {
			meta += " · " + age
		}
		items = append(items, m.renderItem(i+1, truncate(conv.DisplayTitle(), width-24), meta))
	}
	if end < len(convs) {
		items = append(items, hintStyle.Render("  ↓ more below"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (m PickerModel) renderItem(index int, title, meta string) string {
	cursor := "  "
	style := pickerItemStyle
	if index == m.cursor {
		cursor = pickerCursorStyle.Render("▸ ")
		style = pickerSelectedStyle
	}
	line := cursor + style.Render(title)
	if meta != "" {
		line += pickerMetaStyle.Render("  " + meta)
	}
	return line
}

// formatAge renders t relative to now, "" for a zero time
func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// RunPicker shows the picker full screen and returns the user's choice
func RunPicker(lister ConversationLister) (PickerResult, error) {
	p := tea.NewProgram(NewPickerModel(lister), tea.WithAltScreen())

	final, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}
	if pm, ok := final.(PickerModel); ok {
		return pm.Result(), nil
	}
	return PickerResult{}, nil
}
