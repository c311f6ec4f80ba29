package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nurlabs/nurchat/internal/api"
	apierrors "github.com/nurlabs/nurchat/internal/errors"
	"github.com/nurlabs/nurchat/internal/models"
	"github.com/nurlabs/nurchat/internal/notify"
	"github.com/nurlabs/nurchat/internal/render"
	"github.com/nurlabs/nurchat/internal/session"
)

const toastDuration = 4 * time.Second

// Animation tick message
type animationTickMsg time.Time

// Message types for the TUI
type (
	sendDoneMsg struct {
		err error
	}
	switchedMsg struct {
		conv models.Conversation
		err  error
	}
	copiedMsg struct {
		err error
	}
	toastExpiredMsg struct {
		id int
	}
)

// Options configures the chat interface
type Options struct {
	Render   render.Options
	Player   notify.Player
	Logger   *zap.Logger
	Debounce time.Duration
	// Clipboard writes text to the system clipboard. Nil uses atotto/clipboard.
	Clipboard func(string) error
	// Phrase picks a thinking phrase index in [0, n). Nil is random.
	Phrase func(n int) int
}

type toast struct {
	id    int
	level session.Level
	text  string
}

// Model represents the chat TUI state
type Model struct {
	ctx    context.Context
	client api.ClientInterface
	ctrl   *session.Controller
	opts   Options

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// Conversation view
	conv     models.Conversation
	history  string // rendered messages, rebuilt on conversation or width change
	state    session.State
	busy     bool
	partial  string
	thinking string

	toast    toast
	toastSeq int

	picking bool
	picker  PickerModel

	ready          bool
	animationFrame int
	width          int
	height         int
}

// NewChatModel creates a chat model driving ctrl
func NewChatModel(ctx context.Context, client api.ClientInterface, ctrl *session.Controller, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.Render.Style == "" {
		opts.Render = render.DefaultOptions()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask a question..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	return Model{
		ctx:      ctx,
		client:   client,
		ctrl:     ctrl,
		opts:     opts,
		textarea: ta,
		spinner:  s,
		conv:     ctrl.Conversation(),
		state:    ctrl.State(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func animationTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	if m.picking {
		switch msg.(type) {
		case tea.KeyMsg, conversationsLoadedMsg:
			var pm tea.Model
			pm, cmd = m.picker.Update(msg)
			m.picker = pm.(PickerModel)
			return m, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		if m.picking {
			m.picker.width = msg.Width
			m.picker.height = msg.Height
		}

	case tea.KeyMsg:
		if handled, cmd := m.handleKey(msg); handled {
			return m, cmd
		}

	case stateMsg:
		m.state = msg.state
		if msg.state == session.Idle || msg.state == session.Failed {
			m.partial = ""
			m.refreshViewport()
		}

	case conversationMsg:
		m.conv = msg.conv
		if m.state == session.Reconciling {
			m.partial = ""
		}
		m.rebuildHistory()
		m.viewport.GotoBottom()

	case streamMsg:
		m.partial = msg.text
		m.refreshViewport()
		m.viewport.GotoBottom()

	case notifyMsg:
		cmds = append(cmds, m.showToast(msg.n.Level, msg.n.Text))
		if msg.n.Retryable && msg.n.Input != "" && strings.TrimSpace(m.textarea.Value()) == "" {
			m.textarea.SetValue(msg.n.Input)
		}

	case sendDoneMsg:
		m.busy = false
		m.partial = ""
		m.refreshViewport()
		m.textarea.Focus()
		if errors.Is(msg.err, context.Canceled) {
			cmds = append(cmds, m.showToast(session.LevelInfo, "Reply cancelled."))
		}

	case switchedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.showToast(session.LevelError, apierrors.UserMessage(msg.err)))
			break
		}
		m.conv = msg.conv
		m.partial = ""
		m.rebuildHistory()
		m.viewport.GotoBottom()

	case pickedMsg:
		m.picking = false
		switch {
		case !msg.result.Confirmed:
		case msg.result.IsNew:
			return m, m.newConversation()
		case msg.result.Conversation != nil:
			return m, m.switchTo(*msg.result.Conversation)
		}

	case copiedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.showToast(session.LevelError, fmt.Sprintf("Copy failed: %v", msg.err)))
		} else {
			cmds = append(cmds, m.showToast(session.LevelInfo, "Reply copied to clipboard."))
		}

	case toastExpiredMsg:
		if msg.id == m.toast.id {
			m.toast = toast{}
		}

	case spinner.TickMsg:
		if m.busy {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case animationTickMsg:
		if m.busy {
			m.animationFrame++
			cmds = append(cmds, animationTick())
		}
	}

	// only key presses reach the textarea so escape sequences do not leak in
	if !m.busy {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes shortcuts. It reports whether the key was consumed.
func (m *Model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.ctrl.Cancel()
		return true, tea.Quit

	case "esc":
		if m.busy {
			m.ctrl.Cancel()
			return true, m.showToast(session.LevelInfo, "Cancelling...")
		}
		return true, tea.Quit

	case "enter":
		if m.busy {
			return true, nil
		}
		input := strings.TrimSpace(m.textarea.Value())
		switch input {
		case "":
			return true, nil
		case "exit", "quit", "/exit", "/quit":
			return true, tea.Quit
		}
		return true, m.send(input)

	case "ctrl+n":
		if m.busy {
			return true, m.showToast(session.LevelWarn, apierrors.UserMessage(apierrors.ErrSessionBusy))
		}
		return true, m.newConversation()

	case "ctrl+o":
		if m.busy {
			return true, m.showToast(session.LevelWarn, apierrors.UserMessage(apierrors.ErrSessionBusy))
		}
		m.picking = true
		m.picker = newEmbeddedPicker(m.client, m.width, m.height)
		return true, m.picker.Init()

	case "ctrl+y":
		last := m.conv.LastAssistantMessage()
		if last == nil {
			return true, m.showToast(session.LevelInfo, "Nothing to copy yet.")
		}
		write, text := m.opts.Clipboard, render.PlainMessage(*last)
		return true, func() tea.Msg { return copiedMsg{err: write(text)} }
	}
	return false, nil
}

func (m *Model) send(input string) tea.Cmd {
	m.busy = true
	m.partial = ""
	m.thinking = pickPhrase(m.opts.Phrase)
	m.animationFrame = 0
	m.textarea.Reset()
	m.textarea.Blur()

	ctx, ctrl := m.ctx, m.ctrl
	return tea.Batch(
		func() tea.Msg { return sendDoneMsg{err: ctrl.Send(ctx, input)} },
		m.spinner.Tick,
		animationTick(),
	)
}

// newConversation creates a conversation on the server and switches to it.
// Switch blocks until any in-flight send has returned, so it runs as a command.
func (m Model) newConversation() tea.Cmd {
	ctx, client, ctrl := m.ctx, m.client, m.ctrl
	return func() tea.Msg {
		conv, err := client.CreateConversation(ctx, "")
		if err != nil {
			return switchedMsg{err: err}
		}
		ctrl.Switch(*conv)
		return switchedMsg{conv: *conv}
	}
}

func (m Model) switchTo(conv models.Conversation) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.Switch(conv)
		return switchedMsg{conv: conv}
	}
}

func (m *Model) showToast(level session.Level, text string) tea.Cmd {
	m.toastSeq++
	m.toast = toast{id: m.toastSeq, level: level, text: text}
	id := m.toastSeq
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

func (m *Model) layout() {
	headerHeight := 3
	inputHeight := 4
	statusHeight := 2
	vpHeight := m.height - headerHeight - inputHeight - statusHeight - 2
	if vpHeight < 5 {
		vpHeight = 5
	}
	contentWidth := m.width - 4

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		// letters belong to the input, so scrolling stays on paging keys
		m.viewport.KeyMap = viewport.KeyMap{
			PageUp:       key.NewBinding(key.WithKeys("pgup")),
			PageDown:     key.NewBinding(key.WithKeys("pgdown")),
			HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
			HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		}
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(contentWidth - 4)
	m.rebuildHistory()
}

func (m Model) bubbleWidth() int {
	w := m.viewport.Width - 6
	if w < 20 {
		w = 20
	}
	return w
}

// rebuildHistory re-renders every stored message
func (m *Model) rebuildHistory() {
	var sb strings.Builder
	width := m.bubbleWidth()

	for i, msg := range m.conv.Messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		if msg.Role == models.RoleUser {
			sb.WriteString(userLabelStyle.Render("● You") + "\n")
			sb.WriteString(userBubbleStyle.Width(width).Render(msg.Content))
		} else {
			sb.WriteString(m.renderAssistant(msg, width))
		}
		sb.WriteString("\n")
	}

	m.history = sb.String()
	m.refreshViewport()
}

func (m Model) renderAssistant(msg models.Message, width int) string {
	rendered, err := render.Message(msg, m.opts.Render.WithWidth(width-4))
	if err != nil {
		rendered = render.PlainMessage(msg)
	}
	rendered = strings.TrimRight(rendered, "\n")
	return assistantLabelStyle.Render("✦ Assistant") + "\n" + assistantBubbleStyle.Width(width).Render(rendered)
}

// refreshViewport combines the stored messages with the streamed reply
func (m *Model) refreshViewport() {
	content := m.history
	if m.partial != "" {
		content += "\n" + m.renderAssistant(models.Message{Role: models.RoleAssistant, Content: m.partial}, m.bubbleWidth()) + "\n"
	}
	m.viewport.SetContent(content)
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}
	if m.picking {
		return m.picker.View()
	}

	contentWidth := m.width - 4
	var sections []string

	// header
	headerParts := []string{
		titleStyle.Render("✦ " + m.conv.DisplayTitle()),
	}
	if m.busy {
		headerParts = append(headerParts, hintStyle.Render("  •  "), subtitleStyle.Render(m.state.String()))
	}
	sections = append(sections, headerStyle.Width(contentWidth).Render(lipgloss.JoinHorizontal(lipgloss.Center, headerParts...)))

	// messages
	messages := m.viewport.View()
	if len(m.conv.Messages) == 0 && m.partial == "" {
		messages = m.renderWelcome()
	}
	sections = append(sections, messagesAreaStyle.Width(contentWidth).Height(m.viewport.Height).Render(messages))

	// input
	var input string
	switch {
	case m.busy && m.partial == "":
		input = m.renderThinking()
	case m.busy:
		input = m.spinner.View() + hintStyle.Render(" Receiving reply... esc to cancel")
	default:
		input = lipgloss.JoinVertical(lipgloss.Left, inputLabelStyle.Render("You"), m.textarea.View())
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(input))

	sections = append(sections, m.renderStatusBar(contentWidth))
	if m.toast.text != "" {
		sections = append(sections, m.renderToast())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderWelcome() string {
	width := m.viewport.Width - 2
	content := lipgloss.JoinVertical(
		lipgloss.Center,
		welcomeIconStyle.Width(width).Render("✦"),
		"",
		welcomeTitleStyle.Width(width).Render(m.conv.DisplayTitle()),
		"",
		welcomeStyle.Width(width).Render("Ask a question to start the conversation"),
	)

	top := (m.viewport.Height - lipgloss.Height(content)) / 2
	if top < 0 {
		top = 0
	}
	return strings.Repeat("\n", top) + content
}

// renderThinking draws the animated indicator shown before the first token
func (m Model) renderThinking() string {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
	frame := m.animationFrame

	spin := lipgloss.NewStyle().
		Foreground(gradientColors[frame%len(gradientColors)]).
		Bold(true).
		Render(chars[frame%len(chars)])

	var dots strings.Builder
	n := (frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < n {
			dots.WriteString(lipgloss.NewStyle().Foreground(gradientColors[(frame+i)%len(gradientColors)]).Render("●"))
		} else {
			dots.WriteString(lipgloss.NewStyle().Foreground(colorTextMute).Render("○"))
		}
	}

	text := lipgloss.NewStyle().Foreground(colorText).Render(" " + m.thinking + " ")
	return spin + text + dots.String()
}

func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"Esc", "Cancel/Quit"},
		{"^N", "New"},
		{"^O", "Open"},
		{"^Y", "Copy"},
	}

	items := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(strings.Join(items, "  │  "))
}

func (m Model) renderToast() string {
	switch m.toast.level {
	case session.LevelError:
		return toastErrorStyle.Render("✗ " + m.toast.text)
	case session.LevelWarn:
		return toastWarnStyle.Render("⚠ " + m.toast.text)
	default:
		return toastInfoStyle.Render("✓ " + m.toast.text)
	}
}

// Run opens the chat interface on conv and blocks until the user quits
func Run(ctx context.Context, client api.ClientInterface, conv models.Conversation, opts Options) error {
	bridge := &programBridge{}
	ctrl := session.New(client, conv,
		session.WithObserver(bridge),
		session.WithPlayer(opts.Player),
		session.WithLogger(opts.Logger),
		session.WithDebounce(opts.Debounce),
	)

	p := tea.NewProgram(
		NewChatModel(ctx, client, ctrl, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	bridge.attach(p.Send)

	_, err := p.Run()

	// a send may still be unwinding; wait for it now that the event loop is gone
	ctrl.Close()
	return err
}
