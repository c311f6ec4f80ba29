package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/nurlabs/nurchat/internal/api"
	"github.com/nurlabs/nurchat/internal/config"
	apierrors "github.com/nurlabs/nurchat/internal/errors"
	"github.com/nurlabs/nurchat/internal/history"
	"github.com/nurlabs/nurchat/internal/models"
	"github.com/nurlabs/nurchat/internal/notify"
	"github.com/nurlabs/nurchat/internal/render"
	"github.com/nurlabs/nurchat/internal/session"
)

// Gradient colors for animation
var gradientColors = []lipgloss.Color{
	lipgloss.Color("#ff6b6b"), // Red
	lipgloss.Color("#feca57"), // Yellow
	lipgloss.Color("#48dbfb"), // Cyan
	lipgloss.Color("#ff9ff3"), // Pink
	lipgloss.Color("#54a0ff"), // Blue
	lipgloss.Color("#5f27cd"), // Purple
	lipgloss.Color("#00d2d3"), // Teal
	lipgloss.Color("#1dd1a1"), // Green
}

var (
	colorText     = lipgloss.Color("#c0caf5")
	colorTextDim  = lipgloss.Color("#565f89")
	colorTextMute = lipgloss.Color("#3b4261")
	colorSuccess  = lipgloss.Color("#9ece6a")
	colorWarning  = lipgloss.Color("#e0af68")
	colorError    = lipgloss.Color("#f7768e")
	colorPrimary  = lipgloss.Color("#7aa2f7")
)

var (
	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	dimStyle     = lipgloss.NewStyle().Foreground(colorTextDim)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarning)
)

// spinner handles the animated loading indicator
type spinner struct {
	w       io.Writer
	message string
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	frame   int
	started bool
	stopped bool // Flag to prevent double-close
}

// newSpinner creates a new animated spinner drawing on w
func newSpinner(w io.Writer, message string) *spinner {
	return &spinner{
		w:       w,
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start begins the animation
func (s *spinner) start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		// Hide cursor
		fmt.Fprint(s.w, "\033[?25l")

		for {
			select {
			case <-s.stop:
				// Clear line and show cursor
				fmt.Fprint(s.w, "\r\033[K\033[?25h")
				return
			case <-ticker.C:
				s.mu.Lock()
				s.render()
				s.frame++
				s.mu.Unlock()
			}
		}
	}()
}

// render draws the current animation frame
func (s *spinner) render() {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

	spinIdx := s.frame % len(chars)
	spinColor := gradientColors[s.frame%len(gradientColors)]
	spinnerChar := lipgloss.NewStyle().Foreground(spinColor).Bold(true).Render(chars[spinIdx])

	var dots strings.Builder
	numDots := (s.frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < numDots {
			dotColor := gradientColors[(s.frame+i)%len(gradientColors)]
			dots.WriteString(lipgloss.NewStyle().Foreground(dotColor).Render("●"))
		} else {
			dots.WriteString(lipgloss.NewStyle().Foreground(colorTextMute).Render("○"))
		}
	}

	msg := lipgloss.NewStyle().Foreground(colorText).Render(s.message)
	fmt.Fprintf(s.w, "\r\033[K%s %s %s", spinnerChar, msg, dots.String())
}

// stopOnce closes the stop channel and waits for the animation to end.
// Safe to call more than once, and on a spinner that never started.
func (s *spinner) stopOnce() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	close(s.stop)
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

// stopWithSuccess stops the spinner and shows success message
func (s *spinner) stopWithSuccess(message string) {
	s.stopOnce()

	checkmark := lipgloss.NewStyle().Foreground(colorSuccess).Bold(true).Render("✓")
	fmt.Fprintf(s.w, "%s %s\n", checkmark, successStyle.Render(message))
}

// stopWithError stops the spinner
func (s *spinner) stopWithError() {
	s.stopOnce()
}

// askOptions are the ask command's flags
type askOptions struct {
	raw    bool
	output string
	file   string
	copy   bool
	chat   string
}

// NewAskCmd creates the one-shot question command
func NewAskCmd(deps *Dependencies) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and stream the reply",
		Long: `Ask a single question. The reply is printed as it streams in, followed by
the footnotes of any verses it cites.

The question is taken from --file, the arguments, or stdin, in that order.
A new conversation is created unless --chat names an existing one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := readQuestion(cmd, args, opts.file)
			if err != nil {
				return err
			}
			return runQuery(cmd, deps, question, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print only the reply text, without decoration")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Save the reply to a file instead of printing it")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read the question from a file")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "Copy the reply to the clipboard")
	cmd.Flags().StringVar(&opts.chat, "chat", "", "Continue an existing conversation (@last, index, id or title)")

	return cmd
}

// readQuestion returns the question from file, args or stdin
func readQuestion(cmd *cobra.Command, args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil
	}

	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	if hasStdin(cmd) {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	return "", nil
}

// hasStdin reports whether input is piped in rather than typed at a terminal
func hasStdin(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return true
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// streamPrinter writes the part of each published snapshot that has not
// been written yet. Snapshots only ever grow within one reply.
type streamPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	printed string
	onFirst func()
}

func (p *streamPrinter) update(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !strings.HasPrefix(text, p.printed) || len(text) == len(p.printed) {
		return
	}
	if p.printed == "" && p.onFirst != nil {
		p.onFirst()
	}
	_, _ = io.WriteString(p.w, text[len(p.printed):])
	p.printed = text
}

func (p *streamPrinter) text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}

// commandContext returns the command's context, cancelled on interrupt
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}

// runQuery sends question and streams the reply to stdout. With --raw only
// the reply text and plain footnotes are printed.
func runQuery(cmd *cobra.Command, deps *Dependencies, question string, opts askOptions) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return fmt.Errorf("question cannot be empty")
	}

	cfg := loadConfig(cmd)
	log := deps.logger()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	decorated := !opts.raw && deps.isTerminal()

	client, closeClient, err := getClient(cmd, deps, cfg)
	if err != nil {
		return err
	}
	defer closeClient()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	conv, err := openConversation(ctx, client, opts.chat)
	if err != nil {
		return err
	}
	log.Debug("asking", zap.String("chat_id", conv.ID), zap.Int("question_len", len(question)))

	spin := newSpinner(errOut, "Waiting for the assistant")
	if decorated {
		spin.start()
	}

	var ctrl *session.Controller
	var warnings []string
	printer := &streamPrinter{w: out}
	if opts.output != "" {
		printer.w = io.Discard
	} else {
		printer.onFirst = func() {
			spin.stopWithError()
			if decorated {
				fmt.Fprintln(out, assistantLabelStyle.Render("✦ Assistant"))
			}
		}
	}

	ctrl = session.New(client, *conv,
		session.WithLogger(log),
		session.WithDebounce(cfg.Debounce()),
		session.WithPlayer(notify.New(cfg.Sound && decorated, errOut)),
		session.WithObserver(session.ObserverFuncs{
			OnStream: printer.update,
			OnState: func(s session.State) {
				// the tail of a reply arrives after the last debounced publish
				if s == session.Reconciling {
					printer.update(ctrl.Partial())
				}
			},
			OnNotify: func(n session.Notification) {
				if n.Level == session.LevelWarn {
					warnings = append(warnings, n.Text)
				}
			},
		}),
	)

	sendErr := ctrl.Send(ctx, question)
	ctrl.Close()
	spin.stopWithError()

	if sendErr != nil && !errors.Is(sendErr, apierrors.ErrIncompleteStream) {
		if printer.text() != "" {
			fmt.Fprintln(out)
		}
		if errors.Is(sendErr, context.Canceled) {
			return fmt.Errorf("cancelled")
		}
		return sendErr
	}

	reply := ctrl.Conversation().LastAssistantMessage()
	if reply == nil {
		reply = &models.Message{Role: models.RoleAssistant, Content: strings.TrimSpace(printer.text())}
	}
	footnotes := render.OrderFootnotes(reply.Content, reply.Footnotes)

	if opts.output != "" {
		content := strings.TrimSpace(reply.Content) + render.FootnotesMarkdown(footnotes) + "\n"
		if err := os.WriteFile(opts.output, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !opts.raw {
			fmt.Fprintln(errOut, successStyle.Render(fmt.Sprintf("✓ Reply saved to %s", opts.output)))
		}
	} else {
		if printer.text() == "" {
			fmt.Fprint(out, strings.TrimSpace(reply.Content))
		}
		fmt.Fprintln(out)
		printFootnotes(out, cfg, footnotes, decorated)
	}

	for _, w := range warnings {
		fmt.Fprintln(errOut, warnStyle.Render("⚠ "+w))
	}

	if opts.copy || cfg.CopyToClipboard {
		if err := deps.copyText(render.PlainMessage(*reply)); err != nil {
			fmt.Fprintln(errOut, warnStyle.Render(fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err)))
		} else if !opts.raw {
			fmt.Fprintln(errOut, successStyle.Render("✓ Copied to clipboard"))
		}
	}

	if decorated {
		fmt.Fprintln(errOut, dimStyle.Render(fmt.Sprintf("Continue with: nurchat chat %s", conv.ID)))
	}

	return nil
}

// openConversation resolves ref, or creates a new conversation when ref is empty
func openConversation(ctx context.Context, client api.ClientInterface, ref string) (*models.Conversation, error) {
	if ref == "" {
		conv, err := client.CreateConversation(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return conv, nil
	}

	resolver := history.NewResolver(history.NewStore(client))
	conv, err := resolver.ResolveWithInfo(ctx, ref)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func printFootnotes(w io.Writer, cfg config.Config, footnotes []models.Footnote, decorated bool) {
	if len(footnotes) == 0 {
		return
	}
	if !decorated {
		fmt.Fprint(w, render.FootnotesPlain(footnotes))
		return
	}

	opts := render.OptionsFromConfig(cfg, getTerminalWidth()-4)
	rendered, err := render.Markdown(render.FootnotesMarkdown(footnotes), opts)
	if err != nil {
		fmt.Fprint(w, render.FootnotesPlain(footnotes))
		return
	}
	fmt.Fprintln(w, strings.TrimRight(rendered, "\n"))
}

// getTerminalWidth returns the terminal width or a default value
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // default width
	}
	return width
}

// isStdoutTTY returns true if stdout is connected to a terminal
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// formatErrorMessage formats an error with additional context from structured errors
func formatErrorMessage(err error, context string) string {
	if err == nil {
		return ""
	}

	errorStyle := lipgloss.NewStyle().Foreground(colorError)

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %v", context, err)))

	if status := apierrors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}

	if endpoint := apierrors.GetEndpoint(err); endpoint != "" {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  Endpoint: %s", endpoint)))
	}

	if body := apierrors.GetResponseBody(err); body != "" {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n\n  %s", strings.ReplaceAll(body, "\n", "\n  "))))
	} else {
		switch {
		case errors.Is(err, apierrors.ErrNoToken), apierrors.IsAuthError(err):
			sb.WriteString(dimStyle.Render("\n  Hint: Run 'nurchat login' to store a fresh access token"))
		case apierrors.IsNotFound(err):
			sb.WriteString(dimStyle.Render("\n  Hint: Run 'nurchat history list' to see your conversations"))
		case apierrors.IsNetworkError(err):
			sb.WriteString(dimStyle.Render("\n  Hint: Check your internet connection and the api_url setting"))
		}
	}

	return sb.String()
}
