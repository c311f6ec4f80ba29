package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/nurlabs/nurchat/internal/api"
	"github.com/nurlabs/nurchat/internal/config"
	"github.com/nurlabs/nurchat/internal/models"
	"github.com/nurlabs/nurchat/internal/tui"
)

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	RunChat(ctx context.Context, client api.ClientInterface, conv models.Conversation, opts tui.Options) error
	RunPicker(lister tui.ConversationLister) (tui.PickerResult, error)
}

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// Client is the platform API client. Nil builds one from config and the
	// stored token.
	Client api.ClientInterface

	// TUI is the terminal user interface.
	TUI TUIInterface

	// Logger is set by the root command before any subcommand runs.
	Logger *zap.Logger

	// Clipboard writes text to the system clipboard.
	Clipboard func(string) error

	// ReadPassword reads a line without echo from the terminal.
	ReadPassword func() (string, error)

	// IsTerminal reports whether stdout is a terminal.
	IsTerminal func() bool
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) RunChat(ctx context.Context, client api.ClientInterface, conv models.Conversation, opts tui.Options) error {
	return tui.Run(ctx, client, conv, opts)
}

func (d *DefaultTUI) RunPicker(lister tui.ConversationLister) (tui.PickerResult, error) {
	return tui.RunPicker(lister)
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		TUI:          &DefaultTUI{},
		Clipboard:    clipboard.WriteAll,
		ReadPassword: readPassword,
		IsTerminal:   isStdoutTTY,
	}
}

func (d *Dependencies) logger() *zap.Logger {
	if d == nil || d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *Dependencies) tui() TUIInterface {
	if d == nil || d.TUI == nil {
		return &DefaultTUI{}
	}
	return d.TUI
}

func (d *Dependencies) copyText(text string) error {
	if d == nil || d.Clipboard == nil {
		return clipboard.WriteAll(text)
	}
	return d.Clipboard(text)
}

func (d *Dependencies) isTerminal() bool {
	if d == nil || d.IsTerminal == nil {
		return isStdoutTTY()
	}
	return d.IsTerminal()
}

// loadConfig reads the config file and applies the --api-url flag. A broken
// config file is reported and the defaults are used.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (using defaults)\n", err)
	}
	if url, _ := cmd.Flags().GetString("api-url"); url != "" {
		cfg.APIURL = strings.TrimRight(url, "/")
	}
	return cfg
}

// getClient returns the injected client or builds one. The returned func
// closes a client built here and is a no-op for an injected one.
func getClient(cmd *cobra.Command, deps *Dependencies, cfg config.Config) (api.ClientInterface, func(), error) {
	if deps != nil && deps.Client != nil {
		return deps.Client, func() {}, nil
	}

	token, err := config.ResolveToken()
	if err != nil {
		return nil, nil, err
	}

	client, err := api.NewClient(
		api.WithBaseURL(cfg.APIURL),
		api.WithToken(token),
		api.WithTimeout(cfg.RequestTimeout()),
		api.WithLogger(deps.logger()),
		api.WithUserAgent("nurchat/"+Version),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, client.Close, nil
}

func readPassword() (string, error) {
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
