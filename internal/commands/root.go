// Package commands provides CLI commands for nurchat.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nurlabs/nurchat/internal/config"
	"github.com/nurlabs/nurchat/internal/logging"
	"github.com/nurlabs/nurchat/internal/render"
	"github.com/nurlabs/nurchat/internal/tui"
)

var (
	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

var (
	defaultDeps = NewDependencies()

	// rootCmd represents the base command
	rootCmd = NewRootCmd(defaultDeps)
)

// NewRootCmd builds the command tree around deps
func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps == nil {
		deps = NewDependencies()
	}

	cmd := &cobra.Command{
		Use:   "nurchat [question]",
		Short: "Terminal client for the assistant chat platform",
		Long: `nurchat talks to the assistant chat platform from your terminal. Replies
stream in as they are written, and verse citations come with their footnotes.

Examples:
  nurchat login                         Store your access token
  nurchat chat                          Start an interactive chat
  nurchat chat @last                    Continue the most recent conversation
  nurchat "What does 2:255 say?"        Ask a single question
  nurchat ask -f question.md            Read the question from a file
  cat question.md | nurchat ask         Read the question from stdin
  nurchat history list                  List your conversations`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd, deps)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "nurchat %s (built %s)\n", Version, BuildTime)
				return nil
			}

			question, err := readQuestion(cmd, args, "")
			if err != nil {
				return err
			}
			if strings.TrimSpace(question) == "" {
				return cmd.Help()
			}
			return runQuery(cmd, deps, question, askOptions{})
		},
	}

	cmd.PersistentFlags().String("api-url", "", "Backend base URL (overrides config and NURCHAT_API_URL)")
	cmd.PersistentFlags().Bool("verbose", false, "Write debug logs")
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")

	cmd.AddCommand(NewChatCmd(deps))
	cmd.AddCommand(NewAskCmd(deps))
	cmd.AddCommand(NewHistoryCmd(deps))
	cmd.AddCommand(NewVerseCmd(deps))
	cmd.AddCommand(NewLoginCmd(deps))
	cmd.AddCommand(NewLogoutCmd(deps))
	cmd.AddCommand(NewConfigCmd(deps))

	return cmd
}

// setup configures logging and the TUI theme before any command runs. The
// logger writes to the log file because the terminal belongs to the TUI.
func setup(cmd *cobra.Command, deps *Dependencies) error {
	cfg := loadConfig(cmd)
	render.SetTUITheme(cfg.TUITheme)
	tui.UpdateTheme()

	if deps.Logger != nil {
		return nil
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logDir, err := config.GetLogDir()
	if err != nil {
		return err
	}

	logger, _, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Verbose: verbose,
		Dir:     logDir,
	})
	if err != nil {
		// logging is best effort; the command still runs
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: logging disabled: %v\n", err)
		deps.Logger = logging.Nop()
		return nil
	}
	deps.Logger = logger.With(
		zap.String("command", cmd.CommandPath()),
		zap.String("version", Version),
	)
	return nil
}

// Execute runs the root command
func Execute() {
	err := rootCmd.Execute()
	if defaultDeps.Logger != nil {
		_ = defaultDeps.Logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Error"))
		os.Exit(1)
	}
}
