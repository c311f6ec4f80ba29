package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nurlabs/nurchat/internal/config"
	"github.com/nurlabs/nurchat/internal/history"
	"github.com/nurlabs/nurchat/internal/models"
	"github.com/nurlabs/nurchat/internal/notify"
	"github.com/nurlabs/nurchat/internal/render"
	"github.com/nurlabs/nurchat/internal/tui"
)

// NewChatCmd creates the interactive chat command
func NewChatCmd(deps *Dependencies) *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   "chat [conversation]",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

Without an argument a new conversation is created. A conversation can be
named by @last, @first, its index in 'nurchat history list', its id or a
unique part of its title. Use --pick to choose from a list.

Press Esc to cancel a reply that is streaming, and Esc or Ctrl+C to quit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) > 0 {
				ref = args[0]
			}
			return runChat(cmd, deps, ref, pick)
		},
	}

	cmd.Flags().BoolVarP(&pick, "pick", "p", false, "Choose the conversation from a list")
	return cmd
}

func runChat(cmd *cobra.Command, deps *Dependencies, ref string, pick bool) error {
	cfg := loadConfig(cmd)
	log := deps.logger()

	client, closeClient, err := getClient(cmd, deps, cfg)
	if err != nil {
		return err
	}
	defer closeClient()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	var conv *models.Conversation
	switch {
	case ref != "":
		conv, err = history.NewResolver(history.NewStore(client)).ResolveWithInfo(ctx, ref)
		if err != nil {
			return err
		}
	case pick:
		result, err := deps.tui().RunPicker(client)
		if err != nil {
			return fmt.Errorf("conversation picker failed: %w", err)
		}
		if !result.Confirmed {
			return nil
		}
		conv = result.Conversation
	}

	if conv == nil {
		spin := newSpinner(cmd.ErrOrStderr(), "Creating conversation")
		if deps.isTerminal() {
			spin.start()
		}
		conv, err = client.CreateConversation(ctx, "")
		if err != nil {
			spin.stopWithError()
			return fmt.Errorf("failed to create conversation: %w", err)
		}
		spin.stopWithError()
	}

	log.Info("chat opened", zap.String("chat_id", conv.ID), zap.Int("messages", len(conv.Messages)))
	return deps.tui().RunChat(ctx, client, *conv, chatOptions(cfg, deps, log))
}

// chatOptions maps user configuration onto the TUI's options
func chatOptions(cfg config.Config, deps *Dependencies, log *zap.Logger) tui.Options {
	return tui.Options{
		Render:    render.OptionsFromConfig(cfg, 0),
		Player:    notify.New(cfg.Sound, os.Stderr),
		Logger:    log,
		Debounce:  cfg.Debounce(),
		Clipboard: deps.copyText,
	}
}
