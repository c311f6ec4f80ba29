package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nurlabs/nurchat/internal/history"
	"github.com/nurlabs/nurchat/internal/models"
	"github.com/nurlabs/nurchat/internal/render"
)

// NewHistoryCmd creates the history command group
func NewHistoryCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage conversation history",
		Long: `View and manage the conversations stored on the platform.

` + history.ListAliases(),
	}

	cmd.AddCommand(newHistoryListCmd(deps))
	cmd.AddCommand(newHistoryShowCmd(deps))
	cmd.AddCommand(newHistoryRenameCmd(deps))
	cmd.AddCommand(newHistoryDeleteCmd(deps))
	cmd.AddCommand(newHistoryExportCmd(deps))
	cmd.AddCommand(newHistorySearchCmd(deps))
	return cmd
}

// withStore runs fn with a store over the configured client
func withStore(cmd *cobra.Command, deps *Dependencies, fn func(store *history.Store) error) error {
	cfg := loadConfig(cmd)
	client, closeClient, err := getClient(cmd, deps, cfg)
	if err != nil {
		return err
	}
	defer closeClient()
	return fn(history.NewStore(client))
}

func newHistoryListCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, deps, func(store *history.Store) error {
				conversations, err := store.ListConversations(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list conversations: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(conversations) == 0 {
					fmt.Fprintln(out, "No conversations found.")
					return nil
				}

				now := time.Now()
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "#\tID\tTITLE\tMESSAGES\tACTIVE")
				_, _ = fmt.Fprintln(w, "-\t--\t-----\t--------\t------")
				for i, conv := range conversations {
					_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
						i+1, conv.ID, truncate(conv.DisplayTitle(), 40), len(conv.Messages),
						history.FormatRelativeTime(history.LastActivity(conv), now))
				}
				return w.Flush()
			})
		},
	}
}

func newHistoryShowCmd(deps *Dependencies) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "show <conversation>",
		Short: "Show a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, deps, func(store *history.Store) error {
				conv, err := history.NewResolver(store).ResolveWithInfo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printConversation(cmd, conv, full)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Do not shorten long messages")
	return cmd
}

func printConversation(cmd *cobra.Command, conv *models.Conversation, full bool) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "ID: %s\n", conv.ID)
	fmt.Fprintf(out, "Title: %s\n", conv.DisplayTitle())
	if !conv.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created: %s\n", conv.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(out, "Messages: %d\n", len(conv.Messages))
	fmt.Fprintln(out)

	for i, msg := range conv.Messages {
		role := "You"
		if msg.Role == models.RoleAssistant {
			role = "Assistant"
		}
		if msg.Timestamp.IsZero() {
			fmt.Fprintf(out, "[%d] %s:\n", i+1, role)
		} else {
			fmt.Fprintf(out, "[%d] %s (%s):\n", i+1, role, msg.Timestamp.Format("15:04"))
		}

		content := strings.TrimSpace(msg.Content)
		if !full {
			content = truncate(content, 500)
		}
		fmt.Fprintf(out, "  %s\n", strings.ReplaceAll(content, "\n", "\n  "))

		if msg.Role == models.RoleAssistant && len(msg.Footnotes) > 0 {
			fmt.Fprint(out, strings.ReplaceAll(render.FootnotesPlain(msg.Footnotes), "\n", "\n  "))
		}
		fmt.Fprintln(out)
	}
}

func newHistoryRenameCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <conversation> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args[1:], " ")
			return withStore(cmd, deps, func(store *history.Store) error {
				id, err := history.NewResolver(store).Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := store.UpdateTitle(cmd.Context(), id, title); err != nil {
					return fmt.Errorf("failed to rename: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", id, strings.TrimSpace(title))
				return nil
			})
		},
	}
}

func newHistoryDeleteCmd(deps *Dependencies) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <conversation>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, deps, func(store *history.Store) error {
				conv, err := history.NewResolver(store).ResolveWithInfo(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				if !yes && !confirm(cmd, fmt.Sprintf("Delete %q (%s)?", conv.DisplayTitle(), conv.ID)) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}

				if err := store.DeleteConversation(cmd.Context(), conv.ID); err != nil {
					return fmt.Errorf("failed to delete: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation: %s\n", conv.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question on the command's input
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", question)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func newHistoryExportCmd(deps *Dependencies) *cobra.Command {
	var (
		format       string
		output       string
		noFootnotes  bool
		noTimestamps bool
	)

	cmd := &cobra.Command{
		Use:   "export <conversation>",
		Short: "Export a conversation as Markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exportFormat, err := history.ParseExportFormat(format)
			if err != nil {
				return err
			}
			opts := history.ExportOptions{
				Format:            exportFormat,
				IncludeFootnotes:  !noFootnotes,
				IncludeTimestamps: !noTimestamps,
			}

			return withStore(cmd, deps, func(store *history.Store) error {
				id, err := history.NewResolver(store).Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, err := store.Export(cmd.Context(), id, opts)
				if err != nil {
					return fmt.Errorf("failed to export: %w", err)
				}

				if output == "" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("failed to write output file: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", id, output)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "markdown", "Export format (markdown or json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().BoolVar(&noFootnotes, "no-footnotes", false, "Leave out verse footnotes")
	cmd.Flags().BoolVar(&noTimestamps, "no-timestamps", false, "Leave out message times")
	return cmd
}

func newHistorySearchCmd(deps *Dependencies) *cobra.Command {
	var content bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search conversation titles, and optionally messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withStore(cmd, deps, func(store *history.Store) error {
				results, err := store.SearchConversations(cmd.Context(), query, content)
				if err != nil {
					return fmt.Errorf("failed to search: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintf(out, "No conversations match %q.\n", query)
					return nil
				}
				for _, r := range results {
					fmt.Fprintf(out, "%s  %s\n", r.Conversation.ID, r.Conversation.DisplayTitle())
					if r.MatchField == "content" {
						fmt.Fprintf(out, "    [%d] %s\n", r.MatchIndex+1, r.MatchSnippet)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&content, "content", "c", false, "Also search message text")
	return cmd
}

// truncate shortens s to n runes, adding an ellipsis when cut
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
