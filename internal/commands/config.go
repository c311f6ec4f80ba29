package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nurlabs/nurchat/internal/config"
	"github.com/nurlabs/nurchat/internal/render"
)

// NewConfigCmd creates a new config command
func NewConfigCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
		Long: `Show or change nurchat settings stored in config.json.

Settable keys: ` + strings.Join(config.Keys(), ", "),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			if tok, err := config.ResolveToken(); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", config.MaskToken(tok))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "token: (not logged in)")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// the file's values, without env or flag overrides
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := validateSetting(args[0], cfg); err != nil {
				return err
			}
			if err := config.SaveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.GetConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "themes",
		Short: "List markdown styles and TUI themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Markdown styles (markdown.style):")
			for _, s := range render.AvailableStyles() {
				fmt.Fprintf(out, "  %-12s %s\n", s.Name, s.Description)
			}
			fmt.Fprintln(out, "\nTUI themes (tui_theme):")
			for _, name := range render.TUIThemeNames() {
				theme, _ := render.GetTUIThemeByName(name)
				fmt.Fprintf(out, "  %-12s %s\n", name, theme.Description)
			}
			return nil
		},
	})

	return cmd
}

// validateSetting rejects theme names the renderers do not know
func validateSetting(key string, cfg config.Config) error {
	switch key {
	case "tui_theme":
		if _, ok := render.GetTUIThemeByName(cfg.TUITheme); !ok {
			return fmt.Errorf("unknown tui_theme %q (available: %s)", cfg.TUITheme, strings.Join(render.TUIThemeNames(), ", "))
		}
	case "markdown.style":
		if !render.IsStandardStyle(cfg.Markdown.Style) && !strings.HasSuffix(cfg.Markdown.Style, ".json") {
			return fmt.Errorf("unknown markdown.style %q (use a standard style or a .json style file)", cfg.Markdown.Style)
		}
	}
	return nil
}
