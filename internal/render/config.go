package render

import (
	"os"

	"github.com/nurlabs/nurchat/internal/config"
)

// EnvStyle overrides the configured markdown style
const EnvStyle = "GLAMOUR_STYLE"

// OptionsFromConfig builds render options from user configuration.
// GLAMOUR_STYLE takes precedence over the config file.
func OptionsFromConfig(cfg config.Config, width int) Options {
	opts := FromMarkdownConfig(cfg.Markdown)
	if width > 0 {
		opts.Width = width
	}
	if style := os.Getenv(EnvStyle); style != "" {
		opts.Style = style
	}
	return opts
}
