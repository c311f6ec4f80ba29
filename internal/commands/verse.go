package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nurlabs/nurchat/internal/models"
)

var verseRefStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)

// NewVerseCmd creates the verse lookup command
func NewVerseCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "verse <surah:ayah>...",
		Short: "Look up verses by reference",
		Long: `Look up one or more verses by surah:ayah reference.

Arguments that are not plain references are scanned for citations such as
"(Al-Baqarah 2:255)" or "(4:135-136)", and every verse they name is shown.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := verseRefs(args)
			if err != nil {
				return err
			}

			cfg := loadConfig(cmd)
			client, closeClient, err := getClient(cmd, deps, cfg)
			if err != nil {
				return err
			}
			defer closeClient()

			decorated := deps.isTerminal()
			out := cmd.OutOrStdout()
			for i, ref := range refs {
				verse, err := client.FindVerse(cmd.Context(), ref.String())
				if err != nil {
					return fmt.Errorf("verse %s: %w", ref, err)
				}

				if i > 0 {
					fmt.Fprintln(out)
				}
				label := "(" + verse.Reference + ")"
				if decorated {
					label = verseRefStyle.Render(label)
				}
				fmt.Fprintln(out, label)
				fmt.Fprintln(out, verse.Arabic)
				if verse.Translation != "" {
					fmt.Fprintln(out, verse.Translation)
				}
			}
			return nil
		},
	}
}

// verseRefs parses each argument as a reference, falling back to scanning
// it for citations
func verseRefs(args []string) ([]models.Reference, error) {
	var refs []models.Reference
	for _, arg := range args {
		if ref, err := models.ParseReference(arg); err == nil {
			refs = append(refs, ref)
			continue
		}
		found := models.ExtractReferences(arg)
		if len(found) == 0 {
			return nil, fmt.Errorf("no verse reference in %q (expected surah:ayah)", strings.TrimSpace(arg))
		}
		refs = append(refs, found...)
	}
	return refs, nil
}
