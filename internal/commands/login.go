package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nurlabs/nurchat/internal/config"
)

// NewLoginCmd creates the login command
func NewLoginCmd(deps *Dependencies) *cobra.Command {
	var (
		token      string
		importPath string
		verify     bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store your access token",
		Long: `Store the bearer token used to talk to the platform.

The token is read from --token, from a file with --import, from stdin when
it is piped in, or typed at a hidden prompt. Files may hold the bare token,
{"token": "..."} or the {"access_token": "..."} response of the login
endpoint.

NURCHAT_TOKEN, when set, takes precedence over the stored token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if importPath != "" {
				if err := config.ImportCredentials(importPath); err != nil {
					return fmt.Errorf("failed to import token: %w", err)
				}
			} else {
				tok, err := readToken(cmd, deps, token)
				if err != nil {
					return err
				}
				if err := config.SaveCredentials(&config.Credentials{Token: tok}); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
			}

			creds, err := config.LoadCredentials()
			if err != nil {
				return err
			}
			path, _ := config.GetCredentialsPath()
			deps.logger().Info("token stored", zap.String("path", path))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Token %s saved to %s\n", config.MaskToken(creds.Token), path)

			if verify {
				return verifyLogin(cmd, deps)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Access token")
	cmd.Flags().StringVar(&importPath, "import", "", "Read the token from a file")
	cmd.Flags().BoolVar(&verify, "verify", true, "Check the token against the backend")
	return cmd
}

// readToken returns the token from the flag, piped stdin or a hidden prompt
func readToken(cmd *cobra.Command, deps *Dependencies, flagValue string) (string, error) {
	if tok := strings.TrimSpace(flagValue); tok != "" {
		return tok, nil
	}

	if hasStdin(cmd) {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if tok := strings.TrimSpace(line); tok != "" {
			return tok, nil
		}
		if err != nil {
			return "", fmt.Errorf("no token on stdin")
		}
	}

	if deps == nil || deps.ReadPassword == nil {
		return "", fmt.Errorf("no token given; use --token or pipe it on stdin")
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Access token: ")
	tok, err := deps.ReadPassword()
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(tok), nil
}

// verifyLogin lists conversations to prove the token is accepted
func verifyLogin(cmd *cobra.Command, deps *Dependencies) error {
	cfg := loadConfig(cmd)
	client, closeClient, err := getClient(cmd, deps, cfg)
	if err != nil {
		return err
	}
	defer closeClient()

	convs, err := client.ListConversations(cmd.Context())
	if err != nil {
		return fmt.Errorf("token was saved but the backend rejected it: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s (%d conversations)\n", client.BaseURL(), len(convs))
	return nil
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeleteCredentials(); err != nil {
				return err
			}
			deps.logger().Info("token removed")
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}
