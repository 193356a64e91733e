package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/tailortalk/internal/google"
)

func newAuthCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Calendar",
		Long: `Authorize tailortalk to read and create events in your Google Calendar.

The command prints a URL. Visit it, grant access and paste the authorization
code back (or pass it with --code). The token is stored in the configured
calendar.token_file and refreshed automatically afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.Calendar.ClientID == "" || cfg.Calendar.ClientSecret == "" {
				return errors.New("calendar.client_id and calendar.client_secret (or GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET) are required")
			}

			conf := google.OAuthConfig(cfg.Calendar.ClientID, cfg.Calendar.ClientSecret)
			out := cmd.OutOrStdout()

			if code == "" {
				fmt.Fprintf(out, "Visit this URL to authorize calendar access:\n\n  %s\n\nAuthorization code: ", google.AuthURL(conf))
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read authorization code: %w", err)
				}
				code = strings.TrimSpace(line)
			}
			if code == "" {
				return errors.New("authorization code is empty")
			}

			if _, err := google.Exchange(cmd.Context(), conf, cfg.Calendar.TokenFile, code); err != nil {
				return err
			}
			fmt.Fprintf(out, "Token saved to %s\n", cfg.Calendar.TokenFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code (prompted when empty)")

	return cmd
}
