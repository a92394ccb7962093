package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/officebot/internal/google"
)

func newAuthURLCmd() *cobra.Command {
	flags := newConfigFlags()
	var googleScopes string

	cmd := &cobra.Command{
		Use:   "auth-url",
		Short: "Print a Google consent URL",
		Long: `Print a Google OAuth consent URL without going through chat.

The URL redirects to <base-url>/callback, so a running serve process with the
same client credentials completes the authorization and stores the token.
The URL expires after 10 minutes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.resolve(cmd, os.LookupEnv)
			if err != nil {
				return err
			}
			loadGoogleScopes(cmd, &cfg, googleScopes)
			if !cfg.GoogleEnabled() {
				return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
			}

			// Nothing is stored here; the serving process owns the token.
			auth, err := google.NewAuthenticator(cfg.Google, google.NewMemoryStore())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), auth.AuthCodeURL())
			return nil
		},
	}

	flags.addGoogle(cmd.Flags())
	cmd.Flags().StringVar(&googleScopes, "google-scopes", "",
		"Comma-separated Google OAuth scopes (default: calendar events). Can also use GOOGLE_SCOPES env var.")
	return cmd
}
