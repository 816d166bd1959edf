package main

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/pickframe/pickframe/internal/auth"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Acquire Google Photos Picker credentials",
		Long:  "Runs the OAuth consent flow if needed and persists the token, so the daemon never blocks a poll on a browser round trip.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger := buildLogger(cfg)

			provider := auth.NewProvider(cfg.CredentialsPath(), cfg.TokenPath(), cfg.Picker.OAuthPort, openBrowser, logger)

			tok, err := provider.Acquire(cmd.Context())
			if err != nil {
				return fmt.Errorf("acquiring credentials: %w", err)
			}

			if tok.Expiry.IsZero() {
				fmt.Println("Logged in.")
			} else {
				fmt.Printf("Logged in. Token expires %s.\n", tok.Expiry.Format("2006-01-02 15:04:05 MST"))
			}

			return nil
		},
	}
}

// openBrowser launches the default browser via xdg-open. The consent flow
// prints the URL as a fallback when this fails.
func openBrowser(url string) error {
	return exec.Command("xdg-open", url).Start()
}
