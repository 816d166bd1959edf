package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// statusTimeout bounds the local daemon query.
const statusTimeout = 10 * time.Second

func newStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the state of a picking session",
		Long:  "Queries the running daemon for one session's serialized state and prints it as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(addr, args[0])
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "daemon address")

	return cmd
}

func runStatus(addr, sessionID string) error {
	client := &http.Client{Timeout: statusTimeout}

	resp, err := client.Get(fmt.Sprintf("http://%s/api/sessions/%s", addr, sessionID))
	if err != nil {
		return fmt.Errorf("querying daemon: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("session %s not found", sessionID)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned HTTP %d: %s", resp.StatusCode, body)
	}

	// Re-indent for readability.
	var pretty json.RawMessage = body

	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(string(body))
		return nil
	}

	fmt.Println(string(out))

	return nil
}
