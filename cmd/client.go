package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/grovetools/deskd/cli"
	"github.com/grovetools/deskd/config"
	"github.com/grovetools/deskd/pkg/daemon"
	"github.com/grovetools/deskd/pkg/paths"
	"github.com/spf13/cobra"
)

const requestTimeout = 10 * time.Second

// socketPath resolves the daemon socket: daemon.socket from the
// configuration when set, the runtime directory otherwise.
func socketPath(cfg *config.Config) string {
	if cfg != nil && cfg.Daemon.Socket != "" {
		return cfg.Daemon.Socket
	}
	return paths.SocketPath()
}

// connect returns a client for the running daemon.
func connect(cmd *cobra.Command) (daemon.Client, error) {
	cfg, _, err := cli.LoadConfig(cmd)
	if err != nil {
		// A broken config must not lock the user out of a running daemon.
		cfg = nil
	}
	return daemon.Connect(socketPath(cfg))
}

// withClient runs fn against the daemon with a request timeout.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, client daemon.Client) error) error {
	client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	return fn(ctx, client)
}

// runCommand invokes a service command and prints its result, if any.
func runCommand(cmd *cobra.Command, service, command string, params map[string]any) error {
	return withClient(cmd, func(ctx context.Context, client daemon.Client) error {
		result, err := client.Command(ctx, service, command, params)
		if err != nil {
			return err
		}
		if len(result) > 0 && string(result) != "null" {
			return printJSON(cmd.OutOrStdout(), result)
		}
		return nil
	})
}

// printJSON writes raw JSON indented.
func printJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("daemon returned malformed JSON: %w", err)
	}
	fmt.Fprintln(w, buf.String())
	return nil
}

// printValue marshals v indented.
func printValue(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
