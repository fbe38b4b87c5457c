package main

import (
	"github.com/spf13/cobra"

	"github.com/relayterm/cli/internal/config"
	"github.com/relayterm/cli/internal/tmate"
	"github.com/relayterm/cli/internal/ui"
)

var stopSocket string

func init() {
	stopCmd.Flags().StringVar(&stopSocket, "socket", "", "tmate control socket path")
}

// stopCmd tears down the shared session.
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the shared session",
	Long: `Stop the tmate session behind the relay, if one is running.

A missing session is not an error; stop is safe to run at any time.`,
	RunE: runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("socket") {
		cfg.Socket = stopSocket
	}

	session := tmate.NewHandle("tmate", cfg.Socket)
	if !session.IsAlive() {
		ui.PrintDim("No active relay session (or already stopped).")
		return nil
	}

	session.Destroy()
	ui.PrintSuccess("Relay session stopped.")
	return nil
}
