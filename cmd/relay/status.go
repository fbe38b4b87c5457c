// Package main provides the status command.
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relayterm/cli/internal/config"
	"github.com/relayterm/cli/internal/tmate"
	"github.com/relayterm/cli/internal/ui"
)

var (
	statusSocket     string
	statusOutputJSON bool
)

func init() {
	statusCmd.Flags().StringVar(&statusSocket, "socket", "", "tmate control socket path")
	statusCmd.Flags().BoolVar(&statusOutputJSON, "json", false, "Output results as JSON")
}

// sessionStatus is the JSON shape of `relay status --json`.
type sessionStatus struct {
	// Active reports whether a session is running at the socket.
	Active bool `json:"active"`

	// Socket is the control socket path that was queried.
	Socket string `json:"socket"`

	// ReadOnly is the view-only link, when available.
	ReadOnly string `json:"readOnlyLink,omitempty"`

	// Writable is the full-access link, when available.
	Writable string `json:"writableLink,omitempty"`
}

// statusCmd reports whether a session is active and shows its links.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a relay session is active",
	Long: `Show whether a relay session is active at the control socket and, if
so, its connection links.

Examples:
  relay status
  relay status --json`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	jsonOutput := statusOutputJSON
	if globalJSON, _ := cmd.Root().PersistentFlags().GetBool("json"); globalJSON {
		jsonOutput = true
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("socket") {
		cfg.Socket = statusSocket
	}

	session := tmate.NewHandle("tmate", cfg.Socket)
	status := sessionStatus{Socket: cfg.Socket, Active: session.IsAlive()}

	if status.Active {
		if links, err := session.Links(context.Background()); err == nil {
			status.ReadOnly = links.ReadOnly
			status.Writable = links.Writable
		}
	}

	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if !status.Active {
		ui.PrintDim("No active relay session at %s", cfg.Socket)
		return nil
	}

	ui.PrintSuccess("Relay session is active")
	ui.PrintDim("Socket: %s", cfg.Socket)
	if status.ReadOnly != "" {
		ui.PrintLink("Read-only", status.ReadOnly)
	}
	if status.Writable != "" {
		ui.PrintLink("Writable", status.Writable)
	}
	return nil
}
