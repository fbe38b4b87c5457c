// Package main provides the start command: bring up the shared session
// and relay incoming commands into it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/relayterm/cli/internal/config"
	"github.com/relayterm/cli/internal/relay"
	"github.com/relayterm/cli/internal/source"
	"github.com/relayterm/cli/internal/tmate"
	"github.com/relayterm/cli/internal/ui"
)

var (
	startURL      string
	startInterval int
	startMarker   string
	startChannel  string
	startBroker   string
	startSocket   string
	startPane     string
	startNoAttach bool
)

func init() {
	startCmd.Flags().StringVar(&startURL, "url", "", "URL to poll for commands")
	startCmd.Flags().IntVar(&startInterval, "interval", 0, "Seconds between polls")
	startCmd.Flags().StringVar(&startMarker, "marker", "", "Element id carrying the command text")
	startCmd.Flags().StringVar(&startChannel, "channel", "", "Subscribe to this NATS subject instead of polling")
	startCmd.Flags().StringVar(&startBroker, "broker", "", "NATS broker URL (subscribed variant)")
	startCmd.Flags().StringVar(&startSocket, "socket", "", "tmate control socket path")
	startCmd.Flags().StringVar(&startPane, "pane", "", "Pane target for keystroke injection")
	startCmd.Flags().BoolVar(&startNoAttach, "no-attach", false, "Do not attach the local terminal to the session")
}

// startCmd brings up the session, starts the relay, and attaches.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the shared session and relay incoming commands",
	Long: `Start a detached tmate session, begin watching the command source in
the background, and attach this terminal to the session.

By default the source is a polled web page: the first element whose id
matches the marker (default "command") carries the command text. With
--channel the source is a NATS subject instead, and each published
message is one command.

Examples:
  relay start
  relay start --url http://127.0.0.1:51753/command --interval 2
  relay start --channel llm_suggestions --no-attach`,
	RunE: runStart,
}

// resolveConfig loads the config file and overlays any flags the user set.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("url") {
		cfg.URL = startURL
	}
	if cmd.Flags().Changed("interval") {
		cfg.IntervalSec = startInterval
	}
	if cmd.Flags().Changed("marker") {
		cfg.Marker = startMarker
	}
	if cmd.Flags().Changed("channel") {
		cfg.Channel = startChannel
	}
	if cmd.Flags().Changed("broker") {
		cfg.Broker = startBroker
	}
	if cmd.Flags().Changed("socket") {
		cfg.Socket = startSocket
	}
	if cmd.Flags().Changed("pane") {
		cfg.Pane = startPane
	}
	return cfg, nil
}

// buildSource constructs the command source for the run. The NATS
// variant is selected by --channel; otherwise the web poller is used.
func buildSource(cmd *cobra.Command, cfg config.Config) (source.Source, error) {
	if cmd.Flags().Changed("channel") || cmd.Flags().Changed("broker") {
		ui.PrintInfo("Subscribing to %s on %s", cfg.Channel, cfg.Broker)
		return source.NewNATSSource(cfg.Broker, cfg.Channel)
	}
	ui.PrintInfo("Watching %s every %ds", cfg.URL, cfg.IntervalSec)
	return source.NewWebSource(cfg.URL, time.Duration(cfg.IntervalSec)*time.Second, cfg.Marker), nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	if err := tmate.EnsureTmate(); err != nil {
		return err
	}

	ui.PrintBanner(version)

	src, err := buildSource(cmd, cfg)
	if err != nil {
		ui.PrintError("Cannot connect to the command source: %v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := tmate.NewHandle("tmate", cfg.Socket)
	orch := relay.New(relay.Options{
		Session:   session,
		Source:    src,
		Injector:  relay.NewInjector(session).WithTarget(cfg.Pane),
		OnCommand: printDeliveredCommand,
		OnSessionLost: func() {
			ui.PrintError("Session is gone. Restart with 'relay start'.")
		},
	})

	ui.StartSpinner("Creating tmate session...")
	links, err := orch.Start(ctx)
	ui.StopSpinner()
	if err != nil {
		ui.PrintError("Failed to start session: %v", err)
		return err
	}

	if links.ReadOnly != "" {
		ui.Println()
		ui.PrintLink("Read-only", links.ReadOnly)
		if links.Writable != "" {
			ui.PrintLink("Writable", links.Writable)
		}
		ui.Println()
	}

	if startNoAttach || !isatty.IsTerminal(os.Stdin.Fd()) {
		ui.PrintSuccess("Relay is running (headless). Press Ctrl-C to stop.")
		orch.Wait()
		orch.Stop()
		ui.PrintDim("Relay stopped.")
		return nil
	}

	ui.PrintSuccess("Relay is ready!")
	ui.PrintDim("Incoming commands will be typed into this session.")
	ui.PrintDim("Detach with Ctrl-B D, or type 'exit' to end the session.")
	ui.Println()

	if err := session.Attach(); err != nil {
		log.Debug("Attach returned error", "error", err)
	}

	orch.Stop()
	ui.PrintDim("Relay session ended.")
	return nil
}

// printDeliveredCommand announces one post-dedup command delivery.
// Runs on the relay goroutine.
func printDeliveredCommand(text string) {
	ui.Println()
	ui.PrintBox("Incoming command", "➜ "+text)
}
