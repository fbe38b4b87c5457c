// Package config provides relay configuration management.
//
// Resolution order: built-in defaults, then ~/.config/relay/config.yaml
// when present, then command-line flags (applied by the caller). The
// config file is optional; a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Built-in defaults.
const (
	// DefaultWatchURL is the endpoint polled for new commands.
	DefaultWatchURL = "http://127.0.0.1:51753/command"

	// DefaultIntervalSec is the pause between polls, in seconds.
	DefaultIntervalSec = 5

	// DefaultBrokerURL is the NATS broker for the subscribed variant.
	DefaultBrokerURL = "nats://127.0.0.1:4222"
)

// Config holds every tunable the relay understands.
type Config struct {
	// Socket is the tmate control socket path.
	Socket string `yaml:"socket"`

	// URL is the endpoint polled by the web variant.
	URL string `yaml:"url"`

	// IntervalSec is the polling interval in seconds.
	IntervalSec int `yaml:"interval_sec"`

	// Marker is the element id carrying the command text.
	Marker string `yaml:"marker"`

	// Broker is the NATS broker URL for the subscribed variant.
	Broker string `yaml:"broker"`

	// Channel is the pub/sub subject for the subscribed variant.
	Channel string `yaml:"channel"`

	// Pane is the tmate window.pane target for keystroke injection.
	Pane string `yaml:"pane"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Socket:      "/tmp/relay_tmate.sock",
		URL:         DefaultWatchURL,
		IntervalSec: DefaultIntervalSec,
		Marker:      "command",
		Broker:      DefaultBrokerURL,
		Channel:     "llm_suggestions",
		Pane:        "0.0",
	}
}

// Path returns the config file location (~/.config/relay/config.yaml).
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "relay", "config.yaml"), nil
}

// Load returns the defaults overlaid with the user's config file.
// A missing file yields the plain defaults; a malformed file is an error.
func Load() (Config, error) {
	cfg := Default()

	path, err := Path()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}
