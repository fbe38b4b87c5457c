package main

import (
	"testing"

	"github.com/relayterm/cli/internal/config"
)

func TestResolveConfig_DefaultsWhenNoFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := resolveConfig(startCmd)
	if err != nil {
		t.Fatalf("resolveConfig failed: %v", err)
	}
	if cfg.URL != config.DefaultWatchURL {
		t.Fatalf("URL = %q, want default", cfg.URL)
	}
	if cfg.IntervalSec != config.DefaultIntervalSec {
		t.Fatalf("IntervalSec = %d, want default", cfg.IntervalSec)
	}
}

func TestResolveConfig_FlagsOverrideConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := startCmd.Flags().Set("url", "http://10.1.1.1/cmd"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	if err := startCmd.Flags().Set("interval", "2"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	defer func() {
		startURL = ""
		startInterval = 0
	}()

	cfg, err := resolveConfig(startCmd)
	if err != nil {
		t.Fatalf("resolveConfig failed: %v", err)
	}
	if cfg.URL != "http://10.1.1.1/cmd" {
		t.Fatalf("URL = %q, want the flag value", cfg.URL)
	}
	if cfg.IntervalSec != 2 {
		t.Fatalf("IntervalSec = %d, want 2", cfg.IntervalSec)
	}
	// Flags not set keep the config-resolved values.
	if cfg.Socket == "" {
		t.Fatal("Socket should fall back to the default")
	}
}
