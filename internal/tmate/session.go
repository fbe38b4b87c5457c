// Package tmate manages the shared terminal session behind the relay.
//
// Every lifecycle operation is issued through the tmate control socket,
// a local filesystem object addressed with `tmate -S <path>`. The tmate
// binary is an external collaborator: this package shells out to it the
// same way the CLI would drive ssh or cloudflared.
package tmate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Sentinel errors for session lifecycle failures. Callers match them
// with errors.Is; the wrapped message carries the tmate stderr detail.
var (
	// ErrSessionCreate indicates session creation failed after all retries.
	ErrSessionCreate = errors.New("tmate session creation failed")

	// ErrSessionTimeout indicates the session never reported readiness.
	ErrSessionTimeout = errors.New("timed out waiting for tmate session")

	// ErrLinkQuery indicates the session links were never published.
	ErrLinkQuery = errors.New("tmate session links unavailable")
)

const (
	// DefaultSocketPath is the well-known control socket location.
	DefaultSocketPath = "/tmp/relay_tmate.sock"

	// DefaultReadyTimeout bounds the wall-clock wait for session readiness,
	// independent of how long the underlying `tmate wait` call blocks.
	DefaultReadyTimeout = 30 * time.Second

	// DefaultPaneTarget is the window.pane that receives injected keys.
	DefaultPaneTarget = "0.0"

	createAttempts = 3
	linkAttempts   = 3
	retryBackoff   = 500 * time.Millisecond
)

// Links holds the two tmate connection strings for a session.
type Links struct {
	// ReadOnly is the view-only ssh link.
	ReadOnly string

	// Writable is the full-access ssh link.
	Writable string
}

// Handle drives one tmate session through its control socket.
//
// A Handle owns the session at its socket path: Create tears down any
// prior session under the same path before starting a fresh one, so at
// most one logical session is live per Handle at a time.
type Handle struct {
	binary     string
	socketPath string
	createdAt  time.Time
}

// NewHandle creates a Handle for the given tmate binary and socket path.
//
// Parameters:
//   - binary: Path or name of the tmate binary (resolved via PATH)
//   - socketPath: Control socket location; empty uses DefaultSocketPath
//
// Returns:
//   - *Handle: A new session handle
func NewHandle(binary, socketPath string) *Handle {
	if binary == "" {
		binary = "tmate"
	}
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Handle{binary: binary, socketPath: socketPath}
}

// SocketPath returns the control socket location for this handle.
func (h *Handle) SocketPath() string {
	return h.socketPath
}

// CreatedAt returns when the current session was created, or the zero
// time if Create has not succeeded yet.
func (h *Handle) CreatedAt() time.Time {
	return h.createdAt
}

// run executes one tmate control-socket command and returns trimmed stdout.
func (h *Handle) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-S", h.socketPath}, args...)
	cmd := exec.CommandContext(ctx, h.binary, full...)
	// Suppress the interactive connection banner tmate prints on first use.
	cmd.Env = append(os.Environ(), "TMATE_NOPROMPT=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", fmt.Errorf("tmate %s: %w: %s", args[0], err, stderrStr)
		}
		return "", fmt.Errorf("tmate %s: %w", args[0], err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Create starts a new detached session at the handle's socket path.
//
// Any existing session under the same path is torn down first; absence
// of a prior session is not an error. The session runs a minimal bash
// without profile or rc files so injected commands land in a shell with
// predictable behavior. Transient failures are retried up to three
// times with doubling backoff before the error is surfaced.
//
// Returns:
//   - error: ErrSessionCreate (wrapped) after exhausting retries
func (h *Handle) Create(ctx context.Context) error {
	if h.IsAlive() {
		log.Debug("Tearing down existing session", "socket", h.socketPath)
		h.Destroy()
	}

	backoff := retryBackoff
	var lastErr error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		_, err := h.run(ctx, "new-session", "-d", "bash", "--noprofile", "--norc")
		if err == nil {
			h.createdAt = time.Now()
			return nil
		}
		lastErr = err
		log.Debug("tmate new-session failed", "attempt", attempt, "error", err)

		if ctx.Err() != nil {
			break
		}
		if attempt < createAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrSessionCreate, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrSessionCreate, createAttempts, lastErr)
}

// AwaitReady blocks until the session reports readiness or the timeout
// elapses. The underlying `tmate wait tmate-ready` primitive can block
// indefinitely, so the call runs under a hard context deadline and the
// process is killed when it fires.
//
// Parameters:
//   - ctx: Context for cancellation
//   - timeout: Wall-clock bound; zero uses DefaultReadyTimeout
//
// Returns:
//   - error: ErrSessionTimeout (wrapped) if readiness never arrived
func (h *Handle) AwaitReady(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := h.run(ctx, "wait", "tmate-ready"); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrSessionTimeout, timeout)
		}
		return fmt.Errorf("%w: %v", ErrSessionTimeout, err)
	}
	return nil
}

// IsAlive reports whether the session is still running. Any failure to
// query the control socket is treated as "not alive"; this never
// returns an error.
func (h *Handle) IsAlive() bool {
	_, err := h.run(context.Background(), "has-session")
	return err == nil
}

// Links retrieves the read-only and writable ssh links for the session.
// tmate publishes the links shortly after readiness, not atomically
// with it, so the query is retried a few times with backoff.
//
// Returns:
//   - Links: The connection links
//   - error: ErrLinkQuery (wrapped) if the links never appeared
func (h *Handle) Links(ctx context.Context) (Links, error) {
	backoff := retryBackoff
	var lastErr error
	for attempt := 1; attempt <= linkAttempts; attempt++ {
		ro, err := h.run(ctx, "display", "-p", "#{tmate_ssh_ro}")
		if err == nil && ro != "" {
			// The writable link is optional: keep going with just the
			// read-only one if it is missing.
			rw, err := h.run(ctx, "display", "-p", "#{tmate_ssh}")
			if err != nil {
				log.Debug("Writable link query failed", "error", err)
				rw = ""
			}
			return Links{ReadOnly: ro, Writable: rw}, nil
		}
		if err != nil {
			lastErr = err
		}

		if attempt < linkAttempts {
			select {
			case <-ctx.Done():
				return Links{}, fmt.Errorf("%w: %v", ErrLinkQuery, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	if lastErr != nil {
		return Links{}, fmt.Errorf("%w after %d attempts: %v", ErrLinkQuery, linkAttempts, lastErr)
	}
	return Links{}, fmt.Errorf("%w after %d attempts", ErrLinkQuery, linkAttempts)
}

// SendLiteral types text into the target pane without interpreting it
// as key names. Used for command payloads.
func (h *Handle) SendLiteral(ctx context.Context, target, text string) error {
	_, err := h.run(ctx, "send-keys", "-t", target, "-l", text)
	return err
}

// SendKey sends one named key (e.g. "Enter", "C-u") to the target pane.
func (h *Handle) SendKey(ctx context.Context, target, key string) error {
	_, err := h.run(ctx, "send-keys", "-t", target, key)
	return err
}

// Destroy kills the session. Best-effort: a missing session is a no-op,
// not an error.
func (h *Handle) Destroy() {
	if _, err := h.run(context.Background(), "kill-session"); err != nil {
		log.Debug("kill-session returned error (session likely already gone)", "error", err)
	}
}

// Attach connects the calling terminal to the session in the
// foreground. Blocks until the operator detaches or the session ends.
func (h *Handle) Attach() error {
	cmd := exec.Command(h.binary, "-S", h.socketPath, "attach")
	cmd.Env = append(os.Environ(), "TMATE_NOPROMPT=1")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// EnsureTmate checks that tmate is installed and available on PATH.
// Provides installation instructions if not found.
//
// Returns:
//   - error: If tmate is not found, with installation instructions
func EnsureTmate() error {
	_, err := exec.LookPath("tmate")
	if err != nil {
		msg := "tmate is required to host the shared session but was not found on your PATH"
		switch runtime.GOOS {
		case "darwin":
			msg += "\n\nInstall with Homebrew:\n  brew install tmate"
		case "linux":
			msg += "\n\nInstall with your package manager, e.g.:\n  apt install tmate"
		default:
			msg += "\n\nSee: https://tmate.io"
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}
