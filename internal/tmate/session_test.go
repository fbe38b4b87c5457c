package tmate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeFakeTmate writes a shell script standing in for the tmate binary
// and returns a Handle pointing at it. The script receives the usual
// control-socket invocation (`tmate -S <sock> <command> ...`); the
// supplied body sees the subcommand as $1 onward.
func writeFakeTmate(t *testing.T, body string) *Handle {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tmate")
	script := "#!/bin/sh\nshift 2\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake tmate: %v", err)
	}
	return NewHandle(path, filepath.Join(dir, "relay.sock"))
}

func TestCreate_RetriesTransientFailures(t *testing.T) {
	countFile := filepath.Join(t.TempDir(), "count")
	h := writeFakeTmate(t, fmt.Sprintf(`
case "$1" in
  has-session) exit 1 ;;
  new-session)
    n=$(cat %q 2>/dev/null || echo 0)
    n=$((n+1))
    echo "$n" > %q
    [ "$n" -ge 3 ] && exit 0
    exit 1 ;;
esac
exit 0`, countFile, countFile))

	if err := h.Create(context.Background()); err != nil {
		t.Fatalf("Create should succeed on the third attempt, got %v", err)
	}
	if h.CreatedAt().IsZero() {
		t.Fatal("CreatedAt should be set after a successful Create")
	}
}

func TestCreate_ExhaustedRetriesReturnsTypedError(t *testing.T) {
	h := writeFakeTmate(t, `
case "$1" in
  has-session) exit 1 ;;
  new-session) echo "server refused" >&2; exit 1 ;;
esac
exit 0`)

	err := h.Create(context.Background())
	if err == nil {
		t.Fatal("expected Create to fail after exhausting retries")
	}
	if !errors.Is(err, ErrSessionCreate) {
		t.Fatalf("expected ErrSessionCreate, got %v", err)
	}
}

func TestCreate_TearsDownExistingSession(t *testing.T) {
	killFile := filepath.Join(t.TempDir(), "killed")
	h := writeFakeTmate(t, fmt.Sprintf(`
case "$1" in
  has-session) [ -f %q ] && exit 1 || exit 0 ;;
  kill-session) touch %q ;;
  new-session) exit 0 ;;
esac
exit 0`, killFile, killFile))

	if err := h.Create(context.Background()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := os.Stat(killFile); err != nil {
		t.Fatal("expected the prior session to be killed before creation")
	}
}

func TestAwaitReady_HardTimeout(t *testing.T) {
	h := writeFakeTmate(t, `
case "$1" in
  wait) exec /bin/sleep 30 ;;
esac
exit 0`)

	start := time.Now()
	err := h.AwaitReady(context.Background(), 200*time.Millisecond)
	if err == nil {
		t.Fatal("expected AwaitReady to time out")
	}
	if !errors.Is(err, ErrSessionTimeout) {
		t.Fatalf("expected ErrSessionTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("AwaitReady took %s; the wait process was not killed", elapsed)
	}
}

func TestAwaitReady_Success(t *testing.T) {
	h := writeFakeTmate(t, `exit 0`)
	if err := h.AwaitReady(context.Background(), time.Second); err != nil {
		t.Fatalf("AwaitReady failed: %v", err)
	}
}

func TestIsAlive(t *testing.T) {
	alive := writeFakeTmate(t, `exit 0`)
	if !alive.IsAlive() {
		t.Fatal("expected IsAlive to report true when has-session succeeds")
	}

	dead := writeFakeTmate(t, `exit 1`)
	if dead.IsAlive() {
		t.Fatal("expected IsAlive to report false when has-session fails")
	}

	// A missing binary is a query failure, which also means "not alive".
	gone := NewHandle("/nonexistent/tmate", DefaultSocketPath)
	if gone.IsAlive() {
		t.Fatal("expected IsAlive to report false when the binary is missing")
	}
}

func TestLinks_ReturnsBothLinks(t *testing.T) {
	h := writeFakeTmate(t, `
case "$1" in
  display)
    case "$3" in
      *tmate_ssh_ro*) echo "ssh ro-abc123@lon1.tmate.io" ;;
      *tmate_ssh*) echo "ssh rw-abc123@lon1.tmate.io" ;;
    esac ;;
esac
exit 0`)

	links, err := h.Links(context.Background())
	if err != nil {
		t.Fatalf("Links failed: %v", err)
	}
	if links.ReadOnly != "ssh ro-abc123@lon1.tmate.io" {
		t.Fatalf("read-only link = %q", links.ReadOnly)
	}
	if links.Writable != "ssh rw-abc123@lon1.tmate.io" {
		t.Fatalf("writable link = %q", links.Writable)
	}
}

func TestLinks_RetriesUntilPublished(t *testing.T) {
	readyFile := filepath.Join(t.TempDir(), "ready")
	// First display call prints nothing (links not yet published),
	// subsequent calls return the link.
	h := writeFakeTmate(t, fmt.Sprintf(`
case "$1" in
  display)
    if [ -f %q ]; then
      echo "ssh ro-late@lon1.tmate.io"
    else
      touch %q
    fi ;;
esac
exit 0`, readyFile, readyFile))

	links, err := h.Links(context.Background())
	if err != nil {
		t.Fatalf("Links should succeed once the link is published, got %v", err)
	}
	if links.ReadOnly != "ssh ro-late@lon1.tmate.io" {
		t.Fatalf("read-only link = %q", links.ReadOnly)
	}
}

func TestLinks_ExhaustedReturnsTypedError(t *testing.T) {
	h := writeFakeTmate(t, `exit 1`)

	_, err := h.Links(context.Background())
	if err == nil {
		t.Fatal("expected Links to fail")
	}
	if !errors.Is(err, ErrLinkQuery) {
		t.Fatalf("expected ErrLinkQuery, got %v", err)
	}
}

func TestDestroy_MissingSessionIsNoOp(t *testing.T) {
	h := writeFakeTmate(t, `exit 1`)
	// Must not panic or surface an error.
	h.Destroy()
}

func TestSendKeys(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "keys.log")
	h := writeFakeTmate(t, fmt.Sprintf(`
case "$1" in
  send-keys) echo "$@" >> %q ;;
esac
exit 0`, logFile))

	ctx := context.Background()
	if err := h.SendLiteral(ctx, "0.0", "echo hi"); err != nil {
		t.Fatalf("SendLiteral failed: %v", err)
	}
	if err := h.SendKey(ctx, "0.0", "Enter"); err != nil {
		t.Fatalf("SendKey failed: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read key log: %v", err)
	}
	got := string(data)
	want := "send-keys -t 0.0 -l echo hi\nsend-keys -t 0.0 Enter\n"
	if got != want {
		t.Fatalf("send-keys calls = %q, want %q", got, want)
	}
}
