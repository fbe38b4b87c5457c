package source

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestExtractMarked(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		marker string
		want   string
	}{
		{
			name:   "simple div",
			doc:    `<html><body><div id="command">ls -la</div></body></html>`,
			marker: "command",
			want:   "ls -la",
		},
		{
			name:   "marker absent",
			doc:    `<html><body><div id="other">ls</div></body></html>`,
			marker: "command",
			want:   "",
		},
		{
			name:   "empty element",
			doc:    `<div id="command"></div>`,
			marker: "command",
			want:   "",
		},
		{
			name:   "whitespace normalized",
			doc:    "<div id=\"command\">\n  git   status\n\t--short\n</div>",
			marker: "command",
			want:   "git status --short",
		},
		{
			name:   "nested markup",
			doc:    `<div id="command"><span>echo</span> <b>hello</b></div>`,
			marker: "command",
			want:   "echo hello",
		},
		{
			name:   "first match wins",
			doc:    `<p id="command">pwd</p><p id="command">ls</p>`,
			marker: "command",
			want:   "pwd",
		},
		{
			name:   "custom marker",
			doc:    `<pre id="suggestion">make test</pre>`,
			marker: "suggestion",
			want:   "make test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractMarked(strings.NewReader(tt.doc), tt.marker)
			if err != nil {
				t.Fatalf("extractMarked failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("extractMarked = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWebSource_ReturnsMarkerText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div id="command">ls -la</div></body></html>`))
	}))
	defer srv.Close()

	s := NewWebSource(srv.URL, 10*time.Millisecond, "")
	defer s.Close()

	ev, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ev.Text != "ls -la" {
		t.Fatalf("event text = %q, want %q", ev.Text, "ls -la")
	}
	if ev.Kind != KindPolled {
		t.Fatalf("event kind = %v, want KindPolled", ev.Kind)
	}
	if ev.ReceivedAt.IsZero() {
		t.Fatal("event timestamp should be set")
	}
}

func TestWebSource_MissingMarkerKeepsPolling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Write([]byte(`<html><body>no command yet</body></html>`))
			return
		}
		w.Write([]byte(`<div id="command">pwd</div>`))
	}))
	defer srv.Close()

	s := NewWebSource(srv.URL, 10*time.Millisecond, "")
	defer s.Close()

	ev, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ev.Text != "pwd" {
		t.Fatalf("event text = %q, want %q", ev.Text, "pwd")
	}
	if got := calls.Load(); got < 3 {
		t.Fatalf("expected at least 3 fetches, got %d", got)
	}
}

func TestWebSource_DebouncedConnectionLogging(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fail the first five polls, then recover with a command.
		if calls.Add(1) <= 5 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`<div id="command">uptime</div>`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	s := NewWebSource(srv.URL, 5*time.Millisecond, "")
	defer s.Close()

	ev, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ev.Text != "uptime" {
		t.Fatalf("event text = %q, want %q", ev.Text, "uptime")
	}

	out := buf.String()
	if got := strings.Count(out, "Cannot reach command source"); got != 1 {
		t.Fatalf("expected exactly 1 lost transition, got %d in:\n%s", got, out)
	}
	if got := strings.Count(out, "restored"); got != 1 {
		t.Fatalf("expected exactly 1 restored transition, got %d in:\n%s", got, out)
	}
}

func TestWebSource_CancelUnblocksNext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body></body></html>`))
	}))
	defer srv.Close()

	s := NewWebSource(srv.URL, 50*time.Millisecond, "")
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := s.Next(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected DeadlineExceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not unblock on context cancellation")
	}
}
