package relay

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Injection failure sentinels.
var (
	// ErrSessionLost indicates the session disappeared before injection.
	ErrSessionLost = errors.New("session is gone")

	// ErrInjection indicates a control-socket call failed mid-injection.
	ErrInjection = errors.New("keystroke injection failed")
)

const (
	// DefaultChunkSize is how many bytes go into one send-keys call.
	// The control socket is empirically unreliable with long payloads.
	DefaultChunkSize = 100

	// DefaultChunkPause is the pause after each chunk, giving the
	// terminal time to consume the paste before more bytes arrive.
	DefaultChunkPause = 100 * time.Millisecond
)

// SessionController is the slice of the session handle the injector
// needs: a liveness probe and raw keystroke delivery.
type SessionController interface {
	IsAlive() bool
	SendLiteral(ctx context.Context, target, text string) error
	SendKey(ctx context.Context, target, key string) error
}

// Injector types validated command text into the session pane.
//
// Injection is finish-or-fail for one command: once the first keystroke
// has gone out, the remaining chunks are sent without consulting any
// external stop signal. The whole operation is bounded by the chunk
// count times the chunk pause, so a shutdown never waits long.
type Injector struct {
	session    SessionController
	target     string
	chunkSize  int
	chunkPause time.Duration
}

// NewInjector creates an Injector with the default pane target,
// chunk size, and inter-chunk pause.
func NewInjector(session SessionController) *Injector {
	return &Injector{
		session:    session,
		target:     "0.0",
		chunkSize:  DefaultChunkSize,
		chunkPause: DefaultChunkPause,
	}
}

// WithTarget overrides the pane target.
func (i *Injector) WithTarget(target string) *Injector {
	if target != "" {
		i.target = target
	}
	return i
}

// WithChunking overrides the chunk size and inter-chunk pause.
func (i *Injector) WithChunking(size int, pause time.Duration) *Injector {
	if size > 0 {
		i.chunkSize = size
	}
	if pause >= 0 {
		i.chunkPause = pause
	}
	return i
}

// Inject types text into the pane and presses Enter.
//
// Steps, in order: liveness precondition; clear any partially-typed
// input pending in the pane (C-u) so the command is not concatenated
// with leftover operator keystrokes; send the text in fixed-size
// chunks, pausing after each; finish with an Enter keystroke only
// after every chunk succeeded. Any control-socket failure aborts the
// remaining steps — partially injected text stays in the pane, where
// an attached operator can see and correct it.
//
// Returns ErrSessionLost when the session is gone, ErrInjection
// (wrapped) on any control-socket failure.
func (i *Injector) Inject(ctx context.Context, text string) error {
	if !i.session.IsAlive() {
		return ErrSessionLost
	}

	if err := i.session.SendKey(ctx, i.target, "C-u"); err != nil {
		return fmt.Errorf("%w: clear pending input: %v", ErrInjection, err)
	}

	for _, chunk := range Chunks(text, i.chunkSize) {
		if err := i.session.SendLiteral(ctx, i.target, chunk); err != nil {
			return fmt.Errorf("%w: %v", ErrInjection, err)
		}
		time.Sleep(i.chunkPause)
	}

	if err := i.session.SendKey(ctx, i.target, "Enter"); err != nil {
		return fmt.Errorf("%w: enter: %v", ErrInjection, err)
	}
	return nil
}

// Chunks splits text into size-byte pieces preserving order.
// Concatenating the result reproduces the input byte for byte.
// Empty text yields no chunks.
func Chunks(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
