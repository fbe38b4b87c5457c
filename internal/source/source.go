// Package source produces command text for the relay loop.
//
// Two variants exist: WebSource polls an HTTP endpoint for a marked
// element, NATSSource subscribes to a subject on a NATS bus. Both block
// in Next until content arrives. A source may hand back the same text
// repeatedly; duplicate suppression is deliberately left to the relay
// loop so that a retry after a failed injection is still possible.
package source

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for source failures.
var (
	// ErrConnect marks a transient fetch failure on the polled variant.
	// It is absorbed inside WebSource and only surfaces in debug logs.
	ErrConnect = errors.New("command source unreachable")

	// ErrFatal marks an unrecoverable source failure, such as a failed
	// subscribe on the push variant. It stops the relay run.
	ErrFatal = errors.New("command source failed")
)

// Kind identifies which variant produced an event.
type Kind int

const (
	// KindPolled events come from the HTTP polling variant.
	KindPolled Kind = iota

	// KindSubscribed events come from the pub/sub variant.
	KindSubscribed
)

// String returns the human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindPolled:
		return "polled"
	case KindSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// Event is one unit of command text, a candidate for injection.
type Event struct {
	// Text is the raw command text. Never empty for a delivered event.
	Text string

	// ReceivedAt is when the source observed the text.
	ReceivedAt time.Time

	// Kind identifies the producing variant.
	Kind Kind
}

// Source is a blocking feed of command events.
//
// Next suspends the caller until new content is available or ctx is
// cancelled; it never returns an empty-text event. The sequence is
// infinite and non-restartable: after Next returns a non-context error
// the source is spent.
type Source interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}
