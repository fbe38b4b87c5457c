package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject carrying suggested commands.
const DefaultSubject = "llm_suggestions"

// subscribeBuffer bounds how many inbound messages queue up while the
// relay loop is busy injecting the previous command.
const subscribeBuffer = 64

// NATSSource maintains a standing subscription on a NATS subject and
// turns each message payload into one event, with no polling interval.
//
// Unlike the polled variant there is no retry loop here: a connection
// failure at construction is fatal for this source, and the caller
// decides whether to restart it.
type NATSSource struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	msgs    chan *nats.Msg
	subject string
}

// NewNATSSource connects to the broker and subscribes to the subject.
//
// Parameters:
//   - url: Broker URL; empty uses nats.DefaultURL
//   - subject: Subject to subscribe to; empty uses DefaultSubject
//
// Returns:
//   - *NATSSource: A new subscribed source
//   - error: ErrFatal (wrapped) on connect or subscribe failure
func NewNATSSource(url, subject string) (*NATSSource, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url, nats.Name("relay-watcher"))
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrFatal, url, err)
	}

	msgs := make(chan *nats.Msg, subscribeBuffer)
	sub, err := conn.ChanSubscribe(subject, msgs)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrFatal, subject, err)
	}

	return &NATSSource{conn: conn, sub: sub, msgs: msgs, subject: subject}, nil
}

// Next blocks until a message with non-empty payload arrives on the
// subject. Whitespace-only payloads are skipped.
func (s *NATSSource) Next(ctx context.Context) (Event, error) {
	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case msg, ok := <-s.msgs:
			if !ok {
				return Event{}, fmt.Errorf("%w: subscription closed", ErrFatal)
			}
			text := strings.TrimSpace(string(msg.Data))
			if text == "" {
				continue
			}
			return Event{
				Text:       text,
				ReceivedAt: time.Now(),
				Kind:       KindSubscribed,
			}, nil
		}
	}
}

// Close drains the subscription and closes the broker connection.
func (s *NATSSource) Close() error {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			return err
		}
	}
	if s.conn != nil {
		s.conn.Drain()
		s.conn.Close()
	}
	return nil
}
