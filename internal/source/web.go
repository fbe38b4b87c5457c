package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"
)

const (
	// DefaultMarker is the element id whose text content carries the command.
	DefaultMarker = "command"

	// DefaultPollInterval is the pause between fetches.
	DefaultPollInterval = 5 * time.Second

	// fetchTimeout bounds a single HTTP GET. The endpoint is expected to
	// be unreliable; a hung fetch must not stall the poll loop.
	fetchTimeout = 10 * time.Second
)

// WebSource periodically fetches a URL and extracts the text content of
// the first element whose id attribute matches the marker.
//
// Fetch failures never terminate the source: the endpoint is expected
// to come and go, so the loop reports one "connection lost" transition,
// keeps retrying quietly, and reports one "connection restored" when
// the endpoint answers again. A missing marker or empty text is "no
// command this tick", not an error.
type WebSource struct {
	url      string
	marker   string
	interval time.Duration
	client   *http.Client

	lastPoll time.Time
	lost     bool
}

// NewWebSource creates a polling source for the given URL.
//
// Parameters:
//   - url: The endpoint to poll
//   - interval: Pause between fetches; zero uses DefaultPollInterval
//   - marker: Element id to extract; empty uses DefaultMarker
//
// Returns:
//   - *WebSource: A new polling source
func NewWebSource(url string, interval time.Duration, marker string) *WebSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if marker == "" {
		marker = DefaultMarker
	}
	return &WebSource{
		url:      url,
		marker:   marker,
		interval: interval,
		client:   &http.Client{Timeout: fetchTimeout},
	}
}

// Next blocks until the marker element carries non-empty text, then
// returns it as an event. Consecutive calls may return the same text if
// the page has not changed; the relay loop dedups.
func (s *WebSource) Next(ctx context.Context) (Event, error) {
	for {
		// Pace polls across Next calls: when the previous poll was
		// recent, wait out the remainder of the interval first.
		if wait := s.interval - time.Since(s.lastPoll); wait > 0 {
			select {
			case <-ctx.Done():
				return Event{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		s.lastPoll = time.Now()
		text, err := s.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Event{}, ctx.Err()
			}
			if !s.lost {
				log.Warn("Cannot reach command source", "url", s.url, "error", err)
				s.lost = true
			}
			continue
		}
		if s.lost {
			log.Info("Connection to command source restored", "url", s.url)
			s.lost = false
		}
		if text == "" {
			continue
		}
		return Event{Text: text, ReceivedAt: time.Now(), Kind: KindPolled}, nil
	}
}

// poll performs one fetch and returns the extracted marker text, or ""
// when the marker is absent or empty.
func (s *WebSource) poll(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnect, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnect, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: unexpected status %s", ErrConnect, resp.Status)
	}

	return extractMarked(resp.Body, s.marker)
}

// Close releases idle HTTP connections.
func (s *WebSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// extractMarked parses an HTML document and returns the normalized text
// content of the first element whose id attribute equals marker.
// Returns "" when no such element exists.
//
// Whitespace policy: markup extraction produces incidental whitespace
// (indentation, newlines between inline elements), so the text is
// normalized by collapsing all runs of whitespace to single spaces and
// trimming the ends. Two commands differing only in such whitespace
// compare equal at the dedup boundary.
func extractMarked(r io.Reader, marker string) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("%w: parse: %v", ErrConnect, err)
	}

	node := findByID(doc, marker)
	if node == nil {
		return "", nil
	}
	return collapseText(node), nil
}

// findByID walks the node tree depth-first for an element with the given id.
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == "id" && attr.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// collapseText concatenates all text nodes under n with whitespace
// runs collapsed to single spaces.
func collapseText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
