package relay

// State is the mutable relay-loop state. It is owned by the single
// relay goroutine for the lifetime of a run; nothing else writes it.
// Scoping it per orchestrator (rather than a package-level variable)
// keeps concurrent relay instances, including those under test, from
// interfering with each other.
type State struct {
	// LastDelivered is the dedup boundary: the text of the last command
	// that was successfully injected. It advances strictly after a
	// successful injection, never before. A failed injection leaves it
	// untouched so a legitimate retry of the same text is not swallowed.
	LastDelivered string
}

// Accept reports whether text should be injected, given the last
// successfully delivered command. Empty text and immediate repeats are
// rejected. Pure function: advancing the dedup boundary is the
// caller's job.
func Accept(last, text string) (string, bool) {
	if text == "" || text == last {
		return "", false
	}
	return text, true
}
