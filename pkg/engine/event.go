package engine

// EventKind discriminates what a session produced.
type EventKind int

const (
	// EventMessage carries one complete delimited message from a trader.
	EventMessage EventKind = iota
	// EventDisconnect means the trader's inbound channel hit end-of-stream.
	// The trader is marked dead and its process, if still running, is
	// terminated.
	EventDisconnect
	// EventExit means the trader's process ended on its own. The trader is
	// marked dead; nothing is terminated.
	EventExit
)

// Event is one unit of trader activity. Every session goroutine delivers
// its events into the engine's single channel, so concurrent arrivals from
// different traders queue up instead of overwriting each other, and each
// ready event is observed exactly once.
type Event struct {
	TraderID int
	Kind     EventKind
	Raw      string // set for EventMessage
}
