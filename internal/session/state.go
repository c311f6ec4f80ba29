// Package session drives one conversation's send/stream/reconcile cycle.
package session

// State is the controller's position in the send cycle
type State int

const (
	Idle State = iota
	Sending
	Streaming
	Reconciling
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Streaming:
		return "streaming"
	case Reconciling:
		return "reconciling"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Active reports whether a send is in flight
func (s State) Active() bool {
	return s == Sending || s == Streaming || s == Reconciling
}
