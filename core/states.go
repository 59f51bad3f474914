package session

// State is the session lifecycle state. Transitions move strictly forward:
// Connecting, AwaitingParticipant, Greeting, Active, Closing, Closed.
type State string

const (
	StateConnecting          State = "connecting"
	StateAwaitingParticipant State = "awaiting_participant"
	StateGreeting            State = "greeting"
	StateActive              State = "active"
	StateClosing             State = "closing"
	StateClosed              State = "closed"
)

func (s State) String() string {
	return string(s)
}
