package events

const (
	// KindConnectionLost identifies an unrecoverable transport failure.
	KindConnectionLost Kind = "session.connection_lost"
	// KindCloseRequested identifies a request to shut the session down.
	KindCloseRequested Kind = "session.close_requested"
)

// ConnectionLost marks an unrecoverable transport failure. Cause is the
// underlying transport error.
type ConnectionLost struct {
	Base
	Cause error
}

// NewConnectionLost creates a connection lost event.
func NewConnectionLost(cause error) ConnectionLost {
	return ConnectionLost{Base: NewBase(KindConnectionLost), Cause: cause}
}

// CloseRequested marks a deliberate shutdown request.
type CloseRequested struct{ Base }

// NewCloseRequested creates a close requested event.
func NewCloseRequested() CloseRequested {
	return CloseRequested{Base: NewBase(KindCloseRequested)}
}
