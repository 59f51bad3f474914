package session

import (
	"errors"
	"fmt"
)

// ErrConnectionLost reports that the transport connection dropped and the
// session shut down because of it. Returned from Run wrapped in a
// TransportError.
var ErrConnectionLost = errors.New("connection lost")

// TransportError wraps a failure in the underlying transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
