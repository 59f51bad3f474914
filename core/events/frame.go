package events

const (
	// KindFrameReceived identifies a decoded video frame from the participant.
	KindFrameReceived Kind = "frame.received"
)

// FrameReceived carries an encoded video frame captured from the
// participant's camera track.
type FrameReceived struct {
	Base
	MIME string
	Data []byte
}

// NewFrameReceived creates a frame received event.
func NewFrameReceived(mime string, data []byte) FrameReceived {
	return FrameReceived{Base: NewBase(KindFrameReceived), MIME: mime, Data: data}
}
