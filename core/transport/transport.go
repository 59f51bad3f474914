// Package transport defines the media-transport contract a session runs over.
package transport

import "context"

// Callbacks receive transport activity. They are invoked from transport
// goroutines; implementations must not block.
type Callbacks struct {
	// OnParticipantJoined fires when a remote participant joins the room.
	OnParticipantJoined func(identity string)
	// OnParticipantLeft fires when a remote participant leaves the room.
	OnParticipantLeft func(identity string)
	// OnChatMessage fires for each typed chat message from a participant.
	OnChatMessage func(text string)
	// OnAudioFrame fires for each decoded audio frame from a participant's
	// microphone track.
	OnAudioFrame func(audio []byte)
	// OnVideoFrame fires for each encoded video frame from a participant's
	// camera track.
	OnVideoFrame func(mime string, data []byte)
	// OnDisconnected fires once when the connection is lost. err is nil for
	// a deliberate close.
	OnDisconnected func(err error)
}

// Transport connects a session to a room and carries chat, audio and video
// between it and the remote participant.
type Transport interface {
	Connect(ctx context.Context, room string, callbacks Callbacks) error
	SendChatMessage(text string) error
	PublishSpeech(audio []byte) error
	Close() error
}
