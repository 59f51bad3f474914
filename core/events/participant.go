package events

const (
	// KindParticipantJoined identifies a remote participant joining the room.
	KindParticipantJoined Kind = "participant.joined"
	// KindParticipantLeft identifies a remote participant leaving the room.
	KindParticipantLeft Kind = "participant.left"
)

// ParticipantJoined marks a remote participant joining.
type ParticipantJoined struct {
	Base
	Identity string
}

// NewParticipantJoined creates a participant joined event.
func NewParticipantJoined(identity string) ParticipantJoined {
	return ParticipantJoined{Base: NewBase(KindParticipantJoined), Identity: identity}
}

// ParticipantLeft marks a remote participant leaving.
type ParticipantLeft struct {
	Base
	Identity string
}

// NewParticipantLeft creates a participant left event.
func NewParticipantLeft(identity string) ParticipantLeft {
	return ParticipantLeft{Base: NewBase(KindParticipantLeft), Identity: identity}
}
