package session

import (
	"context"
	"time"

	"github.com/knolabs/daela/core/actions"
	"github.com/knolabs/daela/core/events"
	"github.com/knolabs/daela/core/llms"
	"github.com/knolabs/daela/core/speechtotext"
	"github.com/knolabs/daela/core/transcript"
	"github.com/knolabs/daela/core/transport"
)

type SessionOption func(*Session)

// ChatModel produces a reply for the conversation carried in the prompt
// options, either as content text or as tool-call selections.
type ChatModel interface {
	Prompt(ctx context.Context, opts ...llms.PromptOption) (*llms.Response, error)
}

func WithChatModel(model ChatModel) SessionOption {
	return func(s *Session) { s.chatModel = model }
}

// SpeechOutput synthesizes assistant replies. Stop interrupts in-flight
// synthesis when the participant starts talking over the assistant.
type SpeechOutput interface {
	Speak(ctx context.Context, text string) error
	Stop() error
}

func WithSpeechOutput(output SpeechOutput) SessionOption {
	return func(s *Session) { s.speechOutput = output }
}

// SpeechInput transcribes participant audio fed through SendAudio.
type SpeechInput interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
}

func WithSpeechInput(input SpeechInput) SessionOption {
	return func(s *Session) { s.speechInput = input }
}

func WithTransport(t transport.Transport) SessionOption {
	return func(s *Session) { s.transport = t }
}

// WithRoom names the room the transport connects to.
func WithRoom(room string) SessionOption {
	return func(s *Session) { s.room = room }
}

// WithInstructions sets the system prompt sent with every model prompt.
func WithInstructions(instructions string) SessionOption {
	return func(s *Session) { s.instructions = instructions }
}

// WithGreeting sets the line spoken when the first participant joins.
func WithGreeting(greeting string) SessionOption {
	return func(s *Session) { s.greeting = greeting }
}

// WithActions registers actions the model may call. Registration failures
// (duplicate names) surface from New.
func WithActions(sessionActions ...actions.Action) SessionOption {
	return func(s *Session) { s.pendingActions = append(s.pendingActions, sessionActions...) }
}

// TranscriptWriter persists the transcript when the session closes.
type TranscriptWriter interface {
	Write(store *transcript.Store) error
}

func WithTranscriptWriter(writer TranscriptWriter) SessionOption {
	return func(s *Session) { s.transcriptWriter = writer }
}

// WithActionTimeout bounds a single action handler execution. Zero or
// negative durations are ignored.
func WithActionTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		if timeout > 0 {
			s.actionTimeout = timeout
		}
	}
}

// WithResponseCallback receives every assistant reply that is spoken.
func WithResponseCallback(callback func(text string)) SessionOption {
	return func(s *Session) { s.callbacks.onResponse = callback }
}

// WithTranscriptionCallback receives final utterance transcripts.
func WithTranscriptionCallback(callback func(transcript string)) SessionOption {
	return func(s *Session) { s.callbacks.onTranscription = callback }
}

// WithInterimTranscriptionCallback receives mutable interim transcripts.
func WithInterimTranscriptionCallback(callback func(transcript string)) SessionOption {
	return func(s *Session) { s.callbacks.onInterimTranscription = callback }
}

// WithStateChangeCallback receives every state transition.
func WithStateChangeCallback(callback func(state State)) SessionOption {
	return func(s *Session) { s.callbacks.onStateChange = callback }
}

// WithActionCompletedCallback receives the outcome of every executed action.
func WithActionCompletedCallback(callback func(event events.ActionCompleted)) SessionOption {
	return func(s *Session) { s.callbacks.onActionCompleted = callback }
}

type sessionCallbacks struct {
	onResponse             func(string)
	onTranscription        func(string)
	onInterimTranscription func(string)
	onStateChange          func(State)
	onActionCompleted      func(events.ActionCompleted)
}
