// Package session runs a conversational agent over a media transport: it
// greets the first participant, turns their chat and speech into model
// prompts, executes model-selected actions, and speaks the replies back.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/knolabs/daela/core/actions"
	"github.com/knolabs/daela/core/events"
	"github.com/knolabs/daela/core/llms"
	"github.com/knolabs/daela/core/speechtotext"
	"github.com/knolabs/daela/core/transcript"
	"github.com/knolabs/daela/core/transport"
)

const (
	defaultActionTimeout = 30 * time.Second

	// apologyLine is spoken when an internal failure is contained so the
	// participant is not left hanging.
	apologyLine = "I'm sorry, I'm having a little trouble right now. Could you say that again?"
)

type Session struct {
	id           string
	instructions string
	greeting     string
	room         string

	chatModel    ChatModel
	speechOutput SpeechOutput
	speechInput  SpeechInput
	transport    transport.Transport

	registry       *actions.Registry
	pendingActions []actions.Action

	store            *transcript.Store
	frames           FrameCache
	transcriptWriter TranscriptWriter

	actionTimeout time.Duration
	callbacks     sessionCallbacks

	events    chan events.Event
	closeOnce sync.Once

	stateMu sync.RWMutex
	state   State
}

// New builds a session. A chat model is required; every other collaborator is
// optional and its absence disables the corresponding behavior.
func New(opts ...SessionOption) (*Session, error) {
	s := &Session{
		id:            uuid.NewString(),
		store:         transcript.NewStore(),
		actionTimeout: defaultActionTimeout,
		events:        make(chan events.Event, 64),
		state:         StateConnecting,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.chatModel == nil {
		return nil, fmt.Errorf("a chat model is required")
	}

	registry, err := actions.NewRegistry(s.pendingActions...)
	if err != nil {
		return nil, fmt.Errorf("failed to register actions: %w", err)
	}
	s.registry = registry
	s.pendingActions = nil

	return s, nil
}

// ID returns the identifier assigned to this session at construction.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()

	if s.callbacks.onStateChange != nil {
		s.callbacks.onStateChange(state)
	}
}

// Transcript exposes the append-only conversation record.
func (s *Session) Transcript() *transcript.Store {
	return s.store
}

// Frames exposes the latest-frame cache fed by the transport.
func (s *Session) Frames() *FrameCache {
	return &s.frames
}

// Dispatch queues an event for the session loop. Transports and tests use it
// to drive the session; it blocks only when the loop has fallen far behind.
func (s *Session) Dispatch(event events.Event) {
	s.events <- event
}

// notify queues a loop-internal event without blocking. The loop produces
// these about its own work while it is not draining the channel, so a full
// channel drops the event instead of deadlocking the loop on itself.
func (s *Session) notify(event events.Event) {
	select {
	case s.events <- event:
	default:
		logger.Warn("Dropping internal event on full channel", "kind", string(event.Kind()))
	}
}

// Close asks the running session to shut down. Safe to call multiple times
// and from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.events <- events.NewCloseRequested()
	})
}

// Run connects the transport, then processes events until the participant
// leaves, Close is called, the connection drops, or ctx is cancelled. It
// returns nil for a deliberate or participant-initiated close.
func (s *Session) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "run session")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.id), attribute.String("session.room", s.room))

	if s.transport != nil {
		if err := s.transport.Connect(ctx, s.room, s.transportCallbacks()); err != nil {
			s.setState(StateClosed)
			transportErr := &TransportError{Op: "connect", Err: err}
			span.RecordError(transportErr)
			span.SetStatus(codes.Error, "failed to connect")
			return transportErr
		}
	}

	if s.speechInput != nil {
		if err := s.speechInput.Transcribe(ctx,
			speechtotext.WithInterimTranscriptionCallback(func(interim string) {
				s.Dispatch(events.NewUserTranscriptInterim(interim))
			}),
			speechtotext.WithTranscriptionCallback(func(final string) {
				s.Dispatch(events.NewUserTranscriptFinal(final))
			}),
			speechtotext.WithSpeechStartedCallback(func() {
				s.Dispatch(events.NewUserSpeechStarted())
			}),
			speechtotext.WithSpeechEndedCallback(func() {
				s.Dispatch(events.NewUserSpeechEnded())
			}),
		); err != nil {
			s.setState(StateClosed)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to start transcription")
			return fmt.Errorf("failed to start transcription: %w", err)
		}
	}

	s.setState(StateAwaitingParticipant)

	for {
		select {
		case <-ctx.Done():
			s.shutdown(ctx)
			return ctx.Err()

		case event := <-s.events:
			switch event := event.(type) {
			case events.ParticipantJoined:
				if s.State() == StateAwaitingParticipant {
					s.greet(ctx)
				}

			case events.UserText:
				s.handleUserMessage(ctx, event.Text)

			case events.UserTranscriptFinal:
				if s.callbacks.onTranscription != nil {
					s.callbacks.onTranscription(event.Transcript)
				}
				s.handleUserMessage(ctx, event.Transcript)

			case events.UserTranscriptInterim:
				if s.callbacks.onInterimTranscription != nil {
					s.callbacks.onInterimTranscription(event.Transcript)
				}

			case events.UserSpeechStarted:
				if s.speechOutput != nil {
					if err := s.speechOutput.Stop(); err != nil {
						logger.WarnContext(ctx, "Failed to interrupt speech output", "error", err)
					}
				}

			case events.UserSpeechEnded:
				logger.DebugContext(ctx, "User speech ended")

			case events.FrameReceived:
				s.frames.Put(Frame{MIME: event.MIME, Data: event.Data, Timestamp: event.Timestamp()})

			case events.ActionStarted:
				logger.DebugContext(ctx, "Action started", "action", event.Name)

			case events.ActionCompleted:
				logger.DebugContext(ctx, "Action completed", "action", event.Name, "error", event.Err)
				if s.callbacks.onActionCompleted != nil {
					s.callbacks.onActionCompleted(event)
				}

			case events.ParticipantLeft, events.CloseRequested:
				s.shutdown(ctx)
				return nil

			case events.ConnectionLost:
				s.shutdown(ctx)
				transportErr := &TransportError{Op: "room", Err: fmt.Errorf("%w: %v", ErrConnectionLost, event.Cause)}
				span.RecordError(transportErr)
				span.SetStatus(codes.Error, "connection lost")
				return transportErr
			}
		}
	}
}

func (s *Session) transportCallbacks() transport.Callbacks {
	return transport.Callbacks{
		OnParticipantJoined: func(identity string) {
			s.Dispatch(events.NewParticipantJoined(identity))
		},
		OnParticipantLeft: func(identity string) {
			s.Dispatch(events.NewParticipantLeft(identity))
		},
		OnChatMessage: func(text string) {
			s.Dispatch(events.NewUserText(text))
		},
		OnAudioFrame: func(audio []byte) {
			if s.speechInput == nil {
				return
			}
			if err := s.speechInput.SendAudio(audio); err != nil {
				logger.WarnContext(context.Background(), "Failed to forward audio to transcription", "error", err)
			}
		},
		OnVideoFrame: func(mime string, data []byte) {
			// Straight into the cache: frames arrive far faster than the
			// loop drains events, and the callback must never block.
			s.frames.Put(Frame{MIME: mime, Data: data, Timestamp: time.Now()})
		},
		OnDisconnected: func(err error) {
			if err == nil {
				s.Close()
				return
			}
			s.Dispatch(events.NewConnectionLost(err))
		},
	}
}

func (s *Session) greet(ctx context.Context) {
	s.setState(StateGreeting)
	if s.greeting != "" {
		s.respond(ctx, s.greeting)
	}
	s.setState(StateActive)
}

// handleUserMessage drives one turn: the message is recorded, the model is
// prompted with the full history and the registered action descriptors, and
// the reply is either spoken or routed to the action executor.
func (s *Session) handleUserMessage(ctx context.Context, text string) {
	if s.State() != StateActive {
		logger.DebugContext(ctx, "Dropping user message outside active state", "state", s.State().String())
		return
	}
	if text == "" {
		return
	}

	s.store.Append(transcript.Message{Role: transcript.RoleUser, Content: text})

	response, err := s.chatModel.Prompt(ctx, s.promptOptions()...)
	if err != nil {
		s.containFailure(ctx, fmt.Errorf("failed to prompt chat model: %w", err))
		return
	}

	if response.HasToolCalls() {
		s.executeToolCalls(ctx, text, response)
		return
	}

	if response.Content != "" {
		s.respond(ctx, response.Content)
	}
}

// respond delivers an assistant utterance everywhere it needs to go: the
// transcript, the chat channel, speech output and the response callback.
func (s *Session) respond(ctx context.Context, text string) {
	s.store.Append(transcript.Message{Role: transcript.RoleAssistant, Content: text})

	if s.callbacks.onResponse != nil {
		s.callbacks.onResponse(text)
	}
	if s.transport != nil {
		if err := s.transport.SendChatMessage(text); err != nil {
			logger.WarnContext(ctx, "Failed to send chat message", "error", err)
		}
	}
	if s.speechOutput != nil {
		if err := s.speechOutput.Speak(ctx, text); err != nil {
			logger.WarnContext(ctx, "Failed to speak response", "error", err)
		}
	}
}

// containFailure keeps the session alive after an internal error: the error
// is recorded and the participant gets an apology instead of a dead line.
func (s *Session) containFailure(ctx context.Context, err error) {
	logger.ErrorContext(ctx, "Contained internal failure", "error", err)
	s.respond(ctx, apologyLine)
}

func (s *Session) promptOptions() []llms.PromptOption {
	opts := []llms.PromptOption{
		llms.WithSystemPrompt(s.instructions),
		llms.WithMessages(s.historyMessages()...),
	}
	if s.registry.Len() > 0 {
		opts = append(opts, llms.WithTools(s.registry.Tools()...))
	}
	return opts
}

func (s *Session) historyMessages() []llms.Message {
	snapshot := s.store.Snapshot()
	messages := make([]llms.Message, 0, len(snapshot))
	for _, msg := range snapshot {
		messages = append(messages, llms.Message{
			Role:    llms.Role(msg.Role),
			Content: msg.Content,
		})
	}
	return messages
}

// shutdown persists the transcript best-effort and closes the transport.
// Persistence failure is logged, never returned.
func (s *Session) shutdown(ctx context.Context) {
	if s.State() == StateClosed {
		return
	}
	s.setState(StateClosing)

	if s.transcriptWriter != nil {
		if err := s.transcriptWriter.Write(s.store); err != nil {
			logger.ErrorContext(ctx, "Failed to persist transcript", "error", err)
		}
	}

	if s.speechOutput != nil {
		if err := s.speechOutput.Stop(); err != nil {
			logger.WarnContext(ctx, "Failed to stop speech output", "error", err)
		}
	}
	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			logger.WarnContext(ctx, "Failed to close transport", "error", err)
		}
	}

	s.setState(StateClosed)
}
