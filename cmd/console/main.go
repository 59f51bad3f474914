// Command console runs a local terminal agent against the default microphone
// and speakers, with a small TUI for typed chat and live transcripts. Set
// AUDIO_BACKEND=portaudio to switch away from the default miniaudio backend.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	session "github.com/knolabs/daela/core"
	"github.com/knolabs/daela/core/actions"
	"github.com/knolabs/daela/core/audio/miniaudio"
	"github.com/knolabs/daela/core/audio/portaudio"
	"github.com/knolabs/daela/core/events"
	"github.com/knolabs/daela/core/llms/cerebras"
	sttdeepgram "github.com/knolabs/daela/core/speechtotext/deepgram"
	"github.com/knolabs/daela/core/texttospeech"
	ttsdeepgram "github.com/knolabs/daela/core/texttospeech/deepgram"
	"github.com/knolabs/daela/core/transcript"
	"github.com/knolabs/daela/core/weather"
)

const instructions = "You are a helpful voice assistant running in a terminal. " +
	"Keep responses short and conversational; you are being read aloud."

const greeting = "Hi! I'm listening. Ask me anything, or try the weather."

// audioBackend is the slice of the local audio clients the console needs.
type audioBackend interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	SendAudio(audio []byte) error
	ClearBuffer()
	Close()
}

// localSpeaker synthesizes through Deepgram and plays on the local device.
// Stop also drops buffered playback so interruptions cut off mid-word.
type localSpeaker struct {
	tts     *ttsdeepgram.Client
	backend audioBackend
}

func (s *localSpeaker) Speak(ctx context.Context, text string) error {
	return s.tts.Speak(ctx, text)
}

func (s *localSpeaker) Stop() error {
	err := s.tts.Stop()
	s.backend.ClearBuffer()
	return err
}

func main() {
	if err := run(); err != nil {
		log.Fatalln(err)
	}
}

func run() error {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println("No environment file loaded")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := newAudioBackend()
	if err != nil {
		return fmt.Errorf("failed to initialize audio backend: %w", err)
	}
	defer backend.Close()

	chatModel, err := cerebras.NewClient(os.Getenv("CEREBRAS_API_KEY"))
	if err != nil {
		return fmt.Errorf("failed to create chat model: %w", err)
	}

	sttClient, err := sttdeepgram.NewClient(os.Getenv("DEEPGRAM_API_KEY"))
	if err != nil {
		return fmt.Errorf("failed to create transcription client: %w", err)
	}

	ttsClient, err := ttsdeepgram.NewClient(os.Getenv("DEEPGRAM_API_KEY"), ttsdeepgram.VoiceAsteria)
	if err != nil {
		return fmt.Errorf("failed to create speech client: %w", err)
	}
	if err := ttsClient.OpenStream(ctx,
		texttospeech.WithSpeechAudioCallback(func(audio []byte) {
			if err := backend.SendAudio(audio); err != nil {
				log.Println("Failed to play audio:", err)
			}
		}),
	); err != nil {
		return fmt.Errorf("failed to open speech stream: %w", err)
	}
	defer ttsClient.Close(context.Background())

	var program *tea.Program

	agent, err := session.New(
		session.WithInstructions(instructions),
		session.WithGreeting(greeting),
		session.WithChatModel(chatModel),
		session.WithSpeechInput(sttClient),
		session.WithSpeechOutput(&localSpeaker{tts: ttsClient, backend: backend}),
		session.WithActions(actions.NewWeatherAction(weather.NewClient())),
		session.WithTranscriptWriter(transcript.NewFileWriter(envOr("TRANSCRIPT_FILE", "convo.txt"))),
		session.WithResponseCallback(func(text string) {
			program.Send(assistantMsg(text))
		}),
		session.WithTranscriptionCallback(func(text string) {
			program.Send(userTranscriptMsg(text))
		}),
		session.WithInterimTranscriptionCallback(func(text string) {
			program.Send(interimTranscriptMsg(text))
		}),
		session.WithStateChangeCallback(func(state session.State) {
			program.Send(statusMsg(state.String()))
		}),
		session.WithActionCompletedCallback(func(event events.ActionCompleted) {
			if event.Err != nil {
				program.Send(statusMsg(fmt.Sprintf("%s failed", event.Name)))
				return
			}
			program.Send(statusMsg(fmt.Sprintf("%s finished", event.Name)))
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	program = tea.NewProgram(newModel(
		func(text string) { agent.Dispatch(events.NewUserText(text)) },
		func() { agent.Close() },
	), tea.WithAltScreen())

	if err := backend.StartCapture(ctx, func(audio []byte) {
		if err := sttClient.SendAudio(audio); err != nil {
			log.Println("Failed to forward audio:", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer backend.StopCapture()

	runErr := make(chan error, 1)
	go func() {
		runErr <- agent.Run(ctx)
	}()
	// There is no room to wait on; the local user is the participant.
	agent.Dispatch(events.NewParticipantJoined("console"))

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal error: %w", err)
	}

	agent.Close()
	return <-runErr
}

func newAudioBackend() (audioBackend, error) {
	if os.Getenv("AUDIO_BACKEND") == "portaudio" {
		return portaudio.NewClient(1024)
	}
	return miniaudio.NewClient()
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
