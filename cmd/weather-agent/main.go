// Command weather-agent runs a voice-activated weather assistant in a
// LiveKit room, answering current-condition questions through wttr.in.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	session "github.com/knolabs/daela/core"
	"github.com/knolabs/daela/core/actions"
	"github.com/knolabs/daela/core/llms/azure"
	sttdeepgram "github.com/knolabs/daela/core/speechtotext/deepgram"
	"github.com/knolabs/daela/core/texttospeech"
	ttsdeepgram "github.com/knolabs/daela/core/texttospeech/deepgram"
	"github.com/knolabs/daela/core/transport/livekit"
	"github.com/knolabs/daela/core/weather"
)

const instructions = "You are a voice-activated weather assistant. " +
	"Provide concise, friendly weather information. " +
	"Interact naturally and help users get weather details quickly."

const greeting = "Hello! I'm your weather assistant. Which location's weather would you like to know?"

// roomSpeaker couples speech synthesis with the published voice track so an
// interruption also drops audio already queued for the room.
type roomSpeaker struct {
	tts  *ttsdeepgram.Client
	room *livekit.Transport
}

func (s *roomSpeaker) Speak(ctx context.Context, text string) error {
	return s.tts.Speak(ctx, text)
}

func (s *roomSpeaker) Stop() error {
	err := s.tts.Stop()
	s.room.ClearSpeech()
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	chatModel, err := azure.NewClient(
		os.Getenv("AZURE_OPENAI_API_KEY"),
		os.Getenv("AZURE_OPENAI_ENDPOINT"),
		envOr("AZURE_OPENAI_DEPLOYMENT", "gpt-4"),
	)
	if err != nil {
		return fmt.Errorf("failed to create chat model: %w", err)
	}

	sttClient, err := sttdeepgram.NewClient(os.Getenv("DEEPGRAM_API_KEY"))
	if err != nil {
		return fmt.Errorf("failed to create transcription client: %w", err)
	}

	ttsClient, err := ttsdeepgram.NewClient(os.Getenv("DEEPGRAM_API_KEY"), ttsdeepgram.VoiceStella)
	if err != nil {
		return fmt.Errorf("failed to create speech client: %w", err)
	}

	roomTransport, err := livekit.New(
		os.Getenv("LIVEKIT_URL"),
		os.Getenv("LIVEKIT_API_KEY"),
		os.Getenv("LIVEKIT_API_SECRET"),
		livekit.WithIdentity("weather-assistant"),
	)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	if err := ttsClient.OpenStream(ctx,
		texttospeech.WithSpeechAudioCallback(func(audio []byte) {
			if err := roomTransport.PublishSpeech(audio); err != nil {
				log.Println("Failed to publish speech:", err)
			}
		}),
	); err != nil {
		return fmt.Errorf("failed to open speech stream: %w", err)
	}
	defer ttsClient.Close(context.Background())

	agent, err := session.New(
		session.WithInstructions(instructions),
		session.WithGreeting(greeting),
		session.WithRoom(envOr("LIVEKIT_ROOM", "weather")),
		session.WithChatModel(chatModel),
		session.WithSpeechInput(sttClient),
		session.WithSpeechOutput(&roomSpeaker{tts: ttsClient, room: roomTransport}),
		session.WithTransport(roomTransport),
		session.WithActions(actions.NewWeatherAction(weather.NewClient())),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
