// Command dental-agent runs Daela, a dental assistant for Knolabs Dental
// Agency, in a LiveKit room. Daela triages symptom urgency and can look at
// the caller's camera to give a preliminary read of a dental issue.
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
	"github.com/knolabs/daela/core/llms/cerebras"
	sttdeepgram "github.com/knolabs/daela/core/speechtotext/deepgram"
	"github.com/knolabs/daela/core/texttospeech"
	ttsdeepgram "github.com/knolabs/daela/core/texttospeech/deepgram"
	"github.com/knolabs/daela/core/transport/livekit"
)

const instructions = "Your name is Daela, a dental assistant for Knolabs Dental Agency. You are soft, caring with a bit of humour in you when responding. " +
	"You offer appointment booking for dental care services, including urgent attention, routine check-ups, and long-term treatments available at prices according to needs which you can't say immediately. An onsite appointment is required. " +
	"You can also analyze dental images to provide preliminary assessments, but always emphasize the need for professional in-person examination. " +
	"Provide friendly, professional assistance and emphasize the importance of regular dental care. " +
	"The users asking you questions could be of different age, so ask questions one by one. " +
	"Any query outside of the dental service, politely reject stating your purpose. " +
	"When starting conversation try and get the patient's name and email address in sequence if not already provided. " +
	"If the care needed is not urgent, you can ask the user to show the dental area to use your vision capabilities to analyse the issue and offer assistance. " +
	"Always keep your conversation engaging, short and try to offer the in-person appointment."

const greeting = "Hello! I'm Daela, your dental assistant at Knolabs Dental Agency. Can I know if you are the patient or you're representing the patient?"

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

	roomTransport, err := livekit.New(
		os.Getenv("LIVEKIT_URL"),
		os.Getenv("LIVEKIT_API_KEY"),
		os.Getenv("LIVEKIT_API_SECRET"),
		livekit.WithIdentity("daela"),
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
		session.WithRoom(envOr("LIVEKIT_ROOM", "dental-office")),
		session.WithChatModel(chatModel),
		session.WithSpeechInput(sttClient),
		session.WithSpeechOutput(&roomSpeaker{tts: ttsClient, room: roomTransport}),
		session.WithTransport(roomTransport),
		session.WithActions(
			actions.NewTriageAction(),
			actions.NewAnalyzeImageAction(),
		),
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
