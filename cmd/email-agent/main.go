// Command email-agent runs a voice email assistant in a LiveKit room. It
// collects recipient, subject and content, sends through SendGrid, and saves
// the conversation to a flat file when the call ends.
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
	"github.com/knolabs/daela/core/mail"
	"github.com/knolabs/daela/core/mail/sendgrid"
	sttdeepgram "github.com/knolabs/daela/core/speechtotext/deepgram"
	"github.com/knolabs/daela/core/texttospeech"
	ttsdeepgram "github.com/knolabs/daela/core/texttospeech/deepgram"
	"github.com/knolabs/daela/core/transcript"
	"github.com/knolabs/daela/core/transport/livekit"
)

const instructions = "You are an email assistant. Your interface with users will be voice. " +
	"You will help users send emails by collecting the recipient's email address, subject, and content. " +
	"When sending emails: " +
	"1. Ask for any missing information (email, subject, or content) if not provided. " +
	"2. Confirm the details before sending. " +
	"3. Format the content professionally. " +
	"4. Let users know when the email is being sent."

const greeting = "Hello! I'm your email assistant. I can help you send emails - just let me know the recipient's address and what you'd like to say."

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

	sender := sendgrid.NewClient(os.Getenv("SENDGRID_API_KEY"))
	from := mail.Address{
		Email: envOr("EMAIL_FROM", "assistant@example.com"),
		Name:  envOr("EMAIL_FROM_NAME", "Email Assistant"),
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
		livekit.WithIdentity("email-assistant"),
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
		session.WithRoom(envOr("LIVEKIT_ROOM", "email")),
		session.WithChatModel(chatModel),
		session.WithSpeechInput(sttClient),
		session.WithSpeechOutput(&roomSpeaker{tts: ttsClient, room: roomTransport}),
		session.WithTransport(roomTransport),
		session.WithActions(actions.NewSendEmailAction(sender, from)),
		session.WithTranscriptWriter(transcript.NewFileWriter(envOr("TRANSCRIPT_FILE", "convo.txt"))),
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
