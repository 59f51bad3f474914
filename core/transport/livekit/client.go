// Package livekit connects a session to a LiveKit room: chat over data
// packets, participant audio into transcription, camera frames into the frame
// cache, and synthesized speech out as an Opus microphone track.
package livekit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"

	"github.com/knolabs/daela/core/audio"
	"github.com/knolabs/daela/core/transport"
)

type Transport struct {
	url       string
	apiKey    string
	apiSecret string
	identity  string

	// sampleRate is the PCM rate of audio exchanged with the session, both
	// published speech and forwarded participant audio.
	sampleRate int

	mu        sync.Mutex
	room      *lksdk.Room
	callbacks transport.Callbacks
	provider  *sampleProvider
	closing   atomic.Bool
}

type Option func(*Transport)

// WithIdentity sets the participant identity and display name the agent
// joins with.
func WithIdentity(identity string) Option {
	return func(t *Transport) { t.identity = identity }
}

// WithSampleRate sets the PCM sample rate exchanged with the session.
func WithSampleRate(sampleRate int) Option {
	return func(t *Transport) {
		if sampleRate > 0 {
			t.sampleRate = sampleRate
		}
	}
}

func New(url, apiKey, apiSecret string, opts ...Option) (*Transport, error) {
	if url == "" {
		return nil, fmt.Errorf("livekit url not found")
	}
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("livekit api credentials not found")
	}

	t := &Transport{
		url:        url,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		identity:   "agent",
		sampleRate: audio.DefaultSampleRate,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Connect joins the room and publishes the agent's voice track. Participant
// tracks are subscribed as they appear; their media is delivered through the
// callbacks.
func (t *Transport) Connect(ctx context.Context, room string, callbacks transport.Callbacks) error {
	ctx, span := tracer.Start(ctx, "connect to room")
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.room != nil {
		return fmt.Errorf("already connected")
	}
	t.callbacks = callbacks

	roomCallback := &lksdk.RoomCallback{
		OnParticipantConnected: func(participant *lksdk.RemoteParticipant) {
			if callbacks.OnParticipantJoined != nil {
				callbacks.OnParticipantJoined(participant.Identity())
			}
		},
		OnParticipantDisconnected: func(participant *lksdk.RemoteParticipant) {
			if callbacks.OnParticipantLeft != nil {
				callbacks.OnParticipantLeft(participant.Identity())
			}
		},
		OnDisconnected: func() {
			if callbacks.OnDisconnected == nil {
				return
			}
			if t.closing.Load() {
				callbacks.OnDisconnected(nil)
				return
			}
			callbacks.OnDisconnected(fmt.Errorf("room connection dropped"))
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				switch track.Kind() {
				case webrtc.RTPCodecTypeAudio:
					go t.pumpAudioTrack(ctx, track, rp)
				case webrtc.RTPCodecTypeVideo:
					go t.pumpVideoTrack(ctx, track, rp)
				}
			},
			OnTrackPublished: func(publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				// The agent's own voice track must not feed back into
				// transcription.
				if rp.Identity() == t.identity {
					return
				}
				if err := publication.SetSubscribed(true); err != nil {
					logger.WarnContext(ctx, "Failed to subscribe to track", "participant", rp.Identity(), "error", err)
				}
			},
			OnDataPacket: func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
				packet, ok := data.(*lksdk.UserDataPacket)
				if !ok || callbacks.OnChatMessage == nil {
					return
				}
				callbacks.OnChatMessage(string(packet.Payload))
			},
		},
	}

	lkRoom, err := lksdk.ConnectToRoom(t.url, lksdk.ConnectInfo{
		APIKey:              t.apiKey,
		APISecret:           t.apiSecret,
		RoomName:            room,
		ParticipantIdentity: t.identity,
		ParticipantName:     t.identity,
	}, roomCallback)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to connect to room: %w", err)
	}
	t.room = lkRoom

	if err := t.publishVoiceTrack(lkRoom); err != nil {
		lkRoom.Disconnect()
		t.room = nil
		span.RecordError(err)
		return fmt.Errorf("failed to publish voice track: %w", err)
	}

	return nil
}

func (t *Transport) publishVoiceTrack(room *lksdk.Room) error {
	t.provider = newSampleProvider()

	localTrack, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType: webrtc.MimeTypeOpus,
	})
	if err != nil {
		return fmt.Errorf("failed to create local track: %w", err)
	}

	if err := localTrack.StartWrite(t.provider, func() {}); err != nil {
		return fmt.Errorf("failed to start track writer: %w", err)
	}

	if _, err := room.LocalParticipant.PublishTrack(localTrack, &lksdk.TrackPublicationOptions{
		Name:   "agent-voice",
		Source: livekit.TrackSource_MICROPHONE,
	}); err != nil {
		return fmt.Errorf("failed to publish track: %w", err)
	}

	return nil
}

// SendChatMessage publishes text to the room as a reliable data packet.
func (t *Transport) SendChatMessage(text string) error {
	t.mu.Lock()
	room := t.room
	t.mu.Unlock()

	if room == nil {
		return fmt.Errorf("not connected")
	}
	if err := room.LocalParticipant.PublishData([]byte(text), lksdk.WithDataPublishReliable(true)); err != nil {
		return fmt.Errorf("failed to publish data: %w", err)
	}
	return nil
}

// PublishSpeech queues synthesized PCM onto the agent's voice track. The
// audio is resampled to the 48kHz rate the Opus codec expects.
func (t *Transport) PublishSpeech(pcm []byte) error {
	t.mu.Lock()
	provider := t.provider
	t.mu.Unlock()

	if provider == nil {
		return fmt.Errorf("not connected")
	}
	return provider.queue(resamplePCM16(pcm, t.sampleRate, trackSampleRate))
}

// ClearSpeech drops queued speech that has not been written to the voice
// track yet, cutting playback short when the participant talks over the
// agent. Safe to call when not connected.
func (t *Transport) ClearSpeech() {
	t.mu.Lock()
	provider := t.provider
	t.mu.Unlock()

	if provider != nil {
		provider.clear()
	}
}

// Close leaves the room. The disconnect callback fires with a nil error.
func (t *Transport) Close() error {
	t.closing.Store(true)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.provider != nil {
		t.provider.close()
		t.provider = nil
	}
	if t.room != nil {
		t.room.Disconnect()
		t.room = nil
	}
	return nil
}
