// Package deepgram synthesizes speech through the Deepgram streaming speak
// websocket API.
package deepgram

import (
	"context"
	"fmt"
	"slices"

	"github.com/knolabs/daela/core/audio"
	"github.com/knolabs/daela/core/texttospeech"
)

type Voice string

const (
	VoiceAsteria Voice = "aura-asteria-en"
	VoiceLuna    Voice = "aura-luna-en"
	VoiceStella  Voice = "aura-stella-en"
	VoiceAthena  Voice = "aura-athena-en"
	VoiceHera    Voice = "aura-hera-en"
	VoiceOrion   Voice = "aura-orion-en"
	VoiceArcas   Voice = "aura-arcas-en"
	VoicePerseus Voice = "aura-perseus-en"
	VoiceAngus   Voice = "aura-angus-en"
	VoiceOrpheus Voice = "aura-orpheus-en"
	VoiceHelios  Voice = "aura-helios-en"
	VoiceZeus    Voice = "aura-zeus-en"
)

const defaultVoice = VoiceAsteria

func AvailableVoices() []Voice {
	return []Voice{
		VoiceAsteria, VoiceLuna, VoiceStella, VoiceAthena, VoiceHera, VoiceOrion,
		VoiceArcas, VoicePerseus, VoiceAngus, VoiceOrpheus, VoiceHelios, VoiceZeus,
	}
}

// Client synthesizes speech over a single websocket stream. OpenStream must
// be called before Speak; synthesized audio is delivered through the
// configured audio callback.
type Client struct {
	apiKey string
	voice  Voice

	stream *speakStream
}

func NewClient(apiKey string, voice Voice) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	if voice == "" {
		voice = defaultVoice
	}
	if !slices.Contains(AvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice %q", voice)
	}

	return &Client{apiKey: apiKey, voice: voice}, nil
}

// OpenStream connects the speak websocket and starts delivering audio to the
// configured callbacks.
func (c *Client) OpenStream(ctx context.Context, opts ...texttospeech.TextToSpeechOption) error {
	options := texttospeech.TextToSpeechOptions{
		SpeechAudioCallback: func([]byte) {},
		SpeechEndedCallback: func() {},
		ErrorCallback:       func(error) {},
		EncodingInfo:        audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	stream, err := openSpeakStream(ctx, c.apiKey, c.voice, options)
	if err != nil {
		return fmt.Errorf("failed to open speak stream: %w", err)
	}

	c.stream = stream
	return nil
}

// Speak queues text for synthesis and flushes it. Audio arrives through the
// stream's audio callback; the call does not wait for synthesis to finish.
func (c *Client) Speak(_ context.Context, text string) error {
	if c.stream == nil {
		return fmt.Errorf("speak stream not open")
	}

	if err := c.stream.sendText(text); err != nil {
		return fmt.Errorf("failed to queue text for synthesis: %w", err)
	}
	if err := c.stream.flush(); err != nil {
		return fmt.Errorf("failed to flush speak stream: %w", err)
	}
	return nil
}

// Stop interrupts in-flight synthesis, discarding any queued text.
func (c *Client) Stop() error {
	if c.stream == nil {
		return nil
	}
	return c.stream.clear()
}

// Close closes the speak stream. Safe to call when no stream is open.
func (c *Client) Close(_ context.Context) error {
	if c.stream == nil {
		return nil
	}

	err := c.stream.close()
	c.stream = nil
	return err
}
