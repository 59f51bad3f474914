// Package deepgram transcribes audio through the Deepgram live websocket
// API. A single client serves one session; Transcribe opens the stream and
// SendAudio feeds it until the context ends or Close is called.
package deepgram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/knolabs/daela/core/audio"
	"github.com/knolabs/daela/core/speechtotext"
)

type Client struct {
	apiKey string
	model  string

	conn   *websocket.Conn
	connMu sync.Mutex

	lastAudioAt time.Time

	// segments accumulates finalized transcript pieces until speech ends.
	segments      []string
	openUtterance bool
	segmentsMu    sync.Mutex
}

type Option func(*Client)

// WithModel overrides the transcription model (default nova-3).
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	client := &Client{apiKey: apiKey, model: "nova-3"}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Transcribe opens the live transcription stream and starts dispatching
// callbacks. It returns immediately; transcription continues until the
// context is cancelled or Close is called.
func (c *Client) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := &speechtotext.TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := c.connectWebsocket(connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),

		detectSpeechStart: options.SpeechStartedCallback != nil,
		enhanceSpeechEndingDetection: options.TranscriptionCallback != nil ||
			options.SpeechEndedCallback != nil,
		interimResults: options.InterimTranscriptionCallback != nil,
	})
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	go c.readAndProcessMessages(ctx, conn, *options)

	return nil
}

// SendAudio forwards a raw audio chunk to the live stream.
func (c *Client) SendAudio(chunk []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("transcription stream not open")
	}

	c.lastAudioAt = time.Now()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("failed to write to deepgram stream: %w", err)
	}
	return nil
}

// Close finalizes the stream. Safe to call when the stream never opened.
func (c *Client) Close(_ context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}

	if err := c.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "CloseStream"}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}
