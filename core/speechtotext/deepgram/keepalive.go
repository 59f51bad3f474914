package deepgram

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/knolabs/daela/core/audio"
)

// Deepgram closes streams that go quiet. When the caller stops sending audio
// the client first pads the stream with silence so endpointing can settle,
// then falls back to periodic KeepAlive messages.
func (c *Client) keepStreamAlive(ctx context.Context, encoding audio.EncodingInfo) {
	const (
		tickMs            = 50
		silenceWindowMs   = 1000
		keepAliveInterval = 5 * time.Second
	)

	ticker := time.NewTicker(tickMs * time.Millisecond)
	defer ticker.Stop()

	chunk := make([]byte, encoding.SampleRate*encoding.Format.ByteSize()*tickMs/1000)
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	var silenceStarted *time.Time
	var lastKeepAlive *time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.connMu.Lock()
			idle := time.Since(c.lastAudioAt).Milliseconds() > tickMs
			c.connMu.Unlock()

			if !idle {
				silenceStarted = nil
				lastKeepAlive = nil
				continue
			}

			switch {
			case silenceStarted == nil && lastKeepAlive == nil:
				now := time.Now()
				silenceStarted = &now

			case silenceStarted != nil && time.Since(*silenceStarted).Milliseconds() >= silenceWindowMs:
				now := time.Now()
				lastKeepAlive = &now
				silenceStarted = nil
				c.sendKeepAlive(ctx)

			case silenceStarted != nil:
				if err := c.sendSilence(chunk); err != nil {
					logger.WarnContext(ctx, "failed to pad deepgram stream with silence", "error", err)
				}

			case lastKeepAlive != nil && time.Since(*lastKeepAlive) >= keepAliveInterval:
				now := time.Now()
				lastKeepAlive = &now
				c.sendKeepAlive(ctx)
			}
		}
	}
}

func (c *Client) sendKeepAlive(ctx context.Context) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return
	}

	if err := c.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "KeepAlive"}); err != nil {
		logger.WarnContext(ctx, "failed to send deepgram keepalive", "error", err)
	}
}

func (c *Client) sendSilence(chunk []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, chunk)
}
