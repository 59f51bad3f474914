package deepgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/knolabs/daela/core/speechtotext"
)

type connectionOptions struct {
	sampleRate int
	encoding   string

	detectSpeechStart            bool
	enhanceSpeechEndingDetection bool
	interimResults               bool
}

func (c *Client) connectWebsocket(options connectionOptions) (*websocket.Conn, error) {
	listenURL, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.model)
	queryParams.Set("language", "en-US")
	queryParams.Set("smart_format", "true")
	if options.enhanceSpeechEndingDetection {
		queryParams.Set("utterance_end_ms", "1000")
		queryParams.Set("interim_results", "true")
	} else if options.interimResults {
		queryParams.Set("interim_results", "true")
	}
	queryParams.Set("endpointing", "300")
	if options.detectSpeechStart || options.enhanceSpeechEndingDetection {
		queryParams.Set("vad_events", "true")
	}

	listenURL.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, err
	}

	return conn, nil
}

func (c *Client) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.TranscriptionOptions) {
	keepAliveCtx, cancelKeepAlive := context.WithCancel(ctx)
	defer cancelKeepAlive()

	go c.keepStreamAlive(keepAliveCtx, options.EncodingInfo)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if err.Error() != "websocket: close 1000 (normal)" {
				logger.WarnContext(ctx, "failed to read deepgram websocket message", "error", err)
			}

			c.connMu.Lock()
			c.conn = nil
			c.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			c.processMessage(ctx, msg, options)
		}
	}
}

func (c *Client) processMessage(ctx context.Context, msg []byte, options speechtotext.TranscriptionOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.WarnContext(ctx, "failed to unmarshal deepgram transcript", "error", err)
			return
		}
		c.processTranscript(msgResp, options)

	case api.TypeUtteranceEndResponse:
		c.segmentsMu.Lock()
		open := c.openUtterance
		c.segmentsMu.Unlock()
		if open {
			c.finishUtterance(options)
		}

	case api.TypeSpeechStartedResponse:
		c.segmentsMu.Lock()
		c.openUtterance = true
		c.segmentsMu.Unlock()
		if options.SpeechStartedCallback != nil {
			options.SpeechStartedCallback()
		}
	}
}

func (c *Client) processTranscript(msgResp api.MessageResponse, options speechtotext.TranscriptionOptions) {
	if len(msgResp.Channel.Alternatives) == 0 {
		if msgResp.IsFinal && msgResp.SpeechFinal {
			c.finishUtterance(options)
		}
		return
	}

	transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)

	if msgResp.IsFinal {
		if len(transcript) > 0 {
			if options.TranscriptionCallback != nil {
				c.segmentsMu.Lock()
				c.segments = append(c.segments, transcript)
				c.segmentsMu.Unlock()
			}
			if options.SegmentTranscriptionCallback != nil {
				options.SegmentTranscriptionCallback(transcript)
			}
		}
		if msgResp.SpeechFinal {
			c.finishUtterance(options)
		}
		return
	}

	if options.InterimTranscriptionCallback != nil && len(transcript) > 0 {
		c.segmentsMu.Lock()
		interim := strings.TrimSpace(strings.Join(append(append([]string{}, c.segments...), transcript), " "))
		c.segmentsMu.Unlock()
		options.InterimTranscriptionCallback(interim)
	}
}

// finishUtterance flushes accumulated segments as the terminal transcript.
func (c *Client) finishUtterance(options speechtotext.TranscriptionOptions) {
	c.segmentsMu.Lock()
	fullTranscript := strings.TrimSpace(strings.Join(c.segments, " "))
	c.segments = nil
	c.openUtterance = false
	c.segmentsMu.Unlock()

	if options.TranscriptionCallback != nil && len(fullTranscript) > 0 {
		options.TranscriptionCallback(fullTranscript)
	}
	if options.SpeechEndedCallback != nil {
		options.SpeechEndedCallback()
	}
}
