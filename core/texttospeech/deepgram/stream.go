package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/knolabs/daela/core/texttospeech"
)

const speakEndpoint = "wss://api.deepgram.com/v1/speak"

type speakStream struct {
	conn    *websocket.Conn
	options texttospeech.TextToSpeechOptions
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type speakResponse struct {
	Type string `json:"type"`
}

func openSpeakStream(ctx context.Context, apiKey string, voice Voice, options texttospeech.TextToSpeechOptions) (*speakStream, error) {
	query := url.Values{}
	query.Set("encoding", options.EncodingInfo.Format.Name())
	query.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	query.Set("model", string(voice))
	query.Set("container", "none")

	header := http.Header{}
	header.Set("Authorization", "token "+apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, speakEndpoint+"?"+query.Encode(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to speak websocket (status %s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to speak websocket: %w", err)
	}

	stream := &speakStream{conn: conn, options: options}
	go stream.readAndProcessMessages(ctx)

	return stream, nil
}

func (s *speakStream) readAndProcessMessages(ctx context.Context) {
	for {
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			logger.ErrorContext(ctx, "Failed to read speak websocket message", "error", err)
			s.options.ErrorCallback(err)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.options.SpeechAudioCallback(message)
		case websocket.TextMessage:
			var response speakResponse
			if err := json.Unmarshal(message, &response); err != nil {
				logger.WarnContext(ctx, "Failed to unmarshal speak response", "error", err)
				continue
			}

			switch response.Type {
			case "Flushed":
				s.options.SpeechEndedCallback()
			case "Cleared", "Metadata", "Warning":
				// No action needed.
			}
		}
	}
}

func (s *speakStream) sendText(text string) error {
	return s.conn.WriteJSON(speakMessage{Type: "Speak", Text: text})
}

func (s *speakStream) flush() error {
	return s.conn.WriteJSON(speakMessage{Type: "Flush"})
}

func (s *speakStream) clear() error {
	return s.conn.WriteJSON(speakMessage{Type: "Clear"})
}

func (s *speakStream) close() error {
	if err := s.conn.WriteJSON(speakMessage{Type: "Close"}); err != nil {
		return s.conn.Close()
	}
	return s.conn.Close()
}
