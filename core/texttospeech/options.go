package texttospeech

import "github.com/knolabs/daela/core/audio"

type TextToSpeechOptions struct {
	// SpeechAudioCallback is called with synthesized audio as it is produced.
	SpeechAudioCallback func(audio []byte)
	// SpeechEndedCallback is called once all text sent so far has been
	// synthesized.
	SpeechEndedCallback func()
	// ErrorCallback is called when the client encounters a stream error.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

func WithSpeechAudioCallback(callback func([]byte)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.SpeechAudioCallback = callback }
}

func WithSpeechEndedCallback(callback func()) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.SpeechEndedCallback = callback }
}

func WithErrorCallback(callback func(error)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.ErrorCallback = callback }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}
