package speechtotext

import "github.com/knolabs/daela/core/audio"

type TranscriptionOptions struct {
	// InterimTranscriptionCallback receives the mutable interim transcript
	// of the utterance in progress.
	InterimTranscriptionCallback func(transcript string)
	// SegmentTranscriptionCallback receives each finalized, append-only
	// transcript segment.
	SegmentTranscriptionCallback func(segment string)
	// TranscriptionCallback receives the terminal full transcript of an
	// utterance once speech has ended.
	TranscriptionCallback func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithSegmentTranscriptionCallback(callback func(segment string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SegmentTranscriptionCallback = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
