package livekit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hraban/opus"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	webrtcmedia "github.com/pion/webrtc/v4/pkg/media"
)

// trackSampleRate is the PCM rate WebRTC Opus tracks run at.
const trackSampleRate = 48000

const maxOpusFrameSamples = 5760 // 120ms at 48kHz

// pumpAudioTrack decodes a participant's Opus microphone track and forwards
// PCM at the session sample rate until the track ends.
func (t *Transport) pumpAudioTrack(ctx context.Context, track *webrtc.TrackRemote, rp *lksdk.RemoteParticipant) {
	decoder, err := opus.NewDecoder(trackSampleRate, 1)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create opus decoder", "participant", rp.Identity(), "error", err)
		return
	}

	pcmBuffer := make([]int16, maxOpusFrameSamples)
	for {
		packet, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.WarnContext(ctx, "Failed to read audio packet", "participant", rp.Identity(), "error", err)
			}
			return
		}
		if len(packet.Payload) == 0 {
			continue
		}

		samples, err := decoder.Decode(packet.Payload, pcmBuffer)
		if err != nil {
			logger.WarnContext(ctx, "Failed to decode audio packet", "participant", rp.Identity(), "error", err)
			continue
		}
		if samples == 0 {
			continue
		}

		pcm := make([]byte, samples*2)
		for i := range samples {
			pcm[i*2] = byte(pcmBuffer[i])
			pcm[i*2+1] = byte(pcmBuffer[i] >> 8)
		}

		if t.callbacks.OnAudioFrame != nil {
			t.callbacks.OnAudioFrame(resamplePCM16(pcm, trackSampleRate, t.sampleRate))
		}
	}
}

// resamplePCM16 performs nearest-sample rate conversion on 16-bit mono PCM.
func resamplePCM16(pcm []byte, fromRate, toRate int) []byte {
	if fromRate == toRate {
		return pcm
	}

	samples := len(pcm) / 2
	ratio := float64(toRate) / float64(fromRate)
	outSamples := int(float64(samples) * ratio)

	out := make([]byte, outSamples*2)
	for i := range outSamples {
		src := int(float64(i) / ratio)
		if src >= samples {
			src = samples - 1
		}
		out[i*2] = pcm[src*2]
		out[i*2+1] = pcm[src*2+1]
	}
	return out
}

// sampleProvider feeds queued PCM chunks to the published voice track.
type sampleProvider struct {
	queueCh chan []byte

	mu     sync.Mutex
	closed bool
}

func newSampleProvider() *sampleProvider {
	return &sampleProvider{queueCh: make(chan []byte, 100)}
}

func (p *sampleProvider) NextSample(ctx context.Context) (webrtcmedia.Sample, error) {
	select {
	case <-ctx.Done():
		return webrtcmedia.Sample{}, ctx.Err()
	case pcm, ok := <-p.queueCh:
		if !ok {
			return webrtcmedia.Sample{}, io.EOF
		}
		samples := len(pcm) / 2
		return webrtcmedia.Sample{
			Data:     pcm,
			Duration: time.Duration(samples) * time.Second / trackSampleRate,
		}, nil
	}
}

func (p *sampleProvider) OnBind() error   { return nil }
func (p *sampleProvider) OnUnbind() error { return nil }

func (p *sampleProvider) Close() error {
	p.close()
	return nil
}

func (p *sampleProvider) queue(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("voice track closed")
	}

	select {
	case p.queueCh <- pcm:
		return nil
	default:
		return fmt.Errorf("voice track queue full")
	}
}

// clear drops all queued PCM that has not reached the track yet.
func (p *sampleProvider) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	for {
		select {
		case <-p.queueCh:
		default:
			return
		}
	}
}

func (p *sampleProvider) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.queueCh)
	}
}
