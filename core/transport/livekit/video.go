package livekit

import (
	"context"
	"errors"
	"io"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
)

const videoClockRate = 90000

// pumpVideoTrack reassembles a participant's VP8 camera track into encoded
// frames and hands each one to the frame callback until the track ends.
func (t *Transport) pumpVideoTrack(ctx context.Context, track *webrtc.TrackRemote, rp *lksdk.RemoteParticipant) {
	builder := samplebuilder.New(50, &codecs.VP8Packet{}, videoClockRate)

	for {
		packet, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.WarnContext(ctx, "Failed to read video packet", "participant", rp.Identity(), "error", err)
			}
			return
		}

		builder.Push(packet)
		for sample := builder.Pop(); sample != nil; sample = builder.Pop() {
			if t.callbacks.OnVideoFrame != nil {
				t.callbacks.OnVideoFrame("video/vp8", sample.Data)
			}
		}
	}
}
