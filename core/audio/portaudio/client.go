// Package portaudio is an alternative local audio backend built on the
// PortAudio bindings, for platforms where miniaudio misbehaves.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/knolabs/daela/core/audio"
)

type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	queuedAudio []byte
	audioMu     sync.Mutex

	capturing bool
	stop      chan struct{}

	in  []int16
	out []int16
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

// StartCapture reads microphone audio until the context is cancelled or
// StopCapture is called, handing each buffer to onAudio.
func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	if c.capturing {
		return nil
	}
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}
	c.capturing = true
	c.stop = make(chan struct{})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			default:
				if err := c.stream.Read(); err != nil {
					continue
				}

				audioBuffer := bytes.Buffer{}
				binary.Write(&audioBuffer, binary.LittleEndian, c.in)
				onAudio(audioBuffer.Bytes())
			}
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	if !c.capturing {
		return nil
	}
	c.capturing = false
	close(c.stop)
	return nil
}

// SendAudio plays PCM on the output device, buffering partial frames until
// enough data arrives to fill the stream buffer.
func (c *Client) SendAudio(audio []byte) error {
	frameBytes := c.bufferSize * 2

	c.audioMu.Lock()
	defer c.audioMu.Unlock()

	audio = append(c.queuedAudio, audio...)
	for i := range len(audio)/frameBytes + 1 {
		if (i+1)*frameBytes > len(audio) {
			c.queuedAudio = make([]byte, len(audio)-i*frameBytes)
			copy(c.queuedAudio, audio[i*frameBytes:])
			break
		}

		binary.Read(bytes.NewBuffer(audio[i*frameBytes:(i+1)*frameBytes]), binary.LittleEndian, c.out)
		c.stream.Write()
	}

	return nil
}

func (c *Client) ClearBuffer() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.queuedAudio = nil
}

func (c *Client) Close() {
	c.stream.Close()
	portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
