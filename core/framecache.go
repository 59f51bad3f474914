package session

import (
	"sync/atomic"
	"time"
)

// Frame is an encoded video frame captured from the participant's camera.
type Frame struct {
	MIME      string
	Data      []byte
	Timestamp time.Time
}

// FrameCache holds the most recent video frame. A single slot is kept; every
// Put overwrites the previous frame. Put and Get are safe to call
// concurrently from transport callbacks and the session loop.
type FrameCache struct {
	frame atomic.Pointer[Frame]
}

// Put replaces the cached frame.
func (c *FrameCache) Put(frame Frame) {
	c.frame.Store(&frame)
}

// Get returns the most recent frame. ok is false until the first Put.
func (c *FrameCache) Get() (Frame, bool) {
	frame := c.frame.Load()
	if frame == nil {
		return Frame{}, false
	}
	return *frame, true
}
