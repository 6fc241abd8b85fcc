// Package camera owns camera stream acquisition and exposes frames to the scanner.
//
// A Devices implementation hands out Streams; the Sampler on top of it guarantees
// that at most one stream is held at a time, applies the scanning constraints and
// crops frames to the scan region.
package camera

import (
	"context"
	"image"
)

type Facing string

const (
	FacingRear  Facing = "environment"
	FacingFront Facing = "user"
)

func (f Facing) Opposite() Facing {
	if f == FacingFront {
		return FacingRear
	}
	return FacingFront
}

// Constraints describe the stream requested from a device.
type Constraints struct {
	Facing          Facing `json:"facing"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	ContinuousFocus bool   `json:"continuous_focus"`
	FrameRate       int    `json:"frame_rate,omitempty"`
}

// Capabilities is what the active video track reports it can do.
type Capabilities struct {
	Torch   bool    `json:"torch"`
	ZoomMin float64 `json:"zoom_min,omitempty"`
	ZoomMax float64 `json:"zoom_max,omitempty"`
}

func (c Capabilities) SupportsZoom() bool {
	return c.ZoomMax > 0
}

// TrackSettings is a constraint update for a live track. Nil fields are not sent.
type TrackSettings struct {
	Torch *bool    `json:"torch,omitempty"`
	Zoom  *float64 `json:"zoom,omitempty"`
}

// Stream is one acquired camera stream.
type Stream interface {
	// ReadFrame blocks until a frame newer than the previously read one exists.
	ReadFrame(ctx context.Context) (image.Image, error)
	Capabilities() Capabilities
	Apply(ctx context.Context, settings TrackSettings) error
	// Stop releases every track of the stream. It is idempotent.
	Stop()
	Live() bool
}

// Devices acquires streams from the host environment.
type Devices interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}
