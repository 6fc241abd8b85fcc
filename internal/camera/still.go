package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"time"
)

// StillDevices replays a fixed set of images as a looping camera stream. It backs
// the scan command and tests; it has no physical camera behind it.
type StillDevices struct {
	Frames []image.Image
	Caps   Capabilities
	// Interval is the simulated time between frames.
	Interval time.Duration
}

// LoadStills decodes JPEG or PNG files into frames.
func LoadStills(paths ...string) ([]image.Image, error) {
	frames := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open frame %s: %w", p, err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode frame %s: %w", p, err)
		}
		frames = append(frames, img)
	}
	return frames, nil
}

func (d *StillDevices) Open(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(d.Frames) == 0 {
		return nil, ErrNoCameraFound
	}
	return &stillStream{frames: d.Frames, caps: d.Caps, interval: d.Interval, done: make(chan struct{})}, nil
}

type stillStream struct {
	frames   []image.Image
	caps     Capabilities
	interval time.Duration

	mu       sync.Mutex
	next     int
	settings TrackSettings
	once     sync.Once
	done     chan struct{}
}

func (s *stillStream) ReadFrame(ctx context.Context) (image.Image, error) {
	if s.interval > 0 {
		t := time.NewTimer(s.interval)
		defer t.Stop()
		select {
		case <-t.C:
		case <-s.done:
			return nil, ErrStreamClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	select {
	case <-s.done:
		return nil, ErrStreamClosed
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := s.frames[s.next%len(s.frames)]
	s.next++
	return frame, nil
}

func (s *stillStream) Capabilities() Capabilities { return s.caps }

func (s *stillStream) Apply(_ context.Context, settings TrackSettings) error {
	if settings.Torch != nil && !s.caps.Torch {
		return ErrTorchUnsupported
	}
	if settings.Zoom != nil && !s.caps.SupportsZoom() {
		return ErrZoomUnsupported
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.Torch != nil {
		s.settings.Torch = settings.Torch
	}
	if settings.Zoom != nil {
		s.settings.Zoom = settings.Zoom
	}
	return nil
}

func (s *stillStream) Stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *stillStream) Live() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
