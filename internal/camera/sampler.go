package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"
)

type SamplerConfig struct {
	Width  int
	Height int
	// Zoom is applied best-effort when the track reports a zoom range.
	Zoom           float64
	AcquireTimeout time.Duration
	// Crop is nil to hand full frames to the detector.
	Crop *CropRegion
}

func DefaultSamplerConfig() SamplerConfig {
	crop := DefaultCrop
	return SamplerConfig{
		Width:          1280,
		Height:         720,
		Zoom:           1.5,
		AcquireTimeout: 10 * time.Second,
		Crop:           &crop,
	}
}

// Sampler holds at most one camera stream and serves frames from it.
type Sampler struct {
	devices Devices
	cfg     SamplerConfig
	log     *slog.Logger

	mu     sync.Mutex
	stream Stream
	facing Facing
	torch  bool
	paused bool
}

func NewSampler(devices Devices, cfg SamplerConfig, log *slog.Logger) *Sampler {
	if log == nil {
		log = slog.Default()
	}
	return &Sampler{
		devices: devices,
		cfg:     cfg,
		log:     log,
		facing:  FacingRear,
	}
}

// Start acquires a stream with the given facing, releasing any stream held before.
func (s *Sampler) Start(ctx context.Context, facing Facing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx, facing)
}

func (s *Sampler) startLocked(ctx context.Context, facing Facing) error {
	s.stopLocked()

	if s.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AcquireTimeout)
		defer cancel()
	}

	stream, err := s.devices.Open(ctx, Constraints{
		Facing:          facing,
		Width:           s.cfg.Width,
		Height:          s.cfg.Height,
		ContinuousFocus: true,
		FrameRate:       30,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %v", ErrAcquireTimeout, s.cfg.AcquireTimeout)
		}
		return err
	}

	s.stream = stream
	s.facing = facing
	s.torch = false
	s.paused = false
	s.applyZoom(ctx, stream)
	return nil
}

func (s *Sampler) applyZoom(ctx context.Context, stream Stream) {
	if s.cfg.Zoom <= 0 {
		return
	}
	caps := stream.Capabilities()
	if !caps.SupportsZoom() {
		return
	}
	zoom := min(s.cfg.Zoom, caps.ZoomMax)
	zoom = max(zoom, caps.ZoomMin)
	if err := stream.Apply(ctx, TrackSettings{Zoom: &zoom}); err != nil {
		s.log.Debug("zoom constraint skipped", "zoom", zoom, "error", err)
	}
}

// Stop releases the held stream. Safe to call at any time.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Sampler) stopLocked() {
	if s.stream != nil {
		s.stream.Stop()
		s.stream = nil
	}
	s.torch = false
	s.paused = false
}

// SwitchFacing restarts the stream with the opposite facing. Torch state does not
// carry over to the new stream; a paused sampler stays paused.
func (s *Sampler) SwitchFacing(ctx context.Context) (Facing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.facing.Opposite()
	paused := s.paused
	if err := s.startLocked(ctx, next); err != nil {
		return s.facing, err
	}
	s.paused = paused
	return next, nil
}

// ToggleTorch flips the torch of the active track and returns the new state.
func (s *Sampler) ToggleTorch(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return false, ErrNotStarted
	}
	if !s.stream.Capabilities().Torch {
		return s.torch, ErrTorchUnsupported
	}
	want := !s.torch
	if err := s.stream.Apply(ctx, TrackSettings{Torch: &want}); err != nil {
		return s.torch, fmt.Errorf("apply torch: %w", err)
	}
	s.torch = want
	return want, nil
}

// Pause freezes the frame source; Next fails with ErrPaused until Resume.
func (s *Sampler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume unfreezes the frame source. It returns false when the stream is gone.
func (s *Sampler) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil || !s.stream.Live() {
		return false
	}
	s.paused = false
	return true
}

// Next returns the latest frame, cropped to the scan region when configured.
func (s *Sampler) Next(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	stream, paused := s.stream, s.paused
	s.mu.Unlock()

	if stream == nil {
		return nil, ErrNotStarted
	}
	if paused {
		return nil, ErrPaused
	}
	frame, err := stream.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}
	if s.cfg.Crop != nil {
		frame = Crop(frame, *s.cfg.Crop)
	}
	return frame, nil
}

func (s *Sampler) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil && s.stream.Live()
}

func (s *Sampler) Facing() Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facing
}

func (s *Sampler) TorchOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.torch
}
