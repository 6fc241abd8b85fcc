package scanner

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayouballali/mahali-pos/internal/camera"
	"github.com/google/uuid"
)

type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateFrozen
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateFrozen:
		return "frozen"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// FrameSource is the camera side of a session. *camera.Sampler implements it.
type FrameSource interface {
	Start(ctx context.Context, facing camera.Facing) error
	Stop()
	Next(ctx context.Context) (image.Image, error)
	Pause()
	Resume() bool
	SwitchFacing(ctx context.Context) (camera.Facing, error)
	ToggleTorch(ctx context.Context) (bool, error)
	Live() bool
}

type SessionConfig struct {
	Facing        camera.Facing
	RequiredReads int
	Cooldown      time.Duration
	// Throttle is the minimum spacing between two processed frames.
	Throttle      time.Duration
	FeedbackDelay time.Duration
	SettleDelay   time.Duration
	// Accept filters decoded strings before they reach the confidence gate.
	// Nil accepts everything.
	Accept func(code string) bool
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Facing:        camera.FacingRear,
		RequiredReads: 2,
		Cooldown:      2 * time.Second,
		Throttle:      80 * time.Millisecond,
		FeedbackDelay: 100 * time.Millisecond,
		SettleDelay:   300 * time.Millisecond,
	}
}

// DetectFunc receives confirmed reads. It runs on the session loop; the loop is
// frozen until it returns.
type DetectFunc func(ctx context.Context, d Detection)

type Option func(*Session)

func WithFeedback(f Feedback) Option {
	return func(s *Session) { s.feedback = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStateListener registers fn to be called on every state transition.
func WithStateListener(fn func(State)) Option {
	return func(s *Session) { s.onState = fn }
}

func WithCooldown(c *Cooldown) Option {
	return func(s *Session) { s.cooldown = c }
}

// Session drives one scanning loop over a frame source.
type Session struct {
	id       string
	cfg      SessionConfig
	source   FrameSource
	detector Detector
	gate     *ConfidenceGate
	cooldown *Cooldown
	feedback Feedback
	onDetect DetectFunc
	onState  func(State)
	log      *slog.Logger

	mu          sync.Mutex
	state       State
	startCancel context.CancelFunc
	cancel      context.CancelFunc
	done        chan struct{}

	stopped     atomic.Bool
	inCallback  atomic.Bool
	emitMu      sync.Mutex
	releaseOnce sync.Once
}

func NewSession(source FrameSource, detector Detector, cfg SessionConfig, onDetect DetectFunc, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		source:   source,
		detector: detector,
		gate:     NewConfidenceGate(cfg.RequiredReads),
		feedback: NopFeedback{},
		onDetect: onDetect,
		log:      slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cooldown == nil {
		s.cooldown = NewCooldown(cfg.Cooldown)
	}
	s.log = s.log.With("scan_session", s.id)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the scan loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start acquires the camera and launches the scan loop. Camera errors are returned
// as is and leave the session idle so it can be retried. The loop runs until Stop
// is called, ctx is done or the stream goes away. A Stop during acquisition aborts
// it and Start returns ErrSessionStopped.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.stopped.Load():
		s.mu.Unlock()
		return ErrSessionStopped
	case s.state != StateIdle:
		s.mu.Unlock()
		return ErrSessionActive
	}
	startCtx, startCancel := context.WithCancel(ctx)
	defer startCancel()
	s.startCancel = startCancel
	s.setStateLocked(StateStarting)
	s.mu.Unlock()

	if err := s.source.Start(startCtx, s.cfg.Facing); err != nil {
		s.mu.Lock()
		s.startCancel = nil
		if s.state == StateStarting {
			s.setStateLocked(StateIdle)
		}
		s.mu.Unlock()
		if s.stopped.Load() {
			return ErrSessionStopped
		}
		s.log.Warn("camera start failed", "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCancel = nil
	if s.stopped.Load() {
		s.source.Stop()
		return ErrSessionStopped
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.setStateLocked(StateActive)
	go s.run(loopCtx)
	s.log.Info("scan session started", "facing", s.cfg.Facing)
	return nil
}

// Stop ends the session and aborts a camera acquisition in progress. It waits for a
// running detection callback to return, so after Stop returns no callback is
// running or starts. It must not be called from inside the callback; use
// StopInCallback there.
func (s *Session) Stop() {
	s.halt()
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.release()
}

// StopInCallback ends the session from inside the detection callback without
// waiting for it. When no callback is running it behaves like Stop.
func (s *Session) StopInCallback() {
	if !s.inCallback.Load() {
		s.Stop()
		return
	}
	s.halt()
	s.release()
}

func (s *Session) halt() {
	s.stopped.Store(true)

	s.mu.Lock()
	cancels := []context.CancelFunc{s.startCancel, s.cancel}
	s.mu.Unlock()
	for _, cancel := range cancels {
		if cancel != nil {
			cancel()
		}
	}
}

func (s *Session) release() {
	s.releaseOnce.Do(func() {
		s.stopped.Store(true)
		s.source.Stop()
		s.gate.Reset()
		s.cooldown.Reset()

		s.mu.Lock()
		started := s.cancel != nil
		s.setStateLocked(StateStopped)
		s.mu.Unlock()
		if !started {
			close(s.done)
		}
		s.log.Info("scan session stopped")
	})
}

func (s *Session) SwitchFacing(ctx context.Context) (camera.Facing, error) {
	if s.stopped.Load() {
		return "", ErrSessionStopped
	}
	facing, err := s.source.SwitchFacing(ctx)
	if err != nil {
		return facing, err
	}
	s.gate.Reset()
	return facing, nil
}

func (s *Session) ToggleTorch(ctx context.Context) (bool, error) {
	if s.stopped.Load() {
		return false, ErrSessionStopped
	}
	return s.source.ToggleTorch(ctx)
}

func (s *Session) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.state = st
	if s.onState != nil {
		s.onState(st)
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return
	}
	s.setStateLocked(st)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.release()

	var last time.Time
	for {
		if s.stopped.Load() || ctx.Err() != nil {
			return
		}
		if wait := s.cfg.Throttle - time.Since(last); wait > 0 {
			if !sleep(ctx, wait) {
				return
			}
		}
		last = time.Now()

		frame, err := s.source.Next(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return
			case errors.Is(err, camera.ErrStreamClosed), errors.Is(err, camera.ErrNotStarted):
				s.log.Info("camera stream ended")
				return
			case errors.Is(err, camera.ErrPaused):
			default:
				s.log.Debug("frame skipped", "error", err)
			}
			continue
		}

		det, ok := s.detector.Detect(ctx, frame)
		if s.stopped.Load() {
			return
		}
		if !ok || det.Code == "" {
			continue
		}
		if s.cfg.Accept != nil && !s.cfg.Accept(det.Code) {
			continue
		}
		if !s.gate.Observe(det.Code) {
			continue
		}
		if s.cooldown.ShouldSuppress(det.Code) {
			continue
		}
		s.cooldown.MarkEmitted(det.Code)

		if !s.confirm(ctx, det) {
			return
		}
	}
}

// confirm freezes the source around one emission. It returns false when the loop
// has to end.
func (s *Session) confirm(ctx context.Context, det Detection) bool {
	s.setState(StateFrozen)
	s.source.Pause()
	s.feedback.Success(ctx)

	if !sleep(ctx, s.cfg.FeedbackDelay) {
		return false
	}
	if !s.dispatch(ctx, det) {
		return false
	}
	if !sleep(ctx, s.cfg.SettleDelay) {
		return false
	}
	if s.stopped.Load() {
		return false
	}
	if !s.source.Resume() {
		s.log.Info("camera stream ended while frozen")
		return false
	}
	s.setState(StateActive)
	return true
}

func (s *Session) dispatch(ctx context.Context, det Detection) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.stopped.Load() || ctx.Err() != nil {
		return false
	}
	s.log.Debug("barcode confirmed", "code", det.Code, "format", det.Format)
	if s.onDetect != nil {
		s.inCallback.Store(true)
		s.onDetect(ctx, det)
		s.inCallback.Store(false)
	}
	return !s.stopped.Load()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
