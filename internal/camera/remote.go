package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

// Control message types sent to the remote camera owner (the storefront UI).
const (
	MsgOpen  = "open"
	MsgStop  = "stop"
	MsgApply = "apply"
)

// Reply message types received from the remote camera owner.
const (
	MsgOpened      = "opened"
	MsgOpenFailed  = "open_failed"
	MsgApplied     = "applied"
	MsgApplyFailed = "apply_failed"
)

// Error kinds a remote owner reports in Reply.Error.
const (
	KindPermissionDenied = "permission_denied"
	KindNoCamera         = "no_camera"
	KindInsecureContext  = "insecure_context"
	KindUnsupported      = "unsupported"
	KindTorchUnsupported = "torch_unsupported"
	KindZoomUnsupported  = "zoom_unsupported"
)

type ControlMessage struct {
	Type        string         `json:"type"`
	ID          int            `json:"id"`
	Stream      int            `json:"stream,omitempty"`
	Constraints *Constraints   `json:"constraints,omitempty"`
	Settings    *TrackSettings `json:"settings,omitempty"`
}

type Reply struct {
	Type         string        `json:"type"`
	ID           int           `json:"id"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Signaller delivers control messages to the remote camera owner.
type Signaller interface {
	Signal(msg ControlMessage) error
}

// RemoteDevices is a Devices whose camera lives on the other side of a connection.
// The owner answers control messages with replies and pushes encoded frames for the
// current stream.
type RemoteDevices struct {
	sig Signaller

	mu      sync.Mutex
	nextID  int
	waiters map[int]chan Reply
	current *remoteStream
	closed  bool
}

func NewRemoteDevices(sig Signaller) *RemoteDevices {
	return &RemoteDevices{
		sig:     sig,
		waiters: make(map[int]chan Reply),
	}
}

func (d *RemoteDevices) Open(ctx context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrStreamClosed
	}
	prev := d.current
	d.current = nil
	d.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	reply, id, err := d.request(ctx, ControlMessage{Type: MsgOpen, Constraints: &c})
	if err != nil {
		if id != 0 && !errors.Is(err, ErrStreamClosed) {
			_ = d.sig.Signal(ControlMessage{Type: MsgStop, ID: id, Stream: id})
		}
		return nil, err
	}
	if reply.Type != MsgOpened {
		return nil, errorFromKind(reply.Error)
	}

	s := &remoteStream{
		devices: d,
		id:      id,
		box:     newMailbox(),
	}
	if reply.Capabilities != nil {
		s.caps = *reply.Capabilities
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrStreamClosed
	}
	d.current = s
	return s, nil
}

func (d *RemoteDevices) request(ctx context.Context, msg ControlMessage) (Reply, int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Reply{}, 0, ErrStreamClosed
	}
	d.nextID++
	id := d.nextID
	ch := make(chan Reply, 1)
	d.waiters[id] = ch
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.waiters, id)
		d.mu.Unlock()
	}()

	msg.ID = id
	if msg.Stream == 0 && msg.Type == MsgOpen {
		msg.Stream = id
	}
	if err := d.sig.Signal(msg); err != nil {
		return Reply{}, 0, fmt.Errorf("signal %s: %w", msg.Type, err)
	}

	select {
	case r, ok := <-ch:
		if !ok {
			return Reply{}, id, ErrStreamClosed
		}
		return r, id, nil
	case <-ctx.Done():
		return Reply{}, id, ctx.Err()
	}
}

// HandleReply routes a reply from the owner to the request waiting for it. Replies
// nobody waits for any more are dropped.
func (d *RemoteDevices) HandleReply(r Reply) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.waiters[r.ID]
	if !ok {
		return
	}
	select {
	case ch <- r:
	default:
	}
}

// PushFrame hands an encoded frame to the current stream. Frames arriving with no
// open stream are dropped.
func (d *RemoteDevices) PushFrame(data []byte) {
	d.mu.Lock()
	s := d.current
	d.mu.Unlock()
	if s == nil {
		return
	}
	s.box.put(data)
}

// Close fails pending requests and stops the current stream. Used when the
// connection to the owner goes away.
func (d *RemoteDevices) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	s := d.current
	d.current = nil
	for id, ch := range d.waiters {
		close(ch)
		delete(d.waiters, id)
	}
	d.mu.Unlock()
	if s != nil {
		s.box.close()
	}
}

func (d *RemoteDevices) release(s *remoteStream) {
	d.mu.Lock()
	if d.current == s {
		d.current = nil
	}
	closed := d.closed
	d.mu.Unlock()
	if !closed {
		_ = d.sig.Signal(ControlMessage{Type: MsgStop, ID: s.id, Stream: s.id})
	}
}

func errorFromKind(kind string) error {
	switch kind {
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindNoCamera:
		return ErrNoCameraFound
	case KindInsecureContext:
		return ErrInsecureContext
	case KindUnsupported:
		return ErrUnsupported
	case KindTorchUnsupported:
		return ErrTorchUnsupported
	case KindZoomUnsupported:
		return ErrZoomUnsupported
	case "":
		return errors.New("camera: unknown failure")
	default:
		return fmt.Errorf("camera: %s", kind)
	}
}

type remoteStream struct {
	devices *RemoteDevices
	id      int
	caps    Capabilities
	box     *mailbox
	once    sync.Once
}

func (s *remoteStream) ReadFrame(ctx context.Context) (image.Image, error) {
	data, err := s.box.take(ctx)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return img, nil
}

func (s *remoteStream) Capabilities() Capabilities { return s.caps }

func (s *remoteStream) Apply(ctx context.Context, settings TrackSettings) error {
	if settings.Torch != nil && !s.caps.Torch {
		return ErrTorchUnsupported
	}
	if settings.Zoom != nil && !s.caps.SupportsZoom() {
		return ErrZoomUnsupported
	}
	if !s.Live() {
		return ErrStreamClosed
	}
	reply, _, err := s.devices.request(ctx, ControlMessage{Type: MsgApply, Stream: s.id, Settings: &settings})
	if err != nil {
		return err
	}
	if reply.Type != MsgApplied {
		return errorFromKind(reply.Error)
	}
	return nil
}

func (s *remoteStream) Stop() {
	s.once.Do(func() {
		s.box.close()
		s.devices.release(s)
	})
}

func (s *remoteStream) Live() bool {
	return !s.box.isClosed()
}

// mailbox keeps only the newest frame; a frame nobody read is overwritten.
type mailbox struct {
	mu     sync.Mutex
	frame  []byte
	ready  chan struct{}
	done   chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (m *mailbox) put(frame []byte) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.frame = frame
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) take(ctx context.Context) ([]byte, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrStreamClosed
		}
		if f := m.frame; f != nil {
			m.frame = nil
			m.mu.Unlock()
			return f, nil
		}
		m.mu.Unlock()

		select {
		case <-m.ready:
		case <-m.done:
			return nil, ErrStreamClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.frame = nil
	close(m.done)
}

func (m *mailbox) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
