package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedOwner plays the remote camera owner. It answers synchronously through
// the reply function, or stays silent when reply is nil.
type scriptedOwner struct {
	mu      sync.Mutex
	sent    []ControlMessage
	devices *RemoteDevices
	reply   func(msg ControlMessage) *Reply
	err     error
}

func (o *scriptedOwner) Signal(msg ControlMessage) error {
	o.mu.Lock()
	o.sent = append(o.sent, msg)
	reply, err := o.reply, o.err
	o.mu.Unlock()
	if err != nil {
		return err
	}
	if reply != nil {
		if r := reply(msg); r != nil {
			o.devices.HandleReply(*r)
		}
	}
	return nil
}

func (o *scriptedOwner) types() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.sent))
	for _, m := range o.sent {
		out = append(out, m.Type)
	}
	return out
}

func acceptingOwner(caps Capabilities) *scriptedOwner {
	return &scriptedOwner{reply: func(msg ControlMessage) *Reply {
		switch msg.Type {
		case MsgOpen:
			return &Reply{Type: MsgOpened, ID: msg.ID, Capabilities: &caps}
		case MsgApply:
			return &Reply{Type: MsgApplied, ID: msg.ID}
		}
		return nil
	}}
}

func setupRemote(owner *scriptedOwner) *RemoteDevices {
	d := NewRemoteDevices(owner)
	owner.devices = d
	return d
}

func pngFrame(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 64, 48))))
	return buf.Bytes()
}

func TestRemoteDevices_Open_Success(t *testing.T) {
	owner := acceptingOwner(Capabilities{Torch: true})
	d := setupRemote(owner)

	stream, err := d.Open(context.Background(), Constraints{Facing: FacingRear, Width: 1280, Height: 720})
	require.NoError(t, err)

	assert.True(t, stream.Live())
	assert.True(t, stream.Capabilities().Torch)
	require.Len(t, owner.sent, 1)
	assert.Equal(t, FacingRear, owner.sent[0].Constraints.Facing)
	assert.Equal(t, owner.sent[0].ID, owner.sent[0].Stream)
}

func TestRemoteDevices_Open_ErrorKinds(t *testing.T) {
	cases := map[string]error{
		KindPermissionDenied: ErrPermissionDenied,
		KindNoCamera:         ErrNoCameraFound,
		KindInsecureContext:  ErrInsecureContext,
		KindUnsupported:      ErrUnsupported,
	}
	for kind, want := range cases {
		t.Run(kind, func(t *testing.T) {
			owner := &scriptedOwner{reply: func(msg ControlMessage) *Reply {
				return &Reply{Type: MsgOpenFailed, ID: msg.ID, Error: kind}
			}}
			d := setupRemote(owner)

			_, err := d.Open(context.Background(), Constraints{})
			assert.ErrorIs(t, err, want)
		})
	}
}

func TestRemoteDevices_Open_NoReply(t *testing.T) {
	owner := &scriptedOwner{}
	d := setupRemote(owner)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Open(ctx, Constraints{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{MsgOpen, MsgStop}, owner.types())
}

func TestRemoteDevices_Open_SignalError(t *testing.T) {
	owner := &scriptedOwner{err: errors.New("connection reset")}
	d := setupRemote(owner)

	_, err := d.Open(context.Background(), Constraints{})
	assert.ErrorContains(t, err, "connection reset")
}

func TestRemoteDevices_FramesKeepOnlyLatest(t *testing.T) {
	d := setupRemote(acceptingOwner(Capabilities{}))
	stream, err := d.Open(context.Background(), Constraints{})
	require.NoError(t, err)

	d.PushFrame([]byte("stale"))
	d.PushFrame(pngFrame(t))

	img, err := stream.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = stream.ReadFrame(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRemoteDevices_BadFrame(t *testing.T) {
	d := setupRemote(acceptingOwner(Capabilities{}))
	stream, err := d.Open(context.Background(), Constraints{})
	require.NoError(t, err)

	d.PushFrame([]byte("not an image"))

	_, err = stream.ReadFrame(context.Background())
	assert.ErrorIs(t, err, ErrBadFrame)
}

func TestRemoteDevices_ReadWakesOnPush(t *testing.T) {
	d := setupRemote(acceptingOwner(Capabilities{}))
	stream, err := d.Open(context.Background(), Constraints{})
	require.NoError(t, err)
	frame := pngFrame(t)

	go func() {
		time.Sleep(10 * time.Millisecond)
		d.PushFrame(frame)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = stream.ReadFrame(ctx)
	assert.NoError(t, err)
}

func TestRemoteDevices_OpenReplacesStream(t *testing.T) {
	owner := acceptingOwner(Capabilities{})
	d := setupRemote(owner)
	first, err := d.Open(context.Background(), Constraints{})
	require.NoError(t, err)

	second, err := d.Open(context.Background(), Constraints{})
	require.NoError(t, err)

	assert.False(t, first.Live())
	assert.True(t, second.Live())
	assert.Equal(t, []string{MsgOpen, MsgStop, MsgOpen}, owner.types())
}

func TestRemoteStream_Apply(t *testing.T) {
	owner := acceptingOwner(Capabilities{Torch: true})
	d := setupRemote(owner)
	stream, err := d.Open(context.Background(), Constraints{})
	require.NoError(t, err)

	on := true
	require.NoError(t, stream.Apply(context.Background(), TrackSettings{Torch: &on}))

	zoom := 2.0
	err = stream.Apply(context.Background(), TrackSettings{Zoom: &zoom})
	assert.ErrorIs(t, err, ErrZoomUnsupported)
	assert.Equal(t, []string{MsgOpen, MsgApply}, owner.types())
}

func TestRemoteStream_Stop(t *testing.T) {
	owner := acceptingOwner(Capabilities{})
	d := setupRemote(owner)
	stream, err := d.Open(context.Background(), Constraints{})
	require.NoError(t, err)

	stream.Stop()
	stream.Stop()

	assert.False(t, stream.Live())
	assert.Equal(t, []string{MsgOpen, MsgStop}, owner.types())
	_, err = stream.ReadFrame(context.Background())
	assert.ErrorIs(t, err, ErrStreamClosed)

	// frames after stop go nowhere
	d.PushFrame(pngFrame(t))
}

func TestRemoteDevices_Close(t *testing.T) {
	owner := acceptingOwner(Capabilities{})
	d := setupRemote(owner)
	stream, err := d.Open(context.Background(), Constraints{})
	require.NoError(t, err)

	d.Close()

	assert.False(t, stream.Live())
	_, err = d.Open(context.Background(), Constraints{})
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestRemoteDevices_ClosePendingOpen(t *testing.T) {
	owner := &scriptedOwner{}
	d := setupRemote(owner)

	done := make(chan error, 1)
	go func() {
		_, err := d.Open(context.Background(), Constraints{})
		done <- err
	}()

	require.Eventually(t, func() bool { return len(owner.types()) == 1 }, time.Second, time.Millisecond)
	d.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(time.Second):
		t.Fatal("open did not return after close")
	}
}
