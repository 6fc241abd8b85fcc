package camera

import "errors"

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoCameraFound    = errors.New("no camera found")
	ErrInsecureContext  = errors.New("camera requires a secure context")
	ErrUnsupported      = errors.New("camera api not supported")
	ErrTorchUnsupported = errors.New("torch not supported by this camera")
	ErrZoomUnsupported  = errors.New("zoom not supported by this camera")
	ErrAcquireTimeout   = errors.New("camera acquisition timed out")
	ErrNotStarted       = errors.New("camera stream not started")
	ErrStreamClosed     = errors.New("camera stream closed")
	ErrPaused           = errors.New("camera stream paused")
	ErrBadFrame         = errors.New("undecodable camera frame")
)

// IsBlocking reports whether err must be shown to the user before scanning can go on.
// Zoom and torch capability errors are not blocking.
func IsBlocking(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrZoomUnsupported), errors.Is(err, ErrTorchUnsupported):
		return false
	default:
		return true
	}
}
