package scanner

import "context"

// Tone profiles understood by the storefront UI.
const (
	ToneSuccess = "success"
	ToneFailure = "failure"
)

// Vibration patterns in milliseconds, alternating on and off.
var (
	VibrateSuccess = []int{60}
	VibrateFailure = []int{120, 80, 120}
)

// Feedback renders the audible and haptic cue of a scan outcome. Implementations
// must not block for long; the scan loop waits on them.
type Feedback interface {
	Success(ctx context.Context)
	Failure(ctx context.Context)
}

type NopFeedback struct{}

func (NopFeedback) Success(context.Context) {}
func (NopFeedback) Failure(context.Context) {}
