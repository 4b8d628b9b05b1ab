package health

import (
	"context"
	"fmt"

	"github.com/veilvox/veilvox/pkg/provider/stt"
)

// CaptureChecker reports the audio capture pipeline. errFn is polled on
// each probe; a non-nil error means the capture goroutine has terminated
// (typically a device failure) and the daemon can no longer hear anything.
func CaptureChecker(errFn func() error) Checker {
	return Checker{
		Name: "capture",
		Check: func(context.Context) error {
			return errFn()
		},
	}
}

// RecognizerChecker reports the speech-to-text model state. The model loads
// lazily on the first utterance, so Uninitialized and Loading both count as
// ready; only a failed load marks the daemon unready.
func RecognizerChecker(state func() stt.ModelState) Checker {
	return Checker{
		Name: "recognizer",
		Check: func(context.Context) error {
			if s := state(); s == stt.StateFailed {
				return fmt.Errorf("model state %s", s)
			}
			return nil
		},
	}
}
