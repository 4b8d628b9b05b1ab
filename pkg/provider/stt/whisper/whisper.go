// Package whisper provides speech-to-text providers backed by whisper.cpp.
//
// [Native] runs inference in-process through the whisper.cpp Go bindings;
// the static library (libwhisper.a) and headers must be available at link
// time via LIBRARY_PATH and C_INCLUDE_PATH. [Server] talks to a running
// whisper-server binary over its REST API instead, which keeps cgo out of
// the build at the cost of an extra process.
//
// Both providers share the same preprocessing: silence is trimmed from the
// ends of the utterance, clips too short to contain speech short-circuit to
// an empty transcript, and audio is resampled to the 16 kHz whisper.cpp
// expects.
package whisper

const (
	defaultLanguage = "en"

	// whisperSampleRate is the sample rate whisper.cpp models are trained
	// on. Input at any other rate is resampled before inference.
	whisperSampleRate = 16000

	// trimThreshold is the normalized amplitude below which leading and
	// trailing samples count as silence to be trimmed.
	trimThreshold = 0.01

	// minSamples is the shortest trimmed utterance worth transcribing.
	// Anything below (~60 ms at 16 kHz) returns an empty transcript
	// without touching the model.
	minSamples = 1000
)
