// Package event carries UI-facing notifications from the voice pipeline to
// whatever surface is watching: the WebSocket feed, the control client, or
// an embedding GUI polling the bridge.
//
// Producers (segmenter, assistant) publish through a [Bridge] and never talk
// to a surface directly. The central type is [Event], a tagged union over
// the [Kind] constants; consumers switch on Kind and read the fields that
// kind populates.
package event

import "time"

// Kind classifies an [Event].
type Kind string

const (
	// KindStatus reports a pipeline status change. Status and Label are set.
	KindStatus Kind = "status"

	// KindTranscript carries recognized user speech. Text is set.
	KindTranscript Kind = "transcript"

	// KindResponse carries the assistant's reply. Text is set.
	KindResponse Kind = "response"

	// KindAmplitude reports per-frame input loudness for level meters.
	// Amplitude is set.
	KindAmplitude Kind = "amplitude"

	// KindListening reports the capture toggle flipping. Listening is set.
	KindListening Kind = "listening"

	// KindLog carries a conversation log line ("You: ...", "Assistant: ...").
	// Text is set.
	KindLog Kind = "log"
)

// Status identifies what the pipeline is doing right now.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusListening Status = "listening"
	StatusThinking  Status = "thinking"
	StatusSpeaking  Status = "speaking"
	StatusLoading   Status = "loading"
	StatusError     Status = "error"
)

// Label returns the text a surface should display for the status.
func (s Status) Label() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusListening:
		return "Listening…"
	case StatusThinking:
		return "Processing…"
	case StatusSpeaking:
		return "Speaking…"
	case StatusLoading:
		return "Loading model (first run)…"
	case StatusError:
		return "Microphone error"
	default:
		return string(s)
	}
}

// MaxAmplitude is the level-meter ceiling. Amplitude events may exceed it;
// surfaces clamp to this value when rendering.
const MaxAmplitude = 4000

// Event is a single UI-facing notification. Which fields are populated
// depends on Kind; Time is always set (the Bridge stamps it on Emit when
// the producer leaves it zero).
type Event struct {
	Kind      Kind      `json:"kind"`
	Status    Status    `json:"status,omitempty"`
	Label     string    `json:"label,omitempty"`
	Text      string    `json:"text,omitempty"`
	Amplitude int       `json:"amplitude,omitempty"`
	Listening bool      `json:"listening,omitempty"`
	Time      time.Time `json:"time"`
}

// StatusChanged builds a KindStatus event carrying the status tag and its
// display label.
func StatusChanged(s Status) Event {
	return Event{Kind: KindStatus, Status: s, Label: s.Label()}
}

// Transcript builds a KindTranscript event for recognized user speech.
func Transcript(text string) Event {
	return Event{Kind: KindTranscript, Text: text}
}

// Response builds a KindResponse event for an assistant reply.
func Response(text string) Event {
	return Event{Kind: KindResponse, Text: text}
}

// Amplitude builds a KindAmplitude event for one frame's loudness.
func Amplitude(level int) Event {
	return Event{Kind: KindAmplitude, Amplitude: level}
}

// ListeningChanged builds a KindListening event.
func ListeningChanged(on bool) Event {
	return Event{Kind: KindListening, Listening: on}
}

// Log builds a KindLog event with one conversation log line.
func Log(line string) Event {
	return Event{Kind: KindLog, Text: line}
}
