// Package intent classifies recognized speech into the assistant's closed
// set of built-in commands.
//
// Classification is a first-match-wins walk over an ordered table of regular
// expressions — deliberately not a language model. The vocabulary is small,
// the latency is microseconds, and a misfire is always explainable by
// pointing at one regex. [Classify] is the entry point; [Suggest] offers a
// phonetic "did you mean" hint for transcripts that match nothing.
package intent

// Intent identifies one of the assistant's built-in commands. The set is
// closed: every value the classifier can produce appears below, and the
// executor carries a handler for each one.
type Intent string

const (
	Time         Intent = "time"
	Date         Intent = "date"
	OpenTerminal Intent = "open_terminal"
	Screenshot   Intent = "screenshot"
	CreateFile   Intent = "create_file"
	OpenBrowser  Intent = "open_browser"
	PlayMusic    Intent = "play_music"
	VolumeUp     Intent = "volume_up"
	VolumeDown   Intent = "volume_down"
	Mute         Intent = "mute"
	Shutdown     Intent = "shutdown"
	Restart      Intent = "restart"
	Sleep        Intent = "sleep"
	Calculator   Intent = "calculator"
	Notepad      Intent = "notepad"
	Help         Intent = "help"
	Stop         Intent = "stop"

	// Unknown is the fallback when no pattern matches.
	Unknown Intent = "unknown"
)

// All returns every intent the classifier can produce, including Unknown,
// in classification order. The executor validates its handler map against
// this list.
func All() []Intent {
	return []Intent{
		Time, Date, OpenTerminal, Screenshot, CreateFile, OpenBrowser,
		PlayMusic, VolumeUp, VolumeDown, Mute, Shutdown, Restart, Sleep,
		Calculator, Notepad, Help, Stop, Unknown,
	}
}

// IsValid reports whether i is one of the defined intents.
func (i Intent) IsValid() bool {
	for _, known := range All() {
		if i == known {
			return true
		}
	}
	return false
}

// Result is a classified utterance: the matched intent plus any extracted
// metadata, such as the filename for [CreateFile].
type Result struct {
	Intent Intent
	Meta   map[string]string
}
