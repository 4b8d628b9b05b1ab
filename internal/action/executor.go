// Package action performs the OS side effect behind each recognized intent
// and produces the spoken response for it.
//
// The [Executor] is the last stop of a command cycle: whatever happens
// inside a handler, Execute returns a speakable sentence. Side effects go
// through two seams so tests never touch the host system: process launches
// through a [Runner], filesystem effects through an afero.Fs.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/afero"

	"github.com/veilvox/veilvox/internal/intent"
)

// HelpText is spoken (and shown) in response to the help intent.
const HelpText = "I can help you with: telling the time, today's date, " +
	"opening the terminal, taking a screenshot, creating a file, " +
	"opening the browser, playing music, adjusting the volume, " +
	"and shutting down the computer."

const browserURL = "https://www.google.com"

type handler func(meta map[string]string) string

// Executor maps intents to system actions.
type Executor struct {
	run  Runner
	fs   afero.Fs
	home string
	goos string
	log  *slog.Logger

	handlers map[intent.Intent]handler
}

// Option customises an [Executor].
type Option func(*Executor)

// WithRunner replaces the process runner. Tests use this to capture
// launches instead of spawning real programs.
func WithRunner(r Runner) Option {
	return func(e *Executor) { e.run = r }
}

// WithFs replaces the filesystem used for file side effects.
func WithFs(fs afero.Fs) Option {
	return func(e *Executor) { e.fs = fs }
}

// WithHome overrides the home directory that anchors Desktop and Pictures
// paths.
func WithHome(dir string) Option {
	return func(e *Executor) { e.home = dir }
}

// WithGOOS overrides the platform the executor dispatches on. Tests use
// this to exercise the windows and darwin branches from any host.
func WithGOOS(goos string) Option {
	return func(e *Executor) { e.goos = goos }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// New creates an executor that runs real processes against the real
// filesystem unless options say otherwise.
func New(opts ...Option) *Executor {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	e := &Executor{
		run:  ExecRunner{},
		fs:   afero.NewOsFs(),
		home: home,
		goos: runtime.GOOS,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.handlers = map[intent.Intent]handler{
		intent.Time:         e.handleTime,
		intent.Date:         e.handleDate,
		intent.OpenTerminal: e.handleOpenTerminal,
		intent.Screenshot:   e.handleScreenshot,
		intent.CreateFile:   e.handleCreateFile,
		intent.OpenBrowser:  e.handleOpenBrowser,
		intent.PlayMusic:    e.handlePlayMusic,
		intent.VolumeUp:     e.handleVolumeUp,
		intent.VolumeDown:   e.handleVolumeDown,
		intent.Mute:         e.handleMute,
		intent.Shutdown:     e.handleShutdown,
		intent.Restart:      e.handleRestart,
		intent.Sleep:        e.handleSleep,
		intent.Calculator:   e.handleCalculator,
		intent.Notepad:      e.handleNotepad,
		intent.Help:         e.handleHelp,
		intent.Stop:         e.handleStop,
		intent.Unknown:      e.handleUnknown,
	}
	return e
}

// Execute performs the side effect for res and returns the spoken
// response. It never returns an empty string and never panics: handler
// failures, including programming errors, are converted into an apology
// the assistant can speak.
func (e *Executor) Execute(ctx context.Context, res intent.Result) (response string) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("action handler panicked", "intent", res.Intent, "panic", r)
			response = fmt.Sprintf("Sorry, I encountered an error: %v", r)
		}
	}()

	h, ok := e.handlers[res.Intent]
	if !ok {
		h = e.handleUnknown
	}
	e.log.Debug("executing action", "intent", res.Intent)
	return h(res.Meta)
}

func (e *Executor) handleTime(map[string]string) string {
	return fmt.Sprintf("The current time is %s.", time.Now().Format("03:04 PM"))
}

func (e *Executor) handleDate(map[string]string) string {
	return fmt.Sprintf("Today is %s.", time.Now().Format("Monday, January 02, 2006"))
}

func (e *Executor) handleOpenTerminal(map[string]string) string {
	switch e.goos {
	case "windows":
		e.start("cmd", "/c", "start", "cmd")
	case "darwin":
		e.start("open", "-a", "Terminal")
	default:
		e.startFirst([][]string{
			{"gnome-terminal"},
			{"xterm"},
			{"konsole"},
			{"xfce4-terminal"},
		})
	}
	return "Opening the terminal."
}

func (e *Executor) handleScreenshot(map[string]string) string {
	dir := filepath.Join(e.home, "Pictures")
	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Sprintf("Could not take screenshot: %v", err)
	}
	path := filepath.Join(dir, "screenshot_"+time.Now().Format("20060102_150405")+".png")

	var candidates [][]string
	switch e.goos {
	case "darwin":
		candidates = [][]string{{"screencapture", path}}
	case "windows":
		// No stock command-line capture tool to call.
	default:
		candidates = [][]string{
			{"gnome-screenshot", "-f", path},
			{"scrot", path},
			{"spectacle", "-b", "-n", "-o", path},
			{"import", "-window", "root", path},
		}
	}
	if _, ok := e.startFirst(candidates); !ok {
		return "Could not take screenshot: no screenshot tool available."
	}
	return fmt.Sprintf("Screenshot saved to %s.", path)
}

func (e *Executor) handleCreateFile(meta map[string]string) string {
	name := meta["filename"]
	if name == "" {
		name = intent.DefaultFileName
	}
	// A spoken filename must not escape the Desktop directory.
	name = filepath.Base(name)

	dir := filepath.Join(e.home, "Desktop")
	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Sprintf("Could not create file: %v", err)
	}
	path := filepath.Join(dir, name)

	exists, err := afero.Exists(e.fs, path)
	if err != nil {
		return fmt.Sprintf("Could not create file: %v", err)
	}
	if !exists {
		f, err := e.fs.Create(path)
		if err != nil {
			return fmt.Sprintf("Could not create file: %v", err)
		}
		f.Close()
	}
	return fmt.Sprintf("Created file %s on your Desktop.", name)
}

func (e *Executor) handleOpenBrowser(map[string]string) string {
	switch e.goos {
	case "windows":
		e.start("cmd", "/c", "start", browserURL)
	case "darwin":
		e.start("open", browserURL)
	default:
		e.start("xdg-open", browserURL)
	}
	return "Opening your web browser."
}

func (e *Executor) handlePlayMusic(map[string]string) string {
	switch e.goos {
	case "windows":
		e.start("cmd", "/c", "start", "wmplayer")
	case "darwin":
		e.start("open", "-a", "Music")
	default:
		if name, ok := e.startFirst([][]string{
			{"rhythmbox"},
			{"banshee"},
			{"clementine"},
			{"vlc"},
		}); ok {
			return fmt.Sprintf("Opening %s.", name)
		}
	}
	return "Opening music player."
}

func (e *Executor) handleVolumeUp(map[string]string) string {
	switch e.goos {
	case "windows":
		return "Volume increased."
	case "darwin":
		e.start("osascript", "-e", "set volume output volume ((output volume of (get volume settings)) + 10)")
	default:
		e.adjustLinuxVolume("+10%", "10%+")
	}
	return "Increasing volume."
}

func (e *Executor) handleVolumeDown(map[string]string) string {
	switch e.goos {
	case "windows":
	case "darwin":
		e.start("osascript", "-e", "set volume output volume ((output volume of (get volume settings)) - 10)")
	default:
		e.adjustLinuxVolume("-10%", "10%-")
	}
	return "Volume decreased."
}

func (e *Executor) handleMute(map[string]string) string {
	switch e.goos {
	case "windows":
	case "darwin":
		e.start("osascript", "-e", "set volume with output muted")
	default:
		if _, err := e.run.LookPath("pactl"); err == nil {
			e.start("pactl", "set-sink-mute", "@DEFAULT_SINK@", "toggle")
		} else {
			e.start("amixer", "-q", "set", "Master", "toggle")
		}
	}
	return "Muted."
}

func (e *Executor) handleShutdown(map[string]string) string {
	switch e.goos {
	case "windows":
		e.start("shutdown", "/s", "/t", "30")
		return "Shutting down in 30 seconds. Say 'stop' to cancel."
	case "darwin":
		e.start("sudo", "shutdown", "-h", "+1")
	default:
		e.start("shutdown", "-h", "+1")
	}
	return "Shutdown initiated."
}

func (e *Executor) handleRestart(map[string]string) string {
	switch e.goos {
	case "windows":
		e.start("shutdown", "/r", "/t", "30")
		return "Restarting in 30 seconds."
	case "darwin":
		e.start("sudo", "shutdown", "-r", "+1")
	default:
		e.start("shutdown", "-r", "+1")
	}
	return "Restart command issued."
}

func (e *Executor) handleSleep(map[string]string) string {
	switch e.goos {
	case "windows":
		e.start("rundll32.exe", "powrprof.dll,SetSuspendState", "0,1,0")
	case "darwin":
		e.start("pmset", "sleepnow")
	default:
		e.start("systemctl", "suspend")
	}
	return "Going to sleep."
}

func (e *Executor) handleCalculator(map[string]string) string {
	switch e.goos {
	case "windows":
		e.start("calc")
	case "darwin":
		e.start("open", "-a", "Calculator")
	default:
		e.startFirst([][]string{
			{"gnome-calculator"},
			{"kcalc"},
			{"xcalc"},
		})
	}
	return "Opening calculator."
}

func (e *Executor) handleNotepad(map[string]string) string {
	switch e.goos {
	case "windows":
		e.start("notepad")
	case "darwin":
		e.start("open", "-a", "TextEdit")
	default:
		e.startFirst([][]string{
			{"gedit"},
			{"kate"},
			{"mousepad"},
			{"nano"},
		})
	}
	return "Opening text editor."
}

func (e *Executor) handleHelp(map[string]string) string {
	return HelpText
}

func (e *Executor) handleStop(map[string]string) string {
	return "Goodbye! See you next time."
}

func (e *Executor) handleUnknown(map[string]string) string {
	return "Sorry, I didn't understand that. Say 'help' to hear what I can do."
}

// start launches a program, logging instead of failing: launch errors never
// change the spoken response.
func (e *Executor) start(name string, args ...string) {
	if err := e.run.Start(name, args...); err != nil {
		e.log.Warn("launch failed", "program", name, "error", err)
	}
}

// startFirst launches the first candidate whose program resolves on PATH.
// It returns the launched program name.
func (e *Executor) startFirst(candidates [][]string) (string, bool) {
	for _, c := range candidates {
		if _, err := e.run.LookPath(c[0]); err != nil {
			continue
		}
		if err := e.run.Start(c[0], c[1:]...); err != nil {
			e.log.Warn("launch failed", "program", c[0], "error", err)
			continue
		}
		return c[0], true
	}
	return "", false
}

// adjustLinuxVolume applies a relative volume change through pactl when
// available, falling back to amixer.
func (e *Executor) adjustLinuxVolume(pactlDelta, amixerDelta string) {
	if _, err := e.run.LookPath("pactl"); err == nil {
		e.start("pactl", "set-sink-volume", "@DEFAULT_SINK@", pactlDelta)
		return
	}
	e.start("amixer", "-q", "set", "Master", amixerDelta)
}
