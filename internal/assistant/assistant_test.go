package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/veilvox/veilvox/internal/action"
	"github.com/veilvox/veilvox/internal/event"
	"github.com/veilvox/veilvox/internal/segment"
	audiomock "github.com/veilvox/veilvox/pkg/audio/mock"
	sttmock "github.com/veilvox/veilvox/pkg/provider/stt/mock"
	ttsmock "github.com/veilvox/veilvox/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

// nopRunner satisfies action.Runner with every binary "installed" and every
// launch succeeding, so executor responses are deterministic.
type nopRunner struct{}

func (nopRunner) LookPath(name string) (string, error) { return "/usr/bin/" + name, nil }
func (nopRunner) Start(name string, args ...string) error {
	return nil
}

type fixture struct {
	a      *Assistant
	q      *segment.Queue
	bridge *event.Bridge
	src    *audiomock.Source
	rec    *sttmock.Provider
	sp     *ttsmock.Speaker

	events []event.Event
	runErr chan error
}

// newFixture wires an assistant over an idle mock microphone. Tests inject
// utterances straight into the queue and script the recognizer.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	discard := slog.New(slog.DiscardHandler)
	q := segment.NewQueue()
	bridge := event.NewBridge(1024)
	src := &audiomock.Source{}
	seg := segment.New(src, q, bridge, segment.Config{
		SampleRate:       16000,
		FrameSize:        1024,
		SilenceThreshold: 500,
		SilenceDuration:  1500 * time.Millisecond,
	}, segment.WithLogger(discard))

	rec := &sttmock.Provider{}
	sp := &ttsmock.Speaker{}
	exec := action.New(
		action.WithRunner(nopRunner{}),
		action.WithFs(afero.NewMemMapFs()),
		action.WithHome("/home/vv"),
		action.WithGOOS("linux"),
		action.WithLogger(discard),
	)

	a := New(seg, q, rec, exec, sp, bridge,
		WithLogger(discard),
		WithDequeueTimeout(20*time.Millisecond),
	)
	return &fixture{a: a, q: q, bridge: bridge, src: src, rec: rec, sp: sp}
}

// startRun launches the loop and guarantees it is torn down before the test
// finishes.
func (f *fixture) startRun(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f.runErr = make(chan error, 1)
	go func() { f.runErr <- f.a.Run(ctx) }()
	t.Cleanup(func() {
		f.a.Shutdown()
		select {
		case <-f.runErr:
		case <-time.After(2 * time.Second):
			t.Error("Run did not exit after Shutdown")
		}
		cancel()
	})
}

// drain accumulates bridge events into f.events and returns the full log.
func (f *fixture) drain() []event.Event {
	f.events = append(f.events, f.bridge.Drain()...)
	return f.events
}

func (f *fixture) enqueue(n int) {
	f.q.Enqueue(segment.Utterance{
		Samples:    make([]float32, n),
		SampleRate: 16000,
		Start:      time.Now(),
		End:        time.Now(),
	})
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

// textsOf extracts the Text field of every event of the given kind, in order.
func textsOf(evs []event.Event, kind event.Kind) []string {
	var out []string
	for _, ev := range evs {
		if ev.Kind == kind {
			out = append(out, ev.Text)
		}
	}
	return out
}

// statusCount counts KindStatus events carrying the given status.
func statusCount(evs []event.Event, s event.Status) int {
	n := 0
	for _, ev := range evs {
		if ev.Kind == event.KindStatus && ev.Status == s {
			n++
		}
	}
	return n
}

// eventIndex returns the position of the first event matching kind and text,
// or -1.
func eventIndex(evs []event.Event, kind event.Kind, text string) int {
	for i, ev := range evs {
		if ev.Kind == kind && ev.Text == text {
			return i
		}
	}
	return -1
}

// ── state machine ────────────────────────────────────────────────────────────

func TestState_String(t *testing.T) {
	t.Parallel()

	cases := map[State]string{
		StateStopped:   "stopped",
		StateListening: "listening",
		StatePaused:    "paused",
		State(99):      "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestStart_EmitsListeningEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if got := f.a.State(); got != StateStopped {
		t.Fatalf("initial State = %v, want stopped", got)
	}

	f.a.Start()
	if got := f.a.State(); got != StateListening {
		t.Fatalf("State after Start = %v, want listening", got)
	}

	evs := f.drain()
	if len(evs) != 2 {
		t.Fatalf("Start emitted %d events, want 2: %+v", len(evs), evs)
	}
	if evs[0].Kind != event.KindListening || !evs[0].Listening {
		t.Errorf("first event = %+v, want Listening(true)", evs[0])
	}
	if evs[1].Kind != event.KindStatus || evs[1].Status != event.StatusListening {
		t.Errorf("second event = %+v, want StatusChanged(listening)", evs[1])
	}

	// A second Start is a no-op with no duplicate events.
	f.a.Start()
	if got := f.drain(); len(got) != 2 {
		t.Errorf("repeated Start emitted extra events: %+v", got[2:])
	}
}

func TestStop_IsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.a.Start()
	f.drain()
	f.events = nil

	f.a.Stop()
	if got := f.a.State(); got != StatePaused {
		t.Fatalf("State after Stop = %v, want paused", got)
	}
	evs := f.drain()
	if len(evs) != 2 {
		t.Fatalf("Stop emitted %d events, want 2: %+v", len(evs), evs)
	}
	if evs[0].Kind != event.KindListening || evs[0].Listening {
		t.Errorf("first event = %+v, want Listening(false)", evs[0])
	}
	if evs[1].Kind != event.KindStatus || evs[1].Status != event.StatusIdle {
		t.Errorf("second event = %+v, want StatusChanged(idle)", evs[1])
	}

	f.a.Stop()
	if got := f.a.State(); got != StatePaused {
		t.Errorf("State after second Stop = %v, want paused", got)
	}
	if got := f.drain(); len(got) != 2 {
		t.Errorf("repeated Stop emitted extra events: %+v", got[2:])
	}
}

func TestStop_BeforeStartIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.a.Stop()
	if got := f.a.State(); got != StateStopped {
		t.Errorf("State = %v, want stopped", got)
	}
	if evs := f.drain(); len(evs) != 0 {
		t.Errorf("Stop from stopped emitted events: %+v", evs)
	}
}

func TestToggle_FlipsState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	f.a.Toggle()
	if got := f.a.State(); got != StateListening {
		t.Fatalf("State after first Toggle = %v, want listening", got)
	}
	f.a.Toggle()
	if got := f.a.State(); got != StatePaused {
		t.Fatalf("State after second Toggle = %v, want paused", got)
	}
	f.a.Toggle()
	if got := f.a.State(); got != StateListening {
		t.Fatalf("State after third Toggle = %v, want listening", got)
	}
}

func TestStop_DiscardsPendingUtterances(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.a.Start()
	f.enqueue(100)
	f.enqueue(100)
	f.enqueue(100)

	f.a.Stop()
	if got := f.q.Len(); got != 0 {
		t.Errorf("queue length after Stop = %d, want 0 (pending cleared)", got)
	}
}

// ── the loop ─────────────────────────────────────────────────────────────────

func TestRun_ProcessesUtterancesInOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.rec.Replies = []sttmock.Reply{
		{Text: "mute"},
		{Text: "volume up"},
	}
	f.sp.SpeakDelay = 5 * time.Millisecond

	f.startRun(t)
	f.a.Start()
	f.enqueue(1600)
	f.enqueue(3200)

	waitUntil(t, 2*time.Second, func() bool { return f.sp.SpeakCallCount() == 2 })

	if got, want := f.sp.SpokenTexts(), []string{"Muted.", "Increasing volume."}; got[0] != want[0] || got[1] != want[1] {
		t.Errorf("spoken = %v, want %v", got, want)
	}

	evs := f.drain()
	if got := textsOf(evs, event.KindTranscript); len(got) != 2 || got[0] != "mute" || got[1] != "volume up" {
		t.Errorf("transcripts = %v, want [mute, volume up]", got)
	}

	// The transcript/response pair of the first utterance precedes the
	// second pair entirely.
	t1 := eventIndex(evs, event.KindTranscript, "mute")
	r1 := eventIndex(evs, event.KindResponse, "Muted.")
	t2 := eventIndex(evs, event.KindTranscript, "volume up")
	r2 := eventIndex(evs, event.KindResponse, "Increasing volume.")
	if !(t1 < r1 && r1 < t2 && t2 < r2) {
		t.Errorf("event order t1=%d r1=%d t2=%d r2=%d, want strictly increasing", t1, r1, t2, r2)
	}

	if got := f.rec.TranscribeCallCount(); got != 2 {
		t.Errorf("recognizer calls = %d, want 2", got)
	}
}

func TestRun_RecognizerErrorDoesNotBlockNextUtterance(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.rec.Replies = []sttmock.Reply{
		{Err: errors.New("decoder exploded")},
		{Text: "help"},
	}

	f.startRun(t)
	f.a.Start()
	f.enqueue(1600)
	f.enqueue(1600)

	waitUntil(t, 2*time.Second, func() bool { return f.sp.SpeakCallCount() == 1 })

	if got := f.sp.SpokenTexts()[0]; got != action.HelpText {
		t.Errorf("spoken = %q, want help text", got)
	}

	evs := f.drain()
	if got := textsOf(evs, event.KindTranscript); len(got) != 1 || got[0] != "help" {
		t.Errorf("transcripts = %v, want only the second utterance", got)
	}
}

func TestRun_EmptyTranscriptProducesNoResponse(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.rec.Replies = []sttmock.Reply{
		{Text: "   "},
		{Text: "mute"},
	}

	f.startRun(t)
	f.a.Start()
	f.enqueue(800)
	f.enqueue(1600)

	waitUntil(t, 2*time.Second, func() bool { return f.sp.SpeakCallCount() == 1 })

	evs := f.drain()
	if got := textsOf(evs, event.KindTranscript); len(got) != 1 {
		t.Errorf("transcripts = %v, want 1 (whitespace-only reply skipped)", got)
	}
	if got := textsOf(evs, event.KindResponse); len(got) != 1 || got[0] != "Muted." {
		t.Errorf("responses = %v, want [Muted.]", got)
	}
}

func TestRun_StopIntentIsTerminal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.rec.Replies = []sttmock.Reply{{Text: "goodbye"}}

	f.startRun(t)
	f.a.Start()
	f.enqueue(1600)

	select {
	case <-f.a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after stop intent")
	}

	if err := <-f.runErr; err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
	f.runErr <- nil // keep cleanup happy

	if got := f.a.State(); got != StateStopped {
		t.Errorf("State = %v, want stopped", got)
	}
	if got := f.sp.SpokenTexts(); len(got) != 1 || got[0] != "Goodbye! See you next time." {
		t.Errorf("spoken = %v, want goodbye line", got)
	}

	// Control operations are dead after shutdown.
	f.drain()
	f.events = nil
	f.a.Start()
	if got := f.a.State(); got != StateStopped {
		t.Errorf("State after Start post-shutdown = %v, want stopped", got)
	}
	if evs := f.drain(); len(evs) != 0 {
		t.Errorf("post-shutdown Start emitted events: %+v", evs)
	}
}

func TestRun_ShutdownInterruptsEmptyQueueWait(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.startRun(t)
	f.a.Start()

	// Give the loop a moment to block on the empty queue.
	time.Sleep(30 * time.Millisecond)

	started := time.Now()
	f.a.Shutdown()
	select {
	case <-f.a.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit within a second of Shutdown")
	}
	if elapsed := time.Since(started); elapsed > 500*time.Millisecond {
		t.Errorf("shutdown took %v, want well under the second bound", elapsed)
	}

	// The shutdown notification is the final word on the bridge.
	evs := f.drain()
	if len(evs) < 2 {
		t.Fatalf("too few events: %+v", evs)
	}
	last, prev := evs[len(evs)-1], evs[len(evs)-2]
	if prev.Kind != event.KindListening || prev.Listening {
		t.Errorf("penultimate event = %+v, want Listening(false)", prev)
	}
	if last.Kind != event.KindStatus || last.Status != event.StatusIdle {
		t.Errorf("final event = %+v, want StatusChanged(idle)", last)
	}
}

func TestRun_QueueCloseStopsLoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.startRun(t)
	f.a.Start()

	f.q.Close()
	select {
	case err := <-f.runErr:
		if err != nil {
			t.Errorf("Run = %v, want nil on queue close", err)
		}
		f.runErr <- nil
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after queue close")
	}
}

// ── lazy model load ──────────────────────────────────────────────────────────

func TestRun_LazyLoadEmitsLoadingStatusOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.rec.LoadDelay = 20 * time.Millisecond
	f.rec.Replies = []sttmock.Reply{
		{Text: "mute"},
		{Text: "help"},
	}

	f.startRun(t)
	f.a.Start()
	f.enqueue(1600)
	f.enqueue(1600)

	waitUntil(t, 2*time.Second, func() bool { return f.sp.SpeakCallCount() == 2 })

	evs := f.drain()
	if got := statusCount(evs, event.StatusLoading); got != 1 {
		t.Errorf("loading status emitted %d times, want once (model stays resident)", got)
	}
}

func TestRun_LoadFailureDegradesToEmptyTranscript(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.rec.LoadErr = errors.New("model file missing")

	f.startRun(t)
	f.a.Start()
	f.enqueue(1600)
	f.enqueue(1600)

	// Each utterance retries the load; both degrade to silence.
	waitUntil(t, 2*time.Second, func() bool {
		return statusCount(f.drain(), event.StatusLoading) >= 2
	})

	if got := f.sp.SpeakCallCount(); got != 0 {
		t.Errorf("spoke %d times, want 0 when recognition is unavailable", got)
	}
	if got := f.a.State(); got != StateListening {
		t.Errorf("State = %v, want listening (load failure is per-utterance)", got)
	}
}

// ── capture liveness ─────────────────────────────────────────────────────────

func TestRun_CaptureFailureIsFatalStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.src.ReadError = errors.New("device unplugged")

	f.startRun(t)
	f.a.Start()

	waitUntil(t, 2*time.Second, func() bool { return f.a.Err() != nil })

	if err := f.a.Err(); !strings.Contains(err.Error(), "capture") {
		t.Errorf("Err = %v, want capture failure", err)
	}
	waitUntil(t, time.Second, func() bool { return f.a.State() == StatePaused })

	waitUntil(t, time.Second, func() bool {
		return statusCount(f.drain(), event.StatusError) == 1
	})

	// Capture is never restarted: Start refuses and emits nothing.
	f.events = nil
	f.a.Start()
	if got := f.a.State(); got != StatePaused {
		t.Errorf("State after Start = %v, want paused", got)
	}
	if evs := f.drain(); len(evs) != 0 {
		t.Errorf("Start after capture failure emitted events: %+v", evs)
	}
}

// ── injected commands ────────────────────────────────────────────────────────

func TestCommand_ExecutesAndSpeaks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	got := f.a.Command(context.Background(), "mute the sound")
	if got != "Muted." {
		t.Errorf("Command = %q, want %q", got, "Muted.")
	}
	if spoken := f.sp.SpokenTexts(); len(spoken) != 1 || spoken[0] != "Muted." {
		t.Errorf("spoken = %v, want the response", spoken)
	}

	evs := f.drain()
	if got := textsOf(evs, event.KindTranscript); len(got) != 1 || got[0] != "mute the sound" {
		t.Errorf("transcripts = %v, want the injected text", got)
	}
	if got := textsOf(evs, event.KindResponse); len(got) != 1 || got[0] != "Muted." {
		t.Errorf("responses = %v, want [Muted.]", got)
	}
}

func TestCommand_EmptyText(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if got := f.a.Command(context.Background(), "  \n"); got != "" {
		t.Errorf("Command(blank) = %q, want empty", got)
	}
	if evs := f.drain(); len(evs) != 0 {
		t.Errorf("blank command emitted events: %+v", evs)
	}
}

func TestCommand_StopIntentShutsDown(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	got := f.a.Command(context.Background(), "goodbye")
	if got != "Goodbye! See you next time." {
		t.Errorf("Command = %q, want goodbye line", got)
	}
	if state := f.a.State(); state != StateStopped {
		t.Errorf("State = %v, want stopped", state)
	}
	if again := f.a.Command(context.Background(), "help"); again != "" {
		t.Errorf("Command after shutdown = %q, want empty", again)
	}
}
