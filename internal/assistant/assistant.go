// Package assistant hosts the control loop at the center of VeilVox.
//
// An [Assistant] owns the pipeline glue: it starts the capture segmenter,
// dequeues utterances, runs them through the recognizer, classifier and
// executor, and speaks the response. Exactly one cycle is in flight at any
// time; responses come back in strict capture order because the loop never
// overlaps recognition or speech for two utterances.
//
// Control operations (Start, Stop, Toggle, Shutdown, Command) are safe to
// call from any goroutine. The loop itself runs in [Assistant.Run], which the
// application drives under its errgroup.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veilvox/veilvox/internal/action"
	"github.com/veilvox/veilvox/internal/event"
	"github.com/veilvox/veilvox/internal/intent"
	"github.com/veilvox/veilvox/internal/observe"
	"github.com/veilvox/veilvox/internal/segment"
	"github.com/veilvox/veilvox/pkg/provider/stt"
	"github.com/veilvox/veilvox/pkg/provider/tts"
)

// defaultDequeueTimeout bounds one wait for an utterance. It is the upper
// bound on how long Shutdown can remain unnoticed by a loop blocked on an
// empty queue.
const defaultDequeueTimeout = 200 * time.Millisecond

// State is the assistant's lifecycle state. The zero value is StateStopped.
type State int32

const (
	// StateStopped is the initial state and, after Shutdown, the terminal one.
	StateStopped State = iota
	// StateListening means the loop is dequeuing and processing utterances.
	StateListening
	// StatePaused means capture continues but the loop ignores the queue.
	StatePaused
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateListening:
		return "listening"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Option customises an [Assistant].
type Option func(*Assistant)

// WithDequeueTimeout overrides the per-iteration wait for an utterance.
func WithDequeueTimeout(d time.Duration) Option {
	return func(a *Assistant) {
		if d > 0 {
			a.dequeueTimeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) { a.log = l }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// Assistant is the orchestrator: one loop, one state machine, no overlap.
type Assistant struct {
	seg        *segment.Segmenter
	queue      *segment.Queue
	recognizer stt.Provider
	executor   *action.Executor
	speaker    tts.Speaker
	bridge     *event.Bridge
	log        *slog.Logger
	metrics    *observe.Metrics

	dequeueTimeout time.Duration

	state atomic.Int32

	mu         sync.Mutex
	segStarted bool
	segCancel  context.CancelFunc
	segErr     error

	wake       chan struct{}
	shutdownCh chan struct{}
	shutOnce   sync.Once
	done       chan struct{}
}

// New wires an Assistant from its collaborators. The assistant starts in
// StateStopped; call Start (or Toggle) to begin listening once Run is up.
func New(seg *segment.Segmenter, queue *segment.Queue, recognizer stt.Provider, executor *action.Executor, speaker tts.Speaker, bridge *event.Bridge, opts ...Option) *Assistant {
	a := &Assistant{
		seg:            seg,
		queue:          queue,
		recognizer:     recognizer,
		executor:       executor,
		speaker:        speaker,
		bridge:         bridge,
		log:            slog.Default(),
		metrics:        observe.DefaultMetrics(),
		dequeueTimeout: defaultDequeueTimeout,
		wake:           make(chan struct{}, 1),
		shutdownCh:     make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// State returns the current lifecycle state.
func (a *Assistant) State() State {
	return State(a.state.Load())
}

// Done returns a channel closed when the loop has exited.
func (a *Assistant) Done() <-chan struct{} {
	return a.done
}

// Err returns the capture device failure that terminated the segmenter, or
// nil while capture is healthy. A non-nil value is permanent; capture is
// never restarted.
func (a *Assistant) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.segErr
}

// Start begins listening. From StateStopped or StatePaused it transitions to
// StateListening, starting the capture goroutine on first use. Calling Start
// while already listening, after Shutdown, or after a capture failure is a
// no-op.
func (a *Assistant) Start() {
	select {
	case <-a.shutdownCh:
		return
	default:
	}
	if a.Err() != nil {
		a.log.Warn("start ignored, capture has failed")
		return
	}
	if !a.state.CompareAndSwap(int32(StateStopped), int32(StateListening)) &&
		!a.state.CompareAndSwap(int32(StatePaused), int32(StateListening)) {
		return
	}

	a.bridge.Emit(event.ListeningChanged(true))
	a.bridge.Emit(event.StatusChanged(event.StatusListening))
	a.log.Info("listening started")

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Stop pauses listening. The segmenter keeps capturing, but the loop stops
// dequeuing and everything already queued is discarded so stale speech is
// not processed on resume. Calling Stop while not listening is a no-op.
func (a *Assistant) Stop() {
	if !a.state.CompareAndSwap(int32(StateListening), int32(StatePaused)) {
		return
	}

	if dropped := a.queue.Clear(); dropped > 0 {
		a.metrics.RecordQueueDepth(context.Background(), int64(-dropped))
		a.log.Debug("pending utterances discarded", "count", dropped)
	}

	a.bridge.Emit(event.ListeningChanged(false))
	a.bridge.Emit(event.StatusChanged(event.StatusIdle))
	a.log.Info("listening paused")
}

// Toggle flips between listening and paused.
func (a *Assistant) Toggle() {
	if a.State() == StateListening {
		a.Stop()
	} else {
		a.Start()
	}
}

// Shutdown stops the assistant permanently: capture is cancelled, the loop
// exits on its next iteration, and no further control operation has any
// effect. An in-flight recognition or speech call is allowed to finish.
// Safe to call from any goroutine, any number of times.
func (a *Assistant) Shutdown() {
	a.shutOnce.Do(func() {
		a.state.Store(int32(StateStopped))

		a.mu.Lock()
		cancel := a.segCancel
		a.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		a.bridge.Emit(event.ListeningChanged(false))
		a.bridge.Emit(event.StatusChanged(event.StatusIdle))
		a.log.Info("assistant shut down")
		close(a.shutdownCh)
	})
}

// Run executes the control loop until Shutdown is called or ctx is
// cancelled. It must be called exactly once.
func (a *Assistant) Run(ctx context.Context) error {
	defer close(a.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.shutdownCh:
			return nil
		default:
		}

		if a.State() != StateListening {
			select {
			case <-a.wake:
			case <-ctx.Done():
				return ctx.Err()
			case <-a.shutdownCh:
				return nil
			}
			continue
		}

		a.ensureCapture(ctx)

		u, err := a.queue.Dequeue(ctx, a.dequeueTimeout)
		switch {
		case errors.Is(err, segment.ErrTimeout):
			continue
		case errors.Is(err, segment.ErrClosed):
			return nil
		case err != nil:
			return err
		}

		a.metrics.RecordQueueDepth(ctx, -1)
		a.cycle(ctx, u)
	}
}

// ensureCapture starts the segmenter goroutine the first time the assistant
// enters StateListening. A device failure terminates the goroutine for good:
// the error is stored, a fatal status reaches the UI, and listening drops to
// paused.
func (a *Assistant) ensureCapture(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.segStarted {
		return
	}
	a.segStarted = true

	segCtx, cancel := context.WithCancel(ctx)
	a.segCancel = cancel

	go func() {
		err := a.seg.Run(segCtx)

		a.mu.Lock()
		a.segErr = err
		a.mu.Unlock()

		if err != nil {
			a.log.Error("capture terminated", "error", err)
			a.state.CompareAndSwap(int32(StateListening), int32(StatePaused))
			a.bridge.Emit(event.StatusChanged(event.StatusError))
			a.bridge.Emit(event.ListeningChanged(false))
		}
	}()
}

// cycle processes one utterance end to end. Every path out of here leaves
// the user with exactly one response or a restored listening status.
func (a *Assistant) cycle(ctx context.Context, u segment.Utterance) {
	started := time.Now()
	a.bridge.Emit(event.StatusChanged(event.StatusThinking))

	text := a.recognize(ctx, u)
	if text == "" {
		if a.State() == StateListening {
			a.bridge.Emit(event.StatusChanged(event.StatusListening))
		}
		return
	}

	a.log.Info("heard", "text", text)
	a.bridge.Emit(event.Transcript(text))
	a.bridge.Emit(event.Log("You: " + text))

	res, _ := a.respond(ctx, text)
	a.metrics.RecordCycle(ctx, time.Since(started))

	if res.Intent == intent.Stop {
		a.Shutdown()
		return
	}
	if a.State() == StateListening {
		a.bridge.Emit(event.StatusChanged(event.StatusListening))
	}
}

// recognize turns an utterance into trimmed text. Any failure, including a
// failed lazy model load, degrades to an empty transcript; the next
// utterance is independent.
func (a *Assistant) recognize(ctx context.Context, u segment.Utterance) string {
	if a.recognizer.State() != stt.StateReady {
		a.bridge.Emit(event.StatusChanged(event.StatusLoading))
		started := time.Now()
		err := a.recognizer.Load(ctx)
		a.metrics.RecordModelLoad(ctx, time.Since(started))
		if err != nil {
			a.log.Error("recognizer load failed", "error", err)
			a.metrics.RecognizerErrors.Add(ctx, 1)
			return ""
		}
		a.log.Info("recognizer ready", "after", time.Since(started).Round(time.Millisecond))
	}

	started := time.Now()
	text, err := a.recognizer.Transcribe(ctx, u.Samples, u.SampleRate)
	a.metrics.RecordRecognize(ctx, time.Since(started), err)
	if err != nil {
		a.log.Error("recognition failed", "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// respond classifies text, executes the action and speaks the reply. The
// executor's return value is authoritative: it never errors, and the spoken
// string is whatever it produced.
func (a *Assistant) respond(ctx context.Context, text string) (intent.Result, string) {
	res := intent.Classify(text)
	a.metrics.RecordIntent(ctx, string(res.Intent))
	a.log.Info("intent classified", "intent", res.Intent)
	if res.Intent == intent.Unknown {
		if hint, ok := intent.Suggest(text); ok {
			a.log.Info("no intent matched", "didYouMean", hint)
		}
	}

	response := a.executor.Execute(ctx, res)

	a.bridge.Emit(event.Response(response))
	a.bridge.Emit(event.Log("Assistant: " + response))
	a.bridge.Emit(event.StatusChanged(event.StatusSpeaking))

	started := time.Now()
	if err := a.speaker.Speak(ctx, response); err != nil {
		a.log.Error("speech output failed", "error", err)
	}
	a.metrics.RecordSpeak(ctx, time.Since(started))

	return res, response
}

// Command feeds text through classification, execution and speech as if it
// had been recognized from the microphone. It runs on the caller's
// goroutine and returns the spoken response; the ordering guarantee of the
// main loop does not extend to commands injected this way.
func (a *Assistant) Command(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	select {
	case <-a.shutdownCh:
		return ""
	default:
	}

	a.bridge.Emit(event.Transcript(text))
	a.bridge.Emit(event.Log("You: " + text))

	res, response := a.respond(ctx, text)

	if res.Intent == intent.Stop {
		a.Shutdown()
	} else if a.State() == StateListening {
		a.bridge.Emit(event.StatusChanged(event.StatusListening))
	}
	return response
}
