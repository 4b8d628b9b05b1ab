// Package app wires all VeilVox subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes them until the context ends or the user says
// goodbye, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithBridge,
// WithArchiver, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veilvox/veilvox/internal/action"
	"github.com/veilvox/veilvox/internal/archive"
	"github.com/veilvox/veilvox/internal/assistant"
	"github.com/veilvox/veilvox/internal/config"
	"github.com/veilvox/veilvox/internal/event"
	"github.com/veilvox/veilvox/internal/health"
	"github.com/veilvox/veilvox/internal/notify"
	"github.com/veilvox/veilvox/internal/observe"
	"github.com/veilvox/veilvox/internal/segment"
	"github.com/veilvox/veilvox/internal/ui"
	"github.com/veilvox/veilvox/pkg/audio"
	"github.com/veilvox/veilvox/pkg/provider/stt"
	"github.com/veilvox/veilvox/pkg/provider/tts"
)

// echoInterval is how often the event echo loop drains the bridge ring.
const echoInterval = 100 * time.Millisecond

// errUserStop signals that the pipeline ended because the user asked it to,
// not because something failed. Run translates it to a nil return.
var errUserStop = errors.New("app: stop requested by user")

// Providers holds one implementation per provider slot. Populated by
// main.go via the config registry.
type Providers struct {
	Source     audio.Source
	Recognizer stt.Provider
	Speaker    tts.Speaker
}

// App owns all subsystem lifetimes and connects the capture, recognition,
// action, and surface layers.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	bridge    *event.Bridge
	queue     *segment.Queue
	segmenter *segment.Segmenter
	assistant *assistant.Assistant
	server    *ui.Server
	archiver  *archive.Writer
	chime     *notify.Chime
	watcher   *config.Watcher

	metrics    *observe.Metrics
	log        *slog.Logger
	level      *slog.LevelVar
	configPath string

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithBridge injects an event bridge instead of creating one.
func WithBridge(b *event.Bridge) Option {
	return func(a *App) { a.bridge = b }
}

// WithArchiver injects an archive writer instead of creating one from the
// config.
func WithArchiver(w *archive.Writer) Option {
	return func(a *App) { a.archiver = w }
}

// WithChime injects a chime instead of creating one from the config.
func WithChime(c *notify.Chime) Option {
	return func(a *App) { a.chime = c }
}

// WithLevelVar hands the app the logger's level handle so configuration
// reloads can change verbosity without a restart.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithConfigWatch enables hot reloading of the config file at path.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.configPath = path }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry); all three slots
// must be non-nil.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Source == nil || providers.Recognizer == nil || providers.Speaker == nil {
		return nil, errors.New("app: source, recognizer and speaker providers are all required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		metrics:   observe.DefaultMetrics(),
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Event bridge ──────────────────────────────────────────────────
	a.initBridge()

	// ── 2. Capture pipeline ──────────────────────────────────────────────
	a.initPipeline()

	// ── 3. Assistant loop ────────────────────────────────────────────────
	a.initAssistant()

	// ── 4. Control surface ───────────────────────────────────────────────
	a.initSurface()

	// ── 5. Config watcher ────────────────────────────────────────────────
	if err := a.initWatcher(); err != nil {
		return nil, fmt.Errorf("app: init config watcher: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initBridge sets up the event bridge and exposes its drop counter.
func (a *App) initBridge() {
	if a.bridge == nil {
		a.bridge = event.NewBridge(0)
	}
	if err := a.metrics.RegisterEventDrops(a.bridge.Dropped); err != nil {
		a.log.Warn("event drop gauge unavailable", "error", err)
	}
}

// initPipeline sets up the utterance queue, the archive writer, and the
// segmenter that feeds them from the capture device.
func (a *App) initPipeline() {
	a.queue = segment.NewQueue()

	if a.archiver == nil {
		a.archiver = archive.New(a.cfg.Archive.Dir, archive.WithLogger(a.log))
	}

	segOpts := []segment.Option{
		segment.WithLogger(a.log),
		segment.WithMetrics(a.metrics),
		segment.WithTap(a.archiver.Tap()),
	}
	if a.cfg.Audio.Detector == config.DetectorFlux {
		segOpts = append(segOpts, segment.WithDetector(segment.NewFluxDetector()))
	}
	a.segmenter = segment.New(a.providers.Source, a.queue, a.bridge, segment.Config{
		SampleRate:       a.cfg.Audio.SampleRate,
		FrameSize:        a.cfg.Audio.FrameSize,
		SilenceThreshold: a.cfg.Audio.SilenceThreshold,
		SilenceDuration:  a.cfg.Audio.SilenceWindow(),
	}, segOpts...)

	a.closers = append(a.closers, a.providers.Source.Close)
}

// initAssistant builds the command executor and the assistant loop.
func (a *App) initAssistant() {
	executor := action.New(action.WithLogger(a.log))

	a.assistant = assistant.New(
		a.segmenter,
		a.queue,
		a.providers.Recognizer,
		executor,
		a.providers.Speaker,
		a.bridge,
		assistant.WithLogger(a.log),
		assistant.WithMetrics(a.metrics),
	)

	a.closers = append(a.closers, a.providers.Speaker.Close, a.providers.Recognizer.Close)
}

// initSurface sets up the chime and the HTTP/WebSocket control surface.
func (a *App) initSurface() {
	if a.chime == nil {
		a.chime = notify.New(a.cfg.Chime.Enabled, notify.WithLogger(a.log))
	}

	checks := health.New(
		health.CaptureChecker(a.assistant.Err),
		health.RecognizerChecker(a.providers.Recognizer.State),
	)
	a.server = ui.New(a.cfg.Server.ListenAddr, a.assistant, a.bridge, checks,
		ui.WithLogger(a.log),
		ui.WithMetrics(a.metrics),
		ui.WithRecognizerState(a.providers.Recognizer.State),
		ui.WithQueueLen(a.queue.Len),
	)
}

// initWatcher starts polling the config file when hot reload is enabled.
func (a *App) initWatcher() error {
	if a.configPath == "" {
		return nil
	}
	w, err := config.NewWatcher(a.configPath, a.applyConfigChange)
	if err != nil {
		return err
	}
	a.watcher = w
	a.closers = append(a.closers, func() error {
		w.Stop()
		return nil
	})
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the assistant loop, the control surface, and the event echo,
// then blocks until ctx is cancelled or the user ends the session with a
// stop command. A user-requested stop returns nil; cancellation returns
// ctx.Err().
func (a *App) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	// ── goroutine 1: assistant loop ──────────────────────────────────────
	eg.Go(func() error {
		return a.assistant.Run(egCtx)
	})

	// ── goroutine 2: control surface ─────────────────────────────────────
	eg.Go(func() error {
		return a.server.Run(egCtx)
	})

	// ── goroutine 3: event echo + earcons ────────────────────────────────
	eg.Go(func() error {
		a.echoEvents(egCtx)
		return nil
	})

	// ── goroutine 4: stop-intent watch ───────────────────────────────────
	// The goodbye intent shuts the assistant down from inside the loop;
	// this turns that into a group-wide stop so the surface exits too.
	eg.Go(func() error {
		select {
		case <-a.assistant.Done():
			return errUserStop
		case <-egCtx.Done():
			return nil
		}
	})

	if a.cfg.Listen.Autostart {
		a.assistant.Start()
	}
	if g := a.cfg.Listen.Greeting; g != "" {
		a.providers.Speaker.SpeakAsync(egCtx, g)
	}

	a.log.Info("pipeline running",
		"autostart", a.cfg.Listen.Autostart,
		"archive", a.archiver.Enabled(),
		"chime", a.chime.Enabled(),
	)

	err := eg.Wait()
	if errors.Is(err, errUserStop) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// echoEvents drains the bridge ring on a fixed cadence, mirroring the
// conversation into the log and driving the earcons. This keeps the ring
// from evicting events when no WebSocket client is attached; live clients
// have their own subscriber channels and are unaffected.
func (a *App) echoEvents(ctx context.Context) {
	ticker := time.NewTicker(echoInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.handleEvents(a.bridge.Drain())
			return
		case <-ticker.C:
			a.handleEvents(a.bridge.Drain())
		}
	}
}

func (a *App) handleEvents(evs []event.Event) {
	for _, ev := range evs {
		switch ev.Kind {
		case event.KindLog:
			a.log.Info(ev.Text)
		case event.KindStatus:
			a.log.Debug("status", "status", ev.Status, "label", ev.Label)
		case event.KindListening:
			if ev.Listening {
				a.chime.ListeningStarted()
			} else {
				a.chime.ListeningStopped()
			}
		default:
			// Transcript and response are covered by their log lines;
			// amplitude is meter noise.
		}
	}
}

// applyConfigChange reacts to a config file reload: hot-applicable settings
// take effect immediately, everything else logs a restart note.
func (a *App) applyConfigChange(old, updated *config.Config) {
	cs := config.Diff(old, updated)
	if cs.Empty() {
		return
	}

	if cs.LogLevelChanged {
		if a.level != nil {
			a.level.Set(cs.NewLogLevel.Slog())
			a.log.Info("log level changed", "level", cs.NewLogLevel)
		} else {
			a.log.Warn("log level change needs a restart (no level handle)")
		}
	}
	if cs.ChimeChanged {
		a.chime.SetEnabled(cs.ChimeEnabled)
		a.log.Info("chime toggled", "enabled", cs.ChimeEnabled)
	}
	if cs.ArchiveChanged {
		a.archiver.SetDir(cs.NewArchiveDir)
		a.log.Info("archive repointed", "dir", cs.NewArchiveDir, "enabled", cs.NewArchiveDir != "")
	}
	for _, section := range cs.RestartNeeded {
		a.log.Warn("config change needs a restart", "section", section)
	}
}

// ─── Control passthrough ─────────────────────────────────────────────────────

// Toggle flips the assistant between listening and paused. Wired to SIGUSR1
// by main.
func (a *App) Toggle() {
	a.assistant.Toggle()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		a.assistant.Shutdown()
		a.queue.Close()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "error", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}
