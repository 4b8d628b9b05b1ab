// Command veilvox is the local voice-command assistant daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/veilvox/veilvox/internal/app"
	"github.com/veilvox/veilvox/internal/config"
	"github.com/veilvox/veilvox/internal/observe"
	"github.com/veilvox/veilvox/pkg/audio"
	audiomock "github.com/veilvox/veilvox/pkg/audio/mock"
	"github.com/veilvox/veilvox/pkg/audio/portaudio"
	"github.com/veilvox/veilvox/pkg/provider/stt"
	sttmock "github.com/veilvox/veilvox/pkg/provider/stt/mock"
	"github.com/veilvox/veilvox/pkg/provider/stt/whisper"
	"github.com/veilvox/veilvox/pkg/provider/tts"
	"github.com/veilvox/veilvox/pkg/provider/tts/command"
	"github.com/veilvox/veilvox/pkg/provider/tts/espeak"
	ttsmock "github.com/veilvox/veilvox/pkg/provider/tts/mock"
)

// version is stamped by the linker in release builds.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := pflag.StringP("config", "c", "veilvox.yaml", "path to the YAML configuration file")
	envFile := pflag.StringP("env", "e", ".env", "env file loaded at startup; missing is fine")
	logLevel := pflag.String("log-level", "", "override the configured log level (debug|info|warn|error)")
	headless := pflag.Bool("headless", false, "suppress the startup summary box on stdout")
	pflag.Parse()

	// The env file is optional.
	_ = godotenv.Load(*envFile)

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "veilvox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "veilvox: %v\n", err)
		}
		return 1
	}
	if *logLevel != "" {
		lvl := config.LogLevel(*logLevel)
		if !lvl.IsValid() {
			fmt.Fprintf(os.Stderr, "veilvox: --log-level %q is invalid; valid values: debug, info, warn, error\n", *logLevel)
			return 1
		}
		cfg.Server.LogLevel = lvl
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so config reloads can adjust verbosity
	// without a restart.
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Slog())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("veilvox starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName:    "veilvox",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm the recognizer in the background so the first utterance does not
	// pay the model load; Transcribe loads lazily anyway if this loses.
	go func() {
		if err := providers.Recognizer.Load(ctx); err != nil && ctx.Err() == nil {
			slog.Error("recognizer load failed", "err", err)
		}
	}()

	// ── Startup summary ───────────────────────────────────────────────────────
	if !*headless {
		printStartupSummary(cfg)
	}

	application, err := app.New(cfg, providers,
		app.WithLogger(logger),
		app.WithLevelVar(level),
		app.WithConfigWatch(*configPath),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── SIGUSR1 toggles listening ─────────────────────────────────────────────
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)
	go func() {
		for range usr1 {
			slog.Info("toggle signal received")
			application.Toggle()
		}
	}()

	slog.Info("daemon ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the built-in source, recognizer and speaker
// factories into reg. Factories receive their config section and construct
// the provider from the real implementation packages; the "mock" entries
// exist so the daemon can run end to end without hardware.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Audio sources ─────────────────────────────────────────────────────────

	reg.RegisterSource("portaudio", func(cfg config.AudioConfig) (audio.Source, error) {
		return portaudio.New(cfg.SampleRate, cfg.FrameSize)
	})

	reg.RegisterSource("mock", func(config.AudioConfig) (audio.Source, error) {
		return &audiomock.Source{}, nil
	})

	// ── Recognizers ───────────────────────────────────────────────────────────

	reg.RegisterRecognizer("whisper", func(cfg config.RecognizerConfig) (stt.Provider, error) {
		var opts []whisper.NativeOption
		if cfg.Language != "" {
			opts = append(opts, whisper.WithNativeLanguage(cfg.Language))
		}
		return whisper.NewNative(cfg.ModelPath, opts...)
	})

	reg.RegisterRecognizer("whisper-server", func(cfg config.RecognizerConfig) (stt.Provider, error) {
		var opts []whisper.ServerOption
		if cfg.Language != "" {
			opts = append(opts, whisper.WithLanguage(cfg.Language))
		}
		return whisper.NewServer(cfg.ServerURL, opts...)
	})

	reg.RegisterRecognizer("mock", func(config.RecognizerConfig) (stt.Provider, error) {
		return &sttmock.Provider{}, nil
	})

	// ── Speakers ──────────────────────────────────────────────────────────────

	reg.RegisterSpeaker("espeak", func(cfg config.SpeakerConfig) (tts.Speaker, error) {
		return espeak.New(espeakOptions(cfg)...)
	})

	// "say" is the espeak provider pinned to the macOS binary; an explicit
	// speaker.binary still wins because it is applied later.
	reg.RegisterSpeaker("say", func(cfg config.SpeakerConfig) (tts.Speaker, error) {
		opts := append([]espeak.Option{espeak.WithBinary("say")}, espeakOptions(cfg)...)
		return espeak.New(opts...)
	})

	reg.RegisterSpeaker("command", func(cfg config.SpeakerConfig) (tts.Speaker, error) {
		return command.New(cfg.Command)
	})

	reg.RegisterSpeaker("mock", func(config.SpeakerConfig) (tts.Speaker, error) {
		return &ttsmock.Speaker{}, nil
	})
}

// espeakOptions converts the speaker config section into options shared by
// the espeak and say registrations.
func espeakOptions(cfg config.SpeakerConfig) []espeak.Option {
	opts := []espeak.Option{
		espeak.WithRate(cfg.Rate),
		espeak.WithVolume(cfg.Volume),
	}
	if cfg.Voice != "" {
		opts = append(opts, espeak.WithVoice(cfg.Voice))
	}
	if cfg.Binary != "" {
		opts = append(opts, espeak.WithBinary(cfg.Binary))
	}
	return opts
}

// buildProviders instantiates the source, recognizer and speaker named in
// cfg through the registry. Providers already created are closed again when
// a later one fails, so a half-built set never leaks an open audio device.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	source, err := reg.CreateSource(cfg.Audio)
	if err != nil {
		return nil, describeProviderErr("source", cfg.Audio.Source, err)
	}
	slog.Info("provider created", "kind", "source", "name", cfg.Audio.Source)

	recognizer, err := reg.CreateRecognizer(cfg.Recognizer)
	if err != nil {
		source.Close()
		return nil, describeProviderErr("recognizer", cfg.Recognizer.Name, err)
	}
	slog.Info("provider created", "kind", "recognizer", "name", cfg.Recognizer.Name)

	speaker, err := reg.CreateSpeaker(cfg.Speaker)
	if err != nil {
		recognizer.Close()
		source.Close()
		return nil, describeProviderErr("speaker", cfg.Speaker.Name, err)
	}
	slog.Info("provider created", "kind", "speaker", "name", cfg.Speaker.Name)

	return &app.Providers{Source: source, Recognizer: recognizer, Speaker: speaker}, nil
}

// describeProviderErr turns a registry miss into a friendly message and
// passes other construction errors through wrapped.
func describeProviderErr(kind, name string, err error) error {
	if errors.Is(err, config.ErrProviderNotRegistered) {
		return fmt.Errorf("%q is not a known %s; see configs/example.yaml for valid names", name, kind)
	}
	return fmt.Errorf("create %s %q: %w", kind, name, err)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       VeilVox — startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Source", cfg.Audio.Source)
	printRow("Recognizer", recognizerSummary(cfg.Recognizer))
	printRow("Speaker", speakerSummary(cfg.Speaker))
	printRow("Detector", string(cfg.Audio.Detector))
	printRow("Autostart", fmt.Sprintf("%t", cfg.Listen.Autostart))
	if cfg.Archive.Dir != "" {
		printRow("Archive", cfg.Archive.Dir)
	} else {
		printRow("Archive", "(disabled)")
	}
	if cfg.Chime.Enabled {
		printRow("Chime", "enabled")
	} else {
		printRow("Chime", "(disabled)")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-13s : %-19s  ║\n", label, value)
}

func recognizerSummary(cfg config.RecognizerConfig) string {
	switch cfg.Name {
	case "whisper":
		return cfg.Name + " / " + cfg.ModelPath
	case "whisper-server":
		return cfg.Name + " / " + cfg.ServerURL
	default:
		return cfg.Name
	}
}

func speakerSummary(cfg config.SpeakerConfig) string {
	if cfg.Voice != "" {
		return cfg.Name + " / " + cfg.Voice
	}
	return cfg.Name
}
