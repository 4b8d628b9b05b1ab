package config_test

import (
	"slices"
	"testing"

	"github.com/veilvox/veilvox/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()

	d := config.Diff(old, new)
	if !d.Empty() {
		t.Errorf("expected empty change set, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("expected LogLevelChanged")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel: got %q, want debug", d.NewLogLevel)
	}
	if len(d.RestartNeeded) != 0 {
		t.Errorf("log level is hot-applied, RestartNeeded should be empty: %v", d.RestartNeeded)
	}
}

func TestDiff_ChimeToggled(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Chime.Enabled = false

	d := config.Diff(old, new)
	if !d.ChimeChanged {
		t.Fatal("expected ChimeChanged")
	}
	if d.ChimeEnabled {
		t.Error("ChimeEnabled: got true, want false")
	}
}

func TestDiff_ArchiveDirChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Archive.Dir = "/tmp/utterances"

	d := config.Diff(old, new)
	if !d.ArchiveChanged {
		t.Fatal("expected ArchiveChanged")
	}
	if d.NewArchiveDir != "/tmp/utterances" {
		t.Errorf("NewArchiveDir: got %q", d.NewArchiveDir)
	}
}

func TestDiff_AudioNeedsRestart(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Audio.SilenceThreshold = 800

	d := config.Diff(old, new)
	if !slices.Contains(d.RestartNeeded, "audio") {
		t.Errorf("RestartNeeded should contain audio, got %v", d.RestartNeeded)
	}
	if d.LogLevelChanged || d.ChimeChanged || d.ArchiveChanged {
		t.Errorf("no hot-applied change expected, got %+v", d)
	}
}

func TestDiff_SpeakerCommandNeedsRestart(t *testing.T) {
	t.Parallel()
	old := config.Default()
	old.Speaker.Name = "command"
	old.Speaker.Command = []string{"piper", "--text", "{text}"}
	new := config.Default()
	new.Speaker.Name = "command"
	new.Speaker.Command = []string{"piper", "--text", "{text}", "--fast"}

	d := config.Diff(old, new)
	if !slices.Contains(d.RestartNeeded, "speaker") {
		t.Errorf("RestartNeeded should contain speaker, got %v", d.RestartNeeded)
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Server.LogLevel = config.LogError
	new.Chime.Enabled = false
	new.Recognizer.Language = "de"
	new.Server.ListenAddr = ":9000"
	new.Listen.Greeting = "Hello again."

	d := config.Diff(old, new)
	if !d.LogLevelChanged || !d.ChimeChanged {
		t.Errorf("expected log level and chime changes, got %+v", d)
	}
	if !slices.Contains(d.RestartNeeded, "recognizer") {
		t.Errorf("RestartNeeded should contain recognizer, got %v", d.RestartNeeded)
	}
	if !slices.Contains(d.RestartNeeded, "server.listen_addr") {
		t.Errorf("RestartNeeded should contain server.listen_addr, got %v", d.RestartNeeded)
	}
	if !slices.Contains(d.RestartNeeded, "listen") {
		t.Errorf("RestartNeeded should contain listen, got %v", d.RestartNeeded)
	}
}
