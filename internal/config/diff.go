package config

import "slices"

// ChangeSet describes what changed between two configs, split into changes
// the running daemon can apply immediately and changes that need a restart.
type ChangeSet struct {
	// LogLevelChanged is hot-applied by swapping the handler level.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ChimeChanged is hot-applied by toggling the notifier.
	ChimeChanged bool
	ChimeEnabled bool

	// ArchiveChanged is hot-applied by repointing the archive writer.
	// NewArchiveDir may be empty, which disables archiving.
	ArchiveChanged bool
	NewArchiveDir  string

	// RestartNeeded lists config sections that changed but are baked into
	// running components (capture stream, recognizer model, speaker
	// binary, listen address). The daemon logs these and keeps running
	// on the old values.
	RestartNeeded []string
}

// Empty reports whether the change set carries no changes at all.
func (c ChangeSet) Empty() bool {
	return !c.LogLevelChanged && !c.ChimeChanged && !c.ArchiveChanged && len(c.RestartNeeded) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ChangeSet {
	var c ChangeSet

	if old.Server.LogLevel != new.Server.LogLevel {
		c.LogLevelChanged = true
		c.NewLogLevel = new.Server.LogLevel
	}
	if old.Chime.Enabled != new.Chime.Enabled {
		c.ChimeChanged = true
		c.ChimeEnabled = new.Chime.Enabled
	}
	if old.Archive.Dir != new.Archive.Dir {
		c.ArchiveChanged = true
		c.NewArchiveDir = new.Archive.Dir
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		c.RestartNeeded = append(c.RestartNeeded, "server.listen_addr")
	}
	if old.Audio != new.Audio {
		c.RestartNeeded = append(c.RestartNeeded, "audio")
	}
	if old.Recognizer != new.Recognizer {
		c.RestartNeeded = append(c.RestartNeeded, "recognizer")
	}
	if !speakerEqual(old.Speaker, new.Speaker) {
		c.RestartNeeded = append(c.RestartNeeded, "speaker")
	}
	if old.Listen != new.Listen {
		c.RestartNeeded = append(c.RestartNeeded, "listen")
	}

	return c
}

// speakerEqual compares speaker configs field by field; the Command slice
// keeps SpeakerConfig from being directly comparable.
func speakerEqual(a, b SpeakerConfig) bool {
	return a.Name == b.Name &&
		a.Binary == b.Binary &&
		a.Voice == b.Voice &&
		a.Rate == b.Rate &&
		a.Volume == b.Volume &&
		slices.Equal(a.Command, b.Command)
}
