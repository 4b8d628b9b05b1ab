// Package archive persists segmented utterances as WAV files.
//
// Archiving is optional: a [Writer] with an empty directory is a no-op, and
// the directory can be repointed at runtime when the configuration reloads.
// Files are named after the utterance start time, so a recording session
// reads chronologically in a directory listing.
package archive

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"

	"github.com/veilvox/veilvox/internal/segment"
	"github.com/veilvox/veilvox/pkg/audio"
)

const (
	bitDepth = 16
	channels = 1

	// formatPCM is the WAV audio format tag for uncompressed PCM.
	formatPCM = 1

	// nameFormat is the file-name timestamp layout, millisecond precision.
	nameFormat = "20060102_150405.000"
)

// Writer saves utterances as 16-bit mono WAV files. Safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	dir string

	fs  afero.Fs
	log *slog.Logger
}

// Option customises a [Writer].
type Option func(*Writer)

// WithFs replaces the filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(w *Writer) {
		if fs != nil {
			w.fs = fs
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// New creates a writer archiving into dir. An empty dir disables archiving
// until [Writer.SetDir] supplies one.
func New(dir string, opts ...Option) *Writer {
	w := &Writer{
		dir: dir,
		fs:  afero.NewOsFs(),
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetDir repoints the archive directory. An empty dir disables archiving.
// Only future saves are affected; files already written stay where they are.
func (w *Writer) SetDir(dir string) {
	w.mu.Lock()
	w.dir = dir
	w.mu.Unlock()
}

// Enabled reports whether saves currently go anywhere.
func (w *Writer) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir != ""
}

// Save writes one utterance and returns the file path. When archiving is
// disabled it returns ("", nil). The archive directory is created on first
// use.
func (w *Writer) Save(u segment.Utterance) (string, error) {
	w.mu.Lock()
	dir := w.dir
	w.mu.Unlock()
	if dir == "" {
		return "", nil
	}

	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("archive: create dir %q: %w", dir, err)
	}

	start := u.Start
	if start.IsZero() {
		start = time.Now()
	}
	path := filepath.Join(dir, start.Format(nameFormat)+".wav")

	f, err := w.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("archive: create %q: %w", path, err)
	}

	enc := wav.NewEncoder(f, u.SampleRate, bitDepth, channels, formatPCM)

	int16s := audio.Float32ToInt16(u.Samples)
	data := make([]int, len(int16s))
	for i, v := range int16s {
		data[i] = int(v)
	}
	err = enc.Write(&gaudio.IntBuffer{
		Data:           data,
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: u.SampleRate},
		SourceBitDepth: bitDepth,
	})
	// Close order matters: the encoder seeks back to fix up the header.
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("archive: write %q: %w", path, err)
	}

	w.log.Debug("utterance archived",
		"path", path,
		"duration", u.Duration().Round(time.Millisecond),
	)
	return path, nil
}

// Tap adapts the writer for [segment.WithTap]. Save failures are logged and
// swallowed so a full disk cannot take down capture.
func (w *Writer) Tap() func(segment.Utterance) {
	return func(u segment.Utterance) {
		if _, err := w.Save(u); err != nil {
			w.log.Warn("utterance archive failed", "error", err)
		}
	}
}
