// Package notify plays short earcons marking listening transitions, so the
// user hears when the microphone opens and closes without watching a screen.
//
// Earcons are generated sine sweeps, not shipped audio assets. The audio
// device is opened lazily on the first enabled chime and an init failure is
// sticky: a machine without a playback device degrades to silence instead
// of failing the daemon.
package notify

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

const (
	sampleRate = beep.SampleRate(44100)

	// gain keeps earcons well below speech volume.
	gain = 0.25

	// toneLen is the length of each half of a two-tone earcon.
	toneLen = 80 * time.Millisecond

	lowFreq  = 660
	highFreq = 880
)

// Player abstracts the global beep speaker so tests can capture streamers
// instead of opening an audio device.
type Player interface {
	Init(sr beep.SampleRate, bufSize int) error
	Play(s ...beep.Streamer)
}

// speakerPlayer drives the real audio device.
type speakerPlayer struct{}

func (speakerPlayer) Init(sr beep.SampleRate, bufSize int) error { return speaker.Init(sr, bufSize) }
func (speakerPlayer) Play(s ...beep.Streamer)                    { speaker.Play(s...) }

// Chime plays the transition earcons. Safe for concurrent use; the enabled
// flag can be flipped at runtime when the configuration reloads.
type Chime struct {
	enabled atomic.Bool
	log     *slog.Logger
	player  Player

	initOnce sync.Once
	initErr  error
}

// Option customises a [Chime].
type Option func(*Chime)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Chime) {
		if l != nil {
			c.log = l
		}
	}
}

// WithPlayer replaces the audio backend. Defaults to the beep speaker.
func WithPlayer(p Player) Option {
	return func(c *Chime) {
		if p != nil {
			c.player = p
		}
	}
}

// New creates a chime. The audio device is not touched until the first
// enabled earcon plays.
func New(enabled bool, opts ...Option) *Chime {
	c := &Chime{
		log:    slog.Default(),
		player: speakerPlayer{},
	}
	c.enabled.Store(enabled)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEnabled flips earcon playback at runtime.
func (c *Chime) SetEnabled(on bool) {
	c.enabled.Store(on)
}

// Enabled reports whether earcons currently play.
func (c *Chime) Enabled() bool {
	return c.enabled.Load()
}

// ListeningStarted plays a rising two-tone earcon.
func (c *Chime) ListeningStarted() {
	c.play(lowFreq, highFreq)
}

// ListeningStopped plays a falling two-tone earcon.
func (c *Chime) ListeningStopped() {
	c.play(highFreq, lowFreq)
}

func (c *Chime) play(first, second float64) {
	if !c.enabled.Load() {
		return
	}
	c.initOnce.Do(func() {
		c.initErr = c.player.Init(sampleRate, sampleRate.N(time.Second/10))
		if c.initErr != nil {
			c.log.Warn("audio playback unavailable, earcons disabled", "error", c.initErr)
		}
	})
	if c.initErr != nil {
		return
	}
	c.player.Play(beep.Seq(
		tone(sampleRate, first, toneLen),
		tone(sampleRate, second, toneLen),
	))
}

// tone returns a sine streamer with a short linear fade at both ends so the
// earcon starts and stops without a click.
func tone(sr beep.SampleRate, freq float64, d time.Duration) beep.Streamer {
	total := sr.N(d)
	fade := sr.N(5 * time.Millisecond)
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= total {
			return 0, false
		}
		n := 0
		for i := range samples {
			if pos >= total {
				break
			}
			v := gain * math.Sin(2*math.Pi*freq*float64(pos)/float64(sr))
			switch {
			case pos < fade:
				v *= float64(pos) / float64(fade)
			case total-pos < fade:
				v *= float64(total-pos) / float64(fade)
			}
			samples[i][0] = v
			samples[i][1] = v
			pos++
			n++
		}
		return n, true
	})
}
