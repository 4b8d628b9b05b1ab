package event

import (
	"sync"
	"time"
)

// DefaultBufferSize is the ring capacity used by [NewBridge] when the caller
// passes a non-positive size. At roughly 16 amplitude events per second this
// holds several minutes of quiet operation before anything is evicted.
const DefaultBufferSize = 4096

// Bridge decouples pipeline goroutines from whatever surface displays their
// events. Producers call [Bridge.Emit] from any goroutine; consumers either
// [Bridge.Poll] on their own schedule or [Bridge.Subscribe] for a live feed.
//
// Emit never blocks. When the ring is full the oldest entry is evicted and
// counted in [Bridge.Dropped]; when a subscriber's channel is full the event
// is dropped for that subscriber only. Events from a single producer are
// observed in emission order.
//
// All methods are safe for concurrent use.
type Bridge struct {
	mu      sync.Mutex
	ring    []Event
	maxSize int
	dropped uint64

	subs   map[int]chan Event
	nextID int
}

// NewBridge creates a bridge retaining at most maxSize undelivered events.
// Pass 0 for the default capacity.
func NewBridge(maxSize int) *Bridge {
	if maxSize <= 0 {
		maxSize = DefaultBufferSize
	}
	return &Bridge{
		ring:    make([]Event, 0, maxSize),
		maxSize: maxSize,
		subs:    make(map[int]chan Event),
	}
}

// Emit publishes an event to the ring and to every live subscriber. The
// event's Time is stamped if the producer left it zero. Emit never blocks:
// a full ring evicts its oldest entry, a full subscriber channel drops the
// event for that subscriber.
func (b *Bridge) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.ring = append(b.ring, ev)
	if len(b.ring) > b.maxSize {
		over := len(b.ring) - b.maxSize
		b.dropped += uint64(over)
		keep := b.ring[over:]
		// Copy to a fresh slice so evicted entries can be garbage collected.
		fresh := make([]Event, len(keep), b.maxSize)
		copy(fresh, keep)
		b.ring = fresh
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
		}
	}
}

// Poll removes and returns the oldest undelivered event. The second return
// is false when no event is pending. Poll never blocks.
func (b *Bridge) Poll() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.ring) == 0 {
		return Event{}, false
	}
	ev := b.ring[0]
	b.ring = b.ring[1:]
	if len(b.ring) == 0 {
		b.ring = make([]Event, 0, b.maxSize)
	}
	return ev, true
}

// Drain removes and returns all undelivered events in emission order.
func (b *Bridge) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.ring) == 0 {
		return nil
	}
	out := b.ring
	b.ring = make([]Event, 0, b.maxSize)
	return out
}

// Len reports how many events are waiting to be polled.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Dropped reports how many events have been lost to ring eviction or full
// subscriber channels since the bridge was created.
func (b *Bridge) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Subscribe registers a live feed and returns its channel together with a
// cancel func. The channel holds up to buffer events; events emitted while
// it is full are dropped for this subscriber. The cancel func closes the
// channel and is safe to call more than once.
func (b *Bridge) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
