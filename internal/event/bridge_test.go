package event_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/veilvox/veilvox/internal/event"
)

func TestBridgeEmitPoll(t *testing.T) {
	t.Parallel()

	b := event.NewBridge(8)
	b.Emit(event.Transcript("hello"))
	b.Emit(event.Response("hi there"))

	ev, ok := b.Poll()
	if !ok {
		t.Fatal("expected a pending event")
	}
	if ev.Kind != event.KindTranscript || ev.Text != "hello" {
		t.Fatalf("want transcript/hello, got %s/%q", ev.Kind, ev.Text)
	}
	if ev.Time.IsZero() {
		t.Error("Emit did not stamp Time")
	}

	ev, ok = b.Poll()
	if !ok {
		t.Fatal("expected a second pending event")
	}
	if ev.Kind != event.KindResponse || ev.Text != "hi there" {
		t.Fatalf("want response/hi there, got %s/%q", ev.Kind, ev.Text)
	}

	if _, ok := b.Poll(); ok {
		t.Error("expected empty bridge after draining")
	}
}

func TestBridgePollEmpty(t *testing.T) {
	t.Parallel()

	b := event.NewBridge(8)
	if _, ok := b.Poll(); ok {
		t.Error("Poll on a fresh bridge should report no event")
	}
}

func TestBridgeDropOldest(t *testing.T) {
	t.Parallel()

	b := event.NewBridge(3)
	for i := range 5 {
		b.Emit(event.Log(fmt.Sprintf("line-%d", i)))
	}

	if got := b.Len(); got != 3 {
		t.Fatalf("want 3 buffered events, got %d", got)
	}
	if got := b.Dropped(); got != 2 {
		t.Fatalf("want 2 dropped, got %d", got)
	}

	// The two oldest entries were evicted.
	ev, _ := b.Poll()
	if ev.Text != "line-2" {
		t.Errorf("want line-2 first after eviction, got %q", ev.Text)
	}
}

func TestBridgeConcurrentProducersKeepOrder(t *testing.T) {
	t.Parallel()

	const producers = 4
	const perProducer = 100

	b := event.NewBridge(producers * perProducer)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				b.Emit(event.Log(fmt.Sprintf("p%d-%d", p, i)))
			}
		}()
	}
	wg.Wait()

	all := b.Drain()
	if len(all) != producers*perProducer {
		t.Fatalf("want %d events, got %d", producers*perProducer, len(all))
	}

	// Each producer's events must appear in emission order.
	seen := make(map[string]int, producers)
	for _, ev := range all {
		prefix, numStr, ok := strings.Cut(ev.Text, "-")
		if !ok {
			t.Fatalf("malformed event text %q", ev.Text)
		}
		var n int
		if _, err := fmt.Sscanf(numStr, "%d", &n); err != nil {
			t.Fatalf("malformed sequence in %q: %v", ev.Text, err)
		}
		if want := seen[prefix]; n != want {
			t.Fatalf("producer %s out of order: want %d, got %d", prefix, want, n)
		}
		seen[prefix]++
	}
}

func TestBridgeSubscribe(t *testing.T) {
	t.Parallel()

	b := event.NewBridge(8)
	ch, cancel := b.Subscribe(4)
	defer cancel()

	b.Emit(event.StatusChanged(event.StatusListening))

	select {
	case ev := <-ch:
		if ev.Kind != event.KindStatus || ev.Status != event.StatusListening {
			t.Fatalf("want status/listening, got %s/%s", ev.Kind, ev.Status)
		}
		if ev.Label != "Listening…" {
			t.Errorf("want label Listening…, got %q", ev.Label)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribed event")
	}

	// The event is also buffered for pollers.
	if got := b.Len(); got != 1 {
		t.Errorf("want 1 buffered event, got %d", got)
	}
}

func TestBridgeSubscribeCancelClosesChannel(t *testing.T) {
	t.Parallel()

	b := event.NewBridge(8)
	ch, cancel := b.Subscribe(4)
	cancel()
	cancel() // second call must be a no-op

	if _, open := <-ch; open {
		t.Error("expected channel closed after cancel")
	}

	// Emitting after cancel must not panic or deliver.
	b.Emit(event.Log("after cancel"))
}

func TestBridgeSlowSubscriberDoesNotBlockEmit(t *testing.T) {
	t.Parallel()

	b := event.NewBridge(64)
	_, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 10 {
			b.Emit(event.Amplitude(i))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full subscriber channel")
	}

	if b.Dropped() == 0 {
		t.Error("expected dropped count for the full subscriber")
	}
}

func TestStatusLabels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status event.Status
		want   string
	}{
		{event.StatusIdle, "Idle"},
		{event.StatusListening, "Listening…"},
		{event.StatusThinking, "Processing…"},
		{event.StatusSpeaking, "Speaking…"},
		{event.StatusLoading, "Loading model (first run)…"},
		{event.StatusError, "Microphone error"},
	}
	for _, tc := range cases {
		if got := tc.status.Label(); got != tc.want {
			t.Errorf("%s: want %q, got %q", tc.status, tc.want, got)
		}
	}
}
