package notify

import (
	"sync"
	"time"

	"flyerforge-ai/internal/flyer"
)

type Options struct {
	Debounce time.Duration
	OnFlush  func(flyer.Event)
}

// Throttler coalesces bursts of progress events so rate-limited sinks
// (Telegram message edits) only see the latest state. The first event of
// a burst is delivered immediately; while the window is open, newer
// events overwrite the pending one.
type Throttler struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(flyer.Event)
	cooling  bool
	pending  *flyer.Event
	timer    *time.Timer
}

func New(opts Options) *Throttler {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1500 * time.Millisecond
	}

	return &Throttler{
		debounce: debounce,
		onFlush:  opts.OnFlush,
	}
}

func (t *Throttler) Notify(ev flyer.Event) {
	t.mu.Lock()
	if t.cooling {
		t.pending = &ev
		t.mu.Unlock()
		return
	}
	t.cooling = true
	t.timer = time.AfterFunc(t.debounce, t.cool)
	onFlush := t.onFlush
	t.mu.Unlock()

	if onFlush != nil {
		onFlush(ev)
	}
}

func (t *Throttler) cool() {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	if pending != nil {
		// Keep the window open so a steady stream stays throttled.
		t.timer = time.AfterFunc(t.debounce, t.cool)
	} else {
		t.cooling = false
		t.timer = nil
	}
	onFlush := t.onFlush
	t.mu.Unlock()

	if pending != nil && onFlush != nil {
		onFlush(*pending)
	}
}

// Flush delivers any pending event right away and closes the window.
// Call it when a run finishes so the final state is never lost to the
// debounce.
func (t *Throttler) Flush() {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.cooling = false
	onFlush := t.onFlush
	t.mu.Unlock()

	if pending != nil && onFlush != nil {
		onFlush(*pending)
	}
}
