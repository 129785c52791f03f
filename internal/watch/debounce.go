package watch

import (
	"context"
	"sync"
	"time"
)

// debouncer delivers a path on ready once it has seen no schedule call for
// delay.
type debouncer struct {
	ctx    context.Context
	delay  time.Duration
	ready  chan string
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newDebouncer(ctx context.Context, delay time.Duration) *debouncer {
	return &debouncer{
		ctx:    ctx,
		delay:  delay,
		ready:  make(chan string, 16),
		timers: make(map[string]*time.Timer),
	}
}

func (d *debouncer) schedule(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scheduleLocked(path)
}

// scheduleLocked replaces the timer instead of resetting it. A callback
// that already fired and is waiting on mu finds it is no longer the current
// timer for its path and drops out, so one burst yields one delivery.
func (d *debouncer) scheduleLocked(path string) {
	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.timers[path] != t {
			d.mu.Unlock()
			return
		}
		delete(d.timers, path)
		d.mu.Unlock()
		select {
		case d.ready <- path:
		case <-d.ctx.Done():
		}
	})
	d.timers[path] = t
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.timers {
		t.Stop()
	}
}
