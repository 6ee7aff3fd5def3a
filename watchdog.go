package sikulibridge

import (
	"sync"
	"time"
)

// Delays before an unattended engine is told to stop.
const (
	docStopDelay        = 4 * time.Second
	createStopDelay     = 3 * time.Second
	unattendedStopDelay = 1 * time.Second
)

// watchdog runs fn once after a delay unless cancelled first. It never
// blocks the goroutine that scheduled it.
type watchdog struct {
	timer *time.Timer

	mu        sync.Mutex
	cancelled bool
	fired     bool
}

func scheduleWatchdog(delay time.Duration, fn func()) *watchdog {
	w := &watchdog{}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timer = time.AfterFunc(delay, func() {
		w.mu.Lock()
		if w.cancelled {
			w.mu.Unlock()
			return
		}
		w.fired = true
		w.mu.Unlock()
		fn()
	})
	return w
}

// Cancel prevents a pending run and reports whether it did so.
func (w *watchdog) Cancel() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fired || w.cancelled {
		return false
	}
	w.cancelled = true
	w.timer.Stop()
	return true
}
