// Package heartbeat runs a cancellable periodic liveness signal for the
// duration of a slow external call.
package heartbeat

import (
	"sync"
	"time"
)

// Task is a running heartbeat. Its lifetime is strictly nested inside
// the request that started it.
type Task struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Start fires signal immediately, then once per interval until Stop is
// called. The signal function must tolerate being called from another
// goroutine; send failures are its own concern.
func Start(signal func(), interval time.Duration) *Task {
	t := &Task{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go t.run(signal, interval)
	return t
}

func (t *Task) run(signal func(), interval time.Duration) {
	defer close(t.done)

	signal()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			// Re-check the stop channel before signalling so a stop
			// that raced the tick wins.
			select {
			case <-t.stop:
				return
			default:
			}
			signal()
		}
	}
}

// Stop cancels the heartbeat and blocks until the loop has exited: no
// signal invocation begins after Stop returns. Cancellation is observed
// once per interval, so a tick already in flight completes first,
// bounding shutdown latency to one interval. Safe to call more than
// once.
func (t *Task) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}
