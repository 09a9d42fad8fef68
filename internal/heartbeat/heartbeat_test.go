package heartbeat

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartSignalsImmediatelyAndPeriodically(t *testing.T) {
	var signals int32
	task := Start(func() { atomic.AddInt32(&signals, 1) }, 10*time.Millisecond)
	defer task.Stop()

	time.Sleep(25 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&signals), int32(2),
		"expected the immediate signal plus at least one tick")
}

func TestStopHaltsSignals(t *testing.T) {
	var signals int32
	task := Start(func() { atomic.AddInt32(&signals, 1) }, 5*time.Millisecond)

	time.Sleep(12 * time.Millisecond)
	task.Stop()
	after := atomic.LoadInt32(&signals)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&signals),
		"no signal may begin after Stop returns")
}

func TestStopIsIdempotent(t *testing.T) {
	task := Start(func() {}, time.Millisecond)
	task.Stop()
	task.Stop()
}

func TestStopBeforeFirstTick(t *testing.T) {
	var signals int32
	task := Start(func() { atomic.AddInt32(&signals, 1) }, time.Hour)
	task.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&signals),
		"only the immediate signal fires when stopped before the first tick")
}
