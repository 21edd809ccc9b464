package framez

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zoobzio/clockz"
)

const frameInterval = 16667 * time.Microsecond

func TestFrameTimeFirstPrediction(t *testing.T) {
	clock := clockz.NewFakeClock()
	ft := newFrameTime(clock, frameInterval)

	clock.Advance(frameInterval)
	ft.setSyncTime(1)

	p := ft.predict()
	assert.Equal(t, frameInterval, p.lastFrameDelta)
	assert.True(t, clock.Now().Equal(p.lastSync))
	assert.True(t, clock.Now().Add(frameInterval).Equal(p.nextSync))
}

func TestFrameTimeSteadyCadence(t *testing.T) {
	clock := clockz.NewFakeClock()
	ft := newFrameTime(clock, frameInterval)

	for frame := uint64(1); frame <= 5; frame++ {
		clock.Advance(frameInterval)
		ft.setSyncTime(frame)
		p := ft.predict()
		assert.Equal(t, frameInterval, p.lastFrameDelta, "frame %d", frame)
		assert.True(t, p.lastSync.Add(frameInterval).Equal(p.nextSync), "frame %d", frame)
	}
}

func TestFrameTimeRecurringMissedVSyncs(t *testing.T) {
	clock := clockz.NewFakeClock()
	ft := newFrameTime(clock, frameInterval)

	var frame uint64
	var p framePrediction
	// Every update misses one vsync: two vsyncs per update.
	for i := 0; i < 5; i++ {
		for j := 0; j < 2; j++ {
			frame++
			clock.Advance(frameInterval)
			ft.setSyncTime(frame)
		}
		p = ft.predict()
	}

	assert.Equal(t, 2*frameInterval, p.lastFrameDelta)
	assert.True(t, p.lastSync.Add(2*frameInterval).Equal(p.nextSync), "prediction follows the missed vsync pattern")
}

func TestFrameTimeUpdateBeforeSync(t *testing.T) {
	clock := clockz.NewFakeClock()
	ft := newFrameTime(clock, frameInterval)

	clock.Advance(frameInterval)
	ft.setSyncTime(1)
	ft.predict()

	// Second update with no vsync in between.
	p := ft.predict()
	assert.Zero(t, p.lastFrameDelta)
	assert.True(t, p.lastSync.Add(2*frameInterval).Equal(p.nextSync))
}

func TestFrameTimeSuspendResume(t *testing.T) {
	clock := clockz.NewFakeClock()
	ft := newFrameTime(clock, frameInterval)

	clock.Advance(frameInterval)
	ft.setSyncTime(1)
	ft.predict()

	ft.suspend()
	assert.Equal(t, framePrediction{}, ft.predict(), "no prediction while suspended")

	clock.Advance(time.Second)
	ft.setSyncTime(2) // ignored while suspended
	ft.resume()

	p := ft.predict()
	assert.Equal(t, time.Second, p.lastFrameDelta, "resume reports the suspended time")
}

func TestFrameTimeSleepWakeUp(t *testing.T) {
	clock := clockz.NewFakeClock()
	ft := newFrameTime(clock, frameInterval)

	clock.Advance(frameInterval)
	ft.setSyncTime(1)
	ft.predict()

	ft.sleep()
	clock.Advance(time.Second)
	ft.wakeUp()

	p := ft.predict()
	assert.Zero(t, p.lastFrameDelta, "waking up does not advance animations")
}

func TestFrameTimeMinimumInterval(t *testing.T) {
	clock := clockz.NewFakeClock()
	ft := newFrameTime(clock, frameInterval)
	ft.setMinimumFrameInterval(3 * frameInterval)

	clock.Advance(frameInterval)
	ft.setSyncTime(1)
	p := ft.predict()
	assert.True(t, p.lastSync.Add(3*frameInterval).Equal(p.nextSync))
}
