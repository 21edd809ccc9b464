package framez

import (
	"time"

	"github.com/zoobzio/clockz"
)

// DefaultVSyncInterval is the display period assumed when no better
// information exists: 16667µs, roughly 60 Hz.
const DefaultVSyncInterval = 16667 * time.Microsecond

const frameHistorySize = 3

// framePrediction is what an update learns about its timing.
type framePrediction struct {
	lastFrameDelta time.Duration
	lastSync       time.Time
	nextSync       time.Time
}

// frameTime predicts when the frame being updated will reach the display.
// It records the time of every vsync and, at each update, compares the
// number of vsyncs since the previous update with a short history so that
// a recurring pattern of missed vsyncs is reflected in the prediction.
//
// frameTime is owned by the hub and only used under the hub's lock.
type frameTime struct {
	clock clockz.Clock

	minimumInterval time.Duration

	lastSync         time.Time
	lastSyncAtUpdate time.Time
	lastSyncFrame    uint64
	lastUpdateFrame  uint64
	extraUpdates     uint64
	previousFrames   [frameHistorySize]uint64
	writePos         int
	running          bool
	firstFrame       bool
}

func newFrameTime(clock clockz.Clock, interval time.Duration) *frameTime {
	ft := &frameTime{
		clock:           clock,
		minimumInterval: interval,
		running:         true,
		firstFrame:      true,
	}
	ft.lastSync = clock.Now()
	ft.lastSyncAtUpdate = ft.lastSync
	return ft
}

// setMinimumFrameInterval sets the time between two renders.
func (ft *frameTime) setMinimumFrameInterval(d time.Duration) {
	ft.minimumInterval = d
}

// setSyncTime records a vsync. Ignored while suspended.
func (ft *frameTime) setSyncTime(frame uint64) {
	if !ft.running {
		return
	}
	ft.lastSync = ft.clock.Now()
	ft.lastSyncFrame = frame
}

func (ft *frameTime) suspend() {
	ft.running = false
	ft.lastSyncFrame = 0
	ft.lastUpdateFrame = 0
	ft.writePos = 0
	ft.extraUpdates = 0
	ft.previousFrames = [frameHistorySize]uint64{}
}

// resume keeps lastSyncAtUpdate so the next delta covers the suspension.
func (ft *frameTime) resume() {
	ft.lastSync = ft.clock.Now()
	ft.firstFrame = true
	ft.running = true
}

func (ft *frameTime) sleep() {
	ft.suspend()
}

// wakeUp, unlike resume, reports no elapsed time on the next update.
func (ft *frameTime) wakeUp() {
	ft.lastSync = ft.clock.Now()
	ft.lastSyncAtUpdate = ft.lastSync
	ft.firstFrame = true
	ft.running = true
}

// predict is called once per update.
func (ft *frameTime) predict() framePrediction {
	if !ft.running {
		return framePrediction{}
	}

	lastSync := ft.lastSync
	framesTillNextSync := uint64(1)
	framesInLastUpdate := ft.lastSyncFrame - ft.lastUpdateFrame
	delta := lastSync.Sub(ft.lastSyncAtUpdate)

	if !ft.firstFrame {
		if framesInLastUpdate == 0 {
			// Another update before a vsync: it will be shown that much later.
			ft.extraUpdates++
			framesTillNextSync += ft.extraUpdates
		} else {
			ft.extraUpdates = 0
		}

		if framesInLastUpdate > 1 {
			var sum uint64
			for _, n := range ft.previousFrames {
				sum += n
			}
			if avg := sum / frameHistorySize; avg > 1 {
				framesTillNextSync = avg
			}
		}

		ft.previousFrames[ft.writePos] = framesInLastUpdate
		ft.writePos = (ft.writePos + 1) % frameHistorySize
	}

	ft.lastUpdateFrame = ft.lastSyncFrame
	ft.lastSyncAtUpdate = lastSync
	ft.firstFrame = false

	return framePrediction{
		lastFrameDelta: delta,
		lastSync:       lastSync,
		nextSync:       lastSync.Add(ft.minimumInterval * time.Duration(framesTillNextSync)),
	}
}
