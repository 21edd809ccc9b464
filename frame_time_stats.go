package framez

import "math"

const (
	microsecondsToSeconds = 1e-6
	initialSampleCapacity = 16
)

type timeState int

const (
	waitingForStart timeState = iota
	waitingForEnd
)

// FrameTimeStats accumulates durations between paired StartTime and
// EndTime calls for one pipeline stage.
//
// Calls must alternate. Two starts in a row, or an end without a start,
// drop the pending pair and return the state machine to waiting for a
// start; the accumulated samples are kept.
//
// Durations are stored in microseconds and reported in seconds.
// FrameTimeStats is not safe for concurrent use.
type FrameTimeStats struct {
	samples  []uint64
	min      uint64
	max      uint64
	total    uint64
	runCount uint64
	start    FrameTimeStamp
	state    timeState
}

// NewFrameTimeStats returns an empty accumulator.
func NewFrameTimeStats() *FrameTimeStats {
	return &FrameTimeStats{samples: make([]uint64, 0, initialSampleCapacity)}
}

// StartTime opens a timed pair.
func (s *FrameTimeStats) StartTime(ts FrameTimeStamp) {
	if s.state != waitingForStart {
		s.state = waitingForStart
		return
	}
	s.start = ts
	s.state = waitingForEnd
}

// EndTime closes the open pair and records its duration.
func (s *FrameTimeStats) EndTime(ts FrameTimeStamp) {
	if s.state != waitingForEnd {
		s.state = waitingForStart
		return
	}
	s.state = waitingForStart

	elapsed := ts.Sub(s.start)
	if s.runCount == 0 {
		s.min, s.max = elapsed, elapsed
	} else {
		s.min = min(s.min, elapsed)
		s.max = max(s.max, elapsed)
	}
	s.runCount++
	s.total += elapsed
	s.samples = append(s.samples, elapsed)
}

// Reset discards every sample and the pending start.
func (s *FrameTimeStats) Reset() {
	s.samples = s.samples[:0]
	s.min, s.max, s.total, s.runCount = 0, 0, 0, 0
	s.start = FrameTimeStamp{}
	s.state = waitingForStart
}

// MinTime returns the shortest recorded duration in seconds.
func (s *FrameTimeStats) MinTime() float64 { return float64(s.min) * microsecondsToSeconds }

// MaxTime returns the longest recorded duration in seconds.
func (s *FrameTimeStats) MaxTime() float64 { return float64(s.max) * microsecondsToSeconds }

// TotalTime returns the sum of recorded durations in seconds.
func (s *FrameTimeStats) TotalTime() float64 { return float64(s.total) * microsecondsToSeconds }

// RunCount returns the number of complete pairs recorded.
func (s *FrameTimeStats) RunCount() uint64 { return s.runCount }

// CalculateMean returns the mean and population standard deviation of
// the recorded durations in seconds. Both are 0 without samples.
func (s *FrameTimeStats) CalculateMean() (mean, stddev float64) {
	if len(s.samples) == 0 {
		return 0, 0
	}
	n := float64(len(s.samples))

	var sum float64
	for _, v := range s.samples {
		sum += float64(v)
	}
	mean = sum / n

	var sq float64
	for _, v := range s.samples {
		d := float64(v) - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / n)

	return mean * microsecondsToSeconds, stddev * microsecondsToSeconds
}
