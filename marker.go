package framez

import "time"

// FrameTimeStamp is a monotonic instant captured by a pipeline thread,
// tagged with the vsync tick it was taken at. It is immutable.
type FrameTimeStamp struct {
	Frame uint64 // vsync tick count when captured
	t     time.Time
}

// NewFrameTimeStamp captures t for the given vsync tick.
func NewFrameTimeStamp(frame uint64, t time.Time) FrameTimeStamp {
	return FrameTimeStamp{Frame: frame, t: t}
}

// Time returns the wall-clock reading of the stamp.
func (s FrameTimeStamp) Time() time.Time { return s.t }

// IsZero reports whether the stamp was never set.
func (s FrameTimeStamp) IsZero() bool { return s.t.IsZero() }

// Sub returns the microseconds elapsed from earlier to s.
// The result is 0 when s is not after earlier.
func (s FrameTimeStamp) Sub(earlier FrameTimeStamp) uint64 {
	d := s.t.Sub(earlier.t)
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Microsecond)
}

// MarkerType identifies a pipeline event.
type MarkerType int

const (
	MarkerVSync MarkerType = iota
	MarkerUpdateStart
	MarkerUpdateEnd
	MarkerRenderStart
	MarkerRenderEnd
	MarkerSwapStart
	MarkerSwapEnd
	MarkerProcessEventsStart
	MarkerProcessEventsEnd
	MarkerPaused
	MarkerResume
	MarkerStart // custom context start
	MarkerEnd   // custom context end

	markerTypeCount
)

// MarkerKind says whether a marker stands alone or opens or closes a timed pair.
type MarkerKind int

const (
	KindSingle MarkerKind = iota
	KindStart
	KindEnd
)

// MarkerFilter is the bitmask group a marker belongs to. Statistic
// contexts select the markers they time by filter.
type MarkerFilter uint32

const (
	FilterVSync MarkerFilter = 1 << iota
	FilterUpdate
	FilterRender
	FilterSwap
	FilterEventProcess
	FilterLifecycle
	FilterCustom

	FilterAll MarkerFilter = 1<<iota - 1
)

type markerInfo struct {
	name   string
	filter MarkerFilter
	kind   MarkerKind
}

var markerTable = [...]markerInfo{
	MarkerVSync:              {"V_SYNC", FilterVSync, KindSingle},
	MarkerUpdateStart:        {"UPDATE_START", FilterUpdate, KindStart},
	MarkerUpdateEnd:          {"UPDATE_END", FilterUpdate, KindEnd},
	MarkerRenderStart:        {"RENDER_START", FilterRender, KindStart},
	MarkerRenderEnd:          {"RENDER_END", FilterRender, KindEnd},
	MarkerSwapStart:          {"SWAP_START", FilterSwap, KindStart},
	MarkerSwapEnd:            {"SWAP_END", FilterSwap, KindEnd},
	MarkerProcessEventsStart: {"PROCESS_EVENT_START", FilterEventProcess, KindStart},
	MarkerProcessEventsEnd:   {"PROCESS_EVENT_END", FilterEventProcess, KindEnd},
	MarkerPaused:             {"PAUSED", FilterLifecycle, KindSingle},
	MarkerResume:             {"RESUMED", FilterLifecycle, KindSingle},
	MarkerStart:              {"START", FilterCustom, KindStart},
	MarkerEnd:                {"END", FilterCustom, KindEnd},
}

// Compile-time check: the table has exactly one entry per MarkerType.
var _ = [1]struct{}{}[len(markerTable)-int(markerTypeCount)]

// String returns the stable marker name used in logs and traces.
func (m MarkerType) String() string {
	if !m.valid() {
		return "UNKNOWN"
	}
	return markerTable[m].name
}

// Filter returns the group the marker belongs to.
func (m MarkerType) Filter() MarkerFilter {
	if !m.valid() {
		return 0
	}
	return markerTable[m].filter
}

// Kind returns whether the marker is single, a start or an end.
func (m MarkerType) Kind() MarkerKind {
	if !m.valid() {
		return KindSingle
	}
	return markerTable[m].kind
}

func (m MarkerType) valid() bool {
	return m >= 0 && m < markerTypeCount
}

// Marker is a timestamped pipeline event. Markers are created at the
// instant the event happens and handed to statistic contexts and sinks.
type Marker struct {
	Type    MarkerType
	Stamp   FrameTimeStamp
	Frame   uint64    // update cycle number, 0 outside a cycle
	Surface uint64    // surface generation for render markers
	Context ContextID // target context for MarkerStart/MarkerEnd
}

// IsFilterEnabled reports whether the marker's group is in mask.
func (m Marker) IsFilterEnabled(mask MarkerFilter) bool {
	return m.Type.Filter()&mask != 0
}
