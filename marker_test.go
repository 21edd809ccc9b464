package framez

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMarkerTable(t *testing.T) {
	tests := []struct {
		marker MarkerType
		name   string
		filter MarkerFilter
		kind   MarkerKind
	}{
		{MarkerVSync, "V_SYNC", FilterVSync, KindSingle},
		{MarkerUpdateStart, "UPDATE_START", FilterUpdate, KindStart},
		{MarkerUpdateEnd, "UPDATE_END", FilterUpdate, KindEnd},
		{MarkerRenderStart, "RENDER_START", FilterRender, KindStart},
		{MarkerRenderEnd, "RENDER_END", FilterRender, KindEnd},
		{MarkerSwapStart, "SWAP_START", FilterSwap, KindStart},
		{MarkerSwapEnd, "SWAP_END", FilterSwap, KindEnd},
		{MarkerProcessEventsStart, "PROCESS_EVENT_START", FilterEventProcess, KindStart},
		{MarkerProcessEventsEnd, "PROCESS_EVENT_END", FilterEventProcess, KindEnd},
		{MarkerPaused, "PAUSED", FilterLifecycle, KindSingle},
		{MarkerResume, "RESUMED", FilterLifecycle, KindSingle},
		{MarkerStart, "START", FilterCustom, KindStart},
		{MarkerEnd, "END", FilterCustom, KindEnd},
	}
	assert.Len(t, tests, int(markerTypeCount), "every marker type is covered")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.marker.String())
			assert.Equal(t, tt.filter, tt.marker.Filter())
			assert.Equal(t, tt.kind, tt.marker.Kind())
			assert.NotZero(t, tt.marker.Filter()&FilterAll)
		})
	}
}

func TestMarkerUnknownType(t *testing.T) {
	m := MarkerType(99)
	assert.Equal(t, "UNKNOWN", m.String())
	assert.Zero(t, m.Filter())
	assert.Equal(t, KindSingle, m.Kind())
	assert.Equal(t, "UNKNOWN", MarkerType(-1).String())
}

func TestMarkerFilterEnabled(t *testing.T) {
	m := Marker{Type: MarkerRenderStart}
	assert.True(t, m.IsFilterEnabled(FilterRender))
	assert.True(t, m.IsFilterEnabled(FilterRender|FilterUpdate))
	assert.False(t, m.IsFilterEnabled(FilterUpdate|FilterSwap))
}

func TestFrameTimeStampSub(t *testing.T) {
	base := time.Now()
	a := NewFrameTimeStamp(1, base)
	b := NewFrameTimeStamp(2, base.Add(1500*time.Microsecond))

	assert.Equal(t, uint64(1500), b.Sub(a))
	assert.Equal(t, uint64(0), a.Sub(b), "negative differences clamp to zero")
	assert.Equal(t, uint64(0), a.Sub(a))
	assert.Equal(t, uint64(2), b.Frame)
	assert.True(t, FrameTimeStamp{}.IsZero())
	assert.False(t, a.IsZero())
	assert.Equal(t, base, a.Time())
}
