package framez

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

func TestFPSTrackerLogsPerWindow(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	clock := clockz.NewFakeClock()
	f := newFPSTracker(clock, logger, time.Second)

	for i := 0; i < 9; i++ {
		clock.Advance(100 * time.Millisecond)
		f.track(100 * time.Millisecond)
	}
	assert.Zero(t, buf.Len(), "window not elapsed")

	clock.Advance(100 * time.Millisecond)
	f.track(100 * time.Millisecond)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "fps", rec["msg"])
	assert.InDelta(t, 10.0, rec["fps"], 1e-9)
	assert.InDelta(t, 10.0, rec["frames"], 0)
	assert.InDelta(t, 100.0, rec["avg_delta_ms"], 1e-9)

	buf.Reset()
	clock.Advance(100 * time.Millisecond)
	f.track(100 * time.Millisecond)
	assert.Zero(t, buf.Len(), "counters reset after a report")
}
