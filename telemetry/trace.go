// Package telemetry provides framez.Sink implementations that take
// pipeline markers and statistics out of the process: a CBOR trace
// stream for offline analysis and a Prometheus collector for live
// scraping.
package telemetry

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/zoobzio/framez"
)

// RecordKind tells the three trace record shapes apart.
type RecordKind uint8

const (
	KindHeader RecordKind = iota + 1
	KindMarker
	KindStats
)

func (k RecordKind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindMarker:
		return "marker"
	case KindStats:
		return "stats"
	default:
		return "unknown"
	}
}

// Record is one item of a trace. A trace is a CBOR sequence: a header
// followed by markers and periodic stats in the order they happened.
type Record struct {
	Kind RecordKind `cbor:"1,keyasint"`

	// Header
	Pipeline string    `cbor:"2,keyasint,omitempty"`
	Started  time.Time `cbor:"3,keyasint,omitempty"`

	// Marker
	Marker  string `cbor:"4,keyasint,omitempty"`
	Frame   uint64 `cbor:"5,keyasint,omitempty"`
	VSync   uint64 `cbor:"6,keyasint,omitempty"`
	Surface uint64 `cbor:"7,keyasint,omitempty"`
	Context uint32 `cbor:"8,keyasint,omitempty"`
	// Microseconds since Started.
	Offset int64 `cbor:"9,keyasint,omitempty"`

	// Stats
	Stage  string  `cbor:"10,keyasint,omitempty"`
	Count  uint64  `cbor:"11,keyasint,omitempty"`
	Min    float64 `cbor:"12,keyasint,omitempty"`
	Max    float64 `cbor:"13,keyasint,omitempty"`
	Mean   float64 `cbor:"14,keyasint,omitempty"`
	StdDev float64 `cbor:"15,keyasint,omitempty"`
}

// TraceWriter is a framez.Sink that streams records to w.
//
// Sink callbacks cannot fail, so the first write error is kept and later
// records are dropped. Check Err when the pipeline has stopped.
type TraceWriter struct {
	mu      sync.Mutex
	enc     *cbor.Encoder
	started time.Time
	records uint64
	err     error
}

var _ framez.Sink = (*TraceWriter)(nil)

// traceEncMode keeps nanosecond precision on the header time.
var traceEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// NewTraceWriter writes the trace header for pipeline and returns the sink.
func NewTraceWriter(w io.Writer, pipeline string, started time.Time) (*TraceWriter, error) {
	t := &TraceWriter{enc: traceEncMode.NewEncoder(w), started: started}
	if err := t.enc.Encode(Record{Kind: KindHeader, Pipeline: pipeline, Started: started}); err != nil {
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	return t, nil
}

// OnMarker implements framez.Sink.
func (t *TraceWriter) OnMarker(m framez.Marker) {
	t.write(Record{
		Kind:    KindMarker,
		Marker:  m.Type.String(),
		Frame:   m.Frame,
		VSync:   m.Stamp.Frame,
		Surface: m.Surface,
		Context: uint32(m.Context),
		Offset:  m.Stamp.Time().Sub(t.started).Microseconds(),
	})
}

// OnStats implements framez.Sink.
func (t *TraceWriter) OnStats(s framez.StageStats) {
	t.write(Record{
		Kind:    KindStats,
		Stage:   s.Name,
		Context: uint32(s.Context),
		Count:   s.Count,
		Min:     s.Min,
		Max:     s.Max,
		Mean:    s.Mean,
		StdDev:  s.StdDev,
	})
}

func (t *TraceWriter) write(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	if err := t.enc.Encode(r); err != nil {
		t.err = fmt.Errorf("write trace record %d: %w", t.records+1, err)
		return
	}
	t.records++
}

// Records returns the number of records written after the header.
func (t *TraceWriter) Records() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.records
}

// Err returns the first write error.
func (t *TraceWriter) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// ErrNoHeader is returned by ReadTrace when the stream does not start
// with a header record.
var ErrNoHeader = errors.New("trace has no header")

// ReadTrace decodes a trace written by TraceWriter and calls fn for the
// header and every following record, stopping at the first error fn
// returns.
func ReadTrace(r io.Reader, fn func(Record) error) error {
	dec := cbor.NewDecoder(r)
	for n := 0; ; n++ {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				if n == 0 {
					return ErrNoHeader
				}
				return nil
			}
			return fmt.Errorf("decode trace record %d: %w", n, err)
		}
		if n == 0 && rec.Kind != KindHeader {
			return ErrNoHeader
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
