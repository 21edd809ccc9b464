package framez

// Sink receives pipeline telemetry.
//
// OnMarker is called synchronously on the thread that recorded the marker,
// so implementations must be fast and must not call back into the
// Controller. OnStats is called with each periodic statistics report.
type Sink interface {
	OnMarker(m Marker)
	OnStats(s StageStats)
}

// maxSinks bounds sink registration; every marker is fanned out to each sink.
const maxSinks = 16

// Subscription is a handle to a registered Sink.
//
// Thread Safety:
// Unsubscribe is safe for concurrent use with marker delivery. Each handle
// should only be used once; a second Unsubscribe returns
// ErrAlreadyUnsubscribed.
//
// Example:
//
//	sub, err := ctrl.AddSink(telemetry.NewCBORSink(file))
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe()
type Subscription struct {
	// unsubscribe removes the sink. Cleared after the first call.
	unsubscribe func() error
}

// Unsubscribe stops delivery to the sink. Markers already being delivered
// on another thread may still arrive once.
//
// Returns:
//   - nil: sink removed
//   - ErrAlreadyUnsubscribed: handle already used or zero value
//   - ErrSubscriptionNotFound: sink no longer registered
func (s *Subscription) Unsubscribe() error {
	if s.unsubscribe == nil {
		return ErrAlreadyUnsubscribed
	}
	err := s.unsubscribe()
	s.unsubscribe = nil
	return err
}
