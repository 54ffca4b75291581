package pose

import (
	"sync/atomic"

	"github.com/framelink-dev/framelink/pkg/protocol"
)

// Correlator holds the single most recent pose sample. Observe and
// Current may be called concurrently from the pose-receiving path and
// the frame-encoding path; the sample is swapped whole, so readers never
// see a half-written transform.
type Correlator struct {
	current  atomic.Pointer[protocol.PoseSample]
	accepted atomic.Uint64
	rejected atomic.Uint64
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{}
}

// Observe offers a sample. It is accepted only if it is newer than the
// current one (by ID when both carry one, by timestamp otherwise; ties
// rejected). Returns whether the sample was accepted.
func (c *Correlator) Observe(s protocol.PoseSample) bool {
	for {
		cur := c.current.Load()
		if cur != nil && !s.NewerThan(*cur) {
			c.rejected.Add(1)
			return false
		}
		next := s
		if c.current.CompareAndSwap(cur, &next) {
			c.accepted.Add(1)
			return true
		}
		// Lost a race with a concurrent Observe; re-evaluate against
		// the winner.
	}
}

// Current returns the freshest accepted sample, if any.
func (c *Correlator) Current() (protocol.PoseSample, bool) {
	cur := c.current.Load()
	if cur == nil {
		return protocol.PoseSample{}, false
	}
	return *cur, true
}

// Stats returns how many samples were accepted and rejected.
func (c *Correlator) Stats() (accepted, rejected uint64) {
	return c.accepted.Load(), c.rejected.Load()
}
