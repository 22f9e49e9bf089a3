package engine

import "sync/atomic"

// Revision is a monotonic counter stamped on every committed mutation.
//
// Thread-safety: Revision is safe for concurrent use (atomic operations).
// In practice only Mutate calls Next, while holding the engine mutex.
type Revision struct {
	seq atomic.Int64
}

// NewRevision creates a counter starting at 0.
func NewRevision() *Revision {
	return &Revision{}
}

// NewRevisionAt creates a counter starting at start.
func NewRevisionAt(start int64) *Revision {
	r := &Revision{}
	r.seq.Store(start)
	return r
}

// Next increments the counter and returns the new value.
func (r *Revision) Next() int64 {
	return r.seq.Add(1)
}

// Current returns the last value handed out.
func (r *Revision) Current() int64 {
	return r.seq.Load()
}
