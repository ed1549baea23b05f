// Package l3history provides the bounded angle-set history consumed by
// lookback cost methods.
package l3history

import (
	"fmt"

	"github.com/banshee-data/fall.report/internal/pose/l2angles"
)

// Ring is a fixed-capacity FIFO of past angle sets. Pushing beyond capacity
// evicts the oldest entry. A Ring is owned by exactly one stream and is not
// safe for concurrent use, matching the pipeline's frame-sequential model.
type Ring struct {
	buf  []l2angles.Set
	head int // index of the most recent entry
	size int
}

// NewRing returns a ring holding up to capacity angle sets. Capacity zero is
// legal: methods with no lookback never read history, and Push becomes a
// no-op so the ring never retains more than the active method requires.
func NewRing(capacity int) (*Ring, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("history capacity must be >= 0, got %d", capacity)
	}
	return &Ring{buf: make([]l2angles.Set, capacity), head: -1}, nil
}

// Capacity returns the maximum number of entries the ring retains.
func (r *Ring) Capacity() int { return len(r.buf) }

// Len returns the number of entries currently held.
func (r *Ring) Len() int { return r.size }

// Push appends the angle set for the just-processed frame, evicting the
// oldest entry once the ring is full.
func (r *Ring) Push(s l2angles.Set) {
	if len(r.buf) == 0 {
		return
	}
	r.head = (r.head + 1) % len(r.buf)
	r.buf[r.head] = s
	if r.size < len(r.buf) {
		r.size++
	}
}

// Previous returns the angle set from k frames back (k=1 is the most recently
// pushed). The second return value is false when fewer than k frames have
// been pushed, which is expected at stream start and not an error.
func (r *Ring) Previous(k int) (l2angles.Set, bool) {
	if k < 1 || k > r.size {
		return nil, false
	}
	idx := (r.head - (k - 1) + len(r.buf)) % len(r.buf)
	return r.buf[idx], true
}
