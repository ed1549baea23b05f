// Package l5decision turns per-frame costs into fall/no-fall decisions with
// cooldown hysteresis.
package l5decision

import (
	"fmt"

	"github.com/banshee-data/fall.report/internal/pose/l4cost"
)

// State is the lifecycle state of one tracked subject.
type State string

const (
	StateNormal  State = "Normal"  // no fall in progress
	StateFalling State = "Falling" // threshold crossed, cooldown may be active
)

// Decider compares costs against a threshold and evolves the fall state
// across frames. One decider serves exactly one stream; state is in-memory
// only and resets with the process.
type Decider struct {
	threshold float64
	cooldown  int // configured cooldown length in frames
	signed    bool

	state     State
	remaining int // cooldown frames left before a re-trigger is allowed
}

// NewDecider validates the decision configuration and returns a decider in
// the Normal state. A non-positive threshold is the fail-fast configuration
// error; every per-frame anomaly after this point degrades gracefully.
//
// When signed is false the comparison uses |cost|, which suits the
// difference-family methods where a fall shows up as a large magnitude of
// either sign. Signed comparison is for methods whose scale is one-sided.
func NewDecider(threshold float64, cooldownFrames int, signed bool) (*Decider, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive, got %v", threshold)
	}
	if cooldownFrames < 0 {
		return nil, fmt.Errorf("cooldown frames must be >= 0, got %d", cooldownFrames)
	}
	return &Decider{
		threshold: threshold,
		cooldown:  cooldownFrames,
		signed:    signed,
		state:     StateNormal,
	}, nil
}

// State returns the current fall state.
func (d *Decider) State() State { return d.state }

// Threshold returns the configured trigger threshold.
func (d *Decider) Threshold() float64 { return d.threshold }

// Decide consumes one frame's cost. It reports isFall=true only on the frame
// where the threshold is crossed (the triggering edge); while Falling, the
// cooldown window suppresses re-triggers until it elapses, and dropping back
// below the threshold returns the state to Normal. An invalid cost produces
// no decision and leaves the state untouched.
func (d *Decider) Decide(c l4cost.Cost) (bool, State) {
	if !c.Valid {
		return false, d.state
	}

	mag := c.Value
	if !d.signed && mag < 0 {
		mag = -mag
	}

	switch d.state {
	case StateFalling:
		if mag <= d.threshold {
			d.state = StateNormal
			d.remaining = 0
			return false, d.state
		}
		if d.remaining > 0 {
			d.remaining--
			return false, d.state
		}
		// Sustained exceedance past the cooldown window counts as a fresh trigger.
		d.remaining = d.cooldown
		return true, d.state
	default:
		if mag > d.threshold {
			d.state = StateFalling
			d.remaining = d.cooldown
			return true, d.state
		}
		return false, d.state
	}
}

// Reset returns the decider to the Normal state, as at stream start.
func (d *Decider) Reset() {
	d.state = StateNormal
	d.remaining = 0
}
