package l4cost

// Smoother maintains a rolling mean over the last Window valid costs. It
// damps single-frame spikes before the cost reaches the fall decider; until
// the window has filled, the raw cost passes through unchanged. Invalid costs
// are returned as-is and do not enter the window, so "no data" frames never
// dilute the mean.
type Smoother struct {
	window []float64
	size   int
	head   int
	sum    float64
}

// NewSmoother returns a smoother over the given window size. Size 0 disables
// smoothing entirely (Apply returns its input).
func NewSmoother(size int) *Smoother {
	if size <= 0 {
		return &Smoother{}
	}
	return &Smoother{window: make([]float64, size)}
}

// Apply feeds one cost through the smoother and returns the cost the decider
// should see.
func (s *Smoother) Apply(c Cost) Cost {
	if len(s.window) == 0 || !c.Valid {
		return c
	}

	s.head = (s.head + 1) % len(s.window)
	if s.size == len(s.window) {
		s.sum -= s.window[s.head]
	} else {
		s.size++
	}
	s.window[s.head] = c.Value
	s.sum += c.Value

	if s.size < len(s.window) {
		return c
	}
	return Cost{Value: s.sum / float64(s.size), Valid: true}
}

// Reset clears the window, as at the start of a new stream.
func (s *Smoother) Reset() {
	s.size = 0
	s.head = 0
	s.sum = 0
	for i := range s.window {
		s.window[i] = 0
	}
}
