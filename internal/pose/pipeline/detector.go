// Package pipeline is the composition root for the fall-detection engine.
//
// It wires the per-frame stages (angle extraction at L2, history at L3, cost
// evaluation at L4, the fall decision at L5) into a single synchronous flow.
// None of the stage packages import pipeline/.
package pipeline

import (
	"fmt"
	"sync"

	"github.com/banshee-data/fall.report/internal/config"
	"github.com/banshee-data/fall.report/internal/pose/l1keypoints"
	"github.com/banshee-data/fall.report/internal/pose/l2angles"
	"github.com/banshee-data/fall.report/internal/pose/l3history"
	"github.com/banshee-data/fall.report/internal/pose/l4cost"
	"github.com/banshee-data/fall.report/internal/pose/l5decision"
)

// Result is the per-frame output tuple handed to the caller and to sinks.
type Result struct {
	FrameIndex int64             `json:"frame_index"`
	Sampled    bool              `json:"sampled"`          // false when skipped by the frame subsampler
	Dropped    bool              `json:"dropped"`          // true when too many angles were undefined
	Undefined  int               `json:"undefined_angles"` // undefined entries in this frame's angle set
	Cost       l4cost.Cost       `json:"cost"`             // raw method cost
	Smoothed   l4cost.Cost       `json:"smoothed"`         // cost after the rolling-mean window
	IsFall     bool              `json:"is_fall"`
	State      l5decision.State  `json:"state"`
}

// ResultSink receives every sampled frame's result. Implementations live
// outside the stage packages (e.g. internal/db); errors are logged, not
// propagated, so persistence trouble never stalls the frame loop.
type ResultSink interface {
	RecordResult(r Result) error
}

// Stats counts what the detector has seen since creation.
type Stats struct {
	FramesSeen    int64 `json:"frames_seen"`
	FramesSampled int64 `json:"frames_sampled"`
	FramesDropped int64 `json:"frames_dropped"`
	FallsDetected int64 `json:"falls_detected"`
}

// Detector processes one keypoint stream frame by frame. Each stream owns its
// own Detector: history and fall state are never shared. ProcessFrame is
// serialised internally so callers feeding frames from an HTTP handler and a
// replay loop cannot interleave stage updates.
type Detector struct {
	mu sync.Mutex

	extractor l2angles.Extractor
	history   *l3history.Ring
	evaluator l4cost.Evaluator
	smoother  *l4cost.Smoother
	decider   *l5decision.Decider

	sampleEvery  int
	maxUndefined int

	sink  ResultSink
	stats Stats
}

// NewDetector validates the tuning config and assembles the stage chain.
// This is the fail-fast boundary: a bad method name or non-positive threshold
// is rejected here, before any frame is processed.
func NewDetector(cfg *config.TuningConfig, sink ResultSink) (*Detector, error) {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	method, err := l4cost.ParseMethod(cfg.GetMethod())
	if err != nil {
		return nil, err
	}

	history, err := l3history.NewRing(method.Lookback())
	if err != nil {
		return nil, err
	}

	decider, err := l5decision.NewDecider(cfg.GetThreshold(), cfg.GetCooldownFrames(), cfg.GetSignedThreshold())
	if err != nil {
		return nil, err
	}

	return &Detector{
		extractor:    l2angles.Extractor{MinConfidence: cfg.GetMinConfidence()},
		history:      history,
		evaluator:    l4cost.Evaluator{Method: method, ZeroEps: cfg.GetZeroAngleEpsilon()},
		smoother:     l4cost.NewSmoother(cfg.GetSmoothingWindow()),
		decider:      decider,
		sampleEvery:  cfg.GetSampleEvery(),
		maxUndefined: cfg.GetMaxUndefinedAngles(),
		sink:         sink,
	}, nil
}

// Method returns the active cost method.
func (d *Detector) Method() l4cost.Method { return d.evaluator.Method }

// Threshold returns the active trigger threshold.
func (d *Detector) Threshold() float64 { return d.decider.Threshold() }

// Stats returns a snapshot of the detector counters.
func (d *Detector) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// ProcessFrame runs one frame through extract → evaluate → push → decide.
// The frame must be fully processed before the next one is fed; the internal
// mutex enforces this when callers race.
//
// The cost is evaluated against the history as it stood before this frame,
// then the frame's angle set is pushed, so Previous(1) always means "the
// prior sampled frame".
func (d *Detector) ProcessFrame(f *l1keypoints.Frame) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.FramesSeen++
	res := Result{FrameIndex: f.Index, State: d.decider.State()}

	// Frame subsampling: analyse every Nth source frame.
	if d.sampleEvery > 1 && (d.stats.FramesSeen-1)%int64(d.sampleEvery) != 0 {
		return res
	}
	res.Sampled = true
	d.stats.FramesSampled++

	angles := d.extractor.Extract(f)
	res.Undefined = angles.UndefinedCount()

	// A frame with too little pose data is dropped whole: it neither
	// produces a cost nor enters the history, so the next sampled frame
	// compares against the last usable one.
	if res.Undefined > d.maxUndefined {
		res.Dropped = true
		d.stats.FramesDropped++
		diagf("frame %d dropped: %d/%d angles undefined", f.Index, res.Undefined, l2angles.NumAngles)
		d.record(res)
		return res
	}

	previous, havePrevious := d.history.Previous(1)
	res.Cost = d.evaluator.Evaluate(angles, previous, havePrevious)
	d.history.Push(angles)

	res.Smoothed = d.smoother.Apply(res.Cost)
	res.IsFall, res.State = d.decider.Decide(res.Smoothed)

	if res.IsFall {
		d.stats.FallsDetected++
		opsf("fall detected at frame %d: cost=%.2f threshold=%.2f", f.Index, res.Smoothed.Value, d.decider.Threshold())
	} else if res.Cost.Valid {
		diagf("frame %d: cost=%.2f smoothed=%.2f state=%s", f.Index, res.Cost.Value, res.Smoothed.Value, res.State)
	}

	d.record(res)
	return res
}

// Reset clears history, smoothing and fall state, as at the start of a new
// stream. Configuration is retained.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	capacity := d.history.Capacity()
	d.history, _ = l3history.NewRing(capacity)
	d.smoother.Reset()
	d.decider.Reset()
	d.stats = Stats{}
}

func (d *Detector) record(r Result) {
	if d.sink == nil {
		return
	}
	if err := d.sink.RecordResult(r); err != nil {
		opsf("failed to record frame %d: %v", r.FrameIndex, err)
	}
}

// String describes the detector configuration for startup logging.
func (d *Detector) String() string {
	return fmt.Sprintf("detector(method=%s threshold=%.2f)", d.evaluator.Method, d.decider.Threshold())
}
