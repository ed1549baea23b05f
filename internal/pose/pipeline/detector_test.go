package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/banshee-data/fall.report/internal/config"
	"github.com/banshee-data/fall.report/internal/pose/l1keypoints"
)

func strPtr(v string) *string    { return &v }
func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int          { return &v }

// testConfig returns a config that samples every frame with smoothing off, so
// each test frame maps directly to one cost.
func testConfig(method string, threshold float64, cooldown int) *config.TuningConfig {
	return &config.TuningConfig{
		Method:          strPtr(method),
		Threshold:       floatPtr(threshold),
		CooldownFrames:  intPtr(cooldown),
		SampleEvery:     intPtr(1),
		SmoothingWindow: intPtr(0),
	}
}

// standingKeypoints is an upright figure in image coordinates (Y down): head
// above shoulders above hips above ankles, limbs near-vertical.
func standingKeypoints() []l1keypoints.Keypoint {
	coords := [][2]float64{
		{100, 40},  // nose
		{95, 38},   // left_eye
		{105, 38},  // right_eye
		{92, 42},   // left_ear
		{108, 42},  // right_ear
		{80, 100},  // left_shoulder
		{120, 100}, // right_shoulder
		{78, 140},  // left_elbow
		{122, 140}, // right_elbow
		{77, 180},  // left_wrist
		{123, 180}, // right_wrist
		{85, 200},  // left_hip
		{115, 200}, // right_hip
		{85, 260},  // left_knee
		{115, 260}, // right_knee
		{85, 320},  // left_ankle
		{115, 320}, // right_ankle
	}
	kps := make([]l1keypoints.Keypoint, len(coords))
	for i, c := range coords {
		kps[i] = l1keypoints.Keypoint{
			Point:      l1keypoints.Point{X: c[0], Y: c[1]},
			Confidence: 0.9,
			Present:    true,
		}
	}
	return kps
}

// lyingKeypoints is the standing figure with X and Y swapped: the body axis
// is horizontal, so only the two trunk-vs-vertical angles change (0 to 90
// degrees each) while every joint angle is preserved.
func lyingKeypoints() []l1keypoints.Keypoint {
	kps := standingKeypoints()
	for i := range kps {
		kps[i].Point.X, kps[i].Point.Y = kps[i].Point.Y, kps[i].Point.X
	}
	return kps
}

func mustFrame(t *testing.T, index int64, kps []l1keypoints.Keypoint) *l1keypoints.Frame {
	t.Helper()
	f, err := l1keypoints.NewFrame(index, time.Unix(0, index*int64(time.Second/30)), kps)
	if err != nil {
		t.Fatalf("NewFrame(%d): %v", index, err)
	}
	return f
}

type captureSink struct {
	results []Result
	err     error
}

func (s *captureSink) RecordResult(r Result) error {
	s.results = append(s.results, r)
	return s.err
}

func TestNewDetectorRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  *config.TuningConfig
	}{
		{"unknown method", testConfig("Banana", 50, 0)},
		{"zero threshold", testConfig("DifferenceSum", 0, 0)},
		{"negative threshold", testConfig("DifferenceSum", -10, 0)},
		{"negative cooldown", testConfig("DifferenceSum", 50, -1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewDetector(tc.cfg, nil); err == nil {
				t.Errorf("NewDetector accepted %s", tc.name)
			}
		})
	}
}

func TestNewDetectorNilConfigUsesDefaults(t *testing.T) {
	d, err := NewDetector(nil, nil)
	if err != nil {
		t.Fatalf("NewDetector(nil): %v", err)
	}
	if got := d.Method().String(); got != "DifferenceMean" {
		t.Errorf("default method = %s, want DifferenceMean", got)
	}
}

func TestIdenticalFramesProduceZeroCost(t *testing.T) {
	d, err := NewDetector(testConfig("DifferenceSum", 55, 0), nil)
	if err != nil {
		t.Fatal(err)
	}

	r1 := d.ProcessFrame(mustFrame(t, 1, standingKeypoints()))
	if r1.Cost.Valid {
		t.Errorf("frame 1 cost should be unavailable before any history, got %v", r1.Cost)
	}
	if r1.IsFall {
		t.Error("frame 1 triggered a fall with no cost")
	}

	r2 := d.ProcessFrame(mustFrame(t, 2, standingKeypoints()))
	if !r2.Cost.Valid {
		t.Fatal("frame 2 cost should be available")
	}
	if r2.Cost.Value > 1e-9 {
		t.Errorf("identical frames cost = %v, want 0", r2.Cost.Value)
	}
	if r2.IsFall {
		t.Error("identical frames triggered a fall")
	}
}

func TestCollapseTriggersFall(t *testing.T) {
	sink := &captureSink{}
	d, err := NewDetector(testConfig("DifferenceSum", 55, 2), sink)
	if err != nil {
		t.Fatal(err)
	}

	d.ProcessFrame(mustFrame(t, 1, standingKeypoints()))
	d.ProcessFrame(mustFrame(t, 2, standingKeypoints()))

	// The two vertical-reference angles swing from 0 to 90 degrees each,
	// so the absolute difference sum is about 180.
	r3 := d.ProcessFrame(mustFrame(t, 3, lyingKeypoints()))
	if !r3.Cost.Valid {
		t.Fatal("collapse frame has no cost")
	}
	if r3.Cost.Value < 170 || r3.Cost.Value > 190 {
		t.Errorf("collapse cost = %v, want about 180", r3.Cost.Value)
	}
	if !r3.IsFall {
		t.Error("collapse did not trigger a fall")
	}
	if r3.State != "Falling" {
		t.Errorf("state after fall = %s, want Falling", r3.State)
	}

	// Standing back up is the same swing in reverse; the cooldown must
	// suppress the re-trigger even though the cost exceeds the threshold.
	r4 := d.ProcessFrame(mustFrame(t, 4, standingKeypoints()))
	if r4.IsFall {
		t.Error("cooldown did not suppress the re-trigger")
	}

	stats := d.Stats()
	if stats.FallsDetected != 1 {
		t.Errorf("FallsDetected = %d, want 1", stats.FallsDetected)
	}
	if len(sink.results) != 4 {
		t.Errorf("sink received %d results, want 4", len(sink.results))
	}
}

func TestMeanMethodCostsFromFirstFrame(t *testing.T) {
	d, err := NewDetector(testConfig("Mean", 37, 0), nil)
	if err != nil {
		t.Fatal(err)
	}
	r := d.ProcessFrame(mustFrame(t, 1, standingKeypoints()))
	if !r.Cost.Valid {
		t.Fatal("Mean should produce a cost on the first frame")
	}
	if r.Cost.Value <= 0 {
		t.Errorf("Mean cost = %v, want > 0", r.Cost.Value)
	}
}

func TestSubsampling(t *testing.T) {
	cfg := testConfig("DifferenceSum", 55, 0)
	cfg.SampleEvery = intPtr(3)
	d, err := NewDetector(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	var sampled []int64
	for i := int64(1); i <= 7; i++ {
		r := d.ProcessFrame(mustFrame(t, i, standingKeypoints()))
		if r.Sampled {
			sampled = append(sampled, i)
		}
	}
	want := []int64{1, 4, 7}
	if len(sampled) != len(want) {
		t.Fatalf("sampled frames %v, want %v", sampled, want)
	}
	for i := range want {
		if sampled[i] != want[i] {
			t.Fatalf("sampled frames %v, want %v", sampled, want)
		}
	}

	stats := d.Stats()
	if stats.FramesSeen != 7 || stats.FramesSampled != 3 {
		t.Errorf("stats = %+v, want 7 seen / 3 sampled", stats)
	}
}

func TestDegradedFrameDropped(t *testing.T) {
	d, err := NewDetector(testConfig("DifferenceSum", 55, 0), nil)
	if err != nil {
		t.Fatal(err)
	}

	d.ProcessFrame(mustFrame(t, 1, standingKeypoints()))

	empty := make([]l1keypoints.Keypoint, l1keypoints.NumRawLandmarks)
	r2 := d.ProcessFrame(mustFrame(t, 2, empty))
	if !r2.Dropped {
		t.Fatal("frame with no detections was not dropped")
	}
	if r2.Cost.Valid {
		t.Error("dropped frame produced a cost")
	}

	// The dropped frame never entered the history, so frame 3 compares
	// against frame 1.
	r3 := d.ProcessFrame(mustFrame(t, 3, standingKeypoints()))
	if !r3.Cost.Valid {
		t.Fatal("frame after a drop should compare against the last usable frame")
	}
	if r3.Cost.Value > 1e-9 {
		t.Errorf("cost across a dropped frame = %v, want 0", r3.Cost.Value)
	}

	if stats := d.Stats(); stats.FramesDropped != 1 {
		t.Errorf("FramesDropped = %d, want 1", stats.FramesDropped)
	}
}

func TestSinkErrorDoesNotStallProcessing(t *testing.T) {
	sink := &captureSink{err: errors.New("disk full")}
	d, err := NewDetector(testConfig("DifferenceSum", 55, 0), sink)
	if err != nil {
		t.Fatal(err)
	}
	d.ProcessFrame(mustFrame(t, 1, standingKeypoints()))
	r2 := d.ProcessFrame(mustFrame(t, 2, standingKeypoints()))
	if !r2.Cost.Valid {
		t.Error("processing stopped after a sink error")
	}
}

func TestDetectorReset(t *testing.T) {
	d, err := NewDetector(testConfig("DifferenceSum", 55, 5), nil)
	if err != nil {
		t.Fatal(err)
	}
	d.ProcessFrame(mustFrame(t, 1, standingKeypoints()))
	d.ProcessFrame(mustFrame(t, 2, lyingKeypoints()))
	if d.Stats().FallsDetected != 1 {
		t.Fatal("setup did not produce a fall")
	}

	d.Reset()

	if stats := d.Stats(); stats != (Stats{}) {
		t.Errorf("stats after Reset = %+v, want zero", stats)
	}
	r := d.ProcessFrame(mustFrame(t, 10, standingKeypoints()))
	if r.Cost.Valid {
		t.Error("history survived Reset")
	}
	if r.State != "Normal" {
		t.Errorf("state after Reset = %s, want Normal", r.State)
	}
}
