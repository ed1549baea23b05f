// Package l1keypoints defines the body landmark model and per-frame keypoint
// containers that feed the fall-detection pipeline. The pose model itself is
// external; this package only describes its output.
package l1keypoints

import (
	"fmt"
	"time"
)

// Landmark identifies one anatomical reference point. The first NumRawLandmarks
// values follow the COCO-17 ordering emitted by common pose estimators; the
// remaining values are derived points computed from the raw set.
type Landmark int

const (
	Nose Landmark = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	// Derived landmarks. Not present in raw frames; resolved on demand from
	// the raw set by ResolvePoint.
	Neck       // midpoint of the two shoulders
	Pelvis     // midpoint of the two hips
	HeadCenter // centroid of the five face landmarks
	PlumbRef   // point directly below HeadCenter (image +Y), vertical reference

	numLandmarks
)

// NumRawLandmarks is the count of landmarks a pose model reports per frame.
const NumRawLandmarks = int(Neck)

// plumbDropPixels is the image-space offset used to construct PlumbRef below
// the head centroid. Only the direction matters for angle computation.
const plumbDropPixels = 100.0

var landmarkNames = map[Landmark]string{
	Nose:          "nose",
	LeftEye:       "left_eye",
	RightEye:      "right_eye",
	LeftEar:       "left_ear",
	RightEar:      "right_ear",
	LeftShoulder:  "left_shoulder",
	RightShoulder: "right_shoulder",
	LeftElbow:     "left_elbow",
	RightElbow:    "right_elbow",
	LeftWrist:     "left_wrist",
	RightWrist:    "right_wrist",
	LeftHip:       "left_hip",
	RightHip:      "right_hip",
	LeftKnee:      "left_knee",
	RightKnee:     "right_knee",
	LeftAnkle:     "left_ankle",
	RightAnkle:    "right_ankle",
	Neck:          "neck",
	Pelvis:        "pelvis",
	HeadCenter:    "head_center",
	PlumbRef:      "plumb_ref",
}

// String returns the snake_case name of the landmark.
func (l Landmark) String() string {
	if name, ok := landmarkNames[l]; ok {
		return name
	}
	return fmt.Sprintf("landmark(%d)", int(l))
}

// IsDerived reports whether the landmark is computed rather than detected.
func (l Landmark) IsDerived() bool {
	return l >= Neck && l < numLandmarks
}

// Point is a 2D image-space coordinate. Y grows downward (image convention).
type Point struct {
	X float64
	Y float64
}

// Keypoint is one detected landmark: a coordinate plus the model's confidence.
// Present is false when the model could not locate the landmark at all.
type Keypoint struct {
	Point      Point
	Confidence float64
	Present    bool
}

// Frame holds one video frame's worth of detected keypoints. Frames are
// immutable after construction and owned by the pipeline for one iteration.
type Frame struct {
	Index     int64
	Timestamp time.Time

	points [NumRawLandmarks]Keypoint
}

// NewFrame builds a Frame from a dense keypoint slice in COCO-17 order.
// Entries with negative coordinates are treated as absent, matching the
// convention pose models use for undetected landmarks.
func NewFrame(index int64, ts time.Time, keypoints []Keypoint) (*Frame, error) {
	if len(keypoints) != NumRawLandmarks {
		return nil, fmt.Errorf("frame %d: expected %d keypoints, got %d", index, NumRawLandmarks, len(keypoints))
	}
	f := &Frame{Index: index, Timestamp: ts}
	for i, kp := range keypoints {
		if kp.Point.X < 0 || kp.Point.Y < 0 {
			kp.Present = false
		}
		f.points[i] = kp
	}
	return f, nil
}

// Keypoint returns the detected keypoint for a raw landmark. Derived
// landmarks always report absent here; use ResolvePoint for those.
func (f *Frame) Keypoint(l Landmark) Keypoint {
	if l < 0 || int(l) >= NumRawLandmarks {
		return Keypoint{}
	}
	return f.points[l]
}

// ResolvePoint returns the image coordinate for any landmark, raw or derived,
// applying the confidence cutoff to raw detections. The second return value
// is false when the landmark is absent, below minConfidence, or (for derived
// landmarks) cannot be computed from its constituents.
func (f *Frame) ResolvePoint(l Landmark, minConfidence float64) (Point, bool) {
	switch l {
	case Neck:
		return f.midpoint(LeftShoulder, RightShoulder, minConfidence)
	case Pelvis:
		return f.midpoint(LeftHip, RightHip, minConfidence)
	case HeadCenter:
		return f.headCentroid(minConfidence)
	case PlumbRef:
		head, ok := f.headCentroid(minConfidence)
		if !ok {
			return Point{}, false
		}
		return Point{X: head.X, Y: head.Y + plumbDropPixels}, true
	}
	kp := f.Keypoint(l)
	if !kp.Present || kp.Confidence < minConfidence {
		return Point{}, false
	}
	return kp.Point, true
}

func (f *Frame) midpoint(a, b Landmark, minConfidence float64) (Point, bool) {
	pa, okA := f.ResolvePoint(a, minConfidence)
	pb, okB := f.ResolvePoint(b, minConfidence)
	if !okA || !okB {
		return Point{}, false
	}
	return Point{X: (pa.X + pb.X) / 2, Y: (pa.Y + pb.Y) / 2}, true
}

// headCentroid averages whichever of the five face landmarks pass the
// confidence cutoff. At least one must be usable.
func (f *Frame) headCentroid(minConfidence float64) (Point, bool) {
	var sum Point
	n := 0
	for l := Nose; l <= RightEar; l++ {
		p, ok := f.ResolvePoint(l, minConfidence)
		if !ok {
			continue
		}
		sum.X += p.X
		sum.Y += p.Y
		n++
	}
	if n == 0 {
		return Point{}, false
	}
	return Point{X: sum.X / float64(n), Y: sum.Y / float64(n)}, true
}
