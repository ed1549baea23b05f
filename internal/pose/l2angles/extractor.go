// Package l2angles converts keypoint frames into fixed-order joint angle sets.
package l2angles

import (
	"math"

	"github.com/banshee-data/fall.report/internal/pose/l1keypoints"
)

// Triple names an anatomical angle: the angle at vertex B between the vectors
// B→A and B→C.
type Triple struct {
	Name string
	A    l1keypoints.Landmark
	B    l1keypoints.Landmark
	C    l1keypoints.Landmark
}

// Triples is the fixed, ordered angle table. Every Set produced by an
// Extractor has exactly one entry per triple, in this order, for the life of
// a run. The table mirrors the joint angles that separate upright posture
// from a fall: shoulder flexion, knees, hips, and two trunk-vs-vertical
// inclinations anchored at the head centroid.
var Triples = []Triple{
	{Name: "right_shoulder_flexion", A: l1keypoints.RightElbow, B: l1keypoints.RightShoulder, C: l1keypoints.RightHip},
	{Name: "left_shoulder_flexion", A: l1keypoints.LeftElbow, B: l1keypoints.LeftShoulder, C: l1keypoints.LeftHip},
	{Name: "right_knee", A: l1keypoints.RightHip, B: l1keypoints.RightKnee, C: l1keypoints.RightAnkle},
	{Name: "left_knee", A: l1keypoints.LeftHip, B: l1keypoints.LeftKnee, C: l1keypoints.LeftAnkle},
	{Name: "right_hip", A: l1keypoints.LeftHip, B: l1keypoints.RightHip, C: l1keypoints.RightKnee},
	{Name: "left_hip", A: l1keypoints.RightHip, B: l1keypoints.LeftHip, C: l1keypoints.LeftKnee},
	{Name: "trunk_vertical", A: l1keypoints.Neck, B: l1keypoints.HeadCenter, C: l1keypoints.PlumbRef},
	{Name: "torso_vertical", A: l1keypoints.Pelvis, B: l1keypoints.HeadCenter, C: l1keypoints.PlumbRef},
}

// NumAngles is the fixed length of every Set.
var NumAngles = len(Triples)

// Angle is one joint angle in degrees. Valid is false when the angle is
// undefined for the frame (missing landmark, low confidence, or degenerate
// geometry). An undefined angle is distinct from a zero angle and must stay
// that way through downstream cost computation.
type Angle struct {
	Deg   float64
	Valid bool
}

// Set is an ordered sequence of angles, one per entry of Triples.
type Set []Angle

// UndefinedCount returns how many entries of the set are undefined.
func (s Set) UndefinedCount() int {
	n := 0
	for _, a := range s {
		if !a.Valid {
			n++
		}
	}
	return n
}

// Extractor computes joint angle sets from keypoint frames. It is a pure
// function of its configuration and the input frame; re-extracting the same
// frame yields the identical set.
type Extractor struct {
	// MinConfidence is the landmark visibility cutoff. Landmarks below it are
	// treated as absent.
	MinConfidence float64
}

// Extract computes the angle for every triple in Triples. Triples whose
// landmarks cannot be resolved produce an invalid Angle; nothing fails.
func (e Extractor) Extract(f *l1keypoints.Frame) Set {
	set := make(Set, NumAngles)
	for i, t := range Triples {
		a, okA := f.ResolvePoint(t.A, e.MinConfidence)
		b, okB := f.ResolvePoint(t.B, e.MinConfidence)
		c, okC := f.ResolvePoint(t.C, e.MinConfidence)
		if !okA || !okB || !okC {
			continue
		}
		if deg, ok := angleAt(a, b, c); ok {
			set[i] = Angle{Deg: deg, Valid: true}
		}
	}
	return set
}

// angleAt returns the angle at vertex b between the vectors b→a and b→c, in
// degrees within [0, 180]. Returns ok=false when either vector has zero
// length (coincident points), which would otherwise divide by zero.
func angleAt(a, b, c l1keypoints.Point) (float64, bool) {
	ux, uy := a.X-b.X, a.Y-b.Y
	vx, vy := c.X-b.X, c.Y-b.Y

	nu := math.Hypot(ux, uy)
	nv := math.Hypot(vx, vy)
	if nu == 0 || nv == 0 {
		return 0, false
	}

	cos := (ux*vx + uy*vy) / (nu * nv)
	// Clamp against float rounding before arccos.
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi, true
}
