package l4cost

import (
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/fall.report/internal/pose/l2angles"
)

func valid(degs ...float64) l2angles.Set {
	s := make(l2angles.Set, len(degs))
	for i, d := range degs {
		s[i] = l2angles.Angle{Deg: d, Valid: true}
	}
	return s
}

func TestParseMethod(t *testing.T) {
	for _, name := range []string{"Division", "MeanDifference", "DifferenceMean", "DifferenceSum", "Mean"} {
		m, err := ParseMethod(name)
		if err != nil {
			t.Errorf("ParseMethod(%q): %v", name, err)
		}
		if m.String() != name {
			t.Errorf("round trip %q -> %q", name, m.String())
		}
	}
	if _, err := ParseMethod("Bogus"); err == nil {
		t.Error("expected error for unknown method name")
	}
}

func TestLookback(t *testing.T) {
	if MethodMean.Lookback() != 0 {
		t.Errorf("Mean lookback = %d, want 0", MethodMean.Lookback())
	}
	for _, m := range []Method{MethodDivision, MethodMeanDifference, MethodDifferenceMean, MethodDifferenceSum} {
		if m.Lookback() != 1 {
			t.Errorf("%s lookback = %d, want 1", m, m.Lookback())
		}
	}
}

// Lookback methods produce no cost on the first frame; Mean produces one
// immediately.
func TestFirstFrameAvailability(t *testing.T) {
	cur := valid(90, 100, 110)
	for _, m := range []Method{MethodDivision, MethodMeanDifference, MethodDifferenceMean, MethodDifferenceSum} {
		e := Evaluator{Method: m, ZeroEps: 1e-6}
		if c := e.Evaluate(cur, nil, false); c.Valid {
			t.Errorf("%s: expected invalid cost without history, got %v", m, c.Value)
		}
	}

	e := Evaluator{Method: MethodMean}
	c := e.Evaluate(cur, nil, false)
	if !c.Valid {
		t.Fatal("Mean: expected valid cost on first frame")
	}
	if math.Abs(c.Value-100) > 1e-9 {
		t.Errorf("Mean cost = %v, want 100", c.Value)
	}
}

func TestMethodValues(t *testing.T) {
	prev := valid(100, 120, 140)
	cur := valid(90, 100, 110)

	tests := []struct {
		method Method
		want   float64
	}{
		{MethodDifferenceSum, -60},
		{MethodDifferenceMean, -20},
		{MethodMeanDifference, -20},
		{MethodDivision, (90.0/100 + 100.0/120 + 110.0/140) / 3},
		{MethodMean, 100},
	}
	for _, tt := range tests {
		e := Evaluator{Method: tt.method, ZeroEps: 1e-6}
		c := e.Evaluate(cur, prev, true)
		if !c.Valid {
			t.Errorf("%s: expected valid cost", tt.method)
			continue
		}
		if math.Abs(c.Value-tt.want) > 1e-9 {
			t.Errorf("%s cost = %v, want %v", tt.method, c.Value, tt.want)
		}
	}
}

// The spec's standing-to-collapse scenario: a sudden knee bend from near
// straight produces a large negative DifferenceSum.
func TestDifferenceSumCollapseScenario(t *testing.T) {
	e := Evaluator{Method: MethodDifferenceSum}

	if c := e.Evaluate(valid(90, 90, 90), valid(90, 90, 90), true); !c.Valid || c.Value != 0 {
		t.Errorf("no-motion cost = %+v, want valid 0", c)
	}

	c := e.Evaluate(valid(60, 60, 60), valid(170, 170, 170), true)
	if !c.Valid {
		t.Fatal("expected valid cost")
	}
	if math.Abs(c.Value-(-330)) > 1e-9 {
		t.Errorf("collapse cost = %v, want -330", c.Value)
	}
}

func TestDivisionSkipsZeroPrevious(t *testing.T) {
	e := Evaluator{Method: MethodDivision, ZeroEps: 1e-6}
	prev := valid(0, 100)
	cur := valid(50, 50)

	c := e.Evaluate(cur, prev, true)
	if !c.Valid {
		t.Fatal("expected valid cost from the surviving index")
	}
	if math.Abs(c.Value-0.5) > 1e-9 {
		t.Errorf("cost = %v, want 0.5 (index with zero previous skipped)", c.Value)
	}

	// Every previous entry zero: nothing survives.
	if c := e.Evaluate(valid(50), valid(0), true); c.Valid {
		t.Errorf("expected invalid cost when all previous angles are ~0, got %v", c.Value)
	}
}

func TestUndefinedEntriesAreSkipped(t *testing.T) {
	prev := l2angles.Set{{Deg: 100, Valid: true}, {}, {Deg: 140, Valid: true}}
	cur := l2angles.Set{{Deg: 90, Valid: true}, {Deg: 100, Valid: true}, {}}

	// Only index 0 is defined on both sides.
	e := Evaluator{Method: MethodDifferenceSum}
	c := e.Evaluate(cur, prev, true)
	if !c.Valid || math.Abs(c.Value-(-10)) > 1e-9 {
		t.Errorf("cost = %+v, want valid -10", c)
	}
}

func TestAllUndefinedPropagates(t *testing.T) {
	undef := make(l2angles.Set, 3)
	for _, m := range []Method{MethodDivision, MethodMeanDifference, MethodDifferenceMean, MethodDifferenceSum, MethodMean} {
		e := Evaluator{Method: m, ZeroEps: 1e-6}
		if c := e.Evaluate(undef, undef, true); c.Valid {
			t.Errorf("%s: expected invalid cost for all-undefined sets, got %v", m, c.Value)
		}
	}
}

// DifferenceMean and MeanDifference agree whenever no entry is undefined
// (both reduce to mean(current) - mean(previous) by linearity), and may
// diverge once partial-data skipping differs between them.
func TestDifferenceMeanEqualsMeanDifferenceOnCompleteFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	dm := Evaluator{Method: MethodDifferenceMean}
	md := Evaluator{Method: MethodMeanDifference}

	for trial := 0; trial < 500; trial++ {
		n := 1 + rng.Intn(12)
		prev := make(l2angles.Set, n)
		cur := make(l2angles.Set, n)
		for i := 0; i < n; i++ {
			prev[i] = l2angles.Angle{Deg: rng.Float64() * 180, Valid: true}
			cur[i] = l2angles.Angle{Deg: rng.Float64() * 180, Valid: true}
		}

		a := dm.Evaluate(cur, prev, true)
		b := md.Evaluate(cur, prev, true)
		if !a.Valid || !b.Valid {
			t.Fatalf("trial %d: expected both costs valid", trial)
		}
		if math.Abs(a.Value-b.Value) > 1e-9 {
			t.Fatalf("trial %d: DifferenceMean %v != MeanDifference %v", trial, a.Value, b.Value)
		}
	}
}

func TestDifferenceMeanDivergesFromMeanDifferenceOnPartialFrames(t *testing.T) {
	// Index 1 defined only on the current side: MeanDifference includes it in
	// the current mean, DifferenceMean drops it from the paired diffs.
	prev := l2angles.Set{{Deg: 100, Valid: true}, {}}
	cur := l2angles.Set{{Deg: 90, Valid: true}, {Deg: 10, Valid: true}}

	a := Evaluator{Method: MethodDifferenceMean}.Evaluate(cur, prev, true)
	b := Evaluator{Method: MethodMeanDifference}.Evaluate(cur, prev, true)
	if !a.Valid || !b.Valid {
		t.Fatal("expected both costs valid")
	}
	if math.Abs(a.Value-(-10)) > 1e-9 {
		t.Errorf("DifferenceMean = %v, want -10", a.Value)
	}
	if math.Abs(b.Value-(-50)) > 1e-9 {
		t.Errorf("MeanDifference = %v, want -50", b.Value)
	}
}
