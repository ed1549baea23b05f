// Package l4cost scores frame-to-frame postural change. Each method maps the
// current angle set (and, for lookback methods, the previous one) to a single
// scalar cost; large magnitudes indicate rapid change.
package l4cost

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/fall.report/internal/pose/l2angles"
)

// Method selects the cost function. The set is closed: dispatch is an
// exhaustive switch, not a string lookup, so a new method cannot be added
// without the compiler pointing at every site that must handle it.
type Method int

const (
	MethodDivision Method = iota
	MethodMeanDifference
	MethodDifferenceMean
	MethodDifferenceSum
	MethodMean
)

var methodNames = map[Method]string{
	MethodDivision:       "Division",
	MethodMeanDifference: "MeanDifference",
	MethodDifferenceMean: "DifferenceMean",
	MethodDifferenceSum:  "DifferenceSum",
	MethodMean:           "Mean",
}

// ParseMethod resolves a configured method name. Unknown names are a
// configuration error and should abort before any frame is processed.
func ParseMethod(name string) (Method, error) {
	for m, n := range methodNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown cost method %q; use Division, MeanDifference, DifferenceMean, DifferenceSum or Mean", name)
}

// String returns the canonical method name.
func (m Method) String() string {
	if n, ok := methodNames[m]; ok {
		return n
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Lookback returns how many prior frames the method's cost depends on.
func (m Method) Lookback() int {
	if m == MethodMean {
		return 0
	}
	return 1
}

// Cost is the per-frame scalar output. Valid is false when the cost cannot be
// computed this frame (no history yet, or every contributing angle undefined).
// An invalid cost means "no decision possible", never a failure.
type Cost struct {
	Value float64
	Valid bool
}

// Evaluator computes costs for a fixed method. Evaluate is stateless per
// call, so the same evaluator may serve any frame of any stream.
type Evaluator struct {
	Method Method

	// ZeroEps is the magnitude below which a previous-frame angle counts as
	// zero for the Division method, excluding that index from the ratio mean.
	ZeroEps float64
}

// Evaluate scores the transition from previous to current. havePrevious is
// false on the first frame of a stream; every lookback method then returns an
// invalid cost. Angle indices where either side is undefined are skipped;
// a cost over zero surviving indices is invalid.
func (e Evaluator) Evaluate(current l2angles.Set, previous l2angles.Set, havePrevious bool) Cost {
	switch e.Method {
	case MethodMean:
		return meanOf(current)
	case MethodDivision:
		if !havePrevious {
			return Cost{}
		}
		return e.division(current, previous)
	case MethodMeanDifference:
		if !havePrevious {
			return Cost{}
		}
		cur := meanOf(current)
		prev := meanOf(previous)
		if !cur.Valid || !prev.Valid {
			return Cost{}
		}
		return Cost{Value: cur.Value - prev.Value, Valid: true}
	case MethodDifferenceMean:
		if !havePrevious {
			return Cost{}
		}
		diffs := pairedDiffs(current, previous)
		if len(diffs) == 0 {
			return Cost{}
		}
		return Cost{Value: stat.Mean(diffs, nil), Valid: true}
	case MethodDifferenceSum:
		if !havePrevious {
			return Cost{}
		}
		diffs := pairedDiffs(current, previous)
		if len(diffs) == 0 {
			return Cost{}
		}
		sum := 0.0
		for _, d := range diffs {
			sum += d
		}
		return Cost{Value: sum, Valid: true}
	}
	return Cost{}
}

// division averages the per-index ratios current/previous, skipping indices
// where either side is undefined or the previous angle is ~0.
func (e Evaluator) division(current, previous l2angles.Set) Cost {
	ratios := make([]float64, 0, len(current))
	for i, cur := range current {
		if i >= len(previous) {
			break
		}
		prev := previous[i]
		if !cur.Valid || !prev.Valid {
			continue
		}
		if prev.Deg < e.ZeroEps && prev.Deg > -e.ZeroEps {
			continue
		}
		ratios = append(ratios, cur.Deg/prev.Deg)
	}
	if len(ratios) == 0 {
		return Cost{}
	}
	return Cost{Value: stat.Mean(ratios, nil), Valid: true}
}

// meanOf averages the defined entries of one set.
func meanOf(s l2angles.Set) Cost {
	vals := make([]float64, 0, len(s))
	for _, a := range s {
		if a.Valid {
			vals = append(vals, a.Deg)
		}
	}
	if len(vals) == 0 {
		return Cost{}
	}
	return Cost{Value: stat.Mean(vals, nil), Valid: true}
}

// pairedDiffs collects current[i]−previous[i] over indices defined on both sides.
func pairedDiffs(current, previous l2angles.Set) []float64 {
	diffs := make([]float64, 0, len(current))
	for i, cur := range current {
		if i >= len(previous) {
			break
		}
		prev := previous[i]
		if !cur.Valid || !prev.Valid {
			continue
		}
		diffs = append(diffs, cur.Deg-prev.Deg)
	}
	return diffs
}
