package gesture

import (
	"math"

	"github.com/ayusman/vocalize/internal/features"
)

// TableVersion names the shipped rule set. It is stored with sessions and
// evaluation reports so results can be traced to the rules that produced them.
const TableVersion = "asl-static-v1"

// Thresholds holds every numeric cutoff used by the rule table. Distances are
// in normalized frame units, angles in radians.
type Thresholds struct {
	// Fingertips closer than this are touching (O, F).
	TouchDistance float64 `yaml:"touch_distance" json:"touch_distance"`
	// Index and middle tips closer than this are held together (U vs V).
	TogetherDistance float64 `yaml:"together_distance" json:"together_distance"`
	// Thumb-index gap range of the open C curve.
	CurveMinDistance float64 `yaml:"curve_min_distance" json:"curve_min_distance"`
	CurveMaxDistance float64 `yaml:"curve_max_distance" json:"curve_max_distance"`
	// Minimum tip rise above the knuckle for a finger to count as curved up.
	CurveMinRise float64 `yaml:"curve_min_rise" json:"curve_min_rise"`
	// Allowed deviation of the thumb-index angle from pi/2 (L).
	RightAngleTolerance float64 `yaml:"right_angle_tolerance" json:"right_angle_tolerance"`
	// Allowed thumb-index angle for parallel fingers (G).
	ParallelTolerance float64 `yaml:"parallel_tolerance" json:"parallel_tolerance"`
	// Allowed deviation from horizontal or straight down for pointing fingers.
	SidewaysTolerance float64 `yaml:"sideways_tolerance" json:"sideways_tolerance"`
	// Minimum knuckle-to-tip length of a pointing finger.
	MinPointReach float64 `yaml:"min_point_reach" json:"min_point_reach"`
	// Thumb depth behind the fingers above which it is tucked (T, N, M).
	TuckDepth float64 `yaml:"tuck_depth" json:"tuck_depth"`
}

// DefaultThresholds returns the shipped cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TouchDistance:       0.05,
		TogetherDistance:    0.04,
		CurveMinDistance:    0.06,
		CurveMaxDistance:    0.20,
		CurveMinRise:        0.02,
		RightAngleTolerance: 0.5,
		ParallelTolerance:   0.6,
		SidewaysTolerance:   0.5,
		MinPointReach:       0.12,
		TuckDepth:           0.01,
	}
}

// Rule is one entry of a rule table.
type Rule struct {
	Label Label
	Match func(features.Set) bool
}

// Table is an ordered rule list. The first matching rule wins, so rules for
// specific shapes must come before the general shapes they overlap with.
type Table struct {
	Version string
	Rules   []Rule
}

// Without returns a copy of the table with the given letters removed.
func (t Table) Without(labels ...Label) Table {
	drop := make(map[Label]bool, len(labels))
	for _, l := range labels {
		drop[l] = true
	}
	out := Table{Version: t.Version, Rules: make([]Rule, 0, len(t.Rules))}
	for _, r := range t.Rules {
		if !drop[r.Label] {
			out.Rules = append(out.Rules, r)
		}
	}
	return out
}

// Labels returns the table's labels in evaluation order.
func (t Table) Labels() []Label {
	labels := make([]Label, len(t.Rules))
	for i, r := range t.Rules {
		labels[i] = r.Label
	}
	return labels
}

// NewTable builds the shipped 26-letter table from the thresholds.
func NewTable(th Thresholds) Table {
	fist := func(f features.Set) bool {
		return !f.Index && !f.Middle && !f.Ring && !f.Pinky
	}
	curved := func(f features.Set) bool {
		return f.IndexRise > th.CurveMinRise && f.MiddleRise > th.CurveMinRise
	}
	tucked := func(f features.Set) bool {
		return f.ThumbDepth > th.TuckDepth
	}
	sideways := func(angle, reach float64) bool {
		a := math.Abs(angle)
		return reach >= th.MinPointReach && (a <= th.SidewaysTolerance || a >= math.Pi-th.SidewaysTolerance)
	}
	down := func(angle, reach float64) bool {
		return reach >= th.MinPointReach && math.Abs(angle-math.Pi/2) <= th.SidewaysTolerance
	}
	indexDown := func(f features.Set) bool { return f.IndexDown && down(f.IndexAngle, f.IndexReach) }
	middleDown := func(f features.Set) bool { return f.MiddleDown && down(f.MiddleAngle, f.MiddleReach) }
	indexSideways := func(f features.Set) bool { return sideways(f.IndexAngle, f.IndexReach) }
	middleSideways := func(f features.Set) bool { return sideways(f.MiddleAngle, f.MiddleReach) }
	// Index and middle up, ring and pinky folded.
	twoUp := func(f features.Set) bool {
		return f.Index && f.Middle && !f.Ring && !f.Pinky
	}

	return Table{
		Version: TableVersion,
		Rules: []Rule{
			{"P", func(f features.Set) bool { return indexDown(f) && middleDown(f) }},
			{"Q", func(f features.Set) bool { return indexDown(f) && !middleDown(f) }},
			{"H", func(f features.Set) bool { return indexSideways(f) && middleSideways(f) }},
			{"G", func(f features.Set) bool {
				return indexSideways(f) && !middleSideways(f) && f.Thumb &&
					math.Abs(f.ThumbIndexAngle) <= th.ParallelTolerance
			}},
			{"Z", func(f features.Set) bool { return indexSideways(f) && !middleSideways(f) && !f.Thumb }},
			{"J", func(f features.Set) bool {
				return sideways(f.PinkyAngle, f.PinkyReach) && !indexSideways(f) && !f.Index && !f.Middle && !f.Ring
			}},
			{"X", func(f features.Set) bool {
				return f.IndexHooked && f.MiddleRise <= th.CurveMinRise && !f.Middle && !f.Ring && !f.Pinky
			}},
			{"O", func(f features.Set) bool { return fist(f) && curved(f) && f.ThumbIndex < th.TouchDistance }},
			{"C", func(f features.Set) bool {
				return fist(f) && curved(f) && f.ThumbIndex >= th.CurveMinDistance && f.ThumbIndex <= th.CurveMaxDistance
			}},
			{"F", func(f features.Set) bool {
				return !f.Index && f.Middle && f.Ring && f.Pinky && f.ThumbIndex < th.TouchDistance
			}},
			{"R", func(f features.Set) bool { return twoUp(f) && f.IndexMiddleCrossed }},
			{"K", func(f features.Set) bool { return twoUp(f) && f.ThumbSlot == 1 && f.ThumbRise > 0 }},
			{"U", func(f features.Set) bool { return twoUp(f) && f.IndexMiddle < th.TogetherDistance }},
			{"V", twoUp},
			{"W", func(f features.Set) bool { return f.Index && f.Middle && f.Ring && !f.Pinky }},
			{"B", func(f features.Set) bool { return f.Index && f.Middle && f.Ring && f.Pinky }},
			{"L", func(f features.Set) bool {
				return f.Thumb && f.Index && !f.Middle && !f.Ring && !f.Pinky &&
					math.Abs(math.Abs(f.ThumbIndexAngle)-math.Pi/2) <= th.RightAngleTolerance
			}},
			{"Y", func(f features.Set) bool { return f.Thumb && f.Pinky && !f.Index && !f.Middle && !f.Ring }},
			{"D", func(f features.Set) bool { return f.Index && !f.Middle && !f.Ring && !f.Pinky && !f.Thumb }},
			{"I", func(f features.Set) bool { return f.Pinky && !f.Index && !f.Middle && !f.Ring && !f.Thumb }},
			{"E", func(f features.Set) bool {
				return fist(f) && f.ThumbBelowTips && !tucked(f) && f.ThumbSlot >= 1 && f.ThumbSlot <= 3
			}},
			{"T", func(f features.Set) bool { return fist(f) && tucked(f) && f.ThumbSlot == 1 }},
			{"N", func(f features.Set) bool { return fist(f) && tucked(f) && f.ThumbSlot == 2 }},
			{"M", func(f features.Set) bool { return fist(f) && tucked(f) && f.ThumbSlot == 3 }},
			{"S", func(f features.Set) bool {
				return fist(f) && !tucked(f) && f.ThumbSlot >= 1 && f.ThumbSlot <= 3
			}},
			{"A", func(f features.Set) bool { return fist(f) && f.ThumbSlot == 0 }},
		},
	}
}
