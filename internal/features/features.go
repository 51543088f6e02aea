// Package features derives geometric hand-shape features from landmark frames.
package features

import (
	"math"

	"github.com/pkg/errors"

	"github.com/ayusman/vocalize/internal/landmark"
)

// Set is the feature snapshot of one landmark frame. Coordinates follow
// screen convention: smaller Y is higher in the frame.
type Set struct {
	// Finger extension.
	Thumb  bool `json:"thumb"`
	Index  bool `json:"index"`
	Middle bool `json:"middle"`
	Ring   bool `json:"ring"`
	Pinky  bool `json:"pinky"`

	// Planar fingertip distances.
	ThumbIndex  float64 `json:"thumb_index"`
	ThumbMiddle float64 `json:"thumb_middle"`
	ThumbRing   float64 `json:"thumb_ring"`
	IndexMiddle float64 `json:"index_middle"`

	// ThumbIndexAngle is the signed angle from the thumb MCP->tip vector to
	// the index MCP->tip vector. Finger angles give the MCP->tip direction.
	// All angles are in (-pi, pi].
	ThumbIndexAngle float64 `json:"thumb_index_angle"`
	IndexAngle      float64 `json:"index_angle"`
	MiddleAngle     float64 `json:"middle_angle"`
	PinkyAngle      float64 `json:"pinky_angle"`

	// Planar MCP->tip lengths.
	IndexReach  float64 `json:"index_reach"`
	MiddleReach float64 `json:"middle_reach"`
	PinkyReach  float64 `json:"pinky_reach"`

	// How far a fingertip sits above its knuckle (MCP.y - tip.y).
	IndexRise  float64 `json:"index_rise"`
	MiddleRise float64 `json:"middle_rise"`

	IndexHooked        bool `json:"index_hooked"`
	IndexDown          bool `json:"index_down"`
	MiddleDown         bool `json:"middle_down"`
	IndexMiddleCrossed bool `json:"index_middle_crossed"`

	// ThumbSlot counts the finger knuckles lying outward of the thumb tip:
	// 0 outside the index, 1 between index and middle, up to 4 past the pinky.
	ThumbSlot      int     `json:"thumb_slot"`
	ThumbRise      float64 `json:"thumb_rise"`
	ThumbBelowTips bool    `json:"thumb_below_tips"`
	// ThumbDepth is the thumb tip z minus the mean index/middle/ring PIP z.
	// Positive means the thumb is behind the fingers.
	ThumbDepth float64 `json:"thumb_depth"`
}

// Extract computes the feature set for a frame. It fails with an error
// matching landmark.ErrInvalidFrame for nil, short, long or non-finite frames.
func Extract(hand *landmark.HandLandmarks) (Set, error) {
	if err := hand.Validate(); err != nil {
		return Set{}, errors.Wrap(err, "extract features")
	}
	p := hand.Points

	// Outward is the direction from the pinky knuckle to the index knuckle,
	// which is where the thumb abducts for either hand.
	side := 1.0
	if d := p[landmark.IndexMCP].X - p[landmark.PinkyMCP].X; d < 0 {
		side = -1.0
	}
	lateral := func(i int) float64 { return side * p[i].X }

	var s Set
	s.Thumb = lateral(landmark.ThumbTip) > lateral(landmark.ThumbIP) &&
		lateral(landmark.ThumbTip) > lateral(landmark.ThumbMCP)
	s.Index = extended(p, landmark.IndexMCP)
	s.Middle = extended(p, landmark.MiddleMCP)
	s.Ring = extended(p, landmark.RingMCP)
	s.Pinky = extended(p, landmark.PinkyMCP)

	s.ThumbIndex = distance(p[landmark.ThumbTip], p[landmark.IndexTip])
	s.ThumbMiddle = distance(p[landmark.ThumbTip], p[landmark.MiddleTip])
	s.ThumbRing = distance(p[landmark.ThumbTip], p[landmark.RingTip])
	s.IndexMiddle = distance(p[landmark.IndexTip], p[landmark.MiddleTip])

	thumbAngle := angle(p[landmark.ThumbMCP], p[landmark.ThumbTip])
	s.IndexAngle = angle(p[landmark.IndexMCP], p[landmark.IndexTip])
	s.MiddleAngle = angle(p[landmark.MiddleMCP], p[landmark.MiddleTip])
	s.PinkyAngle = angle(p[landmark.PinkyMCP], p[landmark.PinkyTip])
	s.ThumbIndexAngle = NormalizeAngle(s.IndexAngle - thumbAngle)

	s.IndexReach = distance(p[landmark.IndexMCP], p[landmark.IndexTip])
	s.MiddleReach = distance(p[landmark.MiddleMCP], p[landmark.MiddleTip])
	s.PinkyReach = distance(p[landmark.PinkyMCP], p[landmark.PinkyTip])

	s.IndexRise = p[landmark.IndexMCP].Y - p[landmark.IndexTip].Y
	s.MiddleRise = p[landmark.MiddleMCP].Y - p[landmark.MiddleTip].Y

	s.IndexHooked = hooked(p, landmark.IndexMCP)
	s.IndexDown = pointingDown(p, landmark.IndexMCP)
	s.MiddleDown = pointingDown(p, landmark.MiddleMCP)
	s.IndexMiddleCrossed = lateral(landmark.IndexTip) < lateral(landmark.MiddleTip)

	thumbU := lateral(landmark.ThumbTip)
	for _, mcp := range []int{landmark.IndexMCP, landmark.MiddleMCP, landmark.RingMCP, landmark.PinkyMCP} {
		if lateral(mcp) > thumbU {
			s.ThumbSlot++
		}
	}
	s.ThumbRise = p[landmark.IndexMCP].Y - p[landmark.ThumbTip].Y
	s.ThumbBelowTips = p[landmark.ThumbTip].Y > math.Max(p[landmark.IndexTip].Y, p[landmark.MiddleTip].Y)
	pipZ := (p[landmark.IndexPIP].Z + p[landmark.MiddlePIP].Z + p[landmark.RingPIP].Z) / 3
	s.ThumbDepth = p[landmark.ThumbTip].Z - pipZ

	return s, nil
}

// extended reports tip above PIP above MCP for the finger starting at mcp.
func extended(p []landmark.Point3D, mcp int) bool {
	return p[mcp+3].Y < p[mcp+1].Y && p[mcp+1].Y < p[mcp].Y
}

// hooked reports a raised PIP with the tip bent back down, still above the knuckle.
func hooked(p []landmark.Point3D, mcp int) bool {
	pip, tip := p[mcp+1], p[mcp+3]
	return pip.Y < p[mcp].Y && tip.Y > pip.Y && tip.Y < p[mcp].Y
}

func pointingDown(p []landmark.Point3D, mcp int) bool {
	return p[mcp+3].Y > p[mcp+1].Y && p[mcp+1].Y > p[mcp].Y
}

func distance(a, b landmark.Point3D) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func angle(from, to landmark.Point3D) float64 {
	return NormalizeAngle(math.Atan2(to.Y-from.Y, to.X-from.X))
}

// NormalizeAngle maps a radian value into (-pi, pi].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
