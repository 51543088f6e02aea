// Package landmarktest provides synthetic hand frames for tests.
package landmarktest

import (
	"github.com/ayusman/vocalize/internal/landmark"
)

// Synthetic hand poses. The hand is a right hand, palm
// towards the camera, with the thumb on the +x side of the frame.

// FingerPose describes how a non-thumb finger is held.
type FingerPose int

const (
	FingerFist FingerPose = iota
	FingerExtended
	FingerCurved
	FingerHooked
	FingerDown
	FingerSideways
)

// ThumbPose describes where the thumb is placed.
type ThumbPose int

const (
	ThumbFolded       ThumbPose = iota // across the palm, below the knuckles
	ThumbOut                           // abducted sideways
	ThumbAlongside                     // against the side of the index finger
	ThumbAcross                        // in front of the curled fingers
	ThumbUnder                         // under the curled fingertips
	ThumbTuckedIndex                   // behind the index, poking out before the middle finger
	ThumbTuckedMiddle                  // behind the index and middle fingers
	ThumbTuckedRing                    // behind the index, middle and ring fingers
	ThumbTouchIndex                    // tip meeting a curved index fingertip
	ThumbCurve                         // open curve below a curved index finger
	ThumbTouchMiddle                   // tip resting on the curled middle finger
	ThumbBetween                       // tip raised between index and middle fingers
)

// Pose is a complete synthetic hand configuration.
type Pose struct {
	Thumb  ThumbPose
	Index  FingerPose
	Middle FingerPose
	Ring   FingerPose
	Pinky  FingerPose

	// Lateral offsets of extended fingertips; positive leans toward the thumb.
	IndexLean  float64
	MiddleLean float64
	RingLean   float64
	PinkyLean  float64
}

var knuckles = [4]landmark.Point3D{
	{X: 0.56, Y: 0.66},
	{X: 0.50, Y: 0.65},
	{X: 0.44, Y: 0.66},
	{X: 0.38, Y: 0.68},
}

var thumbJoints = map[ThumbPose][3]landmark.Point3D{
	ThumbFolded:       {{X: 0.57, Y: 0.74, Z: 0}, {X: 0.53, Y: 0.72, Z: -0.02}, {X: 0.49, Y: 0.71, Z: -0.03}},
	ThumbOut:          {{X: 0.63, Y: 0.75, Z: 0}, {X: 0.69, Y: 0.73, Z: 0}, {X: 0.74, Y: 0.72, Z: 0}},
	ThumbAlongside:    {{X: 0.60, Y: 0.74, Z: 0}, {X: 0.61, Y: 0.69, Z: -0.01}, {X: 0.605, Y: 0.65, Z: -0.02}},
	ThumbAcross:       {{X: 0.58, Y: 0.74, Z: 0}, {X: 0.55, Y: 0.68, Z: -0.05}, {X: 0.49, Y: 0.66, Z: -0.07}},
	ThumbUnder:        {{X: 0.58, Y: 0.75, Z: 0}, {X: 0.55, Y: 0.72, Z: -0.05}, {X: 0.51, Y: 0.71, Z: -0.06}},
	ThumbTuckedIndex:  {{X: 0.58, Y: 0.73, Z: 0}, {X: 0.56, Y: 0.67, Z: -0.02}, {X: 0.53, Y: 0.63, Z: 0}},
	ThumbTuckedMiddle: {{X: 0.58, Y: 0.73, Z: 0}, {X: 0.53, Y: 0.67, Z: -0.02}, {X: 0.47, Y: 0.63, Z: 0}},
	ThumbTuckedRing:   {{X: 0.58, Y: 0.73, Z: 0}, {X: 0.50, Y: 0.68, Z: -0.02}, {X: 0.41, Y: 0.64, Z: 0}},
	ThumbTouchIndex:   {{X: 0.60, Y: 0.74, Z: 0}, {X: 0.63, Y: 0.68, Z: -0.03}, {X: 0.64, Y: 0.61, Z: -0.05}},
	ThumbCurve:        {{X: 0.61, Y: 0.76, Z: 0}, {X: 0.64, Y: 0.74, Z: -0.02}, {X: 0.63, Y: 0.72, Z: -0.04}},
	ThumbTouchMiddle:  {{X: 0.58, Y: 0.74, Z: 0}, {X: 0.55, Y: 0.71, Z: -0.03}, {X: 0.52, Y: 0.68, Z: -0.04}},
	ThumbBetween:      {{X: 0.60, Y: 0.72, Z: 0}, {X: 0.57, Y: 0.63, Z: -0.02}, {X: 0.53, Y: 0.55, Z: -0.03}},
}

// PoseLandmarks builds a full 21-point frame for the pose.
func PoseLandmarks(p Pose) landmark.HandLandmarks {
	points := make([]landmark.Point3D, landmark.NumLandmarks)
	points[landmark.Wrist] = landmark.Point3D{X: 0.48, Y: 0.85}
	points[landmark.ThumbCMC] = landmark.Point3D{X: 0.58, Y: 0.80}

	thumb := thumbJoints[p.Thumb]
	points[landmark.ThumbMCP] = thumb[0]
	points[landmark.ThumbIP] = thumb[1]
	points[landmark.ThumbTip] = thumb[2]

	fingers := [4]FingerPose{p.Index, p.Middle, p.Ring, p.Pinky}
	leans := [4]float64{p.IndexLean, p.MiddleLean, p.RingLean, p.PinkyLean}
	for i, pose := range fingers {
		base := landmark.IndexMCP + 4*i
		// Index and middle point toward the thumb side when held sideways,
		// ring and pinky away from it.
		dir := 1.0
		if i >= 2 {
			dir = -1.0
		}
		joints := fingerJoints(knuckles[i], pose, leans[i], dir)
		points[base] = knuckles[i]
		points[base+1] = joints[0]
		points[base+2] = joints[1]
		points[base+3] = joints[2]
	}

	return landmark.HandLandmarks{
		Points:     points,
		Handedness: "Right",
		Score:      0.95,
	}
}

func fingerJoints(mcp landmark.Point3D, pose FingerPose, lean, dir float64) [3]landmark.Point3D {
	mx, my := mcp.X, mcp.Y
	switch pose {
	case FingerExtended:
		return [3]landmark.Point3D{
			{X: mx + 0.4*lean, Y: my - 0.10, Z: -0.01},
			{X: mx + 0.7*lean, Y: my - 0.17, Z: -0.01},
			{X: mx + lean, Y: my - 0.23, Z: -0.01},
		}
	case FingerCurved:
		return [3]landmark.Point3D{
			{X: mx + 0.02, Y: my - 0.08, Z: -0.03},
			{X: mx + 0.05, Y: my - 0.10, Z: -0.05},
			{X: mx + 0.07, Y: my - 0.07, Z: -0.06},
		}
	case FingerHooked:
		return [3]landmark.Point3D{
			{X: mx, Y: my - 0.09, Z: -0.02},
			{X: mx + 0.02, Y: my - 0.10, Z: -0.04},
			{X: mx + 0.02, Y: my - 0.06, Z: -0.05},
		}
	case FingerDown:
		return [3]landmark.Point3D{
			{X: mx, Y: my + 0.08, Z: -0.01},
			{X: mx, Y: my + 0.14, Z: -0.01},
			{X: mx, Y: my + 0.19, Z: -0.01},
		}
	case FingerSideways:
		return [3]landmark.Point3D{
			{X: mx + 0.08*dir, Y: my + 0.005, Z: -0.01},
			{X: mx + 0.13*dir, Y: my + 0.008, Z: -0.01},
			{X: mx + 0.18*dir, Y: my + 0.01, Z: -0.01},
		}
	default:
		return [3]landmark.Point3D{
			{X: mx, Y: my - 0.03, Z: -0.04},
			{X: mx, Y: my + 0.01, Z: -0.05},
			{X: mx, Y: my + 0.03, Z: -0.03},
		}
	}
}

// LetterPoses maps each fingerspelled letter to a pose the default rule table
// recognizes. J and Z are static approximations of the motion letters.
var LetterPoses = map[string]Pose{
	"A": {Thumb: ThumbAlongside},
	"B": {Thumb: ThumbFolded, Index: FingerExtended, Middle: FingerExtended, Ring: FingerExtended, Pinky: FingerExtended, IndexLean: 0.01, RingLean: -0.01, PinkyLean: -0.02},
	"C": {Thumb: ThumbCurve, Index: FingerCurved, Middle: FingerCurved, Ring: FingerCurved, Pinky: FingerCurved},
	"D": {Thumb: ThumbTouchMiddle, Index: FingerExtended},
	"E": {Thumb: ThumbUnder},
	"F": {Thumb: ThumbTouchIndex, Index: FingerCurved, Middle: FingerExtended, Ring: FingerExtended, Pinky: FingerExtended},
	"G": {Thumb: ThumbOut, Index: FingerSideways},
	"H": {Thumb: ThumbFolded, Index: FingerSideways, Middle: FingerSideways},
	"I": {Thumb: ThumbFolded, Pinky: FingerExtended, PinkyLean: -0.02},
	"J": {Thumb: ThumbFolded, Pinky: FingerSideways},
	"K": {Thumb: ThumbBetween, Index: FingerExtended, Middle: FingerExtended, IndexLean: 0.03, MiddleLean: -0.02},
	"L": {Thumb: ThumbOut, Index: FingerExtended},
	"M": {Thumb: ThumbTuckedRing},
	"N": {Thumb: ThumbTuckedMiddle},
	"O": {Thumb: ThumbTouchIndex, Index: FingerCurved, Middle: FingerCurved, Ring: FingerCurved, Pinky: FingerCurved},
	"P": {Thumb: ThumbOut, Index: FingerDown, Middle: FingerDown},
	"Q": {Thumb: ThumbOut, Index: FingerDown},
	"R": {Thumb: ThumbFolded, Index: FingerExtended, Middle: FingerExtended, IndexLean: -0.08, MiddleLean: 0.03},
	"S": {Thumb: ThumbAcross},
	"T": {Thumb: ThumbTuckedIndex},
	"U": {Thumb: ThumbFolded, Index: FingerExtended, Middle: FingerExtended, IndexLean: -0.025, MiddleLean: 0.02},
	"V": {Thumb: ThumbFolded, Index: FingerExtended, Middle: FingerExtended, IndexLean: 0.03, MiddleLean: -0.02},
	"W": {Thumb: ThumbFolded, Index: FingerExtended, Middle: FingerExtended, Ring: FingerExtended, IndexLean: 0.02, RingLean: -0.02},
	"X": {Thumb: ThumbTouchMiddle, Index: FingerHooked},
	"Y": {Thumb: ThumbOut, Pinky: FingerExtended, PinkyLean: -0.02},
	"Z": {Thumb: ThumbFolded, Index: FingerSideways},
}

// LetterLandmarks returns the synthetic frame for a letter.
func LetterLandmarks(letter string) (landmark.HandLandmarks, bool) {
	pose, ok := LetterPoses[letter]
	if !ok {
		return landmark.HandLandmarks{}, false
	}
	return PoseLandmarks(pose), true
}

// NoGestureLandmarks returns a frame that matches no letter: index and pinky
// raised with the thumb folded.
func NoGestureLandmarks() landmark.HandLandmarks {
	return PoseLandmarks(Pose{Thumb: ThumbFolded, Index: FingerExtended, Pinky: FingerExtended, PinkyLean: -0.02})
}
