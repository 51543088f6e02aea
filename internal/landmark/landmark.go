// Package landmark defines hand landmark frames and their validation.
package landmark

import (
	"errors"
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// ErrInvalidFrame is returned when a landmark frame cannot be used for
// feature extraction.
var ErrInvalidFrame = errors.New("invalid landmark frame")

// Point3D represents a landmark position. X and Y are normalized to the frame
// width and height, Z is depth relative to the wrist.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is one hand's keypoints for one observation instant.
// Points is a slice rather than an array so that malformed estimator output
// can be represented and rejected by Validate.
type HandLandmarks struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"` // "Left" or "Right"
	Score      float64   `json:"score"`
}

// Validate reports whether the frame holds exactly NumLandmarks finite points.
// The returned error wraps ErrInvalidFrame.
func (h *HandLandmarks) Validate() error {
	if h == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	if len(h.Points) != NumLandmarks {
		return fmt.Errorf("%w: got %d landmarks, want %d", ErrInvalidFrame, len(h.Points), NumLandmarks)
	}
	for i, p := range h.Points {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return fmt.Errorf("%w: landmark %d is not finite", ErrInvalidFrame, i)
		}
	}
	return nil
}

// Clone returns a deep copy of the landmarks.
func (h *HandLandmarks) Clone() *HandLandmarks {
	if h == nil {
		return nil
	}
	c := *h
	c.Points = append([]Point3D(nil), h.Points...)
	return &c
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
