// Package detector provides the hand landmark estimators.
package detector

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/vocalize/internal/landmark"
)

// Detector defines the interface for hand-pose estimators.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected. Implementations
	// configured with MaxHands == 1 return at most one hand.
	Detect(frame *gocv.Mat) ([]landmark.HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to track. Letter recognition
	// follows a single hand, so this must be 1.
	MaxHands int `yaml:"max_hands"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `yaml:"min_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`
}

// DefaultConfig returns a Config for single-hand tracking.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.3,
	}
}

// Validate checks that the configuration describes single-hand tracking with
// sane confidence values.
func (c Config) Validate() error {
	if c.MaxHands != 1 {
		return fmt.Errorf("max_hands must be 1, got %d", c.MaxHands)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be between 0 and 1, got %f", c.MinConfidence)
	}
	if c.MinTrackingConf < 0 || c.MinTrackingConf > 1 {
		return fmt.Errorf("min_tracking_confidence must be between 0 and 1, got %f", c.MinTrackingConf)
	}
	return nil
}
