package app

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"gocv.io/x/gocv"

	"github.com/ayusman/vocalize/internal/capture"
	"github.com/ayusman/vocalize/internal/detector"
	"github.com/ayusman/vocalize/internal/landmark"
	"github.com/ayusman/vocalize/internal/landmark/landmarktest"
)

func newMockChain(t *testing.T) (*capture.MockCamera, *detector.MockDetector) {
	t.Helper()
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	cam := capture.NewMockCamera([]*gocv.Mat{&frame}, true)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return cam, detector.NewMockDetector()
}

func TestCameraSource_PicksMostConfidentHand(t *testing.T) {
	cam, det := newMockChain(t)

	low, _ := landmarktest.LetterLandmarks("A")
	low.Score = 0.6
	high, _ := landmarktest.LetterLandmarks("B")
	high.Score = 0.9
	det.SetHands([]landmark.HandLandmarks{low, high})

	src := NewCameraSource(cam, det, nil, nil, nil, quietLogger())
	hand, err := src.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if hand == nil || hand.Score != 0.9 {
		t.Fatalf("expected the 0.9 hand, got %+v", hand)
	}
}

func TestCameraSource_NoHand(t *testing.T) {
	cam, det := newMockChain(t)

	src := NewCameraSource(cam, det, detector.NewSmoother(detector.SmootherConfig{Enabled: true, ProcessNoise: 0.5, MeasurementNoise: 0.01}), nil, nil, quietLogger())
	hand, err := src.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if hand != nil {
		t.Errorf("expected no hand, got %+v", hand)
	}
	if det.Calls() != 1 {
		t.Errorf("expected 1 detect call, got %d", det.Calls())
	}
}

func TestCameraSource_Errors(t *testing.T) {
	t.Run("camera closed", func(t *testing.T) {
		cam := capture.NewMockCamera(nil, false)
		src := NewCameraSource(cam, detector.NewMockDetector(), nil, nil, nil, quietLogger())
		if _, err := src.Next(); !errors.Is(err, capture.ErrCameraNotOpen) {
			t.Errorf("expected ErrCameraNotOpen, got %v", err)
		}
	})

	t.Run("detector error", func(t *testing.T) {
		cam, det := newMockChain(t)
		boom := errors.New("boom")
		det.SetError(boom)
		src := NewCameraSource(cam, det, nil, nil, nil, quietLogger())
		if _, err := src.Next(); !errors.Is(err, boom) {
			t.Errorf("expected detector error, got %v", err)
		}
	})
}

func TestCameraSource_PacesWithActivity(t *testing.T) {
	cam, det := newMockChain(t)
	fc := clockwork.NewFakeClock()
	activity := capture.NewActivityMonitor(capture.DefaultActivityConfig())
	defer activity.Close()

	src := NewCameraSource(cam, det, nil, activity, fc, quietLogger())
	if got := src.Interval(); got != time.Second/5 {
		t.Errorf("expected idle interval 200ms, got %s", got)
	}

	hand, _ := landmarktest.LetterLandmarks("L")
	det.SetHands([]landmark.HandLandmarks{hand})
	if _, err := src.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got := src.Interval(); got != time.Second/15 {
		t.Errorf("expected active interval, got %s", got)
	}
	if cam.FPS() != 15 {
		t.Errorf("expected camera at 15 fps, got %d", cam.FPS())
	}

	// The scene stays static and the hand leaves.
	det.SetHands(nil)
	fc.Advance(3 * time.Second)
	if _, err := src.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got := src.Interval(); got != time.Second/5 {
		t.Errorf("expected idle interval after inactivity, got %s", got)
	}
}
