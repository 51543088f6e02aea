package app

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ayusman/vocalize/internal/capture"
	"github.com/ayusman/vocalize/internal/detector"
	"github.com/ayusman/vocalize/internal/landmark"
)

// CameraSource turns camera frames into at most one hand per call.
// It implements pipeline.Source and pipeline.Pacer.
type CameraSource struct {
	camera   capture.Camera
	detector detector.Detector
	smoother *detector.Smoother
	activity *capture.ActivityMonitor
	clock    clockwork.Clock
	logger   *slog.Logger

	mu  sync.Mutex
	fps int
}

// NewCameraSource wires the capture chain. smoother and activity may be nil;
// without an activity monitor the source keeps the camera's frame rate.
func NewCameraSource(cam capture.Camera, det detector.Detector, smoother *detector.Smoother, activity *capture.ActivityMonitor, clock clockwork.Clock, logger *slog.Logger) *CameraSource {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	fps := cam.FPS()
	if activity != nil {
		fps = activity.FPS()
	}
	return &CameraSource{
		camera:   cam,
		detector: det,
		smoother: smoother,
		activity: activity,
		clock:    clock,
		logger:   logger,
		fps:      fps,
	}
}

// Next reads one frame and returns the most confident hand in it, or nil.
func (s *CameraSource) Next() (*landmark.HandLandmarks, error) {
	frame, err := s.camera.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	hands, err := s.detector.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detect hands: %w", err)
	}

	hand := s.pick(hands)

	if s.activity != nil {
		s.setFPS(s.activity.Observe(frame, hand != nil, s.clock.Now()))
	}

	if s.smoother != nil {
		hand, err = s.smoother.Smooth(hand)
		if err != nil {
			return nil, err
		}
	}
	return hand, nil
}

// Interval returns the polling interval for the current activity level.
func (s *CameraSource) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fps <= 0 {
		return time.Second / capture.DefaultFPS
	}
	return time.Second / time.Duration(s.fps)
}

// pick keeps only the highest-score hand.
func (s *CameraSource) pick(hands []landmark.HandLandmarks) *landmark.HandLandmarks {
	if len(hands) == 0 {
		return nil
	}
	if len(hands) > 1 {
		s.logger.Debug("multiple hands detected, using the most confident", "count", len(hands))
	}
	best := 0
	for i := range hands {
		if hands[i].Score > hands[best].Score {
			best = i
		}
	}
	return hands[best].Clone()
}

func (s *CameraSource) setFPS(fps int) {
	s.mu.Lock()
	changed := fps != s.fps
	s.fps = fps
	s.mu.Unlock()

	if changed {
		s.camera.SetFPS(fps)
		s.logger.Info("capture rate changed", "fps", fps)
	}
}
