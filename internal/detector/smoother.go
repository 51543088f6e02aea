package detector

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"

	"github.com/ayusman/vocalize/internal/landmark"
)

// SmootherConfig holds the Kalman filter parameters used for landmark smoothing.
type SmootherConfig struct {
	Enabled          bool    `yaml:"enabled"`
	ProcessNoise     float64 `yaml:"process_noise"`
	MeasurementNoise float64 `yaml:"measurement_noise"`
}

// DefaultSmootherConfig returns smoothing disabled with parameters tuned for
// normalized coordinates at webcam frame rates.
func DefaultSmootherConfig() SmootherConfig {
	return SmootherConfig{
		Enabled:          false,
		ProcessNoise:     0.5,
		MeasurementNoise: 0.01,
	}
}

// Smoother runs one 2-D Kalman filter per landmark. Z passes through
// unchanged. It is not safe for concurrent use.
type Smoother struct {
	config  SmootherConfig
	filters []*kalman_filter.Kalman2D
}

// NewSmoother creates a smoother. Filters are seeded from the first frame.
func NewSmoother(config SmootherConfig) *Smoother {
	return &Smoother{config: config}
}

// Smooth returns a filtered copy of the hand. Frames that do not hold exactly
// landmark.NumLandmarks points are returned untouched so validation can reject them.
func (s *Smoother) Smooth(hand *landmark.HandLandmarks) (*landmark.HandLandmarks, error) {
	if hand == nil {
		s.Reset()
		return nil, nil
	}
	if len(hand.Points) != landmark.NumLandmarks {
		return hand, nil
	}

	out := hand.Clone()
	if s.filters == nil {
		s.filters = make([]*kalman_filter.Kalman2D, landmark.NumLandmarks)
		for i, p := range hand.Points {
			s.filters[i] = kalman_filter.NewKalman2D(1.0, 0, 0,
				s.config.ProcessNoise, s.config.MeasurementNoise, s.config.MeasurementNoise,
				kalman_filter.WithState2D(p.X, p.Y))
		}
		return out, nil
	}

	for i, p := range hand.Points {
		kf := s.filters[i]
		kf.Predict()
		if err := kf.Update(p.X, p.Y); err != nil {
			return nil, errors.Wrapf(err, "smooth landmark %d", i)
		}
		x, y := kf.GetState()
		out.Points[i].X = x
		out.Points[i].Y = y
	}
	return out, nil
}

// Reset drops filter state, e.g. when the hand leaves the frame.
func (s *Smoother) Reset() {
	s.filters = nil
}
