package pipeline

import (
	"context"
	"time"

	"github.com/ayusman/vocalize/internal/landmark"
)

// Source produces at most one hand per call. A nil hand with a nil error
// means no hand is visible.
type Source interface {
	Next() (*landmark.HandLandmarks, error)
}

// Pacer is implemented by sources that want the polling interval adjusted,
// for example to slow down while nothing moves in front of the camera.
type Pacer interface {
	Interval() time.Duration
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() (*landmark.HandLandmarks, error)

// Next calls f.
func (f SourceFunc) Next() (*landmark.HandLandmarks, error) {
	return f()
}

// Run polls src every interval and feeds the result to OnFrame until ctx is
// cancelled. Source errors and invalid frames are logged and the tick is
// skipped. The source is not polled while the driver is stopped.
func (d *Driver) Run(ctx context.Context, src Source, interval time.Duration) error {
	ticker := d.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if !d.Running() {
				continue
			}

			hand, err := src.Next()
			if err != nil {
				d.logger.Warn("reading source", "err", err)
				continue
			}

			// Invalid frames are logged and counted inside OnFrame.
			_ = d.OnFrame(hand)

			if p, ok := src.(Pacer); ok {
				if next := p.Interval(); next > 0 && next != interval {
					interval = next
					ticker.Reset(interval)
					d.logger.Debug("polling interval changed", "interval", interval)
				}
			}
		}
	}
}
