package capture

import (
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing constants.
const (
	// BlurSize is the Gaussian kernel size applied before differencing.
	BlurSize = 21
	// PixelDiffThreshold is the per-pixel intensity change that counts as changed.
	PixelDiffThreshold = 25
)

// ActivityConfig controls how the polling rate follows scene activity.
type ActivityConfig struct {
	// MotionThreshold is the percentage of changed pixels that counts as motion.
	MotionThreshold float64 `yaml:"motion_threshold"`
	// IdleFPS is used when nothing has moved and no hand was seen for IdleAfter.
	IdleFPS int `yaml:"idle_fps"`
	// ActiveFPS is used while there is motion or a hand in view.
	ActiveFPS int           `yaml:"active_fps"`
	IdleAfter time.Duration `yaml:"idle_after"`
}

// DefaultActivityConfig returns 1% motion, 5 fps idle, 15 fps active, 2s idle delay.
func DefaultActivityConfig() ActivityConfig {
	return ActivityConfig{
		MotionThreshold: 1.0,
		IdleFPS:         5,
		ActiveFPS:       15,
		IdleAfter:       2 * time.Second,
	}
}

// Validate checks the configuration.
func (c ActivityConfig) Validate() error {
	if c.MotionThreshold <= 0 {
		return fmt.Errorf("motion_threshold must be positive, got %f", c.MotionThreshold)
	}
	if c.IdleFPS <= 0 || c.ActiveFPS < c.IdleFPS {
		return fmt.Errorf("need 0 < idle_fps <= active_fps, got %d and %d", c.IdleFPS, c.ActiveFPS)
	}
	if c.IdleAfter <= 0 {
		return fmt.Errorf("idle_after must be positive, got %s", c.IdleAfter)
	}
	return nil
}

// ActivityMonitor picks a frame rate from scene activity. Every frame is
// still processed; a quiet scene is only sampled less often, so a held pose
// keeps being classified.
type ActivityMonitor struct {
	cfg ActivityConfig

	mu           sync.Mutex
	prevGray     gocv.Mat
	initialized  bool
	active       bool
	lastActivity time.Time
}

// NewActivityMonitor creates a monitor that starts in idle mode.
func NewActivityMonitor(cfg ActivityConfig) *ActivityMonitor {
	return &ActivityMonitor{
		cfg:      cfg,
		prevGray: gocv.NewMat(),
	}
}

// Observe folds a frame into the monitor and returns the frame rate to use.
// handSeen keeps the monitor active even if the hand is perfectly still.
func (m *ActivityMonitor) Observe(frame *gocv.Mat, handSeen bool, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	moved := false
	if frame != nil && !frame.Empty() {
		moved = m.changedPercent(frame) > m.cfg.MotionThreshold
	}

	if moved || handSeen {
		m.lastActivity = now
		m.active = true
	} else if m.active && now.Sub(m.lastActivity) > m.cfg.IdleAfter {
		m.active = false
	}

	return m.fps()
}

// FPS returns the frame rate for the current mode.
func (m *ActivityMonitor) FPS() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps()
}

// Active reports whether the monitor is in active mode.
func (m *ActivityMonitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Close releases the stored baseline frame.
func (m *ActivityMonitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	m.initialized = false
	m.active = false
}

func (m *ActivityMonitor) fps() int {
	if m.active {
		return m.cfg.ActiveFPS
	}
	return m.cfg.IdleFPS
}

// changedPercent returns the share of pixels, in percent, that differ from
// the previous frame after grayscale conversion and blurring. The first
// frame only sets the baseline and reports 0.
func (m *ActivityMonitor) changedPercent(frame *gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: BlurSize, Y: BlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, PixelDiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0
	blurred.CopyTo(&m.prevGray)

	return changed
}
