// Package tray provides the system tray menu of the recognizer.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/vocalize/internal/gesture"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle func(enabled bool)
	onOpen   func()
	onQuit   func()
	enabled  bool
	present  bool
	last     gesture.Label
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuHand   *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a Tray showing the given recognition state.
func New(enabled bool) *Tray {
	return &Tray{enabled: enabled}
}

// OnToggle sets the callback called with the new state when recognition is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback for the "Open Dashboard" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It blocks until Quit is called and must run
// on the main goroutine on macOS.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Vocalize")
	systray.SetTooltip("Vocalize fingerspelling recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle recognition")
	systray.AddSeparator()

	t.menuHand = systray.AddMenuItem(handTitle(t.present), "Hand presence")
	t.menuHand.Disable()
	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Last recognized letter")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Vocalize")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetEnabled updates the displayed state without calling OnToggle.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// SetLastLetter updates the last letter display in the menu.
func (t *Tray) SetLastLetter(l gesture.Label) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = l
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(l))
	}
}

// SetHandPresent updates the hand presence display in the menu.
func (t *Tray) SetHandPresent(present bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.present = present
	if t.menuHand != nil {
		t.menuHand.SetTitle(handTitle(present))
	}
}

// IsEnabled returns the displayed enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// LastLetter returns the displayed last letter.
func (t *Tray) LastLetter() gesture.Label {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// HandPresent returns the displayed hand presence.
func (t *Tray) HandPresent() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.present
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Recognizing"
	}
	return "○ Paused"
}

func handTitle(present bool) string {
	if present {
		return "Hand: in view"
	}
	return "Hand: none"
}

func lastTitle(l gesture.Label) string {
	return "Last: " + l.String()
}
