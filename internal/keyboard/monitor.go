// Package keyboard listens for a global hotkey on the Linux input devices, so
// a burst can be triggered while another window has focus.
package keyboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarinX/keylogger"
	"github.com/dooshek/nicoverlay/internal/logger"
)

// Debounce threshold - ignore triggers that come too fast
const debounceInterval = 500 * time.Millisecond

// Monitor calls onTrigger every time the binding is pressed
type Monitor struct {
	binding   KeyBinding
	onTrigger func()

	modifierState ModifierState
	lastTrigger   time.Time

	mu        sync.Mutex
	keyLogger *keylogger.KeyLogger
}

func NewMonitor(binding KeyBinding, onTrigger func()) *Monitor {
	if onTrigger == nil {
		onTrigger = func() {}
	}
	return &Monitor{binding: binding, onTrigger: onTrigger}
}

// Start opens the first keyboard device and listens until ctx is done or Stop
// is called. Reading the devices needs membership of the input group.
func (m *Monitor) Start(ctx context.Context) error {
	device := keylogger.FindKeyboardDevice()
	if device == "" {
		return fmt.Errorf("no keyboard devices found")
	}

	k, err := keylogger.New(device)
	if err != nil {
		if strings.Contains(err.Error(), "permission denied") {
			return fmt.Errorf("cannot access keyboard device %s, add yourself to the input group: %w", device, err)
		}
		return fmt.Errorf("error initializing keylogger: %w", err)
	}

	m.mu.Lock()
	m.keyLogger = k
	m.mu.Unlock()

	logger.Debugf("Listening for %s on %s", m.binding, device)

	events := k.Read()
	go func() {
		for {
			select {
			case <-ctx.Done():
				m.Stop()
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if e.Type != keylogger.EvKey {
					continue
				}
				if e.KeyPress() {
					m.handle(e.Code, true, time.Now())
				} else if e.KeyRelease() {
					m.handle(e.Code, false, time.Now())
				}
			}
		}
	}()
	return nil
}

// handle folds one key event into the modifier state and reports whether
// the binding fired
func (m *Monitor) handle(code uint16, pressed bool, now time.Time) bool {
	switch code {
	case LeftControl, RightControl:
		m.modifierState.Ctrl = pressed
	case LeftShift, RightShift:
		m.modifierState.Shift = pressed
	case LeftAlt, RightAlt:
		m.modifierState.Alt = pressed
	case LeftSuper, RightSuper:
		m.modifierState.Super = pressed
	default:
		if !pressed || code != m.binding.Code || m.modifierState != m.binding.ModifierState {
			return false
		}
		if !m.lastTrigger.IsZero() && now.Sub(m.lastTrigger) <= debounceInterval {
			logger.Debugf("Ignoring hotkey, %d ms after the previous one", now.Sub(m.lastTrigger).Milliseconds())
			return false
		}
		m.lastTrigger = now
		m.onTrigger()
		return true
	}
	return false
}

// Stop closes the keyboard device; safe to call more than once
func (m *Monitor) Stop() {
	m.mu.Lock()
	k := m.keyLogger
	m.keyLogger = nil
	m.mu.Unlock()

	if k != nil {
		if err := k.Close(); err != nil {
			logger.Warnf("Failed to close keyboard device: %v", err)
		}
		logger.Debugf("Stopped keyboard monitoring")
	}
}
