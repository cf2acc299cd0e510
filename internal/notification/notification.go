package notification

import (
	"fmt"
	"runtime"

	"github.com/dooshek/nicoverlay/internal/logger"
)

const appName = "nicoverlay"

// Notifier defines the interface for system notifications
type Notifier interface {
	NotifyStarted(detail string) error
	NotifyDeviceUnavailable(err error) error
	Notify(title, message string) error
}

// SilentNotifier is a no-op implementation for --quiet runs and tests
type SilentNotifier struct{}

func NewSilent() Notifier {
	return &SilentNotifier{}
}

func (s *SilentNotifier) NotifyStarted(detail string) error        { return nil }
func (s *SilentNotifier) NotifyDeviceUnavailable(err error) error { return nil }
func (s *SilentNotifier) Notify(title, message string) error      { return nil }

type baseNotifier struct {
	platform platformNotifier
}

type platformNotifier interface {
	send(title, message string) error
}

// New creates a new platform-specific notification service
func New() Notifier {
	logger.Debug("Initializing notification system")
	var platform platformNotifier
	switch runtime.GOOS {
	case "darwin":
		logger.Debug("Using Darwin (macOS) notifier")
		platform = newDarwinNotifier()
	default:
		logger.Debug("Using Linux notifier")
		platform = newLinuxNotifier()
	}
	return &baseNotifier{platform: platform}
}

func (n *baseNotifier) NotifyStarted(detail string) error {
	return n.Notify("💬 Comment overlay started", detail)
}

func (n *baseNotifier) NotifyDeviceUnavailable(err error) error {
	return n.Notify("🎙️ Microphone unavailable", formatDeviceMessage(err))
}

func (n *baseNotifier) Notify(title, message string) error {
	return n.platform.send(title, message)
}

func formatDeviceMessage(err error) string {
	return fmt.Sprintf("Bursts are disabled: %v", err)
}
