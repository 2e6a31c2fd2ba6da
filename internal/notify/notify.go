// Package notify surfaces export outcomes to the user.
package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"

	"github.com/heimdex/heimdex-exporter/internal/logging"
)

const appTitle = "Heimdex Exporter"

// Func adapts a function to the export.Notifier interface.
type Func func(message string)

func (f Func) Notify(message string) {
	f(message)
}

// Notifier is the capability every implementation here provides.
type Notifier interface {
	Notify(message string)
}

// LogNotifier records user notifications in the structured log. It is the
// only notifier in headless mode.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.WithComponent(logger, "notify")}
}

func (n *LogNotifier) Notify(message string) {
	n.logger.Info("user notification", "message", message)
}

type alertFunc func(title, message string) error

// DesktopNotifier raises an OS-level alert.
type DesktopNotifier struct {
	alert  alertFunc
	logger *slog.Logger
}

func NewDesktopNotifier(logger *slog.Logger) *DesktopNotifier {
	beeep.AppName = appTitle
	return &DesktopNotifier{
		alert: func(title, message string) error {
			return beeep.Alert(title, message, "")
		},
		logger: logging.WithComponent(logger, "notify"),
	}
}

func (n *DesktopNotifier) Notify(message string) {
	if err := n.alert(appTitle, message); err != nil {
		n.logger.Warn("desktop alert failed", "error", err, "message", message)
	}
}

// Multi fans a notification out to several notifiers, in order.
type Multi []Notifier

func (m Multi) Notify(message string) {
	for _, n := range m {
		n.Notify(message)
	}
}
