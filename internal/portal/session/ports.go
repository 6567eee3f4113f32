package session

import "log/slog"

// Well-known portal locations the controller can ask the shell to visit.
const (
	SignInLocation       = "/auth/login"
	UnauthorizedLocation = "/unauthorized"
)

// Navigator receives navigation intents. The controller never touches the
// environment directly; the hosting shell decides what "navigating" means
// (an HTTP redirect, a headless log line, a test recording).
type Navigator interface {
	NavigateTo(location string)
}

// Notifier receives transient user-facing notifications for explicit
// actions. Background failures are logged, never notified.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// LogNavigator is the headless default: navigation intents become log lines.
type LogNavigator struct {
	Logger *slog.Logger
}

func (n LogNavigator) NavigateTo(location string) {
	n.Logger.Info("navigation requested", "location", location)
}

// LogNotifier is the headless default for notifications.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Success(message string) {
	n.Logger.Info("notify", "kind", "success", "message", message)
}

func (n LogNotifier) Error(message string) {
	n.Logger.Warn("notify", "kind", "error", "message", message)
}
