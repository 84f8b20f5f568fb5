// Package notifier is the user-facing toast sink. Sync runs in the
// background, so everything it has to say is a transient notification,
// never a blocking prompt.
package notifier

import (
	"github.com/warestage/loadsheet-client/pkg/logger"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notifier accepts transient user-facing notifications.
type Notifier interface {
	Notify(severity Severity, message string, detail string)
}

// LogNotifier renders notifications through the application logger. The
// interactive shell installs its own notifier that writes to the terminal.
type LogNotifier struct {
	log logger.LoggerInterface
}

func NewLogNotifier(log logger.LoggerInterface) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(severity Severity, message string, detail string) {
	if detail != "" {
		n.log.Printf("[%s] %s: %s", severity, message, detail)
		return
	}
	n.log.Printf("[%s] %s", severity, message)
}
