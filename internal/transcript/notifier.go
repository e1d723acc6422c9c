package transcript

import "github.com/therealutkarshpriyadarshi/sourcing/internal/logging"

// Notifier surfaces user-facing messages
type Notifier interface {
	Warn(msg string)
	Error(msg string)
}

// LogNotifier writes user-facing messages to the logger
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Warn(msg string) {
	n.logger.Warn(msg)
}

func (n *LogNotifier) Error(msg string) {
	n.logger.Error(msg)
}
