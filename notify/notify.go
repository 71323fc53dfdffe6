// Package notify carries user-visible operation outcomes out of the
// controller. Delivery is fire-and-forget; the controller never consumes a
// return value.
package notify

import "github.com/rs/zerolog"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

type Notice struct {
	Title       string
	Description string
	Severity    Severity
}

type Notifier interface {
	Notify(notice Notice)
}

// LogNotifier writes notices to a structured logger. It is the default sink
// when no UI-facing adapter is wired in.
type LogNotifier struct {
	logger zerolog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (ln *LogNotifier) Notify(notice Notice) {
	event := ln.logger.Info()
	if notice.Severity == SeverityError {
		event = ln.logger.Warn()
	}
	event.
		Str("severity", string(notice.Severity)).
		Str("title", notice.Title).
		Msg(notice.Description)
}
