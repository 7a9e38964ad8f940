package format

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Severity classifies a notification. Values outside the known set are
// accepted and rendered upper-cased like any other.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

var upper = cases.Upper(language.AmericanEnglish)

// FormatToast renders "[SEVERITY] message". An empty severity means info.
func FormatToast(message string, severity Severity) string {
	if severity == "" {
		severity = SeverityInfo
	}
	return "[" + upper.String(string(severity)) + "] " + message
}

// Notifier emits toast lines to the diagnostic log. It stands in for a
// visual notification and renders nothing itself.
type Notifier struct {
	log *zap.Logger
}

// NewNotifier returns a Notifier writing to log (discarding when nil).
func NewNotifier(log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{log: log}
}

// Show logs exactly one line for the notification and returns it.
func (n *Notifier) Show(message string, severity Severity) string {
	line := FormatToast(message, severity)
	if ce := n.log.Check(levelFor(severity), line); ce != nil {
		ce.Write()
	}
	return line
}

// Info shows message with the default severity.
func (n *Notifier) Info(message string) string {
	return n.Show(message, SeverityInfo)
}

func levelFor(s Severity) zapcore.Level {
	switch Severity(strings.ToLower(string(s))) {
	case SeverityWarning:
		return zapcore.WarnLevel
	case SeverityError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
