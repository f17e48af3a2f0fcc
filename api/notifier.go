package api

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/warp/workorder-engine/production"
)

// LogNotifier delivers deadline alerts as log lines. It is the shipped
// production.Notifier; a UI pulls the same alerts from GET /api/deadlines.
type LogNotifier struct {
	Logger logrus.FieldLogger
}

// NewLogNotifier logs through the standard logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{Logger: logrus.StandardLogger().WithField("component", "notifier")}
}

// Notify logs the alert at the level matching its severity.
func (n *LogNotifier) Notify(_ context.Context, severity production.Severity, title, message string) error {
	entry := n.Logger.WithFields(logrus.Fields{
		"severity": severity,
		"title":    title,
	})
	switch severity {
	case production.SeverityError:
		entry.Error(message)
	case production.SeverityWarning:
		entry.Warn(message)
	default:
		entry.Info(message)
	}
	return nil
}
