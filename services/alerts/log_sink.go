package alerts

import "github.com/sirupsen/logrus"

// LogSink writes alerts to a logrus logger, one line per alert.
type LogSink struct {
	entry *logrus.Entry
}

func NewLogSink(entry *logrus.Entry) *LogSink {
	return &LogSink{entry: entry}
}

func (s *LogSink) Raise(a Alert) {
	s.entry.WithFields(logrus.Fields{
		"alert_id": a.ID.String(),
		"kind":     string(a.Kind),
		"source":   a.Source,
	}).Log(levelOf(a.Severity), a.Message)
}

func levelOf(sev Severity) logrus.Level {
	switch sev {
	case Error:
		return logrus.ErrorLevel
	case Warning:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}
