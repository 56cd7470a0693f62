package trust

import (
	log "github.com/sirupsen/logrus"
)

// Logger tags every message with the subsystem that produced it.  The
// package level mask applies.
type Logger struct {
	entry *log.Entry
}

func For(subsystem string) *Logger {
	return &Logger{entry: log.NewEntry(std).WithField(subsystemField, subsystem)}
}

// With returns a logger that also carries key=value.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Errorf(format string, params ...interface{}) {
	logf(l.entry, ErrorMask, format, params...)
}

func (l *Logger) Warnf(format string, params ...interface{}) {
	logf(l.entry, WarnMask, format, params...)
}

func (l *Logger) Infof(format string, params ...interface{}) {
	logf(l.entry, InfoMask, format, params...)
}

func (l *Logger) Debugf(format string, params ...interface{}) {
	logf(l.entry, DebugMask, format, params...)
}

func (l *Logger) Statsf(category string, format string, params ...interface{}) {
	logf(l.entry.WithField(statsField, category), StatsMask, format, params...)
}
