package trust

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

type MaskLevel int

const (
	Nothing   MaskLevel = 0x0
	ErrorMask MaskLevel = 0x1
	WarnMask  MaskLevel = 0x2
	InfoMask  MaskLevel = 0x4
	DebugMask MaskLevel = 0x8
	StatsMask MaskLevel = 0x10
	fatalMask MaskLevel = 0x80
)

var level = fatalMask | StatsMask | ErrorMask | WarnMask | InfoMask

var std = newBackend(os.Stdout)

func newBackend(w io.Writer) *log.Logger {
	l := log.New()
	l.SetOutput(w)
	l.SetFormatter(&prefixFormatter{})
	l.SetLevel(log.TraceLevel) //masking is done here, not by logrus
	return l
}

// SetLevel lets you set an error mask directly. You can pass in something like
// ErrorMask | DebugMask to control exactly what gets printed.  It returns the
// previous mask.
func SetLevel(mask MaskLevel) MaskLevel {
	if mask&0x1f == 0 {
		std.Warnf("trust.SetLevel is turning off log messages")
	}
	r := level & 0x1f
	level = mask&0x1f | fatalMask
	return r
}

func Level() MaskLevel {
	return level
}

// ParseLevel turns a name like "debug" into the mask that shows that level
// and everything more severe.
func ParseLevel(s string) (MaskLevel, error) {
	switch s {
	case "none":
		return Nothing, nil
	case "error":
		return ErrorMask, nil
	case "warn":
		return ErrorMask | WarnMask, nil
	case "info":
		return ErrorMask | WarnMask | InfoMask, nil
	case "debug":
		return ErrorMask | WarnMask | InfoMask | DebugMask, nil
	case "stats":
		return ErrorMask | WarnMask | InfoMask | DebugMask | StatsMask, nil
	}
	return Nothing, fmt.Errorf("unknown log level %q", s)
}

func LevelToString() string {
	result := ""
	if level&ErrorMask > 0 {
		result += "error "
	}
	if level&WarnMask > 0 {
		result += "warn "
	}
	if level&InfoMask > 0 {
		result += "info "
	}
	if level&DebugMask > 0 {
		result += "debug "
	}
	if level&StatsMask > 0 {
		result += "stats "
	}
	if result == "" {
		return result
	}
	return result[:len(result)-1]
}

// SetOutput sends every later message to w.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// SetExitFunc replaces os.Exit for Fatalf.
func SetExitFunc(fn func(int)) {
	std.ExitFunc = fn
}

func logf(e *log.Entry, l MaskLevel, format string, params ...interface{}) {
	if level&l == 0 {
		return
	}
	switch {
	case l&ErrorMask > 0, l&fatalMask > 0:
		e.Errorf(format, params...)
	case l&WarnMask > 0:
		e.Warnf(format, params...)
	case l&InfoMask > 0:
		e.Infof(format, params...)
	case l&DebugMask > 0:
		e.Debugf(format, params...)
	case l&StatsMask > 0:
		e.Tracef(format, params...)
	}
}

//Fatalf prints the given log message (format + params) and then
//exits with the exitCode provided.  Fatalf is not maskable.
func Fatalf(exitCode int, format string, params ...interface{}) {
	logf(log.NewEntry(std).WithField(fatalField, exitCode), fatalMask, format, params...)
	std.Exit(exitCode)
}

//Errorf prints the given log message (format + params) using the ErrorMask level.
func Errorf(format string, params ...interface{}) {
	logf(log.NewEntry(std), ErrorMask, format, params...)
}

//Warnf prints the given log message (format + params) using the WarnMask level.
func Warnf(format string, params ...interface{}) {
	logf(log.NewEntry(std), WarnMask, format, params...)
}

//Infof prints the given log message (format + params) using the InfoMask level.
func Infof(format string, params ...interface{}) {
	logf(log.NewEntry(std), InfoMask, format, params...)
}

//Debugf prints the given log message (format + params) using the DebugMask level.
func Debugf(format string, params ...interface{}) {
	logf(log.NewEntry(std), DebugMask, format, params...)
}

//Statsf prints the given log message (format + params) using the StatsMask level and
//takes an extra parameter that will be visible in the log message as the category
//of stats that is reported.
func Statsf(category string, format string, params ...interface{}) {
	logf(log.NewEntry(std).WithField(statsField, category), StatsMask, format, params...)
}
