package log

import (
	"fmt"
	"strings"

	"github.com/cyclopcam/logs"
)

type Level int

const (
	LevelDebug    Level = iota // information that only a programmer will understand
	LevelInfo                  // information that a non-programmer might be interested in
	LevelWarn                  // speeds up tracking down issues, once you know about them
	LevelError                 // should not have happened
	LevelCritical              // wake somebody up
)

// ParseLevel parses LOG_LEVEL values such as DEBUG, INFO, WARNING, ERROR.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "CRITICAL":
		return LevelCritical, nil
	}
	return LevelInfo, fmt.Errorf("Unknown log level '%v'", s)
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARNING"
	case LevelError:
		return "ERROR"
	}
	return "CRITICAL"
}

// LevelLogger drops messages below MinLevel, and forwards the rest to Log
type LevelLogger struct {
	Log      logs.Log
	MinLevel Level
}

func NewLevelLogger(log logs.Log, minLevel Level) *LevelLogger {
	return &LevelLogger{
		Log:      log,
		MinLevel: minLevel,
	}
}

func (l *LevelLogger) Close() {
	l.Log.Close()
}

func (l *LevelLogger) Debugf(format string, a ...any) {
	if l.MinLevel <= LevelDebug {
		l.Log.Debugf(format, a...)
	}
}

func (l *LevelLogger) Infof(format string, a ...any) {
	if l.MinLevel <= LevelInfo {
		l.Log.Infof(format, a...)
	}
}

func (l *LevelLogger) Warnf(format string, a ...any) {
	if l.MinLevel <= LevelWarn {
		l.Log.Warnf(format, a...)
	}
}

func (l *LevelLogger) Errorf(format string, a ...any) {
	if l.MinLevel <= LevelError {
		l.Log.Errorf(format, a...)
	}
}

func (l *LevelLogger) Criticalf(format string, a ...any) {
	l.Log.Criticalf(format, a...)
}
