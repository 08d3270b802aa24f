package log

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cyclopcam/logs"
)

// RecordedLine is a single message captured by a Recorder
type RecordedLine struct {
	Level   Level
	Message string
}

// Recorder captures log messages, so that tests can assert on what was logged.
// Messages are also forwarded to Log, if it is not nil.
type Recorder struct {
	Log logs.Log

	lock  sync.Mutex
	lines []RecordedLine
}

func NewRecorder(log logs.Log) *Recorder {
	return &Recorder{Log: log}
}

func (r *Recorder) add(level Level, format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	r.lock.Lock()
	r.lines = append(r.lines, RecordedLine{Level: level, Message: msg})
	r.lock.Unlock()
}

// Lines returns a copy of everything recorded so far
func (r *Recorder) Lines() []RecordedLine {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]RecordedLine(nil), r.lines...)
}

// Count returns the number of recorded messages at 'level' that contain 'substr'
func (r *Recorder) Count(level Level, substr string) int {
	n := 0
	for _, line := range r.Lines() {
		if line.Level == level && strings.Contains(line.Message, substr) {
			n++
		}
	}
	return n
}

func (r *Recorder) Close() {
	if r.Log != nil {
		r.Log.Close()
	}
}

func (r *Recorder) Debugf(format string, a ...any) {
	r.add(LevelDebug, format, a...)
	if r.Log != nil {
		r.Log.Debugf(format, a...)
	}
}

func (r *Recorder) Infof(format string, a ...any) {
	r.add(LevelInfo, format, a...)
	if r.Log != nil {
		r.Log.Infof(format, a...)
	}
}

func (r *Recorder) Warnf(format string, a ...any) {
	r.add(LevelWarn, format, a...)
	if r.Log != nil {
		r.Log.Warnf(format, a...)
	}
}

func (r *Recorder) Errorf(format string, a ...any) {
	r.add(LevelError, format, a...)
	if r.Log != nil {
		r.Log.Errorf(format, a...)
	}
}

func (r *Recorder) Criticalf(format string, a ...any) {
	r.add(LevelCritical, format, a...)
	if r.Log != nil {
		r.Log.Criticalf(format, a...)
	}
}
