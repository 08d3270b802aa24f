package log

import "github.com/cyclopcam/logs"

// PrefixLogger writes to the underlying log, but all messages are prefixed with a string of your choice
type PrefixLogger struct {
	Log    logs.Log
	Prefix string
}

// Create a new PrefixLogger. A space is appended to 'prefix'.
func NewPrefixLogger(log logs.Log, prefix string) *PrefixLogger {
	return &PrefixLogger{
		Log:    log,
		Prefix: prefix + " ",
	}
}

// Close does not close the underlying log, which is shared with other components
func (l *PrefixLogger) Close() {
}

func (l *PrefixLogger) Debugf(format string, a ...any) {
	l.Log.Debugf(l.Prefix+format, a...)
}

func (l *PrefixLogger) Infof(format string, a ...any) {
	l.Log.Infof(l.Prefix+format, a...)
}

func (l *PrefixLogger) Warnf(format string, a ...any) {
	l.Log.Warnf(l.Prefix+format, a...)
}

func (l *PrefixLogger) Errorf(format string, a ...any) {
	l.Log.Errorf(l.Prefix+format, a...)
}

func (l *PrefixLogger) Criticalf(format string, a ...any) {
	l.Log.Criticalf(l.Prefix+format, a...)
}
