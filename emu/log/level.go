package log

import "gopkg.in/Sirupsen/logrus.v0"

// Level mirrors logrus.Level so callers of this package never need to
// import logrus directly.
type Level uint32

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func (lvl Level) logrus() logrus.Level {
	return logrus.Level(lvl)
}

// SetLevel sets the minimum level logged regardless of per-module debug
// gating (WarnLevel and above always pass Module.Enabled).
func SetLevel(lvl Level) {
	logrus.SetLevel(lvl.logrus())
}

// Disable turns off all logging output.
func Disable() {
	logrus.SetOutput(disabledWriter{})
}

type disabledWriter struct{}

func (disabledWriter) Write(p []byte) (int, error) { return len(p), nil }

// ModuleNames returns the names of every registered module, in registration
// order, for use in CLI help text.
func ModuleNames() []string {
	return append([]string(nil), modNames[1:]...)
}
