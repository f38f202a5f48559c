package log

import (
	"os"
	"strings"
	"sync/atomic"

	"github.com/tacusci/logging/v2"
)

// Level indexes follow tacusci/logging's ordering, a message is written
// when its level index is at or above the current one.
const (
	silentLevel int32 = iota
	debugLevel
	warnLevel
	infoLevel
	errorLevel
)

var currentLevel int32 = warnLevel

// tacusci's own level is fixed at its most verbose so that filtering only
// ever happens against currentLevel, which can change while logging.
func init() {
	logging.CurrentLoggingLevel = logging.DebugLevel
}

func enabled(level int32) bool {
	current := atomic.LoadInt32(&currentLevel)
	return current != silentLevel && current <= level
}

var Debug = func(format string, a ...interface{}) {
	if enabled(debugLevel) {
		logging.Debug(format, a...) //nolint
	}
}

var Info = func(format string, a ...interface{}) {
	if enabled(infoLevel) {
		logging.Info(format, a...) //nolint
	}
}

var Warn = func(format string, a ...interface{}) {
	if enabled(warnLevel) {
		logging.Warn(format, a...) //nolint
	}
}

var Error = func(format string, a ...interface{}) {
	if enabled(errorLevel) {
		logging.Error(format, a...) //nolint
	}
}

var Fatal = func(format string, a ...interface{}) {
	if enabled(errorLevel) {
		logging.Fatal(format, a...) //nolint
	}
	os.Exit(1)
}

// SetLevel switches the logging level by name, unknown names fall back
// to warn. It is safe to call while other goroutines are logging.
func SetLevel(name string) {
	atomic.StoreInt32(&currentLevel, levelFromName(name))
}

func levelFromName(name string) int32 {
	switch strings.ToLower(name) {
	case "info":
		return infoLevel
	case "warn":
		return warnLevel
	case "debug":
		return debugLevel
	case "silent":
		return silentLevel
	default:
		return warnLevel
	}
}
