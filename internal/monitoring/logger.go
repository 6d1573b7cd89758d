// Package monitoring holds the diagnostic logger shared by the servosphere
// packages and command.
package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Elapsed logs how long the step named by what took since start. Use it as
// defer monitoring.Elapsed("derive", time.Now()).
func Elapsed(what string, start time.Time) {
	Logf("%s took %s", what, time.Since(start).Round(time.Millisecond))
}
