// Package logger defines a minimal logging interface so the rest of the
// module doesn't depend directly on any one logging backend.
package logger

// Logger is the logging surface every core component accepts at
// construction time. A nil Logger is replaced with a no-op implementation;
// components never reach for a package-level global.
type Logger interface {
	// Info logs at the info level
	Info(args ...interface{})
	// Infof logs at the info level, with format
	Infof(format string, args ...interface{})
	// Error logs at the error level
	Error(args ...interface{})
	// Errorf logs at the error level, with format
	Errorf(format string, args ...interface{})
	// Fatal logs at the fatal level
	Fatal(args ...interface{})
	// Fatalf logs at the fatal level, with format
	Fatalf(format string, args ...interface{})
}
