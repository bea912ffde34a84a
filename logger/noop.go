package logger

import "fmt"

// noop discards every log call except Fatal/Fatalf. Used whenever a
// component is constructed without an explicit Logger.
type noop struct{}

// NoOp returns a Logger that discards Info/Error but still panics on
// Fatal/Fatalf, so an Internal-tier error is never silently swallowed.
func NoOp() Logger { return noop{} }

func (noop) Info(args ...interface{})                  {}
func (noop) Infof(format string, args ...interface{})  {}
func (noop) Error(args ...interface{})                 {}
func (noop) Errorf(format string, args ...interface{}) {}
func (noop) Fatal(args ...interface{})                 { panic(fmt.Sprint(args...)) }
func (noop) Fatalf(format string, args ...interface{}) { panic(fmt.Sprintf(format, args...)) }
