// Package errs defines the sentinel error kinds linepipe distinguishes when
// deciding propagation policy (see §7 of the design notes): Usage and Parse
// abort before any line is processed, Runtime and Bridge are per-line and
// governed by the fail-fast policy, IO is handled per-source.
package errs

import "errors"

var (
	// ErrUsage marks self-contradictory CLI arguments.
	ErrUsage = errors.New("usage error")

	// ErrParse marks a stage, include, or script file that failed to compile.
	ErrParse = errors.New("parse error")

	// ErrRuntime marks a script that raised while evaluating a line.
	ErrRuntime = errors.New("runtime error")

	// ErrBridge marks a value that could not cross the host/script boundary.
	ErrBridge = errors.New("bridge error")

	// ErrIO marks a failed read of an input source or write to the sink.
	ErrIO = errors.New("io error")
)
