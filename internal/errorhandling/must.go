// Package errorhandling converts between Go's two error-signaling
// mechanisms. Must/Must2 go error-to-panic, for a caller that has already
// decided a failure is unrecoverable and just wants it to stop execution
// loudly; Safe2 (safe.go) goes the other way, and is the one cmd/rca-scheduler
// actually reaches for — runTick uses it to turn a panic escaping sched.Run
// on the driver goroutine back into an rcaerrors.LifecycleError so the daemon
// keeps running instead of crashing. Panics inside evaluators, which run on
// worker-pool goroutines, are not caught this way.
package errorhandling

// Must panics if err is non-nil.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}

// Must2 is Must for a function returning a value alongside its error,
// returning the value when err is nil.
func Must2[T any](value T, err error) T {
	Must(err)
	return value
}
