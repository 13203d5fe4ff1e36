package errorhandling

import "fmt"

// safe2 runs f and returns its result, converting a recovered panic into an
// error rather than letting it unwind further. Used only as the unexported
// core of Safe2.
func safe2[TValue any](f func() (TValue, error)) (result TValue, err error) {
	defer func() {
		var ok bool
		e := recover()
		if e == nil {
			return
		}
		if err, ok = e.(error); !ok {
			err = fmt.Errorf("%v", e)
		}
	}()
	return f()
}

// Safe2 runs f and returns its result or error, converting a recovered
// panic into an error via wrapError rather than letting it escape. This is
// how cmd/rca-scheduler's runTick contains a panic raised by sched.Run: f
// runs sched.Run, and wrapError tags the recovered panic as a
// rcaerrors.LifecycleError so the tick is logged as degraded instead of
// crashing the daemon. Only a panic on the goroutine running f is
// recovered; a panic in an evaluator running on a worker-pool goroutine is
// not.
func Safe2[TValue any](f func() (TValue, error), wrapError func(err error) error) (result TValue, err error) {
	value, err := safe2(f)
	if err != nil {
		return value, wrapError(err)
	}
	return value, nil
}
