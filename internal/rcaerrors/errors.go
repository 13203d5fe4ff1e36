// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2023 HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package rcaerrors implements the four-member error taxonomy from the
// scheduler's error handling design: ConfigurationError is fatal to
// construction, while EvaluationError, IOError, and LifecycleError are all
// logged and suppressed by the Tick Executor so that a single failure never
// escapes run().
package rcaerrors

import (
	"github.com/hashicorp/errwrap"
	"github.com/pkg/errors"
)

// kind tags one of the four taxonomy members onto a wrapped error so that
// IsConfigurationError and friends can recognize it later, including across
// further wrapping with errwrap or pkg/errors.
type kind string

const (
	kindConfiguration kind = "configuration"
	kindEvaluation     kind = "evaluation"
	kindIO             kind = "io"
	kindLifecycle      kind = "lifecycle"
)

type taggedError struct {
	kind kind
	err  error
}

func (e *taggedError) Error() string { return e.err.Error() }
func (e *taggedError) Unwrap() error { return e.err }
func (e *taggedError) Cause() error  { return e.err }

// ConfigurationError wraps an error raised from the scheduler's constructor
// because a vertex's configuration is missing or invalid. It propagates to
// the caller unmodified and is fatal to scheduler construction.
func ConfigurationError(format string, args ...any) error {
	return &taggedError{kind: kindConfiguration, err: errors.Errorf(format, args...)}
}

// WrapConfigurationError tags an existing error (e.g. from an HCL parse) as a
// ConfigurationError, preserving it as the cause via pkg/errors.
func WrapConfigurationError(err error, message string) error {
	return &taggedError{kind: kindConfiguration, err: errors.Wrap(err, message)}
}

// EvaluationError tags a failure that occurred inside a tasklet's evaluator.
// The Tasklet catches it, logs it, and yields an empty flow unit instead of
// propagating it.
func EvaluationError(vertex string, err error) error {
	return &taggedError{kind: kindEvaluation, err: errwrap.Wrapf("evaluator for vertex "+vertex+" failed: {{err}}", err)}
}

// IOError tags a failure from the metric source, the persistence store, or
// the network facade. Like EvaluationError, it is logged and suppressed.
func IOError(component string, err error) error {
	return &taggedError{kind: kindIO, err: errwrap.Wrapf(component+": {{err}}", err)}
}

// LifecycleError tags a worker pool submission refusal observed at a tick
// boundary. The tick that produced it is considered degraded but the
// scheduler continues running.
func LifecycleError(err error) error {
	return &taggedError{kind: kindLifecycle, err: errwrap.Wrapf("worker pool rejected task: {{err}}", err)}
}

func kindOf(err error) (kind, bool) {
	var te *taggedError
	if errors.As(err, &te) {
		return te.kind, true
	}
	return "", false
}

// IsConfigurationError reports whether err (or something it wraps) is a
// ConfigurationError.
func IsConfigurationError(err error) bool { k, ok := kindOf(err); return ok && k == kindConfiguration }

// IsEvaluationError reports whether err (or something it wraps) is an
// EvaluationError.
func IsEvaluationError(err error) bool { k, ok := kindOf(err); return ok && k == kindEvaluation }

// IsIOError reports whether err (or something it wraps) is an IOError.
func IsIOError(err error) bool { k, ok := kindOf(err); return ok && k == kindIO }

// IsLifecycleError reports whether err (or something it wraps) is a
// LifecycleError.
func IsLifecycleError(err error) bool { k, ok := kindOf(err); return ok && k == kindLifecycle }
