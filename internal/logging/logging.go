// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2023 HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package logging provides the single hclog.Logger that every component of
// the scheduler derives its named sub-logger from, mirroring the teacher's
// internal/backend/remote-state/oracle_oci/log.go pattern.
package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// EnvLog is the environment variable used to set the logging level, in the
// same spirit as the teacher's TF_LOG.
const EnvLog = "RCA_LOG"

var root = sync.OnceValue(func() hclog.Logger {
	level := hclog.LevelFromString(strings.TrimSpace(os.Getenv(EnvLog)))
	if level == hclog.NoLevel {
		level = hclog.Warn
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:            "rca-scheduler",
		Level:           level,
		IncludeLocation: level <= hclog.Debug,
	})
})

// HCLogger returns the process-wide root logger. Callers should derive a
// named sub-logger from it with Named or With rather than logging directly
// against the root, so that log lines can be attributed to a component.
func HCLogger() hclog.Logger {
	return root()
}

// IsDebugOrHigher reports whether the configured level would emit debug (or
// more verbose) log lines, matching the teacher's logging.IsDebugOrHigher
// used to gate expensive diagnostic formatting.
func IsDebugOrHigher() bool {
	return root().IsDebug() || root().IsTrace()
}
