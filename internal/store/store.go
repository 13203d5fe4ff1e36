// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package store describes the persistence-store external collaborator: the
// on-disk result store a Local tasklet writes its flow unit to after
// evaluation. Its relational schema is out of scope here (spec §1); this
// package only names the contract and supplies a concrete Postgres-backed
// adapter (see the postgres subpackage) wired from the domain stack.
package store

import (
	"context"

	"github.com/rca-engine/scheduler/internal/flowunit"
)

// Store persists a produced flow unit. Per spec §4.5, write failures are
// non-fatal to the scheduler: callers log and continue rather than
// propagating the error up through a tick.
type Store interface {
	Write(ctx context.Context, unit flowunit.FlowUnit) error
}
