// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package main

// Version is set at build time via -ldflags; it defaults to "dev" for
// local builds, matching the teacher's own version.Version pattern.
var Version = "dev"
