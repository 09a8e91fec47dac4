// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import "errors"

// Sentinel errors for the taxonomy described in SPEC_FULL.md §9. Callers
// should compare with errors.Is rather than switching on these directly,
// since the orchestrator wraps them with operation-specific context.
var (
	// ErrQuotaExhausted means a record (or name) could not be stored
	// because its arena ran out of space. Recoverable. RegisterRecord
	// returns it when the name arena is full; that refusal sets no
	// partial-flag bit. A module that returns an error such as this one
	// from Shutdown has its partial-flag bit set in the log header.
	ErrQuotaExhausted = errors.New("ioscribe: quota exhausted")

	// ErrAllocFailure means a scratch allocation failed during shutdown.
	// Unrecoverable: the shutdown pipeline aborts.
	ErrAllocFailure = errors.New("ioscribe: allocation failure")

	// ErrCollectiveFailure means a collective operation failed on at
	// least one rank. All ranks abort the shutdown pipeline.
	ErrCollectiveFailure = errors.New("ioscribe: collective operation failed")

	// ErrCompressionFailure is treated as ErrCollectiveFailure for
	// propagation purposes (SPEC_FULL.md §9); kept distinct so callers
	// can tell the two apart when it matters.
	ErrCompressionFailure = errors.New("ioscribe: compression failure")

	// ErrNotInitialized is returned by facade operations invoked before
	// Initialize or after Shutdown.
	ErrNotInitialized = errors.New("ioscribe: runtime not initialized")

	// ErrModuleAlreadyRegistered is returned by RegisterModule when the
	// slot for the given ModuleID is already occupied.
	ErrModuleAlreadyRegistered = errors.New("ioscribe: module already registered")

	// ErrModuleIDRange is returned when a ModuleID is >= MaxModules.
	ErrModuleIDRange = errors.New("ioscribe: module id out of range")

	// ErrEmptyLogName means rank 0 could not determine a log file path
	// (no log file override set and an empty executable name).
	ErrEmptyLogName = errors.New("ioscribe: unable to determine log file path")
)

// warnf prints a single human-readable diagnostic line to os.Stderr,
// prefixed "ioscribe: ", matching the teacher's direct use of the stdlib
// log package for diagnostics (fuse/server.go, fuse/bufferpool.go) and the
// one-line-per-failure contract of SPEC_FULL.md §9.
func warnf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}
