// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package collective abstracts the group-communication substrate that the
// shutdown orchestrator drives: barrier, broadcast, reduce, all-reduce,
// inclusive scan, and collective file write-at-offset (spec.md §4.6). It
// degrades cleanly to a single-process implementation so the same
// orchestrator code path runs whether or not the host job is cooperating
// with peer processes.
package collective

import "context"

// Op names a reduction operator. Only the small fixed set the orchestrator
// actually needs is modeled — this is not a general MPI binding.
type Op int

const (
	OpMin Op = iota
	OpMax
	OpSum
	OpBOr
	OpBAnd
)

// Coordinator is the thin abstraction described by spec.md §4.6. All
// operations must be invoked by every rank in the same order; the caller
// (the shutdown orchestrator) is responsible for that ordering discipline,
// not this package.
type Coordinator interface {
	// Rank returns this process's 0-based rank.
	Rank() int
	// Size returns the number of cooperating processes.
	Size() int

	Barrier(ctx context.Context) error
	Broadcast(ctx context.Context, root int, buf []byte) error

	// Reduce combines send across every rank with op, leaving the result
	// in recv on root only (undefined elsewhere). send and recv may
	// alias (spec.md §9 "in-place reduction sentinel"); implementations
	// that cannot alias must copy.
	Reduce(ctx context.Context, root int, op Op, send, recv []uint64) error

	// AllReduce is Reduce except every rank receives the result.
	AllReduce(ctx context.Context, op Op, send, recv []uint64) error

	// ScanSum performs an inclusive prefix sum of send across ranks in
	// rank order, returning this rank's partial sum.
	ScanSum(ctx context.Context, send uint64) (uint64, error)

	// CreateExclusive collectively opens path for writing with
	// create+write+exclusive semantics. Every rank must call this; on
	// any failure every rank's call returns a non-nil error.
	CreateExclusive(ctx context.Context, path string) (File, error)
}

// File is a collectively-opened log file (spec.md §4.6, §4.8).
type File interface {
	// WriteAtAll is a collective write: every rank must call it, each
	// with its own disjoint offset, before any rank proceeds.
	WriteAtAll(ctx context.Context, off int64, p []byte) error
	// WriteAt is an independent (non-collective) positional write, used
	// by the root rank alone for the job block and the header.
	WriteAt(ctx context.Context, off int64, p []byte) error
	Close() error
}
