// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import "time"

// Initialize starts a job's runtime core (spec.md §3 Lifecycle): it loads
// configuration from the environment, collects job metadata and the
// filesystem info table, and prepares an empty name registry and module
// table. Calling Initialize twice without an intervening Shutdown is a
// no-op, matching darshan_core_initialize's "second call returns
// immediately" guard.
func Initialize(argv []string) error {
	runtimeMu.Lock()
	if active != nil {
		runtimeMu.Unlock()
		return nil
	}
	runtimeMu.Unlock()

	cfg := loadConfig()
	r := &coreRuntime{
		cfg:       cfg,
		startWall: time.Now(),
	}
	if !cfg.disabled {
		r.names = newNameRegistry(nameArenaQuota)
		r.alloc = newBufferAllocator(cfg.modMemQuota)
		r.job = collectJobMetadata(cfg, argv)
		if mounts, err := scanMounts(cfg); err == nil {
			r.mounts = mounts
		} else {
			warnf("mount table scan failed: %v", err)
		}
	}

	runtimeMu.Lock()
	active = r
	runtimeMu.Unlock()
	return nil
}

// RegisterModule attaches cb under id, granting it a private RecordBuffer
// carved from the process's module memory quota (spec.md §4.2, §4.3). The
// returned buffer is the module's own to write records into for the rest
// of the job. Disabled runtimes accept registrations silently but never
// actually allocate or invoke the callback.
func RegisterModule(id ModuleID, cb Module, requestedMem int, version uint32) (*RecordBuffer, error) {
	r, err := current()
	if err != nil {
		return nil, err
	}
	if r.cfg.disabled {
		return &RecordBuffer{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	buffer := &RecordBuffer{buf: r.alloc.grant(requestedMem)}
	if err := r.modules.register(id, cb, buffer, version); err != nil {
		return nil, err
	}
	return buffer, nil
}

// UnregisterModule detaches a previously registered module; its granted
// memory is not reclaimed, matching darshan_core_unregister_module's
// "quota is per-job, not reusable" behavior.
func UnregisterModule(id ModuleID) error {
	r, err := current()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules.unregister(id)
	return nil
}

// RegisterRecord interns name in the process-wide name registry and marks
// mod as having touched it, returning the id that module should use to
// refer to it for the rest of the job
// (spec.md §4.4). It is the primary entry point modules call from their
// own instrumentation wrappers.
func RegisterRecord(mod ModuleID, name string) (RecordID, error) {
	r, err := current()
	if err != nil {
		return 0, err
	}
	if r.cfg.disabled {
		return GenRecordID(name), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := GenRecordID(name)
	if _, err := r.names.intern(id, name, mod); err != nil {
		return 0, err
	}
	return id, nil
}

// LookupRecordName reverses RegisterRecord, returning false if id is
// unknown to this process (spec.md §4.4).
func LookupRecordName(id RecordID) (string, bool) {
	r, err := current()
	if err != nil {
		return "", false
	}
	if r.cfg.disabled {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.names.lookup(id)
}

// ExcludedPath reports whether path should be skipped by instrumentation
// modules, applying the same mount-aware inclusion/exclusion rules used
// when scanning the filesystem info table (spec.md §4.5).
func ExcludedPath(path string) bool {
	r, err := current()
	if err != nil {
		return false
	}
	if r.cfg.excludeAll {
		return false
	}
	if pathHasAnyPrefix(path, r.cfg.pathInclusions) {
		return false
	}
	return pathHasAnyPrefix(path, r.cfg.pathExclusions)
}

// MountFor returns the filesystem info table entry covering path, if any
// (spec.md §4.5, §6).
func MountFor(path string) (MountEntry, bool) {
	r, err := current()
	if err != nil {
		return MountEntry{}, false
	}
	return longestMatch(r.mounts, path)
}
