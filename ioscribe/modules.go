// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"context"

	"github.com/ioscribe/ioscribe/ioscribe/collective"
)

// MaxModules bounds the number of concurrently registered instrumentation
// modules. It is the Go analogue of darshan's compiled-in DARSHAN_MAX_MODS
// and sizes ModuleBitmap (one bit per module) and the header's per-module
// index arrays.
const MaxModules = 64

// ModuleID identifies a registered instrumentation module. Valid values are
// 0..MaxModules-1.
type ModuleID uint32

// Module is the duck-typed plugin contract described by spec.md §9: the
// core depends on nothing about a module beyond its ability to freeze its
// own record buffer into final, loggable bytes at shutdown. Shutdown may
// itself drive collective operations over sharedIDs (spec.md §4.9 step 9).
type Module interface {
	Shutdown(ctx context.Context, coord collective.Coordinator, sharedIDs []RecordID, buf []byte) ([]byte, error)
}

// moduleSlot is one entry of the fixed-size module registry (spec.md §4.4).
type moduleSlot struct {
	id       ModuleID
	cb       Module
	buffer   *RecordBuffer
	version  uint32
}

// moduleRegistry is the fixed-size slot table keyed by ModuleID.
type moduleRegistry struct {
	slots [MaxModules]*moduleSlot
}

// register is idempotent by slot id: a second registration of the same
// module id is refused (spec.md §4.4).
func (r *moduleRegistry) register(id ModuleID, cb Module, buffer *RecordBuffer, version uint32) error {
	if id >= MaxModules {
		return ErrModuleIDRange
	}
	if r.slots[id] != nil {
		return ErrModuleAlreadyRegistered
	}
	r.slots[id] = &moduleSlot{id: id, cb: cb, buffer: buffer, version: version}
	return nil
}

// unregister clears the slot; a cleared slot's shutdown callback must never
// be invoked by a later shutdown.
func (r *moduleRegistry) unregister(id ModuleID) {
	if id < MaxModules {
		r.slots[id] = nil
	}
}

func (r *moduleRegistry) get(id ModuleID) (*moduleSlot, bool) {
	if id >= MaxModules {
		return nil, false
	}
	s := r.slots[id]
	return s, s != nil
}
