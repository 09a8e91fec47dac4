// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package samplemod is a minimal instrumentation module: it counts reads,
// writes and bytes moved per record and shows how a module implements
// ioscribe.Module against a RecordBuffer handed out by
// ioscribe.RegisterModule.
package samplemod

import (
	"context"
	"encoding/binary"

	"github.com/ioscribe/ioscribe/ioscribe"
	"github.com/ioscribe/ioscribe/ioscribe/collective"
)

// ID is this module's slot in the registry. Real modules would pick a
// stable, project-wide unique value; a sample just picks one.
const ID ioscribe.ModuleID = 1

const recordSize = 8 + 8 + 8 + 8 // id + reads + writes + bytes

// counters tracks the in-memory tallies for one record id between
// Record calls and the final Shutdown flush.
type counters struct {
	reads, writes, bytes uint64
}

// Module counts per-record I/O activity and serializes the tallies into
// its RecordBuffer at shutdown.
type Module struct {
	buf   *ioscribe.RecordBuffer
	stats map[ioscribe.RecordID]*counters
}

// New registers the module with ioscribe and returns a handle the caller
// uses to record activity for the rest of the job.
func New(requestedMem int) (*Module, error) {
	m := &Module{stats: make(map[ioscribe.RecordID]*counters)}
	buf, err := ioscribe.RegisterModule(ID, m, requestedMem, 1)
	if err != nil {
		return nil, err
	}
	m.buf = buf
	return m, nil
}

// Record accrues one I/O event against path, registering it with the
// core on first use.
func (m *Module) Record(path string, isWrite bool, n uint64) error {
	if ioscribe.ExcludedPath(path) {
		return nil
	}
	id, err := ioscribe.RegisterRecord(ID, path)
	if err != nil {
		return err
	}
	c, ok := m.stats[id]
	if !ok {
		c = &counters{}
		m.stats[id] = c
	}
	if isWrite {
		c.writes++
	} else {
		c.reads++
	}
	c.bytes += n
	return nil
}

// Shutdown writes one fixed-size little-endian record (id, reads, writes,
// bytes) per counted id into the module's RecordBuffer and returns the
// bytes written so far. sharedIDs and buf are not consulted: each rank
// writes its own tallies, shared ids included.
func (m *Module) Shutdown(ctx context.Context, coord collective.Coordinator, sharedIDs []ioscribe.RecordID, buf []byte) ([]byte, error) {
	out := m.buf.Reserve(len(m.stats) * recordSize)
	if out == nil {
		return nil, ioscribe.ErrQuotaExhausted
	}

	off := 0
	for id, c := range m.stats {
		binary.LittleEndian.PutUint64(out[off:], uint64(id))
		binary.LittleEndian.PutUint64(out[off+8:], c.reads)
		binary.LittleEndian.PutUint64(out[off+16:], c.writes)
		binary.LittleEndian.PutUint64(out[off+24:], c.bytes)
		off += recordSize
	}
	return m.buf.Written(), nil
}
