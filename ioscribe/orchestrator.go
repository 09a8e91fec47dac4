// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ioscribe/ioscribe/ioscribe/collective"
)

const partialSuffix = ".iosc_partial"

const shutdownRoot = 0

// Shutdown runs the fixed shutdown sequence of spec.md §4.9: it stamps the
// job's end time, agrees on a log file name, discovers shared records,
// collectively writes the job block, the name map and every globally-used
// module's data, then patches and closes the header. Every rank must call
// Shutdown with the same coord.
func Shutdown(ctx context.Context, coord collective.Coordinator) error {
	r, err := moveAsideRuntime()
	if err != nil {
		return err
	}
	if r.cfg.disabled {
		return nil
	}
	if err := shutdownRuntime(ctx, coord, r); err != nil {
		warnf("shutdown: %v", err)
		return err
	}
	return nil
}

// shutdownRuntime is Shutdown's body, split out so tests can drive the
// multi-rank pipeline against independently constructed runtimes instead
// of the single package-global one.
func shutdownRuntime(ctx context.Context, coord collective.Coordinator, r *coreRuntime) error {
	var err error
	r.job.EndTime, err = reduceJobTimes(ctx, coord, r)
	if err != nil {
		return err
	}

	path, err := agreeLogPath(ctx, coord, r)
	if err != nil {
		return err
	}

	usedMods, err := allReduceUsedModules(ctx, coord, r)
	if err != nil {
		return err
	}

	shared, err := discoverSharedRecords(ctx, coord, r.names)
	if err != nil {
		return err
	}

	partialPath := path + partialSuffix
	file, err := coord.CreateExclusive(ctx, partialPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollectiveFailure, err)
	}

	hdr := newHeader()
	isRoot := coord.Rank() == shutdownRoot

	if isRoot {
		r.job.Nprocs = coord.Size()
		if err := file.WriteAt(ctx, HeaderSize, r.job.marshal()); err != nil {
			abortPartial(coord, file, partialPath)
			return ErrCollectiveFailure
		}
	}
	if err := coord.Barrier(ctx); err != nil {
		return ErrCollectiveFailure
	}

	nameMapBase := uint64(HeaderSize + jobBlockSize)
	nameMapRegion, err := writeCollectiveBlock(ctx, coord, file, nameMapBase, serializeNameMap(r.names, shared, isRoot))
	if err != nil {
		abortPartial(coord, file, partialPath)
		return err
	}
	hdr.NameMap = nameMapRegion

	cursor := nameMapBase + nameMapRegion.Len
	var partialFlag uint64
	for id := ModuleID(0); id < MaxModules; id++ {
		if !usedMods.isSet(id) {
			continue
		}
		slot, ok := r.modules.get(id)
		var localData []byte
		if ok {
			data, shutdownErr := slot.cb.Shutdown(ctx, coord, shared.ids, slot.buffer.Written())
			if shutdownErr != nil {
				partialFlag |= 1 << uint(id)
			}
			localData = data
			hdr.ModuleVersion[id] = slot.version
		}
		region, err := writeCollectiveBlock(ctx, coord, file, cursor, localData)
		if err != nil {
			abortPartial(coord, file, partialPath)
			return err
		}
		hdr.ModuleIndex[id] = region
		cursor += region.Len
	}

	finalFlag, finalVersions, err := reducePartialState(ctx, coord, partialFlag, hdr.ModuleVersion)
	if err != nil {
		abortPartial(coord, file, partialPath)
		return err
	}
	hdr.PartialFlag = finalFlag
	hdr.ModuleVersion = finalVersions
	hdr.CompType = compDeflate

	if isRoot {
		if err := file.WriteAt(ctx, 0, hdr.marshal()); err != nil {
			abortPartial(coord, file, partialPath)
			return ErrCollectiveFailure
		}
	}
	if err := coord.Barrier(ctx); err != nil {
		return ErrCollectiveFailure
	}

	if err := file.Close(); err != nil {
		return ErrCollectiveFailure
	}

	if isRoot {
		if err := os.Rename(partialPath, path); err != nil {
			return fmt.Errorf("%w: %v", ErrCollectiveFailure, err)
		}
	}
	return coord.Barrier(ctx)
}

// moveAsideRuntime marks the active runtime as shut down and detaches it
// from the package global under the lock, then releases the lock before
// any blocking collective I/O runs — mirroring how fuse.Server moves a
// request aside before doing slow work outside reqMu.
func moveAsideRuntime() (*coreRuntime, error) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if active == nil {
		return nil, ErrNotInitialized
	}
	r := active
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return nil, ErrNotInitialized
	}
	r.shutdown = true
	r.mu.Unlock()
	active = nil
	return r, nil
}

func reduceJobTimes(ctx context.Context, coord collective.Coordinator, r *coreRuntime) (int64, error) {
	r.job.StartTime = r.startWall.Unix()
	end := time.Now().Unix()

	startSend := []uint64{uint64(r.job.StartTime)}
	startRecv := make([]uint64, 1)
	if err := coord.AllReduce(ctx, collective.OpMin, startSend, startRecv); err != nil {
		return 0, ErrCollectiveFailure
	}
	r.job.StartTime = int64(startRecv[0])

	endSend := []uint64{uint64(end)}
	endRecv := make([]uint64, 1)
	if err := coord.AllReduce(ctx, collective.OpMax, endSend, endRecv); err != nil {
		return 0, ErrCollectiveFailure
	}
	return int64(endRecv[0]), nil
}

// agreeLogPath determines the final log path on the root rank and
// broadcasts it to every other rank, aborting if no name can be derived
// (spec.md §4.9 "abort the write if no log path can be determined").
func agreeLogPath(ctx context.Context, coord collective.Coordinator, r *coreRuntime) (string, error) {
	var name string
	if coord.Rank() == shutdownRoot {
		name = buildLogFilename(r)
	}

	lenBuf := make([]byte, 8)
	if coord.Rank() == shutdownRoot {
		binary.LittleEndian.PutUint64(lenBuf, uint64(len(name)))
	}
	if err := coord.Broadcast(ctx, shutdownRoot, lenBuf); err != nil {
		return "", ErrCollectiveFailure
	}
	n := binary.LittleEndian.Uint64(lenBuf)
	if n == 0 {
		return "", ErrEmptyLogName
	}

	nameBuf := make([]byte, n)
	if coord.Rank() == shutdownRoot {
		copy(nameBuf, name)
	}
	if err := coord.Broadcast(ctx, shutdownRoot, nameBuf); err != nil {
		return "", ErrCollectiveFailure
	}
	return string(nameBuf), nil
}

// buildLogFilename mirrors darshan_get_logfile_name's precedence: a full
// override wins outright, otherwise a name is generated from the job's
// uid, job id and executable basename under the configured log directory.
func buildLogFilename(r *coreRuntime) string {
	if r.cfg.logFileOverride != "" {
		return r.cfg.logFileOverride
	}
	if r.job.ExeName == "" {
		return ""
	}

	dir := r.cfg.logPathOverride
	if dir == "" {
		dir = "."
	}
	base := filepath.Base(firstToken(r.job.ExeName))
	name := fmt.Sprintf("%s_%d_%d_%d.iosclog", base, r.job.UID, r.job.JobID, r.job.StartTime)
	return filepath.Join(dir, name)
}

func firstToken(s string) string {
	for i, c := range s {
		if c == ' ' {
			return s[:i]
		}
	}
	return s
}

func allReduceUsedModules(ctx context.Context, coord collective.Coordinator, r *coreRuntime) (ModuleBitmap, error) {
	var local ModuleBitmap
	for id := ModuleID(0); id < MaxModules; id++ {
		if _, ok := r.modules.get(id); ok {
			local.set(id)
		}
	}
	send := []uint64{uint64(local)}
	recv := make([]uint64, 1)
	if err := coord.AllReduce(ctx, collective.OpBOr, send, recv); err != nil {
		return 0, ErrCollectiveFailure
	}
	return ModuleBitmap(recv[0]), nil
}

func reducePartialState(ctx context.Context, coord collective.Coordinator, partialFlag uint64, versions [MaxModules]uint32) (uint32, [MaxModules]uint32, error) {
	flagSend := []uint64{partialFlag}
	flagRecv := make([]uint64, 1)
	if err := coord.AllReduce(ctx, collective.OpBOr, flagSend, flagRecv); err != nil {
		return 0, versions, ErrCollectiveFailure
	}

	verSend := make([]uint64, MaxModules)
	verRecv := make([]uint64, MaxModules)
	for i, v := range versions {
		verSend[i] = uint64(v)
	}
	if err := coord.AllReduce(ctx, collective.OpMax, verSend, verRecv); err != nil {
		return 0, versions, ErrCollectiveFailure
	}

	var out [MaxModules]uint32
	for i := range out {
		out[i] = uint32(verRecv[i])
	}
	return uint32(flagRecv[0]), out, nil
}

// abortPartial removes the partially-written log on a fatal error so a
// failed job never leaves a file that looks complete (spec.md §4.9
// "unlink on failure").
func abortPartial(coord collective.Coordinator, file collective.File, path string) {
	file.Close()
	if coord.Rank() == shutdownRoot {
		os.Remove(path)
	}
}
