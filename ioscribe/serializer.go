// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/ioscribe/ioscribe/ioscribe/collective"
	"github.com/klauspost/compress/flate"
)

// compressRegion deflates data into one complete, self-terminating
// stream. In a collective block (name map, per-module block) every rank's
// stream is written end to end in rank order and the header records only
// the Region of the whole block, so a reader of a multi-rank block
// decompresses one stream after another until the Region is consumed
// (spec.md §3 "compressed log format").
func compressRegion(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, ErrCompressionFailure
	}
	if _, err := w.Write(data); err != nil {
		return nil, ErrCompressionFailure
	}
	if err := w.Close(); err != nil {
		return nil, ErrCompressionFailure
	}
	return buf.Bytes(), nil
}

// decompressRegion is the inverse of compressRegion, used only by the
// package's own tests.
func decompressRegion(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return nil, ErrCompressionFailure
	}
	return out.Bytes(), nil
}

// collectOffsets runs an inclusive ScanSum of localLen across ranks and
// broadcasts the grand total from the last rank, giving every rank both
// its own byte offset within a shared region and the region's overall
// length (spec.md §4.6 "collective file write pipeline").
func collectOffsets(ctx context.Context, coord collective.Coordinator, localLen uint64) (offset, total uint64, err error) {
	inclusive, err := coord.ScanSum(ctx, localLen)
	if err != nil {
		return 0, 0, ErrCollectiveFailure
	}
	offset = inclusive - localLen

	totalBuf := make([]byte, 8)
	lastRank := coord.Size() - 1
	if coord.Rank() == lastRank {
		binary.LittleEndian.PutUint64(totalBuf, inclusive)
	}
	if err := coord.Broadcast(ctx, lastRank, totalBuf); err != nil {
		return 0, 0, ErrCollectiveFailure
	}
	total = binary.LittleEndian.Uint64(totalBuf)
	return offset, total, nil
}

// writeCollectiveBlock compresses localData on every rank independently,
// agrees on each rank's byte offset within the combined block via
// collectOffsets, and writes every rank's compressed bytes into file at
// baseOffset via one collective WriteAtAll. It returns the Region
// covering the whole block, identical on every rank.
func writeCollectiveBlock(ctx context.Context, coord collective.Coordinator, file collective.File, baseOffset uint64, localData []byte) (Region, error) {
	compressed, err := compressRegion(localData)
	if err != nil {
		return Region{}, err
	}

	offset, total, err := collectOffsets(ctx, coord, uint64(len(compressed)))
	if err != nil {
		return Region{}, err
	}

	if err := file.WriteAtAll(ctx, int64(baseOffset+offset), compressed); err != nil {
		return Region{}, ErrCollectiveFailure
	}

	return Region{Off: baseOffset, Len: total}, nil
}

// serializeNameMap renders this rank's contribution to the job-wide name
// map as a flat arena-format buffer (8-byte id + NUL-terminated name,
// matching nameRegistry.intern's own layout). Shared-record dedup is
// delegated to the caller's rank partition, not to content comparison
// here: the root contributes every entry it holds, so each shared id
// appears exactly once, and every other rank contributes only the ids
// outside the shared set,
// mirroring darshan_log_write_name_record_hash's shared/non-shared split
// (spec.md §4.7, §4.9).
func serializeNameMap(reg *nameRegistry, shared sharedSet, isRoot bool) []byte {
	var buf bytes.Buffer
	write := func(e *nameEntry, name string) {
		var idBuf [8]byte
		binary.LittleEndian.PutUint64(idBuf[:], uint64(e.id))
		buf.Write(idBuf[:])
		buf.WriteString(name)
		buf.WriteByte(0)
	}

	reg.iterate(func(e *nameEntry) {
		_, isShared := shared.modsFor[e.id]
		if isShared && !isRoot {
			return
		}
		write(e, reg.nameOf(e))
	})
	return buf.Bytes()
}
