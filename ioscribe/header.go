// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import "encoding/binary"

// LogMagic is the fixed magic number stamped into every header (spec.md
// §6). It has no special meaning beyond being a format fingerprint.
const LogMagic uint64 = 0x1090e1a5c0ffee01

// LogVersionString is the on-disk format version, stored as 8
// NUL-padded ASCII bytes (spec.md §6).
const LogVersionString = "iosc001"

const (
	compNone    uint8 = 0
	compDeflate uint8 = 1
)

// Region is a {offset, length} pair into the log file (spec.md §3, §6).
type Region struct {
	Off uint64
	Len uint64
}

const regionSize = 16 // 2 * uint64

// Header is the fixed-size region written first (logically) and last
// (physically, patched after every other region is in place) at offset 0
// of the log file (spec.md §3, §6, §4.8/§4.9).
type Header struct {
	VersionString string // 8 bytes on disk, NUL-padded/truncated
	Magic         uint64
	PartialFlag   uint32 // one bit per ModuleID
	CompType      uint8
	ModuleIndex   [MaxModules]Region
	NameMap       Region
	ModuleVersion [MaxModules]uint32
}

// HeaderSize is the fixed on-disk size of Header: 8 (version) + 8 (magic)
// + 4 (partial flag) + 1 (comp type) + 3 pad + MaxModules*regionSize +
// regionSize (name map) + MaxModules*4 (versions).
const HeaderSize = 8 + 8 + 4 + 1 + 3 + MaxModules*regionSize + regionSize + MaxModules*4

func newHeader() *Header {
	return &Header{VersionString: LogVersionString, Magic: LogMagic}
}

// marshal encodes h into exactly HeaderSize little-endian bytes (spec.md §6).
func (h *Header) marshal() []byte {
	buf := make([]byte, HeaderSize)
	off := 0

	var vs [8]byte
	copy(vs[:], h.VersionString)
	copy(buf[off:off+8], vs[:])
	off += 8

	binary.LittleEndian.PutUint64(buf[off:], h.Magic)
	off += 8

	binary.LittleEndian.PutUint32(buf[off:], h.PartialFlag)
	off += 4

	buf[off] = h.CompType
	off += 1 + 3 // 3 bytes padding, kept zero

	for i := range h.ModuleIndex {
		off = putRegion(buf, off, h.ModuleIndex[i])
	}
	off = putRegion(buf, off, h.NameMap)

	for i := range h.ModuleVersion {
		binary.LittleEndian.PutUint32(buf[off:], h.ModuleVersion[i])
		off += 4
	}

	return buf
}

func putRegion(buf []byte, off int, r Region) int {
	binary.LittleEndian.PutUint64(buf[off:], r.Off)
	binary.LittleEndian.PutUint64(buf[off+8:], r.Len)
	return off + 16
}

func getRegion(buf []byte, off int) (Region, int) {
	r := Region{
		Off: binary.LittleEndian.Uint64(buf[off:]),
		Len: binary.LittleEndian.Uint64(buf[off+8:]),
	}
	return r, off + 16
}

// unmarshalHeader decodes a Header from exactly HeaderSize bytes. It is
// used only by the package's own round-trip tests — reading finished logs
// back is explicitly out of scope for the runtime core (spec.md §1).
func unmarshalHeader(buf []byte) *Header {
	h := &Header{}
	off := 0

	vs := buf[off : off+8]
	n := 0
	for n < len(vs) && vs[n] != 0 {
		n++
	}
	h.VersionString = string(vs[:n])
	off += 8

	h.Magic = binary.LittleEndian.Uint64(buf[off:])
	off += 8

	h.PartialFlag = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	h.CompType = buf[off]
	off += 1 + 3

	for i := range h.ModuleIndex {
		h.ModuleIndex[i], off = getRegion(buf, off)
	}
	h.NameMap, off = getRegion(buf, off)

	for i := range h.ModuleVersion {
		h.ModuleVersion[i] = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	}

	return h
}
