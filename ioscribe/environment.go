// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
)

// JobMetadata is the fixed-size job record written first in every log
// (spec.md §3, §4.9). Unlike module records it has no name-registry entry
// of its own.
type JobMetadata struct {
	UID       uint64
	JobID     int64
	StartTime int64
	EndTime   int64
	Nprocs    int
	ExeName   string // argv joined by spaces, possibly truncated
	Username  string
	Metadata  string // "key=value\n"-separated hints, see buildHints
}

// collectJobMetadata gathers everything spec.md §3 says must be known at
// Initialize time: uid, job id, the command line and a handful of
// environment-derived hints. It never fails outright — every field falls
// back to a conservative default, mirroring darshan_core_initialize's
// "best effort, never abort the host application" posture.
func collectJobMetadata(cfg *config, argv []string) JobMetadata {
	exe := strings.Join(argv, " ")
	if exe == "" {
		if b, err := os.ReadFile("/proc/self/cmdline"); err == nil {
			exe = strings.TrimRight(strings.ReplaceAll(string(b), "\x00", " "), " ")
		}
	}
	jm := JobMetadata{
		UID:      uint64(os.Getuid()),
		JobID:    lookupJobID(cfg.jobIDEnvVar),
		ExeName:  truncateExeName(exe),
		Username: lookupUsername(),
	}
	jm.Metadata = buildHints(cfg)
	return jm
}

// lookupJobID mirrors darshan_core_initialize's job-id resolution: read
// the environment variable named by jobIDEnvVar; if absent or malformed,
// fall back to the process id so every job still gets a distinguishing
// (if not globally unique) number.
func lookupJobID(envVar string) int64 {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return int64(os.Getpid())
}

// lookupUsername mirrors darshan_get_user_name: try the password database
// first, then LOGNAME, then fall back to the numeric uid rendered as a
// string so the field is never empty.
func lookupUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if v := os.Getenv("LOGNAME"); v != "" {
		return v
	}
	return strconv.Itoa(os.Getuid())
}

// truncateExeName enforces the exeMountsLen ceiling, appending
// truncationMarker when the line had to be cut (spec.md §3 "a truncated
// executable name is itself diagnostic and must say so").
func truncateExeName(exe string) string {
	if len(exe) <= exeMountsLen {
		return exe
	}
	cut := exeMountsLen - len(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	return exe[:cut] + truncationMarker
}

// buildHints assembles the "key=value\n" metadata block (spec.md §3):
// library version, any caller-supplied hint string, and — when enabled —
// an internal-timing marker, matching the lib_ver/h= fields
// darshan_core_initialize stamps into the job record.
func buildHints(cfg *config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "lib_ver=%s\n", libraryVersion)
	if cfg.internalTiming {
		b.WriteString("internal_timing=1\n")
	}
	if cfg.logHints != "" {
		fmt.Fprintf(&b, "h=%s\n", cfg.logHints)
	}
	return b.String()
}

// jobHintsFieldSize is the fixed width reserved for JobMetadata.Metadata
// on disk; longer hint blocks are truncated rather than growing the job
// block, keeping its offset arithmetic static.
const jobHintsFieldSize = 1024

// jobBlockSize is the fixed on-disk size of a marshaled JobMetadata: 8
// (uid) + 8 (jobid) + 8 (start) + 8 (end) + 4 (nprocs) + 4 pad +
// exeMountsLen (exe name) + jobHintsFieldSize (metadata hints). Username
// is not persisted on disk; it exists for parity with the original job
// record but is not part of spec.md's wire format.
const jobBlockSize = 8 + 8 + 8 + 8 + 4 + 4 + exeMountsLen + jobHintsFieldSize

// marshal encodes jm into exactly jobBlockSize little-endian bytes.
func (jm *JobMetadata) marshal() []byte {
	buf := make([]byte, jobBlockSize)
	off := 0

	binary.LittleEndian.PutUint64(buf[off:], jm.UID)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(jm.JobID))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(jm.StartTime))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(jm.EndTime))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(jm.Nprocs))
	off += 4 + 4

	copy(buf[off:off+exeMountsLen], jm.ExeName)
	off += exeMountsLen

	copy(buf[off:off+jobHintsFieldSize], jm.Metadata)

	return buf
}
