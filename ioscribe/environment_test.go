// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"strings"
	"testing"
)

func TestTruncateExeNameUnderLimit(t *testing.T) {
	exe := "myapp --flag value"
	if got := truncateExeName(exe); got != exe {
		t.Fatalf("truncateExeName = %q; want unchanged %q", got, exe)
	}
}

func TestTruncateExeNameOverLimit(t *testing.T) {
	exe := strings.Repeat("x", exeMountsLen+100)
	got := truncateExeName(exe)
	if len(got) != exeMountsLen {
		t.Fatalf("len(got) = %d; want %d", len(got), exeMountsLen)
	}
	if !strings.HasSuffix(got, truncationMarker) {
		t.Fatalf("truncated name %q should end with %q", got, truncationMarker)
	}
}

func TestLookupJobIDFallsBackToPID(t *testing.T) {
	id := lookupJobID("IOSCRIBE_TEST_NONEXISTENT_JOBID_VAR")
	if id <= 0 {
		t.Fatalf("lookupJobID fallback = %d; want a positive pid", id)
	}
}

func TestBuildHintsIncludesLibVersion(t *testing.T) {
	cfg := loadConfig()
	hints := buildHints(cfg)
	if !strings.Contains(hints, "lib_ver="+libraryVersion) {
		t.Fatalf("hints = %q; want lib_ver=%s", hints, libraryVersion)
	}
}

func TestJobMetadataMarshalSize(t *testing.T) {
	jm := JobMetadata{UID: 1, JobID: 2, StartTime: 3, EndTime: 4, Nprocs: 5, ExeName: "a", Metadata: "lib_ver=1\n"}
	buf := jm.marshal()
	if len(buf) != jobBlockSize {
		t.Fatalf("len(marshal()) = %d; want %d", len(buf), jobBlockSize)
	}
}
