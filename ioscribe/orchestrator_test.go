// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ioscribe/ioscribe/ioscribe/collective"
	"golang.org/x/sync/errgroup"
)

func newTestRuntime(t *testing.T, dir string) *coreRuntime {
	t.Helper()
	cfg := loadConfig()
	cfg.logPathOverride = dir
	cfg.logFileOverride = ""
	return &coreRuntime{
		cfg:       cfg,
		names:     newNameRegistry(4096),
		alloc:     newBufferAllocator(4096),
		startWall: time.Now(),
		job:       JobMetadata{UID: 1, JobID: 7, ExeName: "testjob"},
	}
}

func TestShutdownSingleRankProducesLog(t *testing.T) {
	dir := t.TempDir()
	r := newTestRuntime(t, dir)

	buf := &RecordBuffer{}
	mod := stubModule{}
	if err := r.modules.register(0, mod, buf, 1); err != nil {
		t.Fatalf("register module: %v", err)
	}
	if _, err := r.names.intern(GenRecordID("/data/x"), "/data/x", 0); err != nil {
		t.Fatalf("intern: %v", err)
	}

	if err := shutdownRuntime(context.Background(), collective.NewSingle(), r); err != nil {
		t.Fatalf("shutdownRuntime: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "testjob_*.iosclog"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("log files in %s = %v; want exactly one", dir, matches)
	}

	info, err := os.Stat(matches[0])
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() < HeaderSize {
		t.Fatalf("log size = %d; want at least HeaderSize (%d)", info.Size(), HeaderSize)
	}
}

func TestShutdownEmptyLogNameAborts(t *testing.T) {
	r := newTestRuntime(t, t.TempDir())
	r.job.ExeName = ""
	r.cfg.logFileOverride = ""

	err := shutdownRuntime(context.Background(), collective.NewSingle(), r)
	if err != ErrEmptyLogName {
		t.Fatalf("err = %v; want ErrEmptyLogName", err)
	}
}

func TestShutdownMultiRankAgreesOnOnePath(t *testing.T) {
	const n = 3
	coords := collective.NewGroup(n)
	dir := t.TempDir()

	runtimes := make([]*coreRuntime, n)
	for i := range runtimes {
		runtimes[i] = newTestRuntime(t, dir)
		buf := &RecordBuffer{}
		if err := runtimes[i].modules.register(0, stubModule{}, buf, 1); err != nil {
			t.Fatalf("rank %d register: %v", i, err)
		}
	}

	var g errgroup.Group
	for i := range coords {
		i := i
		g.Go(func() error {
			return shutdownRuntime(context.Background(), coords[i], runtimes[i])
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "testjob_*.iosclog"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("log files in %s = %v; want exactly one (all ranks must agree)", dir, matches)
	}
}
