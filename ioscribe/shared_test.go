// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"context"
	"sort"
	"testing"

	"github.com/ioscribe/ioscribe/ioscribe/collective"
	"golang.org/x/sync/errgroup"
)

func TestDiscoverSharedRecordsAgreesAcrossRanks(t *testing.T) {
	const n = 3
	coords := collective.NewGroup(n)

	regs := make([]*nameRegistry, n)
	for i := range regs {
		regs[i] = newNameRegistry(4096)
	}

	shared := GenRecordID("/mnt/shared")
	onlyRank0 := GenRecordID("/mnt/rank0-only")

	for i, reg := range regs {
		if _, err := reg.intern(shared, "/mnt/shared", ModuleID(0)); err != nil {
			t.Fatalf("rank %d intern shared: %v", i, err)
		}
	}
	if _, err := regs[0].intern(onlyRank0, "/mnt/rank0-only", ModuleID(0)); err != nil {
		t.Fatalf("intern rank0-only: %v", err)
	}

	results := make([]sharedSet, n)
	var g errgroup.Group
	for i := range coords {
		i := i
		g.Go(func() error {
			s, err := discoverSharedRecords(context.Background(), coords[i], regs[i])
			results[i] = s
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	for i, s := range results {
		ids := append([]RecordID(nil), s.ids...)
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		if len(ids) != 1 || ids[0] != shared {
			t.Fatalf("rank %d shared ids = %v; want [%d]", i, ids, shared)
		}
	}
}

// TestDiscoverSharedRecordsDisjointModuleSetsNotShared covers spec.md
// §4.7's named edge case: an id opened by every rank, but through
// disjoint modules, must reduce to a zero bitmap and be treated as not
// shared — not as shared with a unioned module set.
func TestDiscoverSharedRecordsDisjointModuleSetsNotShared(t *testing.T) {
	const n = 2
	coords := collective.NewGroup(n)
	regs := []*nameRegistry{newNameRegistry(4096), newNameRegistry(4096)}

	id := GenRecordID("/mnt/disjoint")
	if _, err := regs[0].intern(id, "/mnt/disjoint", ModuleID(0)); err != nil {
		t.Fatalf("rank 0 intern: %v", err)
	}
	if _, err := regs[1].intern(id, "/mnt/disjoint", ModuleID(1)); err != nil {
		t.Fatalf("rank 1 intern: %v", err)
	}

	results := make([]sharedSet, n)
	var g errgroup.Group
	for i := range coords {
		i := i
		g.Go(func() error {
			s, err := discoverSharedRecords(context.Background(), coords[i], regs[i])
			results[i] = s
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	for i, s := range results {
		if len(s.ids) != 0 {
			t.Fatalf("rank %d ids = %v; want none (disjoint module sets must not be shared)", i, s.ids)
		}
		if _, ok := s.modsFor[id]; ok {
			t.Fatalf("rank %d modsFor should not contain %d", i, id)
		}
	}

	for i, reg := range regs {
		if e := reg.byID[id]; e.globalMods != 0 {
			t.Fatalf("rank %d globalMods = %b; want 0", i, e.globalMods)
		}
	}
}

func TestDiscoverSharedRecordsEmptyRegistry(t *testing.T) {
	const n = 2
	coords := collective.NewGroup(n)
	regs := []*nameRegistry{newNameRegistry(64), newNameRegistry(64)}

	results := make([]sharedSet, n)
	var g errgroup.Group
	for i := range coords {
		i := i
		g.Go(func() error {
			s, err := discoverSharedRecords(context.Background(), coords[i], regs[i])
			results[i] = s
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	for i, s := range results {
		if len(s.ids) != 0 {
			t.Fatalf("rank %d ids = %v; want none", i, s.ids)
		}
	}
}
