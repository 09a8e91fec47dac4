// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ioscribe/ioscribe/ioscribe/collective"
	"golang.org/x/sync/errgroup"
)

func TestCompressRegionRoundTrip(t *testing.T) {
	want := []byte("the quick brown fox jumps over the lazy dog, repeatedly, repeatedly")
	compressed, err := compressRegion(want)
	if err != nil {
		t.Fatalf("compressRegion: %v", err)
	}
	got, err := decompressRegion(compressed)
	if err != nil {
		t.Fatalf("decompressRegion: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip = %q; want %q", got, want)
	}
}

func TestCollectOffsetsAgreesOnTotal(t *testing.T) {
	const n = 4
	coords := collective.NewGroup(n)
	lens := []uint64{3, 5, 2, 7}

	offsets := make([]uint64, n)
	totals := make([]uint64, n)
	var g errgroup.Group
	for i := range coords {
		i := i
		g.Go(func() error {
			off, total, err := collectOffsets(context.Background(), coords[i], lens[i])
			offsets[i] = off
			totals[i] = total
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	want := []uint64{0, 3, 8, 10} // exclusive prefix offsets for 3,5,2,7
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("offsets[%d] = %d; want %d", i, offsets[i], want[i])
		}
		if totals[i] != 17 {
			t.Fatalf("totals[%d] = %d; want 17", i, totals[i])
		}
	}
}

func TestWriteCollectiveBlockConcatenatesInOffsetOrder(t *testing.T) {
	const n = 3
	coords := collective.NewGroup(n)
	dir := t.TempDir()
	path := filepath.Join(dir, "log")

	payloads := [][]byte{[]byte("aaa"), []byte("bb"), []byte("c")}
	regions := make([]Region, n)
	var g errgroup.Group
	for i := range coords {
		i := i
		g.Go(func() error {
			f, err := coords[i].CreateExclusive(context.Background(), path)
			if err != nil {
				return err
			}
			region, err := writeCollectiveBlock(context.Background(), coords[i], f, 0, payloads[i])
			regions[i] = region
			if err != nil {
				return err
			}
			return f.Close()
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	for i := 1; i < n; i++ {
		if regions[i] != regions[0] {
			t.Fatalf("rank %d region = %+v; want %+v", i, regions[i], regions[0])
		}
	}

	var want []byte
	for _, p := range payloads {
		c, err := compressRegion(p)
		if err != nil {
			t.Fatalf("compressRegion: %v", err)
		}
		want = append(want, c...)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("file content = %x; want per-rank streams in rank order %x", got, want)
	}
	if regions[0].Len != uint64(len(want)) {
		t.Fatalf("region len = %d; want %d", regions[0].Len, len(want))
	}
}

func TestSerializeNameMapSplitsSharedAndUnique(t *testing.T) {
	reg := newNameRegistry(4096)
	shared := GenRecordID("/shared")
	unique := GenRecordID("/unique")
	reg.intern(shared, "/shared", 0)
	reg.intern(unique, "/unique", 0)

	set := sharedSet{ids: []RecordID{shared}, modsFor: map[RecordID]ModuleBitmap{shared: 1}}

	rootBytes := serializeNameMap(reg, set, true)
	nonRootBytes := serializeNameMap(reg, set, false)

	if !bytes.Contains(rootBytes, []byte("/shared")) {
		t.Fatal("root name map should contain shared entry")
	}
	if bytes.Contains(nonRootBytes, []byte("/shared")) {
		t.Fatal("non-root name map should omit shared entry")
	}
	if !bytes.Contains(rootBytes, []byte("/unique")) || !bytes.Contains(nonRootBytes, []byte("/unique")) {
		t.Fatal("unique entry should appear on every rank that has it")
	}
}
