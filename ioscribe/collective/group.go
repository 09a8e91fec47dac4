// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package collective

import (
	"context"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// world is the shared rendezvous point for a simulated multi-rank job: one
// generic cyclic barrier plus a per-round slot array. Every Coordinator
// operation is modeled as "each rank deposits a payload, the last rank to
// arrive computes the collective result, everyone reads it back" — this
// holds for barrier, broadcast, reduce/all-reduce, and scan alike, so a
// single primitive backs all of them.
type world struct {
	n      int
	mu     sync.Mutex
	cond   *sync.Cond
	count  int
	gen    int
	slots  []interface{}
	result interface{}
}

func newWorld(n int) *world {
	w := &world{n: n, slots: make([]interface{}, n)}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// rendezvous deposits payload for rank, and once every rank has deposited,
// runs compute (exactly once, holding the lock) to produce the shared
// result every rank's call returns.
func (w *world) rendezvous(rank int, payload interface{}, compute func(slots []interface{}) interface{}) interface{} {
	w.mu.Lock()
	w.slots[rank] = payload
	gen := w.gen
	w.count++
	if w.count == w.n {
		w.count = 0
		w.result = compute(w.slots)
		w.gen++
		w.cond.Broadcast()
		res := w.result
		w.mu.Unlock()
		return res
	}
	for w.gen == gen {
		w.cond.Wait()
	}
	res := w.result
	w.mu.Unlock()
	return res
}

// Group is a Coordinator implementation backed by an in-process world. It
// exists only to drive the multi-rank paths of the shutdown orchestrator
// and shared-record discovery under `go test`; there is no real network
// transport (spec.md §4.6 only requires the abstraction and a
// single-process fallback — see SPEC_FULL.md §6.6).
type Group struct {
	w    *world
	rank int
}

// NewGroup returns n Coordinators sharing one simulated world, one per
// rank, intended to be driven concurrently (e.g. one goroutine per rank via
// golang.org/x/sync/errgroup).
func NewGroup(n int) []Coordinator {
	w := newWorld(n)
	out := make([]Coordinator, n)
	for i := 0; i < n; i++ {
		out[i] = &Group{w: w, rank: i}
	}
	return out
}

func (g *Group) Rank() int { return g.rank }
func (g *Group) Size() int { return g.w.n }

func (g *Group) Barrier(ctx context.Context) error {
	g.w.rendezvous(g.rank, nil, func(slots []interface{}) interface{} { return nil })
	return nil
}

func (g *Group) Broadcast(ctx context.Context, root int, buf []byte) error {
	res := g.w.rendezvous(g.rank, buf, func(slots []interface{}) interface{} {
		src := slots[root].([]byte)
		cp := make([]byte, len(src))
		copy(cp, src)
		return cp
	})
	if g.rank != root {
		copy(buf, res.([]byte))
	}
	return nil
}

func reduceComputeGroup(op Op, slots []interface{}) []uint64 {
	width := len(slots[0].([]uint64))
	out := make([]uint64, width)
	for i := 0; i < width; i++ {
		var acc uint64
		for r, s := range slots {
			v := s.([]uint64)[i]
			switch {
			case r == 0:
				acc = v
			case op == OpMin && v < acc:
				acc = v
			case op == OpMax && v > acc:
				acc = v
			case op == OpSum:
				acc += v
			case op == OpBOr:
				acc |= v
			case op == OpBAnd:
				acc &= v
			}
		}
		out[i] = acc
	}
	return out
}

func (g *Group) Reduce(ctx context.Context, root int, op Op, send, recv []uint64) error {
	res := g.w.rendezvous(g.rank, send, func(slots []interface{}) interface{} {
		return reduceComputeGroup(op, slots)
	})
	if g.rank == root {
		copy(recv, res.([]uint64))
	}
	return nil
}

func (g *Group) AllReduce(ctx context.Context, op Op, send, recv []uint64) error {
	res := g.w.rendezvous(g.rank, send, func(slots []interface{}) interface{} {
		return reduceComputeGroup(op, slots)
	})
	copy(recv, res.([]uint64))
	return nil
}

func (g *Group) ScanSum(ctx context.Context, send uint64) (uint64, error) {
	res := g.w.rendezvous(g.rank, send, func(slots []interface{}) interface{} {
		out := make([]uint64, len(slots))
		var acc uint64
		for i, s := range slots {
			acc += s.(uint64)
			out[i] = acc
		}
		return out
	})
	return res.([]uint64)[g.rank], nil
}

type groupOpenResult struct {
	f   *os.File
	err error
}

func (g *Group) CreateExclusive(ctx context.Context, path string) (File, error) {
	res := g.w.rendezvous(g.rank, nil, func(slots []interface{}) interface{} {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
		return groupOpenResult{f: f, err: err}
	})
	r := res.(groupOpenResult)
	if r.err != nil {
		return nil, r.err
	}
	return &groupFile{w: g.w, rank: g.rank, f: r.f}, nil
}

// groupFile shares one *os.File across every simulated rank. pwrite takes
// an explicit offset, so concurrent writes from different ranks to
// disjoint offsets on the same fd are safe without additional locking.
type groupFile struct {
	w    *world
	rank int
	f    *os.File
}

func (gf *groupFile) WriteAtAll(ctx context.Context, off int64, p []byte) error {
	var err error
	if len(p) > 0 {
		var n int
		n, err = unix.Pwrite(int(gf.f.Fd()), p, off)
		if err == nil && n != len(p) {
			err = errShortWrite
		}
	}
	// Rendezvous so no rank proceeds past this collective write until
	// every rank (including ones writing a zero-length chunk) has had a
	// chance to write, matching spec.md §5 "ranks that have never seen a
	// module still participate ... with an empty payload."
	gf.w.rendezvous(gf.rank, err, func(slots []interface{}) interface{} {
		for _, s := range slots {
			if s != nil {
				return s
			}
		}
		return nil
	})
	return err
}

func (gf *groupFile) WriteAt(ctx context.Context, off int64, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := unix.Pwrite(int(gf.f.Fd()), p, off)
	if err != nil {
		return err
	}
	if n != len(p) {
		return errShortWrite
	}
	return nil
}

func (gf *groupFile) Close() error {
	res := gf.w.rendezvous(gf.rank, nil, func(slots []interface{}) interface{} {
		return gf.f.Close()
	})
	if res == nil {
		return nil
	}
	return res.(error)
}
