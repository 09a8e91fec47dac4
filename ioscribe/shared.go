// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"context"
	"encoding/binary"
	"sort"

	"github.com/ioscribe/ioscribe/ioscribe/collective"
)

// sharedSet is the result of shared-record discovery (spec.md §4.7): the
// ids every rank agrees are shared, and for each such id the bitwise AND
// of every rank's localMods — the modules that touched it on every rank
// in common.
type sharedSet struct {
	ids     []RecordID
	modsFor map[RecordID]ModuleBitmap
}

// discoverSharedRecords runs the collective id-agreement protocol: the
// root broadcasts the identifiers it knows about, every rank contributes
// its own per-id module bitmap (zero for an id it never saw), and a
// single AllReduce-with-bitwise-AND folds those into one shared view. An
// id reduces to zero, and is therefore not shared, both when some rank
// never saw it at all and when every rank saw it but through disjoint
// module sets — AND-ing a never-seen rank's implicit zero into the
// result and AND-ing together module sets with no bit in common both
// collapse to zero the same way, which is exactly the outcome spec.md
// §4.7 calls for. The protocol only needs Broadcast and AllReduce, so it
// works unchanged whether coord is collective.Single or collective.Group
// (spec.md §4.6).
func discoverSharedRecords(ctx context.Context, coord collective.Coordinator, reg *nameRegistry) (sharedSet, error) {
	root := 0
	var candidates []RecordID
	if coord.Rank() == root {
		candidates = make([]RecordID, 0, len(reg.byID))
		for id := range reg.byID {
			candidates = append(candidates, id)
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	}

	countBuf := make([]byte, 8)
	if coord.Rank() == root {
		binary.LittleEndian.PutUint64(countBuf, uint64(len(candidates)))
	}
	if err := coord.Broadcast(ctx, root, countBuf); err != nil {
		return sharedSet{}, ErrCollectiveFailure
	}
	count := binary.LittleEndian.Uint64(countBuf)
	if count == 0 {
		return sharedSet{}, nil
	}

	idBuf := make([]byte, count*8)
	if coord.Rank() == root {
		for i, id := range candidates {
			binary.LittleEndian.PutUint64(idBuf[i*8:], uint64(id))
		}
	}
	if err := coord.Broadcast(ctx, root, idBuf); err != nil {
		return sharedSet{}, ErrCollectiveFailure
	}

	ids := make([]RecordID, count)
	for i := range ids {
		ids[i] = RecordID(binary.LittleEndian.Uint64(idBuf[i*8:]))
	}

	mods := make([]uint64, count)
	for i, id := range ids {
		if e, ok := reg.byID[id]; ok {
			mods[i] = uint64(e.localMods)
		}
	}

	modsOut := make([]uint64, count)
	if err := coord.AllReduce(ctx, collective.OpBAnd, mods, modsOut); err != nil {
		return sharedSet{}, ErrCollectiveFailure
	}

	out := sharedSet{modsFor: make(map[RecordID]ModuleBitmap)}
	for i, id := range ids {
		if modsOut[i] != 0 {
			out.ids = append(out.ids, id)
			out.modsFor[id] = ModuleBitmap(modsOut[i])
		}
		if e, ok := reg.byID[id]; ok {
			e.globalMods = ModuleBitmap(modsOut[i])
		}
	}
	return out, nil
}
