// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"sort"
	"strings"

	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"
)

// MountEntry is one row of the filesystem info table (spec.md §3, §6):
// enough to classify a path by mounted filesystem and to report the
// filesystem's preferred I/O block size.
type MountEntry struct {
	Path      string
	FSType    string
	BlockSize int64
}

// scanMounts mirrors darshan_get_exe_and_mounts's two-pass approach: a
// first pass records every local (non fs-excluded) mount, a second pass
// adds network/cluster filesystems that the first pass's type filter
// would otherwise have skipped. The result is sorted by path length,
// longest first, so longestMatch below can stop at the first hit.
func scanMounts(cfg *config) ([]MountEntry, error) {
	var entries []MountEntry
	networkFS := map[string]bool{"nfs": true, "nfs4": true}

	local, err := mountinfo.GetMounts(func(i *mountinfo.Info) (skip, stop bool) {
		if fsTypeExclusions[i.FSType] || networkFS[i.FSType] {
			return true, false
		}
		return false, false
	})
	if err != nil {
		return nil, err
	}
	entries = append(entries, toMountEntries(local)...)

	network, err := mountinfo.GetMounts(func(i *mountinfo.Info) (skip, stop bool) {
		if !networkFS[i.FSType] {
			return true, false
		}
		return false, false
	})
	if err != nil {
		return nil, err
	}
	entries = append(entries, toMountEntries(network)...)

	entries = filterPaths(entries, cfg)

	sort.Slice(entries, func(i, j int) bool {
		return len(entries[i].Path) > len(entries[j].Path)
	})
	return entries, nil
}

func toMountEntries(infos []*mountinfo.Info) []MountEntry {
	out := make([]MountEntry, 0, len(infos))
	for _, i := range infos {
		bs := int64(4096)
		if sz, err := blockSize(i.Mountpoint); err == nil {
			bs = sz
		}
		out = append(out, MountEntry{Path: i.Mountpoint, FSType: i.FSType, BlockSize: bs})
	}
	return out
}

// blockSize reads the optimal I/O block size for a mountpoint via statfs,
// reported as MountEntry.BlockSize.
func blockSize(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int64(st.Bsize), nil
}

// filterPaths drops excluded mounts unless cfg.excludeAll is set (the
// IOSCRIBE_EXCLUDE_DIRS=none sentinel disables filtering entirely) or the
// mount is named in the inclusion whitelist, which always wins over an
// exclusion prefix match (spec.md §3 "inclusions override exclusions").
func filterPaths(entries []MountEntry, cfg *config) []MountEntry {
	if cfg.excludeAll {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if pathHasAnyPrefix(e.Path, cfg.pathInclusions) {
			out = append(out, e)
			continue
		}
		if pathHasAnyPrefix(e.Path, cfg.pathExclusions) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func pathHasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// longestMatch finds the mount entry with the longest path that is a
// prefix of name, matching darshan_fs_info_from_path's resolution rule.
// Entries must already be sorted longest-path-first (see scanMounts).
func longestMatch(entries []MountEntry, name string) (MountEntry, bool) {
	for _, e := range entries {
		if strings.HasPrefix(name, e.Path) {
			return e, true
		}
	}
	return MountEntry{}, false
}
