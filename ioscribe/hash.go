// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import "github.com/cespare/xxhash/v2"

// RecordID is a stable 64-bit identifier for a named object (a file path,
// typically). The same name hashes to the same id on every process.
type RecordID uint64

// GenRecordID hashes name into a RecordID. It is a pure function: it does
// not touch runtime state and never fails. Two distinct names that happen
// to hash to the same id are treated as the same record (spec.md §9 Open
// Questions) — callers are expected to pass path-like
// names where this is astronomically unlikely.
func GenRecordID(name string) RecordID {
	return RecordID(xxhash.Sum64String(name))
}
