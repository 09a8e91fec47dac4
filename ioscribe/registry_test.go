// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import "testing"

func TestNameRegistryInternAndLookup(t *testing.T) {
	reg := newNameRegistry(1024)
	id := GenRecordID("/tmp/a")

	if _, err := reg.intern(id, "/tmp/a", 0); err != nil {
		t.Fatalf("intern: %v", err)
	}

	name, ok := reg.lookup(id)
	if !ok || name != "/tmp/a" {
		t.Fatalf("lookup = %q, %v; want /tmp/a, true", name, ok)
	}
}

func TestNameRegistryInternIsIdempotent(t *testing.T) {
	reg := newNameRegistry(1024)
	id := GenRecordID("/tmp/a")

	e1, err := reg.intern(id, "/tmp/a", 0)
	if err != nil {
		t.Fatalf("first intern: %v", err)
	}
	e2, err := reg.intern(id, "/tmp/a", 1)
	if err != nil {
		t.Fatalf("second intern: %v", err)
	}
	if e1 != e2 {
		t.Fatal("second intern should return the same entry")
	}
	if !e2.localMods.isSet(0) || !e2.localMods.isSet(1) {
		t.Fatalf("localMods = %b; want bits 0 and 1 set", e2.localMods)
	}
}

func TestNameRegistryQuotaExhausted(t *testing.T) {
	reg := newNameRegistry(16)
	if _, err := reg.intern(GenRecordID("/a/very/long/path/name"), "/a/very/long/path/name", 0); err != ErrQuotaExhausted {
		t.Fatalf("err = %v; want ErrQuotaExhausted", err)
	}
}

func TestNameRegistryLookupMiss(t *testing.T) {
	reg := newNameRegistry(1024)
	if _, ok := reg.lookup(RecordID(42)); ok {
		t.Fatal("lookup of unknown id should miss")
	}
}

func TestModuleBitmap(t *testing.T) {
	var b ModuleBitmap
	b.set(3)
	b.set(63)
	if !b.isSet(3) || !b.isSet(63) {
		t.Fatalf("bitmap = %064b; want bits 3 and 63 set", uint64(b))
	}
	if b.isSet(4) {
		t.Fatal("bit 4 should not be set")
	}
}
