// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestHeaderMarshalRoundTrip(t *testing.T) {
	h := newHeader()
	h.PartialFlag = 0x5
	h.CompType = compDeflate
	h.ModuleIndex[0] = Region{Off: 128, Len: 64}
	h.NameMap = Region{Off: 64, Len: 64}
	h.ModuleVersion[0] = 3

	buf := h.marshal()
	if len(buf) != HeaderSize {
		t.Fatalf("len(marshal()) = %d; want %d", len(buf), HeaderSize)
	}

	got := unmarshalHeader(buf)
	if diff := pretty.Compare(h, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestHeaderMagicAndVersion(t *testing.T) {
	h := newHeader()
	if h.Magic != LogMagic {
		t.Fatalf("Magic = %#x; want %#x", h.Magic, LogMagic)
	}
	if h.VersionString != LogVersionString {
		t.Fatalf("VersionString = %q; want %q", h.VersionString, LogVersionString)
	}
}
