// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package collective

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// errShortWrite is returned when a positional write does not complete in
// one call; the single-process file backend never retries short writes.
var errShortWrite = errors.New("collective: short write")

// Single is the fallback Coordinator used when no peer processes are
// cooperating: nprocs=1, rank=0, every reduction is an identity (or a
// memcpy when send and recv are distinct buffers), and file I/O uses plain
// positional writes (spec.md §4.6).
type Single struct{}

// NewSingle returns a Coordinator for standalone, single-process jobs.
func NewSingle() Single { return Single{} }

func (Single) Rank() int { return 0 }
func (Single) Size() int { return 1 }

func (Single) Barrier(ctx context.Context) error { return nil }

func (Single) Broadcast(ctx context.Context, root int, buf []byte) error { return nil }

func (Single) Reduce(ctx context.Context, root int, op Op, send, recv []uint64) error {
	return identityReduce(send, recv)
}

func (Single) AllReduce(ctx context.Context, op Op, send, recv []uint64) error {
	return identityReduce(send, recv)
}

func (Single) ScanSum(ctx context.Context, send uint64) (uint64, error) {
	return send, nil
}

func identityReduce(send, recv []uint64) error {
	if len(send) == 0 || len(recv) == 0 || &send[0] == &recv[0] {
		return nil
	}
	copy(recv, send)
	return nil
}

func (Single) CreateExclusive(ctx context.Context, path string) (File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	return &singleFile{f: f}, nil
}

type singleFile struct {
	f *os.File
}

func (s *singleFile) WriteAtAll(ctx context.Context, off int64, p []byte) error {
	return s.WriteAt(ctx, off, p)
}

func (s *singleFile) WriteAt(ctx context.Context, off int64, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := unix.Pwrite(int(s.f.Fd()), p, off)
	if err != nil {
		return err
	}
	if n != len(p) {
		return errShortWrite
	}
	return nil
}

func (s *singleFile) Close() error { return s.f.Close() }
