// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// A minimal instrumented job: touches a handful of paths through
// samplemod and writes a log at exit.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/ioscribe/ioscribe/example/samplemod"
	"github.com/ioscribe/ioscribe/ioscribe"
	"github.com/ioscribe/ioscribe/ioscribe/collective"
)

func main() {
	memKiB := flag.Int("mem-kib", 64, "module record buffer size in KiB")
	flag.Parse()

	if err := ioscribe.Initialize(os.Args); err != nil {
		log.Fatalf("initialize: %v", err)
	}

	mod, err := samplemod.New(*memKiB * 1024)
	if err != nil {
		log.Fatalf("register module: %v", err)
	}

	for _, path := range flag.Args() {
		if err := mod.Record(path, false, 4096); err != nil {
			log.Printf("record %s: %v", path, err)
		}
	}

	if err := ioscribe.Shutdown(context.Background(), collective.NewSingle()); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
