// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lib documents the ioscribe module layout.
//
// ioscribe is a runtime core for HPC I/O characterization: it is linked
// into a parallel application, hands out bounded per-module record
// buffers, and at job exit cooperates with peer processes to write one
// compressed log describing how the job touched storage.
//
// The core lives in github.com/ioscribe/ioscribe/ioscribe. The collective
// communication abstraction lives in
// github.com/ioscribe/ioscribe/ioscribe/collective. A sample
// instrumentation module and a driver program live under example/.
package lib
