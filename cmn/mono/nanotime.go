//go:build !mono

// Package mono provides low-level monotonic time.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns nanoseconds elapsed since process start, monotonic
// within the process. Build with -tags mono to use runtime.nanotime
// directly instead.
func NanoTime() int64 { return time.Since(start).Nanoseconds() }
