// Copyright 2026 The slatevm Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build amd64
// +build amd64

package pagetables

import (
	"unsafe"
)

// cacheLineFlusher coalesces cache-line flushes over adjacent entry
// stores, so a run of writes within one line costs a single
// clflush+fence. At most one line is dirty at a time; it drains when a
// store lands on a different line, on forceFlush, and at scope exit.
//
// Disabled, every method is a no-op: coherent paging hardware snoops
// the entry stores directly.
type cacheLineFlusher struct {
	// dirtyLine is the line-aligned address awaiting a flush, or zero.
	dirtyLine uintptr

	lineMask uintptr
	enabled  bool
}

func newCacheLineFlusher(enabled bool) cacheLineFlusher {
	return cacheLineFlusher{
		lineMask: ^(clflushLineSize - 1),
		enabled:  enabled,
	}
}

// flushPtEntry records that the entry's cache line is dirty, draining
// the previously dirty line if it is a different one.
func (f *cacheLineFlusher) flushPtEntry(pte *PTE) {
	if !f.enabled {
		return
	}
	line := uintptr(unsafe.Pointer(pte)) & f.lineMask
	if line != f.dirtyLine {
		f.forceFlush()
		f.dirtyLine = line
	}
}

// forceFlush drains the pending line, if any. It must run before any
// TLB invalidation that depends on a prior entry store being visible.
func (f *cacheLineFlusher) forceFlush() {
	if f.enabled && f.dirtyLine != 0 {
		flushLine(f.dirtyLine)
		memoryFence()
		f.dirtyLine = 0
	}
}
