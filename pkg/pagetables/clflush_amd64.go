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

// clflush flushes the cache line containing addr. Implemented in
// clflush_amd64.s.
func clflush(addr uintptr)

// mfence orders all prior loads and stores. Implemented in
// clflush_amd64.s.
func mfence()

// cpuidex executes CPUID. Implemented in clflush_amd64.s.
func cpuidex(fn, sub uint32) (ax, bx, cx, dx uint32)

// The flusher reaches the hardware through these variables so tests can
// substitute recorders.
var (
	flushLine   = clflush
	memoryFence = mfence
)

// clflushLineSize is the clflush granularity, from CPUID leaf 1.
var clflushLineSize uintptr = 64

func init() {
	if _, bx, _, _ := cpuidex(1, 0); (bx>>8)&0xff != 0 {
		clflushLineSize = uintptr((bx>>8)&0xff) * 8
	}
}
