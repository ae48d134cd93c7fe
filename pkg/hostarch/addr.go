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

package hostarch

// Addr is a virtual address.
type Addr uintptr

// RoundDown returns the address rounded down to the nearest page boundary.
func (v Addr) RoundDown() Addr {
	return v &^ (PageSize - 1)
}

// RoundUp returns the address rounded up to the nearest page boundary. ok is
// true iff rounding up did not wrap around.
func (v Addr) RoundUp() (addr Addr, ok bool) {
	addr = (v + PageSize - 1).RoundDown()
	ok = addr >= v
	return
}

// PageOffset returns the offset of v into its containing page.
func (v Addr) PageOffset() uintptr {
	return uintptr(v & (PageSize - 1))
}

// IsPageAligned returns true if v is page-aligned.
func (v Addr) IsPageAligned() bool {
	return v.PageOffset() == 0
}

// AddLength returns v plus length. ok is true iff the sum did not wrap
// around.
func (v Addr) AddLength(length uintptr) (end Addr, ok bool) {
	end = v + Addr(length)
	ok = end >= v
	return
}

// PhysAddr is a physical address.
type PhysAddr uintptr

// PageOffset returns the offset of p into its containing page frame.
func (p PhysAddr) PageOffset() uintptr {
	return uintptr(p & (PageSize - 1))
}

// IsPageAligned returns true if p is page-aligned.
func (p PhysAddr) IsPageAligned() bool {
	return p.PageOffset() == 0
}
