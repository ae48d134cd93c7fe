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

	"github.com/slatevm/paging/pkg/hostarch"
)

// newAlignedPTEs returns a zeroed, page-aligned table. The runtime
// cannot be asked for aligned memory directly, so the buffer is
// over-allocated and the aligned portion used; the interior pointer
// keeps the whole buffer reachable.
func newAlignedPTEs() *PTEs {
	buf := make([]byte, unsafe.Sizeof(PTEs{})+hostarch.PageSize-1)
	offset := -uintptr(unsafe.Pointer(&buf[0])) & (hostarch.PageSize - 1)
	return (*PTEs)(unsafe.Pointer(&buf[offset]))
}

// physicalFor synthesizes a stable physical address for a heap table.
func physicalFor(ptes *PTEs) hostarch.PhysAddr {
	return hostarch.PhysAddr(uintptr(unsafe.Pointer(ptes)))
}

// fromPhysical is the inverse of physicalFor.
func fromPhysical(physical hostarch.PhysAddr) *PTEs {
	return (*PTEs)(unsafe.Pointer(uintptr(physical)))
}
