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

//go:build amd64 && linux
// +build amd64,linux

package pagetables

import (
	"unsafe"

	"github.com/slatevm/paging/pkg/hostarch"
	"github.com/slatevm/paging/pkg/memutil"
)

// mmapChunkPages is how many tables each anonymous mapping provides.
const mmapChunkPages = 64

// MmapAllocator carves page tables out of anonymous mmap chunks, for
// embedders whose table memory must live outside the Go heap (e.g. a
// VMM donating the region to hardware). mmap returns page-aligned
// memory, so no alignment slack is needed.
type MmapAllocator struct {
	chunks [][]byte
	free   []*PTEs
}

// NewMmapAllocator returns an empty MmapAllocator.
func NewMmapAllocator() *MmapAllocator {
	return &MmapAllocator{}
}

// NewPTEs implements Allocator.NewPTEs.
func (a *MmapAllocator) NewPTEs() (*PTEs, error) {
	if len(a.free) == 0 {
		chunk, err := memutil.MapSlice(mmapChunkPages * hostarch.PageSize)
		if err != nil {
			return nil, ErrNoMemory
		}
		a.chunks = append(a.chunks, chunk)
		for i := 0; i < mmapChunkPages; i++ {
			a.free = append(a.free, (*PTEs)(unsafe.Pointer(&chunk[i*hostarch.PageSize])))
		}
	}
	n := len(a.free)
	ptes := a.free[n-1]
	a.free = a.free[:n-1]
	*ptes = PTEs{}
	return ptes, nil
}

// PhysicalFor implements Allocator.PhysicalFor.
func (a *MmapAllocator) PhysicalFor(ptes *PTEs) hostarch.PhysAddr {
	return physicalFor(ptes)
}

// LookupPTEs implements Allocator.LookupPTEs.
func (a *MmapAllocator) LookupPTEs(physical hostarch.PhysAddr) *PTEs {
	return fromPhysical(physical)
}

// FreePTEs implements Allocator.FreePTEs.
func (a *MmapAllocator) FreePTEs(ptes *PTEs) {
	a.free = append(a.free, ptes)
}

// Close releases every chunk. No table handed out by the allocator may
// be used afterwards.
func (a *MmapAllocator) Close() error {
	a.free = nil
	for _, chunk := range a.chunks {
		if err := memutil.UnmapSlice(chunk); err != nil {
			return err
		}
	}
	a.chunks = nil
	return nil
}
