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
	"github.com/slatevm/paging/pkg/hostarch"
)

// Allocator supplies page-table frames.
//
// An allocator serves one address space at a time; the address space's
// lock covers every call.
type Allocator interface {
	// NewPTEs returns a zeroed, page-aligned table, or ErrNoMemory.
	NewPTEs() (*PTEs, error)

	// PhysicalFor gives the physical address of a table.
	PhysicalFor(ptes *PTEs) hostarch.PhysAddr

	// LookupPTEs is the inverse of PhysicalFor.
	LookupPTEs(physical hostarch.PhysAddr) *PTEs

	// FreePTEs releases a table for reuse.
	FreePTEs(ptes *PTEs)
}

// RuntimeAllocator carves page tables out of the Go heap. Physical
// addresses are synthetic but stable: each table's own virtual address.
type RuntimeAllocator struct {
	// free holds released tables for reuse.
	free []*PTEs

	// countdown, when positive, decrements on each NewPTEs and fails
	// the call on which it reaches zero. See FailAllocsAfter.
	countdown int
}

// NewRuntimeAllocator returns a heap-backed allocator.
func NewRuntimeAllocator() *RuntimeAllocator {
	return &RuntimeAllocator{}
}

// FailAllocsAfter makes the n-th following NewPTEs call (1-based) fail
// with ErrNoMemory; later calls succeed again. It exercises allocation
// failure in tests.
func (a *RuntimeAllocator) FailAllocsAfter(n int) {
	a.countdown = n
}

// NewPTEs implements Allocator.NewPTEs.
func (a *RuntimeAllocator) NewPTEs() (*PTEs, error) {
	if a.countdown > 0 {
		a.countdown--
		if a.countdown == 0 {
			return nil, ErrNoMemory
		}
	}
	if n := len(a.free); n > 0 {
		ptes := a.free[n-1]
		a.free = a.free[:n-1]
		*ptes = PTEs{}
		return ptes, nil
	}
	return newAlignedPTEs(), nil
}

// PhysicalFor implements Allocator.PhysicalFor.
func (a *RuntimeAllocator) PhysicalFor(ptes *PTEs) hostarch.PhysAddr {
	return physicalFor(ptes)
}

// LookupPTEs implements Allocator.LookupPTEs.
func (a *RuntimeAllocator) LookupPTEs(physical hostarch.PhysAddr) *PTEs {
	return fromPhysical(physical)
}

// FreePTEs implements Allocator.FreePTEs.
func (a *RuntimeAllocator) FreePTEs(ptes *PTEs) {
	a.free = append(a.free, ptes)
}
