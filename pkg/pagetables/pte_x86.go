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
	"sync/atomic"

	"github.com/slatevm/paging/pkg/hostarch"
)

// PTE is one page-table entry.
//
// The present bit (0) and the large bit (7) sit at the same positions
// in both the regular and the EPT encodings; everything else belongs to
// the flag policy.
type PTE uint64

// PTEs is one page table: a page-sized, page-aligned array of entries.
type PTEs [entriesPerTable]PTE

// Bits in page table entries.
const (
	ptePresent      PTE = 1 << 0
	pteWritable     PTE = 1 << 1
	pteUser         PTE = 1 << 2
	pteWriteThrough PTE = 1 << 3
	pteCacheDisable PTE = 1 << 4
	pteAccessed     PTE = 1 << 5
	pteDirty        PTE = 1 << 6
	pteLarge        PTE = 1 << 7
	pteGlobal       PTE = 1 << 8
	pteNoExecute    PTE = 1 << 63

	pageFrameMask  PTE = 0x000ffffffffff000
	largeFrameMask PTE = 0x000fffffffe00000
	hugeFrameMask  PTE = 0x000fffffc0000000

	// largeFlagsMask covers the flag bits carried over when a large
	// mapping is subdivided.
	largeFlagsMask PTE = pteNoExecute | 0xfff
)

// load returns a snapshot of the entry.
func (p *PTE) load() PTE {
	return PTE(atomic.LoadUint64((*uint64)(p)))
}

// store atomically replaces the entry.
func (p *PTE) store(v PTE) {
	atomic.StoreUint64((*uint64)(p), uint64(v))
}

// Present returns true if the entry is mapped or points at a table.
func (p PTE) Present() bool {
	return p&ptePresent != 0
}

// Large returns true if the entry terminates the walk above the leaf.
func (p PTE) Large() bool {
	return p&pteLarge != 0
}

// Terminal returns true if the entry maps memory directly at the given
// level rather than pointing at a lower table.
func (p PTE) Terminal(level Level) bool {
	return level == LevelPT || p.Large()
}

// Address extracts the 4 KiB-aligned frame: the target of an
// intermediate entry or of a leaf mapping.
func (p PTE) Address() hostarch.PhysAddr {
	return hostarch.PhysAddr(p & pageFrameMask)
}

// Frame extracts the frame of a terminal entry at the given level.
func (p PTE) Frame(level Level) hostarch.PhysAddr {
	switch level {
	case LevelPT:
		return hostarch.PhysAddr(p & pageFrameMask)
	case LevelPD:
		return hostarch.PhysAddr(p & largeFrameMask)
	case LevelPDP:
		return hostarch.PhysAddr(p & hugeFrameMask)
	default:
		panic("no frame at this level")
	}
}
