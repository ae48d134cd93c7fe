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
	"fmt"

	"github.com/slatevm/paging/pkg/hostarch"
)

// updateEntry is the single store primitive for present entries. It
// writes the entry, marks its cache line dirty, and, when a present
// entry was replaced, drains the flusher and invalidates the old
// translation. The flush must complete first: non-coherent paging
// hardware re-walking after the invalidation must see the new entry.
func (p *PageTables) updateEntry(clf *cacheLineFlusher, level Level, vaddr hostarch.Addr, pte *PTE, paddr hostarch.PhysAddr, flags PTE, wasTerminal bool) {
	if !paddr.IsPageAligned() {
		panic(fmt.Sprintf("updateEntry: unaligned paddr %#x", uintptr(paddr)))
	}

	old := pte.load()
	pte.store(PTE(paddr) | flags | ptePresent)
	clf.flushPtEntry(pte)

	if old.Present() {
		clf.forceFlush()
		p.tlb.Invalidate(level, vaddr, isKernelAddress(vaddr), wasTerminal)
	}
}

// unmapEntry clears an entry, with the same flush and invalidation
// sequencing as updateEntry.
func (p *PageTables) unmapEntry(clf *cacheLineFlusher, level Level, vaddr hostarch.Addr, pte *PTE, wasTerminal bool) {
	old := pte.load()
	pte.store(0)
	clf.flushPtEntry(pte)

	if old.Present() {
		clf.forceFlush()
		p.tlb.Invalidate(level, vaddr, isKernelAddress(vaddr), wasTerminal)
	}
}

// nextTable returns the lower-level table an intermediate entry points
// at, or nil if the entry is absent or terminal.
func (p *PageTables) nextTable(pte PTE) *PTEs {
	if !pte.Present() || pte.Large() {
		return nil
	}
	return p.Allocator.LookupPTEs(pte.Address())
}

// tableEmpty returns true if no entry in the table is present.
func tableEmpty(table *PTEs) bool {
	for i := range table {
		if table[i].load().Present() {
			return false
		}
	}
	return true
}

// splitLargePage subdivides the large mapping at pte into a full table
// of next-level mappings covering the same range with the same
// permissions, and relinks pte as an intermediate entry. A 1 GiB
// mapping splits into 2 MiB mappings, not leaves: the split flags keep
// the large bit for the next level down.
//
// Preconditions: level > LevelPT; the entry is present and large; vaddr
// is aligned to the level's page size.
func (p *PageTables) splitLargePage(level Level, vaddr hostarch.Addr, pte *PTE) error {
	if level == LevelPT {
		panic("splitting a leaf entry")
	}
	val := pte.load()
	if !val.Present() || !val.Large() {
		panic(fmt.Sprintf("splitting a non-large entry %#x", uint64(val)))
	}
	if !pageAligned(level, uintptr(vaddr)) {
		panic(fmt.Sprintf("splitting at unaligned vaddr %#x", uintptr(vaddr)))
	}

	m, err := p.Allocator.NewPTEs()
	if err != nil {
		return err
	}

	flags := p.arch.SplitFlags(level, val&largeFlagsMask)

	clf := newCacheLineFlusher(p.arch.NeedsCacheFlushes())
	defer clf.forceFlush()

	newVaddr := vaddr
	newPaddr := val.Frame(level)
	ps := pageSize(level.lower())
	for i := 0; i < entriesPerTable; i++ {
		p.updateEntry(&clf, level.lower(), newVaddr, &m[i], newPaddr, flags, false)
		newVaddr += hostarch.Addr(ps)
		newPaddr += hostarch.PhysAddr(ps)
	}

	p.updateEntry(&clf, level, vaddr, pte, p.Allocator.PhysicalFor(m), p.arch.IntermediateFlags(), true)
	p.pages++
	return nil
}
