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

// Package pagetables manages a four-level x86-64 paging tree: it
// installs, removes, and re-permissions virtual-to-physical mappings,
// using large pages where alignment permits, splitting them on partial
// operations, and reclaiming intermediate tables that become empty.
//
// The package is a mechanism only. The frame allocator, the TLB
// shootdown primitive, and the flag encoding are supplied by the caller
// through the Allocator, Invalidator, and Arch interfaces; MMUPolicy and
// EPTPolicy provide the two standard encodings.
//
// Every mutated entry is sequenced as store, cache-line flush, TLB
// invalidation, in that order, so that paging hardware that does not
// snoop the CPU cache never observes a stale entry.
package pagetables

import (
	"fmt"

	"github.com/slatevm/paging/pkg/hostarch"
	"github.com/slatevm/paging/pkg/log"
	"github.com/slatevm/paging/pkg/sync"
)

// PageTables is one address space's paging tree.
//
// All operations serialize on an internal lock; distinct PageTables are
// independent.
type PageTables struct {
	mu sync.Mutex

	// arch supplies the flag encoding and validation policy for this
	// address space.
	arch Arch

	// tlb receives an invalidation for every replaced present entry.
	tlb Invalidator

	// Allocator supplies and reclaims page-table frames.
	Allocator Allocator

	// root is the top-level table.
	root *PTEs

	// rootPhysical is the physical address of root.
	rootPhysical hostarch.PhysAddr

	// pages counts the intermediate tables currently linked into the
	// tree, the root excluded.
	pages uintptr
}

// New returns an empty address space backed by the given policy,
// invalidator, and frame source.
func New(arch Arch, tlb Invalidator, allocator Allocator) (*PageTables, error) {
	root, err := allocator.NewPTEs()
	if err != nil {
		return nil, err
	}
	return &PageTables{
		arch:         arch,
		tlb:          tlb,
		Allocator:    allocator,
		root:         root,
		rootPhysical: allocator.PhysicalFor(root),
	}, nil
}

// RootPhysical returns the physical address of the top-level table, the
// value a hardware root pointer (CR3, EPTP) is loaded with.
func (p *PageTables) RootPhysical() hostarch.PhysAddr {
	return p.rootPhysical
}

// Pages returns the number of intermediate tables in use, the root
// excluded.
func (p *PageTables) Pages() uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages
}

// checkRange validates a page-count range against the policy and
// returns its byte size.
func (p *PageTables) checkRange(vaddr hostarch.Addr, count uintptr) (uintptr, error) {
	if !p.arch.CheckVaddr(vaddr) || !vaddr.IsPageAligned() {
		return 0, ErrInvalidArgs
	}
	size := count * hostarch.PageSize
	if _, ok := vaddr.AddLength(size); !ok {
		return 0, ErrInvalidArgs
	}
	return size, nil
}

// MapPages maps count pages of possibly discontiguous physical memory
// starting at vaddr. On failure nothing remains mapped.
//
// Returns ErrAlreadyExists if any page in the range overlaps an
// existing mapping.
func (p *PageTables) MapPages(vaddr hostarch.Addr, phys []hostarch.PhysAddr, flags hostarch.MMUFlags) error {
	if _, err := p.checkRange(vaddr, uintptr(len(phys))); err != nil {
		return err
	}
	for _, paddr := range phys {
		if !p.arch.CheckPaddr(paddr) || !paddr.IsPageAligned() {
			return ErrInvalidArgs
		}
	}
	if !p.arch.AllowedFlags(flags) {
		return ErrInvalidArgs
	}
	if len(phys) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if log.IsLogging(log.Debug) {
		log.Debugf("MapPages: vaddr=%#x count=%d flags=%s", vaddr, len(phys), flags)
	}

	top := p.arch.TopLevel()
	v := vaddr
	for idx, paddr := range phys {
		start := mappingCursor{paddr: paddr, vaddr: v, size: hostarch.PageSize}
		cursor, err := p.addMapping(p.root, flags, top, start)
		if err != nil {
			// The failed call has already rolled itself back; remove
			// the pages the earlier calls installed.
			if idx > 0 {
				undo := mappingCursor{vaddr: vaddr, size: uintptr(idx) * hostarch.PageSize}
				if _, residual := p.removeMapping(p.root, top, undo); residual.size != 0 {
					panic("rollback did not drain")
				}
			}
			return err
		}
		if cursor.size != 0 {
			panic(fmt.Sprintf("mapping did not drain: %#x remaining", cursor.size))
		}
		v += hostarch.PageSize
	}
	return nil
}

// MapPagesContiguous maps count pages of physically contiguous memory
// starting at (vaddr, paddr). Large mappings are installed wherever
// alignment and length permit. On failure nothing remains mapped.
func (p *PageTables) MapPagesContiguous(vaddr hostarch.Addr, paddr hostarch.PhysAddr, count uintptr, flags hostarch.MMUFlags) error {
	size, err := p.checkRange(vaddr, count)
	if err != nil {
		return err
	}
	if !p.arch.CheckPaddr(paddr) || !paddr.IsPageAligned() {
		return ErrInvalidArgs
	}
	if !p.arch.AllowedFlags(flags) {
		return ErrInvalidArgs
	}
	if count == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if log.IsLogging(log.Debug) {
		log.Debugf("MapPagesContiguous: vaddr=%#x paddr=%#x count=%d flags=%s", vaddr, paddr, count, flags)
	}

	start := mappingCursor{paddr: paddr, vaddr: vaddr, size: size}
	cursor, err := p.addMapping(p.root, flags, p.arch.TopLevel(), start)
	if err != nil {
		return err
	}
	if cursor.size != 0 {
		panic(fmt.Sprintf("mapping did not drain: %#x remaining", cursor.size))
	}
	return nil
}

// UnmapPages unmaps count pages starting at vaddr. Absent pages in the
// range are tolerated; a large page straddling the boundary of the
// range is split, or dropped whole if no table can be allocated for the
// split.
func (p *PageTables) UnmapPages(vaddr hostarch.Addr, count uintptr) error {
	size, err := p.checkRange(vaddr, count)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if log.IsLogging(log.Debug) {
		log.Debugf("UnmapPages: vaddr=%#x count=%d", vaddr, count)
	}

	start := mappingCursor{vaddr: vaddr, size: size}
	if _, residual := p.removeMapping(p.root, p.arch.TopLevel(), start); residual.size != 0 {
		panic(fmt.Sprintf("unmap did not drain: %#x remaining", residual.size))
	}
	return nil
}

// ProtectPages changes the permissions of count pages starting at
// vaddr. Holes in the range are skipped; frames are never changed.
func (p *PageTables) ProtectPages(vaddr hostarch.Addr, count uintptr, flags hostarch.MMUFlags) error {
	size, err := p.checkRange(vaddr, count)
	if err != nil {
		return err
	}
	if !p.arch.AllowedFlags(flags) {
		return ErrInvalidArgs
	}
	if count == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if log.IsLogging(log.Debug) {
		log.Debugf("ProtectPages: vaddr=%#x count=%d flags=%s", vaddr, count, flags)
	}

	start := mappingCursor{vaddr: vaddr, size: size}
	if residual := p.updateMapping(p.root, flags, p.arch.TopLevel(), start); residual.size != 0 {
		panic(fmt.Sprintf("protect did not drain: %#x remaining", residual.size))
	}
	return nil
}

// QueryVaddr returns the physical address vaddr translates to and the
// decoded flags of the mapping, or ErrNotFound.
func (p *PageTables) QueryVaddr(vaddr hostarch.Addr) (hostarch.PhysAddr, hostarch.MMUFlags, error) {
	if !p.arch.CheckVaddr(vaddr) {
		return 0, 0, ErrInvalidArgs
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	level, pte, err := p.getMapping(p.root, vaddr, p.arch.TopLevel())
	if err != nil {
		return 0, 0, err
	}
	val := pte.load()
	// Decode the in-page offset for the level the mapping terminated at.
	paddr := val.Frame(level) | hostarch.PhysAddr(uintptr(vaddr)&(pageSize(level)-1))
	return paddr, p.arch.MMUFlags(val, level), nil
}

// Destroy releases the root table. The caller must have fully unmapped
// the tracked range [base, base+size) first; a mapping still present
// there is a bug in the caller.
func (p *PageTables) Destroy(base hostarch.Addr, size uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()

	top := p.arch.TopLevel()
	start := vaddrIndex(top, base)
	end := vaddrIndex(top, base+hostarch.Addr(size)-1)
	// The first entry may be shared with a neighboring range; the last
	// is checked only if the range covers it entirely.
	if !pageAligned(top, uintptr(base)) {
		start++
	}
	if pageAligned(top, uintptr(base)+size) {
		end++
	}
	for i := start; i < end; i++ {
		if p.root[i].load().Present() {
			panic(fmt.Sprintf("Destroy: root entry %d still present", i))
		}
	}

	p.Allocator.FreePTEs(p.root)
	p.root = nil
	p.rootPhysical = 0
}
