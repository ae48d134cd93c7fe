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

// addMapping installs mappings for the range described by start,
// preferring a terminal entry wherever the level supports one and the
// cursor's addresses and remaining size line up. Missing intermediate
// tables are allocated on the way down.
//
// Intermediate frames return the residual cursor untouched on error;
// only the top frame rolls back, so a failed call leaves nothing
// behind.
//
// Returns ErrAlreadyExists if the range overlaps any present terminal
// entry, and ErrNoMemory if a table cannot be allocated.
func (p *PageTables) addMapping(table *PTEs, flags hostarch.MMUFlags, level Level, start mappingCursor) (cursor mappingCursor, err error) {
	if level == LevelPT {
		return p.addMappingL0(table, flags, start)
	}

	cursor = start
	if level == p.arch.TopLevel() {
		defer func() {
			if err != nil {
				p.rollback(table, level, start, cursor)
			}
		}()
	}

	intermFlags := p.arch.IntermediateFlags()
	termFlags := p.arch.TerminalFlags(level, flags)

	clf := newCacheLineFlusher(p.arch.NeedsCacheFlushes())
	defer clf.forceFlush()

	ps := pageSize(level)
	supportsLarge := p.arch.SupportsLargePages(level)
	for index := vaddrIndex(level, cursor.vaddr); index < entriesPerTable && cursor.size != 0; index++ {
		pte := &table[index]
		val := pte.load()
		if val.Present() && val.Large() {
			return cursor, ErrAlreadyExists
		}

		// A new large mapping needs an absent entry, both addresses
		// aligned, and at least a full entry's worth of request left.
		if supportsLarge && !val.Present() &&
			pageAligned(level, uintptr(cursor.vaddr)) &&
			pageAligned(level, uintptr(cursor.paddr)) &&
			cursor.size >= ps {
			p.updateEntry(&clf, level, cursor.vaddr, pte, cursor.paddr, termFlags|pteLarge, false)
			cursor.paddr += hostarch.PhysAddr(ps)
			cursor.vaddr += hostarch.Addr(ps)
			cursor.size -= ps
			continue
		}

		if !val.Present() {
			m, aerr := p.Allocator.NewPTEs()
			if aerr != nil {
				return cursor, aerr
			}
			p.updateEntry(&clf, level, cursor.vaddr, pte, p.Allocator.PhysicalFor(m), intermFlags, false)
			p.pages++
			val = pte.load()
		}

		cursor, err = p.addMapping(p.nextTable(val), flags, level.lower(), cursor)
		if err != nil {
			return cursor, err
		}
	}
	return cursor, nil
}

// addMappingL0 is the leaf specialization of addMapping: every entry is
// terminal and advances the cursor by exactly one page.
func (p *PageTables) addMappingL0(table *PTEs, flags hostarch.MMUFlags, start mappingCursor) (cursor mappingCursor, err error) {
	cursor = start

	termFlags := p.arch.TerminalFlags(LevelPT, flags)

	clf := newCacheLineFlusher(p.arch.NeedsCacheFlushes())
	defer clf.forceFlush()

	for index := vaddrIndex(LevelPT, cursor.vaddr); index < entriesPerTable && cursor.size != 0; index++ {
		pte := &table[index]
		if pte.load().Present() {
			return cursor, ErrAlreadyExists
		}

		p.updateEntry(&clf, LevelPT, cursor.vaddr, pte, cursor.paddr, termFlags, false)
		cursor.paddr += hostarch.PageSize
		cursor.vaddr += hostarch.PageSize
		cursor.size -= hostarch.PageSize
	}
	return cursor, nil
}

// rollback undoes a failed addMapping from the top frame: it unmaps the
// prefix that was installed, then frees tables left empty on the path
// to the failure point. The prefix removal cannot reach those, since a
// table created for a mapping that never materialized reports no unmap
// progress, so they are pruned explicitly.
func (p *PageTables) rollback(table *PTEs, level Level, start, at mappingCursor) {
	if done := start.size - at.size; done > 0 {
		undo := mappingCursor{vaddr: start.vaddr, size: done}
		if _, residual := p.removeMapping(table, level, undo); residual.size != 0 {
			panic("rollback did not drain")
		}
	}
	p.freeEmptyPath(table, level, at.vaddr)
}

// freeEmptyPath walks the path to vaddr bottom-up, unlinking and
// freeing each table with no present entries.
func (p *PageTables) freeEmptyPath(table *PTEs, level Level, vaddr hostarch.Addr) {
	if level == LevelPT {
		return
	}
	pte := &table[vaddrIndex(level, vaddr)]
	val := pte.load()
	if !val.Present() || val.Large() {
		return
	}
	next := p.nextTable(val)
	p.freeEmptyPath(next, level.lower(), vaddr)
	if !tableEmpty(next) {
		return
	}

	clf := newCacheLineFlusher(p.arch.NeedsCacheFlushes())
	defer clf.forceFlush()
	p.unmapEntry(&clf, level, vaddr, pte, false)
	p.Allocator.FreePTEs(next)
	p.pages--
}
