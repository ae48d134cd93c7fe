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

// removeMapping unmaps the range described by start. Absent entries are
// skipped. A large page covered entirely by the range is unmapped in
// place; one covered partially is split first. If the split cannot
// allocate, the whole large page is unmapped: the caller owns the
// range, and over-unmapping beats leaving any of it mapped.
//
// A sub-table is freed once it holds no present entries: without
// inspection when the walk was about to consume its entire range, and
// otherwise by scanning it after a recursive call reports progress.
//
// Returns true iff an entry was cleared at this level or below, and the
// residual cursor.
func (p *PageTables) removeMapping(table *PTEs, level Level, start mappingCursor) (unmapped bool, cursor mappingCursor) {
	if level == LevelPT {
		return p.removeMappingL0(table, start)
	}

	cursor = start
	clf := newCacheLineFlusher(p.arch.NeedsCacheFlushes())
	defer clf.forceFlush()

	ps := pageSize(level)
	for index := vaddrIndex(level, cursor.vaddr); index < entriesPerTable && cursor.size != 0; index++ {
		pte := &table[index]
		val := pte.load()
		if !val.Present() {
			cursor.skipEntry(level)
			continue
		}

		if val.Large() {
			if pageAligned(level, uintptr(cursor.vaddr)) && cursor.size >= ps {
				p.unmapEntry(&clf, level, cursor.vaddr, pte, true)
				unmapped = true
				cursor.vaddr += hostarch.Addr(ps)
				cursor.size -= ps
				continue
			}
			pageVaddr := cursor.vaddr &^ hostarch.Addr(ps-1)
			if err := p.splitLargePage(level, pageVaddr, pte); err != nil {
				p.unmapEntry(&clf, level, cursor.vaddr, pte, true)
				unmapped = true
				cursor.skipEntry(level)
				continue
			}
			val = pte.load()
		}

		next := p.nextTable(val)
		entryVaddr := cursor.vaddr
		// The walk consuming the entry's entire range frees the
		// sub-table unconditionally.
		freeTable := pageAligned(level, uintptr(cursor.vaddr)) && cursor.size >= ps
		lowerUnmapped, lowerCursor := p.removeMapping(next, level.lower(), cursor)
		if lowerUnmapped {
			unmapped = true
		}
		if !freeTable && lowerUnmapped {
			freeTable = tableEmpty(next)
		}
		if freeTable {
			p.unmapEntry(&clf, level, entryVaddr, pte, false)
			p.Allocator.FreePTEs(next)
			p.pages--
			unmapped = true
		}
		cursor = lowerCursor
	}
	return unmapped, cursor
}

// removeMappingL0 is the leaf specialization of removeMapping.
func (p *PageTables) removeMappingL0(table *PTEs, start mappingCursor) (unmapped bool, cursor mappingCursor) {
	cursor = start
	clf := newCacheLineFlusher(p.arch.NeedsCacheFlushes())
	defer clf.forceFlush()

	for index := vaddrIndex(LevelPT, cursor.vaddr); index < entriesPerTable && cursor.size != 0; index++ {
		pte := &table[index]
		if pte.load().Present() {
			p.unmapEntry(&clf, LevelPT, cursor.vaddr, pte, true)
			unmapped = true
		}
		cursor.vaddr += hostarch.PageSize
		cursor.size -= hostarch.PageSize
	}
	return unmapped, cursor
}
