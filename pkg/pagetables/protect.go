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

// updateMapping rewrites the permissions of every present page in the
// range described by start, preserving frames. Holes are skipped, so
// ranges with unmapped stretches re-protect cleanly. Tables are never
// created and never freed; the only allocation is splitting a large
// page the range covers partially. If that split cannot allocate, the
// whole large page is unmapped instead and the walk continues; the
// owner of the range restores it on the next fault.
//
// There is no error path: recursive calls cannot fail.
func (p *PageTables) updateMapping(table *PTEs, flags hostarch.MMUFlags, level Level, start mappingCursor) mappingCursor {
	if level == LevelPT {
		return p.updateMappingL0(table, flags, start)
	}

	cursor := start
	termFlags := p.arch.TerminalFlags(level, flags)

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
				// Rewriting a terminal entry takes the stronger
				// invalidation path.
				p.updateEntry(&clf, level, cursor.vaddr, pte, val.Frame(level), termFlags|pteLarge, true)
				cursor.vaddr += hostarch.Addr(ps)
				cursor.size -= ps
				continue
			}
			pageVaddr := cursor.vaddr &^ hostarch.Addr(ps-1)
			if err := p.splitLargePage(level, pageVaddr, pte); err != nil {
				drop := mappingCursor{vaddr: pageVaddr, size: ps}
				if _, residual := p.removeMapping(table, level, drop); residual.size != 0 {
					panic("dropping a large page did not drain")
				}
				cursor.skipEntry(level)
				continue
			}
			val = pte.load()
		}

		cursor = p.updateMapping(p.nextTable(val), flags, level.lower(), cursor)
	}
	return cursor
}

// updateMappingL0 is the leaf specialization of updateMapping.
func (p *PageTables) updateMappingL0(table *PTEs, flags hostarch.MMUFlags, start mappingCursor) mappingCursor {
	cursor := start
	termFlags := p.arch.TerminalFlags(LevelPT, flags)

	clf := newCacheLineFlusher(p.arch.NeedsCacheFlushes())
	defer clf.forceFlush()

	for index := vaddrIndex(LevelPT, cursor.vaddr); index < entriesPerTable && cursor.size != 0; index++ {
		pte := &table[index]
		if val := pte.load(); val.Present() {
			p.updateEntry(&clf, LevelPT, cursor.vaddr, pte, val.Frame(LevelPT), termFlags, true)
		}
		cursor.vaddr += hostarch.PageSize
		cursor.size -= hostarch.PageSize
	}
	return cursor
}
