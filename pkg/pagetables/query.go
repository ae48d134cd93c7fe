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

// getMapping descends to the entry mapping vaddr and returns it along
// with the level the walk terminated at. Read-only: no flush, no
// invalidation.
func (p *PageTables) getMapping(table *PTEs, vaddr hostarch.Addr, level Level) (Level, *PTE, error) {
	if level == LevelPT {
		return p.getMappingL0(table, vaddr)
	}

	pte := &table[vaddrIndex(level, vaddr)]
	val := pte.load()
	if !val.Present() {
		return 0, nil, ErrNotFound
	}
	if val.Large() {
		return level, pte, nil
	}
	return p.getMapping(p.nextTable(val), vaddr, level.lower())
}

// getMappingL0 is the leaf specialization of getMapping.
func (p *PageTables) getMappingL0(table *PTEs, vaddr hostarch.Addr) (Level, *PTE, error) {
	pte := &table[vaddrIndex(LevelPT, vaddr)]
	if !pte.load().Present() {
		return 0, nil, ErrNotFound
	}
	return LevelPT, pte, nil
}
