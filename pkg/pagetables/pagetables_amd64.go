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

// Four-level paging geometry.
//
// The lowerTop and upperBottom constants bound the canonical halves of
// the 48-bit address space.
const (
	pageShift       = hostarch.PageShift
	entryBits       = 9
	entriesPerTable = 512

	lowerTop    = 0x00007fffffffffff
	upperBottom = 0xffff800000000000

	// maxPhysical is one past the largest physical address a PTE frame
	// field can carry.
	maxPhysical = 1 << 52
)

// Level identifies one level of the paging tree.
type Level uint8

// Levels, leaf first.
const (
	// LevelPT is the leaf level; entries map 4 KiB pages.
	LevelPT Level = iota

	// LevelPD entries map 2 MiB pages or point at a PT.
	LevelPD

	// LevelPDP entries map 1 GiB pages or point at a PD.
	LevelPDP

	// LevelPML4 is the root level.
	LevelPML4

	numLevels
)

// String implements fmt.Stringer.String.
func (l Level) String() string {
	switch l {
	case LevelPT:
		return "PT"
	case LevelPD:
		return "PD"
	case LevelPDP:
		return "PDP"
	case LevelPML4:
		return "PML4"
	default:
		return "invalid"
	}
}

// lower returns the next level down.
//
// Precondition: l > LevelPT.
func (l Level) lower() Level {
	if l == LevelPT {
		panic("no level below the leaf")
	}
	return l - 1
}

func levelShift(level Level) uint {
	return pageShift + entryBits*uint(level)
}

// pageSize returns the number of bytes one entry at this level maps.
func pageSize(level Level) uintptr {
	return uintptr(1) << levelShift(level)
}

// pageAligned returns true if x is aligned to this level's page size.
func pageAligned(level Level, x uintptr) bool {
	return x&(pageSize(level)-1) == 0
}

// vaddrIndex extracts the table index for vaddr at the given level.
func vaddrIndex(level Level, vaddr hostarch.Addr) int {
	return int((uintptr(vaddr) >> levelShift(level)) & (entriesPerTable - 1))
}

// isKernelAddress returns true for addresses in the upper canonical
// half, whose translations are eligible for global TLB entries.
func isKernelAddress(vaddr hostarch.Addr) bool {
	return uintptr(vaddr) >= upperBottom
}
