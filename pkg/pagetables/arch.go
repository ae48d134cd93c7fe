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

// Arch specializes an address space: it encodes and decodes flags,
// validates addresses, and declares the paging variant's capabilities.
// The walker is otherwise identical between variants (regular paging,
// extended page tables).
type Arch interface {
	// TopLevel returns the level the walk starts from.
	TopLevel() Level

	// CheckVaddr returns true if v is mappable in this address space.
	CheckVaddr(v hostarch.Addr) bool

	// CheckPaddr returns true if p is a mappable physical address.
	CheckPaddr(p hostarch.PhysAddr) bool

	// AllowedFlags returns true if the combination of flags can be
	// expressed by this variant.
	AllowedFlags(flags hostarch.MMUFlags) bool

	// SupportsLargePages returns true if entries at the given level may
	// be terminal.
	SupportsLargePages(level Level) bool

	// NeedsCacheFlushes returns true if the paging hardware does not
	// snoop the CPU cache, so entry stores must be flushed explicitly.
	NeedsCacheFlushes() bool

	// TerminalFlags returns the entry bits for a terminal mapping at
	// the given level. The walker adds the large bit above the leaf and
	// always sets the present bit, so the result need not carry either.
	TerminalFlags(level Level, flags hostarch.MMUFlags) PTE

	// IntermediateFlags returns the entry bits for a table pointer.
	IntermediateFlags() PTE

	// SplitFlags returns the bits for the lower-level entries that
	// replace a large mapping at the given level. largeFlags is the
	// original entry's flag bits; the result keeps the large bit when
	// the lower level's entries are themselves large mappings.
	SplitFlags(level Level, largeFlags PTE) PTE

	// MMUFlags decodes a terminal entry's bits at the given level.
	MMUFlags(pte PTE, level Level) hostarch.MMUFlags
}

// Invalidator performs TLB shootdown for a single translation.
//
// The walker guarantees that the entry store, and its cache-line flush
// when required, are globally visible before each call. wasTerminal
// reports whether the replaced entry mapped memory directly; some
// variants must flush more of the TLB when it did not. Implementations
// may coalesce invalidations across CPUs but must complete them before
// returning.
type Invalidator interface {
	Invalidate(level Level, vaddr hostarch.Addr, global, wasTerminal bool)
}
