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

// MMUPolicy is the Arch implementation for regular 4-level x86-64
// paging.
//
// Without PAT management only the PWT/PCD attributes are emitted, so a
// write-combining request degrades to uncached.
type MMUPolicy struct {
	// Kernel selects the kernel flavor: addresses come from the upper
	// canonical half, global mappings are honored, and user-accessible
	// ones are refused. The user flavor is the inverse.
	Kernel bool

	// Supports1G enables 1 GiB terminal mappings, mirroring
	// CPUID.80000001H:EDX.Page1GB.
	Supports1G bool
}

// TopLevel implements Arch.TopLevel.
func (MMUPolicy) TopLevel() Level { return LevelPML4 }

// CheckVaddr implements Arch.CheckVaddr.
func (m MMUPolicy) CheckVaddr(v hostarch.Addr) bool {
	if m.Kernel {
		return uintptr(v) >= upperBottom
	}
	return uintptr(v) <= lowerTop
}

// CheckPaddr implements Arch.CheckPaddr.
func (MMUPolicy) CheckPaddr(p hostarch.PhysAddr) bool {
	return uintptr(p) < maxPhysical
}

// AllowedFlags implements Arch.AllowedFlags.
func (m MMUPolicy) AllowedFlags(f hostarch.MMUFlags) bool {
	if !f.Readable() {
		// x86 cannot express a present, unreadable mapping.
		return false
	}
	if f&hostarch.CacheMask == hostarch.CacheMask {
		return false
	}
	if m.Kernel {
		return !f.UserAccessible()
	}
	return !f.IsGlobal()
}

// SupportsLargePages implements Arch.SupportsLargePages.
func (m MMUPolicy) SupportsLargePages(level Level) bool {
	switch level {
	case LevelPD:
		return true
	case LevelPDP:
		return m.Supports1G
	default:
		return false
	}
}

// NeedsCacheFlushes implements Arch.NeedsCacheFlushes. The CPU's page
// walker snoops the cache.
func (MMUPolicy) NeedsCacheFlushes() bool { return false }

// TerminalFlags implements Arch.TerminalFlags.
func (MMUPolicy) TerminalFlags(level Level, f hostarch.MMUFlags) PTE {
	var flags PTE
	if f.Writable() {
		flags |= pteWritable
	}
	if !f.Executable() {
		flags |= pteNoExecute
	}
	if f.UserAccessible() {
		flags |= pteUser
	}
	if f.IsGlobal() {
		flags |= pteGlobal
	}
	switch {
	case f&hostarch.Uncached != 0:
		flags |= pteCacheDisable | pteWriteThrough
	case f&hostarch.WriteCombining != 0:
		flags |= pteCacheDisable
	}
	return flags
}

// IntermediateFlags implements Arch.IntermediateFlags. Table pointers
// carry the most permissive bits; permissions are enforced at the
// terminal entry.
func (m MMUPolicy) IntermediateFlags() PTE {
	flags := ptePresent | pteWritable
	if !m.Kernel {
		flags |= pteUser
	}
	return flags
}

// SplitFlags implements Arch.SplitFlags.
func (MMUPolicy) SplitFlags(level Level, largeFlags PTE) PTE {
	flags := largeFlags
	if level == LevelPD {
		// 2 MiB entries become leaves; the large bit does not survive.
		// Splitting 1 GiB keeps it: the pieces are 2 MiB mappings.
		flags &^= pteLarge
	}
	return flags
}

// MMUFlags implements Arch.MMUFlags.
func (MMUPolicy) MMUFlags(pte PTE, level Level) hostarch.MMUFlags {
	f := hostarch.Read
	if pte&pteWritable != 0 {
		f |= hostarch.Write
	}
	if pte&pteNoExecute == 0 {
		f |= hostarch.Execute
	}
	if pte&pteUser != 0 {
		f |= hostarch.User
	}
	if pte&pteGlobal != 0 {
		f |= hostarch.Global
	}
	switch {
	case pte&pteCacheDisable != 0 && pte&pteWriteThrough != 0:
		f |= hostarch.Uncached
	case pte&pteCacheDisable != 0:
		f |= hostarch.WriteCombining
	}
	return f
}
