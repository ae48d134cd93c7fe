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

// EPT entry bits. Bit 0 doubles as the walker's present bit: an EPT
// entry with no read permission is not expressible here, which
// AllowedFlags enforces.
const (
	eptReadable   PTE = 1 << 0
	eptWritable   PTE = 1 << 1
	eptExecutable PTE = 1 << 2

	eptMemoryTypeShift = 3

	eptMemoryTypeMask      PTE = 7 << eptMemoryTypeShift
	eptMemoryTypeUncached  PTE = 0 << eptMemoryTypeShift
	eptMemoryTypeWriteBack PTE = 6 << eptMemoryTypeShift
)

// EPTPolicy is the Arch implementation for VMX extended page tables,
// the second-stage translation of guest-physical addresses.
//
// User and Global have no meaning in a guest-physical space and are
// refused.
type EPTPolicy struct {
	// HasSnoopControl reports whether the platform snoops CPU caches
	// for EPT walks. Without it, every entry store is flushed.
	HasSnoopControl bool

	// Supports1G enables 1 GiB terminal mappings.
	Supports1G bool
}

// TopLevel implements Arch.TopLevel.
func (EPTPolicy) TopLevel() Level { return LevelPML4 }

// CheckVaddr implements Arch.CheckVaddr. Guest-physical addresses are
// not canonicalized; the walk covers a flat 48-bit space.
func (EPTPolicy) CheckVaddr(v hostarch.Addr) bool {
	return uintptr(v) < uintptr(1)<<48
}

// CheckPaddr implements Arch.CheckPaddr.
func (EPTPolicy) CheckPaddr(p hostarch.PhysAddr) bool {
	return uintptr(p) < maxPhysical
}

// AllowedFlags implements Arch.AllowedFlags.
func (EPTPolicy) AllowedFlags(f hostarch.MMUFlags) bool {
	if !f.Readable() {
		return false
	}
	if f&hostarch.CacheMask == hostarch.CacheMask {
		return false
	}
	return !f.UserAccessible() && !f.IsGlobal()
}

// SupportsLargePages implements Arch.SupportsLargePages.
func (e EPTPolicy) SupportsLargePages(level Level) bool {
	switch level {
	case LevelPD:
		return true
	case LevelPDP:
		return e.Supports1G
	default:
		return false
	}
}

// NeedsCacheFlushes implements Arch.NeedsCacheFlushes.
func (e EPTPolicy) NeedsCacheFlushes() bool {
	return !e.HasSnoopControl
}

// TerminalFlags implements Arch.TerminalFlags.
func (EPTPolicy) TerminalFlags(level Level, f hostarch.MMUFlags) PTE {
	flags := eptReadable
	if f.Writable() {
		flags |= eptWritable
	}
	if f.Executable() {
		flags |= eptExecutable
	}
	if f&hostarch.Uncached != 0 || f&hostarch.WriteCombining != 0 {
		flags |= eptMemoryTypeUncached
	} else {
		flags |= eptMemoryTypeWriteBack
	}
	return flags
}

// IntermediateFlags implements Arch.IntermediateFlags. Table pointers
// carry all permissions; memory types apply to terminal entries only.
func (EPTPolicy) IntermediateFlags() PTE {
	return eptReadable | eptWritable | eptExecutable
}

// SplitFlags implements Arch.SplitFlags.
func (EPTPolicy) SplitFlags(level Level, largeFlags PTE) PTE {
	flags := largeFlags
	if level == LevelPD {
		flags &^= pteLarge
	}
	return flags
}

// MMUFlags implements Arch.MMUFlags.
func (EPTPolicy) MMUFlags(pte PTE, level Level) hostarch.MMUFlags {
	f := hostarch.Read
	if pte&eptWritable != 0 {
		f |= hostarch.Write
	}
	if pte&eptExecutable != 0 {
		f |= hostarch.Execute
	}
	if pte&eptMemoryTypeMask == eptMemoryTypeUncached {
		f |= hostarch.Uncached
	}
	return f
}
