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
	"testing"

	"github.com/slatevm/paging/pkg/hostarch"
)

func TestMMUFlagRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		policy MMUPolicy
		in     hostarch.MMUFlags
		want   hostarch.MMUFlags
	}{
		{MMUPolicy{}, hostarch.Read, hostarch.Read},
		{MMUPolicy{}, hostarch.Read | hostarch.Write, hostarch.Read | hostarch.Write},
		{MMUPolicy{}, hostarch.Read | hostarch.Execute, hostarch.Read | hostarch.Execute},
		{MMUPolicy{}, hostarch.Read | hostarch.Write | hostarch.User, hostarch.Read | hostarch.Write | hostarch.User},
		{MMUPolicy{}, hostarch.Read | hostarch.Uncached, hostarch.Read | hostarch.Uncached},
		{MMUPolicy{Kernel: true}, hostarch.Read | hostarch.Write | hostarch.Global, hostarch.Read | hostarch.Write | hostarch.Global},
		// Without PAT management write-combining degrades to itself on
		// decode: PCD alone round-trips as WriteCombining.
		{MMUPolicy{}, hostarch.Read | hostarch.WriteCombining, hostarch.Read | hostarch.WriteCombining},
	} {
		for _, level := range []Level{LevelPT, LevelPD} {
			pte := tc.policy.TerminalFlags(level, tc.in)
			if got := tc.policy.MMUFlags(pte, level); got != tc.want {
				t.Errorf("level %v: round trip of %s = %s, want %s", level, tc.in, got, tc.want)
			}
		}
	}
}

func TestMMUAllowedFlags(t *testing.T) {
	for _, tc := range []struct {
		policy MMUPolicy
		flags  hostarch.MMUFlags
		want   bool
	}{
		{MMUPolicy{}, hostarch.Read, true},
		{MMUPolicy{}, hostarch.Read | hostarch.Write | hostarch.Execute, true},
		{MMUPolicy{}, hostarch.Write, false},
		{MMUPolicy{}, hostarch.Read | hostarch.Global, false},
		{MMUPolicy{}, hostarch.Read | hostarch.Uncached | hostarch.WriteCombining, false},
		{MMUPolicy{Kernel: true}, hostarch.Read | hostarch.Global, true},
		{MMUPolicy{Kernel: true}, hostarch.Read | hostarch.User, false},
	} {
		if got := tc.policy.AllowedFlags(tc.flags); got != tc.want {
			t.Errorf("AllowedFlags(%s) kernel=%v = %v, want %v", tc.flags, tc.policy.Kernel, got, tc.want)
		}
	}
}

func TestMMUCheckVaddr(t *testing.T) {
	user := MMUPolicy{}
	kernel := MMUPolicy{Kernel: true}

	for _, tc := range []struct {
		policy MMUPolicy
		v      hostarch.Addr
		want   bool
	}{
		{user, 0, true},
		{user, 0x00007fffffffffff, true},
		{user, 0xffff800000000000, false},
		{kernel, 0xffff800000000000, true},
		{kernel, 0xffffffffffffffff, true},
		{kernel, 0x1000, false},
		// The non-canonical gap belongs to neither.
		{user, 0x0000800000000000, false},
		{kernel, 0xfffe000000000000, false},
	} {
		if got := tc.policy.CheckVaddr(tc.v); got != tc.want {
			t.Errorf("CheckVaddr(%#x) kernel=%v = %v, want %v", uintptr(tc.v), tc.policy.Kernel, got, tc.want)
		}
	}
}

func TestSplitFlagsPreserveLargeBit(t *testing.T) {
	policy := MMUPolicy{Supports1G: true}
	large := policy.TerminalFlags(LevelPDP, hostarch.Read|hostarch.Write) | pteLarge

	// A huge page splits into large pages.
	if got := policy.SplitFlags(LevelPDP, large&largeFlagsMask); got&pteLarge == 0 {
		t.Errorf("split of a 1G mapping lost the large bit: %#x", uint64(got))
	}
	// A large page splits into leaves.
	large = policy.TerminalFlags(LevelPD, hostarch.Read|hostarch.Write) | pteLarge
	if got := policy.SplitFlags(LevelPD, large&largeFlagsMask); got&pteLarge != 0 {
		t.Errorf("split of a 2M mapping kept the large bit: %#x", uint64(got))
	}
}

func TestSupportsLargePages(t *testing.T) {
	for _, tc := range []struct {
		arch  Arch
		level Level
		want  bool
	}{
		{MMUPolicy{}, LevelPT, false},
		{MMUPolicy{}, LevelPD, true},
		{MMUPolicy{}, LevelPDP, false},
		{MMUPolicy{}, LevelPML4, false},
		{MMUPolicy{Supports1G: true}, LevelPDP, true},
		{EPTPolicy{}, LevelPD, true},
		{EPTPolicy{Supports1G: true}, LevelPDP, true},
	} {
		if got := tc.arch.SupportsLargePages(tc.level); got != tc.want {
			t.Errorf("SupportsLargePages(%v) = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestEPTPolicy(t *testing.T) {
	ept := EPTPolicy{}

	if !ept.NeedsCacheFlushes() {
		t.Errorf("EPT without snoop control must flush")
	}
	if (EPTPolicy{HasSnoopControl: true}).NeedsCacheFlushes() {
		t.Errorf("EPT with snoop control must not flush")
	}

	for _, tc := range []struct {
		flags hostarch.MMUFlags
		want  bool
	}{
		{hostarch.Read, true},
		{hostarch.Read | hostarch.Write | hostarch.Execute, true},
		{hostarch.Write, false},
		{hostarch.Read | hostarch.User, false},
		{hostarch.Read | hostarch.Global, false},
	} {
		if got := ept.AllowedFlags(tc.flags); got != tc.want {
			t.Errorf("AllowedFlags(%s) = %v, want %v", tc.flags, got, tc.want)
		}
	}

	for _, in := range []hostarch.MMUFlags{
		hostarch.Read,
		hostarch.Read | hostarch.Write,
		hostarch.Read | hostarch.Write | hostarch.Execute,
		hostarch.Read | hostarch.Uncached,
	} {
		pte := ept.TerminalFlags(LevelPT, in)
		if got := ept.MMUFlags(pte, LevelPT); got != in {
			t.Errorf("round trip of %s = %s", in, got)
		}
	}

	// Guest-physical space is flat 48-bit, no canonical gap.
	if !ept.CheckVaddr(0x0000800000000000) {
		t.Errorf("mid-range guest-physical address rejected")
	}
	if ept.CheckVaddr(hostarch.Addr(1) << 48) {
		t.Errorf("out-of-range guest-physical address accepted")
	}
}

func TestPTEFrameMasks(t *testing.T) {
	pte := PTE(0x8000000412345fff) // every flag bit set
	for _, tc := range []struct {
		level Level
		want  hostarch.PhysAddr
	}{
		{LevelPT, 0x412345000},
		{LevelPD, 0x412200000},
		{LevelPDP, 0x400000000},
	} {
		if got := pte.Frame(tc.level); got != tc.want {
			t.Errorf("Frame(%v) = %#x, want %#x", tc.level, uintptr(got), uintptr(tc.want))
		}
	}
}
