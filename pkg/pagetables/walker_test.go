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

	"github.com/google/go-cmp/cmp"
	"github.com/slatevm/paging/pkg/hostarch"
)

func TestSplit2MPage(t *testing.T) {
	pt, _, _ := newUserTables(t)

	// Map a huge page and knock out the middle.
	if err := pt.MapPagesContiguous(0x200000, 0x800000, 512, hostarch.Read); err != nil {
		t.Fatalf("MapPagesContiguous: %v", err)
	}
	if err := pt.UnmapPages(0x201000, 510); err != nil {
		t.Fatalf("UnmapPages: %v", err)
	}

	checkMappings(t, pt, []mapping{
		{Vaddr: 0x200000, Length: ptSize, Paddr: 0x800000, Flags: hostarch.Read},
		{Vaddr: 0x3ff000, Length: ptSize, Paddr: 0x9ff000, Flags: hostarch.Read},
	})
	checkInvariants(t, pt)
}

func TestSplit1GPage(t *testing.T) {
	pt, _, _ := newTables(t, MMUPolicy{Supports1G: true})

	if err := pt.MapPagesContiguous(0x40000000, 0x80000000, pdpSize/ptSize, hostarch.Read|hostarch.Write); err != nil {
		t.Fatalf("MapPagesContiguous: %v", err)
	}
	if got, want := pt.Pages(), uintptr(1); got != want {
		t.Fatalf("Pages() = %d after 1G map, want %d", got, want)
	}

	// Unmapping one leaf splits the huge page into large pages, and the
	// first large page into leaves.
	if err := pt.UnmapPages(0x40000000, 1); err != nil {
		t.Fatalf("UnmapPages: %v", err)
	}
	if got, want := pt.Pages(), uintptr(3); got != want {
		t.Errorf("Pages() = %d after split, want %d", got, want)
	}

	if _, _, err := pt.QueryVaddr(0x40000000); err != ErrNotFound {
		t.Errorf("QueryVaddr(0x40000000): %v, want ErrNotFound", err)
	}
	// The split preserves the rest of the range exactly.
	for _, off := range []uintptr{
		0x1000,     // leaf in the split PT
		0x1ff000,   // last leaf in the split PT
		0x200000,   // first surviving 2M entry
		0x12345000, // middle of the range
		pdpSize - ptSize,
	} {
		paddr, flags, err := pt.QueryVaddr(0x40000000 + hostarch.Addr(off))
		if err != nil {
			t.Fatalf("QueryVaddr(+%#x): %v", off, err)
		}
		if want := hostarch.PhysAddr(0x80000000 + off); paddr != want {
			t.Errorf("QueryVaddr(+%#x) = %#x, want %#x", off, uintptr(paddr), uintptr(want))
		}
		if want := hostarch.Read | hostarch.Write; flags != want {
			t.Errorf("QueryVaddr(+%#x) flags = %s, want %s", off, flags, want)
		}
	}

	// 511 leaves plus 511 large pages.
	var got []mapping
	collectMappings(pt, pt.root, pt.arch.TopLevel(), 0, &got)
	var leaves, larges int
	for _, m := range got {
		switch m.Length {
		case ptSize:
			leaves++
		case pdSize:
			larges++
		default:
			t.Errorf("unexpected mapping length %#x", m.Length)
		}
	}
	if leaves != 511 || larges != 511 {
		t.Errorf("got %d leaves and %d large pages, want 511 and 511", leaves, larges)
	}
	checkInvariants(t, pt)
}

func TestSplitFailureOverUnmaps(t *testing.T) {
	pt, alloc, inv := newUserTables(t)

	if err := pt.MapPagesContiguous(0x200000, 0x800000, 512, hostarch.Read); err != nil {
		t.Fatalf("MapPagesContiguous: %v", err)
	}
	inv.reset()

	// With no frame for the split, the partial unmap takes the whole
	// large page.
	alloc.FailAllocsAfter(1)
	if err := pt.UnmapPages(0x200000, 1); err != nil {
		t.Fatalf("UnmapPages: %v", err)
	}

	if _, _, err := pt.QueryVaddr(0x201000); err != ErrNotFound {
		t.Errorf("QueryVaddr(0x201000): %v, want ErrNotFound", err)
	}
	if got := pt.Pages(); got != 0 {
		t.Errorf("Pages() = %d, want 0", got)
	}
	want := []invalidation{
		{Level: LevelPD, Vaddr: 0x200000, Terminal: true},
		{Level: LevelPDP, Vaddr: 0x200000},
		{Level: LevelPML4, Vaddr: 0x200000},
	}
	if diff := cmp.Diff(want, inv.invs); diff != "" {
		t.Errorf("invalidations mismatch (-want +got):\n%s", diff)
	}
	checkMappings(t, pt, nil)
	checkInvariants(t, pt)
}

func TestProtectSplitFailureDropsLargePage(t *testing.T) {
	pt, alloc, _ := newUserTables(t)

	if err := pt.MapPagesContiguous(0x200000, 0x800000, 512, hostarch.Read|hostarch.Write); err != nil {
		t.Fatalf("MapPagesContiguous: %v", err)
	}

	// A partial re-protect that cannot split drops the whole large
	// page; the owner of the range faults it back in later.
	alloc.FailAllocsAfter(1)
	if err := pt.ProtectPages(0x200000, 1, hostarch.Read); err != nil {
		t.Fatalf("ProtectPages: %v", err)
	}

	for _, off := range []uintptr{0, 0x1000, pdSize - ptSize} {
		if _, _, err := pt.QueryVaddr(0x200000 + hostarch.Addr(off)); err != ErrNotFound {
			t.Errorf("QueryVaddr(+%#x): %v, want ErrNotFound", off, err)
		}
	}
	// Protect never frees tables, so the emptied PD stays linked until
	// the range is reused or unmapped.
	if got, want := pt.Pages(), uintptr(2); got != want {
		t.Errorf("Pages() = %d, want %d", got, want)
	}
	checkMappings(t, pt, nil)
}

func TestProtectSplitRewritesTail(t *testing.T) {
	pt, _, _ := newUserTables(t)

	if err := pt.MapPagesContiguous(0x200000, 0x800000, 512, hostarch.Read|hostarch.Write); err != nil {
		t.Fatalf("MapPagesContiguous: %v", err)
	}
	// Re-protect the second half of the large page.
	if err := pt.ProtectPages(0x300000, 256, hostarch.Read); err != nil {
		t.Fatalf("ProtectPages: %v", err)
	}

	for _, tc := range []struct {
		off   uintptr
		flags hostarch.MMUFlags
	}{
		{0, hostarch.Read | hostarch.Write},
		{0xff000, hostarch.Read | hostarch.Write},
		{0x100000, hostarch.Read},
		{0x1ff000, hostarch.Read},
	} {
		paddr, flags, err := pt.QueryVaddr(0x200000 + hostarch.Addr(tc.off))
		if err != nil {
			t.Fatalf("QueryVaddr(+%#x): %v", tc.off, err)
		}
		if want := hostarch.PhysAddr(0x800000 + tc.off); paddr != want {
			t.Errorf("QueryVaddr(+%#x) = %#x, want %#x", tc.off, uintptr(paddr), uintptr(want))
		}
		if flags != tc.flags {
			t.Errorf("QueryVaddr(+%#x) flags = %s, want %s", tc.off, flags, tc.flags)
		}
	}
	// One PT was created by the split; nothing was freed.
	if got, want := pt.Pages(), uintptr(3); got != want {
		t.Errorf("Pages() = %d, want %d", got, want)
	}
	checkInvariants(t, pt)
}

func TestUnmapSpanningTables(t *testing.T) {
	pt, _, _ := newUserTables(t)

	// Pages on both sides of a PD boundary, then one unmap across it.
	if err := pt.MapPagesContiguous(0x1fe000, 0x400000, 4, hostarch.Read); err != nil {
		t.Fatalf("MapPagesContiguous: %v", err)
	}
	if err := pt.UnmapPages(0x1fe000, 4); err != nil {
		t.Fatalf("UnmapPages: %v", err)
	}
	if got := pt.Pages(); got != 0 {
		t.Errorf("Pages() = %d, want 0", got)
	}
	checkMappings(t, pt, nil)
	checkInvariants(t, pt)
}
