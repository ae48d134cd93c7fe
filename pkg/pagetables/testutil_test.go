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

// invalidation is one recorded TLB shootdown.
type invalidation struct {
	Level    Level
	Vaddr    hostarch.Addr
	Global   bool
	Terminal bool
}

// recordingInvalidator records every shootdown in order.
type recordingInvalidator struct {
	invs []invalidation
}

// Invalidate implements Invalidator.Invalidate.
func (r *recordingInvalidator) Invalidate(level Level, vaddr hostarch.Addr, global, wasTerminal bool) {
	r.invs = append(r.invs, invalidation{Level: level, Vaddr: vaddr, Global: global, Terminal: wasTerminal})
}

func (r *recordingInvalidator) reset() {
	r.invs = nil
}

func newTables(t *testing.T, arch Arch) (*PageTables, *RuntimeAllocator, *recordingInvalidator) {
	t.Helper()
	alloc := NewRuntimeAllocator()
	inv := &recordingInvalidator{}
	pt, err := New(arch, inv, alloc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return pt, alloc, inv
}

func newUserTables(t *testing.T) (*PageTables, *RuntimeAllocator, *recordingInvalidator) {
	return newTables(t, MMUPolicy{})
}

// mapping is one terminal entry as seen by a full tree walk.
type mapping struct {
	Vaddr  hostarch.Addr
	Length uintptr
	Paddr  hostarch.PhysAddr
	Flags  hostarch.MMUFlags
}

func collectMappings(p *PageTables, table *PTEs, level Level, base hostarch.Addr, out *[]mapping) {
	for i := 0; i < entriesPerTable; i++ {
		val := table[i].load()
		if !val.Present() {
			continue
		}
		v := base + hostarch.Addr(uintptr(i)<<levelShift(level))
		if level == LevelPML4 && i >= entriesPerTable/2 {
			// Sign-extend upper-half addresses.
			mask := ^uintptr(0)
			v |= hostarch.Addr(mask << 48)
		}
		if val.Terminal(level) {
			*out = append(*out, mapping{
				Vaddr:  v,
				Length: pageSize(level),
				Paddr:  val.Frame(level),
				Flags:  p.arch.MMUFlags(val, level),
			})
			continue
		}
		collectMappings(p, p.nextTable(val), level.lower(), v, out)
	}
}

// checkMappings walks the whole tree and diffs the terminal entries
// found against want, in address order.
func checkMappings(t *testing.T, p *PageTables, want []mapping) {
	t.Helper()
	var got []mapping
	collectMappings(p, p.root, p.arch.TopLevel(), 0, &got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mappings mismatch (-want +got):\n%s", diff)
	}
}

func countReachableTables(t *testing.T, p *PageTables, table *PTEs, level Level) uintptr {
	t.Helper()
	var n uintptr
	for i := 0; i < entriesPerTable; i++ {
		val := table[i].load()
		if !val.Present() || val.Terminal(level) {
			continue
		}
		next := p.nextTable(val)
		if tableEmpty(next) {
			t.Errorf("empty table linked at level %v index %d", level, i)
		}
		n += 1 + countReachableTables(t, p, next, level.lower())
	}
	return n
}

// checkInvariants verifies that the intermediate-table count matches
// the tables reachable from the root and that no linked table is empty.
func checkInvariants(t *testing.T, p *PageTables) {
	t.Helper()
	if got := countReachableTables(t, p, p.root, p.arch.TopLevel()); got != p.pages {
		t.Errorf("pages accounting: tracked %d, reachable %d", p.pages, got)
	}
}
