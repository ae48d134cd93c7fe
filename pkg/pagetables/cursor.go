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

// mappingCursor tracks the progress of one walk. vaddr and size are in
// bytes; paddr is meaningful only while mapping. A walk returns the
// residual cursor; size reaching zero means the request was consumed.
type mappingCursor struct {
	paddr hostarch.PhysAddr
	vaddr hostarch.Addr
	size  uintptr
}

// skipEntry advances the cursor past the rest of the current entry at
// the given level, clamped to the end of the request.
func (c *mappingCursor) skipEntry(level Level) {
	ps := pageSize(level)
	skip := ps - (uintptr(c.vaddr) & (ps - 1))
	if skip > c.size {
		skip = c.size
	}
	c.vaddr += hostarch.Addr(skip)
	c.size -= skip
}
