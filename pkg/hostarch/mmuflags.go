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

package hostarch

import "strings"

// MMUFlags describe the permissions and cache attributes requested for a
// mapping. They are architecture-independent; each page-table flavor
// translates them to and from hardware entry bits.
type MMUFlags uint32

const (
	// Read makes the mapping readable.
	Read MMUFlags = 1 << iota

	// Write makes the mapping writable.
	Write

	// Execute makes the mapping executable.
	Execute

	// User makes the mapping accessible from user mode.
	User

	// Global marks the translation as shared between address spaces, so
	// it survives address-space switches in the TLB.
	Global

	// Uncached disables caching for the mapping.
	Uncached

	// WriteCombining requests write-combining for the mapping.
	WriteCombining
)

// CacheMask covers the mutually exclusive cache-attribute flags.
const CacheMask = Uncached | WriteCombining

// Readable returns true if f includes Read.
func (f MMUFlags) Readable() bool { return f&Read != 0 }

// Writable returns true if f includes Write.
func (f MMUFlags) Writable() bool { return f&Write != 0 }

// Executable returns true if f includes Execute.
func (f MMUFlags) Executable() bool { return f&Execute != 0 }

// UserAccessible returns true if f includes User.
func (f MMUFlags) UserAccessible() bool { return f&User != 0 }

// IsGlobal returns true if f includes Global.
func (f MMUFlags) IsGlobal() bool { return f&Global != 0 }

// String implements fmt.Stringer.String.
func (f MMUFlags) String() string {
	var parts []string
	for _, bit := range []struct {
		flag MMUFlags
		name string
	}{
		{Read, "r"},
		{Write, "w"},
		{Execute, "x"},
		{User, "user"},
		{Global, "global"},
		{Uncached, "uc"},
		{WriteCombining, "wc"},
	} {
		if f&bit.flag != 0 {
			parts = append(parts, bit.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
