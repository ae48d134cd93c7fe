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

package pagetables

import (
	"errors"
)

var (
	// ErrInvalidArgs is returned for an address or flag combination the
	// address space's policy rejects.
	ErrInvalidArgs = errors.New("invalid address or flags")

	// ErrAlreadyExists is returned when a map request overlaps an
	// existing mapping.
	ErrAlreadyExists = errors.New("range overlaps an existing mapping")

	// ErrNoMemory is returned when a page-table frame could not be
	// allocated.
	ErrNoMemory = errors.New("out of page-table frames")

	// ErrNotFound is returned by queries of unmapped addresses.
	ErrNotFound = errors.New("address is not mapped")
)
