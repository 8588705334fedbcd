// Copyright 2024 The RVSM Authors.
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

// Package eid implements the scoped enclave-identifier reservation
// described in spec.md §4.2: a handle that owns a slot in the enclave
// table until it is either released (automatic unwind on every early
// return) or leaked (committed into a live enclave record).
package eid

import "github.com/rvsm/monitor/pkg/sm/retcode"

// Source is the subset of the enclave table the allocator needs: a way to
// find and reserve a free slot, and a way to give one back. It is
// satisfied by *enclave.Table; the indirection here keeps this package
// independent of the table's internal layout.
type Source interface {
	// TryReserveSlot finds a free slot, marks it reserved, and returns its
	// index. ok is false if the table is full.
	TryReserveSlot() (index int, ok bool)

	// ReleaseSlot returns a previously reserved (and not yet committed)
	// slot to the free pool.
	ReleaseSlot(index int)
}

// Handle is a scoped reservation of one enclave-table slot.
//
// Callers must either call Leak (to commit the slot into a live enclave
// record) or defer Release (to return it to the free pool). A Handle that
// is dropped without either call leaks a slot for the lifetime of the
// table — callers are expected to always `defer h.Release()` immediately
// after a successful Reserve, exactly as Go code guards a *sql.Tx with a
// deferred Rollback that becomes a no-op once Commit has run.
type Handle struct {
	src     Source
	id      int
	leaked  bool
	release bool
}

// Reserve scans src for a free slot and returns a scoped handle owning it.
func Reserve(src Source) (*Handle, error) {
	idx, ok := src.TryReserveSlot()
	if !ok {
		return nil, retcode.NoFreeResource
	}
	return &Handle{src: src, id: idx, release: true}, nil
}

// ID returns the reserved enclave id.
func (h *Handle) ID() int {
	return h.id
}

// Leak commits the reservation: it returns the raw id and suppresses the
// automatic release, transferring ownership to whatever the caller installs
// at that slot.
func (h *Handle) Leak() int {
	h.leaked = true
	h.release = false
	return h.id
}

// Release returns the slot to the free pool. It is idempotent and a no-op
// once Leak has been called, so it is safe to unconditionally defer.
func (h *Handle) Release() {
	if !h.release {
		return
	}
	h.release = false
	h.src.ReleaseSlot(h.id)
}

// Leaked reports whether Leak has been called.
func (h *Handle) Leaked() bool {
	return h.leaked
}
