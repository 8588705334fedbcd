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

package enclave

// Table is the fixed-size enclave-identifier table (spec.md §3/§4.2).
// There is no heap at this level: every slot is preallocated at
// construction and reused across create/destroy cycles.
//
// Table is not safe for concurrent use on its own — every method here is
// called by Monitor while holding the global lock (spec.md §4.1).
type Table struct {
	slots     []*Record
	allocated []bool
}

// NewTable preallocates a table of the given size, with each record's
// fixed-capacity region and thread arrays sized per the given caps.
func NewTable(size, regionsMax, maxThreads, mdSize int) *Table {
	t := &Table{
		slots:     make([]*Record, size),
		allocated: make([]bool, size),
	}
	for i := range t.slots {
		t.slots[i] = newRecord(i, regionsMax, maxThreads, mdSize)
	}
	return t
}

// Len returns the table's fixed capacity.
func (t *Table) Len() int {
	return len(t.slots)
}

// TryReserveSlot implements eid.Source. It marks the slot reserved in a
// bitmap that is separate from Record.State: a reserved-but-not-yet-built
// slot must not be handed out to a second concurrent reservation, but its
// State stays INVALID until create_enclave installs a FRESH record
// (spec.md §4.6 step 7), so State alone can't double as the free-list.
func (t *Table) TryReserveSlot() (int, bool) {
	for i, used := range t.allocated {
		if !used && t.slots[i].State == StateInvalid {
			t.allocated[i] = true
			return i, true
		}
	}
	return 0, false
}

// ReleaseSlot implements eid.Source: give back a reservation that was
// never committed with CommitRecord.
func (t *Table) ReleaseSlot(index int) {
	t.allocated[index] = false
}

// CommitRecord installs rec at index, moving the slot from "reserved" to
// "live". Called once at the end of create_enclave's fallible sequence
// (spec.md §4.6 step 11).
func (t *Table) CommitRecord(index int, rec *Record) {
	t.slots[index] = rec
}

// Teardown resets a live slot back to INVALID and clears its reservation
// bit, releasing it for reuse. Called by DestroyEnclave.
func (t *Table) Teardown(index int) {
	t.slots[index].reset()
	t.allocated[index] = false
}

// Get returns the record at index. The caller must hold the monitor's
// global lock for any field other than those documented as lock-free
// (spec.md §4.9).
func (t *Table) Get(index int) *Record {
	return t.slots[index]
}

// Valid reports whether index is in range.
func (t *Table) Valid(index int) bool {
	return index >= 0 && index < len(t.slots)
}
