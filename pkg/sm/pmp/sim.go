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

package pmp

import (
	"sync"

	"github.com/google/btree"
)

// regionItem is the btree.Item backing one live PMP reservation, ordered
// by base address so overlap queries only need to walk candidates whose
// base precedes the query's end, rather than scan every live region.
type regionItem struct {
	base, limit uint64 // [base, limit)
	id          RegionID
	prio        Priority
	perm        Permission
}

func (r *regionItem) Less(than btree.Item) bool {
	o := than.(*regionItem)
	if r.base != o.base {
		return r.base < o.base
	}
	return r.id < o.id
}

// SimDriver is a software PMP: a fixed number of slots indexed by base
// address in a btree.BTree, the way a real driver indexes a small,
// hardware-limited slot table. It is the default Driver used by tests and
// the cmd/smsim harness; production deployments plug in the real register
// driver behind the same interface.
type SimDriver struct {
	mu       sync.Mutex
	tree     *btree.BTree
	byID     map[RegionID]*regionItem
	capacity int
	nextID   RegionID
}

// NewSimDriver returns a simulated PMP driver with room for capacity live
// regions, mirroring a hardware PMP unit's fixed slot count.
func NewSimDriver(capacity int) *SimDriver {
	return &SimDriver{
		tree:     btree.New(8),
		byID:     make(map[RegionID]*regionItem, capacity),
		capacity: capacity,
	}
}

// Init implements Driver. Callers are expected to hold the monitor's global
// lock around Init/overlap-check pairs per spec.md §4.4; SimDriver also
// serializes internally (it is an independent "hardware" component, named
// pmp_region_init_atomic in the original source) so it is safe to call on
// its own in tests.
func (d *SimDriver) Init(base, size uint64, prio Priority) (RegionID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.byID) >= d.capacity {
		return 0, pmpFailure()
	}
	if size == 0 {
		return 0, pmpFailure()
	}
	d.nextID++
	id := d.nextID
	item := &regionItem{base: base, limit: base + size, id: id, prio: prio}
	d.tree.ReplaceOrInsert(item)
	d.byID[id] = item
	return id, nil
}

func (d *SimDriver) Free(id RegionID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	item, ok := d.byID[id]
	if !ok {
		return pmpFailure()
	}
	d.tree.Delete(item)
	delete(d.byID, id)
	return nil
}

func (d *SimDriver) SetGlobal(id RegionID, perm Permission) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	item, ok := d.byID[id]
	if !ok {
		return pmpFailure()
	}
	item.perm = perm
	return nil
}

// DetectOverlap reports whether [base, base+size) intersects any live
// region. It walks the btree in ascending base order starting from the
// smallest region and stops as soon as it either finds an overlap or
// passes the query's end, so regions whose base lies at or beyond the
// query's end are never inspected.
func (d *SimDriver) DetectOverlap(base, size uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	end := base + size
	overlap := false
	d.tree.Ascend(func(i btree.Item) bool {
		r := i.(*regionItem)
		if r.base >= end {
			return false // no region from here on can start before end
		}
		if r.limit > base {
			overlap = true
			return false
		}
		return true
	})
	return overlap
}

func (d *SimDriver) Addr(id RegionID) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	item, ok := d.byID[id]
	if !ok {
		return 0, false
	}
	return item.base, true
}

func (d *SimDriver) Size(id RegionID) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	item, ok := d.byID[id]
	if !ok {
		return 0, false
	}
	return item.limit - item.base, true
}

// Live reports the number of currently-reserved slots, for tests asserting
// the no-leak invariant (spec.md §8 property 1).
func (d *SimDriver) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byID)
}

var _ Driver = (*SimDriver)(nil)
