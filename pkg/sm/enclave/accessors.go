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

import (
	"github.com/mohae/deepcopy"

	"github.com/rvsm/monitor/pkg/sm/retcode"
)

// GetEnclaveRegionIndex implements spec.md §4.9: a linear scan over eid's
// region array for the first entry of the given type, or -1.
func (m *Monitor) GetEnclaveRegionIndex(eid int, t RegionType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordLocked(eid)
	if !ok {
		return -1
	}
	return rec.regionIndex(t)
}

// GetEnclaveRegionSize implements spec.md §4.9, delegating to the PMP
// driver. Returns 0 if i is out of range or names an unused region.
func (m *Monitor) GetEnclaveRegionSize(eid int, i int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordLocked(eid)
	if !ok || i < 0 || i >= len(rec.Regions) || rec.Regions[i].Type == RegionNone {
		return 0
	}
	size, _ := m.pmpDriver.Size(rec.Regions[i].PmpID)
	return size
}

// GetEnclaveRegionBase implements spec.md §4.9, delegating to the PMP
// driver. Returns 0 if i is out of range or names an unused region.
func (m *Monitor) GetEnclaveRegionBase(eid int, i int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordLocked(eid)
	if !ok || i < 0 || i >= len(rec.Regions) || rec.Regions[i].Type == RegionNone {
		return 0
	}
	addr, _ := m.pmpDriver.Addr(rec.Regions[i].PmpID)
	return addr
}

// EnclaveSnapshot is a defensive, point-in-time copy of a Record, safe to
// read after the monitor's lock has been released.
type EnclaveSnapshot struct {
	EID      int
	State    State
	Regions  []Region
	Hash     []byte
	EnclSatp uint64
	NThread  int
	Params   Params
	PAParams PAParams
}

// Snapshot returns a deep copy of eid's record for introspection (added by
// this implementation; spec.md §4.9 only specifies the narrower index/
// size/base accessors). The lock is held only for the duration of the
// copy, consistent with spec.md §4.1's bounded-hold-time rule.
func (m *Monitor) Snapshot(eid int) (EnclaveSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recordLocked(eid)
	if !ok {
		return EnclaveSnapshot{}, retcode.IllegalArgument
	}
	copied := deepcopy.Copy(rec).(*Record)
	return EnclaveSnapshot{
		EID:      copied.EID,
		State:    copied.State,
		Regions:  copied.Regions,
		Hash:     copied.Hash,
		EnclSatp: copied.EnclSatp,
		NThread:  copied.NThread,
		Params:   copied.Params,
		PAParams: copied.PAParams,
	}, nil
}
