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

import "github.com/rvsm/monitor/pkg/sm/retcode"

// copyWordToHostLocked is copy_word_to_host's body, callable from
// operations (like CreateEnclave) that already hold m.mu. The overlap
// check and the write happen atomically with respect to any concurrent
// create_enclave, per spec.md §9.
func (m *Monitor) copyWordToHostLocked(dest uint64, value uint64) error {
	if m.pmpDriver.DetectOverlap(dest, 8) {
		return retcode.RegionOverlaps
	}
	if err := m.mem.WriteWordAt(dest, value); err != nil {
		return retcode.IllegalArgument
	}
	return nil
}

// CopyWordToHost writes one machine word to a host-supplied address,
// refusing the write if dest aliases any enclave's PMP-protected region
// (spec.md §4.4).
func (m *Monitor) CopyWordToHost(dest uint64, value uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyWordToHostLocked(dest, value)
}

// CopyFromHost reads n bytes from a host-supplied address into SM memory,
// refusing the read if src aliases any enclave's PMP-protected region.
func (m *Monitor) CopyFromHost(src uint64, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pmpDriver.DetectOverlap(src, uint64(n)) {
		return nil, retcode.RegionOverlaps
	}
	data, err := m.mem.ReadAt(src, n)
	if err != nil {
		return nil, retcode.IllegalArgument
	}
	return data, nil
}

// withinEnclaveRegions reports whether [addr, addr+n) lies entirely
// within one of rec's installed PMP regions. Caller must hold m.mu.
func (m *Monitor) withinEnclaveRegions(rec *Record, addr uint64, n int) bool {
	for _, reg := range rec.Regions {
		if reg.Type == RegionNone {
			continue
		}
		base, ok := m.pmpDriver.Addr(reg.PmpID)
		if !ok {
			continue
		}
		size, ok := m.pmpDriver.Size(reg.PmpID)
		if !ok {
			continue
		}
		if addr < base {
			continue
		}
		if addr-base > size {
			continue
		}
		if uint64(n) <= size-(addr-base) {
			return true
		}
	}
	return false
}

// copyFromEnclaveLocked is copy_from_enclave's body. Caller must hold m.mu.
func (m *Monitor) copyFromEnclaveLocked(rec *Record, srcAddr uint64, n int) ([]byte, error) {
	if !m.withinEnclaveRegions(rec, srcAddr, n) {
		return nil, retcode.RegionOverlaps
	}
	data, err := m.mem.ReadAt(srcAddr, n)
	if err != nil {
		return nil, retcode.IllegalArgument
	}
	return data, nil
}

// copyToEnclaveLocked is copy_to_enclave's body. Caller must hold m.mu.
func (m *Monitor) copyToEnclaveLocked(rec *Record, destAddr uint64, data []byte) error {
	if !m.withinEnclaveRegions(rec, destAddr, len(data)) {
		return retcode.RegionOverlaps
	}
	if err := m.mem.WriteAt(destAddr, data); err != nil {
		return retcode.IllegalArgument
	}
	return nil
}

// CopyFromEnclave reads n bytes from an address inside eid's own regions
// (copy_from_enclave). It returns retcode.RegionOverlaps if the address
// range is not fully contained in one of the enclave's regions — the
// enclave-side analogue of the host-pointer overlap check.
func (m *Monitor) CopyFromEnclave(eid int, srcAddr uint64, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recordLocked(eid)
	if !ok || rec.State < StateFresh {
		return nil, retcode.NotInitialized
	}
	return m.copyFromEnclaveLocked(rec, srcAddr, n)
}

// CopyToEnclave writes data into an address inside eid's own regions
// (copy_to_enclave).
func (m *Monitor) CopyToEnclave(eid int, destAddr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recordLocked(eid)
	if !ok || rec.State < StateFresh {
		return retcode.NotInitialized
	}
	return m.copyToEnclaveLocked(rec, destAddr, data)
}
