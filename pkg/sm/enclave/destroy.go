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

// DestroyEnclave tears an enclave down (the "any >= FRESH -> INVALID" edge
// of spec.md §4.5's state table, exposed as a public operation since
// nothing else ever frees a slot back to the table). Teardown order
// mirrors create_enclave's acquisition order in reverse: UTM region, then
// EPM region, then the EID slot itself.
func (m *Monitor) DestroyEnclave(eid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recordLocked(eid)
	if !ok || rec.State < StateFresh {
		return retcode.NotInitialized
	}

	if err := m.hooks.Destroy(rec); err != nil {
		return retcode.UnknownError
	}

	if idx := rec.regionIndex(RegionUTM); idx >= 0 {
		_ = m.pmpDriver.Free(rec.Regions[idx].PmpID)
	}
	if idx := rec.regionIndex(RegionEPM); idx >= 0 {
		_ = m.pmpDriver.Free(rec.Regions[idx].PmpID)
	}

	m.table.Teardown(eid)

	m.log.WithField("eid", eid).Info("enclave destroyed")
	return nil
}
