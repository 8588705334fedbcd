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

// Handle is a scoped PMP reservation (spec.md §4.3). On success it owns
// exactly one region id. Callers must defer Release immediately after a
// successful Reserve; Release is a no-op once Leak has run, so the defer
// is safe to leave in place even on the success path.
//
// This guarantees the core's single most error-prone property: no PMP
// region is ever leaked on an early-return path during enclave
// construction (spec.md §9).
type Handle struct {
	driver  Driver
	id      RegionID
	release bool
}

// Reserve acquires one PMP slot over [base, base+size) at the given
// priority.
func Reserve(driver Driver, base, size uint64, prio Priority) (*Handle, error) {
	id, err := driver.Init(base, size, prio)
	if err != nil {
		return nil, err
	}
	return &Handle{driver: driver, id: id, release: true}, nil
}

// ID returns the reserved region id.
func (h *Handle) ID() RegionID {
	return h.id
}

// SetGlobal installs perm as the region's access pattern for every hart
// other than the owning enclave.
func (h *Handle) SetGlobal(perm Permission) error {
	return h.driver.SetGlobal(h.id, perm)
}

// Leak returns the raw region id and suppresses automatic release,
// transferring ownership into an enclave record.
func (h *Handle) Leak() RegionID {
	h.release = false
	return h.id
}

// Release frees the region if it has not been leaked. Idempotent.
func (h *Handle) Release() {
	if !h.release {
		return
	}
	h.release = false
	_ = h.driver.Free(h.id)
}
