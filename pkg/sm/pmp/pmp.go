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

// Package pmp models the RISC-V Physical Memory Protection driver that
// spec.md §1 names as an out-of-scope collaborator
// (pmp_region_init/free/set_global/detect_region_overlap/get_addr/size),
// plus the scoped reservation handle built on top of it (spec.md §4.3).
package pmp

import "github.com/rvsm/monitor/pkg/sm/retcode"

// RegionID identifies one reserved PMP slot. The zero value is never a
// valid id returned by a Driver.
type RegionID int32

// Priority orders PMP slots against each other. Lower-priority regions are
// checked (and can be overlapped by hardware matching order) after
// higher-priority ones; spec.md §4.6 requires UTM to sit at the lowest
// priority so that a private EPM region always dominates a shared UTM
// region at an overlapping address.
type Priority int

const (
	// PriorityAny lets the driver place the region wherever a slot is
	// free. Used for EPM.
	PriorityAny Priority = iota
	// PriorityBottom pins the region to the lowest-priority slot. Used
	// for UTM, so untrusted shared memory never shadows enclave memory.
	PriorityBottom
)

// Permission is the access bitmask a PMP entry grants (or denies) to every
// hart other than the owning enclave.
type Permission uint8

const (
	PermNone  Permission = 0
	PermRead  Permission = 1 << 0
	PermWrite Permission = 1 << 1
	PermExec  Permission = 1 << 2
)

// Driver is the PMP hardware abstraction the spec treats as external and
// assumed-correct. A Driver implementation owns a fixed number of hardware
// slots; Init fails once they are exhausted.
type Driver interface {
	// Init reserves a free slot covering [base, base+size) at the given
	// priority and returns its id. Fails with retcode.PmpFailure if no
	// slot is free.
	Init(base, size uint64, prio Priority) (RegionID, error)

	// Free releases a previously-initialized region, making its slot
	// available again.
	Free(id RegionID) error

	// SetGlobal installs perm as the access pattern seen by every hart
	// other than the region's owner.
	SetGlobal(id RegionID, perm Permission) error

	// DetectOverlap reports whether [base, base+size) intersects any
	// currently-live region, regardless of that region's owner.
	DetectOverlap(base, size uint64) bool

	// Addr and Size return a live region's bounds, or (0, false)/(0, false)
	// if id is not currently live.
	Addr(id RegionID) (uint64, bool)
	Size(id RegionID) (uint64, bool)
}

func pmpFailure() error { return retcode.PmpFailure }
