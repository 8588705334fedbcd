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

// Package enclave implements the enclave table, state machine, and
// lifecycle operations of spec.md §4.5-§4.9 — the public contract exposed
// upward to the SBI dispatch layer.
package enclave

import "github.com/rvsm/monitor/pkg/sm/pmp"

// State is one of the ordered enclave states from spec.md §3. Ordering
// matters: code compares states with <, ==, >= to express "at least
// initialized" etc., exactly as the source's `state >= enclave_state_FRESH`
// checks do.
type State int32

const (
	StateInvalid State = iota
	StateFresh
	StateInitialized
	StateRunning
	// StateStopped exists because spec.md's data model (§3) lists it as a
	// valid value of the state field, but no transition in the state
	// machine (§4.5) ever sets it: stop_enclave leaves the enclave
	// RUNNING so a matching resume_enclave can re-enter it. It is kept
	// for data-model completeness and ordering only.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "INVALID"
	case StateFresh:
		return "FRESH"
	case StateInitialized:
		return "INITIALIZED"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// RegionType identifies what an enclave's PMP region is used for.
type RegionType int32

const (
	RegionNone RegionType = iota
	RegionEPM             // Enclave Private Memory
	RegionUTM             // Untrusted shared Memory
)

// Region is one (pmp_rid, type) pair from spec.md §3.
type Region struct {
	PmpID pmp.RegionID
	Type  RegionType
}

// RegisterFrame is an opaque per-thread saved-register frame. Its layout
// is a context_switch_to_enclave/host concern (out of scope per spec.md
// §1); the core only needs to hold and hand back a pointer to it.
type RegisterFrame struct {
	GPR [32]uint64
	PC  uint64
	SATP uint64
}

// Params carries the opaque runtime entry-point parameters supplied by the
// host at creation time (spec.md §3 "params").
type Params struct {
	RuntimeEntry uint64
	UserEntry    uint64
	UntrustedPtr uint64
}

// PAParams is the computed physical-address layout passed to the runtime,
// built by create_enclave step 7.
type PAParams struct {
	DRAMBase     uint64
	DRAMSize     uint64
	RuntimeBase  uint64
	UserBase     uint64
	FreeBase     uint64
}

// Record is one enclave-table slot (spec.md §3).
type Record struct {
	EID      int
	State    State
	Regions  []Region // len == table.regionsMax; unused entries are RegionNone
	Hash     []byte   // measurement digest, filled at initialization
	EnclSatp uint64
	NThread  int
	Threads  []RegisterFrame
	Params   Params
	PAParams PAParams
}

func newRecord(eid, regionsMax, maxThreads, mdSize int) *Record {
	return &Record{
		EID:     eid,
		State:   StateInvalid,
		Regions: make([]Region, regionsMax),
		Hash:    make([]byte, mdSize),
		Threads: make([]RegisterFrame, maxThreads),
	}
}

// reset returns the record to its INVALID, metadata-free state, per
// spec.md §3's invariant: "An INVALID slot has released all its PMP
// reservations and holds no observable enclave metadata."
func (r *Record) reset() {
	eid := r.EID
	regionsMax := len(r.Regions)
	maxThreads := len(r.Threads)
	mdSize := len(r.Hash)
	*r = *newRecord(eid, regionsMax, maxThreads, mdSize)
}

// regionIndex returns the index of the first region of type t, or -1.
func (r *Record) regionIndex(t RegionType) int {
	for i, reg := range r.Regions {
		if reg.Type == t {
			return i
		}
	}
	return -1
}
