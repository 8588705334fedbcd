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

// The collaborators below are the pieces spec.md §1 names as out of scope
// and "assumed correct": argument validation, image measurement, the
// platform-specific create/destroy hooks, the signing oracle, and the
// register-save context switch. The core depends only on these
// interfaces, the way gVisor's sentry depends on the abstract
// platform.Platform rather than a specific KVM/systrap backend — concrete
// implementations (including the simulated ones in simcollab.go used by
// tests and cmd/smsim) are swapped in at Monitor construction.

// CreateArgs mirrors the host-supplied keystone_sbi_create structure
// (spec.md §4.6).
type CreateArgs struct {
	EPMBase, EPMSize uint64
	UTMBase, UTMSize uint64
	RuntimePaddr     uint64
	UserPaddr        uint64
	FreePaddr        uint64
	Params           Params
	EidPptr          uint64 // host-writable output address for the assigned EID
}

// ArgValidator checks create_enclave's arguments before any resource is
// reserved (is_create_args_valid).
type ArgValidator interface {
	Valid(args CreateArgs) bool
}

// Measurer computes (or verifies) an enclave's measurement
// (validate_and_hash_enclave). It fills rec.Hash on success.
type Measurer interface {
	MeasureAndValidate(rec *Record) error
}

// PlatformHooks are the platform-specific steps bracketing measurement
// (platform_create_enclave, platform_destroy_enclave). Create may further
// mutate rec, matching the source's comment that it "happens as the last
// thing before hashing/etc since it may modify the enclave struct".
type PlatformHooks interface {
	Create(rec *Record) error
	Destroy(rec *Record) error
}

// Signer is the signing oracle (sm_sign): sign an arbitrary byte slice
// and return a fixed-size signature.
type Signer interface {
	Sign(data []byte) (signature []byte, err error)
	PublicKey() []byte
}

// StopRequest is the cause code an enclave passes to stop_enclave.
type StopRequest uint64

const (
	StopTimerInterrupt StopRequest = iota + 1
	StopEdgeCallHost
)

// ContextSwitcher performs the register-save transfer of control between
// host and enclave (context_switch_to_enclave/to_host). It is the one
// place in the core allowed to block for unbounded time, and must never
// be called while the global lock is held (spec.md §5).
type ContextSwitcher interface {
	SwitchToEnclave(host *RegisterFrame, eid int, firstEntry bool) error
	SwitchToHost(encl *RegisterFrame, eid int)
}
