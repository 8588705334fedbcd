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
	"github.com/rvsm/monitor/pkg/sm/eid"
	"github.com/rvsm/monitor/pkg/sm/pmp"
	"github.com/rvsm/monitor/pkg/sm/retcode"
)

// PageShift and SatpModeSv39 compute encl_satp (spec.md §3: "(base >>
// PAGE_SHIFT) | SATP_MODE_SV39"). Sv39 occupies the top 4 bits (mode 8) of
// the 64-bit satp register.
const (
	PageShift    = 12
	SatpModeSv39 = uint64(8) << 60
)

// CreateEnclave implements spec.md §4.6. It holds the global lock for the
// whole call: every step either touches the PMP driver or the table, and
// §9's "race between overlap check and creation" note requires PMP
// installation itself to be serialized against concurrent copy overlap
// checks, not just the final commit.
func (m *Monitor) CreateEnclave(args CreateArgs) (eidOut int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Step 1: argument validation.
	if !m.validator.Valid(args) {
		return 0, retcode.IllegalArgument
	}

	// Step 2: reserve an EID slot.
	eidHandle, err := eid.Reserve(m.table)
	if err != nil {
		return 0, err
	}
	defer eidHandle.Release()

	// Step 3: reserve the EPM region at any free priority slot.
	epmHandle, err := pmp.Reserve(m.pmpDriver, args.EPMBase, args.EPMSize, pmp.PriorityAny)
	if err != nil {
		return 0, retcode.PmpFailure
	}
	defer epmHandle.Release()

	// Step 4: reserve the UTM region at the lowest priority, so it never
	// shadows the EPM region at an overlapping address.
	utmHandle, err := pmp.Reserve(m.pmpDriver, args.UTMBase, args.UTMSize, pmp.PriorityBottom)
	if err != nil {
		return 0, retcode.PmpFailure
	}
	defer utmHandle.Release()

	// Step 5: lock the host out of EPM before anything touches it.
	if err := epmHandle.SetGlobal(pmp.PermNone); err != nil {
		return 0, retcode.PmpFailure
	}

	// Step 6: scrub UTM before the host can stash anything in it that
	// would otherwise survive into the new enclave's shared buffer.
	if err := m.mem.Zero(args.UTMBase, int(args.UTMSize)); err != nil {
		return 0, retcode.IllegalArgument
	}

	// Step 7: construct the in-place record.
	id := eidHandle.ID()
	rec := m.table.Get(id)
	rec.State = StateFresh
	rec.Regions[0] = Region{PmpID: epmHandle.ID(), Type: RegionEPM}
	rec.Regions[1] = Region{PmpID: utmHandle.ID(), Type: RegionUTM}
	rec.EnclSatp = (args.EPMBase >> PageShift) | SatpModeSv39
	rec.NThread = 0
	rec.Params = args.Params
	rec.PAParams = PAParams{
		DRAMBase:    args.EPMBase,
		DRAMSize:    args.EPMSize,
		RuntimeBase: args.RuntimePaddr,
		UserBase:    args.UserPaddr,
		FreeBase:    args.FreePaddr,
	}

	// Step 8: platform-specific creation hook, which may further mutate
	// rec before measurement.
	if err := m.hooks.Create(rec); err != nil {
		rec.reset()
		return 0, retcode.UnknownError
	}

	// Step 9: measure and validate; undo the platform hook on failure. The
	// record stays FRESH here — it only reaches INITIALIZED once a
	// matching run/exit pair has driven n_thread back to zero (spec.md
	// §4.5), so a freshly created enclave must be run once before it is
	// attestable.
	if err := m.measurer.MeasureAndValidate(rec); err != nil {
		_ = m.hooks.Destroy(rec)
		rec.reset()
		return 0, retcode.IllegalArgument
	}

	// Step 10: hand the new EID back to the host.
	if err := m.copyWordToHostLocked(args.EidPptr, uint64(id)); err != nil {
		_ = m.hooks.Destroy(rec)
		rec.reset()
		return 0, err
	}

	// Step 11: commit. Every handle above is leaked only now, after every
	// fallible step has succeeded.
	eidHandle.Leak()
	epmHandle.Leak()
	utmHandle.Leak()
	m.table.CommitRecord(id, rec)

	m.log.WithFields(map[string]interface{}{
		"eid":      id,
		"epm_base": args.EPMBase,
		"epm_size": args.EPMSize,
		"utm_base": args.UTMBase,
		"utm_size": args.UTMSize,
	}).Info("enclave created")

	return id, nil
}
