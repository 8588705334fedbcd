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
	"errors"
	"testing"

	"github.com/rvsm/monitor/pkg/sm/retcode"
)

func TestCreateRejectsInvalidArgs(t *testing.T) {
	mon := newTestMonitor(t)

	args := testCreateArgs()
	args.EPMSize = 0

	_, err := mon.CreateEnclave(args)
	if !errors.Is(err, retcode.IllegalArgument) {
		t.Fatalf("CreateEnclave with zero EPM size = %v, want IllegalArgument", err)
	}
	if mon.table.allocated[0] {
		t.Fatalf("a rejected create must not leave the EID slot reserved")
	}
}

func TestCreateInstallsRegionsAndSatp(t *testing.T) {
	mon := newTestMonitor(t)
	eid, err := mon.CreateEnclave(testCreateArgs())
	if err != nil {
		t.Fatalf("CreateEnclave: %v", err)
	}

	snap, err := mon.Snapshot(eid)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.State != StateFresh {
		t.Fatalf("state right after create = %s, want FRESH", snap.State)
	}
	if snap.Regions[0].Type != RegionEPM || snap.Regions[1].Type != RegionUTM {
		t.Fatalf("regions = %+v, want [EPM, UTM]", snap.Regions)
	}
	wantSatp := (uint64(testEPMBase) >> PageShift) | SatpModeSv39
	if snap.EnclSatp != wantSatp {
		t.Fatalf("EnclSatp = %#x, want %#x", snap.EnclSatp, wantSatp)
	}
	if len(snap.Hash) == 0 {
		t.Fatalf("measurement hash not populated")
	}
}

func TestCreateExhaustsEIDTable(t *testing.T) {
	mon := newTestMonitor(t)
	cfg := testConfig()

	// Pack each enclave's EPM immediately followed by its UTM, so
	// successive enclaves never overlap each other.
	const stride = testEPMSize + testUTMSize
	base := testCreateArgs()
	for i := 0; i < cfg.EnclaveMax; i++ {
		args := base
		args.EPMBase = base.EPMBase + uint64(i)*stride
		args.UTMBase = args.EPMBase + testEPMSize
		if _, err := mon.CreateEnclave(args); err != nil {
			t.Fatalf("CreateEnclave %d: %v", i, err)
		}
	}

	overflow := base
	overflow.EPMBase = base.EPMBase + uint64(cfg.EnclaveMax)*stride
	overflow.UTMBase = overflow.EPMBase + testEPMSize
	if _, err := mon.CreateEnclave(overflow); !errors.Is(err, retcode.NoFreeResource) {
		t.Fatalf("CreateEnclave past EnclaveMax = %v, want NoFreeResource", err)
	}
}
