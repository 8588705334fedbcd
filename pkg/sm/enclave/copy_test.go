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
	"bytes"
	"errors"
	"testing"

	"github.com/rvsm/monitor/pkg/sm/retcode"
)

func TestCopyFromHostRejectsOverlap(t *testing.T) {
	mon := newTestMonitor(t)
	if _, err := mon.CreateEnclave(testCreateArgs()); err != nil {
		t.Fatalf("CreateEnclave: %v", err)
	}

	_, err := mon.CopyFromHost(testEPMBase+0x100, 16)
	if !errors.Is(err, retcode.RegionOverlaps) {
		t.Fatalf("CopyFromHost over EPM = %v, want RegionOverlaps", err)
	}
}

func TestCopyFromHostAllowsClearMemory(t *testing.T) {
	mon := newTestMonitor(t)
	if _, err := mon.CreateEnclave(testCreateArgs()); err != nil {
		t.Fatalf("CreateEnclave: %v", err)
	}

	const clearAddr = 0x10
	want := []byte{1, 2, 3, 4}
	if err := mon.mem.WriteAt(clearAddr, want); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	got, err := mon.CopyFromHost(clearAddr, len(want))
	if err != nil {
		t.Fatalf("CopyFromHost: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("CopyFromHost = %v, want %v", got, want)
	}
}

func TestCopyFromEnclaveBoundsToOwnRegions(t *testing.T) {
	mon := newTestMonitor(t)
	eid, err := mon.CreateEnclave(testCreateArgs())
	if err != nil {
		t.Fatalf("CreateEnclave: %v", err)
	}

	// Inside the enclave's own UTM region: allowed.
	if _, err := mon.CopyFromEnclave(eid, testUTMBase+0x10, 16); err != nil {
		t.Fatalf("CopyFromEnclave within UTM: %v", err)
	}

	// Outside any of the enclave's regions: rejected.
	_, err = mon.CopyFromEnclave(eid, 0x10, 16)
	if !errors.Is(err, retcode.RegionOverlaps) {
		t.Fatalf("CopyFromEnclave outside regions = %v, want RegionOverlaps", err)
	}

	// Straddling past the end of a region: rejected.
	_, err = mon.CopyFromEnclave(eid, testUTMBase+testUTMSize-4, 16)
	if !errors.Is(err, retcode.RegionOverlaps) {
		t.Fatalf("CopyFromEnclave straddling region end = %v, want RegionOverlaps", err)
	}
}

func TestCopyToEnclaveRoundTrip(t *testing.T) {
	mon := newTestMonitor(t)
	eid, err := mon.CreateEnclave(testCreateArgs())
	if err != nil {
		t.Fatalf("CreateEnclave: %v", err)
	}

	payload := []byte("message for the enclave")
	if err := mon.CopyToEnclave(eid, testUTMBase+0x20, payload); err != nil {
		t.Fatalf("CopyToEnclave: %v", err)
	}
	got, err := mon.CopyFromEnclave(eid, testUTMBase+0x20, len(payload))
	if err != nil {
		t.Fatalf("CopyFromEnclave: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip = %q, want %q", got, payload)
	}
}
