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
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/rvsm/monitor/pkg/sm/pmp"
)

// TestConcurrentCreateDestroyHasNoLeaks fans multiple simulated harts out
// over independent create/run/exit/destroy cycles against one Monitor,
// the way multiple RISC-V harts would call into the core without any
// cooperative scheduler serializing them (spec.md §5). Each goroutine
// claims a disjoint slice of the physical address space so their EPM/UTM
// regions never legitimately overlap; the global lock is what the test
// actually exercises.
//
// This checks testable property 1 (spec.md §8): after every hart has torn
// its enclave back down, the PMP driver holds zero live regions again —
// no reservation survives a concurrent create/destroy race.
func TestConcurrentCreateDestroyHasNoLeaks(t *testing.T) {
	cfg := testConfig()
	cfg.EnclaveMax = 8
	cfg.PMPCapacity = 32
	cfg.DRAMSize = 32 << 20 // room for 8 harts' worth of disjoint regions

	mon := newTestMonitorWithConfig(t, cfg)
	driver := mon.pmpDriver.(*pmp.SimDriver)

	const harts = 8
	const stride = uint64(0x10_0000)

	var g errgroup.Group
	for h := 0; h < harts; h++ {
		h := h
		g.Go(func() error {
			base := testEPMBase + uint64(h)*stride*2
			args := CreateArgs{
				EPMBase: base,
				EPMSize: stride,
				UTMBase: base + stride,
				UTMSize: stride / 2,
				EidPptr: testEidOut,
			}
			eid, err := mon.CreateEnclave(args)
			if err != nil {
				return err
			}

			host := &RegisterFrame{}
			if err := mon.RunEnclave(host, eid); err != nil {
				return err
			}
			if err := mon.ExitEnclave(host, eid); err != nil {
				return err
			}
			return mon.DestroyEnclave(eid)
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent lifecycle: %v", err)
	}

	if got := driver.Live(); got != 0 {
		t.Fatalf("driver.Live() = %d after all harts destroyed their enclaves, want 0", got)
	}
}

// TestConcurrentRunExitKeepsThreadCountInBounds is testable property 3:
// n_thread never leaves [0, MAX_ENCL_THREADS] under concurrent run/exit
// pairs on the same enclave, and returns to 0 once every matched exit has
// landed.
func TestConcurrentRunExitKeepsThreadCountInBounds(t *testing.T) {
	mon := newTestMonitor(t)
	eid, err := mon.CreateEnclave(testCreateArgs())
	if err != nil {
		t.Fatalf("CreateEnclave: %v", err)
	}

	cfg := testConfig()
	var g errgroup.Group
	for i := 0; i < cfg.MaxEnclThreads; i++ {
		g.Go(func() error {
			host := &RegisterFrame{}
			if err := mon.RunEnclave(host, eid); err != nil {
				return err
			}

			snap, err := mon.Snapshot(eid)
			if err != nil {
				return err
			}
			if snap.NThread < 0 || snap.NThread > cfg.MaxEnclThreads {
				t.Errorf("n_thread = %d out of bounds [0, %d]", snap.NThread, cfg.MaxEnclThreads)
			}

			return mon.ExitEnclave(host, eid)
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent run/exit: %v", err)
	}

	snap, err := mon.Snapshot(eid)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.NThread != 0 {
		t.Fatalf("n_thread after matched run/exit pairs = %d, want 0", snap.NThread)
	}
	if snap.State != StateInitialized {
		t.Fatalf("state after matched run/exit pairs = %s, want INITIALIZED", snap.State)
	}
}
