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

	"github.com/sirupsen/logrus"

	"github.com/rvsm/monitor/pkg/sm/physmem"
	"github.com/rvsm/monitor/pkg/sm/pmp"
	"github.com/rvsm/monitor/pkg/smconfig"
)

const (
	testEPMBase = 0x10_0000
	testEPMSize = 0x2_0000
	testUTMBase = 0x14_0000
	testUTMSize = 0x1_0000
	testEidOut  = 0x1000
)

func testConfig() smconfig.Config {
	cfg := smconfig.Default()
	cfg.EnclaveMax = 4
	cfg.PMPCapacity = 16
	cfg.DRAMSize = 4 << 20
	return cfg
}

// newTestMonitor builds a Monitor wired to simulated collaborators, sized
// small enough to run quickly in unit tests.
func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	return newTestMonitorWithConfig(t, testConfig())
}

// newTestMonitorWithConfig is newTestMonitor with a caller-supplied config,
// for tests that need a non-default table or PMP capacity.
func newTestMonitorWithConfig(t *testing.T, cfg smconfig.Config) *Monitor {
	t.Helper()

	mem, err := physmem.New(cfg.DRAMSize)
	if err != nil {
		t.Fatalf("physmem.New: %v", err)
	}
	t.Cleanup(func() { _ = mem.Close() })

	signer, err := NewEd25519Signer()
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}

	mon, err := NewMonitor(cfg, Collaborators{
		PMPDriver: pmp.NewSimDriver(cfg.PMPCapacity),
		Mem:       mem,
		Validator: DefaultArgValidator{},
		Measurer:  HashMeasurer{Mem: mem},
		Hooks:     NoopPlatformHooks{},
		Signer:    signer,
		Switcher:  SimContextSwitcher{},
	}, logrus.NewEntry(logrus.New()))
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}
	return mon
}

func testCreateArgs() CreateArgs {
	return CreateArgs{
		EPMBase: testEPMBase,
		EPMSize: testEPMSize,
		UTMBase: testUTMBase,
		UTMSize: testUTMSize,
		EidPptr: testEidOut,
	}
}
