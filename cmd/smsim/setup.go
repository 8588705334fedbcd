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

package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rvsm/monitor/pkg/sm/enclave"
	"github.com/rvsm/monitor/pkg/sm/physmem"
	"github.com/rvsm/monitor/pkg/sm/pmp"
	"github.com/rvsm/monitor/pkg/smconfig"
)

// newSimMonitor wires the default simulated collaborators into a fresh
// Monitor: a software PMP driver, an mmap-backed DRAM arena, an Ed25519
// signing oracle, and no-op platform hooks. configPath may be empty, in
// which case smconfig.Default() is used.
func newSimMonitor(configPath string, log *logrus.Entry) (*enclave.Monitor, func(), error) {
	cfg := smconfig.Default()
	if configPath != "" {
		loaded, err := smconfig.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	mem, err := physmem.New(cfg.DRAMSize)
	if err != nil {
		return nil, nil, fmt.Errorf("smsim: allocate DRAM arena: %w", err)
	}
	cleanup := func() { _ = mem.Close() }

	signer, err := enclave.NewEd25519Signer()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("smsim: generate signing key: %w", err)
	}

	collab := enclave.Collaborators{
		PMPDriver: pmp.NewSimDriver(cfg.PMPCapacity),
		Mem:       mem,
		Validator: enclave.DefaultArgValidator{},
		Measurer:  enclave.HashMeasurer{Mem: mem},
		Hooks:     enclave.NoopPlatformHooks{},
		Signer:    signer,
		Switcher:  enclave.SimContextSwitcher{},
	}

	mon, err := enclave.NewMonitor(cfg, collab, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return mon, cleanup, nil
}
