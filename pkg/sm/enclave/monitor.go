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
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rvsm/monitor/pkg/sm/physmem"
	"github.com/rvsm/monitor/pkg/sm/pmp"
	"github.com/rvsm/monitor/pkg/smconfig"
)

// Monitor is the enclave lifecycle core (spec.md §2): one global lock, one
// enclave table, and the collaborators the core treats as out of scope.
// Every exported method is safe for concurrent use by multiple harts.
type Monitor struct {
	mu    sync.Mutex
	table *Table

	pmpDriver pmp.Driver
	mem       *physmem.Region

	validator ArgValidator
	measurer  Measurer
	hooks     PlatformHooks
	signer    Signer
	switcher  ContextSwitcher

	log *logrus.Entry
	cfg smconfig.Config
}

// Collaborators bundles the out-of-scope pieces spec.md §1 names, so
// Monitor's constructor doesn't take six positional interface arguments.
type Collaborators struct {
	PMPDriver pmp.Driver
	Mem       *physmem.Region
	Validator ArgValidator
	Measurer  Measurer
	Hooks     PlatformHooks
	Signer    Signer
	Switcher  ContextSwitcher
}

// NewMonitor builds a Monitor over a freshly-allocated enclave table sized
// per cfg. log receives one structured event per lifecycle transition;
// pass logrus.NewEntry(logrus.New()) for a default destination.
func NewMonitor(cfg smconfig.Config, collab Collaborators, log *logrus.Entry) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		table:     NewTable(cfg.EnclaveMax, cfg.EnclaveRegionsMax, cfg.MaxEnclThreads, cfg.MDSize),
		pmpDriver: collab.PMPDriver,
		mem:       collab.Mem,
		validator: collab.Validator,
		measurer:  collab.Measurer,
		hooks:     collab.Hooks,
		signer:    collab.Signer,
		switcher:  collab.Switcher,
		log:       log,
		cfg:       cfg,
	}, nil
}

// EnclaveCount returns the table's fixed slot capacity (spec.md §9
// "ENCLAVE_MAX").
func (m *Monitor) EnclaveCount() int {
	return m.table.Len()
}

// recordLocked fetches a valid, in-range record. Caller must hold m.mu.
func (m *Monitor) recordLocked(eid int) (*Record, bool) {
	if !m.table.Valid(eid) {
		return nil, false
	}
	return m.table.Get(eid), true
}
