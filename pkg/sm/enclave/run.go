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

import "github.com/rvsm/monitor/pkg/sm/retcode"

// RunEnclave implements spec.md §4.7 `run_enclave`. The lock is held only
// for the state-machine decision; the context switch itself — which may
// run for unbounded time — happens with the lock released.
func (m *Monitor) RunEnclave(host *RegisterFrame, eid int) error {
	m.mu.Lock()
	rec, ok := m.recordLocked(eid)
	if !ok || rec.State < StateFresh || rec.NThread >= m.cfg.MaxEnclThreads {
		m.mu.Unlock()
		return retcode.NotRunnable
	}
	rec.State = StateRunning
	rec.NThread++
	m.mu.Unlock()

	// The underlying context switch always treats this as a first entry,
	// matching the source's run_enclave, which passes a literal 1
	// regardless of whether the enclave has run before; only resume_enclave
	// passes the "continue where we left off" flag.
	m.log.WithField("eid", eid).Info("enclave run")
	return m.switcher.SwitchToEnclave(host, eid, true)
}

// ResumeEnclave implements spec.md §4.7 `resume_enclave`. Unlike run, it
// never mutates n_thread: the hart resuming was already counted when it
// first entered via RunEnclave.
func (m *Monitor) ResumeEnclave(host *RegisterFrame, eid int) error {
	m.mu.Lock()
	rec, ok := m.recordLocked(eid)
	if !ok || rec.State != StateRunning || rec.NThread == 0 {
		m.mu.Unlock()
		return retcode.NotResumable
	}
	m.mu.Unlock()

	m.log.WithField("eid", eid).Info("enclave resumed")
	return m.switcher.SwitchToEnclave(host, eid, false)
}

// ExitEnclave implements spec.md §4.7 `exit_enclave`: require RUNNING,
// release the lock, context-switch out, then reacquire to decrement
// n_thread and fall back to INITIALIZED once the last hart has left.
func (m *Monitor) ExitEnclave(encl *RegisterFrame, eid int) error {
	m.mu.Lock()
	rec, ok := m.recordLocked(eid)
	if !ok || rec.State != StateRunning {
		m.mu.Unlock()
		return retcode.NotRunning
	}
	m.mu.Unlock()

	m.switcher.SwitchToHost(encl, eid)

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok = m.recordLocked(eid)
	if !ok {
		return retcode.NotRunning
	}
	rec.NThread--
	if rec.NThread == 0 {
		rec.State = StateInitialized
	}
	m.log.WithFields(map[string]interface{}{"eid": eid, "n_thread": rec.NThread}).Info("enclave exit")
	return nil
}

// StopEnclave implements spec.md §4.7 `stop_enclave`: the enclave remains
// RUNNING (a parked hart awaiting resume), so the only state-machine work
// is translating the platform's stop-reason code. n_thread is unchanged.
func (m *Monitor) StopEnclave(encl *RegisterFrame, eid int, request StopRequest) error {
	m.mu.Lock()
	rec, ok := m.recordLocked(eid)
	if !ok || rec.State != StateRunning {
		m.mu.Unlock()
		return retcode.NotRunning
	}
	m.mu.Unlock()

	m.switcher.SwitchToHost(encl, eid)

	switch request {
	case StopTimerInterrupt:
		return retcode.Interrupted
	case StopEdgeCallHost:
		return retcode.EdgeCallHost
	default:
		return retcode.UnknownError
	}
}
