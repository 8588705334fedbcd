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
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/rvsm/monitor/pkg/sm/physmem"
)

// DefaultArgValidator rejects zero-sized regions and an EPM base of 0; it
// does not check region alignment. Real
// is_create_args_valid also checks DRAM ownership bounds, which belongs to
// the platform integration and is out of scope here.
type DefaultArgValidator struct{}

func (DefaultArgValidator) Valid(args CreateArgs) bool {
	if args.EPMSize == 0 || args.UTMSize == 0 {
		return false
	}
	if args.EPMBase == 0 && args.EPMSize != 0 {
		// base 0 is never a legitimate DRAM address in this simulation.
		return false
	}
	return true
}

// HashMeasurer measures an enclave by hashing the bytes of its EPM region
// as they exist in physical memory at validation time, standing in for
// validate_and_hash_enclave's real page-walk measurement.
type HashMeasurer struct {
	Mem *physmem.Region
}

func (m HashMeasurer) MeasureAndValidate(rec *Record) error {
	idx := rec.regionIndex(RegionEPM)
	if idx < 0 {
		return fmt.Errorf("enclave: no EPM region to measure")
	}
	// The region's bounds live in the PMP driver, not the record; the
	// monitor passes them in via rec.PAParams before calling
	// MeasureAndValidate.
	data, err := m.Mem.ReadAt(rec.PAParams.DRAMBase, int(rec.PAParams.DRAMSize))
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	copy(rec.Hash, sum[:])
	return nil
}

// NoopPlatformHooks implements PlatformHooks with no platform-specific
// behavior, for simulation and tests.
type NoopPlatformHooks struct{}

func (NoopPlatformHooks) Create(rec *Record) error  { return nil }
func (NoopPlatformHooks) Destroy(rec *Record) error { return nil }

// Ed25519Signer implements Signer with a process-local Ed25519 keypair,
// standing in for the SM's device/attestation key. crypto/ed25519 is
// stdlib: no third-party library in the retrieval pack offers a plain
// sign-arbitrary-bytes-return-fixed-signature oracle shape (the pack's
// golang.org/x/crypto is present only as an indirect dependency of
// container-runtime TLS code, and its nacl/sign API returns the message
// prepended to the signature rather than a detached fixed-size signature,
// which does not fit the report.enclave.signature field this spec
// requires), and signing itself is explicitly out of this core's scope
// (spec.md §1: "a signing oracle over a byte slice").
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewEd25519Signer generates a fresh keypair.
func NewEd25519Signer() (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: priv, pub: pub}, nil
}

func (s *Ed25519Signer) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, data), nil
}

func (s *Ed25519Signer) PublicKey() []byte {
	return s.pub
}

// SimContextSwitcher simulates context_switch_to_enclave/to_host without
// an actual trap: it does nothing with the frame handed to it. Sufficient for
// exercising the lifecycle state machine end to end in tests and the
// cmd/smsim harness, where there is no real hart to switch.
type SimContextSwitcher struct{}

func (SimContextSwitcher) SwitchToEnclave(host *RegisterFrame, eid int, firstEntry bool) error {
	return nil
}

func (SimContextSwitcher) SwitchToHost(encl *RegisterFrame, eid int) {}
