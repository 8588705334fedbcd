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
	"encoding/binary"

	"github.com/rvsm/monitor/pkg/sm/retcode"
)

// EnclaveReport is the enclave-measurement half of the attestation report
// (spec.md §6). Data is always AttestDataMaxLen bytes long; only the
// leading DataLen of them are caller-supplied, the rest is zero padding —
// the byte layout matters because marshalEnclave reproduces it exactly for
// signing.
type EnclaveReport struct {
	Data      []byte
	DataLen   uint64
	Hash      []byte
	Signature []byte
}

// SMReport is the security-monitor-identity half of the report.
type SMReport struct {
	Hash      []byte
	PublicKey []byte
	Signature []byte
}

// Report is the full attestation report handed back to the enclave at
// report_ptr (spec.md §6).
type Report struct {
	DevPublicKey []byte
	Enclave      EnclaveReport
	SM           SMReport
}

// marshalEnclave lays out Enclave's fields back-to-back in declaration
// order: data, data_len, hash, signature. This is the byte buffer
// §4.8's signed-length arithmetic slices into.
func (r Report) marshalEnclave(dataMaxLen int) []byte {
	buf := make([]byte, 0, dataMaxLen+8+len(r.Enclave.Hash)+len(r.Enclave.Signature))
	buf = append(buf, r.Enclave.Data...)
	var lenBytes [8]byte
	binary.LittleEndian.PutUint64(lenBytes[:], r.Enclave.DataLen)
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, r.Enclave.Hash...)
	buf = append(buf, r.Enclave.Signature...)
	return buf
}

// marshal lays out the full report: dev_public_key, enclave, sm.
func (r Report) marshal(dataMaxLen int) []byte {
	buf := make([]byte, 0)
	buf = append(buf, r.DevPublicKey...)
	buf = append(buf, r.marshalEnclave(dataMaxLen)...)
	buf = append(buf, r.SM.Hash...)
	buf = append(buf, r.SM.PublicKey...)
	buf = append(buf, r.SM.Signature...)
	return buf
}

// AttestEnclave implements spec.md §4.8. dataAddr and reportPtr are
// addresses inside eid's own regions; size is the number of caller bytes
// to attest.
func (m *Monitor) AttestEnclave(eid int, reportPtr uint64, dataAddr uint64, size int) error {
	if size > m.cfg.AttestDataMaxLen {
		return retcode.IllegalArgument
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recordLocked(eid)
	if !ok || rec.State < StateInitialized {
		return retcode.NotInitialized
	}

	report := Report{
		DevPublicKey: m.signer.PublicKey(),
		Enclave: EnclaveReport{
			Data:      make([]byte, m.cfg.AttestDataMaxLen),
			Hash:      make([]byte, m.cfg.MDSize),
			Signature: make([]byte, m.cfg.SignatureSize),
		},
		SM: SMReport{
			Hash:      make([]byte, m.cfg.MDSize),
			PublicKey: m.signer.PublicKey(),
			Signature: make([]byte, m.cfg.SignatureSize),
		},
	}

	// Step 4: copy the caller's data into the report's data field.
	data, err := m.copyFromEnclaveLocked(rec, dataAddr, size)
	if err != nil {
		return err
	}
	copy(report.Enclave.Data, data)
	report.Enclave.DataLen = uint64(size)

	// Step 5: fixed fields.
	report.Enclave.Hash = append([]byte(nil), rec.Hash...)

	// Step 6: sign exactly sizeof(enclave_report) - sizeof(signature) -
	// (ATTEST_DATA_MAXLEN - size) leading bytes of the marshaled enclave
	// report. This is a literal byte-offset computation, not a
	// field-aligned one: the signed range is size+8+MDSize bytes long, so
	// whenever that is below AttestDataMaxLen it ends partway through the
	// zero-padded tail of Data and covers neither DataLen nor Hash.
	// Reproducing this exactly is the
	// bit-exact contract spec.md §9 calls out — any "corrected" slicing
	// produces reports real verifiers reject.
	full := report.marshalEnclave(m.cfg.AttestDataMaxLen)
	signedLen := len(full) - len(report.Enclave.Signature) - (m.cfg.AttestDataMaxLen - size)
	sig, err := m.signer.Sign(full[:signedLen])
	if err != nil {
		return retcode.UnknownError
	}
	copy(report.Enclave.Signature, sig)

	// Step 7: copy the full report out to the enclave.
	out := report.marshal(m.cfg.AttestDataMaxLen)
	return m.copyToEnclaveLocked(rec, reportPtr, out)
}
