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

// Package smconfig loads the monitor's implementation parameters —
// table sizes, thread limits, attestation buffer sizes — the values the
// original source hardcodes as compile-time constants but which this
// simulation makes runtime-configurable for tests and cmd/smsim.
package smconfig

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds every monitor-wide sizing parameter spec.md §9 calls out as
// "implementation parameters rather than protocol invariants".
type Config struct {
	EnclaveMax        int `toml:"enclave_max"`
	EnclaveRegionsMax int `toml:"enclave_regions_max"`
	MaxEnclThreads    int `toml:"max_encl_threads"`
	AttestDataMaxLen  int `toml:"attest_data_maxlen"`
	PMPCapacity       int `toml:"pmp_capacity"`
	DRAMSize          uint64 `toml:"dram_size"`
	MDSize            int `toml:"md_size"`
	PublicKeySize     int `toml:"public_key_size"`
	SignatureSize     int `toml:"signature_size"`
}

// Default returns a small Keystone-like configuration, sized to keep
// simulated DRAM (and test run time) modest rather than to match any real
// platform's numbers.
func Default() Config {
	return Config{
		EnclaveMax:        16,
		EnclaveRegionsMax: 2,
		MaxEnclThreads:    8,
		AttestDataMaxLen:  1024,
		PMPCapacity:       32,
		DRAMSize:          64 << 20, // 64 MiB simulated DRAM
		MDSize:            32,       // sha256.Size
		PublicKeySize:     32,       // ed25519.PublicKeySize
		SignatureSize:     64,       // ed25519.SignatureSize
	}
}

// Load reads a Config from a TOML file at path, starting from Default and
// overriding only the fields the file sets.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("smconfig: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports whether cfg's sizes are usable: every capacity must be
// positive and large enough to hold an EPM+UTM region pair per enclave.
func (c Config) Validate() error {
	if c.EnclaveMax <= 0 {
		return fmt.Errorf("smconfig: enclave_max must be positive")
	}
	if c.EnclaveRegionsMax < 2 {
		return fmt.Errorf("smconfig: enclave_regions_max must be at least 2 (EPM + UTM)")
	}
	if c.MaxEnclThreads <= 0 {
		return fmt.Errorf("smconfig: max_encl_threads must be positive")
	}
	if c.AttestDataMaxLen <= 0 {
		return fmt.Errorf("smconfig: attest_data_maxlen must be positive")
	}
	if c.PMPCapacity < c.EnclaveMax*2 {
		return fmt.Errorf("smconfig: pmp_capacity must cover at least 2 regions per enclave")
	}
	if c.DRAMSize == 0 {
		return fmt.Errorf("smconfig: dram_size must be positive")
	}
	return nil
}
