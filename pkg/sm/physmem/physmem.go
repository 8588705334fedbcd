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

// Package physmem simulates the single physical address space that host
// and enclave memory both live in, so that cross-domain copies (spec.md
// §4.4) have real bytes to read and write instead of opaque pointers.
// Addresses are plain byte offsets into one flat arena.
package physmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Region is a simulated DRAM arena backed by an anonymous mmap, the way
// gVisor's own pgalloc.MemoryFile backs guest physical memory with a real
// host mapping rather than a plain Go slice.
type Region struct {
	data []byte
}

// New allocates a size-byte arena. size must be positive.
func New(size uint64) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("physmem: zero-size region")
	}
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("physmem: mmap: %w", err)
	}
	return &Region{data: data}, nil
}

// Close releases the underlying mapping.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}

// Size returns the arena's total size in bytes.
func (r *Region) Size() uint64 {
	return uint64(len(r.data))
}

func (r *Region) bounds(addr uint64, n int) error {
	if n < 0 {
		return fmt.Errorf("physmem: negative length %d", n)
	}
	if addr > uint64(len(r.data)) || uint64(n) > uint64(len(r.data))-addr {
		return fmt.Errorf("physmem: range [%#x, %#x) out of bounds (arena size %#x)", addr, addr+uint64(n), len(r.data))
	}
	return nil
}

// ReadAt copies n bytes starting at addr into a new slice.
func (r *Region) ReadAt(addr uint64, n int) ([]byte, error) {
	if err := r.bounds(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[addr:addr+uint64(n)])
	return out, nil
}

// WriteAt copies src into the arena starting at addr.
func (r *Region) WriteAt(addr uint64, src []byte) error {
	if err := r.bounds(addr, len(src)); err != nil {
		return err
	}
	copy(r.data[addr:addr+uint64(len(src))], src)
	return nil
}

// WriteWordAt writes a single machine word (uint64) at addr.
func (r *Region) WriteWordAt(addr uint64, value uint64) error {
	if err := r.bounds(addr, 8); err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		r.data[addr+uint64(i)] = byte(value >> (8 * i))
	}
	return nil
}

// Zero clears [addr, addr+n) to zero, simulating clean_enclave_memory.
func (r *Region) Zero(addr uint64, n int) error {
	if err := r.bounds(addr, n); err != nil {
		return err
	}
	clear(r.data[addr : addr+uint64(n)])
	return nil
}
