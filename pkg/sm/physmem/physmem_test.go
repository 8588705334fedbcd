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

package physmem

import (
	"bytes"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	r, err := New(0x1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	want := []byte("enclave measurement bytes")
	if err := r.WriteAt(0x10, want); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got, err := r.ReadAt(0x10, len(want))
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("ReadAt = %q, want %q", got, want)
	}
}

func TestOutOfBoundsRejected(t *testing.T) {
	r, err := New(0x100)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.WriteAt(0xf0, make([]byte, 0x20)); err == nil {
		t.Fatalf("WriteAt past the arena end should fail")
	}
	if _, err := r.ReadAt(0x200, 1); err == nil {
		t.Fatalf("ReadAt beyond the arena should fail")
	}
}

func TestWriteWordAt(t *testing.T) {
	r, err := New(0x100)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.WriteWordAt(0x8, 0xdeadbeefcafef00d); err != nil {
		t.Fatalf("WriteWordAt: %v", err)
	}
	got, err := r.ReadAt(0x8, 8)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	want := []byte{0x0d, 0xf0, 0xfe, 0xca, 0xef, 0xbe, 0xad, 0xde}
	if !bytes.Equal(got, want) {
		t.Fatalf("WriteWordAt wrote %x, want %x", got, want)
	}
}

func TestZero(t *testing.T) {
	r, err := New(0x100)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.WriteAt(0x10, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := r.Zero(0x10, 4); err != nil {
		t.Fatalf("Zero: %v", err)
	}
	got, err := r.ReadAt(0x10, 4)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, []byte{0, 0, 0, 0}) {
		t.Fatalf("Zero left %v, want all zero", got)
	}
}

func TestSize(t *testing.T) {
	r, err := New(0x4000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	if r.Size() != 0x4000 {
		t.Fatalf("Size() = %#x, want 0x4000", r.Size())
	}
}
