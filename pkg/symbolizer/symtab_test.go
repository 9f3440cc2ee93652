// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package symbolizer

import (
	"os"
	"runtime"
	"testing"
)

func TestReadTextSymbols(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("test binary is not an ELF file")
	}
	st, err := ReadTextSymbols(os.Args[0])
	if err != nil {
		t.Fatalf("failed to read symbols: %v", err)
	}
	if len(st.symbols) == 0 {
		t.Fatalf("no text symbols in test binary")
	}
	for i := 1; i < len(st.symbols); i++ {
		if st.symbols[i-1].Addr > st.symbols[i].Addr {
			t.Fatalf("symbols are not sorted at %v", i)
		}
	}
	// Every symbol must resolve to itself throughout its range.
	for _, s := range st.symbols[:min(len(st.symbols), 100)] {
		if s.Size == 0 {
			continue
		}
		if got := st.Lookup(s.Addr); got != s.Name {
			// Aliased symbols at the same address are fine.
			if got == "" {
				t.Fatalf("Lookup(%#x) = %q, want %q", s.Addr, got, s.Name)
			}
			continue
		}
		if got := st.Lookup(s.Addr + s.Size - 1); got == "" {
			t.Fatalf("Lookup at end of %v returned nothing", s.Name)
		}
	}
}

func TestLookup(t *testing.T) {
	st := &SymTab{symbols: []Symbol{
		{Name: "reset_vector", Addr: 0x40000000, Size: 0}, // extends to next symbol
		{Name: "app_main", Addr: 0x40000100, Size: 0x40},
		{Name: "loop", Addr: 0x40000200, Size: 0x10},
	}}
	tests := []struct {
		pc   uint64
		want string
	}{
		{0x3fffffff, ""},
		{0x40000000, "reset_vector"},
		{0x400000ff, "reset_vector"},
		{0x40000100, "app_main"},
		{0x4000013f, "app_main"},
		{0x40000140, ""}, // hole between app_main and loop
		{0x40000205, "loop"},
		{0x40000210, ""},
	}
	for _, test := range tests {
		if got := st.Lookup(test.pc); got != test.want {
			t.Errorf("Lookup(%#x) = %q, want %q", test.pc, got, test.want)
		}
	}
}
