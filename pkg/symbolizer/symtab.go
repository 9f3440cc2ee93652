// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package symbolizer

import (
	"debug/elf"
	"fmt"
	"sort"
)

// Symbol is a single .text symbol from the firmware ELF.
type Symbol struct {
	Name string
	Addr uint64
	Size uint64
}

// SymTab is a sorted ELF text symbol table. It backs the degraded
// name-only resolution mode used when addr2line is not installed.
type SymTab struct {
	symbols []Symbol
}

// ReadTextSymbols loads the text symbols of the binary bin.
func ReadTextSymbols(bin string) (*SymTab, error) {
	file, err := elf.Open(bin)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file %v: %w", bin, err)
	}
	defer file.Close()
	allSymbols, err := file.Symbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read ELF symbols: %w", err)
	}
	var symbols []Symbol
	for _, symb := range allSymbols {
		if symb.Section < 0 || int(symb.Section) >= len(file.Sections) {
			continue
		}
		sect := file.Sections[symb.Section]
		isText := sect.Type == elf.SHT_PROGBITS &&
			sect.Flags&elf.SHF_ALLOC != 0 &&
			sect.Flags&elf.SHF_EXECINSTR != 0
		if !isText || elf.ST_TYPE(symb.Info) != elf.STT_FUNC {
			continue
		}
		symbols = append(symbols, Symbol{
			Name: demangleName(symb.Name),
			Addr: symb.Value,
			Size: symb.Size,
		})
	}
	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i].Addr < symbols[j].Addr
	})
	return &SymTab{symbols: symbols}, nil
}

// Lookup returns the name of the symbol covering pc, or "" if none does.
func (st *SymTab) Lookup(pc uint64) string {
	idx := sort.Search(len(st.symbols), func(i int) bool {
		return st.symbols[i].Addr > pc
	})
	if idx == 0 {
		return ""
	}
	s := st.symbols[idx-1]
	if s.Size > 0 {
		if pc < s.Addr+s.Size {
			return s.Name
		}
		return ""
	}
	// Zero-size symbols extend to the start of the next symbol
	// (assembly routines often carry no size).
	limit := s.Addr + 4096
	if idx < len(st.symbols) {
		limit = st.symbols[idx].Addr
	}
	if pc < limit {
		return s.Name
	}
	return ""
}
