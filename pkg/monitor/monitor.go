// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package monitor filters ESP32 device log output: lines carrying a PC
// register dump or an exception backtrace get the decoded function name
// and source location appended, everything else passes through unchanged.
package monitor

import (
	"fmt"
	"strings"

	"github.com/espdiag/espdiag/pkg/log"
	"github.com/espdiag/espdiag/pkg/platformio"
	"github.com/espdiag/espdiag/pkg/symbolizer"
)

// Processor annotates single log lines. Lines are independent: no state is
// carried between them except memoized tool/artifact paths and the
// symbolization cache.
type Processor struct {
	cfg    *Config
	loc    *platformio.Locator
	symb   symbolizer.Symbolizer
	cache  *symbolizer.Cache
	symtab *symbolizer.SymTab
}

func NewProcessor(cfg *Config) *Processor {
	return &Processor{
		cfg:   cfg,
		loc:   cfg.locator(),
		cache: new(symbolizer.Cache),
	}
}

func (p *Processor) Close() {
	if p.symb != nil {
		p.symb.Close()
		p.symb = nil
	}
}

// Process returns line with decoded crash information appended, one
// annotation block per detected marker. If the toolchain or the firmware
// ELF is unavailable, or resolution fails, the affected annotation is
// simply omitted; the original line always survives intact.
func (p *Processor) Process(line string) string {
	cl := classify(line)
	if cl.empty() {
		return line
	}
	bin := p.loc.FirmwareELF()
	if bin == "" {
		return line
	}
	symb := p.symbolizer()
	if symb == nil {
		if !p.cfg.SymtabFallback {
			return line
		}
		return p.processSymtab(line, cl, bin)
	}
	result := line
	if cl.HasPC {
		frame, err := p.cache.Symbolize(func(bin string, pc uint64) (symbolizer.Frame, error) {
			frames, err := symb.Symbolize(bin, pc)
			if err != nil {
				return symbolizer.Frame{}, err
			}
			if len(frames) != 1 {
				return symbolizer.Frame{}, fmt.Errorf("got %v frames for one pc", len(frames))
			}
			return frames[0], nil
		}, bin, cl.PC)
		if err != nil {
			log.Logf(0, "failed to decode PC 0x%08x: %v", cl.PC, err)
		} else {
			result += "\nPC decoded: " + frameString(frame)
		}
	}
	if len(cl.Backtrace) > 0 {
		// One invocation resolves the whole backtrace.
		frames, err := symb.Symbolize(bin, cl.Backtrace...)
		switch {
		case err != nil:
			log.Logf(0, "failed to decode backtrace: %v", err)
		case len(frames) != len(cl.Backtrace):
			log.Logf(0, "failed to decode backtrace: got %v frames for %v addresses",
				len(frames), len(cl.Backtrace))
		default:
			result += formatBacktrace(frames)
		}
	}
	return result
}

// processSymtab is the degraded mode without addr2line: function names come
// from the ELF symbol table, source locations are unknown.
func (p *Processor) processSymtab(line string, cl Classification, bin string) string {
	if p.symtab == nil {
		symtab, err := symbolizer.ReadTextSymbols(bin)
		if err != nil {
			log.Logf(0, "failed to read firmware symbols: %v", err)
			return line
		}
		p.symtab = symtab
	}
	result := line
	if cl.HasPC {
		if name := p.symtab.Lookup(cl.PC); name != "" {
			result += "\nPC decoded: " + frameString(symbolizer.Frame{Func: name})
		}
	}
	if len(cl.Backtrace) > 0 {
		frames := make([]symbolizer.Frame, 0, len(cl.Backtrace))
		resolved := false
		for _, pc := range cl.Backtrace {
			name := p.symtab.Lookup(pc)
			if name == "" {
				name = "??"
			} else {
				resolved = true
			}
			frames = append(frames, symbolizer.Frame{PC: pc, Func: name})
		}
		if resolved {
			result += formatBacktrace(frames)
		}
	}
	return result
}

func (p *Processor) symbolizer() symbolizer.Symbolizer {
	if p.symb != nil {
		return p.symb
	}
	tool := p.loc.Addr2Line()
	if tool == "" {
		return nil
	}
	p.symb = symbolizer.Make(tool, p.cfg.Timeout())
	return p.symb
}

func frameString(frame symbolizer.Frame) string {
	return fmt.Sprintf("%v at %v", frame.Func, frame.Location())
}

func formatBacktrace(frames []symbolizer.Frame) string {
	b := new(strings.Builder)
	b.WriteString("\nBacktrace decoded:")
	for i, frame := range frames {
		fmt.Fprintf(b, "\n  [%v] %v", i, frameString(frame))
	}
	return b.String()
}
