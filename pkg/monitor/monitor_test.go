// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/espdiag/espdiag/pkg/symbolizer"
)

// stubSymbolizer resolves addresses from a fixed table, or fails wholesale.
type stubSymbolizer struct {
	frames map[uint64]symbolizer.Frame
	fail   bool
	short  bool // return one frame less than requested
	calls  int
}

func (s *stubSymbolizer) Symbolize(bin string, pcs ...uint64) ([]symbolizer.Frame, error) {
	s.calls++
	if s.fail {
		return nil, fmt.Errorf("stub failure")
	}
	var frames []symbolizer.Frame
	for _, pc := range pcs {
		frame, ok := s.frames[pc]
		if !ok {
			frame = symbolizer.Frame{PC: pc, Func: "??"}
		}
		frames = append(frames, frame)
	}
	if s.short && len(frames) > 0 {
		frames = frames[:len(frames)-1]
	}
	return frames, nil
}

func (s *stubSymbolizer) Close() {}

func testELF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firmware.elf")
	if err := os.WriteFile(path, []byte("stub"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestProcessor(t *testing.T, symb symbolizer.Symbolizer) *Processor {
	t.Helper()
	cfg, err := LoadData([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Firmware = testELF(t)
	return &Processor{
		cfg:   cfg,
		loc:   cfg.locator(),
		symb:  symb,
		cache: new(symbolizer.Cache),
	}
}

var stubFrames = map[uint64]symbolizer.Frame{
	0x400d1234: {PC: 0x400d1234, Func: "app_main", File: "main.cpp", Line: 42},
	0x400d1111: {PC: 0x400d1111, Func: "fnA", File: "a.cpp", Line: 1},
	0x400d2222: {PC: 0x400d2222, Func: "fnB", File: "b.cpp", Line: 2},
}

func TestProcessPassthrough(t *testing.T) {
	proc := newTestProcessor(t, &stubSymbolizer{frames: stubFrames})
	for _, line := range []string{
		"",
		"I (1234) wifi: connected",
		"Guru Meditation Error: Core  0 panic'ed (LoadProhibited). Exception was unhandled.",
		"ets Jun  8 2016 00:22:57",
	} {
		if got := proc.Process(line); got != line {
			t.Errorf("Process(%q) = %q, want unchanged", line, got)
		}
	}
}

func TestProcessPC(t *testing.T) {
	proc := newTestProcessor(t, &stubSymbolizer{frames: stubFrames})
	got := proc.Process("Guru Meditation Error: PC : 0x400d1234")
	want := "Guru Meditation Error: PC : 0x400d1234\n" +
		"PC decoded: app_main at main.cpp:42"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%v", diff)
	}
}

func TestProcessBacktrace(t *testing.T) {
	proc := newTestProcessor(t, &stubSymbolizer{frames: stubFrames})
	got := proc.Process("Backtrace: 0x400d1111:0x3ffb1111 0x400d2222:0x3ffb2222")
	want := "Backtrace: 0x400d1111:0x3ffb1111 0x400d2222:0x3ffb2222\n" +
		"Backtrace decoded:\n" +
		"  [0] fnA at a.cpp:1\n" +
		"  [1] fnB at b.cpp:2"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%v", diff)
	}
}

func TestProcessBothMarkers(t *testing.T) {
	stub := &stubSymbolizer{frames: stubFrames}
	proc := newTestProcessor(t, stub)
	got := proc.Process("PC : 0x400d1234 Backtrace: 0x400d1111:0x3ffb1111")
	want := "PC : 0x400d1234 Backtrace: 0x400d1111:0x3ffb1111\n" +
		"PC decoded: app_main at main.cpp:42\n" +
		"Backtrace decoded:\n" +
		"  [0] fnA at a.cpp:1"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%v", diff)
	}
	// One invocation per marker: one for the PC, one for the whole backtrace.
	assert.Equal(t, 2, stub.calls)
}

func TestProcessSymbolizerFailure(t *testing.T) {
	proc := newTestProcessor(t, &stubSymbolizer{fail: true})
	for _, line := range []string{
		"PC : 0x400d1234",
		"Backtrace: 0x400d1111:0x3ffb1111 0x400d2222:0x3ffb2222",
	} {
		if got := proc.Process(line); got != line {
			t.Errorf("Process(%q) = %q, want unchanged on failure", line, got)
		}
	}
}

func TestProcessFrameCountMismatch(t *testing.T) {
	proc := newTestProcessor(t, &stubSymbolizer{frames: stubFrames, short: true})
	line := "Backtrace: 0x400d1111:0x3ffb1111 0x400d2222:0x3ffb2222"
	if got := proc.Process(line); got != line {
		t.Fatalf("partial backtrace must not be annotated, got:\n%v", got)
	}
}

func TestProcessEnvironmentNotReady(t *testing.T) {
	cfg, err := LoadData([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	// Point discovery at an empty dir: no toolchain, no firmware.
	cfg.PlatformIODir = t.TempDir()
	cfg.Firmware = filepath.Join(t.TempDir(), "missing.elf")
	proc := NewProcessor(cfg)
	defer proc.Close()

	for _, line := range []string{
		"plain line",
		"PC : 0x400d1234",
		"Backtrace: 0x400d1111:0x3ffb1111",
	} {
		if got := proc.Process(line); got != line {
			t.Errorf("Process(%q) = %q, want unchanged without tool/firmware", line, got)
		}
	}
}

func TestProcessIdempotent(t *testing.T) {
	proc := newTestProcessor(t, &stubSymbolizer{frames: stubFrames})
	annotated := proc.Process("PC : 0x400d1234 Backtrace: 0x400d1111:0x3ffb1111 0x400d2222:0x3ffb2222")
	// Feeding the annotation lines back through must not grow the output.
	for _, line := range strings.Split(annotated, "\n")[1:] {
		if got := proc.Process(line); got != line {
			t.Fatalf("annotation line re-matched: %q -> %q", line, got)
		}
	}
}

func TestProcessPCCached(t *testing.T) {
	stub := &stubSymbolizer{frames: stubFrames}
	proc := newTestProcessor(t, stub)
	line := "PC : 0x400d1234"
	first := proc.Process(line)
	second := proc.Process(line)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, stub.calls)
}

func TestProcessSymtabFallback(t *testing.T) {
	cfg, err := LoadData([]byte(`{"symtab_fallback": true}`))
	if err != nil {
		t.Fatal(err)
	}
	cfg.PlatformIODir = t.TempDir() // no addr2line anywhere
	cfg.Firmware = testELF(t)
	proc := NewProcessor(cfg)
	defer proc.Close()
	proc.symtab = &symbolizer.SymTab{} // the stub ELF is not parseable

	// An empty symbol table resolves nothing: lines stay unchanged.
	line := "PC : 0x400d1234"
	if got := proc.Process(line); got != line {
		t.Fatalf("empty symtab must not annotate, got:\n%v", got)
	}
}
