// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package symbolizer resolves firmware addresses to function name and
// source location using the toolchain addr2line binary.
package symbolizer

import (
	"fmt"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Frame is the resolution result for a single address.
type Frame struct {
	PC   uint64
	Func string
	File string
	Line int
}

// Location renders the source location the way addr2line prints it
// ("file:line", or "??:0" when unknown).
func (f Frame) Location() string {
	file := f.File
	if file == "" {
		file = "??"
	}
	return fmt.Sprintf("%v:%v", file, f.Line)
}

type Symbolizer interface {
	// Symbolize resolves pcs in the binary bin.
	// On success it returns exactly one frame per pc, in pc order.
	// Any failure of the underlying invocation fails the whole call,
	// partial results are never returned.
	Symbolize(bin string, pcs ...uint64) ([]Frame, error)
	Close()
}

// demangleName cleans up a C++ mangled name that slipped through
// addr2line -C (older xtensa binutils miss some mangling schemes).
func demangleName(name string) string {
	if !strings.HasPrefix(name, "_Z") {
		return name
	}
	if d, err := demangle.ToString(name); err == nil {
		return d
	}
	return name
}
