// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package monitor

import (
	"regexp"
	"strconv"
)

// ESP32 crash output carries two kinds of decodable markers:
//
//	PC      : 0x400d1234
//	Backtrace: 0x400d1111:0x3ffb1111 0x400d2222:0x3ffb2222
//
// Addresses are 32-bit, printed as 0x plus exactly 8 lowercase hex digits.
// Each backtrace frame is a return-address:stack-pointer pair; only the
// first address of the pair is meaningful for symbolization.
var (
	pcRe            = regexp.MustCompile(`PC\s*:\s*(0x[0-9a-f]{8})`)
	backtraceRe     = regexp.MustCompile(`Backtrace:((?:\s+0x[0-9a-f]{8}:\s*0x[0-9a-f]{8})+)`)
	backtraceAddrRe = regexp.MustCompile(`(0x[0-9a-f]{8}):\s*0x[0-9a-f]{8}`)
)

// Classification is the result of matching one log line against the
// crash markers. A line may carry both a PC and a backtrace.
type Classification struct {
	PC        uint64
	HasPC     bool
	Backtrace []uint64 // return addresses in call order
}

func (cl Classification) empty() bool {
	return !cl.HasPC && len(cl.Backtrace) == 0
}

// classify extracts crash marker addresses from a single log line.
// It is a pure function; lines without markers yield an empty result.
func classify(line string) Classification {
	var cl Classification
	if match := pcRe.FindStringSubmatch(line); match != nil {
		if pc, err := parseAddr(match[1]); err == nil {
			cl.PC = pc
			cl.HasPC = true
		}
	}
	if match := backtraceRe.FindStringSubmatch(line); match != nil {
		for _, pair := range backtraceAddrRe.FindAllStringSubmatch(match[1], -1) {
			addr, err := parseAddr(pair[1])
			if err != nil {
				continue
			}
			cl.Backtrace = append(cl.Backtrace, addr)
		}
	}
	return cl
}

func parseAddr(s string) (uint64, error) {
	// The regexps guarantee the 0x prefix and 8 hex digits.
	return strconv.ParseUint(s[2:], 16, 32)
}
