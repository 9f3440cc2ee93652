// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package symbolizer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/espdiag/espdiag/pkg/osutil"
)

type addr2Line struct {
	tool    string
	timeout time.Duration
}

// Make creates a Symbolizer that shells out to the addr2line binary at tool.
// Each invocation is bounded by timeout; timeout counts as invocation failure.
func Make(tool string, timeout time.Duration) Symbolizer {
	return &addr2Line{
		tool:    tool,
		timeout: timeout,
	}
}

func (a *addr2Line) Symbolize(bin string, pcs ...uint64) ([]Frame, error) {
	if len(pcs) == 0 {
		return nil, nil
	}
	args := []string{"-e", bin, "-f", "-C"}
	for _, pc := range pcs {
		args = append(args, fmt.Sprintf("0x%08x", pc))
	}
	cmd := osutil.Command(a.tool, args...)
	stdout := new(bytes.Buffer)
	cmd.Stdout = stdout
	if _, err := osutil.Run(a.timeout, cmd); err != nil {
		return nil, err
	}
	// addr2line emits two lines per address: function name, then file:line.
	// There is no delimiter between records, so anything other than exactly
	// 2*len(pcs) lines means we can't pair output with input addresses.
	lines := splitLines(stdout.String())
	if len(lines) != 2*len(pcs) {
		return nil, fmt.Errorf("addr2line returned %v lines for %v addresses", len(lines), len(pcs))
	}
	frames := make([]Frame, 0, len(pcs))
	for i, pc := range pcs {
		file, line := splitLocation(lines[2*i+1])
		frames = append(frames, Frame{
			PC:   pc,
			Func: demangleName(lines[2*i]),
			File: file,
			Line: line,
		})
	}
	return frames, nil
}

func (a *addr2Line) Close() {
}

func splitLines(output string) []string {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitLocation parses an addr2line location line of the form "file:line",
// tolerating a trailing " (discriminator N)" suffix.
func splitLocation(loc string) (string, int) {
	if idx := strings.Index(loc, " (discriminator"); idx != -1 {
		loc = loc[:idx]
	}
	idx := strings.LastIndex(loc, ":")
	if idx == -1 {
		return loc, 0
	}
	line, err := strconv.Atoi(loc[idx+1:])
	if err != nil {
		return loc, 0
	}
	return loc[:idx], line
}
