// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package monitor

import (
	"bufio"
	"io"
)

// Long panic dumps can exceed bufio.Scanner's default line limit.
const maxLineLen = 1 << 20

// Serve pumps lines from r through proc to w until EOF or until shutdown
// is closed. Output is flushed after every line so that a live device log
// stays watchable in real time. Both termination conditions are clean;
// only I/O errors are reported.
func Serve(proc *Processor, r io.Reader, w io.Writer, shutdown <-chan struct{}) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineLen)
	out := bufio.NewWriter(w)
	for scanner.Scan() {
		select {
		case <-shutdown:
			return nil
		default:
		}
		if _, err := out.WriteString(proc.Process(scanner.Text())); err != nil {
			return err
		}
		if err := out.WriteByte('\n'); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}
