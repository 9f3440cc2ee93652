// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to standard log package with some extensions:
//   - verbosity levels
//   - global verbosity setting that can be used by multiple packages
//
// All output goes to stderr so that it never interleaves with the filtered
// log stream on stdout.
package log

import (
	"flag"
	golog "log"
)

var flagV = flag.Int("vv", 0, "verbosity")

func Logf(v int, msg string, args ...interface{}) {
	if v <= *flagV {
		golog.Printf(msg, args...)
	}
}

func Fatal(err error) {
	golog.Fatal(err)
}

func Fatalf(msg string, args ...interface{}) {
	golog.Fatalf(msg, args...)
}

// V reports whether logging at verbosity v is enabled.
func V(v int) bool {
	return v <= *flagV
}
