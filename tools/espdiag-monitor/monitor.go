// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// espdiag-monitor is a streaming filter for ESP32 device logs. Pipe the
// serial monitor output through it and crash PCs/backtraces come out
// annotated with function names and source locations:
//
//	pio device monitor | espdiag-monitor
//
// Lines without crash markers pass through unchanged, so it is safe to keep
// in the pipeline permanently. If the toolchain or the firmware ELF cannot
// be found, the filter degrades to a plain pass-through.
package main

import (
	"flag"
	"os"

	"github.com/espdiag/espdiag/pkg/monitor"
	"github.com/espdiag/espdiag/pkg/osutil"
	"github.com/espdiag/espdiag/pkg/tool"
)

var (
	flagConfig    = flag.String("config", "", "configuration file")
	flagEnv       = flag.String("env", "", "PlatformIO environment of the firmware build")
	flagFirmware  = flag.String("firmware", "", "path to the firmware ELF (skips discovery)")
	flagAddr2Line = flag.String("addr2line", "", "path to addr2line (skips toolchain discovery)")
	flagPio       = flag.String("pio", "", "PlatformIO installation directory")
	flagTimeout   = flag.Duration("timeout", 0, "bound on a single addr2line invocation")
	flagSymtab    = flag.Bool("symtab-fallback", false,
		"resolve function names from the ELF symbol table when addr2line is missing")
)

func main() {
	flag.Parse()
	cfg, err := monitor.LoadConfig(*flagConfig)
	if err != nil {
		tool.Fail(err)
	}
	if *flagEnv != "" {
		cfg.Env = *flagEnv
	}
	if *flagFirmware != "" {
		cfg.Firmware = *flagFirmware
	}
	if *flagAddr2Line != "" {
		cfg.Addr2Line = *flagAddr2Line
	}
	if *flagPio != "" {
		cfg.PlatformIODir = *flagPio
	}
	if *flagTimeout != 0 {
		cfg.SymbolizeTimeout = flagTimeout.String()
	}
	if *flagSymtab {
		cfg.SymtabFallback = true
	}
	if err := monitor.Complete(cfg); err != nil {
		tool.Fail(err)
	}

	proc := monitor.NewProcessor(cfg)
	defer proc.Close()
	shutdown := make(chan struct{})
	osutil.HandleInterrupts(shutdown)
	if err := monitor.Serve(proc, os.Stdin, os.Stdout, shutdown); err != nil {
		tool.Fail(err)
	}
}
