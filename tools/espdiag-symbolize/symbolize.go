// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// espdiag-symbolize annotates a saved ESP32 monitor log after the fact:
//
//	espdiag-symbolize [flags] device.log
//
// The annotated log is written to stdout. Repeated crash addresses are
// resolved once and served from cache.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/espdiag/espdiag/pkg/monitor"
	"github.com/espdiag/espdiag/pkg/tool"
)

var (
	flagConfig    = flag.String("config", "", "configuration file")
	flagEnv       = flag.String("env", "", "PlatformIO environment of the firmware build")
	flagFirmware  = flag.String("firmware", "", "path to the firmware ELF (skips discovery)")
	flagAddr2Line = flag.String("addr2line", "", "path to addr2line (skips toolchain discovery)")
)

func main() {
	flag.Parse()
	if len(flag.Args()) != 1 {
		fmt.Fprintf(os.Stderr, "usage: espdiag-symbolize [flags] device_log_file\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
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
	if err := monitor.Complete(cfg); err != nil {
		tool.Fail(err)
	}

	f, err := os.Open(flag.Args()[0])
	if err != nil {
		tool.Failf("failed to open log file: %v", err)
	}
	defer f.Close()

	proc := monitor.NewProcessor(cfg)
	defer proc.Close()
	if err := monitor.Serve(proc, f, os.Stdout, nil); err != nil {
		tool.Fail(err)
	}
}
