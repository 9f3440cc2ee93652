// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package monitor

import (
	"fmt"
	"time"

	"github.com/espdiag/espdiag/pkg/config"
	"github.com/espdiag/espdiag/pkg/platformio"
)

type Config struct {
	// PlatformIO installation directory (default "~/.platformio").
	PlatformIODir string `json:"platformio_dir"`
	// Toolchain package that ships addr2line (default "toolchain-xtensa-esp32").
	Toolchain string `json:"toolchain"`
	// Explicit addr2line path; skips toolchain discovery.
	Addr2Line string `json:"addr2line"`
	// PlatformIO environment that names the build directory (default "esp32_watchy").
	Env string `json:"env"`
	// Explicit firmware ELF path; skips build directory discovery.
	Firmware string `json:"firmware"`
	// Bound on a single addr2line invocation (default "10s").
	SymbolizeTimeout string `json:"symbolize_timeout"`
	// Resolve bare function names from the ELF symbol table
	// when addr2line is not installed (default false).
	SymtabFallback bool `json:"symtab_fallback"`

	timeout time.Duration
}

func defaultValues() *Config {
	return &Config{
		PlatformIODir:    platformio.DefaultDir,
		Toolchain:        platformio.DefaultToolchain,
		Env:              platformio.DefaultEnv,
		SymbolizeTimeout: "10s",
	}
}

// LoadConfig reads the config file, or returns defaults if filename is empty.
func LoadConfig(filename string) (*Config, error) {
	cfg := defaultValues()
	if filename != "" {
		if err := config.LoadFile(filename, cfg); err != nil {
			return nil, err
		}
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadData parses config from data, for tests.
func LoadData(data []byte) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadData(data, cfg); err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Complete validates the config and fills in derived values.
// It must be called again after any field is overridden by a flag.
func Complete(cfg *Config) error {
	if cfg.PlatformIODir == "" {
		return fmt.Errorf("config param platformio_dir is empty")
	}
	if cfg.Toolchain == "" {
		return fmt.Errorf("config param toolchain is empty")
	}
	if cfg.Env == "" {
		return fmt.Errorf("config param env is empty")
	}
	timeout, err := time.ParseDuration(cfg.SymbolizeTimeout)
	if err != nil {
		return fmt.Errorf("bad symbolize_timeout: %v", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("symbolize_timeout must be positive")
	}
	cfg.timeout = timeout
	return nil
}

// Timeout returns the parsed symbolize_timeout value.
func (cfg *Config) Timeout() time.Duration {
	return cfg.timeout
}

func (cfg *Config) locator() *platformio.Locator {
	return platformio.NewLocator(platformio.Locator{
		Dir:       cfg.PlatformIODir,
		Toolchain: cfg.Toolchain,
		Env:       cfg.Env,
		ToolPath:  cfg.Addr2Line,
		ELFPath:   cfg.Firmware,
	})
}
