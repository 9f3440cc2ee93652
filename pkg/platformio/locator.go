// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package platformio locates toolchain binaries and build artifacts
// following PlatformIO filesystem conventions.
package platformio

import (
	"io/fs"
	"path/filepath"
	"sync"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/espdiag/espdiag/pkg/log"
	"github.com/espdiag/espdiag/pkg/osutil"
)

const (
	DefaultDir       = "~/.platformio"
	DefaultToolchain = "toolchain-xtensa-esp32"
	DefaultTool      = "xtensa-esp32-elf-addr2line"
	DefaultEnv       = "esp32_watchy"
)

// Locator finds the addr2line binary inside a PlatformIO toolchain package
// and the firmware ELF in the project build directory. Both lookups are
// memoized on first success; a failed lookup is retried on the next call
// (the firmware may simply not be built yet).
type Locator struct {
	Dir       string // PlatformIO installation dir, ~ is expanded
	Toolchain string // toolchain package name under <Dir>/packages
	Tool      string // addr2line binary name inside the toolchain's bin dir
	Env       string // PlatformIO environment, names the build subdirectory
	ToolPath  string // explicit addr2line path, skips discovery
	ELFPath   string // explicit firmware ELF path, skips discovery

	baseDir string // project dir for the .pio build tree, cwd if empty

	mu         sync.Mutex
	tool       string
	elf        string
	warnedTool bool
	warnedELF  bool
}

// NewLocator returns a Locator with PlatformIO defaults;
// zero-value fields of the argument are filled in.
func NewLocator(loc Locator) *Locator {
	if loc.Dir == "" {
		loc.Dir = DefaultDir
	}
	if loc.Toolchain == "" {
		loc.Toolchain = DefaultToolchain
	}
	if loc.Tool == "" {
		loc.Tool = DefaultTool
	}
	if loc.Env == "" {
		loc.Env = DefaultEnv
	}
	return &loc
}

// Addr2Line returns the path to the toolchain addr2line binary,
// or "" if it cannot be found. Absence is a normal outcome.
func (loc *Locator) Addr2Line() string {
	loc.mu.Lock()
	defer loc.mu.Unlock()
	if loc.tool != "" {
		return loc.tool
	}
	loc.tool = loc.findAddr2Line()
	if loc.tool != "" {
		log.Logf(1, "using addr2line at %v", loc.tool)
	}
	return loc.tool
}

func (loc *Locator) findAddr2Line() string {
	if loc.ToolPath != "" {
		if osutil.IsExist(loc.ToolPath) {
			return loc.ToolPath
		}
		loc.warnOnceTool("addr2line not found at %v", loc.ToolPath)
		return ""
	}
	dir, err := homedir.Expand(loc.Dir)
	if err != nil {
		loc.warnOnceTool("failed to expand %v: %v", loc.Dir, err)
		return ""
	}
	toolchainDir := filepath.Join(dir, "packages", loc.Toolchain)
	if !osutil.IsExist(toolchainDir) {
		loc.warnOnceTool("toolchain directory not found: %v", toolchainDir)
		return ""
	}
	var found string
	filepath.WalkDir(toolchainDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == "bin" {
			if cand := filepath.Join(path, loc.Tool); osutil.IsExist(cand) {
				found = cand
				return filepath.SkipAll
			}
		}
		return nil
	})
	if found == "" {
		loc.warnOnceTool("%v not found under %v", loc.Tool, toolchainDir)
	}
	return found
}

// FirmwareELF returns the path to the firmware ELF with debug info,
// or "" if it does not exist (e.g. the firmware was not built yet).
func (loc *Locator) FirmwareELF() string {
	loc.mu.Lock()
	defer loc.mu.Unlock()
	if loc.elf != "" {
		return loc.elf
	}
	path := loc.ELFPath
	if path == "" {
		path = filepath.Join(".pio", "build", loc.Env, "firmware.elf")
		if loc.baseDir != "" {
			path = filepath.Join(loc.baseDir, path)
		} else {
			path = osutil.Abs(path)
		}
	}
	if !osutil.IsExist(path) {
		if !loc.warnedELF {
			loc.warnedELF = true
			log.Logf(1, "firmware ELF not found: %v", path)
		}
		return ""
	}
	loc.elf = path
	log.Logf(1, "using firmware ELF at %v", path)
	return loc.elf
}

// Reset drops memoized paths, forcing rediscovery on next use.
func (loc *Locator) Reset() {
	loc.mu.Lock()
	defer loc.mu.Unlock()
	loc.tool = ""
	loc.elf = ""
	loc.warnedTool = false
	loc.warnedELF = false
}

func (loc *Locator) warnOnceTool(msg string, args ...interface{}) {
	if loc.warnedTool {
		return
	}
	loc.warnedTool = true
	log.Logf(1, msg, args...)
}
