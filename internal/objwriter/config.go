package objwriter

import (
	"encoding/json"
	"fmt"
	"os"
)

// BuildConfig mirrors a project's build section (asmforge.json): which
// output format to emit and where, whether to keep the optimizer's
// length-minimization pass on, and any extra include directories a
// multi-file build needs. Modeled on a reference build system's BuildConfig
// (internal/build/builder.go), narrowed from a script bundler's
// dependency/build-flags shape to an assembler's.
type BuildConfig struct {
	EntryPoint    string   `json:"entry_point"`
	OutputPath    string   `json:"output_path"`
	Format        string   `json:"format"` // "elf64" or "flat"
	Optimize      bool     `json:"optimize"`
	IncludeDebug  bool     `json:"include_debug"`
	IncludePaths  []string `json:"include_paths"`
	BuildFlags    []string `json:"build_flags"`
}

// ProjectManifest is the top-level asmforge.json shape: identity fields
// plus the BuildConfig, the same two-level nesting that build system's
// sentra.json uses.
type ProjectManifest struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Description string      `json:"description"`
	Author      string      `json:"author"`
	License     string      `json:"license"`
	BuildConfig BuildConfig `json:"build"`
}

// LoadManifest reads and parses an asmforge.json at path.
func LoadManifest(path string) (*ProjectManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m ProjectManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.BuildConfig.Format == "" {
		m.BuildConfig.Format = "elf64"
	}
	return &m, nil
}
