// Package include resolves `.include` directives into a flat list of
// source files to feed the frontend in order, detecting cycles before
// any of them are parsed. Grounded on a reference ImportResolver
// (internal/build/linker.go): the same visited/resolving two-set shape,
// repurposed from Sentra module imports to assembly include files. It
// does not merge symbol tables across files — each resolved file is
// still parsed into its own translation unit's Object, per the core's
// one-Object-per-unit rule.
package include

import (
	"fmt"
	"os"
	"path/filepath"
)

// Graph is the resolved include order for one entry file: Files lists
// every file reachable from the entry, each appearing exactly once, in
// the order a depth-first walk first reached it — the order a frontend
// should parse them in so a label defined in an included file is visible
// to whatever follows its `.include` line.
type Graph struct {
	Entry string
	Files []string
}

// Resolver walks `.include` directives starting from an entry file.
// SearchPaths is consulted, in order, for any include operand that is
// not found relative to the including file itself.
type Resolver struct {
	SearchPaths []string

	visited   map[string]bool
	resolving map[string]bool
	order     []string
}

// NewResolver creates a Resolver that additionally searches searchPaths
// for include operands not found next to the including file.
func NewResolver(searchPaths []string) *Resolver {
	return &Resolver{
		SearchPaths: searchPaths,
		visited:     make(map[string]bool),
		resolving:   make(map[string]bool),
	}
}

// Resolve walks every `.include` reachable from entry and returns the
// flattened file list. An include cycle (entry.s includes a.s includes
// entry.s) is reported as an error naming the cycle, the same
// resolving-set check linker.go's resolveModule uses.
func (r *Resolver) Resolve(entry string) (*Graph, error) {
	abs, err := filepath.Abs(entry)
	if err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	if err := r.walk(abs); err != nil {
		return nil, err
	}
	return &Graph{Entry: abs, Files: r.order}, nil
}

func (r *Resolver) walk(path string) error {
	if r.resolving[path] {
		return fmt.Errorf("include: circular .include detected at %s", path)
	}
	if r.visited[path] {
		return nil
	}
	r.resolving[path] = true
	defer delete(r.resolving, path)

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("include: reading %s: %w", path, err)
	}
	r.visited[path] = true
	r.order = append(r.order, path)

	for _, operand := range scanIncludes(string(src)) {
		resolved, err := r.find(operand, filepath.Dir(path))
		if err != nil {
			return err
		}
		if err := r.walk(resolved); err != nil {
			return err
		}
	}
	return nil
}

// find locates an include operand relative to dir first, then each
// SearchPath in order, matching the resolver's own module-lookup order.
func (r *Resolver) find(operand, dir string) (string, error) {
	candidates := append([]string{filepath.Join(dir, operand)}, joinAll(r.SearchPaths, operand)...)
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			abs, err := filepath.Abs(c)
			if err != nil {
				return "", fmt.Errorf("include: %w", err)
			}
			return abs, nil
		}
	}
	return "", fmt.Errorf("include: %q not found (searched %v)", operand, candidates)
}

func joinAll(dirs []string, operand string) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = filepath.Join(d, operand)
	}
	return out
}

// scanIncludes extracts the quoted operand of every `.include "file"`
// line in src, tolerating leading whitespace and a trailing comment the
// way the lexer's own directive scanning does.
func scanIncludes(src string) []string {
	var out []string
	for _, line := range splitLines(src) {
		trimmed := trimLeadingSpace(line)
		const prefix = ".include"
		if len(trimmed) <= len(prefix) || trimmed[:len(prefix)] != prefix {
			continue
		}
		rest := trimLeadingSpace(trimmed[len(prefix):])
		if len(rest) < 2 || rest[0] != '"' {
			continue
		}
		end := 1
		for end < len(rest) && rest[end] != '"' {
			end++
		}
		if end < len(rest) {
			out = append(out, rest[1:end])
		}
	}
	return out
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func trimLeadingSpace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[i:]
}
