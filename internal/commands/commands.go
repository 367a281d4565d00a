// Package commands implements the asmforge CLI's subcommands: init,
// build, watch, clean, trace, repl, and conformance. Grounded on
// a reference commands.go (InitCommand/BuildCommand/WatchCommand/
// CleanCommand) and a reference main.go's command-alias dispatch; build's
// multi-file assembly uses golang.org/x/sync/errgroup the way a
// concurrent per-translation-unit pipeline would, one *object.Object per
// file: if a caller parallelizes at the translation-unit
// level, each unit owns its own Object graph, and merge is the caller's
// responsibility — this driver is that caller, and it keeps each
// unit's Object and diagnostics separate rather than merging them.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"asmforge/internal/diag"
	"asmforge/internal/gasparse"
	"asmforge/internal/lexer"
	"asmforge/internal/listing"
	"asmforge/internal/object"
	"asmforge/internal/objwriter"
	"asmforge/internal/repl"
)

// ColorEnabled reports whether diagnostic output should be colorized:
// only when stdout is an actual terminal, checked with go-isatty the
// same way a formatter would gate ANSI output.
func ColorEnabled() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// printDiagnostic writes an error line, in red when ColorEnabled.
func printDiagnostic(msg string) {
	if ColorEnabled() {
		fmt.Printf("\x1b[31m%s\x1b[0m\n", msg)
		return
	}
	fmt.Println(msg)
}

// Unit is one translation unit's build result.
type Unit struct {
	Path    string
	Obj     *object.Object
	Engine  *diag.Engine
	ReadErr error
}

// assembleFile parses and builds one file into its own Object, the unit
// of work an errgroup goroutine owns end to end.
func assembleFile(path string) *Unit {
	u := &Unit{Path: path}
	src, err := os.ReadFile(path)
	if err != nil {
		u.ReadErr = err
		return u
	}
	obj := object.New(".text")
	engine := diag.NewEngine()
	tokens := lexer.NewScanner(string(src)).ScanTokens()
	p := gasparse.New(tokens, path, obj)
	p.Parse()
	for _, perr := range p.Errors {
		engine.Reportf(diag.KindTooComplex, diag.Pos{File: path}, "%v", perr)
	}
	obj.Build(0, engine)
	u.Obj = obj
	u.Engine = engine
	return u
}

// BuildCommand assembles every file in args concurrently, one goroutine
// per translation unit via errgroup, writes each unit's object file next
// to its source (replacing the extension with .o, or .bin for a flat
// format), and reports a listing summary for each on success. Format
// ("elf64" or "flat") is taken from format.
func BuildCommand(args []string, format string) error {
	if len(args) == 0 {
		return fmt.Errorf("build: no input files")
	}
	fmt.Println("Building asmforge project...")

	units := make([]*Unit, len(args))
	var g errgroup.Group
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			units[i] = assembleFile(path)
			return nil
		})
	}
	_ = g.Wait() // assembleFile never returns an error itself; failures live in each Unit

	failed := false
	for _, u := range units {
		if u.ReadErr != nil {
			fmt.Printf("%s: %v\n", u.Path, u.ReadErr)
			failed = true
			continue
		}
		if u.Engine.HasErrors() {
			for _, d := range u.Engine.Diagnostics() {
				printDiagnostic(d.Error())
			}
			failed = true
			continue
		}
		if err := writeUnit(u, format); err != nil {
			fmt.Printf("%s: %v\n", u.Path, err)
			failed = true
			continue
		}
		sum := listing.Build(u.Obj)
		listing.WriteTable(os.Stdout, sum)
	}
	if failed {
		return fmt.Errorf("build: one or more units failed")
	}
	fmt.Println("Build completed successfully")
	return nil
}

func writeUnit(u *Unit, format string) error {
	ext := ".o"
	var out []byte
	var err error
	switch format {
	case "flat":
		ext = ".bin"
		out, err = objwriter.WriteFlat(u.Obj, 0)
	default:
		out, err = objwriter.WriteELF64(u.Obj, 0)
	}
	if err != nil {
		return err
	}
	dst := trimExt(u.Path) + ext
	return os.WriteFile(dst, out, 0644)
}

func trimExt(path string) string {
	return path[:len(path)-len(filepath.Ext(path))]
}

// InitCommand scaffolds a new project directory with a starter assembly
// source file, mirroring a reference InitCommand shape.
func InitCommand(args []string) error {
	name := "asmforge-project"
	if len(args) > 0 {
		name = args[0]
	}
	if err := os.MkdirAll(name, 0755); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	mainFile := filepath.Join(name, "main.s")
	content := ".text\n.global _start\n_start:\n\tjmp _start\n"
	if err := os.WriteFile(mainFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	fmt.Printf("Initialized new asmforge project: %s\n", name)
	return nil
}

// CleanCommand removes build artifacts (object files and the default
// output directory), mirroring a reference CleanCommand glob sweep.
func CleanCommand(args []string) error {
	fmt.Println("Cleaning build artifacts...")
	patterns := []string{"*.o", "*.bin", "build"}
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(pattern)
		for _, m := range matches {
			os.RemoveAll(m)
			fmt.Printf("Removed: %s\n", m)
		}
	}
	fmt.Println("Clean completed")
	return nil
}

// ReplCommand starts an interactive session on stdin/stdout.
func ReplCommand(args []string) error {
	repl.New(os.Stdin, os.Stdout).Run()
	return nil
}
