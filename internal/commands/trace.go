package commands

import (
	"fmt"
	"os"

	"asmforge/internal/diag"
	"asmforge/internal/gasparse"
	"asmforge/internal/lexer"
	"asmforge/internal/object"
	"asmforge/internal/trace"
)

func readFileOrEmpty(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(b), nil
}

// TraceCommand assembles path, then drives an interactive stepper over
// the finished bytecodes of its first section on stdin/stdout.
func TraceCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("trace: no input file")
	}
	path := args[0]
	src, err := readFileOrEmpty(path)
	if err != nil {
		return err
	}
	obj := object.New(".text")
	engine := diag.NewEngine()
	tokens := lexer.NewScanner(src).ScanTokens()
	p := gasparse.New(tokens, path, obj)
	p.Parse()
	if len(p.Errors) > 0 {
		return fmt.Errorf("trace: parse errors: %v", p.Errors)
	}
	obj.Build(0, engine)
	if engine.HasErrors() {
		return fmt.Errorf("trace: build diagnostics: %v", engine.Diagnostics())
	}
	secs := obj.Sections()
	if len(secs) == 0 {
		return fmt.Errorf("trace: no sections produced")
	}
	t := trace.New(secs[0], obj.Symbols, os.Stdin, os.Stdout)
	return t.Run()
}
