package repl

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunEvaluatesLinesUntilExit(t *testing.T) {
	in := strings.NewReader(".byte 1,2,3\nexit\n")
	var out bytes.Buffer
	New(in, &out).Run()
	if !strings.Contains(out.String(), "ok:") {
		t.Fatalf("expected an ok line, got: %q", out.String())
	}
}

func TestRunReportsParseErrors(t *testing.T) {
	in := strings.NewReader(".bogus\nexit\n")
	var out bytes.Buffer
	New(in, &out).Run()
	if !strings.Contains(out.String(), "parse error") {
		t.Fatalf("expected a parse error line, got: %q", out.String())
	}
}
