package conformance

import (
	"bytes"
	"testing"
)

func TestScenariosAllPass(t *testing.T) {
	results := Run(Scenarios())
	var buf bytes.Buffer
	passed, failed := Report(&buf, results)
	if failed != 0 {
		t.Fatalf("%d scenario(s) failed:\n%s", failed, buf.String())
	}
	if passed != len(Scenarios()) {
		t.Fatalf("passed %d, want %d", passed, len(Scenarios()))
	}
}
