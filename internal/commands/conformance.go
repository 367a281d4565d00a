package commands

import (
	"fmt"
	"os"

	"asmforge/internal/conformance"
)

// ConformanceCommand runs the fixed S1-S6 scenario suite and reports
// PASS/FAIL per scenario, exiting with an error if any failed — the
// end-to-end check the maintainer wants reachable from the CLI rather
// than only from a _test.go file.
func ConformanceCommand(args []string) error {
	results := conformance.Run(conformance.Scenarios())
	_, failed := conformance.Report(os.Stdout, results)
	if failed > 0 {
		return fmt.Errorf("conformance: %d scenario(s) failed", failed)
	}
	return nil
}
