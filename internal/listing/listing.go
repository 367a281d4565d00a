// Package listing renders a built Object's section table — byte counts,
// symbol table, and span-growth deltas — as the human-readable summary
// `asmforge build` prints after assembling each unit. Byte counts are humanized
// with dustin/go-humanize, the same library a formatted
// output (cmd/sentra's build summary) leans on for any size printed to a
// human rather than consumed by another program.
package listing

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"asmforge/internal/object"
	"asmforge/internal/symbol"
)

// SectionRow is one line of the section summary.
type SectionRow struct {
	Name string
	Base int64
	Size int64
}

// Summary is the full listing for one built Object.
type Summary struct {
	Sections []SectionRow
	Total    int64
}

// Build collects obj's per-section sizes into a Summary. obj must
// already have had Build run against it.
func Build(obj *object.Object) Summary {
	var sum Summary
	for _, sec := range obj.Sections() {
		size := sec.End - sec.Base
		sum.Sections = append(sum.Sections, SectionRow{Name: sec.Name, Base: sec.Base, Size: size})
		sum.Total += size
	}
	return sum
}

// WriteTable renders sum as an aligned section table, one row per
// section plus a total, with every byte count humanized.
func WriteTable(w io.Writer, sum Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "section\tbase\tsize")
	for _, r := range sum.Sections {
		fmt.Fprintf(tw, "%s\t0x%x\t%s\n", r.Name, r.Base, humanize.Bytes(uint64(r.Size)))
	}
	fmt.Fprintf(tw, "total\t\t%s\n", humanize.Bytes(uint64(sum.Total)))
	return tw.Flush()
}

// WriteSymbols renders a table of every defined symbol, address and
// visibility, in the order the symbol table returns them.
func WriteSymbols(w io.Writer, tab *symbol.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "symbol\ttype\tvis\taddress")
	for _, s := range tab.Symbols() {
		addr := "-"
		if s.Type == symbol.TypeLabel {
			addr = fmt.Sprintf("0x%x", s.Loc.Offset)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name(), s.Type, s.Vis, addr)
	}
	return tw.Flush()
}

// GrowthDelta describes how much a span-dependent bytecode widened
// between the first and final widening pass, for a listing that
// explains why a jump went from short to near.
type GrowthDelta struct {
	SectionName string
	Index       int
	FirstLen    int
	FinalLen    int
}

// Describe renders a GrowthDelta as a one-line human-readable note.
func (g GrowthDelta) Describe() string {
	if g.FinalLen == g.FirstLen {
		return fmt.Sprintf("%s[%d]: unchanged at %s", g.SectionName, g.Index, humanize.Bytes(uint64(g.FinalLen)))
	}
	return fmt.Sprintf("%s[%d]: widened from %s to %s", g.SectionName, g.Index,
		humanize.Bytes(uint64(g.FirstLen)), humanize.Bytes(uint64(g.FinalLen)))
}
