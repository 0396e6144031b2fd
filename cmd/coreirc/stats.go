package main

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/gogpu/coreir/ir"
)

// moduleStats summarizes one module.
type moduleStats struct {
	Path         string
	Functions    int
	EntryPoints  int
	Blocks       int
	Instructions int
	Values       int
	Types        int
	Constants    int
}

func collectStats(path string, m *ir.Module) moduleStats {
	s := moduleStats{
		Path:         path,
		Functions:    len(m.Functions()),
		Blocks:       len(m.Blocks()),
		Instructions: len(m.Instructions()),
		Values:       len(m.Values()),
		Types:        m.Types.Count(),
		Constants:    len(m.Constants.All()),
	}
	for _, fn := range m.Functions() {
		if fn.IsEntryPoint() {
			s.EntryPoints++
		}
	}
	return s
}

func (s moduleStats) counts() []int {
	return []int{s.Functions, s.EntryPoints, s.Blocks, s.Instructions, s.Values, s.Types, s.Constants}
}

func row(name string, counts []int) []string {
	r := []string{name}
	for _, n := range counts {
		r = append(r, strconv.Itoa(n))
	}
	return r
}

// renderStats writes stats as a table. More than one module adds a footer
// with the totals.
func renderStats(w io.Writer, stats []moduleStats) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"File", "Functions", "Entry points", "Blocks", "Instructions", "Values", "Types", "Constants"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})
	total := make([]int, 7)
	for _, s := range stats {
		table.Append(row(s.Path, s.counts()))
		for i, n := range s.counts() {
			total[i] += n
		}
	}
	if len(stats) > 1 {
		table.SetFooter(row("Total", total))
	}
	table.Render()
}
