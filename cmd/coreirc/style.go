package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/gogpu/coreir/ir"
)

// useColor resolves a --color mode for output written to w.
func useColor(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		f, ok := w.(*os.File)
		if !ok {
			return false, nil
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()), nil
	default:
		return false, fmt.Errorf("invalid color mode %q (want auto, always or never)", mode)
	}
}

// colorWriter wraps the process stdout so that escape sequences work on
// every terminal. Other writers are returned as is.
func colorWriter(w io.Writer) io.Writer {
	if w == os.Stdout {
		return colorable.NewColorableStdout()
	}
	return w
}

func sprint(c *color.Color) func(string) string {
	c.EnableColor()
	f := c.SprintFunc()
	return func(s string) string { return f(s) }
}

// disassemblyStyle returns the highlighting of the disassembly, or the plain
// style when enabled is false.
func disassemblyStyle(enabled bool) ir.Style {
	if !enabled {
		return ir.Style{}
	}
	return ir.Style{
		Comment:  sprint(color.New(color.FgHiBlack)),
		Label:    sprint(color.New(color.FgYellow, color.Bold)),
		Opcode:   sprint(color.New(color.FgCyan)),
		Constant: sprint(color.New(color.FgMagenta)),
	}
}

// errorStyle highlights the file name of a failure report.
func errorStyle(enabled bool) func(string) string {
	if !enabled {
		return func(s string) string { return s }
	}
	return sprint(color.New(color.FgRed, color.Bold))
}
