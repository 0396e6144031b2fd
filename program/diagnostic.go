package program

import (
	"fmt"
	"strings"
)

// Diagnostic is a user-facing error tied to a source location.
type Diagnostic struct {
	Message string
	Span    Span
	Source  string
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	if d.Span.Line == 0 {
		return d.Message
	}
	return fmt.Sprintf("%d:%d: %s", d.Span.Line, d.Span.Column, d.Message)
}

// FormatWithContext returns the message followed by the offending source line
// and a caret under the reported column.
func (d *Diagnostic) FormatWithContext() string {
	if d.Source == "" || d.Span.Line == 0 {
		return d.Error()
	}

	lines := strings.Split(d.Source, "\n")
	lineNum := d.Span.Line
	if lineNum > len(lines) {
		return d.Error()
	}

	line := lines[lineNum-1]
	col := d.Span.Column
	if col < 1 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "error: %s\n", d.Message)
	fmt.Fprintf(&sb, "  --> line %d:%d\n", lineNum, col)
	sb.WriteString("   |\n")
	fmt.Fprintf(&sb, "%3d| %s\n", lineNum, line)
	fmt.Fprintf(&sb, "   | %s^\n", strings.Repeat(" ", col-1))
	return sb.String()
}

// Diagnostics is a list of diagnostics. A non-empty list is an error.
type Diagnostics []*Diagnostic

func (ds Diagnostics) Error() string {
	switch len(ds) {
	case 0:
		return "no errors"
	case 1:
		return ds[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", ds[0].Error(), len(ds)-1)
}

// FormatAll formats every diagnostic with context.
func (ds Diagnostics) FormatAll() string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.FormatWithContext()
	}
	return strings.Join(parts, "\n")
}

// Addf appends a diagnostic with a formatted message.
func (ds *Diagnostics) Addf(span Span, source, format string, args ...any) {
	*ds = append(*ds, &Diagnostic{Message: fmt.Sprintf(format, args...), Span: span, Source: source})
}

// HasErrors reports whether the list is non-empty.
func (ds Diagnostics) HasErrors() bool { return len(ds) > 0 }
