package backend

import (
	"github.com/gogpu/coreir/ir"
	"github.com/gogpu/coreir/ir/binary"
)

// Text emits the disassembly of a module.
type Text struct{}

func (Text) Name() string { return "text" }

// Generate returns the disassembly of m decorated with opts.Style.
func (Text) Generate(m *ir.Module, opts Options) (*Output, error) {
	eps, err := prepare("text", m, opts)
	if err != nil {
		return nil, err
	}
	d := ir.Disassembler{Style: opts.Style}
	return &Output{Data: []byte(d.Disassemble(m)), EntryPoints: eps}, nil
}

// Binary emits the binary encoding of a module.
type Binary struct{}

func (Binary) Name() string { return "cir" }

// Generate returns binary.Encode(m). opts.Style is ignored.
func (Binary) Generate(m *ir.Module, opts Options) (*Output, error) {
	eps, err := prepare("cir", m, opts)
	if err != nil {
		return nil, err
	}
	data, err := binary.Encode(m)
	if err != nil {
		return nil, err
	}
	return &Output{Data: data, EntryPoints: eps}, nil
}
