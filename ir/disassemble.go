package ir

import (
	"strconv"
	"strings"
)

// Style decorates tokens of the disassembly. Nil functions leave the token
// unchanged.
type Style struct {
	Comment  func(string) string
	Label    func(string) string
	Opcode   func(string) string
	Constant func(string) string
}

func apply(f func(string) string, s string) string {
	if f == nil {
		return s
	}
	return f(s)
}

// Disassembler renders a Module as text. Unnamed values are numbered %1,
// %2, ... and blocks %b1, %b2, ... in the order they are first printed.
type Disassembler struct {
	Style Style

	mod       *Module
	out       strings.Builder
	indent    int
	valueIDs  map[Value]string
	blockIDs  map[*Block]string
	ctrlIDs   map[ControlInstruction]string
	nextValue int
	nextBlock int
	ctrlCount map[string]int
}

// Disassemble returns the text form of m.
func Disassemble(m *Module) string {
	var d Disassembler
	return d.Disassemble(m)
}

// Disassemble returns the text form of m.
func (d *Disassembler) Disassemble(m *Module) string {
	d.mod = m
	d.out.Reset()
	d.indent = 0
	d.valueIDs = make(map[Value]string)
	d.blockIDs = make(map[*Block]string)
	d.ctrlIDs = make(map[ControlInstruction]string)
	d.ctrlCount = make(map[string]int)
	d.nextValue, d.nextBlock = 0, 0

	first := true
	sep := func() {
		if !first {
			d.out.WriteString("\n")
		}
		first = false
	}
	for _, s := range m.Types.Structs() {
		sep()
		d.emitStruct(s)
	}
	if m.HasRootBlock() && !m.root.IsEmpty() {
		sep()
		d.emitBlock(m.root, "root")
	}
	for _, fn := range m.functions {
		sep()
		d.emitFunction(fn)
	}
	return d.out.String()
}

func (d *Disassembler) line(s string) {
	d.out.WriteString(strings.Repeat("  ", d.indent))
	d.out.WriteString(s)
	d.out.WriteString("\n")
}

func (d *Disassembler) comment(s string) string {
	return apply(d.Style.Comment, "# "+s)
}

func (d *Disassembler) emitStruct(s *Struct) {
	header := s.Name + " = struct @align(" + strconv.FormatUint(uint64(s.Align()), 10) + ")"
	if s.Block {
		header += ", @block"
	}
	d.line(header + " {")
	d.indent++
	for _, m := range s.Members {
		l := m.Name + ":" + m.Type.String() + " @offset(" + strconv.FormatUint(uint64(m.Offset), 10) + ")"
		for _, a := range m.attributes.list() {
			l += ", " + a
		}
		d.line(l)
	}
	d.indent--
	d.line("}")
}

// blockID returns the label of b, assigning one if necessary.
func (d *Disassembler) blockID(b *Block) string {
	if id, ok := d.blockIDs[b]; ok {
		return id
	}
	d.nextBlock++
	id := apply(d.Style.Label, "%b"+strconv.Itoa(d.nextBlock))
	d.blockIDs[b] = id
	return id
}

func (d *Disassembler) valueID(v Value) string {
	if id, ok := d.valueIDs[v]; ok {
		return id
	}
	var id string
	if name := d.mod.NameOf(v); name != "" {
		id = "%" + name
	} else {
		d.nextValue++
		id = "%" + strconv.Itoa(d.nextValue)
	}
	d.valueIDs[v] = id
	return id
}

func (d *Disassembler) ctrlID(c ControlInstruction) string {
	if id, ok := d.ctrlIDs[c]; ok {
		return id
	}
	d.ctrlCount[c.Label()]++
	id := c.Label() + "_" + strconv.Itoa(d.ctrlCount[c.Label()])
	d.ctrlIDs[c] = id
	return id
}

// operand renders a reference to v.
func (d *Disassembler) operand(v Value) string {
	switch v := v.(type) {
	case nil:
		return "undef"
	case *Undef:
		return "undef"
	case *Constant:
		return apply(d.Style.Constant, v.value.String())
	}
	return d.valueID(v)
}

func (d *Disassembler) operands(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = d.operand(v)
	}
	return strings.Join(parts, ", ")
}

// declaration renders a value definition with its type.
func (d *Disassembler) declaration(v Value) string {
	return d.valueID(v) + ":" + v.Type().String()
}

func (d *Disassembler) results(inst Instruction) string {
	rs := inst.Results()
	if len(rs) == 0 {
		return ""
	}
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = d.declaration(r)
	}
	return strings.Join(parts, ", ") + " = "
}

func (d *Disassembler) emitFunction(fn *Function) {
	var sb strings.Builder
	sb.WriteString("%" + fn.name + " = ")
	if fn.Stage != StageNone {
		sb.WriteString("@" + fn.Stage.String() + " ")
	}
	if fn.WorkgroupSize != nil {
		ws := fn.WorkgroupSize
		sb.WriteString("@workgroup_size(" + strconv.FormatUint(uint64(ws[0]), 10) + ", " +
			strconv.FormatUint(uint64(ws[1]), 10) + ", " + strconv.FormatUint(uint64(ws[2]), 10) + ") ")
	}
	sb.WriteString("func(")
	for i, p := range fn.params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.declaration(p))
		attrs := p.Attributes.list()
		if p.BindingPoint != nil {
			attrs = append(attrs, p.BindingPoint.String())
		}
		if len(attrs) > 0 {
			sb.WriteString(" [" + strings.Join(attrs, ", ") + "]")
		}
	}
	sb.WriteString("):" + fn.returnType.String())
	if ra := fn.ReturnAttributes.list(); len(ra) > 0 {
		sb.WriteString(" [" + strings.Join(ra, ", ") + "]")
	}
	sb.WriteString(" -> " + d.blockID(fn.block) + " {")
	d.line(sb.String())
	d.indent++
	d.emitBlock(fn.block, "")
	d.indent--
	d.line("}")
}

func (d *Disassembler) emitBlock(b *Block, comment string) {
	header := d.blockID(b) + " = block"
	if len(b.params) > 0 {
		parts := make([]string, len(b.params))
		for i, p := range b.params {
			parts[i] = d.declaration(p)
		}
		header += " (" + strings.Join(parts, ", ") + ")"
	}
	header += " {"
	if comment != "" {
		header += "  " + d.comment(comment)
	}
	d.line(header)
	d.indent++
	for inst := b.Front(); inst != nil; inst = inst.Next() {
		d.emitInstruction(inst)
	}
	d.indent--
	d.line("}")
}

//nolint:gocyclo,cyclop // one case per instruction kind
func (d *Disassembler) emitInstruction(inst Instruction) {
	op := func(s string) string { return apply(d.Style.Opcode, s) }
	switch inst := inst.(type) {
	case *If:
		d.emitIf(inst)
	case *Loop:
		d.emitLoop(inst)
	case *Switch:
		d.emitSwitch(inst)
	case *Binary:
		d.line(d.results(inst) + op(inst.Op.String()) + " " + d.operands(inst.Operands()))
	case *Unary:
		d.line(d.results(inst) + op(inst.Op.String()) + " " + d.operands(inst.Operands()))
	case *Store:
		d.line(op("store") + " " + d.operands(inst.Operands()))
	case *StoreVectorElement:
		d.line(op("store_vector_element") + " " + d.operands(inst.Operands()))
	case *Var:
		l := d.results(inst) + op("var")
		if init := inst.Initializer(); init != nil {
			l += ", " + d.operand(init)
		}
		if inst.BindingPoint != nil {
			l += " " + inst.BindingPoint.String()
		}
		if attrs := inst.Attributes.list(); len(attrs) > 0 {
			l += " " + strings.Join(attrs, " ")
		}
		d.line(l)
	case *UserCall:
		l := d.results(inst) + op("call") + " %" + inst.target.name
		if len(inst.Args()) > 0 {
			l += ", " + d.operands(inst.Args())
		}
		d.line(l)
	case *Swizzle:
		comps := make([]byte, len(inst.Indices))
		for i, idx := range inst.Indices {
			comps[i] = "xyzw"[idx]
		}
		d.line(d.results(inst) + op("swizzle") + " " + d.operand(inst.Object()) + ", " + string(comps))
	case *Return:
		l := op("ret")
		if v := inst.Value(); v != nil {
			l += " " + d.operand(v)
		}
		d.line(l)
	case *ExitIf, *ExitLoop, *ExitSwitch:
		e := inst.(Exit)
		l := op(inst.FriendlyName())
		if len(e.Args()) > 0 {
			l += " " + d.operands(e.Args())
		}
		if c := e.ControlInstruction(); c != nil {
			l += "  " + d.comment(d.ctrlID(c))
		}
		d.line(l)
	case *Continue:
		l := op("continue")
		if len(inst.Args()) > 0 {
			l += " " + d.operands(inst.Args())
		}
		if inst.loop != nil {
			l += "  " + d.comment("-> "+d.blockID(inst.loop.continuing))
		}
		d.line(l)
	case *NextIteration:
		l := op("next_iteration")
		if len(inst.Args()) > 0 {
			l += " " + d.operands(inst.Args())
		}
		if inst.loop != nil {
			l += "  " + d.comment("-> "+d.blockID(inst.loop.body))
		}
		d.line(l)
	case *BreakIf:
		l := op("break_if") + " " + d.operand(inst.Condition())
		if next := inst.NextIterationValues(); len(next) > 0 {
			l += " next_iteration: [ " + d.operands(next) + " ]"
		}
		if exit := inst.ExitValues(); len(exit) > 0 {
			l += " exit_loop: [ " + d.operands(exit) + " ]"
		}
		if inst.loop != nil {
			l += "  " + d.comment("-> [t: exit_loop "+d.ctrlID(inst.loop)+", f: "+d.blockID(inst.loop.body)+"]")
		}
		d.line(l)
	case *Unreachable, *Discard:
		d.line(op(inst.FriendlyName()))
	default:
		l := d.results(inst) + op(inst.FriendlyName())
		if len(inst.Operands()) > 0 {
			l += " " + d.operands(inst.Operands())
		}
		d.line(l)
	}
}

func (d *Disassembler) emitIf(i *If) {
	targets := "t: " + d.blockID(i.trueBlock)
	if !i.falseBlock.IsEmpty() {
		targets += ", f: " + d.blockID(i.falseBlock)
	}
	d.line(d.results(i) + apply(d.Style.Opcode, "if") + " " + d.operand(i.Condition()) +
		" [" + targets + "] {  " + d.comment(d.ctrlID(i)))
	d.indent++
	d.emitBlock(i.trueBlock, "true")
	if !i.falseBlock.IsEmpty() {
		d.emitBlock(i.falseBlock, "false")
	} else if len(i.Results()) > 0 {
		undefs := make([]string, len(i.Results()))
		for n := range undefs {
			undefs[n] = "undef"
		}
		d.line(d.comment("implicit false block: exit_if " + strings.Join(undefs, ", ")))
	}
	d.indent--
	d.line("}")
}

func (d *Disassembler) emitLoop(l *Loop) {
	var targets []string
	if !l.initializer.IsEmpty() {
		targets = append(targets, "i: "+d.blockID(l.initializer))
	}
	targets = append(targets, "b: "+d.blockID(l.body))
	if !l.continuing.IsEmpty() {
		targets = append(targets, "c: "+d.blockID(l.continuing))
	}
	d.line(d.results(l) + apply(d.Style.Opcode, "loop") + " [" + strings.Join(targets, ", ") +
		"] {  " + d.comment(d.ctrlID(l)))
	d.indent++
	if !l.initializer.IsEmpty() {
		d.emitBlock(l.initializer, "initializer")
	}
	d.emitBlock(l.body, "body")
	if !l.continuing.IsEmpty() {
		d.emitBlock(l.continuing, "continuing")
	}
	d.indent--
	d.line("}")
}

func (d *Disassembler) emitSwitch(s *Switch) {
	cases := make([]string, len(s.cases))
	for i, c := range s.cases {
		sels := make([]string, len(c.Selectors))
		for j, sel := range c.Selectors {
			if sel.IsDefault() {
				sels[j] = "default"
			} else {
				sels[j] = d.operand(sel.Value)
			}
		}
		cases[i] = "c: (" + strings.Join(sels, " ") + ", " + d.blockID(c.Block) + ")"
	}
	d.line(d.results(s) + apply(d.Style.Opcode, "switch") + " " + d.operand(s.Condition()) +
		" [" + strings.Join(cases, ", ") + "] {  " + d.comment(d.ctrlID(s)))
	d.indent++
	for _, c := range s.cases {
		d.emitBlock(c.Block, "case")
	}
	d.indent--
	d.line("}")
}
