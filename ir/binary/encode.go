package binary

import (
	"github.com/golang/snappy"

	"github.com/gogpu/coreir/ir"
)

// Encode serializes m. Types and constants are written in the order the
// module's managers created them, so Decode can rebuild them in one pass.
func Encode(m *ir.Module) (out []byte, err error) {
	defer ir.Recover(&err)
	if m == nil {
		return nil, ir.NewICE("binary: encoding a nil module")
	}
	e := &encoder{
		m:      m,
		types:  make(map[ir.Type]uint64),
		consts: make(map[ir.ConstValue]uint64),
		values: make(map[ir.Value]uint64),
		ctrls:  make(map[ir.ControlInstruction]uint64),
		fns:    make(map[*ir.Function]uint64),
	}
	raw := e.module()
	out = append([]byte(Magic), snappy.Encode(nil, raw)...)
	return out, nil
}

type encoder struct {
	m      *ir.Module
	types  map[ir.Type]uint64
	consts map[ir.ConstValue]uint64
	values map[ir.Value]uint64
	ctrls  map[ir.ControlInstruction]uint64
	fns    map[*ir.Function]uint64
}

func (e *encoder) module() []byte {
	var b []byte
	for i, t := range e.m.Types.All() {
		e.types[t] = uint64(i)
		b = appendBytes(b, moduleTypes, e.typ(t))
	}
	for i, c := range e.m.Constants.All() {
		e.consts[c] = uint64(i)
		b = appendBytes(b, moduleConstants, e.constant(c))
	}
	for i, fn := range e.m.Functions() {
		e.fns[fn] = uint64(i)
	}
	if caps := e.m.Capabilities; caps != 0 {
		b = appendVarint(b, moduleCapabilities, uint64(caps))
	}
	if e.m.HasRootBlock() {
		b = appendBytes(b, moduleRoot, e.block(e.m.RootBlock()))
	}
	for _, fn := range e.m.Functions() {
		b = appendBytes(b, moduleFunctions, e.function(fn))
	}
	return b
}

func (e *encoder) typeRef(t ir.Type) uint64 {
	id, ok := e.types[t]
	if !ok {
		ir.Panicf("binary: type %s is not owned by the module", t)
	}
	return id
}

func (e *encoder) typ(t ir.Type) []byte {
	var kind typeKindCode
	var args []uint64
	var b []byte
	switch t := t.(type) {
	case *ir.Void:
		kind = kindVoid
	case *ir.Scalar:
		kind, args = kindScalar, []uint64{uint64(t.Kind)}
	case *ir.Vector:
		kind, args = kindVector, []uint64{e.typeRef(t.Elem), uint64(t.Width)}
	case *ir.Matrix:
		kind, args = kindMatrix, []uint64{uint64(t.Columns), uint64(t.Rows), e.typeRef(t.Elem)}
	case *ir.Array:
		kind, args = kindArray, []uint64{e.typeRef(t.Elem), uint64(t.Count)}
	case *ir.Struct:
		kind = kindStruct
		if t.Block {
			args = []uint64{1}
		}
		b = appendString(b, typeName, t.Name)
		for _, mem := range t.Members {
			var mb []byte
			mb = appendString(mb, memberName, mem.Name)
			mb = appendVarint(mb, memberType, e.typeRef(mem.Type))
			if a := mem.Attributes(); !a.Empty() {
				mb = appendBytes(mb, memberAttrs, attributes(a))
			}
			b = appendBytes(b, typeMembers, mb)
		}
	case *ir.Pointer:
		kind, args = kindPointer, []uint64{uint64(t.Space), e.typeRef(t.StoreType), uint64(t.Access)}
	case *ir.Reference:
		kind, args = kindReference, []uint64{uint64(t.Space), e.typeRef(t.StoreType), uint64(t.Access)}
	case *ir.Atomic:
		kind, args = kindAtomic, []uint64{e.typeRef(t.Elem)}
	case *ir.Sampler:
		kind = kindSampler
		if t.Comparison {
			args = []uint64{1}
		}
	case *ir.SampledTexture:
		kind, args = kindSampledTexture, []uint64{uint64(t.Dim), e.typeRef(t.Sampled)}
	case *ir.StorageTexture:
		kind, args = kindStorageTexture, []uint64{uint64(t.Dim), uint64(t.Access)}
		b = appendString(b, typeFormat, t.Format)
	case *ir.Tuple:
		kind = kindTuple
		for _, el := range t.Elems {
			args = append(args, e.typeRef(el))
		}
	default:
		ir.Panicf("binary: unhandled type %T", t)
	}
	out := appendVarint(nil, typeKind, uint64(kind))
	out = appendPacked(out, typeArgs, args)
	return append(out, b...)
}

func attributes(a ir.IOAttributes) []byte {
	var b []byte
	if a.Location != nil {
		b = appendVarint(b, attrLocation, uint64(*a.Location))
	}
	if a.Index != nil {
		b = appendVarint(b, attrIndex, uint64(*a.Index))
	}
	if a.Builtin != nil {
		b = appendVarint(b, attrBuiltin, uint64(*a.Builtin))
	}
	if a.Interpolation != nil {
		b = appendBool(b, attrHasInterp, true)
		b = appendVarint(b, attrInterpKind, uint64(a.Interpolation.Kind))
		b = appendVarint(b, attrInterpSamp, uint64(a.Interpolation.Sampling))
	}
	return appendBool(b, attrInvariant, a.Invariant)
}

func (e *encoder) constRef(c ir.ConstValue) uint64 {
	id, ok := e.consts[c]
	if !ok {
		ir.Panicf("binary: constant %s is not owned by the module", c)
	}
	return id
}

func (e *encoder) constant(c ir.ConstValue) []byte {
	var b []byte
	switch c := c.(type) {
	case *ir.ScalarValue:
		b = appendVarint(b, constKind, uint64(constScalar))
		b = appendVarint(b, constType, e.typeRef(c.Type()))
		b = appendVarint(b, constBits, c.Bits())
	case *ir.Splat:
		b = appendVarint(b, constKind, uint64(constSplat))
		b = appendVarint(b, constType, e.typeRef(c.Type()))
		b = appendPacked(b, constElems, []uint64{e.constRef(c.Elem)})
		b = appendVarint(b, constCount, uint64(c.Count))
	case *ir.Composite:
		b = appendVarint(b, constKind, uint64(constComposite))
		b = appendVarint(b, constType, e.typeRef(c.Type()))
		elems := make([]uint64, len(c.Elems))
		for i, el := range c.Elems {
			elems[i] = e.constRef(el)
		}
		b = appendPacked(b, constElems, elems)
	default:
		ir.Panicf("binary: unhandled constant %T", c)
	}
	return b
}

// define assigns the next value id to v and returns its definition.
func (e *encoder) define(v ir.Value, attrs ir.IOAttributes, bp *ir.BindingPoint) []byte {
	e.values[v] = uint64(len(e.values))
	var b []byte
	b = appendVarint(b, valueType, e.typeRef(v.Type()))
	if name := e.m.NameOf(v); name != "" {
		b = appendString(b, valueName, name)
	}
	if !attrs.Empty() {
		b = appendBytes(b, valueAttrs, attributes(attrs))
	}
	if bp != nil {
		b = appendPacked(b, valueBinding, []uint64{uint64(bp.Group), uint64(bp.Binding)})
	}
	return b
}

func (e *encoder) operand(v ir.Value) uint64 {
	switch v := v.(type) {
	case nil:
		return packOperand(operandNil, 0)
	case *ir.Constant:
		return packOperand(operandConstant, e.constRef(v.Value()))
	case *ir.Undef:
		return packOperand(operandUndef, e.typeRef(v.Type()))
	}
	id, ok := e.values[v]
	if !ok {
		ir.Panicf("binary: operand %T is used before it is defined", v)
	}
	return packOperand(operandValue, id)
}

func (e *encoder) function(fn *ir.Function) []byte {
	var b []byte
	b = appendString(b, fnName, fn.Name())
	b = appendVarint(b, fnReturnType, e.typeRef(fn.ReturnType()))
	if fn.Stage != ir.StageNone {
		b = appendVarint(b, fnStage, uint64(fn.Stage))
	}
	if ws := fn.WorkgroupSize; ws != nil {
		b = appendPacked(b, fnWorkgroupSize, []uint64{uint64(ws[0]), uint64(ws[1]), uint64(ws[2])})
	}
	if !fn.ReturnAttributes.Empty() {
		b = appendBytes(b, fnReturnAttrs, attributes(fn.ReturnAttributes))
	}
	for _, p := range fn.Params() {
		b = appendBytes(b, fnParams, e.define(p, p.Attributes, p.BindingPoint))
	}
	return appendBytes(b, fnBlock, e.block(fn.Block()))
}

func (e *encoder) block(blk *ir.Block) []byte {
	var b []byte
	for _, p := range blk.Params() {
		b = appendBytes(b, blockParams, e.define(p, ir.IOAttributes{}, nil))
	}
	for _, inst := range blk.Instructions() {
		b = appendBytes(b, blockInstructions, e.instruction(inst))
	}
	return b
}

func (e *encoder) ctrlRef(c ir.ControlInstruction) uint64 {
	id, ok := e.ctrls[c]
	if !ok {
		ir.Panicf("binary: branch to a control instruction outside its scope")
	}
	return id
}

func (e *encoder) fnRef(fn *ir.Function) uint64 {
	id, ok := e.fns[fn]
	if !ok {
		ir.Panicf("binary: reference to a function that is not in the module")
	}
	return id
}

//nolint:gocyclo,cyclop // one case per instruction kind
func (e *encoder) instruction(inst ir.Instruction) []byte {
	var b []byte
	op := func(code opcode) { b = appendVarint(b, instOp, uint64(code)) }
	sub := func(v uint64) { b = appendVarint(b, instSubOp, v) }
	target := func(v uint64) { b = appendVarint(b, instTarget, v) }

	switch inst := inst.(type) {
	case *ir.Binary:
		op(opBinary)
		sub(uint64(inst.Op))
	case *ir.Unary:
		op(opUnary)
		sub(uint64(inst.Op))
	case *ir.Load:
		op(opLoad)
	case *ir.Store:
		op(opStore)
	case *ir.LoadVectorElement:
		op(opLoadVectorElement)
	case *ir.StoreVectorElement:
		op(opStoreVectorElement)
	case *ir.Access:
		op(opAccess)
	case *ir.Var:
		op(opVar)
		if bp := inst.BindingPoint; bp != nil {
			b = appendPacked(b, instBinding, []uint64{uint64(bp.Group), uint64(bp.Binding)})
		}
		if !inst.Attributes.Empty() {
			b = appendBytes(b, instAttrs, attributes(inst.Attributes))
		}
	case *ir.Let:
		op(opLet)
	case *ir.UserCall:
		op(opUserCall)
		target(e.fnRef(inst.Target()))
	case *ir.BuiltinCall:
		op(opBuiltinCall)
		sub(uint64(inst.Func))
	case *ir.Convert:
		op(opConvert)
	case *ir.Construct:
		op(opConstruct)
	case *ir.Bitcast:
		op(opBitcast)
	case *ir.Swizzle:
		op(opSwizzle)
		idx := make([]uint64, len(inst.Indices))
		for i, x := range inst.Indices {
			idx[i] = uint64(x)
		}
		b = appendPacked(b, instIndices, idx)
	case *ir.Discard:
		op(opDiscard)
	case *ir.If:
		op(opIf)
	case *ir.Loop:
		op(opLoop)
	case *ir.Switch:
		op(opSwitch)
	case *ir.Return:
		op(opReturn)
		target(e.fnRef(inst.Func()))
	case *ir.ExitIf:
		op(opExitIf)
		target(e.ctrlRef(inst.ControlInstruction()))
	case *ir.ExitLoop:
		op(opExitLoop)
		target(e.ctrlRef(inst.ControlInstruction()))
	case *ir.ExitSwitch:
		op(opExitSwitch)
		target(e.ctrlRef(inst.ControlInstruction()))
	case *ir.Continue:
		op(opContinue)
		target(e.ctrlRef(inst.Loop()))
	case *ir.NextIteration:
		op(opNextIteration)
		target(e.ctrlRef(inst.Loop()))
	case *ir.BreakIf:
		op(opBreakIf)
		target(e.ctrlRef(inst.Loop()))
		b = appendVarint(b, instNumNext, uint64(len(inst.NextIterationValues())))
	case *ir.Unreachable:
		op(opUnreachable)
	default:
		ir.Panicf("binary: unhandled instruction %s", inst.FriendlyName())
	}

	ops := make([]uint64, len(inst.Operands()))
	for i, v := range inst.Operands() {
		ops[i] = e.operand(v)
	}
	b = appendPacked(b, instOperands, ops)

	// Results are defined before the blocks of a control instruction so
	// that ids follow the order in which Decode creates values.
	for _, r := range inst.Results() {
		b = appendBytes(b, instResults, e.define(r, ir.IOAttributes{}, nil))
	}

	if ctrl, ok := inst.(ir.ControlInstruction); ok {
		e.ctrls[ctrl] = uint64(len(e.ctrls))
		if sw, isSwitch := ctrl.(*ir.Switch); isSwitch {
			for _, c := range sw.Cases() {
				b = appendBytes(b, instCases, e.switchCase(c))
			}
		} else {
			for _, blk := range ctrl.Blocks() {
				b = appendBytes(b, instBlocks, e.block(blk))
			}
		}
	}
	return b
}

func (e *encoder) switchCase(c *ir.Case) []byte {
	sels := make([]uint64, len(c.Selectors))
	for i, s := range c.Selectors {
		if !s.IsDefault() {
			sels[i] = e.constRef(s.Value.Value()) + 1
		}
	}
	var b []byte
	// A lone default selector encodes as a single zero.
	b = appendPacked(b, caseSelectors, sels)
	return appendBytes(b, caseBlock, e.block(c.Block))
}
