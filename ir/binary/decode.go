package binary

import (
	"bytes"

	"github.com/golang/snappy"

	"github.com/gogpu/coreir/ir"
)

// Decode rebuilds a module from a blob produced by Encode. Malformed input
// yields an error; the module is only returned when decoding succeeded.
func Decode(data []byte) (m *ir.Module, err error) {
	if !bytes.HasPrefix(data, []byte(Magic)) {
		return nil, ErrBadMagic
	}
	raw, err := snappy.Decode(nil, data[len(Magic):])
	if err != nil {
		return nil, corrupt("%v", err)
	}
	defer ir.Recover(&err)

	d := &decoder{m: ir.NewModule()}
	d.b = ir.NewBuilder(d.m)
	if err := d.module(raw); err != nil {
		return nil, err
	}
	return d.m, nil
}

type decoder struct {
	m      *ir.Module
	b      *ir.Builder
	types  []ir.Type
	consts []ir.ConstValue
	values []ir.Value
	ctrls  []ir.ControlInstruction
	fns    []*ir.Function
}

type fnMsg struct {
	name     string
	ret      uint64
	stage    uint64
	wgSize   []uint64
	retAttrs []byte
	params   [][]byte
	block    []byte
}

func (d *decoder) module(raw []byte) error {
	var (
		typeMsgs, constMsgs, fnMsgs [][]byte
		root                        []byte
		hasRoot                     bool
	)
	err := fields(raw, func(f field) error {
		switch f.num {
		case moduleTypes:
			typeMsgs = append(typeMsgs, f.b)
		case moduleConstants:
			constMsgs = append(constMsgs, f.b)
		case moduleRoot:
			root, hasRoot = f.b, true
		case moduleFunctions:
			fnMsgs = append(fnMsgs, f.b)
		case moduleCapabilities:
			d.m.Capabilities = ir.Capabilities(f.v)
		}
		return nil
	})
	if err != nil {
		return corrupt("%v", err)
	}

	for _, msg := range typeMsgs {
		t, err := d.typ(msg)
		if err != nil {
			return err
		}
		d.types = append(d.types, t)
	}
	for _, msg := range constMsgs {
		c, err := d.constant(msg)
		if err != nil {
			return err
		}
		d.consts = append(d.consts, c)
	}

	parsed := make([]fnMsg, len(fnMsgs))
	for i, msg := range fnMsgs {
		if err := parseFunction(msg, &parsed[i]); err != nil {
			return err
		}
		if err := d.functionShell(&parsed[i]); err != nil {
			return err
		}
	}
	if hasRoot {
		if err := d.block(root, d.m.RootBlock()); err != nil {
			return err
		}
	}
	for i := range parsed {
		if err := d.functionBody(d.fns[i], &parsed[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) typeAt(i uint64) (ir.Type, error) {
	if i >= uint64(len(d.types)) {
		return nil, corrupt("type %d out of range", i)
	}
	return d.types[i], nil
}

func (d *decoder) scalarAt(i uint64) (*ir.Scalar, error) {
	t, err := d.typeAt(i)
	if err != nil {
		return nil, err
	}
	s, ok := t.(*ir.Scalar)
	if !ok {
		return nil, corrupt("type %d is %s, expected a scalar", i, t)
	}
	return s, nil
}

func (d *decoder) constAt(i uint64) (ir.ConstValue, error) {
	if i >= uint64(len(d.consts)) {
		return nil, corrupt("constant %d out of range", i)
	}
	return d.consts[i], nil
}

func (d *decoder) fnAt(i uint64) (*ir.Function, error) {
	if i >= uint64(len(d.fns)) {
		return nil, corrupt("function %d out of range", i)
	}
	return d.fns[i], nil
}

//nolint:gocyclo,cyclop // one case per type kind
func (d *decoder) typ(msg []byte) (ir.Type, error) {
	var (
		kind         uint64
		args         []uint64
		name, format string
		members      [][]byte
	)
	err := fields(msg, func(f field) (err error) {
		switch f.num {
		case typeKind:
			kind = f.v
		case typeArgs:
			args, err = packed(f.b)
		case typeName:
			name = string(f.b)
		case typeMembers:
			members = append(members, f.b)
		case typeFormat:
			format = string(f.b)
		}
		return err
	})
	if err != nil {
		return nil, corrupt("type: %v", err)
	}
	need := func(n int) error {
		if len(args) < n {
			return corrupt("type kind %d has %d arguments, expected %d", kind, len(args), n)
		}
		return nil
	}
	flag := len(args) > 0 && args[0] != 0
	T := d.m.Types

	switch typeKindCode(kind) {
	case kindVoid:
		return T.Void(), nil
	case kindScalar:
		if err := need(1); err != nil {
			return nil, err
		}
		return T.Scalar(ir.ScalarKind(args[0])), nil
	case kindVector:
		if err := need(2); err != nil {
			return nil, err
		}
		elem, err := d.scalarAt(args[0])
		if err != nil {
			return nil, err
		}
		return T.Vec(elem, uint32(args[1])), nil
	case kindMatrix:
		if err := need(3); err != nil {
			return nil, err
		}
		elem, err := d.scalarAt(args[2])
		if err != nil {
			return nil, err
		}
		return T.Mat(uint32(args[0]), uint32(args[1]), elem), nil
	case kindArray:
		if err := need(2); err != nil {
			return nil, err
		}
		elem, err := d.typeAt(args[0])
		if err != nil {
			return nil, err
		}
		return T.Array(elem, uint32(args[1])), nil
	case kindStruct:
		descs := make([]ir.StructMemberDesc, len(members))
		for i, mm := range members {
			if err := d.member(mm, &descs[i]); err != nil {
				return nil, err
			}
		}
		s := T.Struct(name, descs)
		s.Block = flag
		return s, nil
	case kindPointer, kindReference:
		if err := need(3); err != nil {
			return nil, err
		}
		store, err := d.typeAt(args[1])
		if err != nil {
			return nil, err
		}
		space, access := ir.AddressSpace(args[0]), ir.AccessMode(args[2])
		if typeKindCode(kind) == kindPointer {
			return T.Ptr(space, store, access), nil
		}
		return T.Ref(space, store, access), nil
	case kindAtomic:
		if err := need(1); err != nil {
			return nil, err
		}
		elem, err := d.scalarAt(args[0])
		if err != nil {
			return nil, err
		}
		return T.Atomic(elem), nil
	case kindSampler:
		return T.Sampler(flag), nil
	case kindSampledTexture:
		if err := need(2); err != nil {
			return nil, err
		}
		sampled, err := d.scalarAt(args[1])
		if err != nil {
			return nil, err
		}
		return T.SampledTexture(ir.TextureDimension(args[0]), sampled), nil
	case kindStorageTexture:
		if err := need(2); err != nil {
			return nil, err
		}
		return T.StorageTexture(ir.TextureDimension(args[0]), format, ir.AccessMode(args[1])), nil
	case kindTuple:
		elems := make([]ir.Type, len(args))
		for i, a := range args {
			el, err := d.typeAt(a)
			if err != nil {
				return nil, err
			}
			elems[i] = el
		}
		return T.Tuple(elems...), nil
	}
	return nil, corrupt("unknown type kind %d", kind)
}

func (d *decoder) member(msg []byte, desc *ir.StructMemberDesc) error {
	var typeIdx uint64
	var attrs []byte
	err := fields(msg, func(f field) error {
		switch f.num {
		case memberName:
			desc.Name = string(f.b)
		case memberType:
			typeIdx = f.v
		case memberAttrs:
			attrs = f.b
		}
		return nil
	})
	if err != nil {
		return corrupt("struct member: %v", err)
	}
	if desc.Type, err = d.typeAt(typeIdx); err != nil {
		return err
	}
	desc.Attributes, err = decodeAttributes(attrs)
	return err
}

func decodeAttributes(msg []byte) (ir.IOAttributes, error) {
	var a ir.IOAttributes
	var interp ir.Interpolation
	hasInterp := false
	err := fields(msg, func(f field) error {
		v := f.v
		switch f.num {
		case attrLocation:
			loc := uint32(v)
			a.Location = &loc
		case attrIndex:
			idx := uint32(v)
			a.Index = &idx
		case attrBuiltin:
			bv := ir.BuiltinValue(v)
			a.Builtin = &bv
		case attrHasInterp:
			hasInterp = v != 0
		case attrInterpKind:
			interp.Kind = ir.InterpolationKind(v)
		case attrInterpSamp:
			interp.Sampling = ir.InterpolationSampling(v)
		case attrInvariant:
			a.Invariant = v != 0
		}
		return nil
	})
	if err != nil {
		return a, corrupt("attributes: %v", err)
	}
	if hasInterp {
		a.Interpolation = &interp
	}
	return a, nil
}

func (d *decoder) constant(msg []byte) (ir.ConstValue, error) {
	var (
		kind, typeIdx, bits, count uint64
		elems                      []uint64
	)
	err := fields(msg, func(f field) (err error) {
		switch f.num {
		case constKind:
			kind = f.v
		case constType:
			typeIdx = f.v
		case constBits:
			bits = f.v
		case constElems:
			elems, err = packed(f.b)
		case constCount:
			count = f.v
		}
		return err
	})
	if err != nil {
		return nil, corrupt("constant: %v", err)
	}
	t, err := d.typeAt(typeIdx)
	if err != nil {
		return nil, err
	}
	vals := make([]ir.ConstValue, len(elems))
	for i, e := range elems {
		if vals[i], err = d.constAt(e); err != nil {
			return nil, err
		}
	}

	C := d.m.Constants
	switch constKindCode(kind) {
	case constScalar:
		s, ok := t.(*ir.Scalar)
		if !ok {
			return nil, corrupt("scalar constant of type %s", t)
		}
		return C.ScalarFromBits(s, bits), nil
	case constSplat:
		if len(vals) != 1 {
			return nil, corrupt("splat with %d elements", len(vals))
		}
		return C.Splat(t, vals[0], int(count)), nil
	case constComposite:
		return C.Composite(t, vals), nil
	}
	return nil, corrupt("unknown constant kind %d", kind)
}

type valueDef struct {
	typ     ir.Type
	name    string
	attrs   ir.IOAttributes
	binding *ir.BindingPoint
}

func (d *decoder) valueDef(msg []byte) (valueDef, error) {
	var (
		def     valueDef
		typeIdx uint64
		attrs   []byte
		binding []uint64
	)
	err := fields(msg, func(f field) (err error) {
		switch f.num {
		case valueType:
			typeIdx = f.v
		case valueName:
			def.name = string(f.b)
		case valueAttrs:
			attrs = f.b
		case valueBinding:
			binding, err = packed(f.b)
		}
		return err
	})
	if err != nil {
		return def, corrupt("value: %v", err)
	}
	if def.typ, err = d.typeAt(typeIdx); err != nil {
		return def, err
	}
	if def.attrs, err = decodeAttributes(attrs); err != nil {
		return def, err
	}
	if binding != nil {
		if def.binding, err = bindingPoint(binding); err != nil {
			return def, err
		}
	}
	return def, nil
}

func bindingPoint(v []uint64) (*ir.BindingPoint, error) {
	if len(v) != 2 {
		return nil, corrupt("binding point with %d components", len(v))
	}
	return &ir.BindingPoint{Group: uint32(v[0]), Binding: uint32(v[1])}, nil
}

func (d *decoder) define(v ir.Value, name string) {
	d.values = append(d.values, v)
	if name != "" {
		d.m.SetName(v, name)
	}
}

func (d *decoder) operand(v uint64) (ir.Value, error) {
	kind, idx := unpackOperand(v)
	switch kind {
	case operandNil:
		return nil, nil
	case operandValue:
		if idx >= uint64(len(d.values)) {
			return nil, corrupt("value %d used before its definition", idx)
		}
		return d.values[idx], nil
	case operandConstant:
		c, err := d.constAt(idx)
		if err != nil {
			return nil, err
		}
		return d.b.Constant(c), nil
	default:
		t, err := d.typeAt(idx)
		if err != nil {
			return nil, err
		}
		return d.b.Undef(t), nil
	}
}

func parseFunction(msg []byte, fm *fnMsg) error {
	err := fields(msg, func(f field) (err error) {
		switch f.num {
		case fnName:
			fm.name = string(f.b)
		case fnReturnType:
			fm.ret = f.v
		case fnStage:
			fm.stage = f.v
		case fnWorkgroupSize:
			fm.wgSize, err = packed(f.b)
		case fnReturnAttrs:
			fm.retAttrs = f.b
		case fnParams:
			fm.params = append(fm.params, f.b)
		case fnBlock:
			fm.block = f.b
		}
		return err
	})
	if err != nil {
		return corrupt("function: %v", err)
	}
	return nil
}

func (d *decoder) functionShell(fm *fnMsg) error {
	ret, err := d.typeAt(fm.ret)
	if err != nil {
		return err
	}
	fn := d.b.Function(fm.name, ret, ir.PipelineStage(fm.stage))
	if fm.wgSize != nil {
		if len(fm.wgSize) != 3 {
			return corrupt("function %s: workgroup size with %d components", fm.name, len(fm.wgSize))
		}
		fn.WorkgroupSize = &[3]uint32{uint32(fm.wgSize[0]), uint32(fm.wgSize[1]), uint32(fm.wgSize[2])}
	}
	if fn.ReturnAttributes, err = decodeAttributes(fm.retAttrs); err != nil {
		return err
	}
	d.fns = append(d.fns, fn)
	return nil
}

func (d *decoder) functionBody(fn *ir.Function, fm *fnMsg) error {
	params := make([]*ir.FunctionParam, len(fm.params))
	for i, msg := range fm.params {
		def, err := d.valueDef(msg)
		if err != nil {
			return err
		}
		p := d.b.FunctionParam("", def.typ)
		p.Attributes = def.attrs
		p.BindingPoint = def.binding
		d.define(p, def.name)
		params[i] = p
	}
	fn.SetParams(params...)
	return d.block(fm.block, fn.Block())
}

func (d *decoder) block(msg []byte, blk *ir.Block) error {
	var params, insts [][]byte
	err := fields(msg, func(f field) error {
		switch f.num {
		case blockParams:
			params = append(params, f.b)
		case blockInstructions:
			insts = append(insts, f.b)
		}
		return nil
	})
	if err != nil {
		return corrupt("block: %v", err)
	}

	if len(params) > 0 {
		bps := make([]*ir.BlockParam, len(params))
		for i, msg := range params {
			def, err := d.valueDef(msg)
			if err != nil {
				return err
			}
			bps[i] = d.b.BlockParam("", def.typ)
			d.define(bps[i], def.name)
		}
		blk.SetParams(bps...)
	}

	for _, msg := range insts {
		d.b.With(blk, func() { err = d.instruction(msg) })
		if err != nil {
			return err
		}
	}
	return nil
}

type instMsg struct {
	op, subOp, target, numNext uint64
	results, blocks, cases     [][]byte
	operands, indices, binding []uint64
	attrs                      []byte
}

func parseInstruction(msg []byte) (*instMsg, error) {
	im := &instMsg{}
	err := fields(msg, func(f field) (err error) {
		switch f.num {
		case instOp:
			im.op = f.v
		case instResults:
			im.results = append(im.results, f.b)
		case instOperands:
			im.operands, err = packed(f.b)
		case instSubOp:
			im.subOp = f.v
		case instTarget:
			im.target = f.v
		case instIndices:
			im.indices, err = packed(f.b)
		case instBlocks:
			im.blocks = append(im.blocks, f.b)
		case instCases:
			im.cases = append(im.cases, f.b)
		case instBinding:
			im.binding, err = packed(f.b)
		case instAttrs:
			im.attrs = f.b
		case instNumNext:
			im.numNext = f.v
		}
		return err
	})
	if err != nil {
		return nil, corrupt("instruction: %v", err)
	}
	return im, nil
}

func (d *decoder) ctrlAt(i uint64) (ir.ControlInstruction, error) {
	if i >= uint64(len(d.ctrls)) {
		return nil, corrupt("control instruction %d out of range", i)
	}
	return d.ctrls[i], nil
}

func ctrlAs[T ir.ControlInstruction](d *decoder, i uint64) (T, error) {
	var zero T
	c, err := d.ctrlAt(i)
	if err != nil {
		return zero, err
	}
	t, ok := c.(T)
	if !ok {
		return zero, corrupt("branch to %s has the wrong target kind", c.FriendlyName())
	}
	return t, nil
}

//nolint:gocyclo,cyclop,funlen // one case per opcode
func (d *decoder) instruction(msg []byte) error {
	im, err := parseInstruction(msg)
	if err != nil {
		return err
	}
	ops := make([]ir.Value, len(im.operands))
	for i, o := range im.operands {
		if ops[i], err = d.operand(o); err != nil {
			return err
		}
	}
	defs := make([]valueDef, len(im.results))
	for i, r := range im.results {
		if defs[i], err = d.valueDef(r); err != nil {
			return err
		}
	}
	var rt ir.Type
	if len(defs) > 0 {
		rt = defs[0].typ
	}
	need := func(n int) error {
		if len(ops) < n {
			return corrupt("opcode %d has %d operands, expected %d", im.op, len(ops), n)
		}
		return nil
	}
	if err := need(minOperands(opcode(im.op))); err != nil {
		return err
	}

	b := d.b
	var inst ir.Instruction
	switch opcode(im.op) {
	case opBinary:
		inst = b.Binary(ir.BinaryOp(im.subOp), rt, ops[0], ops[1])
	case opUnary:
		inst = b.Unary(ir.UnaryOp(im.subOp), rt, ops[0])
	case opLoad:
		inst = b.Load(ops[0])
	case opStore:
		inst = b.Store(ops[0], ops[1])
	case opLoadVectorElement:
		inst = b.LoadVectorElement(ops[0], ops[1])
	case opStoreVectorElement:
		inst = b.StoreVectorElement(ops[0], ops[1], ops[2])
	case opAccess:
		inst = b.Access(rt, ops[0], ops[1:]...)
	case opVar:
		v := b.Var(rt)
		if ops[0] != nil {
			v.SetInitializer(ops[0])
		}
		if im.binding != nil {
			if v.BindingPoint, err = bindingPoint(im.binding); err != nil {
				return err
			}
		}
		if v.Attributes, err = decodeAttributes(im.attrs); err != nil {
			return err
		}
		inst = v
	case opLet:
		inst = b.Let(ops[0])
	case opUserCall:
		fn, err := d.fnAt(im.target)
		if err != nil {
			return err
		}
		inst = b.Call(rt, fn, ops...)
	case opBuiltinCall:
		inst = b.CallBuiltin(rt, ir.BuiltinFn(im.subOp), ops...)
	case opConvert:
		inst = b.Convert(rt, ops[0])
	case opConstruct:
		inst = b.Construct(rt, ops...)
	case opBitcast:
		inst = b.Bitcast(rt, ops[0])
	case opSwizzle:
		idx := make([]uint32, len(im.indices))
		for i, x := range im.indices {
			idx[i] = uint32(x)
		}
		inst = b.Swizzle(rt, ops[0], idx...)
	case opDiscard:
		inst = b.Discard()
	case opIf:
		inst = b.If(ops[0])
	case opLoop:
		inst = b.Loop()
	case opSwitch:
		inst = b.Switch(ops[0])
	case opReturn:
		fn, err := d.fnAt(im.target)
		if err != nil {
			return err
		}
		inst = b.Return(fn, ops...)
	case opExitIf:
		c, err := ctrlAs[*ir.If](d, im.target)
		if err != nil {
			return err
		}
		inst = b.ExitIf(c, ops...)
	case opExitLoop:
		c, err := ctrlAs[*ir.Loop](d, im.target)
		if err != nil {
			return err
		}
		inst = b.ExitLoop(c, ops...)
	case opExitSwitch:
		c, err := ctrlAs[*ir.Switch](d, im.target)
		if err != nil {
			return err
		}
		inst = b.ExitSwitch(c, ops...)
	case opContinue:
		c, err := ctrlAs[*ir.Loop](d, im.target)
		if err != nil {
			return err
		}
		inst = b.Continue(c, ops...)
	case opNextIteration:
		c, err := ctrlAs[*ir.Loop](d, im.target)
		if err != nil {
			return err
		}
		inst = b.NextIteration(c, ops...)
	case opBreakIf:
		c, err := ctrlAs[*ir.Loop](d, im.target)
		if err != nil {
			return err
		}
		n := int(im.numNext)
		if 1+n > len(ops) {
			return corrupt("break_if with %d next-iteration values and %d operands", n, len(ops))
		}
		inst = b.BreakIf(c, ops[0], ops[1:1+n], ops[1+n:])
	case opUnreachable:
		inst = b.Unreachable()
	default:
		return corrupt("unknown opcode %d", im.op)
	}

	if err := d.results(inst, defs); err != nil {
		return err
	}

	ctrl, ok := inst.(ir.ControlInstruction)
	if !ok {
		return nil
	}
	d.ctrls = append(d.ctrls, ctrl)
	switch ctrl := ctrl.(type) {
	case *ir.If:
		if len(im.blocks) != 2 {
			return corrupt("if with %d blocks", len(im.blocks))
		}
		if err := d.block(im.blocks[0], ctrl.True()); err != nil {
			return err
		}
		return d.block(im.blocks[1], ctrl.False())
	case *ir.Loop:
		if len(im.blocks) != 3 {
			return corrupt("loop with %d blocks", len(im.blocks))
		}
		for i, blk := range ctrl.Blocks() {
			if err := d.block(im.blocks[i], blk); err != nil {
				return err
			}
		}
	case *ir.Switch:
		for _, c := range im.cases {
			if err := d.switchCase(ctrl, c); err != nil {
				return err
			}
		}
	}
	return nil
}

func minOperands(op opcode) int {
	switch op {
	case opBinary, opStore, opLoadVectorElement:
		return 2
	case opStoreVectorElement:
		return 3
	case opUnary, opLoad, opAccess, opVar, opLet, opConvert, opBitcast, opSwizzle,
		opIf, opSwitch, opBreakIf:
		return 1
	}
	return 0
}

// results attaches the decoded result definitions to inst. Control
// instructions get fresh results; other instructions already carry the
// result the builder made, whose type is corrected to the encoded one.
func (d *decoder) results(inst ir.Instruction, defs []valueDef) error {
	if _, ok := inst.(ir.ControlInstruction); ok {
		rs := make([]*ir.InstructionResult, len(defs))
		for i, def := range defs {
			rs[i] = d.b.InstructionResult(def.typ)
		}
		if len(rs) > 0 {
			inst.SetResults(rs...)
		}
	}
	rs := inst.Results()
	if len(rs) != len(defs) {
		return corrupt("%s with %d results, expected %d", inst.FriendlyName(), len(defs), len(rs))
	}
	for i, r := range rs {
		if r.Type() != defs[i].typ {
			r.SetType(defs[i].typ)
		}
		d.define(r, defs[i].name)
	}
	return nil
}

func (d *decoder) switchCase(sw *ir.Switch, msg []byte) error {
	var sels []uint64
	var body []byte
	err := fields(msg, func(f field) (err error) {
		switch f.num {
		case caseSelectors:
			sels, err = packed(f.b)
		case caseBlock:
			body = f.b
		}
		return err
	})
	if err != nil {
		return corrupt("case: %v", err)
	}
	selectors := make([]*ir.Constant, len(sels))
	for i, s := range sels {
		if s == 0 {
			continue
		}
		c, err := d.constAt(s - 1)
		if err != nil {
			return err
		}
		selectors[i] = d.b.Constant(c)
	}
	return d.block(body, d.b.Case(sw, selectors...))
}
