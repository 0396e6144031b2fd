package binary

import (
	"testing"

	"github.com/golang/snappy"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/coreir/ir"
)

// sampleModule exercises every type kind, constant kind and instruction kind
// that the encoder knows about.
func sampleModule() *ir.Module {
	m := ir.NewModule()
	m.Capabilities = ir.AllowRefTypes
	b := ir.NewBuilder(m)
	ty := m.Types
	f32, i32, u32, boolT := ty.F32(), ty.I32(), ty.U32(), ty.Bool()
	vec4 := ty.Vec(f32, 4)
	vec2 := ty.Vec(f32, 2)

	out := ty.Struct("VertexOut", []ir.StructMemberDesc{
		{Name: "pos", Type: vec4, Attributes: ir.Builtin(ir.BuiltinPosition)},
		{Name: "uv", Type: vec2, Attributes: ir.IOAttributes{
			Location:      ir.Location(0).Location,
			Interpolation: &ir.Interpolation{Kind: ir.InterpolationLinear, Sampling: ir.SamplingCentroid},
		}},
	})
	buf := ty.Struct("Buf", []ir.StructMemberDesc{
		{Name: "count", Type: ty.Atomic(u32)},
		{Name: "data", Type: ty.RuntimeArray(u32)},
	})
	buf.Block = true
	ty.Mat(4, 4, f32)
	ty.Sampler(true)
	ty.SampledTexture(ir.Texture2D, f32)
	ty.StorageTexture(ir.Texture2DArray, "rgba8unorm", ir.AccessWrite)

	var storage, private *ir.Var
	b.With(b.RootBlock(), func() {
		storage = b.VarNamed("buf", ty.Ptr(ir.AddressSpaceStorage, buf, ir.AccessReadWrite), nil)
		storage.BindingPoint = &ir.BindingPoint{Group: 1, Binding: 2}
		private = b.VarNamed("weights", ty.Ptr(ir.AddressSpacePrivate, vec4, ir.AccessReadWrite),
			b.Constant(m.Constants.Composite(vec4, []ir.ConstValue{
				m.Constants.F32(1), m.Constants.F32(2), m.Constants.F32(3), m.Constants.F32(4),
			})))
	})

	helper := b.Function("sum", i32, ir.StageNone)
	limit := b.FunctionParam("limit", i32)
	helper.SetParams(limit)
	b.With(helper.Block(), func() {
		l := b.Loop()
		b.With(l.Initializer(), func() { b.NextIteration(l, b.I32(0)) })
		i := b.BlockParam("i", i32)
		l.Body().SetParams(i)
		b.With(l.Body(), func() {
			sw := b.Switch(i)
			b.With(b.Case(sw, b.I32(1), b.I32(3)), func() { b.ExitSwitch(sw) })
			b.With(b.Case(sw, nil), func() { b.ExitSwitch(sw) })
			b.Continue(l)
		})
		b.With(l.Continuing(), func() {
			next := b.Add(i32, i, b.I32(1))
			done := b.Equal(boolT, next.Result(), limit)
			b.BreakIf(l, done.Result(), []ir.Value{next.Result()}, nil)
		})
		pick := b.If(b.LessThan(boolT, limit, b.I32(0)).Result())
		pick.SetResults(b.InstructionResult(i32))
		b.With(pick.True(), func() { b.ExitIf(pick, b.I32(-1)) })
		b.With(pick.False(), func() { b.ExitIf(pick, limit) })
		b.Return(helper, pick.Result())
	})

	vs := b.Function("vs", out, ir.StageVertex)
	vi := b.FunctionParam("vi", u32)
	vi.Attributes = ir.Builtin(ir.BuiltinVertexIndex)
	vs.SetParams(vi)
	b.With(vs.Block(), func() {
		w := b.Load(private.Result())
		x := b.LoadVectorElement(private.Result(), b.U32(0))
		b.StoreVectorElement(private.Result(), b.U32(1), x.Result())
		uv := b.Swizzle(vec2, w.Result(), 0, 1)
		fi := b.Convert(f32, vi)
		bits := b.Bitcast(u32, fi.Result())
		cnt := b.Access(ty.Ptr(ir.AddressSpaceStorage, ty.Atomic(u32), ir.AccessReadWrite), storage.Result(), b.U32(0))
		b.CallBuiltin(u32, ir.BuiltinAtomicAdd, cnt.Result(), bits.Result())
		n := b.Call(i32, helper, b.Undef(i32))
		neg := b.Negation(i32, n.Result())
		b.Let(neg.Result())
		res := b.Construct(out, w.Result(), uv.Result())
		b.Return(vs, res.Result())
	})

	fs := b.Function("fs", vec4, ir.StageFragment)
	fs.ReturnAttributes = ir.Location(0)
	uv := b.FunctionParam("uv", vec2)
	uv.Attributes = ir.Location(0)
	fs.SetParams(uv)
	b.With(fs.Block(), func() {
		local := b.VarNamed("c", ty.Ptr(ir.AddressSpaceFunction, vec4, ir.AccessReadWrite), b.Zero(vec4))
		b.Store(local.Result(), b.Constant(m.Constants.Splat(vec4, m.Constants.F32(0.5), 4)))
		kill := b.If(b.Bool(false))
		b.With(kill.True(), func() {
			b.Discard()
			b.ExitIf(kill)
		})
		b.With(kill.False(), func() { b.ExitIf(kill) })
		b.Return(fs, b.Load(local.Result()).Result())
	})

	cs := b.ComputeFunction("main", 8, 4, 1)
	b.With(cs.Block(), func() { b.Unreachable() })
	return m
}

func TestRoundTrip(t *testing.T) {
	m := sampleModule()
	data, err := Encode(m)
	require.NoError(t, err)
	assert.Equal(t, Magic, string(data[:len(Magic)]))

	got, err := Decode(data)
	require.NoError(t, err)
	if diff := cmp.Diff(ir.Disassemble(m), ir.Disassemble(got)); diff != "" {
		t.Errorf("round trip changed the module (-want +got):\n%s", diff)
	}
	assert.Equal(t, m.Capabilities, got.Capabilities)

	main := got.FunctionByName("main")
	require.NotNil(t, main)
	assert.Equal(t, &[3]uint32{8, 4, 1}, main.WorkgroupSize)
	assert.Equal(t, ir.StageCompute, main.Stage)

	buf, ok := got.Types.StructByName("Buf")
	require.True(t, ok)
	assert.True(t, buf.Block)
	vo, ok := got.Types.StructByName("VertexOut")
	require.True(t, ok)
	require.NotNil(t, vo.Members[1].Attributes().Interpolation)
	assert.Equal(t, ir.SamplingCentroid, vo.Members[1].Attributes().Interpolation.Sampling)
}

func TestRoundTrip_Stable(t *testing.T) {
	first, err := Encode(sampleModule())
	require.NoError(t, err)
	m, err := Decode(first)
	require.NoError(t, err)
	second, err := Encode(m)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRoundTrip_EmptyModule(t *testing.T) {
	data, err := Encode(ir.NewModule())
	require.NoError(t, err)
	m, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, m.Functions())
	assert.False(t, m.HasRootBlock())
}

func TestEncode_Errors(t *testing.T) {
	_, err := Encode(nil)
	assert.Error(t, err)

	m := ir.NewModule()
	foreign := ir.NewModule().Types
	b := ir.NewBuilder(m)
	b.With(b.RootBlock(), func() {
		b.Var(foreign.Ptr(ir.AddressSpacePrivate, foreign.F32(), ir.AccessReadWrite))
	})
	_, err = Encode(m)
	require.Error(t, err)
	assert.True(t, ir.IsICE(err))
	assert.Contains(t, err.Error(), "not owned by the module")
}

func TestDecode_BadMagic(t *testing.T) {
	_, err := Decode([]byte("SPV\x03"))
	assert.ErrorIs(t, err, ErrBadMagic)
	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestDecode_NotSnappy(t *testing.T) {
	_, err := Decode(append([]byte(Magic), 0xff, 0xff, 0xff, 0xff, 0xff))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt module")
}

// blob wraps a hand-built module message.
func blob(raw []byte) []byte {
	return append([]byte(Magic), snappy.Encode(nil, raw)...)
}

// returningFunction builds a void function whose only instruction is inst.
func returningFunction(inst []byte) []byte {
	raw := appendBytes(nil, moduleTypes, appendVarint(nil, typeKind, uint64(kindVoid)))
	fn := appendString(nil, fnName, "f")
	fn = appendVarint(fn, fnReturnType, 0)
	fn = appendBytes(fn, fnBlock, appendBytes(nil, blockInstructions, inst))
	return appendBytes(raw, moduleFunctions, fn)
}

func TestDecode_Corrupt(t *testing.T) {
	ret := appendVarint(nil, instOp, uint64(opReturn))

	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{
			name: "truncated",
			raw:  []byte{0x0a, 0x05, 0x01},
			want: "corrupt module",
		},
		{
			name: "unknown opcode",
			raw:  returningFunction(appendVarint(nil, instOp, 200)),
			want: "unknown opcode 200",
		},
		{
			name: "undefined value",
			raw: returningFunction(appendPacked(ret, instOperands,
				[]uint64{packOperand(operandValue, 99)})),
			want: "value 99 used before its definition",
		},
		{
			name: "missing type arguments",
			raw:  appendBytes(nil, moduleTypes, appendVarint(appendVarint(nil, typeKind, uint64(kindArray)), typeArgs, 0)),
			want: "arguments",
		},
		{
			name: "function out of range",
			raw:  returningFunction(appendVarint(ret, instTarget, 7)),
			want: "function 7 out of range",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode(blob(tt.raw))
			require.Error(t, err)
			assert.Nil(t, m)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
