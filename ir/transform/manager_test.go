package transform

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/coreir/ir"
)

// recordingPass appends its name to a shared log when run.
func recordingPass(name string, log *[]string, fail error) Transform {
	return &pass{name: name, run: func(*ir.Module, *DataMap, *DataMap) error {
		*log = append(*log, name)
		return fail
	}}
}

func emptyFunctionModule() *ir.Module {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	fn := b.Function("f", m.Types.Void(), ir.StageNone)
	b.With(fn.Block(), func() { b.Return(fn) })
	return m
}

func TestManager_RunsInOrder(t *testing.T) {
	var ran []string
	mgr := NewManager(recordingPass("a", &ran, nil), recordingPass("b", &ran, nil))
	mgr.Add(recordingPass("c", &ran, nil))

	require.NoError(t, mgr.Run(emptyFunctionModule(), nil, nil))
	assert.Equal(t, []string{"a", "b", "c"}, ran)
}

func TestManager_StopsAtFirstFailure(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	mgr := NewManager(
		recordingPass("a", &ran, nil),
		recordingPass("b", &ran, boom),
		recordingPass("c", &ran, nil),
	)

	err := mgr.Run(emptyFunctionModule(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "b: boom", err.Error())
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestManager_ICEFromPanic(t *testing.T) {
	panicking := &pass{name: "explode", run: func(*ir.Module, *DataMap, *DataMap) error {
		ir.Panicf("broken invariant")
		return nil
	}}

	err := NewManager(panicking).Run(emptyFunctionModule(), nil, nil)
	require.Error(t, err)
	var ice *ir.ICE
	require.True(t, errors.As(err, &ice))
	assert.Equal(t, "explode", ice.Transform)
	assert.Equal(t, "broken invariant", ice.Message)
}

func TestManager_ValidatesInput(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	b.Function("f", m.Types.Void(), ir.StageNone) // no terminator

	var ran []string
	mgr := &Manager{Validate: true, Passes: []Transform{recordingPass("noop", &ran, nil)}}
	err := mgr.Run(m, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "noop: input")
	var ice *ir.ICE
	require.True(t, errors.As(err, &ice))
	assert.Equal(t, "noop", ice.Transform)
	assert.Empty(t, ran, "a pass must not run on invalid input")
}

func TestManager_ValidatesOutput(t *testing.T) {
	breaking := &pass{name: "breaker", run: func(m *ir.Module, _, _ *DataMap) error {
		fn := m.Functions()[0]
		fn.Block().Terminator().Destroy()
		return nil
	}}

	mgr := &Manager{Validate: true, Passes: []Transform{breaking}}
	err := mgr.Run(emptyFunctionModule(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "breaker: output")
}

func TestManager_NilModule(t *testing.T) {
	assert.Error(t, NewManager().Run(nil, nil, nil))
}

func TestManager_Logs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mgr := &Manager{Logger: logger, Passes: []Transform{ValueToLetPass}}

	require.NoError(t, mgr.Run(emptyFunctionModule(), nil, nil))
	out := buf.String()
	assert.Contains(t, out, "Running transform")
	assert.Contains(t, out, "Finished transform")
	assert.Contains(t, out, "pass=value_to_let")
}

// Every registered pass leaves a valid module valid.
func TestAllPasses_KeepModulesValid(t *testing.T) {
	inputs := NewDataMap()
	Add(inputs, ShaderIOConfig{Backend: BackendSPIRV})
	r := DefaultRegistry()
	for _, name := range r.Names() {
		t.Run(name, func(t *testing.T) {
			p, _ := r.Lookup(name)
			runPass(t, validShaderModule(), p, inputs)
		})
	}
}

// validShaderModule builds a compute shader touching workgroup and storage
// memory through a helper, with dynamic indices, shifts and early returns.
func validShaderModule() *ir.Module {
	f := newFixture()
	i32, u32 := f.ty.I32(), f.ty.U32()
	arr := f.ty.Array(i32, 4)
	wg := f.global("wg", ir.AddressSpaceWorkgroup, arr)
	buf := f.global("buf", ir.AddressSpaceStorage, arr)
	elemPtr := f.ptr(ir.AddressSpaceStorage, i32)

	write := f.b.Function("write", f.ty.Void(), ir.StageNone)
	p := f.b.FunctionParam("p", elemPtr)
	v := f.b.FunctionParam("v", i32)
	write.SetParams(p, v)
	f.b.With(write.Block(), func() {
		neg := f.b.Not(f.ty.Bool(), f.b.Equal(f.ty.Bool(), v, f.b.I32(0)).Result())
		i := f.b.If(neg.Result())
		f.b.With(i.True(), func() {
			f.b.Store(p, v)
			f.b.Return(write)
		})
		f.b.Return(write)
	})

	main := f.b.ComputeFunction("main", 4, 1, 1)
	idx := f.b.FunctionParam("idx", u32)
	idx.Attributes = ir.Builtin(ir.BuiltinLocalInvocationIndex)
	main.SetParams(idx)
	f.b.With(main.Block(), func() {
		wgElem := f.b.Access(f.ptr(ir.AddressSpaceWorkgroup, i32), wg.Result(), idx)
		loaded := f.b.Load(wgElem.Result())
		shifted := f.b.Binary(ir.BinaryShiftLeft, i32, loaded.Result(), idx)
		dst := f.b.Access(elemPtr, buf.Result(), idx)
		f.b.Call(f.ty.Void(), write, dst.Result(), shifted.Result())
		f.b.Return(main)
	})
	return f.m
}
