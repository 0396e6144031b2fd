package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// messages returns the messages of errs.
func messages(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Message
	}
	return out
}

func requireValid(t *testing.T, m *Module) {
	t.Helper()
	errs, err := Validate(m)
	require.NoError(t, err)
	require.Empty(t, messages(errs))
}

func requireInvalid(t *testing.T, m *Module, want string) {
	t.Helper()
	errs, err := Validate(m)
	require.NoError(t, err)
	for _, e := range errs {
		if strings.Contains(e.Message, want) {
			return
		}
	}
	t.Fatalf("expected an error containing %q, got %q", want, messages(errs))
}

// validModule builds a module with a root variable, a helper function and a
// compute entry point using an if with a result and a counted loop.
func validModule() *Module {
	m := NewModule()
	b := NewBuilder(m)
	ty := m.Types
	i32, u32, boolean := ty.I32(), ty.U32(), ty.Bool()

	var counter *Var
	b.With(b.RootBlock(), func() {
		counter = b.VarNamed("counter", ty.Ptr(AddressSpacePrivate, i32, AccessReadWrite), nil)
	})

	pick := b.Function("pick", i32, StageNone)
	cond := b.FunctionParam("cond", boolean)
	pick.SetParams(cond)
	b.With(pick.Block(), func() {
		i := b.If(cond)
		i.SetResults(b.InstructionResult(i32))
		b.With(i.True(), func() { b.ExitIf(i, b.I32(1)) })
		b.With(i.False(), func() { b.ExitIf(i, b.I32(2)) })
		b.Return(pick, i.Result())
	})

	main := b.ComputeFunction("main", 1, 1, 1)
	b.With(main.Block(), func() {
		l := b.Loop()
		idx := b.BlockParam("idx", u32)
		l.Body().SetParams(idx)
		b.With(l.Initializer(), func() { b.NextIteration(l, b.U32(0)) })
		b.With(l.Body(), func() {
			v := b.Call(i32, pick, b.Bool(true))
			b.Store(counter.Result(), v.Result())
			b.Continue(l)
		})
		b.With(l.Continuing(), func() {
			next := b.Add(u32, idx, b.U32(1))
			done := b.GreaterThanEqual(boolean, next.Result(), b.U32(4))
			b.BreakIf(l, done.Result(), []Value{next.Result()}, nil)
		})
		b.Return(main)
	})
	return m
}

func TestValidate_ValidModule(t *testing.T) {
	m := validModule()
	requireValid(t, m)
	// Validation is read-only and can be repeated.
	before := Disassemble(m)
	requireValid(t, m)
	assert.Equal(t, before, Disassemble(m))
	assert.NoError(t, Check(m))
}

func TestValidate_NilModule(t *testing.T) {
	_, err := Validate(nil)
	assert.Error(t, err)
}

func TestValidate_RootVarNotPointer(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	b.With(b.RootBlock(), func() {
		b.Var(m.Types.I32())
	})

	requireInvalid(t, m, "root block: 'var' type is not a pointer: i32")

	err := Check(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'var' type is not a pointer")
}

func TestValidate_RootInvalidInstruction(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	b.With(b.RootBlock(), func() {
		b.Let(b.I32(1))
	})
	requireInvalid(t, m, "root block: invalid instruction: let")
}

func TestValidate_MissingTerminator(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	fn := b.Function("f", m.Types.Void(), StageNone)
	b.With(fn.Block(), func() {
		b.Let(b.I32(1))
	})
	requireInvalid(t, m, "block: does not end in a terminator")
}

func TestValidate_EmptyFunction(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	b.Function("f", m.Types.Void(), StageNone)
	requireInvalid(t, m, "block: does not end in a terminator")
}

func TestValidate_TerminatorNotLast(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	fn := b.Function("f", m.Types.Void(), StageNone)
	b.With(fn.Block(), func() {
		b.Return(fn)
		b.Let(b.I32(1))
	})
	requireInvalid(t, m, "block: terminator which isn't the final instruction")
}

func TestValidate_ReturnChecks(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	f := b.Function("f", m.Types.I32(), StageNone)
	g := b.Function("g", m.Types.Void(), StageNone)
	b.With(f.Block(), func() { b.Return(f) })
	b.With(g.Block(), func() { b.Return(f, b.I32(1)) })

	requireInvalid(t, m, "return: expected a value")
	requireInvalid(t, m, "return: wrong function")
}

func TestValidate_ExitArityMismatch(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	fn := b.Function("f", m.Types.Void(), StageNone)
	b.With(fn.Block(), func() {
		i := b.If(b.Bool(true))
		i.SetResults(b.InstructionResult(m.Types.I32()))
		b.With(i.True(), func() { b.ExitIf(i) })
		b.Return(fn)
	})
	requireInvalid(t, m, "exit_if: arity mismatch: got 0 arguments, expected 1")
}

func TestValidate_ExitTypeMismatch(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	fn := b.Function("f", m.Types.Void(), StageNone)
	b.With(fn.Block(), func() {
		i := b.If(b.Bool(true))
		i.SetResults(b.InstructionResult(m.Types.I32()))
		b.With(i.True(), func() { b.ExitIf(i, b.U32(1)) })
		b.Return(fn)
	})
	requireInvalid(t, m, "exit_if: argument 0 has type u32, expected i32")
}

func TestValidate_ExitOutOfScope(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	fn := b.Function("f", m.Types.Void(), StageNone)
	b.With(fn.Block(), func() {
		outer := b.If(b.Bool(true))
		b.With(outer.True(), func() {
			inner := b.If(b.Bool(false))
			b.With(inner.True(), func() { b.ExitIf(outer) })
			b.ExitIf(outer)
		})
		b.Return(fn)
	})
	requireInvalid(t, m, "exit_if: target is not the enclosing if")
}

func TestValidate_OperandNotInScope(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	i32 := m.Types.I32()
	fn := b.Function("f", i32, StageNone)
	b.With(fn.Block(), func() {
		i := b.If(b.Bool(true))
		var inner *Binary
		b.With(i.True(), func() {
			inner = b.Add(i32, b.I32(1), b.I32(2))
			b.ExitIf(i)
		})
		b.Return(fn, inner.Result())
	})
	requireInvalid(t, m, "operand 0 is not in scope")
}

func TestValidate_DestroyedOperand(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	i32 := m.Types.I32()
	fn := b.Function("f", i32, StageNone)
	var add *Binary
	b.With(fn.Block(), func() {
		add = b.Add(i32, b.I32(1), b.I32(2))
		b.Return(fn, add.Result())
	})
	requireValid(t, m)

	// Destroying an instruction whose result is still used leaves the user
	// with a dead operand.
	add.Destroy()
	requireInvalid(t, m, "operand 0 is not alive")
}

func TestValidate_LoopBranchPlacement(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	fn := b.Function("f", m.Types.Void(), StageNone)
	b.With(fn.Block(), func() {
		l := b.Loop()
		b.With(l.Body(), func() { b.NextIteration(l) })
		b.With(l.Continuing(), func() { b.Continue(l) })
		b.Return(fn)
	})
	requireInvalid(t, m, "next_iteration: not in the initializer or continuing block of its loop")
	requireInvalid(t, m, "continue: not in the body of its loop")
}

func TestValidate_SwitchNeedsDefault(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	fn := b.Function("f", m.Types.Void(), StageNone)
	b.With(fn.Block(), func() {
		s := b.Switch(b.I32(0))
		b.With(b.Case(s, b.I32(1)), func() { b.ExitSwitch(s) })
		b.Return(fn)
	})
	requireInvalid(t, m, "switch: no default case")
}

func TestValidate_ForeignType(t *testing.T) {
	m := NewModule()
	other := NewTypeManager()
	b := NewBuilder(m)
	fn := b.Function("f", m.Types.Void(), StageNone)
	b.With(fn.Block(), func() {
		b.Let(b.Undef(other.F32()))
		b.Return(fn)
	})
	requireInvalid(t, m, "type is not owned by the module: f32")
}

func TestValidate_CallArity(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	i32 := m.Types.I32()
	callee := b.Function("callee", m.Types.Void(), StageNone)
	callee.SetParams(b.FunctionParam("a", i32))
	b.With(callee.Block(), func() { b.Return(callee) })
	caller := b.Function("caller", m.Types.Void(), StageNone)
	b.With(caller.Block(), func() {
		b.Call(m.Types.Void(), callee)
		b.Return(caller)
	})
	requireInvalid(t, m, "call: got 0 arguments, expected 1")
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		err  ValidationError
		want string
	}{
		{ValidationError{Message: "m"}, "m"},
		{ValidationError{Message: "m", Function: "f"}, "in function f: m"},
		{ValidationError{Message: "m", Function: "f", Instruction: "load"}, "in function f, load: m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestValidate_ReferenceVarNeedsCapability(t *testing.T) {
	m := NewModule()
	b := NewBuilder(m)
	ty := m.Types
	fn := b.Function("f", ty.Void(), StageNone)
	b.With(fn.Block(), func() {
		b.Var(ty.Ref(AddressSpaceFunction, ty.I32(), AccessReadWrite))
		b.Return(fn)
	})
	requireInvalid(t, m, "var: type is not a pointer: ref<function, i32, read_write>")

	m.Capabilities |= AllowRefTypes
	requireValid(t, m)
}
