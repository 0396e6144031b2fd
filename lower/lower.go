// Package lower converts a resolved program into an IR module.
//
// Lowering walks the declarations of a program.Program in order and emits
// them through an ir.Builder:
//
//   - structs become interned ir.Struct types;
//   - module-scope variables become pointer-typed vars in the root block;
//   - functions become ir.Functions whose bodies use structured control
//     flow, with every block ending in a terminator.
//
// Memory is addressed through pointers only, so a module produced here never
// needs the AllowRefTypes capability. Loads are emitted where a memory
// expression is used as a value, and access chains are folded into a single
// access instruction.
//
// User errors, such as an unsupported enable directive, are returned as
// program.Diagnostics. A construct the lowerer does not know is an internal
// compiler error.
package lower

import (
	"fmt"

	mapset "github.com/deckarep/golang-set"

	"github.com/gogpu/coreir/ir"
	"github.com/gogpu/coreir/program"
)

// supportedExtensions lists the enable directives a program may carry.
var supportedExtensions = mapset.NewSet("f16", "dual_source_blending")

// symbol is a name in scope.
type symbol struct {
	value ir.Value
	// memory is set for variables, whose value is a pointer to their
	// storage.
	memory bool
}

// lowerer holds the state of one BuildFromProgram call.
type lowerer struct {
	prog *program.Program
	mod  *ir.Module
	b    *ir.Builder

	structs map[*program.Struct]*ir.Struct
	fns     map[string]*ir.Function

	scopes []map[string]symbol

	// Current function context
	fn     *ir.Function
	frames []*frame
}

// BuildFromProgram lowers prog to a new module.
func BuildFromProgram(prog *program.Program) (m *ir.Module, err error) {
	if prog == nil {
		return nil, fmt.Errorf("lower: %w", ir.NewICE("nil program"))
	}
	if diags := checkEnables(prog); diags.HasErrors() {
		return nil, diags
	}

	defer ir.Recover(&err)

	mod := ir.NewModule()
	l := &lowerer{
		prog:    prog,
		mod:     mod,
		b:       ir.NewBuilder(mod),
		structs: make(map[*program.Struct]*ir.Struct, len(prog.Structs)),
		fns:     make(map[string]*ir.Function, len(prog.Functions)),
	}
	l.pushScope()
	for _, s := range prog.Structs {
		l.lowerStruct(s)
	}
	for _, g := range prog.Globals {
		l.lowerGlobal(g)
	}
	// Create every function before lowering bodies so that call targets
	// resolve regardless of order.
	shells := make([]*ir.Function, len(prog.Functions))
	for i, f := range prog.Functions {
		shells[i] = l.declareFunction(f)
	}
	for i, f := range prog.Functions {
		l.lowerFunction(f, shells[i])
	}
	l.popScope()
	return mod, nil
}

func checkEnables(prog *program.Program) program.Diagnostics {
	var diags program.Diagnostics
	for _, e := range prog.Enables {
		if !supportedExtensions.Contains(e.Extension) {
			diags.Addf(e.Span, prog.Source, "extension '%s' is not supported", e.Extension)
		}
	}
	return diags
}

func (l *lowerer) pushScope() {
	l.scopes = append(l.scopes, make(map[string]symbol))
}

func (l *lowerer) popScope() {
	l.scopes = l.scopes[:len(l.scopes)-1]
}

func (l *lowerer) declare(name string, sym symbol) {
	l.scopes[len(l.scopes)-1][name] = sym
}

func (l *lowerer) lookup(name string) symbol {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if sym, ok := l.scopes[i][name]; ok {
			return sym
		}
	}
	ir.Panicf("lower: unresolved identifier %q", name)
	return symbol{}
}

func (l *lowerer) lowerStruct(s *program.Struct) {
	members := make([]ir.StructMemberDesc, len(s.Members))
	for i, m := range s.Members {
		members[i] = ir.StructMemberDesc{
			Name:       m.Name,
			Type:       l.typ(m.Type),
			Attributes: l.ioAttributes(m.Attributes),
		}
	}
	l.structs[s] = l.mod.Types.Struct(s.Name, members)
}

func (l *lowerer) lowerGlobal(g *program.Global) {
	space := addressSpace(g.Space)
	store := l.typ(g.Type)
	var init ir.Value
	if g.Init != nil {
		cv, ok := l.constant(g.Init)
		if !ok {
			ir.Panicf("lower: initializer of %q is not a constant expression", g.Name)
		}
		init = l.b.Constant(cv)
	}

	var v *ir.Var
	l.b.With(l.b.RootBlock(), func() {
		v = l.b.VarNamed(g.Name, l.mod.Types.Ptr(space, store, accessMode(space, g.Access)), init)
	})
	if g.Attributes.Group != nil && g.Attributes.Binding != nil {
		v.BindingPoint = &ir.BindingPoint{Group: *g.Attributes.Group, Binding: *g.Attributes.Binding}
	}
	v.Attributes = l.ioAttributes(g.Attributes)
	l.declare(g.Name, symbol{value: v.Result(), memory: true})
}

func (l *lowerer) declareFunction(f *program.Function) *ir.Function {
	ret := ir.Type(l.mod.Types.Void())
	if f.Return != nil {
		ret = l.typ(f.Return)
	}
	fn := l.b.Function(f.Name, ret, stage(f.Stage))
	if f.Stage == program.StageCompute {
		ws := f.WorkgroupSize
		fn.WorkgroupSize = &ws
	}
	fn.ReturnAttributes = l.ioAttributes(f.ReturnAttributes)

	params := make([]*ir.FunctionParam, len(f.Params))
	for i, p := range f.Params {
		params[i] = l.b.FunctionParam(p.Name, l.typ(p.Type))
		params[i].Attributes = l.ioAttributes(p.Attributes)
	}
	fn.SetParams(params...)
	l.fns[f.Name] = fn
	return fn
}

func (l *lowerer) lowerFunction(f *program.Function, fn *ir.Function) {
	l.fn = fn
	l.frames = l.frames[:0]
	defer func() { l.fn = nil }()

	l.pushScope()
	defer l.popScope()
	for i, p := range f.Params {
		l.declare(p.Name, symbol{value: fn.Params()[i]})
	}

	l.b.With(fn.Block(), func() {
		if f.Body != nil {
			l.lowerStatements(f.Body.Stmts)
		}
		if l.open() {
			if _, void := fn.ReturnType().(*ir.Void); void {
				l.b.Return(fn)
			} else {
				l.b.Unreachable()
			}
		}
	})
}

// typ returns the interned IR type for t.
//
//nolint:gocyclo,cyclop // one case per type kind
func (l *lowerer) typ(t program.Type) ir.Type {
	ty := l.mod.Types
	switch t := t.(type) {
	case *program.Scalar:
		return ty.Scalar(scalarKind(t))
	case *program.Vector:
		return ty.Vec(ty.Scalar(scalarKind(t.Elem)), t.Width)
	case *program.Matrix:
		return ty.Mat(t.Columns, t.Rows, ty.Scalar(scalarKind(t.Elem)))
	case *program.Array:
		return ty.Array(l.typ(t.Elem), t.Count)
	case *program.Atomic:
		return ty.Atomic(ty.Scalar(scalarKind(t.Elem)))
	case *program.Pointer:
		space := addressSpace(t.Space)
		return ty.Ptr(space, l.typ(t.Elem), accessMode(space, t.Access))
	case *program.Sampler:
		return ty.Sampler(t.Comparison)
	case *program.Texture:
		return ty.SampledTexture(textureDimension(t.Dim), ty.Scalar(scalarKind(t.Sampled)))
	case *program.StorageTexture:
		return ty.StorageTexture(textureDimension(t.Dim), t.Format, accessMode(ir.AddressSpaceHandle, t.Access))
	case *program.Struct:
		s, ok := l.structs[t]
		if !ok {
			ir.Panicf("lower: struct %s used before its declaration", t.Name)
		}
		return s
	case nil:
		ir.Panicf("lower: missing type")
	}
	ir.Panicf("lower: unhandled type %T", t)
	return nil
}

func scalarKind(s *program.Scalar) ir.ScalarKind {
	switch s.Kind {
	case program.Bool:
		return ir.ScalarBool
	case program.I32:
		return ir.ScalarI32
	case program.U32:
		return ir.ScalarU32
	case program.F32:
		return ir.ScalarF32
	case program.F16:
		return ir.ScalarF16
	}
	ir.Panicf("lower: unhandled scalar kind %d", s.Kind)
	return 0
}

func addressSpace(s program.AddressSpace) ir.AddressSpace {
	switch s {
	case program.SpaceFunction:
		return ir.AddressSpaceFunction
	case program.SpacePrivate:
		return ir.AddressSpacePrivate
	case program.SpaceWorkgroup:
		return ir.AddressSpaceWorkgroup
	case program.SpaceUniform:
		return ir.AddressSpaceUniform
	case program.SpaceStorage:
		return ir.AddressSpaceStorage
	case program.SpaceHandle:
		return ir.AddressSpaceHandle
	}
	ir.Panicf("lower: unhandled address space %q", s)
	return ir.AddressSpaceUndefined
}

// accessMode resolves a possibly defaulted access mode for space.
func accessMode(space ir.AddressSpace, a program.AccessMode) ir.AccessMode {
	switch a {
	case program.AccessRead:
		return ir.AccessRead
	case program.AccessWrite:
		return ir.AccessWrite
	case program.AccessReadWrite:
		return ir.AccessReadWrite
	case program.AccessDefault:
		switch space {
		case ir.AddressSpaceUniform, ir.AddressSpaceStorage, ir.AddressSpaceHandle:
			return ir.AccessRead
		}
		return ir.AccessReadWrite
	}
	ir.Panicf("lower: unhandled access mode %q", a)
	return ir.AccessUndefined
}

func stage(s program.Stage) ir.PipelineStage {
	switch s {
	case program.StageNone:
		return ir.StageNone
	case program.StageCompute:
		return ir.StageCompute
	case program.StageVertex:
		return ir.StageVertex
	case program.StageFragment:
		return ir.StageFragment
	}
	ir.Panicf("lower: unhandled pipeline stage %q", s)
	return ir.StageNone
}

func textureDimension(dim string) ir.TextureDimension {
	for d := ir.Texture1D; d <= ir.TextureCubeArray; d++ {
		if d.String() == dim {
			return d
		}
	}
	ir.Panicf("lower: unhandled texture dimension %q", dim)
	return 0
}

func (l *lowerer) ioAttributes(a program.Attributes) ir.IOAttributes {
	out := ir.IOAttributes{
		Location:  a.Location,
		Index:     a.Index,
		Invariant: a.Invariant,
	}
	if a.Builtin != "" {
		bv, ok := ir.BuiltinValueByName(a.Builtin)
		if !ok {
			ir.Panicf("lower: unknown builtin value %q", a.Builtin)
		}
		out.Builtin = &bv
	}
	if a.Interpolate != "" {
		interp := interpolation(a.Interpolate, a.Sampling)
		out.Interpolation = &interp
	}
	return out
}

func interpolation(kind, sampling string) ir.Interpolation {
	var interp ir.Interpolation
	switch kind {
	case "perspective":
		interp.Kind = ir.InterpolationPerspective
	case "linear":
		interp.Kind = ir.InterpolationLinear
	case "flat":
		interp.Kind = ir.InterpolationFlat
	default:
		ir.Panicf("lower: unknown interpolation type %q", kind)
	}
	switch sampling {
	case "":
		interp.Sampling = ir.SamplingNone
	case "center":
		interp.Sampling = ir.SamplingCenter
	case "centroid":
		interp.Sampling = ir.SamplingCentroid
	case "sample":
		interp.Sampling = ir.SamplingSample
	default:
		ir.Panicf("lower: unknown interpolation sampling %q", sampling)
	}
	return interp
}
