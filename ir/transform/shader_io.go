package transform

import (
	"fmt"
	"strconv"

	"github.com/gogpu/coreir/ir"
)

// ShaderIOBackend names the target whose shader IO conventions ShaderIO
// applies.
type ShaderIOBackend string

// BackendSPIRV passes shader IO through block structs in the in and out
// address spaces.
const BackendSPIRV ShaderIOBackend = "spirv"

// ShaderIOConfig configures ShaderIO.
type ShaderIOConfig struct {
	Backend ShaderIOBackend
}

// ShaderIOResult lists, per entry point, the module-scope variables that
// ShaderIO created for it.
type ShaderIOResult struct {
	EntryPoints map[string][]string
}

// ShaderIOPass runs ShaderIO with the ShaderIOConfig of the inputs and adds
// a ShaderIOResult to the outputs. The config is required.
var ShaderIOPass = register(&pass{name: "shader_io", run: func(m *ir.Module, inputs, outputs *DataMap) error {
	cfg, ok := Get[ShaderIOConfig](inputs)
	if !ok {
		return fmt.Errorf("missing ShaderIOConfig")
	}
	res, err := ShaderIO(m, cfg)
	if err != nil {
		return err
	}
	if outputs != nil {
		Add(outputs, res)
	}
	return nil
}})

// ShaderIO moves the parameters and return value of each entry point into
// module-scope variables. The entry point is renamed with an _inner suffix
// and loses its stage. A new entry point with the original name loads the
// inputs, calls the inner function and stores its result to the outputs.
// IO attributes are removed from the struct members that carried them.
func ShaderIO(m *ir.Module, cfg ShaderIOConfig) (res ShaderIOResult, err error) {
	defer ir.Recover(&err)
	if cfg.Backend != BackendSPIRV {
		return res, fmt.Errorf("unsupported shader IO backend %q", cfg.Backend)
	}

	// Only the members that carried IO before the pass are stripped; the
	// generated IO structs keep theirs.
	var strip []*ir.StructMember
	for _, s := range m.Types.Structs() {
		for _, mem := range s.Members {
			a := mem.Attributes()
			if a.Builtin != nil || a.Location != nil {
				strip = append(strip, mem)
			}
		}
	}

	res.EntryPoints = make(map[string][]string)
	b := ir.NewBuilder(m)
	for _, fn := range m.Functions() {
		if !fn.IsEntryPoint() {
			continue
		}
		s := &shaderIO{b: b, m: m, fn: fn}
		if name, vars := s.process(); name != "" {
			res.EntryPoints[name] = vars
		}
	}

	for _, mem := range strip {
		mem.SetAttributes(ir.IOAttributes{})
	}
	return res, nil
}

// ioEntry is one shader input or output.
type ioEntry struct {
	name  string
	typ   ir.Type
	attrs ir.IOAttributes
	// index is the member index in the builtin or location struct.
	index uint32
}

func (e *ioEntry) isSampleMask() bool {
	return e.attrs.Builtin != nil && *e.attrs.Builtin == ir.BuiltinSampleMask
}

type shaderIO struct {
	b  *ir.Builder
	m  *ir.Module
	fn *ir.Function

	inputs, outputs []*ioEntry

	builtinIn, locationIn   *ir.Var
	builtinOut, locationOut *ir.Var
	vars                    []string
}

// process wraps the entry point and returns the wrapper name with the
// variables it uses, or an empty name if the entry point has no IO.
func (s *shaderIO) process() (string, []string) {
	fn := s.fn
	if len(fn.Params()) == 0 {
		if _, void := fn.ReturnType().(*ir.Void); void {
			return "", nil
		}
	}
	name := fn.Name()

	s.collectInputs()
	s.collectOutputs()
	s.builtinIn, s.locationIn = s.makeStructs(s.inputs, ir.AddressSpaceIn, ir.AccessRead, "Inputs")
	s.builtinOut, s.locationOut = s.makeStructs(s.outputs, ir.AddressSpaceOut, ir.AccessWrite, "Outputs")

	stage := fn.Stage
	s.m.SetFunctionName(fn, name+"_inner")
	fn.Stage = ir.StageNone

	ep := s.b.Function(name, s.m.Types.Void(), stage)
	ep.WorkgroupSize, fn.WorkgroupSize = fn.WorkgroupSize, nil

	s.b.With(ep.Block(), func() {
		args := s.innerCallArgs()
		call := s.b.Call(fn.ReturnType(), fn, args...)
		s.storeOutputs(call.Result())
		s.b.Return(ep)
	})
	return ep.Name(), s.vars
}

func (s *shaderIO) collectInputs() {
	for i, p := range s.fn.Params() {
		if st, ok := p.Type().(*ir.Struct); ok {
			for _, mem := range st.Members {
				s.inputs = append(s.inputs, &ioEntry{name: st.Name + "_" + mem.Name, typ: mem.Type, attrs: mem.Attributes()})
			}
			continue
		}
		name := s.m.NameOf(p)
		if name == "" {
			name = "input" + strconv.Itoa(i)
		}
		s.inputs = append(s.inputs, &ioEntry{name: name, typ: p.Type(), attrs: p.Attributes})
		p.Attributes = ir.IOAttributes{}
	}
}

func (s *shaderIO) collectOutputs() {
	ret := s.fn.ReturnType()
	switch ret := ret.(type) {
	case *ir.Void:
	case *ir.Struct:
		for _, mem := range ret.Members {
			s.outputs = append(s.outputs, &ioEntry{name: ret.Name + "_" + mem.Name, typ: mem.Type, attrs: mem.Attributes()})
		}
	default:
		s.outputs = append(s.outputs, &ioEntry{name: "return_value", typ: ret, attrs: s.fn.ReturnAttributes})
		s.fn.ReturnAttributes = ir.IOAttributes{}
	}
}

// makeStructs splits entries into a builtin and a location block struct,
// and declares a module-scope variable for each non-empty one.
func (s *shaderIO) makeStructs(entries []*ioEntry, space ir.AddressSpace, access ir.AccessMode, suffix string) (builtins, locations *ir.Var) {
	var builtinMembers, locationMembers []ir.StructMemberDesc
	for _, e := range entries {
		desc := ir.StructMemberDesc{Name: e.name, Type: e.typ, Attributes: e.attrs}
		if e.attrs.Builtin != nil {
			if e.isSampleMask() {
				desc.Type = s.m.Types.Array(s.m.Types.U32(), 1)
			}
			e.index = uint32(len(builtinMembers))
			builtinMembers = append(builtinMembers, desc)
		} else {
			e.index = uint32(len(locationMembers))
			locationMembers = append(locationMembers, desc)
		}
	}
	builtins = s.declare(builtinMembers, space, access, "_Builtin"+suffix)
	locations = s.declare(locationMembers, space, access, "_Location"+suffix)
	return builtins, locations
}

func (s *shaderIO) declare(members []ir.StructMemberDesc, space ir.AddressSpace, access ir.AccessMode, suffix string) *ir.Var {
	if len(members) == 0 {
		return nil
	}
	base := s.fn.Name() + suffix
	st := s.m.Types.Struct(s.structName(base+"Struct"), members)
	st.Block = true
	var v *ir.Var
	s.b.With(s.b.RootBlock(), func() {
		v = s.b.VarNamed(base, s.m.Types.Ptr(space, st, access), nil)
	})
	s.vars = append(s.vars, s.m.NameOf(v.Result()))
	return v
}

// structName returns name, suffixed if a struct of that name exists.
func (s *shaderIO) structName(name string) string {
	if _, taken := s.m.Types.StructByName(name); !taken {
		return name
	}
	for i := 1; ; i++ {
		candidate := name + "_" + strconv.Itoa(i)
		if _, taken := s.m.Types.StructByName(candidate); !taken {
			return candidate
		}
	}
}

// ioPointer returns a pointer to the variable member holding e.
func (s *shaderIO) ioPointer(e *ioEntry, builtins, locations *ir.Var, space ir.AddressSpace, access ir.AccessMode) ir.Value {
	ptr := s.m.Types.Ptr(space, e.typ, access)
	if e.attrs.Builtin == nil {
		return s.b.Access(ptr, locations.Result(), s.b.U32(e.index)).Result()
	}
	if e.isSampleMask() {
		return s.b.Access(ptr, builtins.Result(), s.b.U32(e.index), s.b.U32(0)).Result()
	}
	return s.b.Access(ptr, builtins.Result(), s.b.U32(e.index)).Result()
}

func (s *shaderIO) input(i int) ir.Value {
	from := s.ioPointer(s.inputs[i], s.builtinIn, s.locationIn, ir.AddressSpaceIn, ir.AccessRead)
	return s.b.Load(from).Result()
}

func (s *shaderIO) innerCallArgs() []ir.Value {
	next := 0
	var args []ir.Value
	for _, p := range s.fn.Params() {
		st, ok := p.Type().(*ir.Struct)
		if !ok {
			args = append(args, s.input(next))
			next++
			continue
		}
		fields := make([]ir.Value, len(st.Members))
		for i := range st.Members {
			fields[i] = s.input(next)
			next++
		}
		args = append(args, s.b.Construct(st, fields...).Result())
	}
	return args
}

func (s *shaderIO) storeOutputs(result ir.Value) {
	store := func(i int, v ir.Value) {
		to := s.ioPointer(s.outputs[i], s.builtinOut, s.locationOut, ir.AddressSpaceOut, ir.AccessWrite)
		s.b.Store(to, v)
	}
	switch t := result.Type().(type) {
	case *ir.Void:
	case *ir.Struct:
		for i, mem := range t.Members {
			store(i, s.b.Access(mem.Type, result, s.b.U32(mem.Index)).Result())
		}
	default:
		store(0, result)
	}
}
