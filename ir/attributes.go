package ir

import (
	"strconv"
	"strings"
)

// BuiltinValue represents built-in shader IO values.
type BuiltinValue uint8

const (
	BuiltinPosition BuiltinValue = iota
	BuiltinVertexIndex
	BuiltinInstanceIndex
	BuiltinFrontFacing
	BuiltinFragDepth
	BuiltinSampleIndex
	BuiltinSampleMask
	BuiltinLocalInvocationID
	BuiltinLocalInvocationIndex
	BuiltinGlobalInvocationID
	BuiltinWorkgroupID
	BuiltinNumWorkgroups
	BuiltinPointSize
)

var builtinNames = [...]string{
	BuiltinPosition:             "position",
	BuiltinVertexIndex:          "vertex_index",
	BuiltinInstanceIndex:        "instance_index",
	BuiltinFrontFacing:          "front_facing",
	BuiltinFragDepth:            "frag_depth",
	BuiltinSampleIndex:          "sample_index",
	BuiltinSampleMask:           "sample_mask",
	BuiltinLocalInvocationID:    "local_invocation_id",
	BuiltinLocalInvocationIndex: "local_invocation_index",
	BuiltinGlobalInvocationID:   "global_invocation_id",
	BuiltinWorkgroupID:          "workgroup_id",
	BuiltinNumWorkgroups:        "num_workgroups",
	BuiltinPointSize:            "__point_size",
}

func (b BuiltinValue) String() string {
	if int(b) < len(builtinNames) {
		return builtinNames[b]
	}
	return "builtin(" + strconv.Itoa(int(b)) + ")"
}

// BuiltinValueByName returns the builtin value called name.
func BuiltinValueByName(name string) (BuiltinValue, bool) {
	for i, n := range builtinNames {
		if n == name {
			return BuiltinValue(i), true
		}
	}
	return 0, false
}

// InterpolationKind represents interpolation kinds.
type InterpolationKind uint8

const (
	InterpolationPerspective InterpolationKind = iota
	InterpolationLinear
	InterpolationFlat
)

// InterpolationSampling represents interpolation sampling.
type InterpolationSampling uint8

const (
	SamplingNone InterpolationSampling = iota
	SamplingCenter
	SamplingCentroid
	SamplingSample
)

// Interpolation represents interpolation settings.
type Interpolation struct {
	Kind     InterpolationKind
	Sampling InterpolationSampling
}

func (i Interpolation) String() string {
	kinds := [...]string{"perspective", "linear", "flat"}
	s := "@interpolate(" + kinds[i.Kind]
	switch i.Sampling {
	case SamplingCenter:
		s += ", center"
	case SamplingCentroid:
		s += ", centroid"
	case SamplingSample:
		s += ", sample"
	}
	return s + ")"
}

// IOAttributes are the shader IO attributes of a parameter, return value,
// struct member or module-scope IO variable.
type IOAttributes struct {
	Location      *uint32
	Index         *uint32
	Builtin       *BuiltinValue
	Interpolation *Interpolation
	Invariant     bool
}

// Empty reports whether no attribute is set.
func (a IOAttributes) Empty() bool {
	return a.Location == nil && a.Index == nil && a.Builtin == nil && a.Interpolation == nil && !a.Invariant
}

// list renders the attributes in disassembly order.
func (a IOAttributes) list() []string {
	var out []string
	if a.Invariant {
		out = append(out, "@invariant")
	}
	if a.Location != nil {
		out = append(out, "@location("+strconv.FormatUint(uint64(*a.Location), 10)+")")
	}
	if a.Index != nil {
		out = append(out, "@index("+strconv.FormatUint(uint64(*a.Index), 10)+")")
	}
	if a.Interpolation != nil {
		out = append(out, a.Interpolation.String())
	}
	if a.Builtin != nil {
		out = append(out, "@"+a.Builtin.String())
	}
	return out
}

func (a IOAttributes) String() string { return strings.Join(a.list(), ", ") }

// Location returns an IOAttributes with only a location set.
func Location(n uint32) IOAttributes { return IOAttributes{Location: &n} }

// Builtin returns an IOAttributes with only a builtin set.
func Builtin(b BuiltinValue) IOAttributes { return IOAttributes{Builtin: &b} }

// BindingPoint is a resource binding.
type BindingPoint struct {
	Group   uint32
	Binding uint32
}

func (bp BindingPoint) String() string {
	return "@binding_point(" + strconv.FormatUint(uint64(bp.Group), 10) + ", " +
		strconv.FormatUint(uint64(bp.Binding), 10) + ")"
}

// PipelineStage is the shader stage of an entry point.
type PipelineStage uint8

const (
	StageNone PipelineStage = iota
	StageCompute
	StageVertex
	StageFragment
)

func (s PipelineStage) String() string {
	switch s {
	case StageCompute:
		return "compute"
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return "none"
	}
}
