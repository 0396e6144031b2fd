// Package program is the resolved-program model consumed by lower.
//
// A Program is what a front end hands over after parsing and semantic
// analysis: every declaration is known, every identifier resolves to a
// declaration in scope, and every expression carries its resolved Type. The
// model does no checking of its own.
package program

// Program is a resolved translation unit. Declarations appear in dependency
// order: a struct is declared before its first use, and a function before
// its first call.
type Program struct {
	Enables   []Enable
	Structs   []*Struct
	Globals   []*Global
	Functions []*Function

	// Source is the original text, used to give diagnostics context.
	Source string
}

// Span locates a node in the source text. A zero Span is unknown.
type Span struct {
	Line   int
	Column int
}

// Node is implemented by every declaration, statement and expression.
type Node interface {
	Pos() Span
}

// Enable is an enable directive naming one extension.
type Enable struct {
	Extension string
	Span      Span
}

// Attributes are the resolved attributes of a parameter, return value,
// struct member or global.
type Attributes struct {
	Location *uint32
	// Index is the blend source index for dual-source blending.
	Index *uint32
	// Builtin is the builtin value name, e.g. "position".
	Builtin string
	// Interpolate is "perspective", "linear" or "flat".
	Interpolate string
	// Sampling is "center", "centroid" or "sample".
	Sampling  string
	Invariant bool

	Group   *uint32
	Binding *uint32
}

// Struct is a structure declaration. It is also a Type.
type Struct struct {
	Name    string
	Members []*StructMember
	Span    Span
}

func (s *Struct) Pos() Span { return s.Span }

// StructMember is a member of a Struct.
type StructMember struct {
	Name       string
	Type       Type
	Attributes Attributes
	Span       Span
}

// Global is a module-scope variable.
type Global struct {
	Name  string
	Space AddressSpace
	// Access is the access mode of storage buffers. Other spaces ignore it.
	Access     AccessMode
	Type       Type
	Init       Expr
	Attributes Attributes
	Span       Span
}

func (g *Global) Pos() Span { return g.Span }

// Stage is the pipeline stage of an entry point.
type Stage string

const (
	StageNone     Stage = ""
	StageCompute  Stage = "compute"
	StageVertex   Stage = "vertex"
	StageFragment Stage = "fragment"
)

// Function is a function declaration.
type Function struct {
	Name   string
	Params []*Param
	// Return is nil for a function without a return value.
	Return           Type
	ReturnAttributes Attributes
	Stage            Stage
	// WorkgroupSize is the workgroup size of a compute entry point.
	WorkgroupSize [3]uint32
	Body          *Block
	Span          Span
}

func (f *Function) Pos() Span { return f.Span }

// Param is a function parameter.
type Param struct {
	Name       string
	Type       Type
	Attributes Attributes
	Span       Span
}

func (p *Param) Pos() Span { return p.Span }
