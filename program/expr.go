package program

// Expr is an expression with its resolved type.
type Expr interface {
	Node
	// Type is the type of the value the expression evaluates to. For an
	// expression that denotes memory, such as a variable, it is the store
	// type.
	Type() Type
	exprNode()
}

// BinaryOp is a binary operator.
type BinaryOp string

const (
	OpNone         BinaryOp = ""
	OpAdd          BinaryOp = "+"
	OpSub          BinaryOp = "-"
	OpMul          BinaryOp = "*"
	OpDiv          BinaryOp = "/"
	OpMod          BinaryOp = "%"
	OpAnd          BinaryOp = "&"
	OpOr           BinaryOp = "|"
	OpXor          BinaryOp = "^"
	OpShiftLeft    BinaryOp = "<<"
	OpShiftRight   BinaryOp = ">>"
	OpEqual        BinaryOp = "=="
	OpNotEqual     BinaryOp = "!="
	OpLess         BinaryOp = "<"
	OpLessEqual    BinaryOp = "<="
	OpGreater      BinaryOp = ">"
	OpGreaterEqual BinaryOp = ">="
	OpLogicalAnd   BinaryOp = "&&"
	OpLogicalOr    BinaryOp = "||"
)

// UnaryOp is a unary operator.
type UnaryOp string

const (
	OpNegate     UnaryOp = "-"
	OpNot        UnaryOp = "!"
	OpComplement UnaryOp = "~"
	// OpAddressOf takes the address of a memory expression.
	OpAddressOf UnaryOp = "&"
	// OpDeref denotes the memory a pointer points to.
	OpDeref UnaryOp = "*"
)

// Literal is a scalar literal. The field matching T's kind holds the value.
type Literal struct {
	T     *Scalar
	Int   int64
	Float float64
	Bool  bool
	Span  Span
}

// Ident refers to a parameter, let, variable or global by name.
type Ident struct {
	Name string
	T    Type
	Span Span
}

// Binary is a binary operation.
type Binary struct {
	Op       BinaryOp
	LHS, RHS Expr
	T        Type
	Span     Span
}

// Unary is a unary operation.
type Unary struct {
	Op   UnaryOp
	X    Expr
	T    Type
	Span Span
}

// Call calls a user function or builtin function by name. T is nil for a
// function without a return value.
type Call struct {
	Func string
	Args []Expr
	T    Type
	Span Span
}

// Construct builds a value of type T from its components.
type Construct struct {
	T    Type
	Args []Expr
	Span Span
}

// Convert is a value conversion to T.
type Convert struct {
	T    Type
	X    Expr
	Span Span
}

// Bitcast reinterprets the bits of X as T.
type Bitcast struct {
	T    Type
	X    Expr
	Span Span
}

// Index selects an element of an array, vector or matrix.
type Index struct {
	X     Expr
	Index Expr
	T     Type
	Span  Span
}

// Member selects a member of a structure.
type Member struct {
	X    Expr
	Name string
	T    Type
	Span Span
}

// Swizzle selects vector components.
type Swizzle struct {
	X       Expr
	Indices []uint32
	T       Type
	Span    Span
}

func (e *Literal) Pos() Span   { return e.Span }
func (e *Ident) Pos() Span     { return e.Span }
func (e *Binary) Pos() Span    { return e.Span }
func (e *Unary) Pos() Span     { return e.Span }
func (e *Call) Pos() Span      { return e.Span }
func (e *Construct) Pos() Span { return e.Span }
func (e *Convert) Pos() Span   { return e.Span }
func (e *Bitcast) Pos() Span   { return e.Span }
func (e *Index) Pos() Span     { return e.Span }
func (e *Member) Pos() Span    { return e.Span }
func (e *Swizzle) Pos() Span   { return e.Span }

func (e *Literal) Type() Type   { return e.T }
func (e *Ident) Type() Type     { return e.T }
func (e *Binary) Type() Type    { return e.T }
func (e *Unary) Type() Type     { return e.T }
func (e *Call) Type() Type      { return e.T }
func (e *Construct) Type() Type { return e.T }
func (e *Convert) Type() Type   { return e.T }
func (e *Bitcast) Type() Type   { return e.T }
func (e *Index) Type() Type     { return e.T }
func (e *Member) Type() Type    { return e.T }
func (e *Swizzle) Type() Type   { return e.T }

func (*Literal) exprNode()   {}
func (*Ident) exprNode()     {}
func (*Binary) exprNode()    {}
func (*Unary) exprNode()     {}
func (*Call) exprNode()      {}
func (*Construct) exprNode() {}
func (*Convert) exprNode()   {}
func (*Bitcast) exprNode()   {}
func (*Index) exprNode()     {}
func (*Member) exprNode()    {}
func (*Swizzle) exprNode()   {}

// Int returns an i32 literal.
func Int(v int32) *Literal { return &Literal{T: I32Type, Int: int64(v)} }

// Uint returns a u32 literal.
func Uint(v uint32) *Literal { return &Literal{T: U32Type, Int: int64(v)} }

// Float returns an f32 literal.
func Float(v float32) *Literal { return &Literal{T: F32Type, Float: float64(v)} }

// BoolLit returns a bool literal.
func BoolLit(v bool) *Literal { return &Literal{T: BoolType, Bool: v} }
