package program

// Stmt is a statement.
type Stmt interface {
	Node
	stmtNode()
}

// Block is a braced statement list. It opens a scope.
type Block struct {
	Stmts []Stmt
	Span  Span
}

// VarStmt declares a function-scope variable.
type VarStmt struct {
	Name string
	Type Type
	Init Expr
	Span Span
}

// LetStmt binds an immutable value.
type LetStmt struct {
	Name  string
	Value Expr
	Span  Span
}

// AssignStmt stores RHS to the memory denoted by LHS. A non-empty Op makes
// it a compound assignment (LHS = LHS Op RHS). A nil LHS is a phony
// assignment that only evaluates RHS.
type AssignStmt struct {
	LHS  Expr
	Op   BinaryOp
	RHS  Expr
	Span Span
}

// IfStmt is an if statement. Else is nil, a *Block or an *IfStmt.
type IfStmt struct {
	Cond Expr
	Then *Block
	Else Stmt
	Span Span
}

// LoopStmt is a loop with an optional continuing block. BreakIf, if set, is
// evaluated at the end of the continuing block.
type LoopStmt struct {
	Body       *Block
	Continuing *Block
	BreakIf    Expr
	Span       Span
}

// ForStmt is a for loop. Any of Init, Cond and Update may be nil.
type ForStmt struct {
	Init   Stmt
	Cond   Expr
	Update Stmt
	Body   *Block
	Span   Span
}

// WhileStmt is a while loop.
type WhileStmt struct {
	Cond Expr
	Body *Block
	Span Span
}

// SwitchStmt is a switch over an integer selector.
type SwitchStmt struct {
	Selector Expr
	Cases    []*Case
	Span     Span
}

// Case is a switch clause. Selectors are constant integer literals;
// Default marks a clause that also (or only) selects the default.
type Case struct {
	Selectors []Expr
	Default   bool
	Body      *Block
	Span      Span
}

// BreakStmt leaves the innermost loop or switch.
type BreakStmt struct{ Span Span }

// ContinueStmt starts the next iteration of the innermost loop.
type ContinueStmt struct{ Span Span }

// DiscardStmt discards the current fragment.
type DiscardStmt struct{ Span Span }

// ReturnStmt returns from the function with an optional value.
type ReturnStmt struct {
	Value Expr
	Span  Span
}

// CallStmt is a function call evaluated for its side effects.
type CallStmt struct {
	Call *Call
	Span Span
}

func (s *Block) Pos() Span        { return s.Span }
func (s *VarStmt) Pos() Span      { return s.Span }
func (s *LetStmt) Pos() Span      { return s.Span }
func (s *AssignStmt) Pos() Span   { return s.Span }
func (s *IfStmt) Pos() Span       { return s.Span }
func (s *LoopStmt) Pos() Span     { return s.Span }
func (s *ForStmt) Pos() Span      { return s.Span }
func (s *WhileStmt) Pos() Span    { return s.Span }
func (s *SwitchStmt) Pos() Span   { return s.Span }
func (s *BreakStmt) Pos() Span    { return s.Span }
func (s *ContinueStmt) Pos() Span { return s.Span }
func (s *DiscardStmt) Pos() Span  { return s.Span }
func (s *ReturnStmt) Pos() Span   { return s.Span }
func (s *CallStmt) Pos() Span     { return s.Span }

func (*Block) stmtNode()        {}
func (*VarStmt) stmtNode()      {}
func (*LetStmt) stmtNode()      {}
func (*AssignStmt) stmtNode()   {}
func (*IfStmt) stmtNode()       {}
func (*LoopStmt) stmtNode()     {}
func (*ForStmt) stmtNode()      {}
func (*WhileStmt) stmtNode()    {}
func (*SwitchStmt) stmtNode()   {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*DiscardStmt) stmtNode()  {}
func (*ReturnStmt) stmtNode()   {}
func (*CallStmt) stmtNode()     {}
