package ir

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error.
type ValidationError struct {
	Message string
	// Optional context
	Function    string
	Instruction string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Function != "" {
		if e.Instruction != "" {
			return fmt.Sprintf("in function %s, %s: %s", e.Function, e.Instruction, e.Message)
		}
		return fmt.Sprintf("in function %s: %s", e.Function, e.Message)
	}
	return e.Message
}

// ValidationErrors is the error returned by Check.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

// Validator validates IR modules.
type Validator struct {
	module  *Module
	errors  []ValidationError
	context validationContext
}

// validationContext holds current validation context.
type validationContext struct {
	function *Function
	scopes   []map[Value]struct{}
	controls []controlFrame
	visited  map[*Block]struct{}
}

// controlFrame records a control instruction being walked and the owned
// block currently being validated.
type controlFrame struct {
	ctrl  ControlInstruction
	block *Block
}

// Validate checks the IR module for correctness.
// Returns validation errors if any, or nil if module is valid.
// Validation never modifies the module.
func Validate(module *Module) ([]ValidationError, error) {
	if module == nil {
		return nil, fmt.Errorf("module is nil")
	}

	v := &Validator{
		module: module,
		errors: make([]ValidationError, 0),
	}

	v.ValidateModule()

	if len(v.errors) > 0 {
		return v.errors, nil
	}
	return nil, nil
}

// Check validates module and returns the validation errors as a single
// ValidationErrors error, or nil if the module is valid.
func Check(module *Module) error {
	errs, err := Validate(module)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return ValidationErrors(errs)
	}
	return nil
}

// ValidateModule validates the complete module.
func (v *Validator) ValidateModule() {
	v.context = validationContext{visited: make(map[*Block]struct{})}
	v.pushScope()
	defer v.popScope()

	// Module-scope declarations
	v.validateRootBlock()

	// Interned tables
	v.validateOwnership()

	// Function bodies
	for _, fn := range v.module.functions {
		v.validateFunction(fn)
	}
}

func (v *Validator) addError(msg string) {
	v.errors = append(v.errors, ValidationError{Message: msg, Function: v.functionName()})
}

func (v *Validator) addInstError(inst Instruction, msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:     msg,
		Function:    v.functionName(),
		Instruction: inst.FriendlyName(),
	})
}

func (v *Validator) functionName() string {
	if v.context.function == nil {
		return ""
	}
	return v.context.function.name
}

func (v *Validator) pushScope() {
	v.context.scopes = append(v.context.scopes, make(map[Value]struct{}))
}

func (v *Validator) popScope() {
	v.context.scopes = v.context.scopes[:len(v.context.scopes)-1]
}

func (v *Validator) declare(val Value) {
	v.context.scopes[len(v.context.scopes)-1][val] = struct{}{}
}

func (v *Validator) inScope(val Value) bool {
	for i := len(v.context.scopes) - 1; i >= 0; i-- {
		if _, ok := v.context.scopes[i][val]; ok {
			return true
		}
	}
	return false
}

func (v *Validator) validateRootBlock() {
	if !v.module.HasRootBlock() {
		return
	}
	root := v.module.root
	if root.Parent() != nil {
		v.addError("root block: has a parent control instruction")
	}
	v.validateLinks(root)
	for inst := root.Front(); inst != nil; inst = inst.Next() {
		variable, ok := inst.(*Var)
		if !ok {
			v.addError("root block: invalid instruction: " + inst.FriendlyName())
			continue
		}
		r := variable.Result()
		if r == nil {
			v.addError("root block: 'var' has no result")
			continue
		}
		if !v.isVarType(r.Type()) {
			v.addError("root block: 'var' type is not a pointer: " + r.Type().String())
		}
		v.validateOperands(inst)
		v.validateResults(inst)
		v.declare(r)
	}
}

// isVarType reports whether t may be the result type of a var.
func (v *Validator) isVarType(t Type) bool {
	switch t.(type) {
	case *Pointer:
		return true
	case *Reference:
		return v.module.Capabilities.Has(AllowRefTypes)
	}
	return false
}

// validateOwnership checks that every value refers to types and constants
// interned by this module.
func (v *Validator) validateOwnership() {
	for _, val := range v.module.Values() {
		if t := val.Type(); t == nil {
			v.addError(fmt.Sprintf("value of kind %T has no type", val))
		} else if !v.module.Types.Owns(t) {
			v.addError("type is not owned by the module: " + t.String())
		}
		if c, ok := val.(*Constant); ok && !v.module.OwnsConstant(c) {
			v.addError("constant is not interned by the module: " + c.value.String())
		}
	}
}

func (v *Validator) validateFunction(fn *Function) {
	v.context.function = fn
	defer func() { v.context.function = nil }()

	if fn.returnType == nil {
		v.addError("function has no return type")
	}
	if fn.block == nil {
		v.addError("function has no block")
		return
	}
	if fn.block.Parent() != nil {
		v.addError("function block has a parent control instruction")
	}

	v.pushScope()
	defer v.popScope()
	for i, p := range fn.params {
		if p.fn != fn {
			v.addError(fmt.Sprintf("function parameter %d: belongs to another function", i))
		}
		if !p.Alive() {
			v.addError(fmt.Sprintf("function parameter %d: is not alive", i))
		}
		v.validateUsages(p)
		v.declare(p)
	}
	if fn.IsEntryPoint() {
		if fn.Stage == StageCompute && fn.WorkgroupSize == nil {
			v.addError("compute entry point has no workgroup size")
		}
	}

	v.validateBlock(fn.block)
	if fn.block.IsEmpty() {
		v.addError("block: does not end in a terminator")
	}
}

// validateBlock validates blk and everything nested within it. Values
// declared by blk are visible to the blocks nested in it.
func (v *Validator) validateBlock(blk *Block) {
	if _, seen := v.context.visited[blk]; seen {
		v.addError("block: appears more than once")
		return
	}
	v.context.visited[blk] = struct{}{}

	if !blk.multiIn && len(blk.params) > 0 {
		v.addError("block: parameters on a single-entry block")
	}
	for _, p := range blk.params {
		if p.block != blk {
			v.addError("block parameter: belongs to another block")
		}
		v.validateUsages(p)
		v.declare(p)
	}

	v.validateLinks(blk)

	for inst := blk.Front(); inst != nil; inst = inst.Next() {
		if !inst.Alive() {
			v.addInstError(inst, "instruction is not alive")
			continue
		}
		if inst.Block() != blk {
			v.addInstError(inst, "instruction: belongs to another block")
		}
		if _, isTerm := inst.(Terminator); isTerm && inst != blk.Back() {
			v.addInstError(inst, "block: terminator which isn't the final instruction")
		}
		v.validateOperands(inst)
		v.validateResults(inst)
		v.validateInstruction(blk, inst)
		for _, r := range inst.Results() {
			v.declare(r)
		}
	}

	if !blk.IsEmpty() && blk.Terminator() == nil {
		v.addError("block: does not end in a terminator")
	}
}

// validateLinks checks the prev/next pointers of blk's instruction list.
func (v *Validator) validateLinks(blk *Block) {
	var prev Instruction
	n := 0
	for inst := blk.Front(); inst != nil; inst = inst.Next() {
		if inst.Prev() != prev {
			v.addInstError(inst, "instruction: previous link is inconsistent")
		}
		prev = inst
		n++
		if n > blk.count {
			v.addError("block: instruction list is longer than its length")
			return
		}
	}
	if prev != blk.Back() {
		v.addError("block: last instruction is inconsistent")
	}
	if n != blk.count {
		v.addError(fmt.Sprintf("block: length %d does not match %d linked instructions", blk.count, n))
	}
}

func operandMayBeNil(inst Instruction, i int) bool {
	switch inst.(type) {
	case *Var, *Return:
		return i == 0
	}
	return false
}

func (v *Validator) validateOperands(inst Instruction) {
	for i, op := range inst.Operands() {
		if op == nil {
			if !operandMayBeNil(inst, i) {
				v.addInstError(inst, fmt.Sprintf("operand %d is nil", i))
			}
			continue
		}
		if !op.Alive() {
			v.addInstError(inst, fmt.Sprintf("operand %d is not alive", i))
		}
		if !hasUsage(op, Usage{inst, i}) {
			v.addInstError(inst, fmt.Sprintf("operand %d: usage is not registered with the value", i))
		}
		switch op.(type) {
		case *Constant, *Undef:
		default:
			if !v.inScope(op) {
				v.addInstError(inst, fmt.Sprintf("operand %d is not in scope", i))
			}
		}
	}
}

func hasUsage(val Value, u Usage) bool {
	for _, x := range val.Usages() {
		if x == u {
			return true
		}
	}
	return false
}

func (v *Validator) validateResults(inst Instruction) {
	for _, r := range inst.Results() {
		if r.inst != inst {
			v.addInstError(inst, "result: belongs to another instruction")
		}
		if !r.Alive() {
			v.addInstError(inst, "result is not alive")
		}
		v.validateUsages(r)
	}
}

// validateUsages checks that every usage of val refers back to val.
func (v *Validator) validateUsages(val Value) {
	for _, u := range val.Usages() {
		if u.Instruction == nil || !u.Instruction.Alive() {
			v.addError("value: used by an instruction that is not alive")
			continue
		}
		if u.Instruction.Operand(u.Operand) != val {
			v.addInstError(u.Instruction, fmt.Sprintf("value: usage of operand %d does not reference the value", u.Operand))
		}
	}
}

//nolint:gocognit,gocyclo,cyclop // one case per instruction kind
func (v *Validator) validateInstruction(blk *Block, inst Instruction) {
	switch inst := inst.(type) {
	case *Var:
		r := inst.Result()
		if r == nil {
			v.addInstError(inst, "var has no result")
			return
		}
		if !v.isVarType(r.Type()) {
			v.addInstError(inst, "var: type is not a pointer: "+r.Type().String())
			return
		}
		view := r.Type().(MemoryView)
		if view.AddressSpace() != AddressSpaceFunction {
			v.addInstError(inst, "var: function-scope variable is not in the function address space")
		}
		if init := inst.Initializer(); init != nil && init.Type() != view.Store() {
			v.addInstError(inst, "var: initializer type does not match the store type")
		}
	case *Load:
		if _, ok := inst.From().Type().(MemoryView); !ok {
			v.addInstError(inst, "load: source is not a pointer or reference")
		}
	case *Store:
		view, ok := inst.To().Type().(MemoryView)
		if !ok {
			v.addInstError(inst, "store: target is not a pointer or reference")
		} else if inst.From() != nil && !storeCompatible(view.Store(), inst.From().Type()) {
			v.addInstError(inst, "store: value type does not match the store type")
		}
	case *LoadVectorElement:
		if _, ok := inst.From().Type().(MemoryView); !ok {
			v.addInstError(inst, "load_vector_element: source is not a pointer or reference")
		}
	case *StoreVectorElement:
		if _, ok := inst.To().Type().(MemoryView); !ok {
			v.addInstError(inst, "store_vector_element: target is not a pointer or reference")
		}
	case *Access:
		if len(inst.Operands()) == 0 || inst.Object() == nil {
			v.addInstError(inst, "access: no object")
		} else if _, ok := inst.Object().Type().(*Void); ok {
			v.addInstError(inst, "access: object is void")
		}
		if inst.Result() == nil {
			v.addInstError(inst, "access: no result")
		}
	case *Let:
		if inst.Result() == nil || inst.Value() == nil || inst.Result().Type() != inst.Value().Type() {
			v.addInstError(inst, "let: result type does not match the value")
		}
	case *UserCall:
		if inst.target == nil || !v.isModuleFunction(inst.target) {
			v.addInstError(inst, "call: target is not a function of the module")
		} else if len(inst.Args()) != len(inst.target.params) {
			v.addInstError(inst, fmt.Sprintf("call: got %d arguments, expected %d", len(inst.Args()), len(inst.target.params)))
		}
	case *If:
		if !IsScalar(inst.Condition().Type(), ScalarBool) {
			v.addInstError(inst, "if: condition is not a bool")
		}
		v.validateOwnedBlock(inst, inst.trueBlock, false)
		v.validateOwnedBlock(inst, inst.falseBlock, true)
	case *Loop:
		v.validateLoop(inst)
	case *Switch:
		hasDefault := false
		for _, c := range inst.cases {
			for _, s := range c.Selectors {
				if s.IsDefault() {
					hasDefault = true
				}
			}
			v.validateOwnedBlock(inst, c.Block, false)
		}
		if !hasDefault {
			v.addInstError(inst, "switch: no default case")
		}
	case *Return:
		v.validateReturn(inst)
	case Exit:
		v.validateExit(blk, inst)
	case *Continue:
		v.validateContinue(inst)
	case *NextIteration:
		l := inst.loop
		if l == nil {
			v.addInstError(inst, "next_iteration: no loop")
			return
		}
		if blk.Parent() != l || (blk != l.initializer && blk != l.continuing) {
			v.addInstError(inst, "next_iteration: not in the initializer or continuing block of its loop")
		}
		v.checkArity(inst, len(inst.Args()), len(l.body.params), "next_iteration")
		v.checkTypes(inst, inst.Args(), paramTypes(l.body.params), "next_iteration")
	}
}

func storeCompatible(store, value Type) bool {
	return store == value
}

func (v *Validator) isModuleFunction(fn *Function) bool {
	for _, f := range v.module.functions {
		if f == fn {
			return true
		}
	}
	return false
}

// validateOwnedBlock validates a block owned by ctrl. An empty block is only
// accepted if mayBeEmpty is set.
func (v *Validator) validateOwnedBlock(ctrl ControlInstruction, blk *Block, mayBeEmpty bool) {
	if blk == nil {
		v.addInstError(ctrl, "control instruction: missing block")
		return
	}
	if blk.Parent() != ctrl {
		v.addInstError(ctrl, "block: parent does not match the owning control instruction")
	}
	v.context.controls = append(v.context.controls, controlFrame{ctrl: ctrl, block: blk})
	v.pushScope()
	v.validateBlock(blk)
	v.popScope()
	v.context.controls = v.context.controls[:len(v.context.controls)-1]
	if blk.IsEmpty() && !mayBeEmpty {
		v.addInstError(ctrl, "block: does not end in a terminator")
	}
}

func (v *Validator) validateLoop(l *Loop) {
	// Values of the initializer are visible in the body, and values of the
	// body are visible in the continuing block.
	enter := func(blk *Block) {
		if blk.Parent() != l {
			v.addInstError(l, "block: parent does not match the owning control instruction")
		}
		v.context.controls = append(v.context.controls, controlFrame{ctrl: l, block: blk})
		v.pushScope()
		v.validateBlock(blk)
		v.context.controls = v.context.controls[:len(v.context.controls)-1]
	}
	enter(l.initializer)
	enter(l.body)
	enter(l.continuing)
	v.popScope()
	v.popScope()
	v.popScope()

	if l.body.IsEmpty() {
		v.addInstError(l, "loop: body does not end in a terminator")
	}
	if !l.initializer.IsEmpty() && len(l.initializer.params) > 0 {
		v.addInstError(l, "loop: initializer has parameters")
	}
	if l.initializer.IsEmpty() && len(l.body.params) > 0 {
		v.addInstError(l, "loop: body has parameters but no initializer provides them")
	}
	if l.continuing.IsEmpty() && len(l.continuing.params) > 0 {
		v.addInstError(l, "loop: empty continuing block has parameters")
	}
}

func (v *Validator) validateReturn(r *Return) {
	fn := v.context.function
	if r.fn == nil {
		v.addInstError(r, "return: null function")
		return
	}
	if r.fn != fn {
		v.addInstError(r, "return: wrong function")
		return
	}
	_, isVoid := fn.returnType.(*Void)
	switch val := r.Value(); {
	case val == nil && !isVoid:
		v.addInstError(r, "return: expected a value")
	case val != nil && isVoid:
		v.addInstError(r, "return: unexpected value")
	case val != nil && val.Type() != fn.returnType:
		v.addInstError(r, "return: value type does not match the function return type")
	}
}

// enclosing walks the control stack from the innermost frame outward,
// skipping frames for which skip returns true, and returns the first frame
// left.
func (v *Validator) enclosing(skip func(ControlInstruction) bool) (controlFrame, bool) {
	for i := len(v.context.controls) - 1; i >= 0; i-- {
		f := v.context.controls[i]
		if skip(f.ctrl) {
			continue
		}
		return f, true
	}
	return controlFrame{}, false
}

func isIf(c ControlInstruction) bool {
	_, ok := c.(*If)
	return ok
}

func isIfOrSwitch(c ControlInstruction) bool {
	switch c.(type) {
	case *If, *Switch:
		return true
	}
	return false
}

func (v *Validator) validateExit(blk *Block, e Exit) {
	target := e.ControlInstruction()
	name := e.FriendlyName()
	if target == nil {
		v.addInstError(e, name+": no control instruction")
		return
	}
	switch e := e.(type) {
	case *ExitIf:
		if blk.Parent() != target {
			v.addInstError(e, "exit_if: target is not the enclosing if")
		}
	case *ExitSwitch:
		f, ok := v.enclosing(isIf)
		if !ok || f.ctrl != target {
			v.addInstError(e, "exit_switch: target is not the enclosing switch")
		}
	case *ExitLoop:
		f, ok := v.enclosing(isIf)
		if !ok || f.ctrl != target {
			v.addInstError(e, "exit_loop: target is not the enclosing loop")
		} else if f.block != e.ctrl.body {
			v.addInstError(e, "exit_loop: not in the body of its loop")
		}
	case *BreakIf:
		l := e.loop
		if blk != l.continuing {
			v.addInstError(e, "break_if: not in the continuing block of its loop")
		}
		if !IsScalar(e.Condition().Type(), ScalarBool) {
			v.addInstError(e, "break_if: condition is not a bool")
		}
		v.checkArity(e, len(e.NextIterationValues()), len(l.body.params), "break_if next iteration")
		v.checkTypes(e, e.NextIterationValues(), paramTypes(l.body.params), "break_if next iteration")
	}
	results := target.Results()
	v.checkArity(e, len(e.Args()), len(results), name)
	types := make([]Type, len(results))
	for i, r := range results {
		types[i] = r.Type()
	}
	v.checkTypes(e, e.Args(), types, name)
}

func (v *Validator) validateContinue(c *Continue) {
	l := c.loop
	if l == nil {
		v.addInstError(c, "continue: no loop")
		return
	}
	f, ok := v.enclosing(isIfOrSwitch)
	if !ok || f.ctrl != l || f.block != l.body {
		v.addInstError(c, "continue: not in the body of its loop")
	}
	v.checkArity(c, len(c.Args()), len(l.continuing.params), "continue")
	v.checkTypes(c, c.Args(), paramTypes(l.continuing.params), "continue")
}

func (v *Validator) checkArity(inst Instruction, got, want int, what string) {
	if got != want {
		v.addInstError(inst, fmt.Sprintf("%s: arity mismatch: got %d arguments, expected %d", what, got, want))
	}
}

func (v *Validator) checkTypes(inst Instruction, args []Value, types []Type, what string) {
	if len(args) != len(types) {
		return
	}
	for i, a := range args {
		if a != nil && a.Type() != types[i] {
			v.addInstError(inst, fmt.Sprintf("%s: argument %d has type %s, expected %s", what, i, a.Type(), types[i]))
		}
	}
}

func paramTypes(params []*BlockParam) []Type {
	out := make([]Type, len(params))
	for i, p := range params {
		out[i] = p.Type()
	}
	return out
}
