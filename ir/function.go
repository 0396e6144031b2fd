package ir

// Function is a function of a Module. A function with a pipeline stage is
// an entry point.
type Function struct {
	name       string
	params     []*FunctionParam
	returnType Type
	block      *Block
	callSites  []*UserCall

	// Stage is the pipeline stage of an entry point, or StageNone.
	Stage PipelineStage
	// WorkgroupSize is the workgroup size of a compute entry point.
	WorkgroupSize *[3]uint32
	// ReturnAttributes are the shader IO attributes of the return value.
	ReturnAttributes IOAttributes
}

// Name returns the name of the function.
func (f *Function) Name() string { return f.name }

// Params returns the parameters.
func (f *Function) Params() []*FunctionParam { return f.params }

// SetParams replaces the parameters.
func (f *Function) SetParams(params ...*FunctionParam) {
	for _, p := range f.params {
		p.fn = nil
	}
	f.params = nil
	for _, p := range params {
		f.AddParam(p)
	}
}

// AddParam appends a parameter.
func (f *Function) AddParam(p *FunctionParam) {
	p.fn = f
	f.params = append(f.params, p)
}

// ReturnType returns the return type.
func (f *Function) ReturnType() Type { return f.returnType }

// SetReturnType changes the return type.
func (f *Function) SetReturnType(t Type) { f.returnType = t }

// Block returns the entry block.
func (f *Function) Block() *Block { return f.block }

// IsEntryPoint reports whether the function has a pipeline stage.
func (f *Function) IsEntryPoint() bool { return f.Stage != StageNone }

// CallSites returns the calls targeting the function.
func (f *Function) CallSites() []*UserCall { return f.callSites }

func (f *Function) removeCallSite(c *UserCall) {
	for i, x := range f.callSites {
		if x == c {
			f.callSites = append(f.callSites[:i], f.callSites[i+1:]...)
			return
		}
	}
}

// WalkBlocks calls fn for every block of f, outermost first, in disassembly
// order.
func (f *Function) WalkBlocks(fn func(*Block)) {
	walkBlock(f.block, fn)
}

func walkBlock(b *Block, fn func(*Block)) {
	fn(b)
	for inst := b.Front(); inst != nil; inst = inst.Next() {
		if ctrl, ok := inst.(ControlInstruction); ok {
			for _, nested := range ctrl.Blocks() {
				walkBlock(nested, fn)
			}
		}
	}
}

// WalkInstructions calls fn for every instruction of f in disassembly order.
// Instructions owned by a control instruction are visited after it.
func (f *Function) WalkInstructions(fn func(Instruction)) {
	walkInstructions(f.block, fn)
}

func walkInstructions(b *Block, fn func(Instruction)) {
	for _, inst := range b.Instructions() {
		fn(inst)
		if ctrl, ok := inst.(ControlInstruction); ok {
			for _, nested := range ctrl.Blocks() {
				walkInstructions(nested, fn)
			}
		}
	}
}
