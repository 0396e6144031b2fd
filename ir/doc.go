// Package ir defines the block-structured intermediate representation of
// coreir.
//
// The IR is designed to be:
//   - Structured: control flow is a tree of If, Loop and Switch instructions
//   - Typed: every value carries an interned Type
//   - Editable: instructions live in linked blocks and track their users
//
// # Structure
//
// A Module owns:
//   - Types: interned by a TypeManager
//   - Constants: interned by a ConstantManager
//   - Root block: module-scope variable declarations
//   - Functions: each with a single entry block
//
// Values are produced by instructions, or are constants, parameters or
// undef. Control instructions own nested blocks and produce results that
// hold the values passed by the exits that target them.
//
// # Building and checking
//
// All construction goes through a Builder:
//
//	m := ir.NewModule()
//	b := ir.NewBuilder(m)
//	fn := b.Function("main", m.Types.Void(), ir.StageCompute)
//	b.With(fn.Block(), func() {
//	    b.Return(fn)
//	})
//
// Validate checks the structural invariants of a module, and Disassemble
// renders it as text.
//
// Misuse of the API and malformed IR met by a transform are internal
// compiler errors. They panic with an *ICE, which Recover turns back into
// an error at API boundaries.
package ir
