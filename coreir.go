// Package coreir provides a typed, block-structured shader IR together with
// a pipeline of verified transforms.
//
// A resolved program is lowered to an IR module, rewritten in place by the
// configured passes, and handed to a generator:
//
//	prog := &program.Program{ ... }
//	res, err := coreir.Compile(prog, coreir.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(string(res.Output.Data))
//
// The stages are available on their own through Lower, Run and Generate, and
// through the lower, ir/transform and backend packages.
package coreir

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/coreir/backend"
	"github.com/gogpu/coreir/ir"
	"github.com/gogpu/coreir/ir/transform"
	"github.com/gogpu/coreir/lower"
	"github.com/gogpu/coreir/program"
)

// Options configures compilation.
type Options struct {
	// Pipeline names the passes to run and their options.
	Pipeline transform.PipelineConfig

	// Generator is the registry name of the generator (default: "text").
	Generator string

	// Backend is passed to the generator.
	Backend backend.Options

	// Registry resolves Generator. Nil uses backend.Default().
	Registry *backend.Registry

	// Logger receives the debug records of the pass pipeline.
	Logger *slog.Logger
}

// DefaultOptions returns options that validate around every pass, run no
// passes and emit text.
func DefaultOptions() Options {
	return Options{
		Pipeline:  transform.DefaultPipelineConfig(),
		Generator: "text",
	}
}

// Result is the outcome of Compile.
type Result struct {
	// Module is the module after the pipeline ran.
	Module *ir.Module
	// Outputs holds the results published by the passes, such as
	// transform.ShaderIOResult.
	Outputs *transform.DataMap
	// Output is the generated code.
	Output *backend.Output
}

// Compile lowers prog, runs the pipeline of opts over it and generates
// output.
//
// The compilation pipeline is:
//  1. Lower the program to an IR module
//  2. Run the configured passes
//  3. Generate output with the configured generator
func Compile(prog *program.Program, opts Options) (*Result, error) {
	m, err := Lower(prog)
	if err != nil {
		return nil, err
	}
	outputs, err := Run(m, opts.Pipeline, opts.Logger)
	if err != nil {
		return nil, err
	}
	out, err := Generate(m, opts)
	if err != nil {
		return nil, err
	}
	return &Result{Module: m, Outputs: outputs, Output: out}, nil
}

// Lower converts a resolved program to an IR module.
//
// User errors are returned as program.Diagnostics; use FormatAll to show
// them with source context.
func Lower(prog *program.Program) (*ir.Module, error) {
	m, err := lower.BuildFromProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("lowering error: %w", err)
	}
	return m, nil
}

// Run runs the passes of cfg over m and returns their outputs.
func Run(m *ir.Module, cfg transform.PipelineConfig, logger *slog.Logger) (*transform.DataMap, error) {
	mgr, err := cfg.Manager(logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline error: %w", err)
	}
	outputs := transform.NewDataMap()
	if err := mgr.Run(m, transform.NewDataMap(), outputs); err != nil {
		return nil, fmt.Errorf("transform error: %w", err)
	}
	return outputs, nil
}

// Generate produces output for m with the generator named by opts.
func Generate(m *ir.Module, opts Options) (*backend.Output, error) {
	reg := opts.Registry
	if reg == nil {
		reg = backend.Default()
	}
	name := opts.Generator
	if name == "" {
		name = "text"
	}
	out, err := reg.Generate(name, m, opts.Backend)
	if err != nil {
		return nil, fmt.Errorf("generation error: %w", err)
	}
	return out, nil
}
