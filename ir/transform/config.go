package transform

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"

	"github.com/naoina/toml"

	"github.com/gogpu/coreir/ir"
)

// PipelineConfig describes a pass pipeline. It is usually decoded from a
// TOML file whose keys are the Go field names:
//
//	Validate = true
//	Passes = ["merge_return", "robustness", "shader_io"]
//
//	[ShaderIO]
//	Backend = "spirv"
//
//	[Robustness]
//	ClampValue = false
type PipelineConfig struct {
	// Validate checks the module around every pass.
	Validate bool
	// Passes are pass names, run in order.
	Passes []string

	ShaderIO             ShaderIOConfig
	DirectVariableAccess DirectVariableAccessOptions
	Robustness           RobustnessConfig
	BinaryPolyfill       BinaryPolyfillConfig
}

// DefaultPipelineConfig returns a validating configuration with no passes and
// the default options of every pass.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Validate:       true,
		ShaderIO:       ShaderIOConfig{Backend: BackendSPIRV},
		Robustness:     DefaultRobustnessConfig(),
		BinaryPolyfill: DefaultBinaryPolyfillConfig(),
	}
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// LoadConfig reads a pipeline from the TOML file at path. Fields missing
// from the file keep their default values.
func LoadConfig(path string) (PipelineConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return PipelineConfig{}, err
	}
	defer f.Close()

	cfg, err := ParseConfig(bufio.NewReader(f))
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	return cfg, err
}

// ParseConfig decodes a pipeline from TOML read from r on top of
// DefaultPipelineConfig.
func ParseConfig(r io.Reader) (PipelineConfig, error) {
	cfg := DefaultPipelineConfig()
	if err := tomlSettings.NewDecoder(r).Decode(&cfg); err != nil {
		return PipelineConfig{}, err
	}
	return cfg, nil
}

// Marshal encodes cfg as TOML.
func (cfg PipelineConfig) Marshal() ([]byte, error) {
	return tomlSettings.Marshal(&cfg)
}

// ByName returns the pass registered as name. If the inputs of a run do
// not carry options for the pass, the options of cfg are used.
func (r *Registry) ByName(name string, cfg PipelineConfig) (Transform, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown transform %q", name)
	}
	var apply func(*DataMap)
	switch t {
	case ShaderIOPass:
		apply = defaultInput(cfg.ShaderIO)
	case DirectVariableAccessPass:
		apply = defaultInput(cfg.DirectVariableAccess)
	case RobustnessPass:
		apply = defaultInput(cfg.Robustness)
	case BinaryPolyfillPass:
		apply = defaultInput(cfg.BinaryPolyfill)
	default:
		return t, nil
	}
	return &configured{Transform: t, apply: apply}, nil
}

func defaultInput[T any](v T) func(*DataMap) {
	return func(dm *DataMap) {
		if !Has[T](dm) {
			Add(dm, v)
		}
	}
}

// configured runs a pass with options filled in from a PipelineConfig.
type configured struct {
	Transform
	apply func(*DataMap)
}

func (c *configured) Run(m *ir.Module, inputs, outputs *DataMap) error {
	in := inputs.Clone()
	c.apply(in)
	return c.Transform.Run(m, in, outputs)
}

// Manager builds a Manager running the passes of cfg in order, resolved
// through DefaultRegistry.
func (cfg PipelineConfig) Manager(logger *slog.Logger) (*Manager, error) {
	return DefaultRegistry().Manager(cfg, logger)
}

// Manager builds a Manager running the passes of cfg in order.
func (r *Registry) Manager(cfg PipelineConfig, logger *slog.Logger) (*Manager, error) {
	mgr := &Manager{Validate: cfg.Validate, Logger: logger}
	for _, name := range cfg.Passes {
		t, err := r.ByName(name, cfg)
		if err != nil {
			return nil, err
		}
		mgr.Add(t)
	}
	return mgr, nil
}
