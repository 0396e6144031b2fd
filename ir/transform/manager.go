package transform

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gogpu/coreir/ir"
)

// Manager runs an ordered list of passes over a module.
type Manager struct {
	// Passes are run in order.
	Passes []Transform
	// Validate checks the module before and after every pass.
	Validate bool
	// Logger receives debug records for every pass. Nil discards them.
	Logger *slog.Logger
}

// NewManager returns a manager running passes.
func NewManager(passes ...Transform) *Manager {
	return &Manager{Passes: passes}
}

// Add appends passes to the pipeline.
func (mgr *Manager) Add(passes ...Transform) {
	mgr.Passes = append(mgr.Passes, passes...)
}

func (mgr *Manager) logger() *slog.Logger {
	if mgr.Logger != nil {
		return mgr.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Run runs every pass over m and stops at the first failure. The returned
// error names the failing pass. Internal compiler errors raised by a pass
// are returned as errors wrapping an *ir.ICE whose Transform is set.
//
// Nil inputs or outputs are replaced by empty maps.
func (mgr *Manager) Run(m *ir.Module, inputs, outputs *DataMap) error {
	if m == nil {
		return errors.New("transform: nil module")
	}
	if inputs == nil {
		inputs = NewDataMap()
	}
	if outputs == nil {
		outputs = NewDataMap()
	}
	log := mgr.logger()
	for _, t := range mgr.Passes {
		if err := mgr.runPass(log, t, m, inputs, outputs); err != nil {
			return err
		}
	}
	return nil
}

func (mgr *Manager) runPass(log *slog.Logger, t Transform, m *ir.Module, inputs, outputs *DataMap) error {
	name := t.Name()
	if mgr.Validate {
		if err := validateStage(m, name, "input"); err != nil {
			return err
		}
	}

	log.Debug("Running transform", "pass", name, "instructions", len(m.Instructions()))
	start := time.Now()
	if err := runRecovered(t, m, inputs, outputs); err != nil {
		var ice *ir.ICE
		if errors.As(err, &ice) && ice.Transform == "" {
			ice.Transform = name
		}
		log.Debug("Transform failed", "pass", name, "err", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Debug("Finished transform", "pass", name, "elapsed", time.Since(start), "instructions", len(m.Instructions()))

	if mgr.Validate {
		return validateStage(m, name, "output")
	}
	return nil
}

// runRecovered runs t and converts an ICE panic into an error, for
// Transform implementations that do not recover themselves.
func runRecovered(t Transform, m *ir.Module, inputs, outputs *DataMap) (err error) {
	defer ir.Recover(&err)
	return t.Run(m, inputs, outputs)
}

// validateStage reports an invalid module around pass name as an internal
// compiler error. stage is "input" or "output".
func validateStage(m *ir.Module, name, stage string) error {
	err := ir.Check(m)
	if err == nil {
		return nil
	}
	ice := ir.NewICE("%s is not valid:\n%v", stage, err)
	ice.Transform = name
	return fmt.Errorf("%s: %s: %w", name, stage, ice)
}
