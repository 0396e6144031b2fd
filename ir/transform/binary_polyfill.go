package transform

import "github.com/gogpu/coreir/ir"

// BinaryPolyfillConfig selects the binary operations to polyfill.
type BinaryPolyfillConfig struct {
	// BitshiftModulo masks shift amounts to the bit width of the shifted
	// value.
	BitshiftModulo bool
}

// DefaultBinaryPolyfillConfig enables every polyfill.
func DefaultBinaryPolyfillConfig() BinaryPolyfillConfig {
	return BinaryPolyfillConfig{BitshiftModulo: true}
}

// BinaryPolyfillPass runs BinaryPolyfill with the BinaryPolyfillConfig of
// the inputs, or the default config.
var BinaryPolyfillPass = register(withOptions("binary_polyfill", DefaultBinaryPolyfillConfig(), BinaryPolyfill))

// BinaryPolyfill replaces binary operations that backends cannot express
// directly with equivalent instruction sequences.
func BinaryPolyfill(m *ir.Module, cfg BinaryPolyfillConfig) (err error) {
	defer ir.Recover(&err)
	if !cfg.BitshiftModulo {
		return nil
	}
	b := ir.NewBuilder(m)
	for _, inst := range m.Instructions() {
		bin, ok := inst.(*ir.Binary)
		if !ok || !inst.Alive() || bin.Block() == nil {
			continue
		}
		if bin.Op == ir.BinaryShiftLeft || bin.Op == ir.BinaryShiftRight {
			maskShiftAmount(b, bin)
		}
	}
	return nil
}

// maskShiftAmount rewrites `shift lhs, rhs` to `shift lhs, rhs & (bits-1)`.
func maskShiftAmount(b *ir.Builder, bin *ir.Binary) {
	consts := b.Module.Constants
	lhs := ir.ElementScalar(bin.LHS().Type())
	rhsType := bin.RHS().Type()
	if lhs == nil || ir.ElementScalar(rhsType) == nil {
		ir.Panicf("binary_polyfill: shift of non-scalar type %s", bin.LHS().Type())
	}
	bits := lhs.Size() * 8
	var mask ir.ConstValue = consts.ScalarFromBits(ir.ElementScalar(rhsType), uint64(bits-1))
	if vec, ok := rhsType.(*ir.Vector); ok {
		mask = consts.Splat(vec, mask, int(vec.Width))
	}
	b.WithBefore(bin, func() {
		masked := b.And(rhsType, bin.RHS(), b.Constant(mask))
		bin.SetOperand(1, masked.Result())
	})
}
