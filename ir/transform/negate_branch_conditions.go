package transform

import "github.com/gogpu/coreir/ir"

// NegateBranchConditionsPass runs NegateBranchConditions.
var NegateBranchConditionsPass = register(withoutOptions("negate_branch_conditions", NegateBranchConditions))

// NegateBranchConditions rewrites
//
//	%c = not %x
//	if %c [t: A, f: B]
//
// into `if %x [t: B, f: A]` when the not has no other use.
func NegateBranchConditions(m *ir.Module) (err error) {
	defer ir.Recover(&err)
	b := ir.NewBuilder(m)
	for _, fn := range m.Functions() {
		var ifs []*ir.If
		fn.WalkInstructions(func(inst ir.Instruction) {
			if i, ok := inst.(*ir.If); ok {
				ifs = append(ifs, i)
			}
		})
		for _, i := range ifs {
			negateBranch(b, i)
		}
	}
	return nil
}

func negateBranch(b *ir.Builder, i *ir.If) {
	cond := i.Condition()
	not, ok := ir.IsResultOf(cond).(*ir.Unary)
	if !ok || not.Op != ir.UnaryNot || cond.NumUsages() != 1 || !ir.IsScalar(cond.Type(), ir.ScalarBool) {
		return
	}
	t, f := i.True(), i.False()
	if f.IsEmpty() {
		// The implicit false block exits with undefined values.
		b.With(f, func() {
			args := make([]ir.Value, len(i.Results()))
			for n, r := range i.Results() {
				args[n] = b.Undef(r.Type())
			}
			b.ExitIf(i, args...)
		})
	}
	i.SetTrue(f)
	i.SetFalse(t)
	i.SetOperand(0, not.Val())
	not.Destroy()
}
