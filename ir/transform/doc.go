// Package transform rewrites ir modules in place.
//
// Every pass is available both as a function taking the module and its
// options, such as MergeReturn or Robustness, and as a Transform value,
// such as MergeReturnPass, for use with a Manager. Passes assume their
// input passed ir.Validate. A broken precondition inside a pass is an
// internal compiler error, never a user diagnostic.
//
// A typical pipeline:
//
//	mgr := &transform.Manager{
//		Validate: true,
//		Passes: []transform.Transform{
//			transform.MergeReturnPass,
//			transform.RemoveTerminatorArgsPass,
//			transform.ValueToLetPass,
//		},
//	}
//	if err := mgr.Run(m, nil, nil); err != nil {
//		return err
//	}
package transform
