/*
Package optimize repeatedly rewrites an ir.Block with a fixed set of
dataflow passes until none of them change anything, then renames
variables (spec.md §4.3). Passes are plain functions over an *ir.Block,
patterned on the teacher's emu/cpu "one function per concern, called from
a driving loop" style rather than a visitor class hierarchy.
*/
package optimize

import "github.com/armrt/armrt/ir"

// substitutor is a sparse variable-to-replacement map, applied to every
// variable-typed operand field on an Op. Constant propagation uses it to
// fold variables down to immediates; other passes use it to rename a
// variable to an earlier equivalent one.
type substitutor struct {
	vars map[ir.Var]ir.VarOrImm
}

func newSubstitutor() *substitutor {
	return &substitutor{vars: make(map[ir.Var]ir.VarOrImm)}
}

// record stores that v should be replaced by val everywhere it's read
// downstream. val may itself reference a variable already in the table;
// record resolves through one level of indirection so chains collapse.
func (s *substitutor) record(v ir.Var, val ir.VarOrImm) {
	if !val.IsImm {
		if resolved, ok := s.vars[val.Var]; ok {
			val = resolved
		}
	}
	s.vars[v] = val
}

func (s *substitutor) resolve(a ir.VarOrImm) (ir.VarOrImm, bool) {
	if a.IsImm || !a.Var.Present() {
		return a, false
	}
	v, ok := s.vars[a.Var]
	return v, ok
}

// apply substitutes every variable-typed source operand on op, returning
// whether anything changed.
func (s *substitutor) apply(op *ir.Op) bool {
	changed := false
	if v, ok := s.resolve(op.Src1); ok {
		op.Src1 = v
		changed = true
	}
	if v, ok := s.resolve(op.Src2); ok {
		op.Src2 = v
		changed = true
	}
	if v, ok := s.resolve(op.Src3); ok {
		op.Src3 = v
		changed = true
	}
	return changed
}
