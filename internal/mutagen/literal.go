package mutagen

import (
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

// GenerateLVRMutations emits literal-value replacements for integer
// constant operands of arithmetic and comparison instructions and for
// integer stores of a literal. Candidates are {c-1, c+1, 0, 1, -1} minus
// duplicates and the original value.
//
// For comparison sites the persisted opcode field carries the original
// predicate tag (the predicate range 32..41 is disjoint from the arithmetic
// range), so the runtime can re-evaluate the site from the catalog alone.
func GenerateLVRMutations(in *ir.Instr) []m.Mutation {
	var op m.Opcode

	switch {
	case in.Op.IsArith() && intType(in.Ty):
		op = in.Op
	case in.Op == m.OpICmp && intType(in.Ty):
		op = m.Opcode(in.Pred)
	case in.Op == m.OpStore && intType(in.Ty):
		op = m.OpStore
	default:
		return nil
	}

	var muts []m.Mutation

	args := in.Args
	if in.Op == m.OpStore {
		args = in.Args[:1] // only the stored value is a literal site
	}

	for idx, arg := range args {
		cons, ok := arg.(ir.Const)
		if !ok {
			continue
		}

		for _, repl := range literalCandidates(cons.V) {
			muts = append(muts, m.Mutation{
				Kind:    m.KindLVR,
				Op:      op,
				OpIndex: idx,
				SCon:    cons.V,
				TCon:    repl,
			})
		}
	}

	return muts
}

func literalCandidates(orig int64) []int64 {
	seen := map[int64]bool{orig: true}

	var out []int64

	for _, c := range []int64{orig - 1, orig + 1, 0, 1, -1} {
		if seen[c] {
			continue
		}

		seen[c] = true
		out = append(out, c)
	}

	return out
}
