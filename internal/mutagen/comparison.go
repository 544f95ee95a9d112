package mutagen

import (
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

// Signedness classes. Equality predicates compare identically under either
// interpretation: they appear in both lists, and an equality original draws
// its replacements from the signed list.
var signedPreds = []m.Predicate{m.PredEQ, m.PredNE, m.PredSGT, m.PredSGE, m.PredSLT, m.PredSLE}

var unsignedPreds = []m.Predicate{m.PredEQ, m.PredNE, m.PredUGT, m.PredUGE, m.PredULT, m.PredULE}

// GenerateRORMutations emits one relational-operator replacement per other
// predicate in the same signedness class, ordered by numeric predicate.
// Cross-class replacements are not emitted.
func GenerateRORMutations(in *ir.Instr) []m.Mutation {
	if in.Op != m.OpICmp || !intType(in.Ty) {
		return nil
	}

	class := signedPreds
	if !in.Pred.Signed() {
		class = unsignedPreds
	}

	var muts []m.Mutation

	for _, alt := range class {
		if alt == in.Pred {
			continue
		}

		muts = append(muts, m.Mutation{
			Kind: m.KindROR,
			Op:   m.OpICmp,
			SPre: in.Pred,
			TPre: alt,
		})
	}

	return muts
}
