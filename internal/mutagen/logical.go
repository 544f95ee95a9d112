package mutagen

import (
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

var logicalOps = []m.Opcode{m.OpAnd, m.OpOr, m.OpXor}

// GenerateLORMutations emits replacements among the bitwise logical
// opcodes, ordered by numeric opcode.
func GenerateLORMutations(in *ir.Instr) []m.Mutation {
	if !in.Op.IsLogical() || !intType(in.Ty) {
		return nil
	}

	var muts []m.Mutation

	for _, alt := range logicalOps {
		if alt == in.Op {
			continue
		}

		muts = append(muts, m.Mutation{
			Kind: m.KindLOR,
			Op:   in.Op,
			TOp:  alt,
		})
	}

	return muts
}
