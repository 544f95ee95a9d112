package mutagen

import (
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

// Arithmetic families. A replacement never crosses families; the logical
// family belongs to LOR, so AOR covers numeric and shift opcodes.
var numericOps = []m.Opcode{m.OpAdd, m.OpSub, m.OpMul, m.OpUDiv, m.OpSDiv, m.OpURem, m.OpSRem}

var shiftOps = []m.Opcode{m.OpShl, m.OpLShr, m.OpAShr}

// GenerateAORMutations emits one arithmetic-operator replacement per
// alternative opcode in the instruction's family, ordered by numeric
// opcode.
func GenerateAORMutations(in *ir.Instr) []m.Mutation {
	if !intType(in.Ty) {
		return nil
	}

	var family []m.Opcode

	switch {
	case in.Op.IsNumeric():
		family = numericOps
	case in.Op.IsShift():
		family = shiftOps
	default:
		return nil
	}

	var muts []m.Mutation

	for _, alt := range family {
		if alt == in.Op {
			continue
		}

		muts = append(muts, m.Mutation{
			Kind: m.KindAOR,
			Op:   in.Op,
			TOp:  alt,
		})
	}

	return muts
}
