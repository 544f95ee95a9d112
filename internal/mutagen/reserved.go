package mutagen

import (
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

// GenerateSORMutations is the shift-operator replacement slot. The current
// taxonomy folds shift replacements into AOR, so nothing is emitted here.
func GenerateSORMutations(*ir.Instr) []m.Mutation {
	return nil
}

// GenerateCORMutations is the conditional-operator replacement slot;
// reserved, nothing is emitted.
func GenerateCORMutations(*ir.Instr) []m.Mutation {
	return nil
}
