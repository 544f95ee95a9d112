package mutagen

import (
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

// GenerateSTDMutations emits one statement-deletion mutation for a call
// returning void, i32 or i64. The deleted call's result is the typed zero
// sentinel, carried in the constant fields.
func GenerateSTDMutations(in *ir.Instr) []m.Mutation {
	if in.Op != m.OpCall {
		return nil
	}

	var tag m.TypeTag

	switch in.Ty {
	case ir.Void:
		tag = m.TagVoid
	case ir.I32:
		tag = m.TagI32
	case ir.I64:
		tag = m.TagI64
	default:
		return nil
	}

	return []m.Mutation{{
		Kind: m.KindSTD,
		Op:   m.OpCall,
		FTp:  tag,
	}}
}
