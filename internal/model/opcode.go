package model

// Opcode is the numeric instruction tag persisted in catalogs. The
// arithmetic range 14..31 and the predicate range 32..41 are fixed; changing
// them breaks every catalog already on disk.
type Opcode int

const (
	OpRet    Opcode = 1
	OpBr     Opcode = 2
	OpAdd    Opcode = 14
	OpSub    Opcode = 16
	OpMul    Opcode = 18
	OpUDiv   Opcode = 20
	OpSDiv   Opcode = 21
	OpURem   Opcode = 23
	OpSRem   Opcode = 24
	OpShl    Opcode = 26
	OpLShr   Opcode = 27
	OpAShr   Opcode = 28
	OpAnd    Opcode = 29
	OpOr     Opcode = 30
	OpXor    Opcode = 31
	OpStore  Opcode = 33
	OpICmp   Opcode = 46
	OpCall   Opcode = 56
	OpAlloca Opcode = 61
	OpLoad   Opcode = 62
	OpTrunc  Opcode = 63
	OpPhi    Opcode = 64
)

// Predicate is the numeric comparison tag persisted in catalogs.
type Predicate int

const (
	PredEQ  Predicate = 32
	PredNE  Predicate = 33
	PredUGT Predicate = 34
	PredUGE Predicate = 35
	PredULT Predicate = 36
	PredULE Predicate = 37
	PredSGT Predicate = 38
	PredSGE Predicate = 39
	PredSLT Predicate = 40
	PredSLE Predicate = 41
)

// IsArith reports whether op is in the mutable arithmetic range.
func (op Opcode) IsArith() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpUDiv, OpSDiv, OpURem, OpSRem,
		OpShl, OpLShr, OpAShr, OpAnd, OpOr, OpXor:
		return true
	}

	return false
}

// IsLogical reports whether op is one of the bitwise logical opcodes.
func (op Opcode) IsLogical() bool {
	return op == OpAnd || op == OpOr || op == OpXor
}

// IsShift reports whether op is one of the shift opcodes.
func (op Opcode) IsShift() bool {
	return op == OpShl || op == OpLShr || op == OpAShr
}

// IsNumeric reports whether op is one of the add/sub/mul/div/rem opcodes.
func (op Opcode) IsNumeric() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpUDiv, OpSDiv, OpURem, OpSRem:
		return true
	}

	return false
}

var opcodeNames = map[Opcode]string{
	OpRet:    "ret",
	OpBr:     "br",
	OpAdd:    "add",
	OpSub:    "sub",
	OpMul:    "mul",
	OpUDiv:   "udiv",
	OpSDiv:   "sdiv",
	OpURem:   "urem",
	OpSRem:   "srem",
	OpShl:    "shl",
	OpLShr:   "lshr",
	OpAShr:   "ashr",
	OpAnd:    "and",
	OpOr:     "or",
	OpXor:    "xor",
	OpStore:  "store",
	OpICmp:   "icmp",
	OpCall:   "call",
	OpAlloca: "alloca",
	OpLoad:   "load",
	OpTrunc:  "trunc",
	OpPhi:    "phi",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}

	return "op?"
}

var predicateNames = map[Predicate]string{
	PredEQ:  "eq",
	PredNE:  "ne",
	PredUGT: "ugt",
	PredUGE: "uge",
	PredULT: "ult",
	PredULE: "ule",
	PredSGT: "sgt",
	PredSGE: "sge",
	PredSLT: "slt",
	PredSLE: "sle",
}

func (p Predicate) String() string {
	if s, ok := predicateNames[p]; ok {
		return s
	}

	return "pred?"
}

// Signed reports whether the predicate compares as signed. Equality
// predicates are signedness-neutral and belong to the signed class for
// replacement purposes.
func (p Predicate) Signed() bool {
	switch p {
	case PredUGT, PredUGE, PredULT, PredULE:
		return false
	}

	return true
}
