package accrt

import (
	"fmt"
	"math"

	m "irmut.dev/pkg/irmut/internal/model"
)

// OpcodeError reports an opcode or predicate outside the taxonomy. The
// process embedding the dispatcher must exit with ExitOpcode.
type OpcodeError struct {
	Op int
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("accrt: opcode %d outside taxonomy", e.Op)
}

// CalI32Arith applies an arithmetic opcode at 32-bit width. Division and
// remainder by zero yield the max sentinel instead of trapping, for the
// original and mutants alike.
func CalI32Arith(op m.Opcode, a, b int32) (int32, error) {
	switch op {
	case m.OpAdd:
		return a + b, nil
	case m.OpSub:
		return a - b, nil
	case m.OpMul:
		return a * b, nil
	case m.OpUDiv:
		if b == 0 {
			return math.MaxInt32, nil
		}

		return int32(uint32(a) / uint32(b)), nil
	case m.OpSDiv:
		if b == 0 {
			return math.MaxInt32, nil
		}

		return a / b, nil
	case m.OpURem:
		if b == 0 {
			return math.MaxInt32, nil
		}

		return int32(uint32(a) % uint32(b)), nil
	case m.OpSRem:
		if b == 0 {
			return math.MaxInt32, nil
		}

		return a % b, nil
	case m.OpShl:
		return a << (uint32(b) & 31), nil
	case m.OpLShr:
		return int32(uint32(a) >> (uint32(b) & 31)), nil
	case m.OpAShr:
		return a >> (uint32(b) & 31), nil
	case m.OpAnd:
		return a & b, nil
	case m.OpOr:
		return a | b, nil
	case m.OpXor:
		return a ^ b, nil
	}

	return 0, &OpcodeError{Op: int(op)}
}

// CalI64Arith applies an arithmetic opcode at 64-bit width.
func CalI64Arith(op m.Opcode, a, b int64) (int64, error) {
	switch op {
	case m.OpAdd:
		return a + b, nil
	case m.OpSub:
		return a - b, nil
	case m.OpMul:
		return a * b, nil
	case m.OpUDiv:
		if b == 0 {
			return math.MaxInt64, nil
		}

		return int64(uint64(a) / uint64(b)), nil
	case m.OpSDiv:
		if b == 0 {
			return math.MaxInt64, nil
		}

		return a / b, nil
	case m.OpURem:
		if b == 0 {
			return math.MaxInt64, nil
		}

		return int64(uint64(a) % uint64(b)), nil
	case m.OpSRem:
		if b == 0 {
			return math.MaxInt64, nil
		}

		return a % b, nil
	case m.OpShl:
		return a << (uint64(b) & 63), nil
	case m.OpLShr:
		return int64(uint64(a) >> (uint64(b) & 63)), nil
	case m.OpAShr:
		return a >> (uint64(b) & 63), nil
	case m.OpAnd:
		return a & b, nil
	case m.OpOr:
		return a | b, nil
	case m.OpXor:
		return a ^ b, nil
	}

	return 0, &OpcodeError{Op: int(op)}
}

// CalI32Bool applies a comparison predicate at 32-bit width, returning 0/1.
func CalI32Bool(pre m.Predicate, a, b int32) (int32, error) {
	var r bool

	switch pre {
	case m.PredEQ:
		r = a == b
	case m.PredNE:
		r = a != b
	case m.PredUGT:
		r = uint32(a) > uint32(b)
	case m.PredUGE:
		r = uint32(a) >= uint32(b)
	case m.PredULT:
		r = uint32(a) < uint32(b)
	case m.PredULE:
		r = uint32(a) <= uint32(b)
	case m.PredSGT:
		r = a > b
	case m.PredSGE:
		r = a >= b
	case m.PredSLT:
		r = a < b
	case m.PredSLE:
		r = a <= b
	default:
		return 0, &OpcodeError{Op: int(pre)}
	}

	if r {
		return 1, nil
	}

	return 0, nil
}

// CalI64Bool applies a comparison predicate at 64-bit width, returning 0/1.
func CalI64Bool(pre m.Predicate, a, b int64) (int32, error) {
	var r bool

	switch pre {
	case m.PredEQ:
		r = a == b
	case m.PredNE:
		r = a != b
	case m.PredUGT:
		r = uint64(a) > uint64(b)
	case m.PredUGE:
		r = uint64(a) >= uint64(b)
	case m.PredULT:
		r = uint64(a) < uint64(b)
	case m.PredULE:
		r = uint64(a) <= uint64(b)
	case m.PredSGT:
		r = a > b
	case m.PredSGE:
		r = a >= b
	case m.PredSLT:
		r = a < b
	case m.PredSLE:
		r = a <= b
	default:
		return 0, &OpcodeError{Op: int(pre)}
	}

	if r {
		return 1, nil
	}

	return 0, nil
}
