package mutagen

import (
	"testing"

	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

func TestGenerateAORMutations(t *testing.T) {
	t.Run("numeric opcode gets every numeric alternative", func(t *testing.T) {
		in := &ir.Instr{Op: m.OpAdd, Name: "x", Ty: ir.I32, Args: []ir.Value{ir.Ref{Name: "a", Ty: ir.I32}, ir.Ref{Name: "b", Ty: ir.I32}}}

		muts := GenerateAORMutations(in)
		if len(muts) != 6 {
			t.Fatalf("expected 6 mutations for add, got %d", len(muts))
		}

		expected := map[m.Opcode]bool{
			m.OpSub: false, m.OpMul: false, m.OpUDiv: false,
			m.OpSDiv: false, m.OpURem: false, m.OpSRem: false,
		}

		for _, mut := range muts {
			if mut.Kind != m.KindAOR {
				t.Errorf("expected AOR, got %s", mut.Kind)
			}

			if mut.Op != m.OpAdd {
				t.Errorf("expected original opcode add, got %s", mut.Op)
			}

			if _, ok := expected[mut.TOp]; ok {
				expected[mut.TOp] = true
			}
		}

		for op, found := range expected {
			if !found {
				t.Errorf("missing replacement %s", op)
			}
		}
	})

	t.Run("replacements are ordered by numeric opcode", func(t *testing.T) {
		in := &ir.Instr{Op: m.OpSDiv, Name: "x", Ty: ir.I64, Args: []ir.Value{ir.Ref{Name: "a", Ty: ir.I64}, ir.Ref{Name: "b", Ty: ir.I64}}}

		muts := GenerateAORMutations(in)
		for i := 1; i < len(muts); i++ {
			if muts[i].TOp <= muts[i-1].TOp {
				t.Fatalf("replacement order violated: %s after %s", muts[i].TOp, muts[i-1].TOp)
			}
		}
	})

	t.Run("shift opcode stays in the shift family", func(t *testing.T) {
		in := &ir.Instr{Op: m.OpShl, Name: "x", Ty: ir.I32, Args: []ir.Value{ir.Ref{Name: "a", Ty: ir.I32}, ir.Ref{Name: "b", Ty: ir.I32}}}

		muts := GenerateAORMutations(in)
		if len(muts) != 2 {
			t.Fatalf("expected 2 shift replacements, got %d", len(muts))
		}

		for _, mut := range muts {
			if !mut.TOp.IsShift() {
				t.Errorf("shl replaced with non-shift %s", mut.TOp)
			}
		}
	})

	t.Run("logical opcodes are not AOR targets", func(t *testing.T) {
		in := &ir.Instr{Op: m.OpXor, Name: "x", Ty: ir.I32, Args: []ir.Value{ir.Ref{Name: "a", Ty: ir.I32}, ir.Ref{Name: "b", Ty: ir.I32}}}

		if muts := GenerateAORMutations(in); muts != nil {
			t.Errorf("expected no AOR mutations for xor, got %d", len(muts))
		}
	})

	t.Run("non-arithmetic instructions produce nothing", func(t *testing.T) {
		in := &ir.Instr{Op: m.OpRet, Ty: ir.I32}

		if muts := GenerateAORMutations(in); muts != nil {
			t.Errorf("expected no mutations for ret, got %d", len(muts))
		}
	})
}

func TestGenerateLORMutations(t *testing.T) {
	in := &ir.Instr{Op: m.OpOr, Name: "x", Ty: ir.I32, Args: []ir.Value{ir.Ref{Name: "a", Ty: ir.I32}, ir.Ref{Name: "b", Ty: ir.I32}}}

	muts := GenerateLORMutations(in)
	if len(muts) != 2 {
		t.Fatalf("expected 2 LOR mutations for or, got %d", len(muts))
	}

	if muts[0].TOp != m.OpAnd || muts[1].TOp != m.OpXor {
		t.Errorf("expected and then xor, got %s then %s", muts[0].TOp, muts[1].TOp)
	}

	add := &ir.Instr{Op: m.OpAdd, Name: "x", Ty: ir.I32, Args: []ir.Value{ir.Ref{Name: "a", Ty: ir.I32}, ir.Ref{Name: "b", Ty: ir.I32}}}
	if muts := GenerateLORMutations(add); muts != nil {
		t.Errorf("expected no LOR mutations for add, got %d", len(muts))
	}
}
