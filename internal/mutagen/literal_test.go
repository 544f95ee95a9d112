package mutagen

import (
	"testing"

	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

func TestGenerateLVRMutations(t *testing.T) {
	t.Run("arithmetic literal gets the candidate set minus duplicates", func(t *testing.T) {
		in := &ir.Instr{Op: m.OpAdd, Name: "x", Ty: ir.I32,
			Args: []ir.Value{ir.Ref{Name: "a", Ty: ir.I32}, ir.Const{Ty: ir.I32, V: 10}}}

		muts := GenerateLVRMutations(in)
		if len(muts) != 5 {
			t.Fatalf("expected 5 replacements for literal 10, got %d", len(muts))
		}

		want := []int64{9, 11, 0, 1, -1}
		for i, mut := range muts {
			if mut.Kind != m.KindLVR || mut.OpIndex != 1 || mut.SCon != 10 {
				t.Errorf("bad mutation record: %+v", mut)
			}

			if mut.TCon != want[i] {
				t.Errorf("replacement %d = %d, want %d", i, mut.TCon, want[i])
			}
		}
	})

	t.Run("duplicates and the original value are excluded", func(t *testing.T) {
		in := &ir.Instr{Op: m.OpSub, Name: "x", Ty: ir.I32,
			Args: []ir.Value{ir.Const{Ty: ir.I32, V: 0}, ir.Ref{Name: "a", Ty: ir.I32}}}

		muts := GenerateLVRMutations(in)

		// For 0 the candidate set {-1, 1, 0, 1, -1} collapses to {-1, 1}.
		if len(muts) != 2 {
			t.Fatalf("expected 2 replacements for literal 0, got %d", len(muts))
		}

		if muts[0].TCon != -1 || muts[1].TCon != 1 {
			t.Errorf("expected -1 then 1, got %d then %d", muts[0].TCon, muts[1].TCon)
		}

		if muts[0].OpIndex != 0 {
			t.Errorf("expected operand index 0, got %d", muts[0].OpIndex)
		}
	})

	t.Run("comparison literal persists the predicate tag", func(t *testing.T) {
		in := &ir.Instr{Op: m.OpICmp, Name: "c", Ty: ir.I32, Pred: m.PredSGT,
			Args: []ir.Value{ir.Ref{Name: "x", Ty: ir.I32}, ir.Const{Ty: ir.I32, V: 10}}}

		muts := GenerateLVRMutations(in)
		if len(muts) != 5 {
			t.Fatalf("expected 5 replacements, got %d", len(muts))
		}

		for _, mut := range muts {
			if mut.Op != m.Opcode(m.PredSGT) {
				t.Errorf("comparison LVR should carry the predicate tag, got %d", mut.Op)
			}
		}
	})

	t.Run("store of a literal is a replacement site", func(t *testing.T) {
		in := &ir.Instr{Op: m.OpStore, Ty: ir.I32,
			Args: []ir.Value{ir.Const{Ty: ir.I32, V: 42}, ir.Ref{Name: "p", Ty: ir.Ptr}}}

		muts := GenerateLVRMutations(in)
		if len(muts) != 5 {
			t.Fatalf("expected 5 replacements for stored 42, got %d", len(muts))
		}

		want := []int64{41, 43, 0, 1, -1}
		for i, mut := range muts {
			if mut.TCon != want[i] || mut.SCon != 42 || mut.Op != m.OpStore {
				t.Errorf("bad store replacement: %+v", mut)
			}
		}
	})

	t.Run("non-literal operands produce nothing", func(t *testing.T) {
		in := &ir.Instr{Op: m.OpAdd, Name: "x", Ty: ir.I32,
			Args: []ir.Value{ir.Ref{Name: "a", Ty: ir.I32}, ir.Ref{Name: "b", Ty: ir.I32}}}

		if muts := GenerateLVRMutations(in); muts != nil {
			t.Errorf("expected no mutations, got %d", len(muts))
		}
	})
}

func TestGenerateSTDMutations(t *testing.T) {
	cases := []struct {
		ty  ir.Type
		tag m.TypeTag
	}{
		{ir.Void, m.TagVoid},
		{ir.I32, m.TagI32},
		{ir.I64, m.TagI64},
	}

	for _, tc := range cases {
		in := &ir.Instr{Op: m.OpCall, Ty: tc.ty, Callee: "log"}
		if tc.ty != ir.Void {
			in.Name = "r"
		}

		muts := GenerateSTDMutations(in)
		if len(muts) != 1 {
			t.Fatalf("expected 1 STD mutation for %s call, got %d", tc.ty, len(muts))
		}

		mut := muts[0]
		if mut.Kind != m.KindSTD || mut.Op != m.OpCall || mut.FTp != tc.tag {
			t.Errorf("bad STD record for %s: %+v", tc.ty, mut)
		}

		if mut.SCon != 0 || mut.TCon != 0 {
			t.Errorf("STD sentinel must be zero, got %d/%d", mut.SCon, mut.TCon)
		}
	}

	ptrCall := &ir.Instr{Op: m.OpCall, Name: "p", Ty: ir.Ptr, Callee: "allocish"}
	if muts := GenerateSTDMutations(ptrCall); muts != nil {
		t.Errorf("pointer-returning call should not be deletable, got %d", len(muts))
	}
}
