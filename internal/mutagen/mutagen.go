// Package mutagen enumerates candidate mutations for IR functions under
// the AOR/LOR/COR/ROR/SOR/STD/LVR taxonomy.
package mutagen

import (
	"fmt"
	"log/slog"

	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

// Generator walks IR and assigns dense, process-global mutation ids in
// visit order. All mutations of one instruction are emitted before the
// walk moves on, so every site owns a contiguous id run.
type Generator struct {
	nextID int
}

// NewGenerator returns a Generator whose first assigned id is 1.
func NewGenerator() *Generator {
	return &Generator{nextID: 1}
}

// Module emits the complete candidate list for every function in mod.
func (g *Generator) Module(mod *ir.Module) ([]m.Mutation, error) {
	var muts []m.Mutation

	for _, fn := range mod.Funcs {
		fm, err := g.Function(fn)
		if err != nil {
			return nil, err
		}

		muts = append(muts, fm...)
	}

	return muts, nil
}

// Function emits the candidate list for one function in instruction order.
func (g *Generator) Function(fn *ir.Function) ([]m.Mutation, error) {
	var muts []m.Mutation

	for idx, in := range fn.Instructions() {
		site := g.instruction(fn, idx, in)
		if len(site) >= m.MaxMutPerLocation {
			return nil, fmt.Errorf("mutagen: %d mutations at %s#%d exceed the per-site limit %d",
				len(site), fn.Name, idx, m.MaxMutPerLocation)
		}

		muts = append(muts, site...)
	}

	slog.Debug("generated mutations", "function", fn.Name, "count", len(muts))

	return muts, nil
}

// instruction emits all mutations for one site, grouped by kind in the
// fixed order AOR, LOR, ROR, SOR, COR, STD, LVR.
func (g *Generator) instruction(fn *ir.Function, idx int, in *ir.Instr) []m.Mutation {
	var muts []m.Mutation

	emit := func(batch []m.Mutation) {
		for _, mut := range batch {
			mut.ID = g.nextID
			g.nextID++
			mut.Function = fn.Name
			mut.Index = idx
			muts = append(muts, mut)
		}
	}

	emit(GenerateAORMutations(in))
	emit(GenerateLORMutations(in))
	emit(GenerateRORMutations(in))
	emit(GenerateSORMutations(in))
	emit(GenerateCORMutations(in))
	emit(GenerateSTDMutations(in))
	emit(GenerateLVRMutations(in))

	return muts
}

func intType(t ir.Type) bool {
	return t == ir.I32 || t == ir.I64
}
