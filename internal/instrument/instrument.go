// Package instrument rewrites IR functions so each mutable instruction
// becomes a dispatch call into the runtime carrying its catalog id range.
package instrument

import (
	"errors"
	"fmt"
	"log/slog"

	"irmut.dev/pkg/irmut/internal/catalog"
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

// Runtime entry points inserted by the rewriter.
const (
	FnProcessI32Arith = "__process_i32_arith"
	FnProcessI64Arith = "__process_i64_arith"
	FnProcessI32Cmp   = "__process_i32_cmp"
	FnProcessI64Cmp   = "__process_i64_cmp"
	FnPrepareStI32    = "__prepare_st_i32"
	FnPrepareStI64    = "__prepare_st_i64"
	FnPrepareCall     = "__prepare_call"
	FnStdcallI32      = "__stdcall_i32"
	FnStdcallI64      = "__stdcall_i64"
	FnStdcallVoid     = "__stdcall_void"
)

// ErrLocation reports that a mutable instruction was not where the
// location protocol computed it to be.
var ErrLocation = errors.New("instrument: site location mismatch")

// Module rewrites every function that has catalog entries. The module is
// modified in place.
func Module(mod *ir.Module, store *catalog.Store) error {
	for _, fn := range mod.Funcs {
		sites := store.Sites(fn.Name)
		if len(sites) == 0 {
			continue
		}

		if err := function(fn, sites); err != nil {
			return err
		}
	}

	return nil
}

// function applies per-site rewrites. instrumented counts instructions the
// rewriter itself has inserted so far; a site with original index k now
// lives at linear position k+instrumented. Every insertion path below must
// keep the counter exact or later lookups land on the wrong instruction.
func function(fn *ir.Function, sites [][]m.Mutation) error {
	instrumented := 0

	for _, site := range sites {
		if len(site) >= m.MaxMutPerLocation {
			return fmt.Errorf("instrument: %d mutations at %s#%d exceed the per-site limit %d",
				len(site), fn.Name, site[0].Index, m.MaxMutPerLocation)
		}

		from, to := site[0].ID, site[len(site)-1].ID

		blk, off, in, ok := fn.Locate(site[0].Index + instrumented)
		if !ok {
			return fmt.Errorf("%w: %s#%d not found", ErrLocation, fn.Name, site[0].Index)
		}

		slog.Debug("instrumenting site",
			"function", fn.Name, "index", site[0].Index, "from", from, "to", to, "op", in.Op)

		var added int
		var err error

		switch {
		case in.Op.IsArith():
			added, err = rewriteArith(in, from, to)
		case in.Op == m.OpICmp:
			added, err = rewriteCmp(blk, off, in, from, to)
		case in.Op == m.OpStore:
			added, err = rewriteStore(fn, blk, off, in, from, to)
		case in.Op == m.OpCall:
			added, err = rewriteCall(fn, blk, off, in, from, to)
		default:
			err = fmt.Errorf("%w: %s#%d is %s, not mutable", ErrLocation, fn.Name, site[0].Index, in.Op)
		}

		if err != nil {
			return err
		}

		instrumented += added
	}

	return nil
}

func widthSuffix(t ir.Type) (string, error) {
	switch t {
	case ir.I32:
		return "i32", nil
	case ir.I64:
		return "i64", nil
	}

	return "", fmt.Errorf("instrument: unsupported operand type %s", t)
}

func rangeArgs(from, to int) []ir.Value {
	return []ir.Value{
		ir.Const{Ty: ir.I32, V: int64(from)},
		ir.Const{Ty: ir.I32, V: int64(to)},
	}
}

// rewriteArith replaces the instruction with a dispatch call producing the
// same register. Nothing is inserted.
func rewriteArith(in *ir.Instr, from, to int) (int, error) {
	suffix, err := widthSuffix(in.Ty)
	if err != nil {
		return 0, err
	}

	args := append(rangeArgs(from, to), in.Args[0], in.Args[1])

	*in = ir.Instr{
		Op:     m.OpCall,
		Name:   in.Name,
		Ty:     in.Ty,
		Callee: "__process_" + suffix + "_arith",
		Args:   args,
	}

	return 0, nil
}

// rewriteCmp inserts a dispatch call returning i32 and turns the original
// comparison into a trunc of it. One instruction is inserted.
func rewriteCmp(blk *ir.Block, off int, in *ir.Instr, from, to int) (int, error) {
	suffix, err := widthSuffix(in.Ty)
	if err != nil {
		return 0, err
	}

	wide := in.Name + ".cmp"
	call := &ir.Instr{
		Op:     m.OpCall,
		Name:   wide,
		Ty:     ir.I32,
		Callee: "__process_" + suffix + "_cmp",
		Args:   append(rangeArgs(from, to), in.Args[0], in.Args[1]),
	}

	insertBefore(blk, off, call)

	*in = ir.Instr{
		Op:   m.OpTrunc,
		Name: in.Name,
		Ty:   ir.I1,
		Args: []ir.Value{ir.Ref{Name: wide, Ty: ir.I32}},
	}

	return 1, nil
}

// hoistConst loads a constant operand through an alloca+store+load triple
// so the dispatcher has an address to publish results through. Three
// instructions are inserted; the returned ref replaces the constant.
func hoistConst(blk *ir.Block, off int, cons ir.Const, tag string) (ir.Ref, int) {
	cell := tag + ".cons"
	loaded := tag + ".load"

	insertBefore(blk, off,
		&ir.Instr{Op: m.OpAlloca, Name: cell, Ty: cons.Ty},
		&ir.Instr{Op: m.OpStore, Ty: cons.Ty, Args: []ir.Value{cons, ir.Ref{Name: cell, Ty: ir.Ptr}}},
		&ir.Instr{Op: m.OpLoad, Name: loaded, Ty: cons.Ty, Args: []ir.Value{ir.Ref{Name: cell, Ty: ir.Ptr}}},
	)

	return ir.Ref{Name: loaded, Ty: cons.Ty}, 3
}

// rewriteStore guards the store behind __prepare_st: return 0 means the
// dispatcher already performed it, nonzero means the original store must
// still run.
func rewriteStore(fn *ir.Function, blk *ir.Block, off int, in *ir.Instr, from, to int) (int, error) {
	suffix, err := widthSuffix(in.Ty)
	if err != nil {
		return 0, err
	}

	added := 0
	tag := fmt.Sprintf("m%d", from)

	if cons, ok := in.Args[0].(ir.Const); ok {
		ref, n := hoistConst(blk, off, cons, tag)
		in.Args[0] = ref
		off += n
		added += n
	}

	pre := tag + ".pre"
	need := tag + ".need"

	insertBefore(blk, off,
		&ir.Instr{
			Op:     m.OpCall,
			Name:   pre,
			Ty:     ir.I32,
			Callee: "__prepare_st_" + suffix,
			Args:   append(rangeArgs(from, to), in.Args[0], in.Args[1]),
		},
		&ir.Instr{
			Op:   m.OpICmp,
			Name: need,
			Ty:   ir.I32,
			Pred: m.PredNE,
			Args: []ir.Value{ir.Ref{Name: pre, Ty: ir.I32}, ir.Const{Ty: ir.I32, V: 0}},
		},
	)
	off += 2
	added += 2

	// Split: the store moves into its own guarded block.
	thenBlk := &ir.Block{Label: tag + ".st"}
	endBlk := &ir.Block{Label: tag + ".end"}

	endBlk.Instrs = append(endBlk.Instrs, blk.Instrs[off+1:]...)

	st := *in
	thenBlk.Instrs = []*ir.Instr{&st, {Op: m.OpBr, Then: endBlk.Label}}

	blk.Instrs = blk.Instrs[:off]
	blk.Instrs = append(blk.Instrs, &ir.Instr{
		Op:   m.OpBr,
		Cond: ir.Ref{Name: need, Ty: ir.I1},
		Then: thenBlk.Label,
		Else: endBlk.Label,
	})

	insertBlocksAfter(fn, blk, thenBlk, endBlk)
	added += 2 // the conditional branch and the guarded block's jump

	return added, nil
}

// rewriteCall wraps the call in a prepare/stdcall diamond implementing
// statement deletion.
func rewriteCall(fn *ir.Function, blk *ir.Block, off int, in *ir.Instr, from, to int) (int, error) {
	added := 0
	tag := fmt.Sprintf("m%d", from)

	// Hoist constant integer arguments and build the operand records the
	// dispatcher may rewrite.
	var params []ir.Value

	records := 0

	for i, arg := range in.Args {
		var (
			t    m.TypeTag
			addr ir.Value
		)

		switch a := arg.(type) {
		case ir.Const:
			if a.Ty != ir.I32 && a.Ty != ir.I64 {
				continue
			}

			ref, n := hoistConst(blk, off, a, fmt.Sprintf("%s.a%d", tag, i))
			in.Args[i] = ref
			off += n
			added += n
			t, addr = typeTagOf(a.Ty), ir.Ref{Name: fmt.Sprintf("%s.a%d.cons", tag, i), Ty: ir.Ptr}
		case ir.Ref:
			def := definingLoad(fn, a.Name)
			if def == nil || (a.Ty != ir.I32 && a.Ty != ir.I64) {
				continue
			}

			t, addr = typeTagOf(a.Ty), def.Args[0]
		default:
			continue
		}

		params = append(params, ir.Const{Ty: ir.I32, V: int64(m.PackTag(t, i))}, addr)
		records++
	}

	pre := tag + ".pre"
	orig := tag + ".has"

	preArgs := append(rangeArgs(from, to), ir.Const{Ty: ir.I32, V: int64(records)})
	preArgs = append(preArgs, params...)

	insertBefore(blk, off,
		&ir.Instr{Op: m.OpCall, Name: pre, Ty: ir.I32, Callee: FnPrepareCall, Args: preArgs},
		&ir.Instr{
			Op:   m.OpICmp,
			Name: orig,
			Ty:   ir.I32,
			Pred: m.PredEQ,
			Args: []ir.Value{ir.Ref{Name: pre, Ty: ir.I32}, ir.Const{Ty: ir.I32, V: 0}},
		},
	)
	off += 2
	added += 2

	thenBlk := &ir.Block{Label: tag + ".then"}
	elseBlk := &ir.Block{Label: tag + ".else"}
	endBlk := &ir.Block{Label: tag + ".end"}

	endBlk.Instrs = append(endBlk.Instrs, blk.Instrs[off+1:]...)

	voidCall := in.Ty == ir.Void

	clone := *in
	cloneName := tag + ".call"
	stdName := tag + ".std"

	var stdcall *ir.Instr

	switch in.Ty {
	case ir.Void:
		stdcall = &ir.Instr{Op: m.OpCall, Ty: ir.Void, Callee: FnStdcallVoid}
	case ir.I32:
		clone.Name = cloneName
		stdcall = &ir.Instr{Op: m.OpCall, Name: stdName, Ty: ir.I32, Callee: FnStdcallI32}
	case ir.I64:
		clone.Name = cloneName
		stdcall = &ir.Instr{Op: m.OpCall, Name: stdName, Ty: ir.I64, Callee: FnStdcallI64}
	default:
		return 0, fmt.Errorf("instrument: call return type %s not supported", in.Ty)
	}

	thenBlk.Instrs = []*ir.Instr{&clone, {Op: m.OpBr, Then: endBlk.Label}}
	elseBlk.Instrs = []*ir.Instr{stdcall, {Op: m.OpBr, Then: endBlk.Label}}

	blk.Instrs = blk.Instrs[:off]
	blk.Instrs = append(blk.Instrs, &ir.Instr{
		Op:   m.OpBr,
		Cond: ir.Ref{Name: orig, Ty: ir.I1},
		Then: thenBlk.Label,
		Else: elseBlk.Label,
	})

	if !voidCall {
		phi := &ir.Instr{
			Op:   m.OpPhi,
			Name: in.Name,
			Ty:   in.Ty,
			Incoming: []ir.PhiEdge{
				{Val: ir.Ref{Name: cloneName, Ty: in.Ty}, Pred: thenBlk.Label},
				{Val: ir.Ref{Name: stdName, Ty: in.Ty}, Pred: elseBlk.Label},
			},
		}
		endBlk.Instrs = append([]*ir.Instr{phi}, endBlk.Instrs...)
	}

	insertBlocksAfter(fn, blk, thenBlk, elseBlk, endBlk)

	// prepare + icmp are counted above; the diamond adds the conditional
	// branch, two block jumps and the stdcall, plus the phi for non-void.
	if voidCall {
		added += 4
	} else {
		added += 5
	}

	return added, nil
}

func typeTagOf(t ir.Type) m.TypeTag {
	if t == ir.I64 {
		return m.TagI64
	}

	return m.TagI32
}

// definingLoad returns the load instruction defining the named register,
// or nil when the register is not load-defined.
func definingLoad(fn *ir.Function, name string) *ir.Instr {
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.Name == name {
				if in.Op == m.OpLoad {
					return in
				}

				return nil
			}
		}
	}

	return nil
}

func insertBefore(blk *ir.Block, off int, ins ...*ir.Instr) {
	rest := append([]*ir.Instr{}, blk.Instrs[off:]...)
	blk.Instrs = append(blk.Instrs[:off], append(ins, rest...)...)
}

func insertBlocksAfter(fn *ir.Function, after *ir.Block, blocks ...*ir.Block) {
	for i, b := range fn.Blocks {
		if b != after {
			continue
		}

		rest := append([]*ir.Block{}, fn.Blocks[i+1:]...)
		fn.Blocks = append(fn.Blocks[:i+1], append(blocks, rest...)...)

		return
	}
}
