// Package exec interprets IR modules. It is the process model behind the
// mutation runtime: a dispatcher fork clones the whole machine and runs
// the clone to completion before the parent resumes, giving each
// equivalence class its own copy-on-write lineage.
package exec

import (
	"errors"
	"fmt"
	"log/slog"

	"irmut.dev/pkg/irmut/internal/accrt"
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

// Reporter receives one record per completed forked lineage.
type Reporter func(m.MutantReport)

type frame struct {
	fn       *ir.Function
	regs     map[string]int64
	blockIdx int
	instrIdx int
	prev     string // predecessor label, for phi
	// resultReg is the caller-side register a callee's ret assigns into.
	resultReg string
}

func (f *frame) clone() *frame {
	c := *f
	c.regs = make(map[string]int64, len(f.regs))
	for k, v := range f.regs {
		c.regs[k] = v
	}

	return &c
}

type memory struct {
	cells map[int64]int64
	next  int64
}

func newMemory() *memory {
	return &memory{cells: make(map[int64]int64), next: 1}
}

func (mm *memory) alloc() int64 {
	addr := mm.next
	mm.next++
	mm.cells[addr] = 0

	return addr
}

func (mm *memory) clone() *memory {
	c := &memory{cells: make(map[int64]int64, len(mm.cells)), next: mm.next}
	for k, v := range mm.cells {
		c.cells[k] = v
	}

	return c
}

// pendingResult carries a dispatch value across a fork: the clone
// re-executes the in-flight dispatch call and completes it with this value
// instead of re-entering the dispatcher.
type pendingResult struct {
	v int64
}

// Machine executes one process of the fork tree.
type Machine struct {
	Mod *ir.Module
	Ctx *accrt.Context
	Out *ForkWriter
	// Env backs the @getenv_i32 builtin; shared and read-only.
	Env map[string]int64
	// Report collects completed fork lineages across the whole tree.
	Report Reporter

	mem     *memory
	globals map[string]int64 // global name -> cell address
	strs    map[string]string
	frames  []*frame
	pending *pendingResult

	exited bool
	exit   int
}

// NewMachine prepares the root process for mod with the given runtime
// context.
func NewMachine(mod *ir.Module, ctx *accrt.Context) (*Machine, error) {
	mach := &Machine{
		Mod:     mod,
		Ctx:     ctx,
		Out:     NewForkWriter(),
		Env:     make(map[string]int64),
		mem:     newMemory(),
		globals: make(map[string]int64),
		strs:    make(map[string]string),
	}

	for _, g := range mod.Globals {
		if g.IsStr {
			mach.strs[g.Name] = g.Str
			continue
		}

		addr := mach.mem.alloc()
		mach.mem.cells[addr] = g.Init
		mach.globals[g.Name] = addr
	}

	main := mod.Func("main")
	if main == nil {
		return nil, errors.New("exec: module has no main function")
	}

	mach.frames = []*frame{{fn: main, regs: make(map[string]int64)}}
	ctx.Proc = mach

	return mach, nil
}

// clone deep-copies the machine state for a fork. The module, string data
// and env are immutable and shared; memory, frames and the output view are
// copied.
func (mach *Machine) clone() *Machine {
	c := &Machine{
		Mod:     mach.Mod,
		Out:     mach.Out.Fork(),
		Env:     mach.Env,
		Report:  mach.Report,
		mem:     mach.mem.clone(),
		globals: mach.globals,
		strs:    mach.strs,
	}

	c.frames = make([]*frame, len(mach.frames))
	for i, f := range mach.frames {
		c.frames[i] = f.clone()
	}

	return c
}

// Fork implements accrt.Process: the child completes the in-flight
// dispatch call with result, runs to completion, and is reported.
func (mach *Machine) Fork(child *accrt.Context, result int64) (int, error) {
	cm := mach.clone()
	cm.Ctx = child
	child.Proc = cm
	cm.pending = &pendingResult{v: result}

	exit := cm.Run()

	if cm.Report != nil {
		cm.Report(m.MutantReport{
			MutationID:  child.MutationID,
			MutationIDs: child.ActiveIDs(),
			ExitCode:    exit,
			Output:      cm.Out.View(),
		})
	}

	return exit, nil
}

// Run executes until the process exits and returns its exit code.
func (mach *Machine) Run() int {
	for !mach.exited {
		if mach.Ctx.Expired() {
			slog.Debug("process timed out", "mutation", mach.Ctx.MutationID, "test", mach.Ctx.TestID)
			mach.halt(accrt.ExitTimeout)

			break
		}

		if len(mach.frames) == 0 {
			mach.halt(accrt.ExitOK)
			break
		}

		if err := mach.step(); err != nil {
			mach.haltOnError(err)
		}
	}

	return mach.exit
}

func (mach *Machine) halt(code int) {
	mach.exited = true
	mach.exit = code
}

func (mach *Machine) haltOnError(err error) {
	var opcodeErr *accrt.OpcodeError

	switch {
	case errors.As(err, &opcodeErr):
		slog.Error("opcode outside taxonomy", "error", err)
		mach.halt(accrt.ExitOpcode)
	case errors.Is(err, accrt.ErrFork):
		slog.Error("fork failed", "error", err)
		mach.halt(accrt.ExitForkFail)
	default:
		slog.Error("execution fault", "error", err)
		mach.halt(1)
	}
}

func (mach *Machine) top() *frame { return mach.frames[len(mach.frames)-1] }

func (mach *Machine) current() (*frame, *ir.Instr, error) {
	f := mach.top()
	if f.blockIdx >= len(f.fn.Blocks) {
		return nil, nil, fmt.Errorf("exec: fell off function %s", f.fn.Name)
	}

	blk := f.fn.Blocks[f.blockIdx]
	if f.instrIdx >= len(blk.Instrs) {
		return nil, nil, fmt.Errorf("exec: block %s:%s has no terminator", f.fn.Name, blk.Label)
	}

	return f, blk.Instrs[f.instrIdx], nil
}

// eval resolves an operand in the current frame.
func (mach *Machine) eval(f *frame, v ir.Value) (int64, error) {
	switch t := v.(type) {
	case ir.Const:
		return t.V, nil
	case ir.Ref:
		val, ok := f.regs[t.Name]
		if !ok {
			return 0, fmt.Errorf("exec: undefined register %%%s in %s", t.Name, f.fn.Name)
		}

		return val, nil
	case ir.Global:
		addr, ok := mach.globals[t.Name]
		if !ok {
			return 0, fmt.Errorf("exec: undefined global @%s", t.Name)
		}

		return addr, nil
	}

	return 0, fmt.Errorf("exec: unhandled operand %T", v)
}

func truncTo(ty ir.Type, v int64) int64 {
	switch ty {
	case ir.I1:
		return v & 1
	case ir.I32:
		return int64(int32(v))
	}

	return v
}

// advance moves past the current instruction.
func (f *frame) advance() { f.instrIdx++ }

// jump transfers control to a labeled block.
func (f *frame) jump(label string) error {
	for i, b := range f.fn.Blocks {
		if b.Label == label {
			f.prev = f.fn.Blocks[f.blockIdx].Label
			f.blockIdx = i
			f.instrIdx = 0

			return nil
		}
	}

	return fmt.Errorf("exec: unknown block %s in %s", label, f.fn.Name)
}

func (mach *Machine) step() error {
	f, in, err := mach.current()
	if err != nil {
		return err
	}

	mach.Ctx.Steps++

	switch {
	case in.Op.IsArith():
		return mach.stepArith(f, in)
	case in.Op == m.OpICmp:
		return mach.stepICmp(f, in)
	case in.Op == m.OpAlloca:
		f.regs[in.Name] = mach.mem.alloc()
		f.advance()
	case in.Op == m.OpLoad:
		addr, err := mach.eval(f, in.Args[0])
		if err != nil {
			return err
		}

		v, ok := mach.mem.cells[addr]
		if !ok {
			return fmt.Errorf("exec: load from unmapped address %d", addr)
		}

		f.regs[in.Name] = truncTo(in.Ty, v)
		f.advance()
	case in.Op == m.OpStore:
		v, err := mach.eval(f, in.Args[0])
		if err != nil {
			return err
		}

		addr, err := mach.eval(f, in.Args[1])
		if err != nil {
			return err
		}

		mach.mem.cells[addr] = truncTo(in.Ty, v)
		f.advance()
	case in.Op == m.OpTrunc:
		v, err := mach.eval(f, in.Args[0])
		if err != nil {
			return err
		}

		f.regs[in.Name] = truncTo(in.Ty, v)
		f.advance()
	case in.Op == m.OpPhi:
		return mach.stepPhi(f, in)
	case in.Op == m.OpBr:
		return mach.stepBr(f, in)
	case in.Op == m.OpRet:
		return mach.stepRet(f, in)
	case in.Op == m.OpCall:
		return mach.stepCall(f, in)
	default:
		return &accrt.OpcodeError{Op: int(in.Op)}
	}

	return nil
}

func (mach *Machine) stepArith(f *frame, in *ir.Instr) error {
	l, err := mach.eval(f, in.Args[0])
	if err != nil {
		return err
	}

	r, err := mach.eval(f, in.Args[1])
	if err != nil {
		return err
	}

	var v int64

	if in.Ty == ir.I32 {
		v32, cerr := accrt.CalI32Arith(in.Op, int32(l), int32(r))
		if cerr != nil {
			return cerr
		}

		v = int64(v32)
	} else {
		v, err = accrt.CalI64Arith(in.Op, l, r)
		if err != nil {
			return err
		}
	}

	f.regs[in.Name] = v
	f.advance()

	return nil
}

func (mach *Machine) stepICmp(f *frame, in *ir.Instr) error {
	l, err := mach.eval(f, in.Args[0])
	if err != nil {
		return err
	}

	r, err := mach.eval(f, in.Args[1])
	if err != nil {
		return err
	}

	var v int32

	if in.Ty == ir.I32 {
		v, err = accrt.CalI32Bool(in.Pred, int32(l), int32(r))
	} else {
		v, err = accrt.CalI64Bool(in.Pred, l, r)
	}

	if err != nil {
		return err
	}

	f.regs[in.Name] = int64(v)
	f.advance()

	return nil
}

func (mach *Machine) stepPhi(f *frame, in *ir.Instr) error {
	for _, e := range in.Incoming {
		if e.Pred != f.prev {
			continue
		}

		v, err := mach.eval(f, e.Val)
		if err != nil {
			return err
		}

		f.regs[in.Name] = truncTo(in.Ty, v)
		f.advance()

		return nil
	}

	return fmt.Errorf("exec: phi in %s has no edge for predecessor %q", f.fn.Name, f.prev)
}

func (mach *Machine) stepBr(f *frame, in *ir.Instr) error {
	if in.Cond == nil {
		return f.jump(in.Then)
	}

	c, err := mach.eval(f, in.Cond)
	if err != nil {
		return err
	}

	if c&1 != 0 {
		return f.jump(in.Then)
	}

	return f.jump(in.Else)
}

func (mach *Machine) stepRet(f *frame, in *ir.Instr) error {
	var v int64

	if in.Ty != ir.Void {
		var err error

		v, err = mach.eval(f, in.Args[0])
		if err != nil {
			return err
		}
	}

	mach.frames = mach.frames[:len(mach.frames)-1]

	if len(mach.frames) == 0 {
		mach.halt(int(v) & 0xff)
		return nil
	}

	caller := mach.top()
	if caller.resultReg != "" {
		caller.regs[caller.resultReg] = v
		caller.resultReg = ""
	}

	caller.advance()

	return nil
}
