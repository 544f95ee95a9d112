package exec

import (
	"fmt"

	"irmut.dev/pkg/irmut/internal/instrument"
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

func (mach *Machine) stepCall(f *frame, in *ir.Instr) error {
	switch in.Callee {
	case instrument.FnProcessI32Arith:
		return mach.dispatchArith(f, in, ir.I32)
	case instrument.FnProcessI64Arith:
		return mach.dispatchArith(f, in, ir.I64)
	case instrument.FnProcessI32Cmp:
		return mach.dispatchCmp(f, in, ir.I32)
	case instrument.FnProcessI64Cmp:
		return mach.dispatchCmp(f, in, ir.I64)
	case instrument.FnPrepareStI32:
		return mach.dispatchPrepareSt(f, in, ir.I32)
	case instrument.FnPrepareStI64:
		return mach.dispatchPrepareSt(f, in, ir.I64)
	case instrument.FnPrepareCall:
		return mach.dispatchPrepareCall(f, in)
	case instrument.FnStdcallI32, instrument.FnStdcallI64, instrument.FnStdcallVoid:
		return mach.dispatchStdcall(f, in)
	case "print_i32", "print_i64":
		return mach.builtinPrintInt(f, in)
	case "print_str":
		return mach.builtinPrintStr(f, in)
	case "getenv_i32":
		return mach.builtinGetenv(f, in)
	}

	return mach.callFunction(f, in)
}

func (mach *Machine) takePending() (int64, bool) {
	if mach.pending == nil {
		return 0, false
	}

	v := mach.pending.v
	mach.pending = nil

	return v, true
}

// dispatchRange evaluates the leading (from, to) arguments every dispatch
// call carries.
func (mach *Machine) dispatchRange(f *frame, in *ir.Instr) (from, to int, err error) {
	fv, err := mach.eval(f, in.Args[0])
	if err != nil {
		return 0, 0, err
	}

	tv, err := mach.eval(f, in.Args[1])
	if err != nil {
		return 0, 0, err
	}

	return int(fv), int(tv), nil
}

func (mach *Machine) dispatchArith(f *frame, in *ir.Instr, width ir.Type) error {
	if v, ok := mach.takePending(); ok {
		f.regs[in.Name] = truncTo(width, v)
		f.advance()

		return nil
	}

	from, to, err := mach.dispatchRange(f, in)
	if err != nil {
		return err
	}

	l, err := mach.eval(f, in.Args[2])
	if err != nil {
		return err
	}

	r, err := mach.eval(f, in.Args[3])
	if err != nil {
		return err
	}

	var v int64

	if width == ir.I32 {
		v32, derr := mach.Ctx.ProcessI32Arith(from, to, int32(l), int32(r))
		if derr != nil {
			return derr
		}

		v = int64(v32)
	} else {
		v, err = mach.Ctx.ProcessI64Arith(from, to, l, r)
		if err != nil {
			return err
		}
	}

	f.regs[in.Name] = v
	f.advance()

	return nil
}

func (mach *Machine) dispatchCmp(f *frame, in *ir.Instr, width ir.Type) error {
	if v, ok := mach.takePending(); ok {
		f.regs[in.Name] = v & 1
		f.advance()

		return nil
	}

	from, to, err := mach.dispatchRange(f, in)
	if err != nil {
		return err
	}

	l, err := mach.eval(f, in.Args[2])
	if err != nil {
		return err
	}

	r, err := mach.eval(f, in.Args[3])
	if err != nil {
		return err
	}

	var v int32

	if width == ir.I32 {
		v, err = mach.Ctx.ProcessI32Cmp(from, to, int32(l), int32(r))
	} else {
		v, err = mach.Ctx.ProcessI64Cmp(from, to, l, r)
	}

	if err != nil {
		return err
	}

	f.regs[in.Name] = int64(v)
	f.advance()

	return nil
}

func (mach *Machine) dispatchPrepareSt(f *frame, in *ir.Instr, width ir.Type) error {
	addr, err := mach.eval(f, in.Args[3])
	if err != nil {
		return err
	}

	if v, ok := mach.takePending(); ok {
		mach.mem.cells[addr] = truncTo(width, v)
		f.regs[in.Name] = 0
		f.advance()

		return nil
	}

	from, to, err := mach.dispatchRange(f, in)
	if err != nil {
		return err
	}

	val, err := mach.eval(f, in.Args[2])
	if err != nil {
		return err
	}

	performed, out, err := mach.Ctx.PrepareStore(from, to, val)
	if err != nil {
		return err
	}

	if performed {
		mach.mem.cells[addr] = truncTo(width, out)
		f.regs[in.Name] = 0
	} else {
		f.regs[in.Name] = 1
	}

	f.advance()

	return nil
}

func (mach *Machine) dispatchPrepareCall(f *frame, in *ir.Instr) error {
	if v, ok := mach.takePending(); ok {
		f.regs[in.Name] = v
		f.advance()

		return nil
	}

	from, to, err := mach.dispatchRange(f, in)
	if err != nil {
		return err
	}

	cnt, err := mach.eval(f, in.Args[2])
	if err != nil {
		return err
	}

	recs := make([]m.OperandRecord, 0, cnt)

	for i := 0; i < int(cnt); i++ {
		tagv, err := mach.eval(f, in.Args[3+2*i])
		if err != nil {
			return err
		}

		addr, err := mach.eval(f, in.Args[4+2*i])
		if err != nil {
			return err
		}

		tag, idx := m.UnpackTag(int16(tagv))
		recs = append(recs, m.OperandRecord{Tag: tag, Idx: idx, Addr: addr})
	}

	substitute, err := mach.Ctx.PrepareCall(from, to, recs)
	if err != nil {
		return err
	}

	if substitute {
		f.regs[in.Name] = 1
	} else {
		f.regs[in.Name] = 0
	}

	f.advance()

	return nil
}

func (mach *Machine) dispatchStdcall(f *frame, in *ir.Instr) error {
	v := mach.Ctx.Stdcall()

	if in.HasResult() {
		f.regs[in.Name] = truncTo(in.Ty, v)
	}

	f.advance()

	return nil
}

func (mach *Machine) builtinPrintInt(f *frame, in *ir.Instr) error {
	if len(in.Args) != 1 {
		return fmt.Errorf("exec: %s wants 1 argument", in.Callee)
	}

	v, err := mach.eval(f, in.Args[0])
	if err != nil {
		return err
	}

	if in.Callee == "print_i32" {
		fmt.Fprintf(mach.Out, "%d\n", int32(v))
	} else {
		fmt.Fprintf(mach.Out, "%d\n", v)
	}

	f.advance()

	return nil
}

func (mach *Machine) builtinPrintStr(f *frame, in *ir.Instr) error {
	g, ok := in.Args[0].(ir.Global)
	if !ok {
		return fmt.Errorf("exec: print_str wants a string global")
	}

	s, ok := mach.strs[g.Name]
	if !ok {
		return fmt.Errorf("exec: @%s is not a string global", g.Name)
	}

	fmt.Fprintln(mach.Out, s)
	f.advance()

	return nil
}

func (mach *Machine) builtinGetenv(f *frame, in *ir.Instr) error {
	g, ok := in.Args[0].(ir.Global)
	if !ok {
		return fmt.Errorf("exec: getenv_i32 wants a global name")
	}

	f.regs[in.Name] = mach.Env[g.Name]
	f.advance()

	return nil
}

func (mach *Machine) callFunction(f *frame, in *ir.Instr) error {
	callee := mach.Mod.Func(in.Callee)
	if callee == nil {
		return fmt.Errorf("exec: call to undefined function @%s", in.Callee)
	}

	if len(in.Args) != len(callee.Params) {
		return fmt.Errorf("exec: @%s wants %d arguments, got %d", in.Callee, len(callee.Params), len(in.Args))
	}

	nf := &frame{fn: callee, regs: make(map[string]int64, len(callee.Params))}

	for i, p := range callee.Params {
		v, err := mach.eval(f, in.Args[i])
		if err != nil {
			return err
		}

		nf.regs[p.Name] = truncTo(p.Ty, v)
	}

	f.resultReg = in.Name
	mach.frames = append(mach.frames, nf)

	return nil
}
