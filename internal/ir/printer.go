package ir

import (
	"fmt"
	"strings"

	m "irmut.dev/pkg/irmut/internal/model"
)

// Print renders the module in its text form. Parse(Print(mod)) reproduces
// the module.
func Print(mod *Module) string {
	var b strings.Builder

	if mod.Name != "" {
		fmt.Fprintf(&b, "module %s\n\n", mod.Name)
	}

	for _, g := range mod.Globals {
		if g.IsStr {
			fmt.Fprintf(&b, "global @%s str %q\n", g.Name, g.Str)
		} else {
			fmt.Fprintf(&b, "global @%s %s %d\n", g.Name, g.Ty, g.Init)
		}
	}

	if len(mod.Globals) > 0 {
		b.WriteString("\n")
	}

	for i, f := range mod.Funcs {
		if i > 0 {
			b.WriteString("\n")
		}

		printFunc(&b, f)
	}

	return b.String()
}

func printFunc(b *strings.Builder, f *Function) {
	params := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		params = append(params, fmt.Sprintf("%s %%%s", p.Ty, p.Name))
	}

	fmt.Fprintf(b, "func @%s(%s) %s {\n", f.Name, strings.Join(params, ", "), f.Ret)

	for _, blk := range f.Blocks {
		fmt.Fprintf(b, "%s:\n", blk.Label)
		for _, in := range blk.Instrs {
			fmt.Fprintf(b, "  %s\n", FormatInstr(in))
		}
	}

	b.WriteString("}\n")
}

func operand(v Value) string { return v.vstring() }

// FormatInstr renders a single instruction line (without indentation).
func FormatInstr(in *Instr) string {
	var b strings.Builder

	if in.HasResult() {
		fmt.Fprintf(&b, "%%%s = ", in.Name)
	}

	switch {
	case in.Op.IsArith():
		fmt.Fprintf(&b, "%s %s %s, %s", in.Op, in.Ty, operand(in.Args[0]), operand(in.Args[1]))
	case in.Op == m.OpICmp:
		fmt.Fprintf(&b, "icmp %s %s %s, %s", in.Pred, in.Ty, operand(in.Args[0]), operand(in.Args[1]))
	case in.Op == m.OpAlloca:
		fmt.Fprintf(&b, "alloca %s", in.Ty)
	case in.Op == m.OpLoad:
		fmt.Fprintf(&b, "load %s, ptr %s", in.Ty, operand(in.Args[0]))
	case in.Op == m.OpStore:
		fmt.Fprintf(&b, "store %s %s, ptr %s", in.Ty, operand(in.Args[0]), operand(in.Args[1]))
	case in.Op == m.OpCall:
		args := make([]string, 0, len(in.Args))
		for _, a := range in.Args {
			args = append(args, fmt.Sprintf("%s %s", valueType(a), operand(a)))
		}

		fmt.Fprintf(&b, "call %s @%s(%s)", in.Ty, in.Callee, strings.Join(args, ", "))
	case in.Op == m.OpTrunc:
		fmt.Fprintf(&b, "trunc %s %s to %s", valueType(in.Args[0]), operand(in.Args[0]), in.Ty)
	case in.Op == m.OpPhi:
		edges := make([]string, 0, len(in.Incoming))
		for _, e := range in.Incoming {
			edges = append(edges, fmt.Sprintf("[ %s, %s ]", operand(e.Val), e.Pred))
		}

		fmt.Fprintf(&b, "phi %s %s", in.Ty, strings.Join(edges, ", "))
	case in.Op == m.OpBr && in.Cond != nil:
		fmt.Fprintf(&b, "br %s, %s, %s", operand(in.Cond), in.Then, in.Else)
	case in.Op == m.OpBr:
		fmt.Fprintf(&b, "br %s", in.Then)
	case in.Op == m.OpRet && in.Ty == Void:
		b.WriteString("ret void")
	case in.Op == m.OpRet:
		fmt.Fprintf(&b, "ret %s %s", in.Ty, operand(in.Args[0]))
	default:
		fmt.Fprintf(&b, "<%s?>", in.Op)
	}

	return b.String()
}

func valueType(v Value) Type {
	switch t := v.(type) {
	case Const:
		return t.Ty
	case Ref:
		return t.Ty
	case Global:
		return Ptr
	}

	return Void
}
