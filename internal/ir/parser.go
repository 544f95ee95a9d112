package ir

import (
	"fmt"
	"strconv"
	"strings"

	m "irmut.dev/pkg/irmut/internal/model"
)

// ParseError reports a syntax error with its line number.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ir: line %d: %s", e.Line, e.Msg)
}

type parser struct {
	mod  *Module
	fn   *Function
	blk  *Block
	line int
}

// Parse reads the text form of a module.
func Parse(src string) (*Module, error) {
	p := &parser{mod: &Module{}}

	for i, raw := range strings.Split(src, "\n") {
		p.line = i + 1

		line := raw
		if idx := strings.Index(line, ";"); idx >= 0 {
			line = line[:idx]
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := p.parseLine(line); err != nil {
			return nil, err
		}
	}

	if p.fn != nil {
		return nil, p.errf("unterminated function %q", p.fn.Name)
	}

	return p.mod, nil
}

func (p *parser) errf(format string, args ...any) error {
	return &ParseError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseLine(line string) error {
	switch {
	case strings.HasPrefix(line, "module "):
		p.mod.Name = strings.TrimSpace(strings.TrimPrefix(line, "module "))
		return nil
	case strings.HasPrefix(line, "global "):
		return p.parseGlobal(line)
	case strings.HasPrefix(line, "func "):
		return p.parseFuncHeader(line)
	case line == "}":
		if p.fn == nil {
			return p.errf("unexpected }")
		}

		p.fn, p.blk = nil, nil

		return nil
	case strings.HasSuffix(line, ":"):
		if p.fn == nil {
			return p.errf("label outside function")
		}

		p.blk = &Block{Label: strings.TrimSuffix(line, ":")}
		p.fn.Blocks = append(p.fn.Blocks, p.blk)

		return nil
	default:
		if p.blk == nil {
			return p.errf("instruction outside block: %s", line)
		}

		in, err := p.parseInstr(lexLine(line))
		if err != nil {
			return err
		}

		p.blk.Instrs = append(p.blk.Instrs, in)

		return nil
	}
}

// global @g i32 42
// global @msg str "text"
func (p *parser) parseGlobal(line string) error {
	toks := lexLine(line)
	if len(toks) < 4 || !strings.HasPrefix(toks[1], "@") {
		return p.errf("malformed global: %s", line)
	}

	g := &GlobalDef{Name: strings.TrimPrefix(toks[1], "@")}

	if toks[2] == "str" {
		if !strings.HasPrefix(toks[3], `"`) {
			return p.errf("malformed string global: %s", line)
		}

		g.IsStr = true
		g.Str = strings.Trim(toks[3], `"`)
	} else {
		ty, err := p.parseType(toks[2])
		if err != nil {
			return err
		}

		v, err := strconv.ParseInt(toks[3], 10, 64)
		if err != nil {
			return p.errf("malformed global initializer: %s", toks[3])
		}

		g.Ty, g.Init = ty, v
	}

	p.mod.Globals = append(p.mod.Globals, g)

	return nil
}

// func @name(i32 %a, i64 %b) i32 {
func (p *parser) parseFuncHeader(line string) error {
	if p.fn != nil {
		return p.errf("nested function")
	}

	if !strings.HasSuffix(line, "{") {
		return p.errf("missing { in function header")
	}

	toks := lexLine(strings.TrimSuffix(line, "{"))
	// toks: func @name ( [ty %p [, ty %p]...] ) retty
	if len(toks) < 5 || toks[0] != "func" || !strings.HasPrefix(toks[1], "@") || toks[2] != "(" {
		return p.errf("malformed function header: %s", line)
	}

	fn := &Function{Name: strings.TrimPrefix(toks[1], "@")}

	i := 3
	for toks[i] != ")" {
		if toks[i] == "," {
			i++
			continue
		}

		ty, err := p.parseType(toks[i])
		if err != nil {
			return err
		}

		if i+1 >= len(toks) || !strings.HasPrefix(toks[i+1], "%") {
			return p.errf("malformed parameter in %s", line)
		}

		fn.Params = append(fn.Params, Param{Name: strings.TrimPrefix(toks[i+1], "%"), Ty: ty})
		i += 2

		if i >= len(toks) {
			return p.errf("unterminated parameter list")
		}
	}

	if i+1 >= len(toks) {
		return p.errf("missing return type")
	}

	ret, err := p.parseType(toks[i+1])
	if err != nil {
		return err
	}

	fn.Ret = ret
	p.fn = fn
	p.blk = nil
	p.mod.Funcs = append(p.mod.Funcs, fn)

	return nil
}

func (p *parser) parseType(tok string) (Type, error) {
	switch tok {
	case "void":
		return Void, nil
	case "i1":
		return I1, nil
	case "i32":
		return I32, nil
	case "i64":
		return I64, nil
	case "ptr":
		return Ptr, nil
	}

	return Void, p.errf("unknown type %q", tok)
}

var opcodeByName = map[string]m.Opcode{
	"add": m.OpAdd, "sub": m.OpSub, "mul": m.OpMul,
	"udiv": m.OpUDiv, "sdiv": m.OpSDiv, "urem": m.OpURem, "srem": m.OpSRem,
	"shl": m.OpShl, "lshr": m.OpLShr, "ashr": m.OpAShr,
	"and": m.OpAnd, "or": m.OpOr, "xor": m.OpXor,
}

var predicateByName = map[string]m.Predicate{
	"eq": m.PredEQ, "ne": m.PredNE,
	"ugt": m.PredUGT, "uge": m.PredUGE, "ult": m.PredULT, "ule": m.PredULE,
	"sgt": m.PredSGT, "sge": m.PredSGE, "slt": m.PredSLT, "sle": m.PredSLE,
}

func (p *parser) parseInstr(toks []string) (*Instr, error) {
	name := ""
	if len(toks) >= 2 && strings.HasPrefix(toks[0], "%") && toks[1] == "=" {
		name = strings.TrimPrefix(toks[0], "%")
		toks = toks[2:]
	}

	if len(toks) == 0 {
		return nil, p.errf("empty instruction")
	}

	switch head := toks[0]; {
	case opcodeByName[head] != 0:
		return p.parseBinary(name, opcodeByName[head], toks[1:])
	case head == "icmp":
		return p.parseICmp(name, toks[1:])
	case head == "alloca":
		return p.parseAlloca(name, toks[1:])
	case head == "load":
		return p.parseLoad(name, toks[1:])
	case head == "store":
		return p.parseStore(name, toks[1:])
	case head == "call":
		return p.parseCall(name, toks[1:])
	case head == "trunc":
		return p.parseTrunc(name, toks[1:])
	case head == "phi":
		return p.parsePhi(name, toks[1:])
	case head == "br":
		return p.parseBr(name, toks[1:])
	case head == "ret":
		return p.parseRet(name, toks[1:])
	}

	return nil, p.errf("unknown instruction %q", toks[0])
}

func (p *parser) parseValue(tok string, ty Type) (Value, error) {
	switch {
	case strings.HasPrefix(tok, "%"):
		return Ref{Name: strings.TrimPrefix(tok, "%"), Ty: ty}, nil
	case strings.HasPrefix(tok, "@"):
		return Global{Name: strings.TrimPrefix(tok, "@")}, nil
	}

	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, p.errf("malformed operand %q", tok)
	}

	return Const{Ty: ty, V: v}, nil
}

// add i32 %a, %b
func (p *parser) parseBinary(name string, op m.Opcode, toks []string) (*Instr, error) {
	if len(toks) != 4 || toks[2] != "," {
		return nil, p.errf("malformed %s", op)
	}

	ty, err := p.parseType(toks[0])
	if err != nil {
		return nil, err
	}

	lhs, err := p.parseValue(toks[1], ty)
	if err != nil {
		return nil, err
	}

	rhs, err := p.parseValue(toks[3], ty)
	if err != nil {
		return nil, err
	}

	if name == "" {
		return nil, p.errf("%s must define a result", op)
	}

	return &Instr{Op: op, Name: name, Ty: ty, Args: []Value{lhs, rhs}}, nil
}

// icmp sgt i32 %a, %b
func (p *parser) parseICmp(name string, toks []string) (*Instr, error) {
	if len(toks) != 5 || toks[3] != "," {
		return nil, p.errf("malformed icmp")
	}

	pred, ok := predicateByName[toks[0]]
	if !ok {
		return nil, p.errf("unknown predicate %q", toks[0])
	}

	ty, err := p.parseType(toks[1])
	if err != nil {
		return nil, err
	}

	lhs, err := p.parseValue(toks[2], ty)
	if err != nil {
		return nil, err
	}

	rhs, err := p.parseValue(toks[4], ty)
	if err != nil {
		return nil, err
	}

	if name == "" {
		return nil, p.errf("icmp must define a result")
	}

	return &Instr{Op: m.OpICmp, Name: name, Ty: ty, Pred: pred, Args: []Value{lhs, rhs}}, nil
}

// alloca i32
func (p *parser) parseAlloca(name string, toks []string) (*Instr, error) {
	if len(toks) != 1 || name == "" {
		return nil, p.errf("malformed alloca")
	}

	ty, err := p.parseType(toks[0])
	if err != nil {
		return nil, err
	}

	return &Instr{Op: m.OpAlloca, Name: name, Ty: ty}, nil
}

// load i32, ptr %p
func (p *parser) parseLoad(name string, toks []string) (*Instr, error) {
	if len(toks) != 4 || toks[1] != "," || toks[2] != "ptr" || name == "" {
		return nil, p.errf("malformed load")
	}

	ty, err := p.parseType(toks[0])
	if err != nil {
		return nil, err
	}

	addr, err := p.parseValue(toks[3], Ptr)
	if err != nil {
		return nil, err
	}

	return &Instr{Op: m.OpLoad, Name: name, Ty: ty, Args: []Value{addr}}, nil
}

// store i32 %v, ptr %p
func (p *parser) parseStore(name string, toks []string) (*Instr, error) {
	if len(toks) != 5 || toks[2] != "," || toks[3] != "ptr" || name != "" {
		return nil, p.errf("malformed store")
	}

	ty, err := p.parseType(toks[0])
	if err != nil {
		return nil, err
	}

	val, err := p.parseValue(toks[1], ty)
	if err != nil {
		return nil, err
	}

	addr, err := p.parseValue(toks[4], Ptr)
	if err != nil {
		return nil, err
	}

	return &Instr{Op: m.OpStore, Ty: ty, Args: []Value{val, addr}}, nil
}

// call i32 @f(i32 %a, i64 %b)
func (p *parser) parseCall(name string, toks []string) (*Instr, error) {
	if len(toks) < 4 || !strings.HasPrefix(toks[1], "@") || toks[2] != "(" {
		return nil, p.errf("malformed call")
	}

	ty, err := p.parseType(toks[0])
	if err != nil {
		return nil, err
	}

	in := &Instr{Op: m.OpCall, Name: name, Ty: ty, Callee: strings.TrimPrefix(toks[1], "@")}

	i := 3
	for toks[i] != ")" {
		if toks[i] == "," {
			i++
			continue
		}

		aty, err := p.parseType(toks[i])
		if err != nil {
			return nil, err
		}

		if i+1 >= len(toks) {
			return nil, p.errf("unterminated call argument list")
		}

		arg, err := p.parseValue(toks[i+1], aty)
		if err != nil {
			return nil, err
		}

		in.Args = append(in.Args, arg)
		i += 2

		if i >= len(toks) {
			return nil, p.errf("unterminated call argument list")
		}
	}

	if ty == Void && name != "" {
		return nil, p.errf("void call cannot define a result")
	}

	return in, nil
}

// trunc i32 %x to i1
func (p *parser) parseTrunc(name string, toks []string) (*Instr, error) {
	if len(toks) != 4 || toks[2] != "to" || name == "" {
		return nil, p.errf("malformed trunc")
	}

	from, err := p.parseType(toks[0])
	if err != nil {
		return nil, err
	}

	v, err := p.parseValue(toks[1], from)
	if err != nil {
		return nil, err
	}

	to, err := p.parseType(toks[3])
	if err != nil {
		return nil, err
	}

	return &Instr{Op: m.OpTrunc, Name: name, Ty: to, Args: []Value{v}}, nil
}

// phi i32 [ %a, thenblk ], [ 0, elseblk ]
func (p *parser) parsePhi(name string, toks []string) (*Instr, error) {
	if len(toks) < 6 || name == "" {
		return nil, p.errf("malformed phi")
	}

	ty, err := p.parseType(toks[0])
	if err != nil {
		return nil, err
	}

	in := &Instr{Op: m.OpPhi, Name: name, Ty: ty}

	i := 1
	for i < len(toks) {
		if toks[i] == "," {
			i++
			continue
		}

		if toks[i] != "[" || i+4 >= len(toks) || toks[i+2] != "," || toks[i+4] != "]" {
			return nil, p.errf("malformed phi edge")
		}

		v, err := p.parseValue(toks[i+1], ty)
		if err != nil {
			return nil, err
		}

		in.Incoming = append(in.Incoming, PhiEdge{Val: v, Pred: toks[i+3]})
		i += 5
	}

	return in, nil
}

// br %c, then, else  |  br label
func (p *parser) parseBr(name string, toks []string) (*Instr, error) {
	if name != "" {
		return nil, p.errf("br cannot define a result")
	}

	switch len(toks) {
	case 1:
		return &Instr{Op: m.OpBr, Then: toks[0]}, nil
	case 5:
		if toks[1] != "," || toks[3] != "," {
			return nil, p.errf("malformed br")
		}

		cond, err := p.parseValue(toks[0], I1)
		if err != nil {
			return nil, err
		}

		return &Instr{Op: m.OpBr, Cond: cond, Then: toks[2], Else: toks[4]}, nil
	}

	return nil, p.errf("malformed br")
}

// ret i32 %v  |  ret void
func (p *parser) parseRet(name string, toks []string) (*Instr, error) {
	if name != "" {
		return nil, p.errf("ret cannot define a result")
	}

	if len(toks) == 1 && toks[0] == "void" {
		return &Instr{Op: m.OpRet, Ty: Void}, nil
	}

	if len(toks) != 2 {
		return nil, p.errf("malformed ret")
	}

	ty, err := p.parseType(toks[0])
	if err != nil {
		return nil, err
	}

	v, err := p.parseValue(toks[1], ty)
	if err != nil {
		return nil, err
	}

	return &Instr{Op: m.OpRet, Ty: ty, Args: []Value{v}}, nil
}

// lexLine splits an instruction line into word and symbol tokens; quoted
// strings stay single tokens.
func lexLine(line string) []string {
	var toks []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}

	inStr := false
	for _, r := range line {
		switch {
		case inStr:
			cur.WriteRune(r)
			if r == '"' {
				inStr = false
				flush()
			}
		case r == '"':
			flush()
			cur.WriteRune(r)
			inStr = true
		case r == ' ' || r == '\t':
			flush()
		case r == ',' || r == '(' || r == ')' || r == '[' || r == ']' || r == '=':
			flush()
			toks = append(toks, string(r))
		default:
			cur.WriteRune(r)
		}
	}

	flush()

	return toks
}
