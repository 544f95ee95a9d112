package instrument

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irmut.dev/pkg/irmut/internal/catalog"
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
	"irmut.dev/pkg/irmut/internal/mutagen"
)

func prepare(t *testing.T, src string) (*ir.Module, *catalog.Store) {
	t.Helper()

	mod, err := ir.Parse(src)
	require.NoError(t, err)

	muts, err := mutagen.NewGenerator().Module(mod)
	require.NoError(t, err)

	store, err := catalog.NewStore(muts)
	require.NoError(t, err)

	return mod, store
}

func dispatchCalls(fn *ir.Function) []*ir.Instr {
	var calls []*ir.Instr

	for _, in := range fn.Instructions() {
		if in.Op == m.OpCall && strings.HasPrefix(in.Callee, "__") {
			calls = append(calls, in)
		}
	}

	return calls
}

func constArg(t *testing.T, in *ir.Instr, idx int) int64 {
	t.Helper()

	c, ok := in.Args[idx].(ir.Const)
	require.True(t, ok, "argument %d of %s should be constant", idx, in.Callee)

	return c.V
}

func TestInstrumentArith(t *testing.T) {
	mod, store := prepare(t, `
func @f(i32 %a, i32 %b) i32 {
entry:
  %x = add i32 %a, %b
  ret i32 %x
}
`)

	require.NoError(t, Module(mod, store))

	fn := mod.Func("f")
	instrs := fn.Instructions()

	// The add is replaced in place: same count, same result register.
	require.Len(t, instrs, 2)
	assert.Equal(t, m.OpCall, instrs[0].Op)
	assert.Equal(t, FnProcessI32Arith, instrs[0].Callee)
	assert.Equal(t, "x", instrs[0].Name)

	assert.Equal(t, int64(1), constArg(t, instrs[0], 0))
	assert.Equal(t, int64(store.Len()), constArg(t, instrs[0], 1))
}

func TestInstrumentCmp(t *testing.T) {
	mod, store := prepare(t, `
func @f(i64 %a, i64 %b) i32 {
entry:
  %c = icmp ult i64 %a, %b
  br %c, yes, no
yes:
  ret i32 1
no:
  ret i32 0
}
`)

	require.NoError(t, Module(mod, store))

	fn := mod.Func("f")
	instrs := fn.Instructions()

	// One inserted call plus the trunc that replaced the icmp.
	assert.Equal(t, FnProcessI64Cmp, instrs[0].Callee)
	assert.Equal(t, m.OpTrunc, instrs[1].Op)
	assert.Equal(t, "c", instrs[1].Name)
	assert.Equal(t, ir.I1, instrs[1].Ty)
}

func TestInstrumentStoreGuard(t *testing.T) {
	mod, store := prepare(t, `
global @g i32 0

func @f() i32 {
entry:
  store i32 42, ptr @g
  ret i32 0
}
`)

	require.NoError(t, Module(mod, store))

	fn := mod.Func("f")

	// Constant hoist triple, prepare, guard compare, conditional branch;
	// the original store sits in its own guarded block.
	require.Len(t, fn.Blocks, 3)

	entry := fn.Blocks[0].Instrs
	require.Len(t, entry, 6)
	assert.Equal(t, m.OpAlloca, entry[0].Op)
	assert.Equal(t, m.OpStore, entry[1].Op)
	assert.Equal(t, m.OpLoad, entry[2].Op)
	assert.Equal(t, FnPrepareStI32, entry[3].Callee)
	assert.Equal(t, m.OpICmp, entry[4].Op)
	assert.Equal(t, m.OpBr, entry[5].Op)

	guarded := fn.Blocks[1]
	require.Len(t, guarded.Instrs, 2)
	assert.Equal(t, m.OpStore, guarded.Instrs[0].Op)
	assert.Equal(t, m.OpBr, guarded.Instrs[1].Op)

	// The tail of the original block continues after the merge.
	tail := fn.Blocks[2]
	assert.Equal(t, m.OpRet, tail.Instrs[len(tail.Instrs)-1].Op)
}

func TestInstrumentCallDiamond(t *testing.T) {
	mod, store := prepare(t, `
func @callee(i32 %v) i32 {
entry:
  ret i32 %v
}

func @f() i32 {
entry:
  %r = call i32 @callee(i32 7)
  ret i32 %r
}
`)

	require.NoError(t, Module(mod, store))

	fn := mod.Func("f")
	require.Len(t, fn.Blocks, 4)

	entry := fn.Blocks[0].Instrs

	// Hoist triple for the literal argument, then prepare + guard + branch.
	require.Len(t, entry, 6)
	assert.Equal(t, FnPrepareCall, entry[3].Callee)

	// record_count followed by one (tag, ptr) pair.
	assert.Equal(t, int64(1), constArg(t, entry[3], 2))
	assert.Equal(t, int64(m.PackTag(m.TagI32, 0)), constArg(t, entry[3], 3))

	thenBlk, elseBlk, endBlk := fn.Blocks[1], fn.Blocks[2], fn.Blocks[3]

	assert.Equal(t, "callee", thenBlk.Instrs[0].Callee)
	assert.Equal(t, FnStdcallI32, elseBlk.Instrs[0].Callee)

	phi := endBlk.Instrs[0]
	require.Equal(t, m.OpPhi, phi.Op)
	assert.Equal(t, "r", phi.Name)
	require.Len(t, phi.Incoming, 2)
}

func TestInstrumentVoidCallHasNoPhi(t *testing.T) {
	mod, store := prepare(t, `
global @msg str "x"

func @f() i32 {
entry:
  call void @print_str(ptr @msg)
  ret i32 0
}
`)

	require.NoError(t, Module(mod, store))

	fn := mod.Func("f")
	endBlk := fn.Blocks[len(fn.Blocks)-1]

	assert.Equal(t, m.OpRet, endBlk.Instrs[0].Op)

	for _, in := range fn.Instructions() {
		assert.NotEqual(t, m.OpPhi, in.Op)
	}
}

// The location counter must stay exact across an insertion-heavy site so
// the next site still resolves.
func TestLocationProtocolAcrossSites(t *testing.T) {
	mod, store := prepare(t, `
global @g i32 0

func @f(i32 %a) i32 {
entry:
  store i32 5, ptr @g
  %v = load i32, ptr @g
  %x = add i32 %v, %a
  %c = icmp sgt i32 %x, 3
  %t = trunc i1 %c to i32
  ret i32 %t
}
`)

	require.NoError(t, Module(mod, store))

	fn := mod.Func("f")

	calls := dispatchCalls(fn)
	require.Len(t, calls, 3, "store, arith and cmp sites must all be found")

	assert.Equal(t, FnPrepareStI32, calls[0].Callee)
	assert.Equal(t, FnProcessI32Arith, calls[1].Callee)
	assert.Equal(t, FnProcessI32Cmp, calls[2].Callee)

	// The rewritten arith call still defines the original register.
	assert.Equal(t, "x", calls[1].Name)
}

// Dispatch ranges must be pairwise disjoint and cover the whole catalog.
func TestRangesCoverCatalog(t *testing.T) {
	mod, store := prepare(t, `
func @f(i32 %a, i32 %b) i32 {
entry:
  %x = add i32 %a, 9
  %y = and i32 %x, %b
  %c = icmp sle i32 %y, %a
  %t = trunc i1 %c to i32
  %z = sub i32 %t, %x
  ret i32 %z
}
`)

	require.NoError(t, Module(mod, store))

	covered := map[int]bool{}

	for _, call := range dispatchCalls(mod.Func("f")) {
		from := int(constArg(t, call, 0))
		to := int(constArg(t, call, 1))
		require.LessOrEqual(t, from, to)

		for id := from; id <= to; id++ {
			assert.False(t, covered[id], "id %d covered twice", id)
			covered[id] = true
		}
	}

	assert.Len(t, covered, store.Len())
}

func TestLocationMismatchIsFatal(t *testing.T) {
	mod, err := ir.Parse(`
func @f(i32 %a) i32 {
entry:
  %x = add i32 %a, %a
  ret i32 %x
}
`)
	require.NoError(t, err)

	// A catalog pointing past the function's instructions cannot resolve.
	store, err := catalog.NewStore([]m.Mutation{
		{ID: 1, Kind: m.KindAOR, Function: "f", Index: 7, Op: m.OpAdd, TOp: m.OpSub},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, Module(mod, store), ErrLocation)
}

func TestNonMutableSiteIsFatal(t *testing.T) {
	mod, err := ir.Parse(`
func @f(i32 %a) i32 {
entry:
  %x = add i32 %a, %a
  ret i32 %x
}
`)
	require.NoError(t, err)

	store, err := catalog.NewStore([]m.Mutation{
		{ID: 1, Kind: m.KindAOR, Function: "f", Index: 1, Op: m.OpAdd, TOp: m.OpSub},
	})
	require.NoError(t, err)

	// Index 1 is the ret, not the add: the protocol drifted.
	assert.ErrorIs(t, Module(mod, store), ErrLocation)
}
