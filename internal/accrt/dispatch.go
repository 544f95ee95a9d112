package accrt

import (
	"errors"
	"fmt"
	"log/slog"

	m "irmut.dev/pkg/irmut/internal/model"
)

// ErrFork is wrapped by fork failures; the process must exit ExitForkFail.
var ErrFork = errors.New("accrt: fork failed")

// origOpcode recovers the site's original arithmetic opcode from the
// catalog: the last mutation of a site carries it whether that mutation is
// an operator replacement or a literal replacement.
func (c *Context) origOpcode(to int) (m.Opcode, error) {
	mut, ok := c.Store.Get(to)
	if !ok {
		return 0, fmt.Errorf("accrt: no mutation with id %d", to)
	}

	return mut.Op, nil
}

// origPred recovers the site's original predicate. ROR records carry it in
// SPre; LVR records at comparison sites persist the predicate tag in the
// opcode field.
func (c *Context) origPred(to int) (m.Predicate, error) {
	mut, ok := c.Store.Get(to)
	if !ok {
		return 0, fmt.Errorf("accrt: no mutation with id %d", to)
	}

	if mut.Kind == m.KindROR {
		return mut.SPre, nil
	}

	return m.Predicate(mut.Op), nil
}

// forkEqclass forks one child per non-primary class, waits for each, then
// restricts this process to the primary class and returns its value.
func (c *Context) forkEqclass(from, to int) (int64, error) {
	if len(c.eq) == 1 {
		c.filterMutants(from, to, c.eq[0])
		return c.eq[0].value, nil
	}

	for i := 1; i < len(c.eq); i++ {
		cls := c.eq[i]

		child := c.clone()
		child.filterMutants(from, to, cls)
		child.MutationID = cls.ids[0]
		child.ArmTimer()

		exit, err := c.Proc.Fork(child, cls.value)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrFork, err)
		}

		slog.Debug("reaped child", "mutation", child.MutationID, "ids", cls.ids, "exit", exit)
	}

	c.filterMutants(from, to, c.eq[0])

	return c.eq[0].value, nil
}

// ProcessI32Arith is the dispatch entry for 32-bit arithmetic sites.
func (c *Context) ProcessI32Arith(from, to int, l, r int32) (int32, error) {
	op, err := c.origOpcode(to)
	if err != nil {
		return 0, err
	}

	ori, err := CalI32Arith(op, l, r)
	if err != nil {
		return 0, err
	}

	c.filterVariant(from, to)
	c.temp = c.temp[:0]

	for _, id := range c.recent {
		var v int32

		switch mut, _ := c.Store.Get(id); {
		case id == 0:
			v = ori
		case mut.Kind == m.KindLVR:
			a, b := l, r
			if mut.OpIndex == 0 {
				a = int32(mut.TCon)
			} else {
				b = int32(mut.TCon)
			}

			v, err = CalI32Arith(mut.Op, a, b)
		default:
			v, err = CalI32Arith(mut.TOp, l, r)
		}

		if err != nil {
			return 0, err
		}

		c.temp = append(c.temp, int64(v))
	}

	if len(c.recent) == 1 {
		if c.MutationID < from || c.MutationID > to {
			return ori, nil
		}

		return int32(c.temp[0]), nil
	}

	c.divideEqclass()

	v, err := c.forkEqclass(from, to)

	return int32(v), err
}

// ProcessI64Arith is the dispatch entry for 64-bit arithmetic sites.
func (c *Context) ProcessI64Arith(from, to int, l, r int64) (int64, error) {
	op, err := c.origOpcode(to)
	if err != nil {
		return 0, err
	}

	ori, err := CalI64Arith(op, l, r)
	if err != nil {
		return 0, err
	}

	c.filterVariant(from, to)
	c.temp = c.temp[:0]

	for _, id := range c.recent {
		var v int64

		switch mut, _ := c.Store.Get(id); {
		case id == 0:
			v = ori
		case mut.Kind == m.KindLVR:
			a, b := l, r
			if mut.OpIndex == 0 {
				a = mut.TCon
			} else {
				b = mut.TCon
			}

			v, err = CalI64Arith(mut.Op, a, b)
		default:
			v, err = CalI64Arith(mut.TOp, l, r)
		}

		if err != nil {
			return 0, err
		}

		c.temp = append(c.temp, v)
	}

	if len(c.recent) == 1 {
		if c.MutationID < from || c.MutationID > to {
			return ori, nil
		}

		return c.temp[0], nil
	}

	c.divideEqclass()

	return c.forkEqclass(from, to)
}

// ProcessI32Cmp is the dispatch entry for 32-bit comparison sites; the
// result is 0 or 1 in the low bit.
func (c *Context) ProcessI32Cmp(from, to int, l, r int32) (int32, error) {
	pre, err := c.origPred(to)
	if err != nil {
		return 0, err
	}

	ori, err := CalI32Bool(pre, l, r)
	if err != nil {
		return 0, err
	}

	c.filterVariant(from, to)
	c.temp = c.temp[:0]

	for _, id := range c.recent {
		var v int32

		switch mut, _ := c.Store.Get(id); {
		case id == 0:
			v = ori
		case mut.Kind == m.KindLVR:
			a, b := l, r
			if mut.OpIndex == 0 {
				a = int32(mut.TCon)
			} else {
				b = int32(mut.TCon)
			}

			v, err = CalI32Bool(pre, a, b)
		default:
			v, err = CalI32Bool(mut.TPre, l, r)
		}

		if err != nil {
			return 0, err
		}

		c.temp = append(c.temp, int64(v))
	}

	if len(c.recent) == 1 {
		if c.MutationID < from || c.MutationID > to {
			return ori, nil
		}

		return int32(c.temp[0]), nil
	}

	c.divideEqclass()

	v, err := c.forkEqclass(from, to)

	return int32(v), err
}

// ProcessI64Cmp is the dispatch entry for 64-bit comparison sites.
func (c *Context) ProcessI64Cmp(from, to int, l, r int64) (int32, error) {
	pre, err := c.origPred(to)
	if err != nil {
		return 0, err
	}

	ori, err := CalI64Bool(pre, l, r)
	if err != nil {
		return 0, err
	}

	c.filterVariant(from, to)
	c.temp = c.temp[:0]

	for _, id := range c.recent {
		var v int32

		switch mut, _ := c.Store.Get(id); {
		case id == 0:
			v = ori
		case mut.Kind == m.KindLVR:
			a, b := l, r
			if mut.OpIndex == 0 {
				a = mut.TCon
			} else {
				b = mut.TCon
			}

			v, err = CalI64Bool(pre, a, b)
		default:
			v, err = CalI64Bool(mut.TPre, l, r)
		}

		if err != nil {
			return 0, err
		}

		c.temp = append(c.temp, int64(v))
	}

	if len(c.recent) == 1 {
		if c.MutationID < from || c.MutationID > to {
			return ori, nil
		}

		return int32(c.temp[0]), nil
	}

	c.divideEqclass()

	v, err := c.forkEqclass(from, to)

	return int32(v), err
}

// PrepareStore is the dispatch entry for store sites (both widths; the
// value has already been widened by the caller). It returns performed=true
// with the value this process must write through the site's address, or
// performed=false when the original store must still execute.
func (c *Context) PrepareStore(from, to int, val int64) (performed bool, out int64, err error) {
	c.filterVariant(from, to)
	c.temp = c.temp[:0]

	for _, id := range c.recent {
		if id == 0 {
			c.temp = append(c.temp, val)
			continue
		}

		mut, _ := c.Store.Get(id)
		c.temp = append(c.temp, mut.TCon)
	}

	if len(c.recent) == 1 {
		if c.MutationID < from || c.MutationID > to {
			return false, 0, nil
		}

		return true, c.temp[0], nil
	}

	c.divideEqclass()

	v, err := c.forkEqclass(from, to)
	if err != nil {
		return false, 0, err
	}

	return true, v, nil
}

// PrepareCall is the dispatch entry for call sites. It returns
// substitute=false when this process must perform the original call, or
// substitute=true when statement deletion applies: the substitute return
// value is staged for the following __stdcall_* fetch.
func (c *Context) PrepareCall(from, to int, recs []m.OperandRecord) (substitute bool, err error) {
	_ = recs // operand records are carried for mutants that rewrite arguments; STD needs none

	c.filterVariant(from, to)

	// Partition by behavior: performing the call (the original and any
	// non-STD id) versus deleting it. All deletions share the typed zero
	// sentinel, so value grouping collapses them into one class unless the
	// degraded mode is on.
	c.temp = c.temp[:0]

	perform := eqclass{}
	var deletes []eqclass

	for _, id := range c.recent {
		mut, ok := c.Store.Get(id)
		if id == 0 || !ok || mut.Kind != m.KindSTD {
			perform.ids = append(perform.ids, id)
			continue
		}

		if !c.DegradedPartition && len(deletes) > 0 {
			deletes[0].ids = append(deletes[0].ids, id)
			continue
		}

		deletes = append(deletes, eqclass{value: mut.SCon, ids: []int{id}})
	}

	c.eq = c.eq[:0]

	if len(perform.ids) > 0 {
		c.eq = append(c.eq, perform)
	}

	c.eq = append(c.eq, deletes...)

	if len(c.eq) == 1 {
		cls := c.eq[0]
		c.filterMutants(from, to, cls)

		if len(perform.ids) > 0 {
			return false, nil
		}

		c.stageSubstitute(cls.value)

		return true, nil
	}

	for i := 1; i < len(c.eq); i++ {
		cls := c.eq[i]

		child := c.clone()
		child.filterMutants(from, to, cls)
		child.MutationID = cls.ids[0]
		child.ArmTimer()
		child.stageSubstitute(cls.value)

		exit, ferr := c.Proc.Fork(child, 1)
		if ferr != nil {
			return false, fmt.Errorf("%w: %v", ErrFork, ferr)
		}

		slog.Debug("reaped child", "mutation", child.MutationID, "ids", cls.ids, "exit", exit)
	}

	c.filterMutants(from, to, c.eq[0])

	return false, nil
}

// stageSubstitute records the deleted call's replacement value for the
// next Stdcall fetch.
func (c *Context) stageSubstitute(v int64) {
	c.stdValue = v
	c.stdReady = true
}

// Stdcall returns the substitute value staged by PrepareCall. It is the
// body of __stdcall_i32, __stdcall_i64 and __stdcall_void alike; void
// callers discard the value.
func (c *Context) Stdcall() int64 {
	if !c.stdReady {
		return 0
	}

	c.stdReady = false

	return c.stdValue
}
