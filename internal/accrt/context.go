package accrt

import (
	"time"

	"irmut.dev/pkg/irmut/internal/catalog"
)

// TimerConfig mirrors the interval-timer parameters injected at link time
// in a native build: an initial value and a repeat interval.
type TimerConfig struct {
	ValueSec     int
	ValueUSec    int
	IntervalSec  int
	IntervalUSec int
	// StepBudget bounds the instructions a process may execute since the
	// timer was last armed; 0 means unlimited.
	StepBudget int64
}

// Value returns the timer's initial duration.
func (t TimerConfig) Value() time.Duration {
	return time.Duration(t.ValueSec)*time.Second + time.Duration(t.ValueUSec)*time.Microsecond
}

// Process is the executing program the dispatcher controls. Fork clones
// the whole machine state; the clone completes the in-flight dispatch call
// with result under the child context, runs to completion, and its exit
// code is returned. The clone must finish before Fork returns (children
// run before siblings).
type Process interface {
	Fork(child *Context, result int64) (exitCode int, err error)
}

// Context is the per-process runtime state: the process's identity, its
// active set, and the scratch buffers one dispatch call uses. The catalog
// store is immutable and shared across the whole fork tree.
type Context struct {
	Store *catalog.Store
	Proc  Process

	// MutationID is the single mutant this process embodies; 0 in the root.
	MutationID int
	// TestID is the harness-assigned label of the current test run.
	TestID int

	// defaultActive is the root lineage's active set, indexed by id.
	defaultActive []bool
	// forkedActive is a child lineage's active set.
	forkedActive []int

	recent []int
	temp   []int64
	eq     []eqclass

	// DegradedPartition reproduces the degenerate reference partitioning:
	// every candidate forms its own class regardless of value.
	DegradedPartition bool

	Timer    TimerConfig
	Deadline time.Time
	Steps    int64

	// stdValue/stdReady stage a deleted call's substitute between
	// PrepareCall and the following Stdcall fetch.
	stdValue int64
	stdReady bool
}

type eqclass struct {
	value int64
	ids   []int
}

// NewContext builds the root context: full active set, mutation id 0.
func NewContext(store *catalog.Store, timer TimerConfig) *Context {
	c := &Context{
		Store:         store,
		Timer:         timer,
		defaultActive: make([]bool, store.Len()+1),
	}

	for i := 1; i <= store.Len(); i++ {
		c.defaultActive[i] = true
	}

	c.ArmTimer()

	return c
}

// ArmTimer restarts the runaway-process timer for this process. It is
// called at process start and again on the child side of every fork.
func (c *Context) ArmTimer() {
	if v := c.Timer.Value(); v > 0 {
		c.Deadline = time.Now().Add(v)
	} else {
		c.Deadline = time.Time{}
	}

	c.Steps = 0
}

// Expired reports whether the process has outrun its timer.
func (c *Context) Expired() bool {
	if c.Timer.StepBudget > 0 && c.Steps > c.Timer.StepBudget {
		return true
	}

	return !c.Deadline.IsZero() && time.Now().After(c.Deadline)
}

// clone copies the per-process state. The store is shared; active sets are
// copied so parent and child diverge independently, as a forked address
// space would.
func (c *Context) clone() *Context {
	child := *c
	child.defaultActive = append([]bool(nil), c.defaultActive...)
	child.forkedActive = append([]int(nil), c.forkedActive...)
	child.recent = nil
	child.temp = nil
	child.eq = nil

	return &child
}

// ActiveIDs returns the ids this process is still tracking.
func (c *Context) ActiveIDs() []int {
	if c.MutationID != 0 {
		return append([]int(nil), c.forkedActive...)
	}

	var ids []int
	for id := 1; id < len(c.defaultActive); id++ {
		if c.defaultActive[id] {
			ids = append(ids, id)
		}
	}

	return ids
}

// filterVariant computes recent = the intersection of the active set with
// [from, to]. In the root, 0 is always prepended (the original always runs
// there); in a child, recent is {0} when the intersection is empty.
func (c *Context) filterVariant(from, to int) {
	c.recent = c.recent[:0]

	if c.MutationID == 0 {
		c.recent = append(c.recent, 0)
		for id := from; id <= to; id++ {
			if id >= 1 && id < len(c.defaultActive) && c.defaultActive[id] {
				c.recent = append(c.recent, id)
			}
		}

		return
	}

	for _, id := range c.forkedActive {
		if id >= from && id <= to {
			c.recent = append(c.recent, id)
		}
	}

	if len(c.recent) == 0 {
		c.recent = append(c.recent, 0)
	}
}

// divideEqclass groups the evaluated candidates into classes of identical
// value, preserving first-occurrence order. The degraded mode instead puts
// every candidate in its own class.
func (c *Context) divideEqclass() {
	c.eq = c.eq[:0]

	for i, id := range c.recent {
		v := c.temp[i]

		if !c.DegradedPartition {
			merged := false

			for j := range c.eq {
				if c.eq[j].value == v {
					c.eq[j].ids = append(c.eq[j].ids, id)
					merged = true

					break
				}
			}

			if merged {
				continue
			}
		}

		c.eq = append(c.eq, eqclass{value: v, ids: []int{id}})
	}
}

// filterMutants restricts the active set to the class's members. A class
// containing the original narrows the default set in [from, to]; a mutant
// class replaces the forked set.
func (c *Context) filterMutants(from, to int, cls eqclass) {
	if cls.ids[0] == 0 {
		for id := from; id <= to; id++ {
			if id >= 1 && id < len(c.defaultActive) {
				c.defaultActive[id] = false
			}
		}

		for _, id := range cls.ids {
			if id != 0 {
				c.defaultActive[id] = true
			}
		}

		return
	}

	c.forkedActive = append(c.forkedActive[:0], cls.ids...)
}
