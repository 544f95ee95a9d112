package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irmut.dev/pkg/irmut/internal/accrt"
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
	"irmut.dev/pkg/irmut/internal/mutagen"
)

var testTimer = accrt.TimerConfig{StepBudget: 100000}

// runScenario parses src, generates mutations, keeps those the filter
// accepts (renumbered densely, preserving order), and explores the fork
// tree.
func runScenario(t *testing.T, src string, keep func(m.Mutation) bool, env map[string]int64, timer accrt.TimerConfig) m.RunReport {
	t.Helper()

	mod, err := ir.Parse(src)
	require.NoError(t, err)

	muts, err := mutagen.NewGenerator().Module(mod)
	require.NoError(t, err)

	if keep != nil {
		kept := muts[:0]

		for _, mut := range muts {
			if keep(mut) {
				mut.ID = len(kept) + 1
				kept = append(kept, mut)
			}
		}

		muts = kept
	}

	runner := Runner{Timer: timer, Env: env}

	report, err := runner.Run(mod, muts, m.Source{Module: mod.Name})
	require.NoError(t, err)

	return report
}

func outputsByStatus(report m.RunReport) (killed, survived []string) {
	for _, mut := range report.Mutants {
		if mut.Status == m.Survived {
			survived = append(survived, mut.Output)
		} else {
			killed = append(killed, mut.Output)
		}
	}

	return killed, survived
}

const addProgram = `
module s1

func @main() i32 {
entry:
  %a = call i32 @getenv_i32(ptr @A)
  %b = call i32 @getenv_i32(ptr @B)
  %y = add i32 %a, %b
  call void @print_i32(i32 %y)
  ret i32 0
}
`

func onlyKind(k m.Kind) func(m.Mutation) bool {
	return func(mut m.Mutation) bool { return mut.Kind == k }
}

func TestScenarioMinimalAOR(t *testing.T) {
	report := runScenario(t, addProgram, onlyKind(m.KindAOR),
		map[string]int64{"A": 6, "B": 2}, testTimer)

	assert.Equal(t, 6, report.Mutations)
	assert.Equal(t, "8\n", report.RootOutput)
	assert.Equal(t, 0, report.RootExit)

	// 6+2 splits the six operator mutants into four value classes:
	// sub 4, mul 12, {sdiv, udiv} 3, {srem, urem} 0.
	require.Len(t, report.Mutants, 4)

	gotOutputs := map[string]bool{}
	covered := 0

	for _, mut := range report.Mutants {
		assert.Equal(t, m.Killed, mut.Status, "every class diverges from 8")
		gotOutputs[mut.Output] = true
		covered += len(mut.MutationIDs)
	}

	assert.Equal(t, map[string]bool{"4\n": true, "12\n": true, "3\n": true, "0\n": true}, gotOutputs)

	// Completeness: every mutation was carried by exactly one lineage.
	assert.Equal(t, 6, covered)
}

func TestScenarioLVROnComparison(t *testing.T) {
	src := `
module s2

global @T str "T"
global @F str "F"

func @main() i32 {
entry:
  %x = call i32 @getenv_i32(ptr @X)
  %c = icmp sgt i32 %x, 10
  br %c, yes, no
yes:
  call void @print_str(ptr @T)
  br done
no:
  call void @print_str(ptr @F)
  br done
done:
  ret i32 0
}
`

	report := runScenario(t, src, onlyKind(m.KindLVR), map[string]int64{"X": 10}, testTimer)

	// Literal 10 yields replacements 9, 11, 0, 1, -1.
	assert.Equal(t, 5, report.Mutations)
	assert.Equal(t, "F\n", report.RootOutput)

	killed, survived := outputsByStatus(report)

	// 10>9, 10>0, 10>1, 10>-1 flip to T and fork as one class; 10>11
	// stays F and survives with the root.
	require.Len(t, killed, 1)
	assert.Equal(t, "T\n", killed[0])

	require.Len(t, survived, 1)
	assert.Equal(t, "F\n", survived[0])

	var killedIDs, survivedIDs int

	for _, mut := range report.Mutants {
		if mut.Status == m.Survived {
			survivedIDs += len(mut.MutationIDs)
		} else {
			killedIDs += len(mut.MutationIDs)
		}
	}

	assert.Equal(t, 4, killedIDs)
	assert.Equal(t, 1, survivedIDs)
}

func TestScenarioDivisionByZeroInMutant(t *testing.T) {
	src := `
module s3

func @main() i32 {
entry:
  %a = call i32 @getenv_i32(ptr @A)
  %b = call i32 @getenv_i32(ptr @B)
  %y = mul i32 %a, %b
  call void @print_i32(i32 %y)
  ret i32 0
}
`

	// b=0: the division mutants hit a zero divisor and must produce the
	// INT_MAX sentinel instead of crashing.
	report := runScenario(t, src, onlyKind(m.KindAOR), map[string]int64{"A": 4, "B": 0}, testTimer)

	assert.Equal(t, "0\n", report.RootOutput)

	var sentinel *m.MutantReport

	for i, mut := range report.Mutants {
		if mut.Output == "2147483647\n" {
			sentinel = &report.Mutants[i]
		}

		assert.NotEqual(t, accrt.ExitOpcode, mut.ExitCode)
		assert.NotEqual(t, accrt.ExitForkFail, mut.ExitCode)
	}

	require.NotNil(t, sentinel, "division mutants must yield INT_MAX, not crash")
	assert.Equal(t, m.Killed, sentinel.Status)
}

func TestScenarioSTDOnVoidCall(t *testing.T) {
	src := `
module s4

global @msg str "logged"

func @main() i32 {
entry:
  call void @print_str(ptr @msg)
  ret i32 0
}
`

	report := runScenario(t, src, onlyKind(m.KindSTD), nil, testTimer)

	require.Equal(t, 1, report.Mutations)

	// The parent still performs the call.
	assert.Equal(t, "logged\n", report.RootOutput)

	// The deletion child completes without invoking it.
	require.Len(t, report.Mutants, 1)
	assert.Equal(t, "", report.Mutants[0].Output)
	assert.Equal(t, m.Killed, report.Mutants[0].Status)
	assert.Equal(t, 0, report.Mutants[0].ExitCode)
}

func TestScenarioStoreDispatch(t *testing.T) {
	src := `
module s5

global @g i32 0

func @main() i32 {
entry:
  store i32 42, ptr @g
  %v = load i32, ptr @g
  call void @print_i32(i32 %v)
  ret i32 0
}
`

	report := runScenario(t, src, onlyKind(m.KindLVR), nil, testTimer)

	assert.Equal(t, 5, report.Mutations)

	// The root path observes 42; each forked child observes exactly one
	// replacement constant.
	assert.Equal(t, "42\n", report.RootOutput)

	require.Len(t, report.Mutants, 5)

	got := map[string]bool{}
	for _, mut := range report.Mutants {
		assert.Equal(t, m.Killed, mut.Status)
		got[mut.Output] = true
	}

	assert.Equal(t, map[string]bool{
		"41\n": true, "43\n": true, "0\n": true, "1\n": true, "-1\n": true,
	}, got)
}

func TestScenarioTimeout(t *testing.T) {
	src := `
module s6

func @main() i32 {
entry:
  br loop
loop:
  %i = phi i32 [ 0, entry ], [ %n, loop ]
  %n = add i32 %i, 1
  %c = icmp slt i32 %n, 5
  br %c, loop, done
done:
  call void @print_i32(i32 %n)
  ret i32 0
}
`

	keepSub := func(mut m.Mutation) bool {
		return mut.Kind == m.KindAOR && mut.TOp == m.OpSub
	}

	report := runScenario(t, src, keepSub, nil, accrt.TimerConfig{StepBudget: 2000})

	// i++ became i--: the child never reaches 5 and the timer kills it;
	// the parent reaps it and finishes normally.
	assert.Equal(t, "5\n", report.RootOutput)
	assert.Equal(t, 0, report.RootExit)

	require.Len(t, report.Mutants, 1)
	assert.Equal(t, accrt.ExitTimeout, report.Mutants[0].ExitCode)
	assert.Equal(t, m.TimedOut, report.Mutants[0].Status)
}

func TestInstrumentedRootMatchesPlainRun(t *testing.T) {
	src := `
module noop

global @limit i32 20

func @acc(i32 %x, i32 %n) i32 {
entry:
  %s = add i32 %x, %n
  %lv = load i32, ptr @limit
  %c = icmp sgt i32 %s, %lv
  br %c, capped, open
capped:
  ret i32 %lv
open:
  ret i32 %s
}

func @main() i32 {
entry:
  %a = call i32 @getenv_i32(ptr @A)
  %r1 = call i32 @acc(i32 %a, i32 9)
  %r2 = call i32 @acc(i32 %r1, i32 9)
  call void @print_i32(i32 %r2)
  ret i32 0
}
`

	env := map[string]int64{"A": 5}

	// Un-instrumented reference run.
	mod, err := ir.Parse(src)
	require.NoError(t, err)

	runner := Runner{Timer: testTimer, Env: env}

	plain, err := runner.Run(mod, nil, m.Source{Module: "noop"})
	require.NoError(t, err)

	// Fully instrumented run with the complete catalog and full active
	// set: the root lineage must be byte-identical to the reference.
	report := runScenario(t, src, nil, env, testTimer)

	assert.Equal(t, plain.RootOutput, report.RootOutput)
	assert.Equal(t, plain.RootExit, report.RootExit)
	assert.Positive(t, report.Mutations)
}

func TestEveryMutationIsAccountedFor(t *testing.T) {
	report := runScenario(t, addProgram, nil, map[string]int64{"A": 6, "B": 2}, testTimer)

	seen := map[int]int{}
	for _, mut := range report.Mutants {
		for _, id := range mut.MutationIDs {
			seen[id]++
		}
	}

	// Each mutation ends in exactly one lineage: no duplication across
	// forks, no losses.
	assert.Len(t, seen, report.Mutations)
	for id, n := range seen {
		assert.Equal(t, 1, n, "mutation %d appears %d times", id, n)
	}
}

func TestJudge(t *testing.T) {
	root := "ok\n"

	cases := []struct {
		name string
		mut  m.MutantReport
		want m.TestStatus
	}{
		{"identical output survives", m.MutantReport{Output: "ok\n"}, m.Survived},
		{"diverging output is killed", m.MutantReport{Output: "no\n"}, m.Killed},
		{"diverging exit is killed", m.MutantReport{Output: "ok\n", ExitCode: 3}, m.Killed},
		{"timeout", m.MutantReport{ExitCode: accrt.ExitTimeout}, m.TimedOut},
		{"opcode error", m.MutantReport{ExitCode: accrt.ExitOpcode}, m.Crashed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, judge(tc.mut, root, 0))
		})
	}
}
