// Package domain contains the mutation-testing workflow: scanning IR
// sources, generating catalogs, instrumenting and executing fork trees.
package domain

import (
	"fmt"
	"log/slog"

	"irmut.dev/pkg/irmut/internal/accrt"
	"irmut.dev/pkg/irmut/internal/catalog"
	"irmut.dev/pkg/irmut/internal/exec"
	"irmut.dev/pkg/irmut/internal/instrument"
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
)

// Runner executes the instrument-and-explore pipeline for one module.
type Runner struct {
	Timer    accrt.TimerConfig
	Degraded bool
	TestID   int
	// Env feeds the module's getenv_i32 builtin.
	Env map[string]int64
}

// Run instruments mod against its mutation list, executes the full fork
// tree, and judges each surviving lineage against the root's observable
// behavior.
func (r *Runner) Run(mod *ir.Module, muts []m.Mutation, src m.Source) (m.RunReport, error) {
	report := m.RunReport{Source: src, TestID: r.TestID, Mutations: len(muts)}

	store, err := catalog.NewStore(muts)
	if err != nil {
		return report, fmt.Errorf("run %s: %w", src.Module, err)
	}

	if err := instrument.Module(mod, store); err != nil {
		return report, fmt.Errorf("run %s: %w", src.Module, err)
	}

	rctx := accrt.NewContext(store, r.Timer)
	rctx.TestID = r.TestID
	rctx.DegradedPartition = r.Degraded

	mach, err := exec.NewMachine(mod, rctx)
	if err != nil {
		return report, fmt.Errorf("run %s: %w", src.Module, err)
	}

	mach.Env = r.Env
	mach.Report = func(mr m.MutantReport) {
		report.Mutants = append(report.Mutants, mr)
	}

	report.RootExit = mach.Run()
	report.RootOutput = mach.Out.Own()

	for i := range report.Mutants {
		report.Mutants[i].Status = judge(report.Mutants[i], report.RootOutput, report.RootExit)
	}

	// Mutants still in the root's active set never diverged anywhere: they
	// rode the original lineage to the end and survive this test.
	if residual := rctx.ActiveIDs(); len(residual) > 0 {
		report.Mutants = append(report.Mutants, m.MutantReport{
			MutationID:  residual[0],
			MutationIDs: residual,
			ExitCode:    report.RootExit,
			Output:      report.RootOutput,
			Status:      m.Survived,
		})
	}

	slog.Info("explored fork tree",
		"module", src.Module, "mutations", len(muts), "lineages", len(report.Mutants))

	return report, nil
}

// judge classifies a lineage: timeouts and crashes are their own statuses;
// otherwise any observable divergence from the root kills the class.
func judge(mut m.MutantReport, rootOut string, rootExit int) m.TestStatus {
	switch {
	case mut.ExitCode == accrt.ExitTimeout:
		return m.TimedOut
	case mut.ExitCode == accrt.ExitOpcode || mut.ExitCode == accrt.ExitForkFail:
		return m.Crashed
	case mut.Output != rootOut || mut.ExitCode != rootExit:
		return m.Killed
	}

	return m.Survived
}
