package controller

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "irmut.dev/pkg/irmut/internal/model"
)

// SimpleUI implements UI using cobra Command's Println.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	return ctx.Err()
}

// Close finalizes the UI.
func (s *SimpleUI) Close(context.Context) {}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(context.Context) {}

type siteStat struct {
	function string
	count    int
}

// DisplayEstimation prints per-function mutation counts.
func (s *SimpleUI) DisplayEstimation(ctx context.Context, mutations []m.Mutation, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}

	if err != nil {
		s.printf("estimation error: %v\n", err)
		return err
	}

	stats := buildFunctionStats(mutations)
	s.printf("\n%s", renderEstimationTable(stats, len(mutations)))

	return nil
}

func buildFunctionStats(mutations []m.Mutation) []siteStat {
	counts := make(map[string]int)
	for _, mut := range mutations {
		counts[mut.Function]++
	}

	stats := make([]siteStat, 0, len(counts))
	for fn, n := range counts {
		stats = append(stats, siteStat{function: fn, count: n})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].function < stats[j].function
	})

	return stats
}

func renderEstimationTable(stats []siteStat, total int) string {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Function", "Mutations"})
	table.SetBorder(false)

	for _, st := range stats {
		table.Append([]string{st.function, fmt.Sprintf("%d", st.count)})
	}

	table.SetFooter([]string{"Total", fmt.Sprintf("%d", total)})
	table.Render()

	return buf.String()
}

// DisplayReport prints the per-mutant outcome table for one run.
func (s *SimpleUI) DisplayReport(ctx context.Context, report m.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := m.Path("")
	if report.Source.Origin != nil {
		path = report.Source.Origin.Path
	}

	s.printf("\n%s (test %d): %d mutations, root exit %d\n",
		path, report.TestID, report.Mutations, report.RootExit)

	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Mutation", "Class", "Status", "Exit"})
	table.SetBorder(false)

	for _, mut := range report.Mutants {
		table.Append([]string{
			fmt.Sprintf("%d", mut.MutationID),
			fmt.Sprintf("%v", mut.MutationIDs),
			mut.Status.String(),
			fmt.Sprintf("%d", mut.ExitCode),
		})
	}

	table.Render()
	s.printf("%s", buf.String())

	return nil
}

// DisplayScore prints the mutation score.
func (s *SimpleUI) DisplayScore(ctx context.Context, score float64) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("\nMutation score: %.1f%%\n", score*100)
}

func (s *SimpleUI) printf(format string, args ...any) {
	s.cmd.Printf(format, args...)
}
