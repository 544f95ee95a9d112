package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	m "irmut.dev/pkg/irmut/internal/model"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	killedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	survivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

// TUI implements UI with an interactive Bubble Tea report browser.
type TUI struct {
	cmd     *cobra.Command
	reports []m.RunReport
	score   float64
	started bool
}

// NewTUI creates a new TUI bound to the command's output.
func NewTUI(cmd *cobra.Command) *TUI {
	return &TUI{cmd: cmd}
}

// Start initializes the UI.
func (t *TUI) Start(ctx context.Context, _ ...StartOption) error {
	t.started = true
	return ctx.Err()
}

// Close finalizes the UI.
func (t *TUI) Close(context.Context) {}

// Wait runs the interactive browser until the user quits.
func (t *TUI) Wait(ctx context.Context) {
	if ctx.Err() != nil || len(t.reports) == 0 {
		return
	}

	model := newReportModel(t.reports, t.score)

	p := tea.NewProgram(model, tea.WithOutput(t.cmd.OutOrStdout()))
	if _, err := p.Run(); err != nil {
		t.cmd.PrintErrf("tui error: %v\n", err)
	}
}

// DisplayEstimation falls back to the plain table; estimation has no
// interactive state worth browsing.
func (t *TUI) DisplayEstimation(ctx context.Context, mutations []m.Mutation, err error) error {
	return NewSimpleUI(t.cmd).DisplayEstimation(ctx, mutations, err)
}

// DisplayReport buffers a report for browsing in Wait.
func (t *TUI) DisplayReport(ctx context.Context, report m.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.reports = append(t.reports, report)

	return nil
}

// DisplayScore records the score shown in the browser footer.
func (t *TUI) DisplayScore(ctx context.Context, score float64) {
	if ctx.Err() != nil {
		return
	}

	t.score = score
}

type mutantItem struct {
	report m.RunReport
	mutant m.MutantReport
}

func (i mutantItem) Title() string {
	status := i.mutant.Status.String()
	if i.mutant.Status == m.Survived {
		status = survivedStyle.Render(status)
	} else {
		status = killedStyle.Render(status)
	}

	return fmt.Sprintf("mutation %d  %s", i.mutant.MutationID, status)
}

func (i mutantItem) Description() string {
	path := ""
	if i.report.Source.Origin != nil {
		path = string(i.report.Source.Origin.Path)
	}

	return fmt.Sprintf("%s  ids %v  exit %d", path, i.mutant.MutationIDs, i.mutant.ExitCode)
}

func (i mutantItem) FilterValue() string {
	return fmt.Sprintf("%d %s", i.mutant.MutationID, i.mutant.Status)
}

type reportModel struct {
	list  list.Model
	view  viewport.Model
	score float64
	ready bool
}

func newReportModel(reports []m.RunReport, score float64) *reportModel {
	items := make([]list.Item, 0)

	for _, r := range reports {
		for _, mut := range r.Mutants {
			items = append(items, mutantItem{report: r, mutant: mut})
		}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "mutants"
	l.SetShowHelp(false)

	return &reportModel{list: l, score: score}
}

func (rm *reportModel) Init() tea.Cmd { return nil }

func (rm *reportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return rm, tea.Quit
		}
	case tea.WindowSizeMsg:
		half := msg.Width / 2
		rm.list.SetSize(half, msg.Height-4)
		rm.view = viewport.New(msg.Width-half-4, msg.Height-4)
		rm.ready = true
	}

	var cmds []tea.Cmd

	var cmd tea.Cmd
	rm.list, cmd = rm.list.Update(msg)
	cmds = append(cmds, cmd)

	if rm.ready {
		rm.view.SetContent(rm.selectedDiff())
		rm.view, cmd = rm.view.Update(msg)
		cmds = append(cmds, cmd)
	}

	return rm, tea.Batch(cmds...)
}

// selectedDiff renders the kill evidence: a unified diff of the root
// output against the selected mutant lineage's output.
func (rm *reportModel) selectedDiff() string {
	item, ok := rm.list.SelectedItem().(mutantItem)
	if !ok {
		return ""
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(item.report.RootOutput),
		B:        difflib.SplitLines(item.mutant.Output),
		FromFile: "original",
		ToFile:   fmt.Sprintf("mutation %d", item.mutant.MutationID),
		Context:  3,
	})
	if err != nil {
		return fmt.Sprintf("diff error: %v", err)
	}

	if strings.TrimSpace(diff) == "" {
		return "no observable difference"
	}

	return diff
}

func (rm *reportModel) View() string {
	if !rm.ready {
		return "loading..."
	}

	header := titleStyle.Render(fmt.Sprintf("mutation score %.1f%%", rm.score*100))
	body := lipgloss.JoinHorizontal(lipgloss.Top, rm.list.View(), paneStyle.Render(rm.view.View()))
	footer := helpStyle.Render("↑/↓ select · q quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}
