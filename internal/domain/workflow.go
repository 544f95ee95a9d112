package domain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"irmut.dev/pkg/irmut/internal/adapter"
	"irmut.dev/pkg/irmut/internal/catalog"
	"irmut.dev/pkg/irmut/internal/controller"
	"irmut.dev/pkg/irmut/internal/instrument"
	"irmut.dev/pkg/irmut/internal/ir"
	m "irmut.dev/pkg/irmut/internal/model"
	"irmut.dev/pkg/irmut/internal/mutagen"
	pkg "irmut.dev/pkg/irmut/pkg"
)

// EstimateArgs configures source scanning.
type EstimateArgs struct {
	Paths   []m.Path
	Exclude []string
	Threads int
}

// GenArgs configures catalog generation.
type GenArgs struct {
	EstimateArgs
	CatalogPath m.Path
}

// InstrumentArgs configures the rewrite pass.
type InstrumentArgs struct {
	EstimateArgs
	CatalogPath m.Path
}

// RunArgs configures a full mutation run.
type RunArgs struct {
	EstimateArgs
	Reports m.Path
	Runner  Runner
}

// Workflow is the use-case layer behind the CLI commands.
type Workflow interface {
	Estimate(ctx context.Context, args EstimateArgs) error
	Generate(ctx context.Context, args GenArgs) error
	Instrument(ctx context.Context, args InstrumentArgs) error
	Run(ctx context.Context, args RunArgs) error
	View(ctx context.Context, reports m.Path) error
}

type workflow struct {
	adapter.SourceFSAdapter
	adapter.ReportStore
	controller.UI
}

// NewWorkflow wires a Workflow from its dependencies.
func NewWorkflow(fs adapter.SourceFSAdapter, store adapter.ReportStore, ui controller.UI) Workflow {
	return &workflow{
		SourceFSAdapter: fs,
		ReportStore:     store,
		UI:              ui,
	}
}

type parsedSource struct {
	src m.Source
	mod *ir.Module
}

// collectSources scans and parses IR files. Parsing fans out across
// threads; the result keeps scan order so downstream id assignment is
// deterministic.
func (w *workflow) collectSources(ctx context.Context, args EstimateArgs) ([]parsedSource, error) {
	files, err := w.Scan(args.Paths, args.Exclude)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	parsed := make([]parsedSource, len(files))

	group, gctx := errgroup.WithContext(ctx)

	threads := args.Threads
	if threads < 1 {
		threads = 1
	}

	group.SetLimit(threads)

	for i, file := range files {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			content, err := w.ReadFile(file.Path)
			if err != nil {
				return err
			}

			mod, err := ir.Parse(string(content))
			if err != nil {
				return fmt.Errorf("parse %s: %w", file.Path, err)
			}

			if mod.Name == "" {
				mod.Name = strings.TrimSuffix(string(file.Path), adapter.IRExt)
			}

			parsed[i] = parsedSource{
				src: m.Source{Origin: &m.File{Path: file.Path, Hash: file.Hash}, Module: mod.Name},
				mod: mod,
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return parsed, nil
}

// generate assigns ids across all sources of one pass, in scan order.
func (w *workflow) generate(sources []parsedSource) ([]m.Mutation, error) {
	gen := mutagen.NewGenerator()

	var all []m.Mutation

	for _, ps := range sources {
		muts, err := gen.Module(ps.mod)
		if err != nil {
			return nil, err
		}

		all = append(all, muts...)
	}

	if len(all) > m.MaxMutNum {
		return nil, fmt.Errorf("generate: %d mutations exceed the catalog limit %d", len(all), m.MaxMutNum)
	}

	return all, nil
}

// Estimate lists mutation counts without running anything.
func (w *workflow) Estimate(ctx context.Context, args EstimateArgs) error {
	if err := w.Start(ctx, controller.WithEstimateMode()); err != nil {
		return err
	}
	defer w.Close(ctx)

	sources, err := w.collectSources(ctx, args)
	if err != nil {
		slog.Error("failed to collect sources", "error", err)
		return err
	}

	muts, err := w.generate(sources)

	if derr := w.DisplayEstimation(ctx, muts, err); derr != nil {
		return derr
	}

	w.Wait(ctx)

	return err
}

// Generate writes the catalog for the scanned sources. Mutations stream
// through a disk spill so very large units do not sit in memory twice.
func (w *workflow) Generate(ctx context.Context, args GenArgs) error {
	sources, err := w.collectSources(ctx, args.EstimateArgs)
	if err != nil {
		return err
	}

	spill, err := pkg.NewFileSpill[m.Mutation]()
	if err != nil {
		return err
	}
	defer spill.Close()

	gen := mutagen.NewGenerator()

	for _, ps := range sources {
		muts, err := gen.Module(ps.mod)
		if err != nil {
			return err
		}

		if err := spill.AppendBatch(muts); err != nil {
			return err
		}
	}

	if spill.Len() > m.MaxMutNum {
		return fmt.Errorf("generate: %d mutations exceed the catalog limit %d", spill.Len(), m.MaxMutNum)
	}

	all := make([]m.Mutation, 0, spill.Len())

	err = spill.Range(func(_ uint64, mut m.Mutation) error {
		all = append(all, mut)
		return nil
	})
	if err != nil {
		return err
	}

	if err := catalog.Save(string(args.CatalogPath), all); err != nil {
		return err
	}

	slog.Info("catalog written", "path", args.CatalogPath, "mutations", len(all))

	return nil
}

// Instrument rewrites each scanned module against the saved catalog and
// writes the result next to the source.
func (w *workflow) Instrument(ctx context.Context, args InstrumentArgs) error {
	sources, err := w.collectSources(ctx, args.EstimateArgs)
	if err != nil {
		return err
	}

	muts, err := catalog.Load(string(args.CatalogPath))
	if err != nil {
		return err
	}

	store, err := catalog.NewStore(muts)
	if err != nil {
		return err
	}

	for _, ps := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := instrument.Module(ps.mod, store); err != nil {
			return err
		}

		out := instrumentedPath(ps.src.Origin.Path)
		if err := w.WriteFile(out, []byte(ir.Print(ps.mod)), 0o644); err != nil {
			return err
		}

		slog.Info("instrumented", "source", ps.src.Origin.Path, "output", out)
	}

	return nil
}

// Run explores the fork tree of every scanned module, persists the
// reports, and shows the score.
func (w *workflow) Run(ctx context.Context, args RunArgs) error {
	if err := w.Start(ctx, controller.WithRunMode()); err != nil {
		return err
	}
	defer w.Close(ctx)

	sources, err := w.collectSources(ctx, args.EstimateArgs)
	if err != nil {
		return err
	}

	reports := make([]m.RunReport, 0, len(sources))

	for _, ps := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Each module is its own compilation unit: ids restart at 1.
		gen := mutagen.NewGenerator()

		muts, err := gen.Module(ps.mod)
		if err != nil {
			return err
		}

		report, err := args.Runner.Run(ps.mod, muts, ps.src)
		if err != nil {
			return err
		}

		if derr := w.DisplayReport(ctx, report); derr != nil {
			return derr
		}

		reports = append(reports, report)
	}

	if args.Reports != "" {
		previous, err := w.LoadReports(args.Reports)
		if err != nil {
			slog.Error("failed to load previous reports", "error", err)
		}

		if err := w.SaveReports(args.Reports, w.Merge(previous, reports)); err != nil {
			return err
		}
	}

	w.DisplayScore(ctx, mutationScoreFromReports(reports))
	w.Wait(ctx)

	return nil
}

// View browses previously saved reports.
func (w *workflow) View(ctx context.Context, reportsDir m.Path) error {
	reports, err := w.LoadReports(reportsDir)
	if err != nil {
		return err
	}

	if len(reports) == 0 {
		return fmt.Errorf("no reports under %s", reportsDir)
	}

	if err := w.Start(ctx, controller.WithRunMode()); err != nil {
		return err
	}
	defer w.Close(ctx)

	for _, r := range reports {
		if err := w.DisplayReport(ctx, r); err != nil {
			return err
		}
	}

	w.DisplayScore(ctx, mutationScoreFromReports(reports))
	w.Wait(ctx)

	return nil
}

func instrumentedPath(p m.Path) m.Path {
	s := string(p)
	if strings.HasSuffix(s, adapter.IRExt) {
		return m.Path(strings.TrimSuffix(s, adapter.IRExt) + ".inst" + adapter.IRExt)
	}

	return m.Path(s + ".inst")
}

// TestIDFromEnv reads the harness-provided TEST_ID label; 0 when unset.
func TestIDFromEnv() int {
	v := os.Getenv("TEST_ID")
	if v == "" {
		return 0
	}

	var id int
	if _, err := fmt.Sscanf(v, "%d", &id); err != nil {
		slog.Warn("ignoring malformed TEST_ID", "value", v)
		return 0
	}

	return id
}
