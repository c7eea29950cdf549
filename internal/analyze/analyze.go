// Package analyze runs the full pipeline over a source tree or archive and
// assembles the AnalysisReport.
//
// A run has two stages separated by a barrier. Stage one processes each
// source unit independently on a bounded worker pool: import extraction,
// quality scanning and tokenization, under a per-file timeout. Stage two
// needs every unit at once and runs graph construction and duplicate
// detection in parallel. Per-file failures are recorded in the report; only
// collection failure and cancellation abort a run.
package analyze

import (
	"cmp"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/codescope/internal/config"
	"github.com/phobologic/codescope/internal/discover"
	"github.com/phobologic/codescope/internal/dupe"
	"github.com/phobologic/codescope/internal/graph"
	"github.com/phobologic/codescope/internal/model"
	"github.com/phobologic/codescope/internal/quality"
	"github.com/phobologic/codescope/internal/registry"
	"github.com/phobologic/codescope/internal/tokenize"
)

// ErrCanceled is returned when the caller's context ends before the report
// is complete. No partial report accompanies it.
var ErrCanceled = errors.New("analysis canceled")

// Source is where a run collects its units from.
type Source interface {
	collect(ctx context.Context, opts discover.Options) (*discover.Collection, error)
}

type dirSource string

func (d dirSource) collect(ctx context.Context, opts discover.Options) (*discover.Collection, error) {
	return discover.Files(ctx, string(d), opts)
}

type archiveSource struct {
	data []byte
	name string
}

func (a archiveSource) collect(ctx context.Context, opts discover.Options) (*discover.Collection, error) {
	return discover.Archive(ctx, a.data, a.name, opts)
}

// Dir analyzes the directory tree at path.
func Dir(path string) Source { return dirSource(path) }

// Archive analyzes an in-memory zip archive. name labels the run.
func Archive(data []byte, name string) Source { return archiveSource{data: data, name: name} }

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRules replaces the default quality rules.
func WithRules(reg *quality.Registry) Option {
	return func(e *Engine) { e.rules = reg }
}

// WithPackages registers extra known external packages on top of the
// embedded registry, the config's known_packages and the collected manifests.
func WithPackages(l model.Language, names ...string) Option {
	return func(e *Engine) {
		e.packages = append(e.packages, func(r *registry.Registry) { r.Add(l, names...) })
	}
}

// Engine runs analyses with a fixed configuration. It is safe for
// concurrent runs.
type Engine struct {
	cfg      config.Config
	logger   *slog.Logger
	rules    *quality.Registry
	packages []func(*registry.Registry)
	scanner  *quality.Scanner

	// fileHook runs at the start of each unit's first stage.
	fileHook func(ctx context.Context, unit model.SourceUnit) error
}

// New validates cfg and builds an engine.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if e.rules == nil {
		reg, err := quality.DefaultRegistry()
		if err != nil {
			return nil, fmt.Errorf("loading default rules: %w", err)
		}
		e.rules = reg
	}
	sc, err := quality.NewScanner(e.rules, cfg.EnabledCategories)
	if err != nil {
		return nil, err
	}
	e.scanner = sc
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() config.Config { return e.cfg }

// Run collects src and analyzes it.
func (e *Engine) Run(ctx context.Context, src Source) (*model.AnalysisReport, error) {
	coll, err := e.Collect(ctx, src)
	if err != nil {
		return nil, err
	}
	return e.Analyze(ctx, coll)
}

// Collect runs only the collector. A *discover.CollectionError is fatal.
func (e *Engine) Collect(ctx context.Context, src Source) (*discover.Collection, error) {
	ctx, span := startStage(ctx, "collect")
	coll, err := src.collect(ctx, discover.OptionsFrom(e.cfg))
	if err != nil {
		if ctx.Err() != nil {
			err = canceled(ctx)
		}
		endStage(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("units", len(coll.Units)), attribute.Int("skipped", len(coll.Skipped)))
	endStage(span, nil)
	for _, s := range coll.Skipped {
		e.logger.Warn("file skipped", "path", s.Path, "reason", s.Reason, "detail", s.Detail)
	}
	return coll, nil
}

// Analyze runs both stages over an existing collection.
func (e *Engine) Analyze(ctx context.Context, coll *discover.Collection) (*model.AnalysisReport, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx, span := startStage(ctx, "run", attribute.String("run_id", runID))
	e.logger.Info("analysis started", "run_id", runID, "root", coll.Root, "files", len(coll.Units))

	report, err := e.analyze(ctx, coll)
	endStage(span, err)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrCanceled) {
			outcome = "canceled"
		}
		runsTotal.WithLabelValues(outcome).Inc()
		e.logger.Warn("analysis aborted", "run_id", runID, "error", err)
		return nil, err
	}

	elapsed := time.Since(start)
	report.Metadata = model.RunMetadata{
		RunID:     runID,
		Timestamp: start.UTC(),
		Root:      coll.Root,
		FileCount: len(coll.Units),
		Languages: languageCounts(coll.Units),
		Duration:  elapsed,
		Digest:    Digest(e.cfg, coll.Units),
	}
	runsTotal.WithLabelValues("ok").Inc()
	runDuration.Observe(elapsed.Seconds())
	duplicateClusters.Set(float64(len(report.Duplicates)))
	e.logger.Info("analysis finished", "run_id", runID, "files", len(coll.Units),
		"issues", len(report.Issues), "clusters", len(report.Duplicates), "duration", elapsed)
	return report, nil
}

func (e *Engine) analyze(ctx context.Context, coll *discover.Collection) (*model.AnalysisReport, error) {
	reg, err := e.registry(coll)
	if err != nil {
		return nil, err
	}

	results, err := e.processFiles(ctx, coll.Units)
	if err != nil {
		return nil, err
	}

	tokens := make(map[string][]model.ImportToken, len(results))
	streams := make(map[string]*tokenize.Stream, len(results))
	var fragments int
	var fileErrs []model.FileError
	for _, r := range results {
		tokens[r.path] = r.imports
		if r.stream != nil {
			streams[r.path] = r.stream
			fragments += len(r.stream.Fragments)
		}
		fileErrs = append(fileErrs, r.errs...)
	}

	var (
		gr       *graph.Graph
		clusters []model.DuplicateCluster
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, span := startStage(gctx, "graph")
		gr = graph.Build(coll.Units, tokens, reg, graph.Options{MaxCycles: e.cfg.MaxCycles})
		cycles := gr.Cycles()
		gr.BuildOrder()
		span.SetAttributes(attribute.Int("edges", len(gr.Edges())), attribute.Int("cycles", len(cycles)))
		endStage(span, nil)
		return nil
	})
	g.Go(func() error {
		sctx, span := startStage(gctx, "duplication", attribute.Int("fragments", fragments))
		var err error
		clusters, err = dupe.Files(sctx, coll.Units, streams, dupe.OptionsFrom(e.cfg))
		endStage(span, err)
		return err
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, canceled(ctx)
		}
		return nil, fmt.Errorf("detecting duplicates: %w", err)
	}
	if ctx.Err() != nil {
		return nil, canceled(ctx)
	}

	return assemble(coll, results, fileErrs, gr, clusters), nil
}

// registry layers the collected manifests and configured packages over the
// embedded defaults.
func (e *Engine) registry(coll *discover.Collection) (*registry.Registry, error) {
	reg, err := registry.New()
	if err != nil {
		return nil, fmt.Errorf("loading package registry: %w", err)
	}
	for l, names := range e.cfg.KnownPackages {
		reg.Add(model.Language(l), names...)
	}
	for _, add := range e.packages {
		add(reg)
	}
	for _, m := range coll.Manifests {
		if err := reg.AddManifest(m); err != nil {
			e.logger.Warn("manifest ignored", "path", m.Path, "error", err)
		}
	}
	return reg, nil
}

func assemble(coll *discover.Collection, results []fileResult, fileErrs []model.FileError, gr *graph.Graph, clusters []model.DuplicateCluster) *model.AnalysisReport {
	ranks := gr.Rank()
	report := &model.AnalysisReport{
		Files:      make([]model.FileSummary, 0, len(results)),
		Imports:    orEmpty(gr.Imports()),
		ImportStat: gr.Stats(),
		Graph:      gr.Snapshot(),
		Unresolved: gr.Unresolved(),
		Duplicates: orEmpty(clusters),
		Skipped:    orEmpty(coll.Skipped),
		Structure:  coll.Structure(),
	}
	report.Graph.Nodes = orEmpty(report.Graph.Nodes)
	report.Graph.Edges = orEmpty(report.Graph.Edges)
	report.Graph.Cycles = orEmpty(report.Graph.Cycles)
	report.Graph.BuildOrder = orEmpty(report.Graph.BuildOrder)

	for i, r := range results {
		u := coll.Units[i]
		report.Files = append(report.Files, model.FileSummary{
			Path:     u.Path,
			Language: u.Language,
			Size:     u.Size,
			Imports:  len(r.imports),
			Issues:   len(r.issues),
			Score:    quality.Score(r.issues),
			Rank:     ranks[u.Path],
		})
		report.Issues = append(report.Issues, r.issues...)
	}
	slices.SortStableFunc(report.Issues, func(a, b model.QualityIssue) int {
		return cmp.Or(
			cmp.Compare(a.Path, b.Path),
			cmp.Compare(a.StartLine, b.StartLine),
			cmp.Compare(a.RuleID, b.RuleID),
		)
	})
	report.Issues = orEmpty(report.Issues)

	slices.SortStableFunc(fileErrs, func(a, b model.FileError) int {
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.Stage, b.Stage))
	})
	report.Errors = orEmpty(fileErrs)
	return report
}

func orEmpty[S ~[]E, E any](s S) S {
	if s == nil {
		return S{}
	}
	return s
}

func languageCounts(units []model.SourceUnit) map[model.Language]int {
	counts := make(map[model.Language]int)
	for _, u := range units {
		counts[u.Language]++
	}
	return counts
}

func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
}

// Digest identifies a run input: the settings that affect the report plus
// the sorted unit paths and content digests. Two inputs with the same digest
// produce the same report apart from its metadata.
func Digest(cfg config.Config, units []model.SourceUnit) string {
	// Settings that only change how the run executes.
	cfg.WorkerPoolSize = 0
	cfg.Logging = config.Logging{}
	cfg.Cache = config.Cache{}
	cfg.Server = config.Server{}

	h := blake3.New()
	if b, err := config.Marshal(cfg); err == nil {
		_, _ = h.Write(b)
	}
	sorted := slices.Clone(units)
	slices.SortFunc(sorted, func(a, b model.SourceUnit) int { return cmp.Compare(a.Path, b.Path) })
	for _, u := range sorted {
		_, _ = fmt.Fprintf(h, "%s\x00%s\x00%s\n", u.Path, u.Language, u.Digest)
	}
	return hex.EncodeToString(h.Sum(nil))
}
