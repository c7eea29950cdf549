package analyze

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/codescope/internal/imports"
	"github.com/phobologic/codescope/internal/model"
	"github.com/phobologic/codescope/internal/tokenize"
)

// fileResult is everything stage one learns about one unit.
type fileResult struct {
	index   int
	path    string
	imports []model.ImportToken
	issues  []model.QualityIssue
	stream  *tokenize.Stream
	errs    []model.FileError
}

// processFiles runs stage one over every unit and returns the results in
// unit order. Workers only send on the results channel; this goroutine is
// the single writer of the accumulator.
func (e *Engine) processFiles(ctx context.Context, units []model.SourceUnit) ([]fileResult, error) {
	ctx, span := startStage(ctx, "files", attribute.Int("units", len(units)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.WorkerPoolSize)

	out := make(chan fileResult, e.cfg.WorkerPoolSize)
	done := make(chan error, 1)
	go func() {
		for i := range units {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				out <- e.processFile(gctx, i, units[i])
				return nil
			})
		}
		done <- g.Wait()
		close(out)
	}()

	results := make([]fileResult, len(units))
	for r := range out {
		results[r.index] = r
		for _, fe := range r.errs {
			fileErrorsTotal.WithLabelValues(string(fe.Stage)).Inc()
			e.logger.Warn("file analysis failed", "path", fe.Path, "stage", fe.Stage, "error", fe.Message)
		}
	}
	err := <-done
	if err == nil && ctx.Err() != nil {
		err = canceled(ctx)
	}
	endStage(span, err)
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		filesTotal.WithLabelValues(string(u.Language)).Inc()
	}
	return results, nil
}

// processFile bounds one unit's work by the file timeout. The stages run on
// their own goroutine so a stuck stage cannot hold the worker past the
// deadline.
func (e *Engine) processFile(ctx context.Context, index int, unit model.SourceUnit) fileResult {
	base := fileResult{index: index, path: unit.Path}
	if ctx.Err() != nil {
		return base
	}

	fctx, cancel := context.WithTimeout(ctx, e.cfg.FileTimeout)
	defer cancel()

	ch := make(chan fileResult, 1)
	go func() { ch <- e.stages(fctx, base, unit) }()

	select {
	case r := <-ch:
		if errors.Is(fctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && len(r.errs) > 0 {
			// A stage noticed the deadline first and failed on it.
			return timedOut(base, e.cfg.FileTimeout)
		}
		return r
	case <-fctx.Done():
		if ctx.Err() != nil {
			return base
		}
		return timedOut(base, e.cfg.FileTimeout)
	}
}

func timedOut(r fileResult, limit time.Duration) fileResult {
	r.errs = []model.FileError{{Path: r.path, Stage: model.StageTimeout, Message: "exceeded " + limit.String()}}
	return r
}

// stages runs extraction, scanning and tokenization. A failure in one stage
// is recorded and the remaining stages still run.
func (e *Engine) stages(ctx context.Context, r fileResult, unit model.SourceUnit) fileResult {
	record := func(fe *model.FileError) {
		if fe != nil {
			r.errs = append(r.errs, *fe)
		}
	}

	record(guard(unit.Path, model.StageExtract, func() error {
		if e.fileHook != nil {
			if err := e.fileHook(ctx, unit); err != nil {
				return err
			}
		}
		if ex := imports.For(unit.Language); ex != nil {
			r.imports = imports.All(ex, unit.Text)
		}
		return nil
	}))
	record(guard(unit.Path, model.StageScan, func() error {
		r.issues = e.scanner.Scan(unit)
		return nil
	}))
	record(guard(unit.Path, model.StageTokenize, func() error {
		s, err := tokenize.File(ctx, unit)
		if err != nil {
			return err
		}
		r.stream = s
		return nil
	}))
	return r
}

// guard runs fn, turning an error or a panic into a FileError for stage.
func guard(path string, stage model.Stage, fn func() error) (fe *model.FileError) {
	defer func() {
		if p := recover(); p != nil {
			fe = &model.FileError{Path: path, Stage: stage, Message: fmt.Sprintf("panic: %v", p)}
		}
	}()
	if err := fn(); err != nil {
		return &model.FileError{Path: path, Stage: stage, Message: err.Error()}
	}
	return nil
}
