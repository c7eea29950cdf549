// codescope analyzes a source tree or zip archive and reports its dependency
// graph, duplicated code and quality issues.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phobologic/codescope/internal/analyze"
	"github.com/phobologic/codescope/internal/cache"
	"github.com/phobologic/codescope/internal/config"
	"github.com/phobologic/codescope/internal/model"
	"github.com/phobologic/codescope/internal/ranking"
	"github.com/phobologic/codescope/internal/toon"
)

var version = "dev"

// configFileName is picked up from the analyzed directory when --config is
// not given.
const configFileName = ".codescope.yaml"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type analyzeFlags struct {
	configPath  string
	format      string
	pretty      bool
	maxFiles    int
	file        string
	langs       string
	maxFileSize int64
	workers     int
	threshold   float64
	window      int
	categories  string
	cacheDir    string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:           "codescope [path]",
		Short:         "Analyze dependencies, duplication and quality issues in a codebase",
		Long:          "Analyze a directory or .zip archive (default: current directory) and print the report.",
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) > 0 {
				target = args[0]
			}
			return runAnalyze(cmd, f, target)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("codescope {{.Version}}\n")

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "config file (default: <path>/"+configFileName+" if present)")
	fl.StringVar(&f.format, "format", "json", "output format: json or toon")
	fl.BoolVar(&f.pretty, "pretty", false, "indent JSON output")
	fl.IntVarP(&f.maxFiles, "max-files", "n", 0, "maximum number of files to include, by rank")
	fl.StringVar(&f.file, "file", "", "only include files whose path contains this substring")
	fl.StringVarP(&f.langs, "langs", "l", "", "comma-separated languages to include")
	fl.Int64Var(&f.maxFileSize, "max-file-size", 0, "skip files larger than this many bytes")
	fl.IntVar(&f.workers, "workers", 0, "worker pool size")
	fl.Float64Var(&f.threshold, "threshold", 0, "duplicate similarity threshold in (0,1]")
	fl.IntVar(&f.window, "window", 0, "shingle window size in tokens")
	fl.StringVar(&f.categories, "categories", "", "comma-separated rule categories to enable")
	fl.StringVar(&f.cacheDir, "cache-dir", "", "report cache directory")

	cmd.AddCommand(newInitCmd(), newServeCmd())
	return cmd
}

func runAnalyze(cmd *cobra.Command, f analyzeFlags, target string) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if f.format != "json" && f.format != "toon" {
		return fmt.Errorf("unknown format %q (want json or toon)", f.format)
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}

	var src analyze.Source
	configDir := abs
	switch {
	case info.IsDir():
		src = analyze.Dir(abs)
	case strings.EqualFold(filepath.Ext(abs), ".zip"):
		data, err := os.ReadFile(abs)
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}
		src = analyze.Archive(data, filepath.Base(abs))
		configDir = filepath.Dir(abs)
	default:
		return fmt.Errorf("%s: not a directory or .zip archive", abs)
	}

	cfg, err := loadConfig(f.configPath, configDir)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, f, &cfg); err != nil {
		return err
	}

	logger := newLogger(cfg.Logging, stderr)
	engine, err := analyze.New(cfg, analyze.WithLogger(logger))
	if err != nil {
		return err
	}

	coll, err := engine.Collect(ctx, src)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	for _, s := range coll.Skipped {
		if s.Reason == model.SkipTooLarge {
			_, _ = fmt.Fprintf(stderr, "Warning: %s: skipped (%s)\n", s.Path, s.Detail)
		}
	}
	if len(coll.Units) == 0 {
		return errors.New("no parseable files found")
	}

	var store *cache.Cache
	if cfg.Cache.Dir != "" {
		store, err = cache.Open(cfg.Cache.Dir, logger, cache.WithTTL(cfg.Cache.TTL))
		if err != nil {
			return err
		}
		defer store.Close()
	}

	key := analyze.Digest(cfg, coll.Units)
	var report *model.AnalysisReport
	if store != nil {
		if cached, ok, err := store.Get(ctx, key); err != nil {
			logger.Warn("cache read failed", "error", err)
		} else if ok {
			report = cached
		}
	}
	if report == nil {
		report, err = engine.Analyze(ctx, coll)
		if err != nil {
			return err
		}
		if store != nil {
			if err := store.Put(ctx, key, report); err != nil {
				logger.Warn("cache write failed", "error", err)
			}
		}
	}

	if f.maxFiles > 0 {
		report = ranking.SelectFiles(report, f.maxFiles)
	}
	if f.file != "" {
		report = ranking.FilterByPath(report, f.file)
	}
	return writeReport(stdout, report, f.format, f.pretty)
}

// loadConfig reads an explicit config file, or the one in dir if present.
func loadConfig(path, dir string) (config.Config, error) {
	if path == "" {
		candidate := filepath.Join(dir, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	return config.Load(path)
}

// applyFlags overrides cfg with the flags the user actually set.
func applyFlags(cmd *cobra.Command, f analyzeFlags, cfg *config.Config) error {
	set := cmd.Flags().Changed
	if f.langs != "" {
		langs, err := parseLanguages(f.langs)
		if err != nil {
			return err
		}
		cfg.SupportedLanguages = langs
	}
	if f.categories != "" {
		cats, err := parseCategories(f.categories)
		if err != nil {
			return err
		}
		cfg.EnabledCategories = cats
	}
	if set("max-file-size") {
		cfg.MaxFileSize = f.maxFileSize
	}
	if set("workers") {
		cfg.WorkerPoolSize = f.workers
	}
	if set("threshold") {
		cfg.SimilarityThreshold = f.threshold
	}
	if set("window") {
		cfg.ShingleWindowSize = f.window
	}
	if set("cache-dir") {
		cfg.Cache.Dir = f.cacheDir
	}
	return cfg.Validate()
}

func parseLanguages(s string) ([]model.Language, error) {
	var out []model.Language
	for _, name := range strings.Split(s, ",") {
		l := model.Language(strings.ToLower(strings.TrimSpace(name)))
		if !slices.Contains(model.AllLanguages, l) {
			return nil, fmt.Errorf("unsupported language %q", name)
		}
		out = append(out, l)
	}
	return out, nil
}

func parseCategories(s string) ([]model.Category, error) {
	var out []model.Category
	for _, name := range strings.Split(s, ",") {
		c := model.Category(strings.ToLower(strings.TrimSpace(name)))
		if !slices.Contains(model.AllCategories, c) {
			return nil, fmt.Errorf("unknown rule category %q", name)
		}
		out = append(out, c)
	}
	return out, nil
}

func writeReport(w io.Writer, r *model.AnalysisReport, format string, pretty bool) error {
	if format == "toon" {
		_, err := fmt.Fprintln(w, toon.Encode(r))
		return err
	}
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(r)
}

func newLogger(cfg config.Logging, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
