// Package engine drives a scan end to end: it discovers the input files,
// fans them out across a bounded worker pool, runs every registered detector
// against each parsed tree, and folds the results into a single envelope.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/analysis/core"
	"github.com/xkilldash9x/lancet/internal/analysis/detect"
	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/syntax"
)

// ErrNoInput is returned when the targets yield no analyzable files.
var ErrNoInput = errors.New("no analyzable files found in the given targets")

// Engine coordinates one scan over a filesystem.
type Engine struct {
	cfg      *config.Config
	fs       afero.Fs
	registry *detect.Registry
	logger   *zap.Logger
	version  string

	// sink, when set, receives every finding as it is produced so the
	// findings store can persist the scan while it runs.
	sink chan<- schemas.Finding
}

// New creates a scan engine. The sink channel is optional; pass nil when no
// persistence is wired.
func New(cfg *config.Config, fsys afero.Fs, registry *detect.Registry, sink chan<- schemas.Finding, version string, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		fs:       fsys,
		registry: registry,
		logger:   logger.Named("engine"),
		version:  version,
		sink:     sink,
	}
}

// tally accumulates per-file outcomes across the worker pool.
type tally struct {
	mu            sync.Mutex
	findings      []schemas.Finding
	analyzed      int
	parseFailures int
	suppressed    int
}

func (t *tally) record(findings []schemas.Finding, suppressed int, parseFailed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if parseFailed {
		t.parseFailures++
	} else {
		t.analyzed++
	}
	t.suppressed += suppressed
	t.findings = append(t.findings, findings...)
}

// Run scans the given targets and returns the aggregated result envelope.
func (e *Engine) Run(ctx context.Context, targets []string) (*schemas.ResultEnvelope, error) {
	if len(targets) == 0 {
		return nil, ErrNoInput
	}

	start := time.Now()
	scanID := uuid.New().String()
	logger := e.logger.With(zap.String("scan_id", scanID))

	disc, err := e.discover(targets)
	if err != nil {
		return nil, err
	}

	files := disc.files
	if e.cfg.Scan.DiffBase != "" {
		files, err = e.filterByDiff(targets, files, logger)
		if err != nil {
			return nil, err
		}
	}

	if len(files) == 0 {
		return nil, ErrNoInput
	}

	logger.Info("Starting scan",
		zap.Int("files", len(files)),
		zap.Int("skipped", disc.skipped),
		zap.Strings("detectors", detectorNames(e.registry)),
	)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("analyzing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(!e.cfg.Scan.NoProgress),
	)

	concurrency := e.cfg.Scan.Concurrency
	if concurrency <= 0 {
		concurrency = e.cfg.Engine.WorkerConcurrency
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	results := &tally{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, path := range files {
		g.Go(func() error {
			defer func() { _ = bar.Add(1) }()
			if gctx.Err() != nil {
				return gctx.Err()
			}
			e.processFile(gctx, path, scanID, results, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		_ = bar.Finish()
		return nil, fmt.Errorf("scan aborted: %w", err)
	}
	_ = bar.Finish()

	findings := results.findings
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		if findings[i].Column != findings[j].Column {
			return findings[i].Column < findings[j].Column
		}
		return findings[i].RuleID < findings[j].RuleID
	})

	if e.sink != nil {
		for _, f := range findings {
			select {
			case e.sink <- f:
			case <-ctx.Done():
				logger.Warn("Persistence interrupted by cancellation", zap.Error(ctx.Err()))
				return nil, ctx.Err()
			}
		}
	}

	envelope := &schemas.ResultEnvelope{
		ScanID:    scanID,
		Tool:      "lancet",
		Version:   e.version,
		Timestamp: time.Now().UTC(),
		Targets:   targets,
		Findings:  findings,
		Stats: schemas.ScanStats{
			FilesDiscovered: len(disc.files) + disc.skipped,
			FilesAnalyzed:   results.analyzed,
			FilesSkipped:    disc.skipped,
			ParseFailures:   results.parseFailures,
			Suppressed:      results.suppressed,
			Duration:        time.Since(start),
		},
	}

	logger.Info("Scan complete",
		zap.Int("findings", len(findings)),
		zap.Int("files_analyzed", results.analyzed),
		zap.Int("parse_failures", results.parseFailures),
		zap.Int("suppressed", results.suppressed),
		zap.Duration("duration", envelope.Stats.Duration),
	)

	return envelope, nil
}

// filterByDiff narrows the discovered files to those changed since the
// configured base revision. Every directory target must sit inside a git
// repository for this to mean anything.
func (e *Engine) filterByDiff(targets, files []string, logger *zap.Logger) ([]string, error) {
	changed := make(map[string]bool)
	for _, target := range targets {
		set, err := changedFiles(target, e.cfg.Scan.DiffBase)
		if err != nil {
			return nil, fmt.Errorf("diff-base %s: %w", e.cfg.Scan.DiffBase, err)
		}
		for path := range set {
			changed[path] = true
		}
	}

	var kept []string
	for _, path := range files {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if changed[abs] {
			kept = append(kept, path)
		}
	}
	logger.Info("Diff filter applied",
		zap.String("base", e.cfg.Scan.DiffBase),
		zap.Int("changed", len(changed)),
		zap.Int("kept", len(kept)),
	)
	return kept, nil
}

// processFile parses one input and runs every detector over it. HTML
// documents are split into their inline scripts first; each script is
// analyzed as JavaScript with its line offset preserved.
func (e *Engine) processFile(ctx context.Context, path, scanID string, results *tally, logger *zap.Logger) {
	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		logger.Warn("Failed to read file", zap.String("file", path), zap.Error(err))
		results.record(nil, 0, true)
		return
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		e.processDocument(ctx, path, data, scanID, results, logger)
		return
	}

	lang, ok := syntax.LanguageForPath(path)
	if !ok {
		results.record(nil, 0, false)
		return
	}

	findings, suppressed, err := e.analyze(ctx, path, data, lang, 0, scanID)
	if err != nil {
		logger.Warn("Parse failed", zap.String("file", path), zap.Error(err))
		results.record(nil, 0, true)
		return
	}
	results.record(findings, suppressed, false)
}

// processDocument lifts inline scripts out of an HTML document and analyzes
// each one. A document with no scripts still counts as analyzed.
func (e *Engine) processDocument(ctx context.Context, path string, data []byte, scanID string, results *tally, logger *zap.Logger) {
	var findings []schemas.Finding
	var suppressed int

	for _, script := range syntax.ExtractScripts(data) {
		fs, sup, err := e.analyze(ctx, path, script.Source, syntax.LangJavaScript, script.LineOffset, scanID)
		if err != nil {
			logger.Warn("Parse failed for inline script",
				zap.String("file", path),
				zap.Int("line_offset", script.LineOffset),
				zap.Error(err),
			)
			results.record(nil, 0, true)
			return
		}
		findings = append(findings, fs...)
		suppressed += sup
	}
	results.record(findings, suppressed, false)
}

// analyze parses one source unit and runs the detector set against it.
func (e *Engine) analyze(ctx context.Context, path string, src []byte, lang syntax.Language, lineOffset int, scanID string) ([]schemas.Finding, int, error) {
	tree, err := syntax.Parse(ctx, src, lang)
	if err != nil {
		return nil, 0, err
	}
	defer tree.Close()

	if tree.HasError() {
		e.logger.Debug("Tree contains parse errors; results are best-effort", zap.String("file", path))
	}

	var oracle core.TypeOracle
	if resolver := syntax.NewUnionResolver(tree); resolver != nil {
		oracle = resolver
	}

	file := &detect.File{
		Path:       path,
		Tree:       tree,
		LineOffset: lineOffset,
		Oracle:     oracle,
	}

	var findings []schemas.Finding
	for _, detector := range e.registry.Detectors() {
		fs, err := detector.Analyze(ctx, file)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, 0, err
			}
			e.logger.Warn("Detector failed on file",
				zap.String("detector", detector.Name()),
				zap.String("file", path),
				zap.Error(err),
			)
			continue
		}
		findings = append(findings, fs...)
	}

	for i := range findings {
		findings[i].ScanID = scanID
	}
	return findings, file.SuppressedCount(), nil
}

func detectorNames(r *detect.Registry) []string {
	ds := r.Detectors()
	names := make([]string, 0, len(ds))
	for _, d := range ds {
		names = append(names, d.Name())
	}
	return names
}
