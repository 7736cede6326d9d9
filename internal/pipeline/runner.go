package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/vid2audio/internal/config"
	"github.com/backmassage/vid2audio/internal/fingerprint"
	"github.com/backmassage/vid2audio/internal/progress"
	"github.com/backmassage/vid2audio/internal/scan"
	"github.com/backmassage/vid2audio/internal/transcode"
)

// Logger is the subset of logging.Logger the pipeline uses.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Skip(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// Transcoder converts a single task. *transcode.Runner implements it.
type Transcoder interface {
	Run(ctx context.Context, task transcode.Task, onProgress transcode.ProgressFunc) transcode.Outcome
}

// Option configures a Converter.
type Option func(*Converter)

// WithTranscoder replaces the engine-backed transcoder.
func WithTranscoder(t Transcoder) Option {
	return func(c *Converter) { c.tr = t }
}

// WithReporter sets where progress snapshots go.
func WithReporter(r progress.Reporter) Option {
	return func(c *Converter) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithIndex shares a fingerprint index, e.g. one backed by a persistent
// store or reused across runs.
func WithIndex(ix *fingerprint.Index) Option {
	return func(c *Converter) {
		if ix != nil {
			c.index = ix
		}
	}
}

// Converter runs batches with a fixed configuration. It is not safe to run
// two batches on one Converter concurrently.
type Converter struct {
	cfg      *config.Config
	log      Logger
	tr       Transcoder
	reporter progress.Reporter
	index    *fingerprint.Index
}

// NewConverter returns a Converter for cfg. Without options it converts with
// the configured engine, reports nowhere and fingerprints per cfg.
func NewConverter(cfg *config.Config, log Logger, opts ...Option) *Converter {
	c := &Converter{cfg: cfg, log: log, reporter: progress.Nop{}}
	for _, o := range opts {
		o(c)
	}
	if c.tr == nil {
		c.tr = transcode.NewRunner(transcode.EngineFromConfig(cfg), transcode.WithLogger(log, cfg.Verbose))
	}
	if c.index == nil {
		c.index = NewIndex(cfg, nil)
	}
	return c
}

// NewIndex builds a fingerprint index from cfg's dedup settings.
func NewIndex(cfg *config.Config, store fingerprint.Store) *fingerprint.Index {
	opts := []fingerprint.Option{
		fingerprint.WithMode(fingerprint.Mode(cfg.DedupMode)),
		fingerprint.WithWindow(cfg.DedupWindowBytes()),
	}
	if store != nil {
		opts = append(opts, fingerprint.WithStore(store))
	}
	return fingerprint.NewIndex(opts...)
}

// Convert plans input and converts every accepted source. The returned
// error is non-nil only for setup failures; per-file failures are in the
// result.
func (c *Converter) Convert(ctx context.Context, input string) (*BatchResult, error) {
	start := time.Now()
	plan, err := c.Plan(ctx, input)
	if err != nil {
		return nil, err
	}
	if plan.Scanned == 0 {
		c.log.Warn("No video files found in %s", input)
	}
	if len(plan.Tasks) > 0 {
		if err := c.preflight(); err != nil {
			return nil, err
		}
	}

	c.logBatchHeader(plan)
	res := c.execute(ctx, plan)
	res.Elapsed = time.Since(start)
	c.logSummary(res)
	return res, nil
}

// event is one message to the progress consumer: a file progress update,
// or a file reaching a terminal state.
type event struct {
	progress progress.FileProgress
	done     bool
}

func (c *Converter) execute(ctx context.Context, plan *Plan) *BatchResult {
	runID := uuid.NewString()
	total := len(plan.Tasks)

	// Single consumer: the only goroutine touching the aggregator's writers
	// and the reporter.
	agg := progress.NewAggregator(total)
	events := make(chan event, 64)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for ev := range events {
			if ev.done {
				c.reporter.Report(agg.FileCompleted())
			} else {
				c.reporter.Report(agg.Update(ev.progress))
			}
		}
		c.reporter.Done(agg.Snapshot())
	}()

	workers := c.cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > total {
		workers = total
	}

	var (
		mu            sync.Mutex
		outcomes      = make([]transcode.Outcome, 0, total)
		engineMissing atomic.Bool
		notStarted    atomic.Int64
		finished      atomic.Int64
		wg            sync.WaitGroup
	)
	tasks := make(chan transcode.Task)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				if ctx.Err() != nil {
					notStarted.Add(1)
					continue
				}

				var out transcode.Outcome
				if engineMissing.Load() {
					out = transcode.Failed(task, fmt.Errorf("%w: not started", transcode.ErrEngineNotFound))
				} else {
					c.log.Info("Converting: %s", task.Source.RelPath)
					out = c.tr.Run(ctx, task, func(p progress.FileProgress) {
						events <- event{progress: p}
					})
					if errors.Is(out.Err, transcode.ErrEngineNotFound) {
						engineMissing.Store(true)
					}
				}
				events <- event{done: true}

				n := finished.Add(1)
				c.logOutcome(int(n), total, out)
				mu.Lock()
				outcomes = append(outcomes, out)
				mu.Unlock()
			}
		}()
	}

	dispatched := 0
dispatch:
	for _, task := range plan.Tasks {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case tasks <- task:
			dispatched++
		}
	}
	close(tasks)
	wg.Wait()
	close(events)
	<-consumed

	res := newBatchResult(runID, plan, outcomes)
	res.Dropped = total - dispatched + int(notStarted.Load())
	res.Cancelled = ctx.Err() != nil
	return res
}

// --- Logging helpers ---

func (c *Converter) logBatchHeader(p *Plan) {
	if p.Scanned == 0 {
		return
	}
	c.log.Info("Found %d video files (%d duplicates skipped)", p.Scanned, len(p.Duplicates))
	format := string(c.cfg.Format)
	if c.cfg.Format.IsLossless() {
		c.log.Info("Output: %s (lossless), jobs: %d", format, c.cfg.Concurrency)
	} else {
		c.log.Info("Output: %s @ %s, jobs: %d", format, c.cfg.Bitrate, c.cfg.Concurrency)
	}
	if c.cfg.OutputDir == "" {
		c.log.Info("Targets: next to each source")
	} else {
		c.log.Info("Targets: %s", c.cfg.OutputDir)
	}
	for _, d := range p.Duplicates {
		c.log.Skip("Duplicate: %s (same content as %s)", filepath.Base(d.Source), filepath.Base(d.DuplicateOf))
	}
}

func (c *Converter) logOutcome(n, total int, out transcode.Outcome) {
	name := filepath.Base(out.Source)
	switch {
	case out.Status == transcode.StatusSucceeded && out.Reused:
		c.log.Skip("[%d/%d] Exists: %s", n, total, filepath.Base(out.Target))
	case out.Status == transcode.StatusSucceeded:
		c.log.Success("[%d/%d] %s -> %s (%ds)", n, total, name, filepath.Base(out.Target), int(out.Elapsed.Seconds()))
	case errors.Is(out.Err, context.Canceled):
		c.log.Warn("[%d/%d] Interrupted: %s", n, total, name)
	default:
		c.log.Error("[%d/%d] Failed: %s: %s", n, total, name, out.Reason)
		var cf *transcode.ConversionFailedError
		if errors.As(out.Err, &cf) {
			for _, l := range cf.StderrTail {
				c.log.Debug(c.cfg.Verbose, "  %s", l)
			}
		}
	}
}

func (c *Converter) logSummary(r *BatchResult) {
	if r.Scanned == 0 {
		return
	}
	c.log.Info("Done: %d converted, %d reused, %d duplicates, %d failed",
		r.Converted(), r.Reused, r.Duplicates, r.Failed)
	if r.Dropped > 0 {
		c.log.Warn("%d files not started (interrupted)", r.Dropped)
	}
}

// Run is the CLI entry point: lock the output tree, then convert
// cfg.InputPath with a fresh Converter reporting to reporter.
func Run(ctx context.Context, cfg *config.Config, log Logger, reporter progress.Reporter, opts ...Option) (*BatchResult, error) {
	// Locking creates the lock directory; never create a missing input.
	if _, err := os.Stat(cfg.InputPath); err != nil {
		return nil, &scan.ScanError{Path: cfg.InputPath, Err: err}
	}
	unlock, err := AcquireOutputLock(lockDir(cfg))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warn("Release output lock: %v", err)
		}
	}()

	opts = append(opts, WithReporter(reporter))
	return NewConverter(cfg, log, opts...).Convert(ctx, cfg.InputPath)
}
