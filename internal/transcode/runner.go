package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/vid2audio/internal/config"
	"github.com/backmassage/vid2audio/internal/probe"
	"github.com/backmassage/vid2audio/internal/progress"
)

// ProgressFunc receives per-file progress. It may be nil.
type ProgressFunc func(progress.FileProgress)

// Engine locates the external tools and tunes how their output is read.
type Engine struct {
	Path             string        // ffmpeg-compatible encoder.
	ProbePath        string        // ffprobe-compatible prober.
	ProgressInterval time.Duration // Minimum gap between progress events.
	TailLines        int           // Stderr lines kept for failure reports.
}

// EngineFromConfig builds an Engine from cfg.
func EngineFromConfig(cfg *config.Config) Engine {
	return Engine{
		Path:             cfg.EnginePath,
		ProbePath:        cfg.ProbePath,
		ProgressInterval: time.Duration(cfg.ProgressIntervalMS) * time.Millisecond,
		TailLines:        cfg.StderrTailLines,
	}
}

// Logger is the subset of logging.Logger the runner needs.
type Logger interface {
	Debug(verbose bool, format string, args ...interface{})
}

// Runner converts one Task at a time. A Runner is safe for concurrent use.
type Runner struct {
	engine  Engine
	log     Logger
	verbose bool
	now     func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger used for engine command lines.
func WithLogger(log Logger, verbose bool) RunnerOption {
	return func(r *Runner) {
		r.log = log
		r.verbose = verbose
	}
}

// WithClock replaces the clock used for progress throttling.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner returns a Runner for engine.
func NewRunner(engine Engine, opts ...RunnerOption) *Runner {
	r := &Runner{engine: engine, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run converts task.Source to task.Target and reports progress through
// onProgress. It never returns with a partial target: the engine writes to a
// hidden temporary file that is renamed into place only after a clean exit
// with non-empty output.
//
// An existing non-empty target is reused without invoking the engine unless
// task.Overwrite is set. Cancelling ctx stops the engine and yields a failed
// outcome whose Err matches ctx.Err().
func (r *Runner) Run(ctx context.Context, task Task, onProgress ProgressFunc) Outcome {
	start := time.Now()
	out := r.run(ctx, task, onProgress)
	out.Elapsed = time.Since(start)
	return out
}

func (r *Runner) run(ctx context.Context, task Task, onProgress ProgressFunc) Outcome {
	name := filepath.Base(task.Source.Path)

	ofmt, err := LookupFormat(task.Format)
	if err != nil {
		return Failed(task, err)
	}

	if fi, err := os.Stat(task.Target); err == nil {
		if !fi.Mode().IsRegular() {
			return Failed(task, fmt.Errorf("%w: %s", ErrTargetConflict, task.Target))
		}
		if !task.Overwrite && fi.Size() > 0 {
			if onProgress != nil {
				onProgress(progress.FileProgress{File: name, Percent: 100})
			}
			return Outcome{
				Status:      StatusSucceeded,
				Source:      task.Source.Path,
				Target:      task.Target,
				Reused:      true,
				InputBytes:  task.Source.Size,
				OutputBytes: fi.Size(),
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return Failed(task, err)
	}

	pr, err := probe.Probe(ctx, r.engine.ProbePath, task.Source.Path)
	if err != nil {
		if ctx.Err() != nil {
			return Failed(task, ctx.Err())
		}
		if isStartError(err) {
			return Failed(task, fmt.Errorf("%w: %s: %v", ErrEngineNotFound, r.engine.ProbePath, err))
		}
		return Failed(task, fmt.Errorf("%w: %v", ErrProbeFailed, err))
	}
	total, err := pr.RequireDuration()
	if err != nil {
		return Failed(task, fmt.Errorf("%w: %s: %v", ErrProbeFailed, name, err))
	}
	if !pr.HasAudio() {
		return Failed(task, fmt.Errorf("%w: %s", ErrNoAudio, name))
	}

	plan := BuildAudioPlan(task, ofmt, pr.PrimaryAudio())
	if err := os.MkdirAll(filepath.Dir(task.Target), 0o755); err != nil {
		return Failed(task, fmt.Errorf("create output directory: %w", err))
	}

	tmp := tempPath(task.Target)
	// The temp file never pre-exists, so the engine always runs with -y.
	args := BuildArgs(task.Source.Path, tmp, plan, true, r.verbose)
	if r.log != nil {
		r.log.Debug(r.verbose, "%s %s", r.engine.Path, strings.Join(args, " "))
	}

	tr := &tracker{
		file:     name,
		total:    total,
		throttle: progress.NewThrottleClock(r.engine.ProgressInterval, r.now),
		emit:     onProgress,
	}
	if err := r.execute(ctx, args, tr); err != nil {
		_ = os.Remove(tmp)
		return Failed(task, err)
	}

	fi, err := os.Stat(tmp)
	if err != nil || fi.Size() == 0 {
		_ = os.Remove(tmp)
		return Failed(task, &ConversionFailedError{Reason: ReasonEmptyOutput})
	}
	if err := os.Rename(tmp, task.Target); err != nil {
		_ = os.Remove(tmp)
		return Failed(task, fmt.Errorf("%w: %v", ErrConversionFailed, err))
	}
	tr.finish()

	return Outcome{
		Status:      StatusSucceeded,
		Source:      task.Source.Path,
		Target:      task.Target,
		Copied:      plan.Copy,
		InputBytes:  task.Source.Size,
		OutputBytes: fi.Size(),
		Duration:    total,
	}
}

// execute runs the engine, feeding progress from stdout and stats lines
// from stderr to tr while keeping the last stderr lines for diagnostics.
func (r *Runner) execute(ctx context.Context, args []string, tr *tracker) error {
	cmd := exec.CommandContext(ctx, r.engine.Path, args...)
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEngineNotFound, r.engine.Path, err)
	}

	tl := newTail(r.engine.TailLines)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, func(line string) {
			if s, ok := parseElapsed(line); ok {
				tr.observe(s)
			}
		})
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, func(line string) {
			if isStatsLine(line) {
				if s, ok := parseElapsed(line); ok {
					tr.observe(s)
				}
				return
			}
			tl.add(line)
		})
	}()
	wg.Wait()
	err = cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			lines := tl.snapshot()
			return &ConversionFailedError{
				ExitCode:   exitErr.ExitCode(),
				StderrTail: lines,
				Reason:     Classify(lines),
			}
		}
		return fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	return nil
}

// isStatsLine matches the engine's periodic "frame=... time=..." or
// "size=... time=..." status line.
func isStatsLine(line string) bool {
	return (strings.HasPrefix(line, "size=") || strings.HasPrefix(line, "frame=")) &&
		strings.Contains(line, "time=")
}

// tempPath returns a hidden sibling of target unique to this run.
func tempPath(target string) string {
	dir, base := filepath.Split(target)
	return filepath.Join(dir, "."+base+"."+uuid.NewString()[:8]+".part")
}
