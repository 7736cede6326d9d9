package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	xterm "golang.org/x/term"

	"github.com/backmassage/vid2audio/internal/display"
	"github.com/backmassage/vid2audio/internal/progress"
	"github.com/backmassage/vid2audio/internal/term"
)

// barSteps is the bar resolution; overall percent is shown in tenths.
const barSteps = 1000

type infoLogger interface {
	Info(format string, args ...interface{})
}

// newReporter draws a progress bar on w when it is a terminal and falls back
// to sampled log lines otherwise.
func newReporter(w *os.File, log infoLogger) progress.Reporter {
	if !term.IsTerminal(w) {
		return newLogReporter(log, 25)
	}
	width := 40
	if cols, _, err := xterm.GetSize(int(w.Fd())); err == nil {
		width = barWidth(cols)
	}
	return newBarReporter(w, width)
}

// barWidth leaves room for the description and the percent label.
func barWidth(cols int) int {
	w := cols - 60
	switch {
	case w < 10:
		return 10
	case w > 50:
		return 50
	default:
		return w
	}
}

// barReporter renders overall batch progress with the current file as the
// description. The bar only moves forward, even when parallel jobs report a
// file that is further behind.
type barReporter struct {
	bar  *progressbar.ProgressBar
	desc string
	pos  int
}

func newBarReporter(w io.Writer, width int) *barReporter {
	bar := progressbar.NewOptions(barSteps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(width),
		progressbar.OptionEnableColorCodes(term.Enabled()),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &barReporter{bar: bar}
}

func (r *barReporter) Report(s progress.Snapshot) {
	if d := describe(s); d != r.desc {
		r.desc = d
		r.bar.Describe(d)
	}
	if pos := int(s.Overall() * barSteps / 100); pos > r.pos {
		r.pos = pos
		_ = r.bar.Set(pos)
	}
}

func (r *barReporter) Done(s progress.Snapshot) {
	if s.FilesCompleted >= s.FilesTotal {
		_ = r.bar.Finish()
		return
	}
	_ = r.bar.Clear()
}

// describe labels the bar with the file counter and the current file name.
func describe(s progress.Snapshot) string {
	n := s.FilesCompleted + 1
	if n > s.FilesTotal {
		n = s.FilesTotal
	}
	name := filepath.Base(s.CurrentFile)
	if s.CurrentFile == "" {
		name = ""
	}
	return fmt.Sprintf("[%d/%d] %s", n, s.FilesTotal, truncate(name, 32))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// logReporter logs per-file progress at bucket boundaries. Each in-flight
// file has its own sampler so parallel jobs do not defeat the sampling.
// Completion snapshots carry no file name, so every completion drops all
// samplers; files still running log once more on their next event.
type logReporter struct {
	log       infoLogger
	bucket    float64
	completed int
	samplers  map[string]*progress.Sampler
}

func newLogReporter(log infoLogger, bucket float64) *logReporter {
	return &logReporter{log: log, bucket: bucket, samplers: make(map[string]*progress.Sampler)}
}

func (r *logReporter) Report(s progress.Snapshot) {
	if s.FilesCompleted > r.completed {
		r.completed = s.FilesCompleted
		clear(r.samplers)
	}
	if s.CurrentFile == "" {
		return
	}
	sm, ok := r.samplers[s.CurrentFile]
	if !ok {
		sm = progress.NewSampler(r.bucket)
		r.samplers[s.CurrentFile] = sm
	}
	if !sm.ShouldLog(s.Percent, s.CurrentFile) {
		return
	}
	r.log.Info("  %s %5.1f%% (%s / %s) [batch %.0f%%]",
		s.CurrentFile, s.Percent, display.FormatClock(s.Elapsed), display.FormatClock(s.Total), s.Overall())
}

func (r *logReporter) Done(progress.Snapshot) {
	clear(r.samplers)
}
