package pipeline

import (
	"slices"
	"strings"
	"time"

	"github.com/backmassage/vid2audio/internal/fingerprint"
	"github.com/backmassage/vid2audio/internal/transcode"
)

// Process exit codes for a finished batch.
const (
	ExitOK          = 0
	ExitSetupError  = 1 // Setup failed or no video files were found.
	ExitAllFailed   = 2
	ExitSomeFailed  = 3
	ExitInterrupted = 130
)

// BatchResult is the aggregate of one batch run.
type BatchResult struct {
	RunID      string
	Input      string
	Scanned    int
	Succeeded  int
	Failed     int
	Duplicates int
	Reused     int // Subset of Succeeded whose target already existed.
	Copied     int // Subset of Succeeded converted by stream copy.
	Dropped    int // Queued but never started because the run was cancelled.
	Cancelled  bool

	TotalInputBytes  int64
	TotalOutputBytes int64
	Elapsed          time.Duration

	Outcomes []transcode.Outcome // Sorted by source path.
	Groups   []fingerprint.Group
}

// newBatchResult tallies outcomes and sorts them by source path.
func newBatchResult(runID string, p *Plan, outcomes []transcode.Outcome) *BatchResult {
	r := &BatchResult{RunID: runID, Input: p.Input, Scanned: p.Scanned, Groups: p.Groups}
	r.Outcomes = make([]transcode.Outcome, 0, len(outcomes)+len(p.Duplicates))
	r.Outcomes = append(r.Outcomes, p.Duplicates...)
	r.Outcomes = append(r.Outcomes, outcomes...)
	slices.SortStableFunc(r.Outcomes, func(a, b transcode.Outcome) int {
		return strings.Compare(a.Source, b.Source)
	})

	for _, o := range r.Outcomes {
		switch o.Status {
		case transcode.StatusSucceeded:
			r.Succeeded++
			if o.Reused {
				r.Reused++
			}
			if o.Copied {
				r.Copied++
			}
			r.TotalInputBytes += o.InputBytes
			r.TotalOutputBytes += o.OutputBytes
		case transcode.StatusFailed:
			r.Failed++
		case transcode.StatusSkippedDuplicate:
			r.Duplicates++
		}
	}
	return r
}

// Failures returns the failed outcomes in source order.
func (r *BatchResult) Failures() []transcode.Outcome {
	var out []transcode.Outcome
	for _, o := range r.Outcomes {
		if o.Status == transcode.StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Converted returns how many files the engine actually produced.
func (r *BatchResult) Converted() int { return r.Succeeded - r.Reused }

// SuccessRate is the percentage of attempted files that succeeded.
// Duplicates and dropped files are not attempts.
func (r *BatchResult) SuccessRate() float64 {
	attempted := r.Succeeded + r.Failed
	if attempted == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(attempted) * 100
}

// AverageTime is the mean wall time per converted or failed file, leaving
// out reused targets that cost nothing.
func (r *BatchResult) AverageTime() time.Duration {
	var sum time.Duration
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == transcode.StatusSkippedDuplicate || o.Reused {
			continue
		}
		sum += o.Elapsed
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / time.Duration(n)
}

// SpaceSaved returns the aggregate byte difference between inputs and
// outputs of succeeded files.
func (r *BatchResult) SpaceSaved() int64 {
	return r.TotalInputBytes - r.TotalOutputBytes
}

// ExitCode maps the result to a process exit code.
func (r *BatchResult) ExitCode() int {
	switch {
	case r.Cancelled:
		return ExitInterrupted
	case r.Scanned == 0:
		return ExitSetupError
	case r.Failed == 0:
		return ExitOK
	case r.Succeeded == 0:
		return ExitAllFailed
	default:
		return ExitSomeFailed
	}
}
