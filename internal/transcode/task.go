package transcode

import (
	"time"

	"github.com/backmassage/vid2audio/internal/config"
	"github.com/backmassage/vid2audio/internal/scan"
)

// Task is one accepted source file and where its audio goes.
type Task struct {
	Source     scan.SourceFile
	Target     string
	Format     config.AudioFormat
	Bitrate    string // e.g. "192k"; ignored for lossless formats.
	SampleRate int    // Hz; 0 keeps the source rate.
	Channels   int    // 0 keeps the source layout.
	AllowCopy  bool
	Overwrite  bool
}

// TaskFromConfig fills the encoding fields of a Task from cfg.
func TaskFromConfig(cfg *config.Config, src scan.SourceFile, target string) Task {
	return Task{
		Source:     src,
		Target:     target,
		Format:     cfg.Format,
		Bitrate:    cfg.Bitrate,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		AllowCopy:  cfg.AllowCopy,
		Overwrite:  cfg.Overwrite,
	}
}

// Status is the terminal state of a task.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusSkippedDuplicate
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkippedDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Outcome is the immutable result of one task.
type Outcome struct {
	Status      Status
	Source      string
	Target      string
	Err         error  // Set when Status is StatusFailed.
	Reason      string // Short failure description for summaries.
	Reused      bool   // Target already existed; engine not invoked.
	Copied      bool   // Audio was stream-copied rather than encoded.
	DuplicateOf string // Representative source for StatusSkippedDuplicate.
	InputBytes  int64
	OutputBytes int64
	Duration    float64 // Source media seconds, when probed.
	Elapsed     time.Duration
}

// Duplicate builds the outcome for a source skipped in favor of rep.
func Duplicate(src scan.SourceFile, rep string) Outcome {
	return Outcome{
		Status:      StatusSkippedDuplicate,
		Source:      src.Path,
		DuplicateOf: rep,
		InputBytes:  src.Size,
	}
}

// Failed builds a failed outcome for task without running it.
func Failed(task Task, err error) Outcome {
	return Outcome{
		Status:     StatusFailed,
		Source:     task.Source.Path,
		Target:     task.Target,
		Err:        err,
		Reason:     reasonFor(err),
		InputBytes: task.Source.Size,
	}
}
