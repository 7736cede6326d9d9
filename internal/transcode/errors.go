package transcode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

var (
	// ErrEngineNotFound means the engine or prober process could not be
	// started (missing binary, not executable).
	ErrEngineNotFound = errors.New("transcoding engine not found")

	// ErrProbeFailed means the source duration could not be determined.
	ErrProbeFailed = errors.New("probe failed")

	// ErrConversionFailed is matched by every *ConversionFailedError.
	ErrConversionFailed = errors.New("conversion failed")

	// ErrNoAudio means the source has no audio stream to extract.
	ErrNoAudio = errors.New("source has no audio stream")

	// ErrTargetConflict means the target path exists but is not a regular file.
	ErrTargetConflict = errors.New("target path is not a regular file")
)

// ConversionFailedError reports an engine run that did not produce a usable
// target. ExitCode is 0 when the engine exited cleanly but wrote nothing.
type ConversionFailedError struct {
	ExitCode   int
	StderrTail []string
	Reason     Reason
}

func (e *ConversionFailedError) Error() string {
	msg := fmt.Sprintf("conversion failed (exit %d): %s", e.ExitCode, e.Reason)
	if n := len(e.StderrTail); n > 0 {
		msg += ": " + e.StderrTail[n-1]
	}
	return msg
}

// Is makes errors.Is(err, ErrConversionFailed) true.
func (e *ConversionFailedError) Is(target error) bool { return target == ErrConversionFailed }

// reasonFor returns a short description of err for summaries.
func reasonFor(err error) string {
	var cf *ConversionFailedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cf):
		return string(cf.Reason)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrEngineNotFound):
		return "engine not found"
	case errors.Is(err, ErrNoAudio):
		return string(ReasonNoAudio)
	case errors.Is(err, ErrProbeFailed):
		return "could not determine duration"
	case errors.Is(err, ErrTargetConflict):
		return "target path is not a file"
	default:
		return err.Error()
	}
}

// isStartError reports whether err came from failing to start a process
// rather than from the process itself.
func isStartError(err error) bool {
	var execErr *exec.Error
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false
	}
	return errors.As(err, &execErr) ||
		errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}
