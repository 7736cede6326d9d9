// Package check provides system diagnostics (the check command) and the
// pre-run dependency validation (CheckDeps) for the engine and prober.
package check

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/backmassage/vid2audio/internal/config"
	"github.com/backmassage/vid2audio/internal/transcode"
)

// Logger is the minimal logging interface needed by RunCheck.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// Requirement is an external binary vid2audio relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a Requirement.
type Status struct {
	Requirement
	Available bool
	Path      string // Resolved executable path when available.
	Detail    string
}

// Requirements returns the binaries cfg needs.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "engine", Command: cfg.EnginePath, Description: "audio extraction and encoding"},
		{Name: "prober", Command: cfg.ProbePath, Description: "duration and stream probing"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		status := Status{Requirement: req}
		switch path, err := exec.LookPath(req.Command); {
		case req.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		default:
			status.Available = true
			status.Path = path
		}
		results = append(results, status)
	}
	return results
}

// CheckDeps verifies that every required binary is present. The error wraps
// transcode.ErrEngineNotFound so callers can treat it like a failed start.
func CheckDeps(cfg *config.Config) error {
	for _, st := range CheckBinaries(Requirements(cfg)) {
		if !st.Available && !st.Optional {
			return fmt.Errorf("%w: %s (%s)", transcode.ErrEngineNotFound, st.Command, st.Detail)
		}
	}
	return nil
}

// ListEncoders runs `engine -encoders` and returns the names of the audio
// encoders it reports.
func ListEncoders(ctx context.Context, engine string) (map[string]bool, error) {
	out, err := exec.CommandContext(ctx, engine, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w", err)
	}
	return parseEncoders(out), nil
}

// parseEncoders reads the encoder table. Rows look like
// " A....D libmp3lame           libmp3lame MP3 (MPEG audio layer 3)"
// where the first flag column is the media type.
func parseEncoders(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	inTable := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "---") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 || fields[0][0] != 'A' {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}

// Version returns the first line of `binary -version`.
func Version(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(first), nil
}

// RunCheck runs the diagnostics flow: binary availability, engine version
// and encoder support for every output format. It reports whether the
// configured format can be produced.
func RunCheck(ctx context.Context, cfg *config.Config, log Logger) bool {
	log.Info("=== System Check ===")

	ok := true
	for _, st := range CheckBinaries(Requirements(cfg)) {
		if !st.Available {
			log.Error("%s: %s", st.Name, st.Detail)
			ok = false
			continue
		}
		if v, err := Version(ctx, st.Path); err == nil {
			log.Success("%s: %s", st.Name, v)
		} else {
			log.Warn("%s found at %s but -version failed: %v", st.Name, st.Path, err)
		}
	}
	if !ok {
		return false
	}

	encoders, err := ListEncoders(ctx, cfg.EnginePath)
	if err != nil {
		log.Warn("Could not list encoders: %v", err)
		return false
	}
	log.Debug(cfg.Verbose, "engine reports %d audio encoders", len(encoders))

	table := transcode.Encoders()
	formats := make([]config.AudioFormat, 0, len(table))
	for f := range table {
		formats = append(formats, f)
	}
	slices.Sort(formats)

	log.Info("Output formats:")
	for _, f := range formats {
		enc := table[f]
		switch {
		case encoders[enc]:
			log.Success("  %-4s %s", f, enc)
		case f == cfg.Format:
			log.Error("  %-4s %s (missing, required by the configured format)", f, enc)
			ok = false
		default:
			log.Warn("  %-4s %s (missing)", f, enc)
		}
	}
	return ok
}
