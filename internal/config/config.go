// Package config holds runtime configuration: defaults, config-file loading,
// CLI flag binding, and validation. Defaults convert to 192k mp3 at 44.1 kHz
// with one job.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// --- Enum types for validated string fields ---

// AudioFormat is the target audio container/codec family.
type AudioFormat string

const (
	FormatMP3  AudioFormat = "mp3"  // libmp3lame (default).
	FormatWAV  AudioFormat = "wav"  // PCM 16-bit, lossless.
	FormatAAC  AudioFormat = "aac"  // Raw ADTS AAC.
	FormatM4A  AudioFormat = "m4a"  // AAC in an MP4 audio container.
	FormatOGG  AudioFormat = "ogg"  // Vorbis.
	FormatFLAC AudioFormat = "flac" // FLAC, lossless.
)

// Formats lists every supported output format in display order.
var Formats = []AudioFormat{FormatMP3, FormatWAV, FormatAAC, FormatM4A, FormatOGG, FormatFLAC}

// DedupMode selects how source files are fingerprinted for duplicate detection.
type DedupMode string

const (
	DedupSampled DedupMode = "sampled" // Size + head/tail windows (default, fast).
	DedupFull    DedupMode = "full"    // Whole-content hash (slow, exact).
	DedupOff     DedupMode = "off"     // No duplicate detection.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// DefaultExtensions are the source video extensions picked up by the scanner.
var DefaultExtensions = []string{
	".mp4", ".avi", ".mov", ".wmv", ".flv", ".mkv", ".webm", ".mp4v", ".m4v",
	".3gp", ".mpg", ".mpeg", ".m2v", ".vob", ".asf", ".ts", ".m2ts", ".ogv",
}

// Config holds all runtime settings. It is populated by [DefaultConfig],
// optionally overlaid by [LoadFile], then by CLI flags through [Flags]. The
// pipeline only ever reads it.
type Config struct {
	// Paths. OutputDir empty means "write next to each source file".
	InputPath string `toml:"input" yaml:"input"`
	OutputDir string `toml:"output_dir" yaml:"output_dir"`

	// Audio output.
	Format     AudioFormat `toml:"format" yaml:"format"`           // Default: "mp3".
	Bitrate    string      `toml:"bitrate" yaml:"bitrate"`         // Default: "192k". Ignored for wav/flac.
	SampleRate int         `toml:"sample_rate" yaml:"sample_rate"` // Default: 44100. 0 keeps the source rate.
	Channels   int         `toml:"channels" yaml:"channels"`       // Default: 0 (keep source layout).
	AllowCopy  bool        `toml:"allow_copy" yaml:"allow_copy"`   // Stream-copy when the source codec already matches.

	// Batch behavior.
	Recursive         bool     `toml:"recursive" yaml:"recursive"`                   // Default: true.
	Overwrite         bool     `toml:"overwrite" yaml:"overwrite"`                   // Default: false.
	PreserveStructure bool     `toml:"preserve_structure" yaml:"preserve_structure"` // Default: true.
	Concurrency       int      `toml:"concurrency" yaml:"concurrency"`               // Default: 1.
	Extensions        []string `toml:"extensions" yaml:"extensions"`

	// Duplicate detection.
	DedupMode      DedupMode `toml:"dedup" yaml:"dedup"`                       // Default: "sampled".
	DedupWindowKiB int       `toml:"dedup_window_kib" yaml:"dedup_window_kib"` // Default: 64.
	HashCache      string    `toml:"hash_cache" yaml:"hash_cache"`             // Optional SQLite fingerprint cache.

	// External engine.
	EnginePath         string `toml:"engine" yaml:"engine"`                           // Default: "ffmpeg".
	ProbePath          string `toml:"prober" yaml:"prober"`                           // Default: "ffprobe".
	ProgressIntervalMS int    `toml:"progress_interval_ms" yaml:"progress_interval_ms"` // Default: 100.
	StderrTailLines    int    `toml:"stderr_tail_lines" yaml:"stderr_tail_lines"`     // Default: 20.

	// Display and logging.
	Verbose   bool      `toml:"verbose" yaml:"verbose"`
	ColorMode ColorMode `toml:"color" yaml:"color"` // Default: "auto".
	LogFile   string    `toml:"log_file" yaml:"log_file"`
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		Format:             FormatMP3,
		Bitrate:            "192k",
		SampleRate:         44100,
		Channels:           0,
		AllowCopy:          false,
		Recursive:          true,
		Overwrite:          false,
		PreserveStructure:  true,
		Concurrency:        1,
		Extensions:         append([]string(nil), DefaultExtensions...),
		DedupMode:          DedupSampled,
		DedupWindowKiB:     64,
		EnginePath:         "ffmpeg",
		ProbePath:          "ffprobe",
		ProgressIntervalMS: 100,
		StderrTailLines:    20,
		ColorMode:          ColorAuto,
	}
}

// MaxConcurrency caps the worker pool; each worker runs one engine process.
const MaxConcurrency = 16

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// IsLossless reports whether f ignores the bitrate setting.
func (f AudioFormat) IsLossless() bool {
	return f == FormatWAV || f == FormatFLAC
}

// Validate checks enum fields and numeric ranges and canonicalizes the
// bitrate and extension list in place. It does not require InputPath; see
// [Config.RequireInput].
func (c *Config) Validate() error {
	c.Format = AudioFormat(strings.ToLower(strings.TrimSpace(string(c.Format))))
	if !validFormat(c.Format) {
		return fmt.Errorf("invalid format %q (use one of %s)", c.Format, formatList())
	}

	switch c.DedupMode {
	case DedupSampled, DedupFull, DedupOff:
		// valid
	default:
		return fmt.Errorf("invalid dedup mode %q (use 'sampled', 'full' or 'off')", c.DedupMode)
	}
	if c.DedupMode == DedupSampled && c.DedupWindowKiB <= 0 {
		return errors.New("dedup window must be a positive number of KiB")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	normalizedBitrate, err := normalizeAudioBitrate(c.Bitrate)
	if err != nil {
		return err
	}
	c.Bitrate = normalizedBitrate

	if c.SampleRate < 0 || c.SampleRate > 384000 {
		return fmt.Errorf("invalid sample rate %d (use 0 to keep the source rate)", c.SampleRate)
	}
	if c.Channels < 0 || c.Channels > 8 {
		return fmt.Errorf("invalid channel count %d (use 0 to keep the source layout)", c.Channels)
	}
	if c.Concurrency < 1 || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d (got %d)", MaxConcurrency, c.Concurrency)
	}
	if c.ProgressIntervalMS < 0 {
		return errors.New("progress interval must not be negative")
	}
	if c.StderrTailLines < 0 {
		return errors.New("stderr tail lines must not be negative")
	}
	if strings.TrimSpace(c.EnginePath) == "" {
		return errors.New("engine path must not be empty")
	}
	if strings.TrimSpace(c.ProbePath) == "" {
		return errors.New("prober path must not be empty")
	}

	exts, err := normalizeExtensions(c.Extensions)
	if err != nil {
		return err
	}
	c.Extensions = exts
	return nil
}

// RequireInput reports an error when no input path was given on the command
// line or in the config file.
func (c *Config) RequireInput() error {
	if strings.TrimSpace(c.InputPath) == "" {
		return errors.New("need an input file or directory (argument or 'input' in the config file)")
	}
	return nil
}

// DedupWindowBytes returns the sampled fingerprint window size in bytes.
func (c *Config) DedupWindowBytes() int64 {
	return int64(c.DedupWindowKiB) * 1024
}

func validFormat(f AudioFormat) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// normalizeAudioBitrate validates and canonicalizes user bitrate input.
// Accepted forms: "192", "192k", "192K", "192kbps". Output is "<n>k".
func normalizeAudioBitrate(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", errors.New("audio bitrate must not be empty")
	}
	if strings.HasSuffix(s, "kbps") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "kbps"))
	} else if strings.HasSuffix(s, "k") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "k"))
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid audio bitrate %q (use positive Kbps value, e.g. 192k)", raw)
	}
	return fmt.Sprintf("%dk", n), nil
}

// normalizeExtensions lowercases entries, adds the leading dot, and drops
// duplicates while keeping order.
func normalizeExtensions(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, errors.New("extension list must not be empty")
	}
	return out, nil
}
