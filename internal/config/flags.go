package config

// This file binds CLI flags onto a Config.
// Flags are grouped into output, batch, dedup, engine and display.
// Negated flags (e.g. --no-recursive) are applied after parsing so Config
// defaults and config-file values hold unless the user passes the flag.

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Flags binds a Config to a pflag.FlagSet. Register it on a command's flag
// set, then call Resolve once parsing is done.
type Flags struct {
	cfg        *Config
	negated    negatedFlags
	configPath string
}

// NewFlags returns a binder writing into cfg. cfg should hold DefaultConfig().
func NewFlags(cfg *Config) *Flags {
	return &Flags{cfg: cfg}
}

// ConfigPath returns the --config value, if any.
func (f *Flags) ConfigPath() string { return f.configPath }

// negatedFlags holds boolean flags that are applied after Parse.
// Each one inverts a default (e.g. noRecursive -> Recursive=false).
type negatedFlags struct {
	noRecursive bool
	noStructure bool
	noDedup     bool
	forceColor  bool
	noColor     bool
}

// Register adds every flag to fs.
func (f *Flags) Register(fs *pflag.FlagSet) {
	defineOutputFlags(fs, f.cfg)
	defineBatchFlags(fs, f.cfg, &f.negated)
	defineDedupFlags(fs, f.cfg, &f.negated)
	defineEngineFlags(fs, f.cfg)
	defineDisplayFlags(fs, f.cfg, &f.negated)
	fs.StringVarP(&f.configPath, "config", "c", "", "Load settings from a TOML or YAML file")
}

// defineOutputFlags registers -f/--format, -q/--quality, --sample-rate, --channels, --copy, -o/--output.
func defineOutputFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.VarP(&formatValue{&cfg.Format}, "format", "f", "Output format: "+formatList())
	fs.StringVarP(&cfg.Bitrate, "quality", "q", cfg.Bitrate, "Audio bitrate (e.g. 128k, 192k, 320k); ignored for wav/flac")
	fs.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Output sample rate in Hz (0 keeps the source rate)")
	fs.IntVar(&cfg.Channels, "channels", cfg.Channels, "Output channel count (0 keeps the source layout)")
	fs.BoolVar(&cfg.AllowCopy, "copy", cfg.AllowCopy, "Copy the audio stream when it already has the target codec")
	fs.StringVarP(&cfg.OutputDir, "output", "o", cfg.OutputDir, "Output directory (default: next to each source)")
}

// defineBatchFlags registers recursion, overwrite, structure, jobs and extension flags.
func defineBatchFlags(fs *pflag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&n.noRecursive, "no-recursive", false, "Only scan the top-level input directory")
	fs.BoolVarP(&cfg.Overwrite, "overwrite", "y", cfg.Overwrite, "Overwrite existing output files")
	fs.BoolVar(&n.noStructure, "no-structure", false, "Write all outputs flat into the output directory")
	fs.IntVarP(&cfg.Concurrency, "jobs", "j", cfg.Concurrency, fmt.Sprintf("Parallel conversions (1-%d); the progress bar shows overall completion only", MaxConcurrency))
	fs.Var(&extListValue{&cfg.Extensions}, "ext", "Comma-separated video extensions to scan")
}

// defineDedupFlags registers --dedup, --no-dedup, --dedup-window, --hash-cache.
func defineDedupFlags(fs *pflag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.Var(&dedupModeValue{&cfg.DedupMode}, "dedup", "Duplicate detection: sampled | full | off")
	fs.BoolVar(&n.noDedup, "no-dedup", false, "Convert every file even if contents repeat")
	fs.IntVar(&cfg.DedupWindowKiB, "dedup-window", cfg.DedupWindowKiB, "Sampled fingerprint window in KiB")
	fs.StringVar(&cfg.HashCache, "hash-cache", cfg.HashCache, "SQLite file caching fingerprints between runs")
}

// defineEngineFlags registers --engine, --prober, --progress-interval.
func defineEngineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.EnginePath, "engine", cfg.EnginePath, "Transcoding engine binary")
	fs.StringVar(&cfg.ProbePath, "prober", cfg.ProbePath, "Media prober binary")
	fs.IntVar(&cfg.ProgressIntervalMS, "progress-interval", cfg.ProgressIntervalMS, "Minimum milliseconds between progress updates per file")
}

// defineDisplayFlags registers --color, --no-color, verbose, --log.
func defineDisplayFlags(fs *pflag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&n.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&n.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")
	fs.StringVarP(&cfg.LogFile, "log", "l", cfg.LogFile, "Append logs to file")
}

// Resolve finishes configuration after fs has been parsed. Precedence is
// defaults < config file < explicit flags < positional args. Positional
// args are "<input> [output_dir]".
func (f *Flags) Resolve(fs *pflag.FlagSet, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("expected at most an input path and an output directory, got %d arguments", len(args))
	}

	if f.configPath != "" {
		// Remember what the user set explicitly, load the file over fresh
		// defaults, then replay the explicit flags on top.
		type setting struct{ name, value string }
		var explicit []setting
		fs.Visit(func(fl *pflag.Flag) {
			if fl.Name == "config" {
				return
			}
			explicit = append(explicit, setting{fl.Name, fl.Value.String()})
		})

		fresh := DefaultConfig()
		if err := LoadFile(f.configPath, &fresh); err != nil {
			return err
		}
		*f.cfg = fresh
		for _, s := range explicit {
			if err := fs.Set(s.name, s.value); err != nil {
				return fmt.Errorf("reapply --%s: %w", s.name, err)
			}
		}
	}

	applyNegatedFlags(f.cfg, &f.negated)

	if len(args) >= 1 {
		f.cfg.InputPath = args[0]
	}
	if len(args) == 2 {
		f.cfg.OutputDir = args[1]
	}
	if f.cfg.OutputDir != "" {
		f.cfg.OutputDir = NormalizeDirArg(f.cfg.OutputDir)
	}
	return f.cfg.Validate()
}

// applyNegatedFlags copies negated and override flag values into cfg (e.g. noDedup -> DedupMode=off).
func applyNegatedFlags(cfg *Config, n *negatedFlags) {
	if n.noRecursive {
		cfg.Recursive = false
	}
	if n.noStructure {
		cfg.PreserveStructure = false
	}
	if n.noDedup {
		cfg.DedupMode = DedupOff
	}
	if n.noColor {
		cfg.ColorMode = ColorNever
	} else if n.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// pflag.Value adapters so enum types can be bound with fs.Var.

type formatValue struct{ p *AudioFormat }

func (v *formatValue) String() string { return string(*v.p) }
func (v *formatValue) Type() string   { return "format" }
func (v *formatValue) Set(s string) error {
	f := AudioFormat(strings.ToLower(strings.TrimSpace(s)))
	if !validFormat(f) {
		return fmt.Errorf("invalid format %q (use one of %s)", s, formatList())
	}
	*v.p = f
	return nil
}

type dedupModeValue struct{ p *DedupMode }

func (v *dedupModeValue) String() string { return string(*v.p) }
func (v *dedupModeValue) Type() string   { return "mode" }
func (v *dedupModeValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "sampled":
		*v.p = DedupSampled
	case "full":
		*v.p = DedupFull
	case "off":
		*v.p = DedupOff
	default:
		return fmt.Errorf("invalid dedup mode %q (use 'sampled', 'full' or 'off')", s)
	}
	return nil
}

// extListValue replaces the whole extension list on each Set.
type extListValue struct{ p *[]string }

func (v *extListValue) String() string { return strings.Join(*v.p, ",") }
func (v *extListValue) Type() string   { return "exts" }
func (v *extListValue) Set(s string) error {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fmt.Errorf("empty extension list %q", s)
	}
	*v.p = out
	return nil
}
