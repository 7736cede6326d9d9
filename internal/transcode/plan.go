package transcode

import (
	"strconv"
	"strings"

	"github.com/backmassage/vid2audio/internal/probe"
)

// AudioPlan is the audio handling decided for one source.
type AudioPlan struct {
	Copy       bool
	Encoder    string
	Muxer      string
	Bitrate    string // Empty for lossless formats.
	SampleRate int
	Channels   int
}

// BuildAudioPlan chooses between stream copy and encode for the first audio
// stream of the source.
//
//   - Copy when allowed, the source codec already matches the target, and
//     no sample rate or channel change is requested (0 or equal).
//   - Otherwise encode with the format's encoder and the task settings.
//
// src must be non-nil; sources without audio are rejected before planning.
func BuildAudioPlan(task Task, ofmt OutputFormat, src *probe.AudioStream) AudioPlan {
	p := AudioPlan{Encoder: ofmt.Encoder, Muxer: ofmt.Muxer}

	if task.AllowCopy && strings.EqualFold(src.Codec, ofmt.SourceCodec) &&
		(task.SampleRate == 0 || task.SampleRate == src.SampleRate) &&
		(task.Channels == 0 || task.Channels == src.Channels) {
		p.Copy = true
		return p
	}

	if !ofmt.Lossless {
		p.Bitrate = task.Bitrate
	}
	p.SampleRate = task.SampleRate
	p.Channels = task.Channels
	return p
}

// BuildArgs constructs the engine argument list (without the binary name)
// writing plan's audio from input to output.
func BuildArgs(input, output string, plan AudioPlan, overwrite, verbose bool) []string {
	args := make([]string, 0, 32)

	// --- Preamble ---
	args = append(args, "-hide_banner", "-nostdin")
	if verbose {
		args = append(args, "-loglevel", "info")
	} else {
		args = append(args, "-loglevel", "error")
	}
	if overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}

	// --- Input and stream selection: first audio stream only ---
	args = append(args, "-i", input, "-vn", "-sn", "-dn", "-map", "0:a:0")

	// --- Audio codec ---
	if plan.Copy {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, "-c:a", plan.Encoder)
		if plan.Bitrate != "" {
			args = append(args, "-b:a", plan.Bitrate)
		}
		if plan.SampleRate > 0 {
			args = append(args, "-ar", strconv.Itoa(plan.SampleRate))
		}
		if plan.Channels > 0 {
			args = append(args, "-ac", strconv.Itoa(plan.Channels))
		}
	}

	// --- Metadata carries over (title, artist tags) ---
	args = append(args, "-map_metadata", "0")

	// --- Progress on stdout as key=value lines ---
	args = append(args, "-progress", "pipe:1", "-nostats")

	// --- Output ---
	args = append(args, "-f", plan.Muxer, output)
	return args
}
