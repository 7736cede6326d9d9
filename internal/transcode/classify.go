package transcode

import (
	"regexp"
	"strings"
)

// Reason is a short classification of an engine failure.
type Reason string

const (
	ReasonCorruptInput   Reason = "corrupt or unreadable input"
	ReasonNoAudio        Reason = "no audio stream"
	ReasonEncoderMissing Reason = "encoder unavailable"
	ReasonPermission     Reason = "permission denied"
	ReasonDiskFull       Reason = "disk full"
	ReasonTargetExists   Reason = "target already exists"
	ReasonEmptyOutput    Reason = "engine produced no output"
	ReasonUnknown        Reason = "engine error"
)

// Pre-compiled regexes for classifying engine stderr. Checked in order by
// [Classify]; the first match wins.
var (
	reNoAudio = regexp.MustCompile(
		`(?i)Stream map '0:a:0' matches no streams|` +
			`Output file #?\d* does not contain any stream|` +
			`does not contain any stream`)

	reCorruptInput = regexp.MustCompile(
		`(?i)Invalid data found when processing input|` +
			`moov atom not found|` +
			`could not find codec parameters|` +
			`EBML header parsing failed|` +
			`Error while decoding stream|` +
			`invalid frame size|` +
			`Truncating packet of size`)

	reEncoderMissing = regexp.MustCompile(
		`(?i)Unknown encoder|` +
			`Encoder \S+ not found|` +
			`Requested output format '\S+' is not a suitable output format|` +
			`Automatic encoder selection failed|` +
			`Error while opening encoder`)

	rePermission = regexp.MustCompile(
		`(?i)Permission denied|Operation not permitted|Read-only file system`)

	reDiskFull = regexp.MustCompile(
		`(?i)No space left on device|Disk quota exceeded|File too large`)

	reTargetExists = regexp.MustCompile(
		`already exists\. Exiting|Not overwriting - exiting`)
)

var classifiers = []struct {
	re     *regexp.Regexp
	reason Reason
}{
	{reNoAudio, ReasonNoAudio},
	{reDiskFull, ReasonDiskFull},
	{rePermission, ReasonPermission},
	{reEncoderMissing, ReasonEncoderMissing},
	{reTargetExists, ReasonTargetExists},
	{reCorruptInput, ReasonCorruptInput},
}

// Classify maps captured engine stderr lines to a Reason.
func Classify(stderr []string) Reason {
	joined := strings.Join(stderr, "\n")
	for _, c := range classifiers {
		if c.re.MatchString(joined) {
			return c.reason
		}
	}
	return ReasonUnknown
}
