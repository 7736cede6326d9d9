package probe

import "fmt"

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename   string
	NbStreams  int
	FormatName string
	Duration   float64 // Seconds; 0 when unknown.
	Size       int64
	BitRate    int64
	Tags       map[string]string
}

// VideoStream identifies the primary picture stream, used only for display.
type VideoStream struct {
	Index  int
	Codec  string
	Width  int
	Height int
}

// AudioStream holds the parsed properties of a single audio stream.
type AudioStream struct {
	Index         int
	Codec         string
	Channels      int
	ChannelLayout string
	SampleRate    int
	BitRate       int64
	Language      string
	IsDefault     bool
}

// ProbeResult is the fully parsed output of a single ffprobe JSON call.
// PrimaryVideo is the first non-attached-pic video stream (nil if none).
type ProbeResult struct {
	Format       FormatInfo
	PrimaryVideo *VideoStream
	AudioStreams []AudioStream

	longestStream float64
}

// HasAudio reports whether the file carries at least one audio stream.
func (p *ProbeResult) HasAudio() bool { return len(p.AudioStreams) > 0 }

// PrimaryAudio returns the stream the engine maps with "0:a:0": the first
// audio stream in file order. Nil when there is none.
func (p *ProbeResult) PrimaryAudio() *AudioStream {
	if len(p.AudioStreams) == 0 {
		return nil
	}
	return &p.AudioStreams[0]
}

// DurationSeconds returns the container duration, falling back to the
// longest stream duration when the container omits it.
func (p *ProbeResult) DurationSeconds() float64 {
	if p.Format.Duration > 0 {
		return p.Format.Duration
	}
	return p.longestStream
}

// RequireDuration returns DurationSeconds or ErrNoDuration when it is not
// positive.
func (p *ProbeResult) RequireDuration() (float64, error) {
	d := p.DurationSeconds()
	if d <= 0 {
		return 0, ErrNoDuration
	}
	return d, nil
}

// Resolution returns "WxH" for the primary video stream, or "unknown".
func (p *ProbeResult) Resolution() string {
	if p.PrimaryVideo == nil || p.PrimaryVideo.Width <= 0 || p.PrimaryVideo.Height <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%dx%d", p.PrimaryVideo.Width, p.PrimaryVideo.Height)
}
