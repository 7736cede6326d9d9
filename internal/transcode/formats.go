package transcode

import (
	"fmt"

	"github.com/backmassage/vid2audio/internal/config"
)

// OutputFormat describes how the engine writes one output format.
type OutputFormat struct {
	Encoder     string // -c:a value.
	Muxer       string // -f value.
	SourceCodec string // ffprobe codec_name that can be stream-copied.
	Lossless    bool   // Bitrate does not apply.
}

var formats = map[config.AudioFormat]OutputFormat{
	config.FormatMP3:  {Encoder: "libmp3lame", Muxer: "mp3", SourceCodec: "mp3"},
	config.FormatWAV:  {Encoder: "pcm_s16le", Muxer: "wav", SourceCodec: "pcm_s16le", Lossless: true},
	config.FormatAAC:  {Encoder: "aac", Muxer: "adts", SourceCodec: "aac"},
	config.FormatM4A:  {Encoder: "aac", Muxer: "ipod", SourceCodec: "aac"},
	config.FormatOGG:  {Encoder: "libvorbis", Muxer: "ogg", SourceCodec: "vorbis"},
	config.FormatFLAC: {Encoder: "flac", Muxer: "flac", SourceCodec: "flac", Lossless: true},
}

// LookupFormat returns the engine settings for format.
func LookupFormat(format config.AudioFormat) (OutputFormat, error) {
	fs, ok := formats[format]
	if !ok {
		return OutputFormat{}, fmt.Errorf("unsupported output format %q", format)
	}
	return fs, nil
}

// Encoders returns the encoder name each format needs, for dependency checks.
func Encoders() map[config.AudioFormat]string {
	out := make(map[config.AudioFormat]string, len(formats))
	for f, s := range formats {
		out[f] = s.Encoder
	}
	return out
}
