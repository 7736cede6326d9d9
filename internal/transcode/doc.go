// Package transcode runs one source-to-audio conversion through an external
// ffmpeg-compatible engine: probe the source, plan the audio arguments,
// stream progress, classify failures, and leave either a complete target or
// nothing at all.
package transcode
