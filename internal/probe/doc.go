// Package probe inspects media files with a single ffprobe JSON call and
// returns the container duration and audio stream layout needed to plan an
// audio extraction.
package probe
