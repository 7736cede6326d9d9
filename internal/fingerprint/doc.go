// Package fingerprint detects duplicate source files by content.
//
// An [Index] computes a content fingerprint per file (memoized by path and
// optionally persisted through a [Store]) and keeps a registry mapping each
// fingerprint to the first file that claimed it. Later files with the same
// fingerprint are duplicates of that representative and are never converted.
package fingerprint
