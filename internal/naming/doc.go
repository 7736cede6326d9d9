// Package naming derives audio target paths from source video paths:
// filename cleaning, output directory layout, and in-run collision
// resolution.
package naming
