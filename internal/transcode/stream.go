package transcode

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/backmassage/vid2audio/internal/progress"
)

// runningCap keeps the percentage below 100 until the target is in place.
const runningCap = 99.9

// splitLines is a bufio.SplitFunc ending tokens at '\n' or '\r', since the
// engine redraws its stats line with carriage returns.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// scanLines feeds every non-empty line of r to fn, then drains r so the
// writer never blocks on a full pipe.
func scanLines(r io.Reader, fn func(string)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(splitLines)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			fn(line)
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

// parseElapsed extracts elapsed media seconds from a progress or stats line.
// Recognized markers: out_time_us=, out_time_ms= (microseconds, despite the
// name), out_time=HH:MM:SS.ffffff and the stats line's time=HH:MM:SS.ff.
func parseElapsed(line string) (float64, bool) {
	switch {
	case strings.HasPrefix(line, "out_time_us="):
		return parseMicros(strings.TrimPrefix(line, "out_time_us="))
	case strings.HasPrefix(line, "out_time_ms="):
		return parseMicros(strings.TrimPrefix(line, "out_time_ms="))
	case strings.HasPrefix(line, "out_time="):
		return parseClock(strings.TrimPrefix(line, "out_time="))
	}
	if i := strings.Index(line, "time="); i >= 0 {
		v := line[i+len("time="):]
		if j := strings.IndexByte(v, ' '); j >= 0 {
			v = v[:j]
		}
		return parseClock(v)
	}
	return 0, false
}

func parseMicros(v string) (float64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return float64(n) / 1e6, true
}

// parseClock parses "HH:MM:SS(.frac)". Negative and N/A values are rejected.
func parseClock(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	// Atoi("-00") is 0, so the sign has to be checked on the raw value.
	if strings.HasPrefix(v, "-") {
		return 0, false
	}
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || s < 0 {
		return 0, false
	}
	return float64(h)*3600 + float64(m)*60 + s, true
}

// tail keeps the last max lines written to it.
type tail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTail(max int) *tail { return &tail{max: max} }

func (t *tail) add(line string) {
	if t.max <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if over := len(t.lines) - t.max; over > 0 {
		t.lines = append(t.lines[:0], t.lines[over:]...)
	}
}

func (t *tail) snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// tracker turns elapsed-time observations into monotonic, throttled
// progress events for one file.
type tracker struct {
	mu       sync.Mutex
	file     string
	total    float64
	last     float64
	throttle *progress.Throttle
	emit     ProgressFunc
}

func (t *tracker) observe(elapsed float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if elapsed > t.total {
		elapsed = t.total
	}
	pct := elapsed / t.total * 100
	if pct > runningCap {
		pct = runningCap
	}
	if pct < t.last {
		return
	}
	t.last = pct
	if t.emit == nil || !t.throttle.Allow() {
		return
	}
	t.emit(progress.FileProgress{File: t.file, Elapsed: elapsed, Total: t.total, Percent: pct})
}

// finish reports completion. It bypasses the throttle.
func (t *tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = 100
	if t.emit != nil {
		t.emit(progress.FileProgress{File: t.file, Elapsed: t.total, Total: t.total, Percent: 100})
	}
}
