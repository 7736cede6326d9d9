package testsupport

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// never stands in for an empty match pattern; a bare ** would match every path.
const never = "@@no-match@@"

// EngineOptions controls the behavior of the stand-in engine and prober.
// Match fields are substrings of the input path.
type EngineOptions struct {
	Duration       float64 // Seconds the prober reports; 0 means 1s, negative omits it.
	Delay          string  // sleep(1) argument between progress lines, e.g. "0.02".
	FailMatch      string  // Engine exits 1 with a demuxer error. Default "corrupt".
	EmptyMatch     string  // Engine exits 0 but writes an empty file.
	NoAudioMatch   string  // Prober reports no audio stream.
	ProbeFailMatch string  // Prober exits 1.
}

// FakeEngine is a pair of shell scripts that behave like ffmpeg and ffprobe
// closely enough for the transcode and pipeline tests.
type FakeEngine struct {
	Engine string
	Prober string
	calls  string
}

// NewFakeEngine writes the scripts under t.TempDir. Tests using it are
// skipped on Windows.
func NewFakeEngine(t testing.TB, opts EngineOptions) *FakeEngine {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine scripts need /bin/sh")
	}

	dir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	fe := &FakeEngine{
		Engine: filepath.Join(dir, "ffmpeg"),
		Prober: filepath.Join(dir, "ffprobe"),
		calls:  filepath.Join(dir, "calls.log"),
	}

	duration := opts.Duration
	if duration == 0 {
		duration = 1
	}
	delay := opts.Delay
	if delay == "" {
		delay = "0"
	}
	fail := opts.FailMatch
	if fail == "" {
		fail = "corrupt"
	}

	var steps []string
	for q := 1; q <= 4; q++ {
		us := int64(duration * 1e6 * float64(q) / 4)
		if us < 0 {
			us = 0
		}
		steps = append(steps, fmt.Sprint(us))
	}

	engine := fmt.Sprintf(`#!/bin/sh
echo "$*" >> '%s'
in=""
prev=""
out=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then in="$a"; fi
  prev="$a"
  out="$a"
done
case "$in" in
  *%s*)
    echo "[mov,mp4,m4a,3gp,3g2,mj2 @ 0x55d1] moov atom not found" >&2
    echo "$in: Invalid data found when processing input" >&2
    exit 1 ;;
esac
for us in %s; do
  echo "out_time_us=$us"
  echo "progress=continue"
  sleep %s
done
echo "progress=end"
case "$in" in
  *%s*) : > "$out"; exit 0 ;;
esac
printf 'fake-audio:%%s\n' "$in" > "$out"
exit 0
`, fe.calls, fail, strings.Join(steps, " "), delay, orNever(opts.EmptyMatch))

	durationField := fmt.Sprintf(`,"duration":"%.6f"`, duration)
	if duration < 0 {
		durationField = ""
	}
	prober := fmt.Sprintf(`#!/bin/sh
for a in "$@"; do last="$a"; done
case "$last" in
  *%s*) echo "$last: Invalid data found when processing input" >&2; exit 1 ;;
esac
audio=',{"index":1,"codec_name":"aac","codec_type":"audio","channels":2,"channel_layout":"stereo","sample_rate":"48000","disposition":{"default":1}}'
case "$last" in
  *%s*) audio="" ;;
esac
printf '{"streams":[{"index":0,"codec_name":"h264","codec_type":"video","width":1280,"height":720}%%s],"format":{"format_name":"mov,mp4,m4a,3gp,3g2,mj2","nb_streams":2%s}}\n' "$audio"
`, orNever(opts.ProbeFailMatch), orNever(opts.NoAudioMatch), durationField)

	for path, body := range map[string]string{fe.Engine: engine, fe.Prober: prober} {
		if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", path, err)
		}
	}
	return fe
}

// Invocations returns how many times the engine script has run.
func (f *FakeEngine) Invocations(t testing.TB) int {
	return len(f.Calls(t))
}

// Calls returns the argument line of every engine run, oldest first.
func (f *FakeEngine) Calls(t testing.TB) []string {
	t.Helper()
	file, err := os.Open(f.calls)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("open call log: %v", err)
	}
	defer file.Close()

	var calls []string
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		calls = append(calls, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("read call log: %v", err)
	}
	return calls
}

func orNever(pattern string) string {
	if pattern == "" {
		return never
	}
	return pattern
}
