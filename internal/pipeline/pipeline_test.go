package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/vid2audio/internal/config"
	"github.com/backmassage/vid2audio/internal/logging"
	"github.com/backmassage/vid2audio/internal/progress"
	"github.com/backmassage/vid2audio/internal/scan"
	"github.com/backmassage/vid2audio/internal/testsupport"
	"github.com/backmassage/vid2audio/internal/transcode"
)

// testConfig returns a config converting in under root/in into root/out with
// the fake engine.
func testConfig(t *testing.T, fe *testsupport.FakeEngine) (*config.Config, string, string) {
	t.Helper()
	root := t.TempDir()
	in := filepath.Join(root, "in")
	out := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(in, 0o755))

	cfg := config.DefaultConfig()
	cfg.InputPath = in
	cfg.OutputDir = out
	cfg.EnginePath = fe.Engine
	cfg.ProbePath = fe.Prober
	cfg.ProgressIntervalMS = 0
	cfg.ColorMode = config.ColorNever
	require.NoError(t, cfg.Validate())
	return &cfg, in, out
}

// snapshots records every reported snapshot.
type snapshots struct {
	mu    sync.Mutex
	all   []progress.Snapshot
	final progress.Snapshot
	done  int
}

func (s *snapshots) Report(snap progress.Snapshot) {
	s.mu.Lock()
	s.all = append(s.all, snap)
	s.mu.Unlock()
}

func (s *snapshots) Done(snap progress.Snapshot) {
	s.mu.Lock()
	s.final = snap
	s.done++
	s.mu.Unlock()
}

func TestConvert_DuplicateAndCorrupt(t *testing.T) {
	fe := testsupport.NewFakeEngine(t, testsupport.EngineOptions{Duration: 4})
	cfg, in, out := testConfig(t, fe)
	testsupport.WritePattern(t, filepath.Join(in, "a.mp4"), 4096, 'a')
	testsupport.WritePattern(t, filepath.Join(in, "b.mp4"), 4096, 'a')
	testsupport.WritePattern(t, filepath.Join(in, "corrupt.mp4"), 4096, 'c')

	res, err := NewConverter(cfg, logging.Discard()).Convert(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, res.Scanned, res.Succeeded+res.Failed+res.Duplicates)
	assert.Equal(t, ExitSomeFailed, res.ExitCode())
	assert.NotEmpty(t, res.RunID)

	assert.FileExists(t, filepath.Join(out, "a.mp3"))
	assert.NoFileExists(t, filepath.Join(out, "b.mp3"))
	assert.NoFileExists(t, filepath.Join(out, "corrupt.mp3"))
	assert.Equal(t, 2, fe.Invocations(t), "duplicate must not reach the engine")

	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, transcode.StatusSkippedDuplicate, res.Outcomes[1].Status)
	assert.Equal(t, filepath.Join(in, "a.mp4"), res.Outcomes[1].DuplicateOf)

	failures := res.Failures()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, transcode.ErrConversionFailed)
	assert.Equal(t, "corrupt or unreadable input", failures[0].Reason)

	require.Len(t, res.Groups, 1)
	assert.Equal(t, []string{filepath.Join(in, "b.mp4")}, res.Groups[0].Duplicates)
}

func TestConvert_RerunReusesTargets(t *testing.T) {
	fe := testsupport.NewFakeEngine(t, testsupport.EngineOptions{})
	cfg, in, out := testConfig(t, fe)
	for i := 0; i < 3; i++ {
		testsupport.WritePattern(t, filepath.Join(in, "season", fmt.Sprintf("ep%d.mkv", i)), 1024, byte('0'+i))
	}

	first, err := NewConverter(cfg, logging.Discard()).Convert(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 3, first.Succeeded)
	assert.Equal(t, 0, first.Reused)
	calls := fe.Invocations(t)
	assert.FileExists(t, filepath.Join(out, "season", "ep1.mp3"))

	second, err := NewConverter(cfg, logging.Discard()).Convert(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Succeeded)
	assert.Equal(t, 3, second.Reused)
	assert.Equal(t, 0, second.Converted())
	assert.Equal(t, calls, fe.Invocations(t), "re-run must not invoke the engine")
	assert.Equal(t, ExitOK, second.ExitCode())
}

func TestConvert_EngineFailureLeavesNoTarget(t *testing.T) {
	fe := testsupport.NewFakeEngine(t, testsupport.EngineOptions{FailMatch: "clip"})
	cfg, in, out := testConfig(t, fe)
	testsupport.WriteFile(t, filepath.Join(in, "clip.mp4"), 2048)

	res, err := NewConverter(cfg, logging.Discard()).Convert(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, ExitAllFailed, res.ExitCode())

	var cf *transcode.ConversionFailedError
	require.ErrorAs(t, res.Outcomes[0].Err, &cf)
	assert.Equal(t, 1, cf.ExitCode)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, LockFileName, e.Name(), "unexpected leftover %s", e.Name())
	}
}

func TestConvert_ProgressMonotonicReaches100(t *testing.T) {
	fe := testsupport.NewFakeEngine(t, testsupport.EngineOptions{Duration: 10})
	cfg, in, _ := testConfig(t, fe)
	testsupport.WritePattern(t, filepath.Join(in, "one.mp4"), 1024, '1')
	testsupport.WritePattern(t, filepath.Join(in, "two.mp4"), 1024, '2')

	rec := &snapshots{}
	res, err := NewConverter(cfg, logging.Discard(), WithReporter(rec)).Convert(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 2, res.Succeeded)

	perFile := map[string][]float64{}
	lastOverall := -1.0
	for _, s := range rec.all {
		overall := s.Overall()
		assert.GreaterOrEqual(t, overall, lastOverall, "overall progress went backwards")
		lastOverall = overall
		if s.CurrentFile != "" {
			perFile[s.CurrentFile] = append(perFile[s.CurrentFile], s.Percent)
		}
	}
	for file, pcts := range perFile {
		for i := 1; i < len(pcts); i++ {
			assert.GreaterOrEqual(t, pcts[i], pcts[i-1], "%s: %v", file, pcts)
		}
		assert.Equal(t, 100.0, pcts[len(pcts)-1], file)
	}
	assert.Len(t, perFile, 2)
	assert.Equal(t, 1, rec.done)
	assert.Equal(t, 2, rec.final.FilesCompleted)
	assert.Equal(t, 100.0, rec.final.Overall())
}

func TestRun_CallbackReporter(t *testing.T) {
	fe := testsupport.NewFakeEngine(t, testsupport.EngineOptions{})
	cfg, in, _ := testConfig(t, fe)
	testsupport.WriteFile(t, filepath.Join(in, "only.webm"), 512)

	var last float64
	var files []string
	cb := progress.Callback(func(file string, elapsed, total, pct float64) {
		files = append(files, file)
		last = pct
	})
	res, err := Run(context.Background(), cfg, logging.Discard(), cb)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 100.0, last)
	assert.Contains(t, files, "only.webm")
}

// countingTranscoder fakes conversions in memory and tracks parallelism.
type countingTranscoder struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (c *countingTranscoder) Run(ctx context.Context, task transcode.Task, onProgress transcode.ProgressFunc) transcode.Outcome {
	c.calls.Add(1)
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	name := filepath.Base(task.Source.Path)
	onProgress(progress.FileProgress{File: name, Percent: 50})
	if filepath.Ext(task.Source.Path) == ".avi" {
		return transcode.Failed(task, &transcode.ConversionFailedError{ExitCode: 1, Reason: transcode.ReasonCorruptInput})
	}
	onProgress(progress.FileProgress{File: name, Percent: 100})
	return transcode.Outcome{Status: transcode.StatusSucceeded, Source: task.Source.Path, Target: task.Target}
}

func TestConvert_ConcurrencyDoesNotChangeCounts(t *testing.T) {
	fe := testsupport.NewFakeEngine(t, testsupport.EngineOptions{})
	cfg, in, _ := testConfig(t, fe)
	for i := 0; i < 50; i++ {
		ext := ".mp4"
		if i%10 == 0 {
			ext = ".avi"
		}
		// Every fifth file repeats the content of the previous one.
		fill := byte(i)
		if i%5 == 4 {
			fill = byte(i - 1)
		}
		testsupport.WritePattern(t, filepath.Join(in, fmt.Sprintf("f%02d%s", i, ext)), 256, fill)
	}

	run := func(jobs int) (*BatchResult, *countingTranscoder) {
		c := *cfg
		c.Concurrency = jobs
		tr := &countingTranscoder{}
		res, err := NewConverter(&c, logging.Discard(), WithTranscoder(tr)).Convert(context.Background(), in)
		require.NoError(t, err)
		return res, tr
	}

	serial, serialTr := run(1)
	parallel, parallelTr := run(4)

	assert.Equal(t, 50, serial.Scanned)
	assert.Equal(t, 10, serial.Duplicates)
	assert.Equal(t, 5, serial.Failed)
	assert.Equal(t, 35, serial.Succeeded)
	for _, r := range []*BatchResult{serial, parallel} {
		assert.Equal(t, r.Scanned, r.Succeeded+r.Failed+r.Duplicates)
	}
	assert.Equal(t, serial.Succeeded, parallel.Succeeded)
	assert.Equal(t, serial.Failed, parallel.Failed)
	assert.Equal(t, serial.Duplicates, parallel.Duplicates)

	assert.Equal(t, int32(1), serialTr.peak.Load())
	assert.LessOrEqual(t, parallelTr.peak.Load(), int32(4))
	assert.Equal(t, int32(40), parallelTr.calls.Load())

	for i := range serial.Outcomes {
		assert.Equal(t, serial.Outcomes[i].Source, parallel.Outcomes[i].Source)
		assert.Equal(t, serial.Outcomes[i].Status, parallel.Outcomes[i].Status)
	}
}

type mockTranscoder struct{ mock.Mock }

func (m *mockTranscoder) Run(ctx context.Context, task transcode.Task, onProgress transcode.ProgressFunc) transcode.Outcome {
	args := m.Called(ctx, task)
	return args.Get(0).(func(transcode.Task) transcode.Outcome)(task)
}

func TestConvert_FailFastOnMissingEngine(t *testing.T) {
	fe := testsupport.NewFakeEngine(t, testsupport.EngineOptions{})
	cfg, in, _ := testConfig(t, fe)
	for _, n := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		testsupport.WritePattern(t, filepath.Join(in, n), 128, n[0])
	}

	tr := &mockTranscoder{}
	tr.On("Run", mock.Anything, mock.Anything).Return(func(task transcode.Task) transcode.Outcome {
		return transcode.Failed(task, fmt.Errorf("%w: gone", transcode.ErrEngineNotFound))
	}).Once()

	res, err := NewConverter(cfg, logging.Discard(), WithTranscoder(tr)).Convert(context.Background(), in)
	require.NoError(t, err)

	tr.AssertNumberOfCalls(t, "Run", 1)
	assert.Equal(t, 3, res.Failed)
	for _, o := range res.Outcomes {
		assert.ErrorIs(t, o.Err, transcode.ErrEngineNotFound)
		assert.Equal(t, "engine not found", o.Reason)
	}
}

func TestConvert_CancelDropsQueuedTasks(t *testing.T) {
	fe := testsupport.NewFakeEngine(t, testsupport.EngineOptions{})
	cfg, in, _ := testConfig(t, fe)
	for i := 0; i < 5; i++ {
		testsupport.WritePattern(t, filepath.Join(in, fmt.Sprintf("v%d.mp4", i)), 128, byte(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := &mockTranscoder{}
	tr.On("Run", mock.Anything, mock.Anything).Return(func(task transcode.Task) transcode.Outcome {
		cancel()
		return transcode.Failed(task, context.Canceled)
	}).Once()

	res, err := NewConverter(cfg, logging.Discard(), WithTranscoder(tr)).Convert(ctx, in)
	require.NoError(t, err)

	tr.AssertNumberOfCalls(t, "Run", 1)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 4, res.Dropped)
	assert.Equal(t, ExitInterrupted, res.ExitCode())
}

func TestConvert_SetupErrors(t *testing.T) {
	fe := testsupport.NewFakeEngine(t, testsupport.EngineOptions{})

	t.Run("missing input", func(t *testing.T) {
		cfg, in, _ := testConfig(t, fe)
		_, err := NewConverter(cfg, logging.Discard()).Convert(context.Background(), filepath.Join(in, "nope"))
		assert.Error(t, err)
	})

	t.Run("missing input creates nothing", func(t *testing.T) {
		cfg, in, _ := testConfig(t, fe)
		cfg.OutputDir = ""
		cfg.InputPath = filepath.Join(in, "nope")
		_, err := Run(context.Background(), cfg, logging.Discard(), progress.Nop{})
		assert.ErrorIs(t, err, scan.ErrScan)
		assert.NoDirExists(t, cfg.InputPath)
	})

	t.Run("engine missing at preflight", func(t *testing.T) {
		cfg, in, _ := testConfig(t, fe)
		cfg.EnginePath = filepath.Join(t.TempDir(), "ffmpeg")
		testsupport.WriteFile(t, filepath.Join(in, "a.mp4"), 10)
		_, err := NewConverter(cfg, logging.Discard()).Convert(context.Background(), in)
		assert.ErrorIs(t, err, transcode.ErrEngineNotFound)
	})

	t.Run("no files is not a setup error", func(t *testing.T) {
		cfg, in, _ := testConfig(t, fe)
		cfg.EnginePath = filepath.Join(t.TempDir(), "ffmpeg")
		res, err := NewConverter(cfg, logging.Discard()).Convert(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Scanned)
		assert.Equal(t, ExitSetupError, res.ExitCode())
	})

	t.Run("output not writable", func(t *testing.T) {
		if runtime.GOOS == "windows" || os.Geteuid() == 0 {
			t.Skip("permission bits not enforced")
		}
		cfg, in, _ := testConfig(t, fe)
		ro := filepath.Join(t.TempDir(), "ro")
		require.NoError(t, os.Mkdir(ro, 0o555))
		cfg.OutputDir = ro
		testsupport.WriteFile(t, filepath.Join(in, "a.mp4"), 10)
		_, err := NewConverter(cfg, logging.Discard()).Convert(context.Background(), in)
		assert.ErrorIs(t, err, ErrOutputNotWritable)
	})
}

func TestPlan_TargetsAndCollisions(t *testing.T) {
	fe := testsupport.NewFakeEngine(t, testsupport.EngineOptions{})

	cases := []struct {
		name     string
		preserve bool
		outDir   bool
		want     []string
	}{
		{"preserve structure", true, true, []string{"a.mp3", "a (1).mp3", "sub/a.mp3"}},
		{"flat", false, true, []string{"a.mp3", "a (1).mp3", "a (2).mp3"}},
		{"next to source", true, false, []string{"a.mp3", "a (1).mp3", "sub/a.mp3"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, in, out := testConfig(t, fe)
			cfg.PreserveStructure = tc.preserve
			base := out
			if !tc.outDir {
				cfg.OutputDir = ""
				base = in
			}
			testsupport.WritePattern(t, filepath.Join(in, "a.mkv"), 64, 1)
			testsupport.WritePattern(t, filepath.Join(in, "a.mp4"), 64, 2)
			testsupport.WritePattern(t, filepath.Join(in, "sub", "a.mp4"), 64, 3)

			p, err := NewConverter(cfg, logging.Discard()).Plan(context.Background(), in)
			require.NoError(t, err)
			require.Len(t, p.Tasks, 3)
			for i, task := range p.Tasks {
				assert.Equal(t, filepath.Join(base, filepath.FromSlash(tc.want[i])), task.Target)
				assert.Equal(t, config.FormatMP3, task.Format)
				assert.Equal(t, "192k", task.Bitrate)
			}
		})
	}
}

func TestPlan_SingleFileInput(t *testing.T) {
	fe := testsupport.NewFakeEngine(t, testsupport.EngineOptions{})
	cfg, in, out := testConfig(t, fe)
	cfg.Format = config.FormatFLAC
	src := filepath.Join(in, "deep", "Live：Show.mov")
	testsupport.WriteFile(t, src, 64)

	p, err := NewConverter(cfg, logging.Discard()).Plan(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, p.Tasks, 1)
	assert.Equal(t, filepath.Join(out, "Live-Show.flac"), p.Tasks[0].Target)
}

func TestInspect(t *testing.T) {
	fe := testsupport.NewFakeEngine(t, testsupport.EngineOptions{Duration: 30, NoAudioMatch: "silent"})
	cfg, in, out := testConfig(t, fe)
	testsupport.WritePattern(t, filepath.Join(in, "done.mp4"), 64, 1)
	testsupport.WritePattern(t, filepath.Join(in, "music.mp4"), 64, 2)
	testsupport.WritePattern(t, filepath.Join(in, "silent.mp4"), 64, 3)
	testsupport.WriteContent(t, filepath.Join(out, "done.mp3"), "old")

	c := NewConverter(cfg, logging.Discard())
	p, err := c.Plan(context.Background(), in)
	require.NoError(t, err)
	infos, err := c.Inspect(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, infos, 3)

	assert.Equal(t, ActionReuse, infos[0].Action)
	assert.Equal(t, ActionEncode, infos[1].Action)
	assert.Equal(t, 30.0, infos[1].Duration)
	assert.Equal(t, "aac", infos[1].AudioCodec)
	assert.Equal(t, "1280x720", infos[1].Video)
	assert.Equal(t, ActionNoAudio, infos[2].Action)

	cfg.Format = config.FormatM4A
	cfg.AllowCopy = true
	cfg.SampleRate = 0
	c = NewConverter(cfg, logging.Discard())
	p, err = c.Plan(context.Background(), in)
	require.NoError(t, err)
	infos, err = c.Inspect(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, ActionCopy, infos[1].Action)
	assert.Equal(t, 0, fe.Invocations(t))
}

func TestAcquireOutputLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	unlock, err := AcquireOutputLock(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, LockFileName))

	_, err = AcquireOutputLock(dir)
	assert.True(t, errors.Is(err, ErrOutputLocked), "err = %v", err)

	require.NoError(t, unlock())
	again, err := AcquireOutputLock(dir)
	require.NoError(t, err)
	require.NoError(t, again())
}

func TestBatchResult(t *testing.T) {
	cases := []struct {
		name string
		r    BatchResult
		want int
	}{
		{"all good", BatchResult{Scanned: 2, Succeeded: 2}, ExitOK},
		{"only duplicates", BatchResult{Scanned: 2, Succeeded: 1, Duplicates: 1}, ExitOK},
		{"nothing found", BatchResult{}, ExitSetupError},
		{"all failed", BatchResult{Scanned: 2, Failed: 2}, ExitAllFailed},
		{"partial", BatchResult{Scanned: 3, Succeeded: 2, Failed: 1}, ExitSomeFailed},
		{"interrupted", BatchResult{Scanned: 3, Succeeded: 3, Cancelled: true}, ExitInterrupted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.r.ExitCode())
		})
	}

	r := BatchResult{
		Succeeded: 3, Failed: 1, Reused: 1,
		Outcomes: []transcode.Outcome{
			{Status: transcode.StatusSucceeded, Elapsed: 2 * time.Second},
			{Status: transcode.StatusSucceeded, Elapsed: 4 * time.Second},
			{Status: transcode.StatusSucceeded, Reused: true, Elapsed: time.Hour},
			{Status: transcode.StatusFailed, Elapsed: 3 * time.Second},
			{Status: transcode.StatusSkippedDuplicate},
		},
	}
	assert.Equal(t, 75.0, r.SuccessRate())
	assert.Equal(t, 3*time.Second, r.AverageTime())
	assert.Equal(t, 2, r.Converted())
	assert.Len(t, r.Failures(), 1)
}
