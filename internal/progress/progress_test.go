package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_UpdateDoesNotCountCompletion(t *testing.T) {
	a := NewAggregator(3)
	s := a.Update(FileProgress{File: "a.mp4", Elapsed: 5, Total: 10, Percent: 50})

	assert.Equal(t, "a.mp4", s.CurrentFile)
	assert.Equal(t, 50.0, s.Percent)
	assert.Equal(t, 0, s.FilesCompleted)
	assert.Equal(t, 3, s.FilesTotal)

	s = a.Update(FileProgress{File: "a.mp4", Elapsed: 10, Total: 10, Percent: 100})
	assert.InDelta(t, 100.0/3, s.Overall(), 1e-9)

	s = a.FileCompleted()
	assert.Equal(t, 1, s.FilesCompleted)
	assert.Empty(t, s.CurrentFile, "completion clears the in-flight file")
	assert.InDelta(t, 100.0/3, s.Overall(), 1e-9)

	s = a.Update(FileProgress{File: "b.mp4", Elapsed: 1, Total: 10, Percent: 10})
	assert.InDelta(t, 110.0/3, s.Overall(), 1e-9)
}

func TestAggregator_CompletionCapped(t *testing.T) {
	a := NewAggregator(1)
	a.FileCompleted()
	s := a.FileCompleted()
	assert.Equal(t, 1, s.FilesCompleted)
}

func TestSnapshot_Overall(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
		want float64
	}{
		{"empty batch", Snapshot{}, 100},
		{"nothing done", Snapshot{FilesTotal: 4}, 0},
		{"half of current", Snapshot{FilesTotal: 4, FilesCompleted: 1, Percent: 50}, 37.5},
		{"all done", Snapshot{FilesTotal: 2, FilesCompleted: 2, Percent: 100}, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, tc.snap.Overall(), 1e-9)
		})
	}
}

// Concurrent writers must never leave a snapshot where fields come from
// different updates.
func TestAggregator_NoTornReads(t *testing.T) {
	a := NewAggregator(100)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				v := float64(w*1000 + i%1000)
				a.Update(FileProgress{File: "f", Elapsed: v, Total: v, Percent: v})
			}
		}(w)
	}

	for i := 0; i < 2000; i++ {
		s := a.Snapshot()
		require.Equal(t, s.Elapsed, s.Total)
		require.Equal(t, s.Elapsed, s.Percent)
	}
	close(stop)
	wg.Wait()
}

func TestThrottle(t *testing.T) {
	now := time.Unix(0, 0)
	th := NewThrottleClock(100*time.Millisecond, func() time.Time { return now })

	assert.True(t, th.Allow(), "first event passes")
	now = now.Add(50 * time.Millisecond)
	assert.False(t, th.Allow())
	now = now.Add(50 * time.Millisecond)
	assert.True(t, th.Allow())
	assert.False(t, th.Allow())

	free := NewThrottleClock(0, func() time.Time { return now })
	assert.True(t, free.Allow())
	assert.True(t, free.Allow())
}

func TestSampler(t *testing.T) {
	s := NewSampler(25)
	assert.True(t, s.ShouldLog(0, "a.mp4"), "new file")
	assert.False(t, s.ShouldLog(10, "a.mp4"))
	assert.True(t, s.ShouldLog(26, "a.mp4"), "crossed 25%")
	assert.False(t, s.ShouldLog(30, "a.mp4"))
	assert.True(t, s.ShouldLog(100, "a.mp4"))
	assert.True(t, s.ShouldLog(5, "b.mp4"), "new file resets buckets")

	var nilSampler *Sampler
	assert.True(t, nilSampler.ShouldLog(1, "x"))
	assert.Equal(t, 25.0, NewSampler(0).bucketSize)
}

func TestCallback(t *testing.T) {
	var got []float64
	r := Callback(func(file string, elapsed, total, pct float64) {
		assert.Equal(t, "a.mp4", file)
		got = append(got, pct)
	})
	r.Report(Snapshot{FilesTotal: 1})
	r.Report(Snapshot{CurrentFile: "a.mp4", Percent: 40})
	r.Report(Snapshot{CurrentFile: "a.mp4", Percent: 100})
	r.Done(Snapshot{CurrentFile: "a.mp4", Percent: 100})
	assert.Equal(t, []float64{40, 100}, got)
}

func TestReporterFunc(t *testing.T) {
	var overall []float64
	var r Reporter = ReporterFunc(func(s Snapshot) { overall = append(overall, s.Overall()) })
	r.Report(Snapshot{Percent: 50, FilesTotal: 2})
	r.Done(Snapshot{FilesCompleted: 2, FilesTotal: 2})
	assert.Equal(t, []float64{25, 100}, overall)
}
