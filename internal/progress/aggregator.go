package progress

import "sync"

// FileProgress is one progress event for an in-flight file. Elapsed and
// Total are seconds of media; Percent is 0..100.
type FileProgress struct {
	File    string
	Elapsed float64
	Total   float64
	Percent float64
}

// Snapshot is an immutable view of batch progress.
type Snapshot struct {
	CurrentFile    string
	Elapsed        float64
	Total          float64
	Percent        float64
	FilesCompleted int
	FilesTotal     int
}

// Overall returns batch completion in percent: completed files count in
// full and the current file contributes its fraction.
func (s Snapshot) Overall() float64 {
	if s.FilesTotal <= 0 {
		return 100
	}
	done := float64(s.FilesCompleted)
	if s.FilesCompleted < s.FilesTotal {
		done += s.Percent / 100
	}
	pct := done / float64(s.FilesTotal) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Aggregator merges per-file progress into a batch snapshot. Update only
// overwrites the per-file fields; completion is counted by FileCompleted.
// With one file in flight at a time Overall never decreases; with several,
// an update from a file that is further behind can lower it.
type Aggregator struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewAggregator returns an aggregator for a batch of total files.
func NewAggregator(total int) *Aggregator {
	return &Aggregator{snap: Snapshot{FilesTotal: total}}
}

// Update records the latest progress of an in-flight file.
func (a *Aggregator) Update(p FileProgress) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap.CurrentFile = p.File
	a.snap.Elapsed = p.Elapsed
	a.snap.Total = p.Total
	a.snap.Percent = p.Percent
	return a.snap
}

// FileCompleted counts one more finished file (any terminal outcome) and
// clears the in-flight fields so Overall does not count the file twice.
func (a *Aggregator) FileCompleted() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.snap.FilesCompleted < a.snap.FilesTotal {
		a.snap.FilesCompleted++
	}
	a.snap.CurrentFile = ""
	a.snap.Elapsed = 0
	a.snap.Total = 0
	a.snap.Percent = 0
	return a.snap
}

// Snapshot returns the current state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}
