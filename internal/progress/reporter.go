package progress

// Reporter renders batch progress. Report is called for every delivered
// file event and completion; Done once after the last file. Both are called
// from a single goroutine.
type Reporter interface {
	Report(Snapshot)
	Done(Snapshot)
}

// ReporterFunc adapts a function to Reporter; Done is forwarded to the same
// function.
type ReporterFunc func(Snapshot)

func (f ReporterFunc) Report(s Snapshot) { f(s) }
func (f ReporterFunc) Done(s Snapshot)   { f(s) }

// Callback adapts a per-file progress callback of the form
// fn(filename, elapsedSeconds, totalSeconds, percentage) to Reporter.
// Snapshots without a current file are dropped.
func Callback(fn func(file string, elapsed, total, percent float64)) Reporter {
	return callback(fn)
}

type callback func(file string, elapsed, total, percent float64)

func (c callback) Report(s Snapshot) {
	if s.CurrentFile == "" {
		return
	}
	c(s.CurrentFile, s.Elapsed, s.Total, s.Percent)
}

func (c callback) Done(Snapshot) {}

// Nop discards all progress.
type Nop struct{}

func (Nop) Report(Snapshot) {}
func (Nop) Done(Snapshot)   {}
