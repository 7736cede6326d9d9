package progress

// Sampler suppresses repetitive progress logs while preserving signal when
// the file or percentage bucket changes.
type Sampler struct {
	bucketSize float64
	lastFile   string
	lastBucket int
}

// NewSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 25%) or when the file changes.
func NewSampler(bucketSize float64) *Sampler {
	if bucketSize <= 0 {
		bucketSize = 25
	}
	return &Sampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress event should be logged. A negative
// percent means unknown and only file changes are reported.
func (s *Sampler) ShouldLog(percent float64, file string) bool {
	if s == nil {
		return true
	}
	emit := false
	if file != "" && file != s.lastFile {
		s.lastFile = file
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}
