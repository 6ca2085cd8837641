package calcgraph

import "sync/atomic"

// EvalMetrics is an optional set of atomic counters tracking what an
// evaluation pass actually did. The engine runs no warmup phase, so the
// warmup and candidate counters stay at zero. Safe for concurrent use from
// parallel layer planning.
type EvalMetrics struct {
	WarmupTimeNanos      int64
	CandidatesConsidered int64
	CandidatesSelected   int64
	FlatViewsBuilt       int64
	MasksBuilt           int64
	FlatCacheHits        int64
	FlatCacheMisses      int64
	MaskCacheHits        int64
	MaskCacheMisses      int64
}

// NewEvalMetrics creates a zeroed metrics set.
func NewEvalMetrics() *EvalMetrics { return &EvalMetrics{} }

func (m *EvalMetrics) addWarmupTime(n int64)           { atomic.AddInt64(&m.WarmupTimeNanos, n) }
func (m *EvalMetrics) addCandidatesConsidered(n int64) { atomic.AddInt64(&m.CandidatesConsidered, n) }
func (m *EvalMetrics) addCandidatesSelected(n int64)   { atomic.AddInt64(&m.CandidatesSelected, n) }
func (m *EvalMetrics) incFlatViewsBuilt()              { atomic.AddInt64(&m.FlatViewsBuilt, 1) }
func (m *EvalMetrics) incMasksBuilt()                  { atomic.AddInt64(&m.MasksBuilt, 1) }
func (m *EvalMetrics) incFlatCacheHit()                { atomic.AddInt64(&m.FlatCacheHits, 1) }
func (m *EvalMetrics) incFlatCacheMiss()               { atomic.AddInt64(&m.FlatCacheMisses, 1) }
func (m *EvalMetrics) incMaskCacheHit()                { atomic.AddInt64(&m.MaskCacheHits, 1) }
func (m *EvalMetrics) incMaskCacheMiss()               { atomic.AddInt64(&m.MaskCacheMisses, 1) }

// Snapshot returns a point-in-time copy safe to read without races.
func (m *EvalMetrics) Snapshot() EvalMetrics {
	return EvalMetrics{
		WarmupTimeNanos:      atomic.LoadInt64(&m.WarmupTimeNanos),
		CandidatesConsidered: atomic.LoadInt64(&m.CandidatesConsidered),
		CandidatesSelected:   atomic.LoadInt64(&m.CandidatesSelected),
		FlatViewsBuilt:       atomic.LoadInt64(&m.FlatViewsBuilt),
		MasksBuilt:           atomic.LoadInt64(&m.MasksBuilt),
		FlatCacheHits:        atomic.LoadInt64(&m.FlatCacheHits),
		FlatCacheMisses:      atomic.LoadInt64(&m.FlatCacheMisses),
		MaskCacheHits:        atomic.LoadInt64(&m.MaskCacheHits),
		MaskCacheMisses:      atomic.LoadInt64(&m.MaskCacheMisses),
	}
}
