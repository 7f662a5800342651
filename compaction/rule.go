// Package compaction implements Component D: the open-bucket accumulator
// state machine that turns source writes/deletes into finalized and
// partial bucket samples in one or more destination series, including
// chained rules (source→A→B) (§4.2, §4.9).
package compaction

import (
	"github.com/ledgerwatch/tscore/aggregation"
	"github.com/ledgerwatch/tscore/chunk"
	tserr "github.com/ledgerwatch/tscore/errors"
)

// Rule is the declarative link from a source series to a destination
// series (§3's CompactionRule).
type Rule struct {
	DestKey    string
	Aggregator string
	Condition  *aggregation.Condition
	BucketMs   int64
	AlignMs    int64
}

// BucketStart computes bucket-start of ts per §3: "((t - align_ms) /
// bucket_duration_ms) * bucket_duration_ms + align_ms", using floor
// division so timestamps before the epoch or before align_ms still land
// in the correct bucket rather than rounding toward zero.
func (r Rule) BucketStart(ts int64) int64 {
	return floorDiv(ts-r.AlignMs, r.BucketMs)*r.BucketMs + r.AlignMs
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// BucketState is the per-rule open-bucket accumulator living next to the
// rule on the source series (§3, §9 "Open-bucket state"). It is never
// persisted; on load the engine starts with HasOpen=false and the first
// post-load source write opens a fresh bucket.
type BucketState struct {
	HasOpen     bool
	BucketStart int64
	kernel      aggregation.Kernel
	state       aggregation.State
}

func newKernel(r Rule) (aggregation.Kernel, error) {
	return aggregation.New(r.Aggregator, r.Condition)
}

// Value materializes the open bucket's running reduction, used by RANGE
// ... LATEST (§4.4) without finalizing it.
func (bs *BucketState) Value(bucketMs int64) float64 {
	if !bs.HasOpen {
		return 0
	}
	return bs.kernel.Reduce(bs.state, aggregation.ReduceContext{BucketDurationMs: bucketMs})
}

// Finalizer writes a finalized or recomputed bucket sample into the
// destination series via its own append path (duplicate policy forced to
// Last, per §4.2), which recursively drives the destination's own
// outgoing rules. ErrDestinationMissing signals the rule should be
// retired (§4.2 "Failure modes").
type Finalizer interface {
	FinalizeBucket(destKey string, bucketStart int64, value float64) error
}

// ErrDestinationMissing is returned by a Finalizer when the destination
// key was concurrently deleted.
var ErrDestinationMissing = tserr.New(tserr.KeyDoesNotExist, "compaction destination missing")

// Rescanner recomputes a bucket from the source series directly, used
// when an upsert lands in an already-finalized bucket, or on delete.
type Rescanner interface {
	// RangeSamples returns every source sample with t0 <= ts < t1, sorted.
	RangeSamples(t0, t1 int64) []chunk.Sample
}

func reduceRange(r Rule, samples []chunk.Sample) (float64, error) {
	k, err := newKernel(r)
	if err != nil {
		return 0, err
	}
	s := k.Init()
	for _, smp := range samples {
		s = k.Accept(s, smp.TS, smp.Val)
	}
	return k.Reduce(s, aggregation.ReduceContext{BucketDurationMs: r.BucketMs}), nil
}
