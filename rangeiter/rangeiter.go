// Package rangeiter implements Component F: the RANGE/REVRANGE pipeline
// over an already-bounded sample run — FILTER_BY_TS, FILTER_BY_VALUE,
// COUNT, ALIGN, AGGREGATION (with BUCKETTIMESTAMP/EMPTY), and folding in
// an open compaction bucket's partial reduction under LATEST (§4.4).
package rangeiter

import (
	"sort"

	"github.com/ledgerwatch/tscore/aggregation"
	"github.com/ledgerwatch/tscore/chunk"
	tserr "github.com/ledgerwatch/tscore/errors"
)

// AlignMode selects how AGGREGATION bucket boundaries are anchored.
type AlignMode int

const (
	AlignStart AlignMode = iota // ALIGN 0 / ALIGN start: epoch-aligned
	AlignEnd                    // ALIGN - / ALIGN end: aligned to the last sample
	AlignValue                  // ALIGN <int>: aligned to an explicit value
)

// BucketTimestamp selects which instant within a bucket is reported.
type BucketTimestamp int

const (
	BucketStart BucketTimestamp = iota
	BucketMid
	BucketEnd
)

// AggregationSpec mirrors RANGE's `AGGREGATION agg bucket_duration_ms
// [CONDITION op v]` clause plus its ALIGN/BUCKETTIMESTAMP/EMPTY
// modifiers (§4.4).
type AggregationSpec struct {
	Aggregator      string
	Condition       *aggregation.Condition
	BucketMs        int64
	Align           AlignMode
	AlignValue      int64
	BucketTimestamp BucketTimestamp
	Empty           bool
}

// OpenBucket carries the active compaction rule's in-memory partial
// reduction, consumed only under LATEST (§4.4). HasOpen false means no
// active rule, or the open bucket has no data yet.
type OpenBucket struct {
	HasOpen     bool
	BucketStart int64
	Value       float64
}

// Options bounds and shapes one RANGE/REVRANGE evaluation. T0/T1 are
// resolved concrete bounds (caller already turned `-`/`+` into series
// extremes).
type Options struct {
	T0, T1       int64
	Reverse      bool
	FilterByTS   []int64 // nil = no filter
	HasValueFilt bool
	ValueMin     float64
	ValueMax     float64
	Count        int // 0 = unlimited
	Aggregation  *AggregationSpec
	Latest       bool
	Open         OpenBucket
}

// Point is one emitted (timestamp,value) result.
type Point struct {
	TS  int64
	Val float64
}

// Run executes the pipeline over samples, which must already be sorted
// ascending and bounded to [T0,T1] by the caller (seriesstore.Store does
// this via its chunk search).
func Run(samples []chunk.Sample, opts Options) ([]Point, error) {
	filtered := applyFilters(samples, opts)

	var points []Point
	var err error
	if opts.Aggregation != nil {
		points, err = runAggregation(filtered, opts)
	} else {
		points = make([]Point, len(filtered))
		for i, s := range filtered {
			points[i] = Point{TS: s.TS, Val: s.Val}
		}
	}
	if err != nil {
		return nil, err
	}

	if opts.Reverse {
		reversePoints(points)
	}
	if opts.Count > 0 && len(points) > opts.Count {
		points = points[:opts.Count]
	}
	return points, nil
}

func applyFilters(samples []chunk.Sample, opts Options) []chunk.Sample {
	out := make([]chunk.Sample, 0, len(samples))
	var tsSet map[int64]struct{}
	if opts.FilterByTS != nil {
		tsSet = make(map[int64]struct{}, len(opts.FilterByTS))
		for _, ts := range opts.FilterByTS {
			tsSet[ts] = struct{}{}
		}
	}
	for _, s := range samples {
		if tsSet != nil {
			if _, ok := tsSet[s.TS]; !ok {
				continue
			}
		}
		if opts.HasValueFilt && (s.Val < opts.ValueMin || s.Val > opts.ValueMax) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func reversePoints(points []Point) {
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
}

// bucketAnchor resolves ALIGN to the epoch offset bucket boundaries are
// computed against (§4.4).
func bucketAnchor(spec *AggregationSpec, samples []chunk.Sample, t1 int64) int64 {
	switch spec.Align {
	case AlignEnd:
		if len(samples) > 0 {
			return samples[len(samples)-1].TS % spec.BucketMs
		}
		return t1 % spec.BucketMs
	case AlignValue:
		return spec.AlignValue % spec.BucketMs
	default:
		return 0
	}
}

func bucketStartOf(ts, anchor, bucketMs int64) int64 {
	return floorDiv(ts-anchor, bucketMs)*bucketMs + anchor
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func reportedTS(bucketStart int64, spec *AggregationSpec) int64 {
	switch spec.BucketTimestamp {
	case BucketMid:
		return bucketStart + spec.BucketMs/2
	case BucketEnd:
		return bucketStart + spec.BucketMs
	default:
		return bucketStart
	}
}

func runAggregation(samples []chunk.Sample, opts Options) ([]Point, error) {
	spec := opts.Aggregation
	if spec.BucketMs <= 0 {
		return nil, tserr.Arg("AGGREGATION", "bucket_duration_ms must be positive")
	}
	kernel, err := aggregation.New(spec.Aggregator, spec.Condition)
	if err != nil {
		return nil, err
	}
	anchor := bucketAnchor(spec, samples, opts.T1)

	type bucket struct {
		start int64
		state aggregation.State
	}
	var order []int64
	buckets := map[int64]*bucket{}
	ensure := func(start int64) *bucket {
		b, ok := buckets[start]
		if !ok {
			b = &bucket{start: start, state: kernel.Init()}
			buckets[start] = b
			order = append(order, start)
		}
		return b
	}
	for _, s := range samples {
		start := bucketStartOf(s.TS, anchor, spec.BucketMs)
		b := ensure(start)
		b.state = kernel.Accept(b.state, s.TS, s.Val)
	}

	if spec.Empty {
		first := bucketStartOf(opts.T0, anchor, spec.BucketMs)
		last := bucketStartOf(opts.T1, anchor, spec.BucketMs)
		for start := first; start <= last; start += spec.BucketMs {
			ensure(start)
		}
	}

	if opts.Latest && opts.Open.HasOpen && opts.Open.BucketStart >= opts.T0 && opts.Open.BucketStart <= opts.T1 {
		b := ensure(opts.Open.BucketStart)
		b.state = foldScalar(kernel, b.state, opts.Open.BucketStart, opts.Open.Value)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	points := make([]Point, 0, len(order))
	ctx := aggregation.ReduceContext{BucketDurationMs: spec.BucketMs}
	for _, start := range order {
		b := buckets[start]
		val := kernel.Reduce(b.state, ctx)
		points = append(points, Point{TS: reportedTS(start, spec), Val: val})
	}
	return points, nil
}

// foldScalar accepts a single already-reduced scalar (the open bucket's
// partial value) as one more sample at the bucket's start instant —
// adequate for every kernel in the table since none depend on intra
// -bucket ordering beyond what Accept already captures.
func foldScalar(k aggregation.Kernel, s aggregation.State, ts int64, v float64) aggregation.State {
	return k.Accept(s, ts, v)
}
