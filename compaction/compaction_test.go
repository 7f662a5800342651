package compaction

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/tscore/chunk"
)

// fakeSource stores all ingested samples and answers RangeSamples like a
// real series store would.
type fakeSource struct {
	samples []chunk.Sample
}

func (f *fakeSource) add(ts int64, v float64) {
	f.samples = append(f.samples, chunk.Sample{TS: ts, Val: v})
	sort.Slice(f.samples, func(i, j int) bool { return f.samples[i].TS < f.samples[j].TS })
}

func (f *fakeSource) RangeSamples(t0, t1 int64) []chunk.Sample {
	var out []chunk.Sample
	for _, s := range f.samples {
		if s.TS >= t0 && s.TS < t1 {
			out = append(out, s)
		}
	}
	return out
}

type fakeDest struct {
	values map[int64]float64
}

func newFakeDest() *fakeDest { return &fakeDest{values: map[int64]float64{}} }

func (d *fakeDest) FinalizeBucket(destKey string, bucketStart int64, v float64) error {
	d.values[bucketStart] = v
	return nil
}

func TestBucketStartAlignment(t *testing.T) {
	r := Rule{BucketMs: 3000, AlignMs: 0}
	require.Equal(t, int64(0), r.BucketStart(0))
	require.Equal(t, int64(0), r.BucketStart(1000))
	require.Equal(t, int64(3000), r.BucketStart(3000))
	require.Equal(t, int64(3000), r.BucketStart(5999))
	require.Equal(t, int64(6000), r.BucketStart(6000))
}

func TestSumCompactionFinalizesOnNextBucket(t *testing.T) {
	r := Rule{DestKey: "dst", Aggregator: "sum", BucketMs: 10, AlignMs: 0}
	src := &fakeSource{}
	dst := newFakeDest()
	state := &BucketState{}

	for ts := int64(0); ts < 1000; ts++ {
		src.add(ts, 1)
		require.NoError(t, OnAppend(r, state, ts, 1, src, dst))
	}
	// bucket [0,10) should be finalized as sum=10 once bucket 10 opened.
	require.Equal(t, 10.0, dst.values[0])
	require.Equal(t, 10.0, dst.values[980])
	// bucket [990,1000) is still open (not finalized) until a sample >=1000 arrives.
	_, finalized := dst.values[990]
	require.False(t, finalized)
}

func TestChainedCompactionSumSum(t *testing.T) {
	// src -(sum,10)-> mid -(sum,20)-> dst : ingest constant 1 at 0..N
	srcToMid := Rule{DestKey: "mid", Aggregator: "sum", BucketMs: 10, AlignMs: 0}
	midToDst := Rule{DestKey: "dst", Aggregator: "sum", BucketMs: 20, AlignMs: 0}

	src := &fakeSource{}
	mid := &fakeSource{}
	dst := newFakeDest()

	srcState := &BucketState{}
	midState := &BucketState{}

	// midDest fans writes into `mid` fake source AND drives midToDst.
	midDest := finalizerFunc(func(destKey string, bucketStart int64, v float64) error {
		mid.add(bucketStart, v)
		return OnAppend(midToDst, midState, bucketStart, v, mid, dst)
	})

	for ts := int64(0); ts < 1000; ts++ {
		src.add(ts, 1)
		require.NoError(t, OnAppend(srcToMid, srcState, ts, 1, src, midDest))
	}

	require.Equal(t, 10.0, mid.samples[0].Val)
	require.Equal(t, 20.0, dst.values[0])
}

type finalizerFunc func(destKey string, bucketStart int64, v float64) error

func (f finalizerFunc) FinalizeBucket(destKey string, bucketStart int64, v float64) error {
	return f(destKey, bucketStart, v)
}

func TestUpsertIntoFinalizedBucketRecomputes(t *testing.T) {
	r := Rule{DestKey: "dst", Aggregator: "sum", BucketMs: 10, AlignMs: 0}
	src := &fakeSource{}
	dst := newFakeDest()
	state := &BucketState{}

	for _, ts := range []int64{0, 5, 10} {
		src.add(ts, 1)
		require.NoError(t, OnAppend(r, state, ts, 1, src, dst))
	}
	require.Equal(t, 2.0, dst.values[0]) // bucket [0,10) finalized with sum=2

	// Late out-of-order sample lands in the already-finalized [0,10) bucket.
	src.add(3, 100)
	require.NoError(t, OnAppend(r, state, 3, 100, src, dst))
	require.Equal(t, 102.0, dst.values[0])
}

func TestDeleteRangeRecomputesOrDeletes(t *testing.T) {
	r := Rule{DestKey: "dst", Aggregator: "sum", BucketMs: 10, AlignMs: 0}
	src := &fakeSource{}
	dst := newFakeDest()
	state := &BucketState{}
	for _, ts := range []int64{0, 5, 20, 25} {
		src.add(ts, 1)
		require.NoError(t, OnAppend(r, state, ts, 1, src, dst))
	}
	require.Equal(t, 2.0, dst.values[0])

	// delete everything in [0,10) from the source, then replay the delete.
	src.samples = src.samples[2:] // remove ts=0,5
	deleted := map[int64]bool{}
	err := OnDeleteRange(r, state, 0, 9, src, dst, func(b int64) error {
		deleted[b] = true
		delete(dst.values, b)
		return nil
	})
	require.NoError(t, err)
	require.True(t, deleted[0])
}
