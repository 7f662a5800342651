package rangeiter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/tscore/chunk"
)

func samplesEvery(stepMs int64, n int, val func(i int) float64) []chunk.Sample {
	out := make([]chunk.Sample, n)
	for i := 0; i < n; i++ {
		out[i] = chunk.Sample{TS: int64(i) * stepMs, Val: val(i)}
	}
	return out
}

func TestRunPlainNoAggregation(t *testing.T) {
	samples := samplesEvery(1000, 5, func(i int) float64 { return float64(i) })
	points, err := Run(samples, Options{T0: 0, T1: 4000})
	require.NoError(t, err)
	require.Len(t, points, 5)
	require.Equal(t, int64(0), points[0].TS)
}

func TestRunReverseAndCount(t *testing.T) {
	samples := samplesEvery(1000, 5, func(i int) float64 { return float64(i) })
	points, err := Run(samples, Options{T0: 0, T1: 4000, Reverse: true, Count: 2})
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, int64(4000), points[0].TS)
	require.Equal(t, int64(3000), points[1].TS)
}

func TestFilterByValue(t *testing.T) {
	samples := samplesEvery(1000, 5, func(i int) float64 { return float64(i) })
	points, err := Run(samples, Options{T0: 0, T1: 4000, HasValueFilt: true, ValueMin: 1, ValueMax: 3})
	require.NoError(t, err)
	require.Len(t, points, 3)
}

func TestFilterByTS(t *testing.T) {
	samples := samplesEvery(1000, 5, func(i int) float64 { return float64(i) })
	points, err := Run(samples, Options{T0: 0, T1: 4000, FilterByTS: []int64{0, 3000}})
	require.NoError(t, err)
	require.Len(t, points, 2)
}

func TestAggregationSum(t *testing.T) {
	samples := samplesEvery(1000, 20, func(i int) float64 { return 1 })
	points, err := Run(samples, Options{
		T0: 0, T1: 19000,
		Aggregation: &AggregationSpec{Aggregator: "sum", BucketMs: 10000},
	})
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, 10.0, points[0].Val)
	require.Equal(t, 10.0, points[1].Val)
}

func TestAggregationBucketTimestampEnd(t *testing.T) {
	samples := samplesEvery(1000, 10, func(i int) float64 { return 1 })
	points, err := Run(samples, Options{
		T0: 0, T1: 9000,
		Aggregation: &AggregationSpec{Aggregator: "sum", BucketMs: 10000, BucketTimestamp: BucketEnd},
	})
	require.NoError(t, err)
	require.Equal(t, int64(10000), points[0].TS)
}

func TestAggregationEmptyFillsGaps(t *testing.T) {
	samples := []chunk.Sample{{TS: 0, Val: 1}, {TS: 30000, Val: 1}}
	points, err := Run(samples, Options{
		T0: 0, T1: 30000,
		Aggregation: &AggregationSpec{Aggregator: "sum", BucketMs: 10000, Empty: true},
	})
	require.NoError(t, err)
	require.Len(t, points, 4)
	require.Equal(t, 0.0, points[1].Val)
	require.Equal(t, 0.0, points[2].Val)
}

func TestAggregationLatestFoldsOpenBucket(t *testing.T) {
	samples := samplesEvery(1000, 5, func(i int) float64 { return 1 })
	points, err := Run(samples, Options{
		T0: 0, T1: 10000,
		Aggregation: &AggregationSpec{Aggregator: "sum", BucketMs: 10000},
		Latest:      true,
		Open:        OpenBucket{HasOpen: true, BucketStart: 10000, Value: 42},
	})
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, 42.0, points[1].Val)
}
