package aggregation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func reduceAll(t *testing.T, name string, cond *Condition, ctx ReduceContext, samples [][2]float64) float64 {
	k, err := New(name, cond)
	require.NoError(t, err)
	s := k.Init()
	for _, smp := range samples {
		s = k.Accept(s, int64(smp[0]), smp[1])
	}
	return k.Reduce(s, ctx)
}

func TestAvgSumMinMax(t *testing.T) {
	samples := [][2]float64{{1000, 1}, {2000, 2}, {3000, 3}, {4000, 4}, {5000, 5}, {6000, 6}}
	require.Equal(t, 4.0, reduceAll(t, "avg", nil, ReduceContext{}, samples[2:5])) // [3,4,5] -> 4
	require.Equal(t, 21.0, reduceAll(t, "sum", nil, ReduceContext{}, samples))
	require.Equal(t, 1.0, reduceAll(t, "min", nil, ReduceContext{}, samples))
	require.Equal(t, 6.0, reduceAll(t, "max", nil, ReduceContext{}, samples))
}

func TestEmptyReduceDefaults(t *testing.T) {
	require.Equal(t, 0.0, reduceAll(t, "sum", nil, ReduceContext{}, nil))
	require.Equal(t, 0.0, reduceAll(t, "count", nil, ReduceContext{}, nil))
	require.True(t, math.IsNaN(reduceAll(t, "avg", nil, ReduceContext{}, nil)))
	require.True(t, math.IsNaN(reduceAll(t, "min", nil, ReduceContext{}, nil)))
}

func TestIncreaseWithCounterReset(t *testing.T) {
	// samples (1000,0),(2000,10),(3000,20),(4000,5),(5000,15) over a bucket
	samples := [][2]float64{{1000, 0}, {2000, 10}, {3000, 20}, {4000, 5}, {5000, 15}}
	got := reduceAll(t, "increase", nil, ReduceContext{}, samples)
	// resets at 20->5 skipped: 10 + 10 + 10 = 30
	require.Equal(t, 30.0, got)
}

func TestIrateNaNOnReset(t *testing.T) {
	samples := [][2]float64{{3000, 20}, {4000, 5}}
	got := reduceAll(t, "irate", nil, ReduceContext{}, samples)
	require.True(t, math.IsNaN(got))
}

func TestIrateUsesLastTwo(t *testing.T) {
	samples := [][2]float64{{1000, 0}, {2000, 10}, {3000, 30}}
	got := reduceAll(t, "irate", nil, ReduceContext{}, samples)
	require.Equal(t, 20.0, got) // (30-10)/((3000-2000)/1000)
}

func TestStdVar(t *testing.T) {
	samples := [][2]float64{{1000, 2}, {2000, 4}, {3000, 4}, {4000, 4}, {5000, 5}, {6000, 5}, {7000, 7}, {8000, 9}}
	v := reduceAll(t, "var.p", nil, ReduceContext{}, samples)
	require.InDelta(t, 4.0, v, 1e-9)
	sd := reduceAll(t, "std.p", nil, ReduceContext{}, samples)
	require.InDelta(t, 2.0, sd, 1e-9)
}

func TestConditionKernels(t *testing.T) {
	cond := &Condition{Op: Gt, Ref: 2}
	samples := [][2]float64{{1000, 1}, {2000, 2}, {3000, 3}, {4000, 4}}
	require.Equal(t, 0.0, reduceAll(t, "all", cond, ReduceContext{}, samples))
	require.Equal(t, 1.0, reduceAll(t, "any", cond, ReduceContext{}, samples))
	require.Equal(t, 0.0, reduceAll(t, "none", cond, ReduceContext{}, samples))
	require.Equal(t, 2.0, reduceAll(t, "countif", cond, ReduceContext{}, samples))
	require.Equal(t, 7.0, reduceAll(t, "sumif", cond, ReduceContext{}, samples))
	require.Equal(t, 0.5, reduceAll(t, "share", cond, ReduceContext{}, samples))
}

func TestRateDividesByBucketSeconds(t *testing.T) {
	samples := [][2]float64{{0, 0}, {1000, 10}, {2000, 20}}
	got := reduceAll(t, "rate", nil, ReduceContext{BucketDurationMs: 2000}, samples)
	require.Equal(t, 10.0, got) // increase=20, bucket=2s -> 10/s
}
