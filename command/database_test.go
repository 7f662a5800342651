package command

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/tscore/compaction"
	"github.com/ledgerwatch/tscore/config"
	"github.com/ledgerwatch/tscore/rangeiter"
)

func newTestDB() *Database {
	return NewDatabase(config.DefaultGlobal(), nil)
}

func TestCreateAndGet(t *testing.T) {
	db := newTestDB()
	require.NoError(t, db.Create("temp:1", CreateOptions{Labels: map[string]string{"region": "eu"}}))
	_, err := db.Add("temp:1", 1000, false, 21.5, AddOptions{})
	require.NoError(t, err)

	sample, ok, err := db.Get("temp:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1000), sample.TS)
	require.Equal(t, 21.5, sample.Val)
}

func TestAddToMissingKeyImplicitlyCreates(t *testing.T) {
	db := newTestDB()
	_, err := db.Add("implicit:1", 500, false, 1, AddOptions{})
	require.NoError(t, err)
	_, ok := db.series["implicit:1"]
	require.True(t, ok)
}

func TestDoubleCreateRejected(t *testing.T) {
	db := newTestDB()
	require.NoError(t, db.Create("dup", CreateOptions{}))
	require.Error(t, db.Create("dup", CreateOptions{}))
}

// TestCompactionChain mirrors the spec's chained-rule scenario: a
// source feeds a sum-over-10ms destination, which itself feeds a
// sum-over-50ms destination, which feeds a sum-over-100ms destination.
func TestCompactionChain(t *testing.T) {
	db := newTestDB()
	for _, key := range []string{"src", "l1", "l2", "l3"} {
		require.NoError(t, db.Create(key, CreateOptions{}))
	}
	require.NoError(t, db.CreateRule("src", "l1", compaction.Rule{Aggregator: "sum", BucketMs: 10}))
	require.NoError(t, db.CreateRule("l1", "l2", compaction.Rule{Aggregator: "sum", BucketMs: 50}))
	require.NoError(t, db.CreateRule("l2", "l3", compaction.Rule{Aggregator: "sum", BucketMs: 100}))

	for ts := int64(0); ts < 1000; ts++ {
		_, err := db.Add("src", ts, false, 1, AddOptions{})
		require.NoError(t, err)
	}

	l1Sample, ok, err := db.Get("l1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(900), l1Sample.TS)
	require.Equal(t, float64(10), l1Sample.Val)

	l2Sample, ok, err := db.Get("l2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(950), l2Sample.TS)
	require.Equal(t, float64(50), l2Sample.Val)

	l3Sample, ok, err := db.Get("l3")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(900), l3Sample.TS)
	require.Equal(t, float64(100), l3Sample.Val)
}

func TestCreateRuleRejectsCycle(t *testing.T) {
	db := newTestDB()
	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, db.Create(key, CreateOptions{}))
	}
	require.NoError(t, db.CreateRule("a", "b", compaction.Rule{Aggregator: "sum", BucketMs: 10}))
	require.NoError(t, db.CreateRule("b", "c", compaction.Rule{Aggregator: "sum", BucketMs: 10}))
	require.Error(t, db.CreateRule("c", "a", compaction.Rule{Aggregator: "sum", BucketMs: 10}))
}

func TestCreateRuleRejectsDoubleDestination(t *testing.T) {
	db := newTestDB()
	for _, key := range []string{"a", "b", "dest"} {
		require.NoError(t, db.Create(key, CreateOptions{}))
	}
	require.NoError(t, db.CreateRule("a", "dest", compaction.Rule{Aggregator: "sum", BucketMs: 10}))
	require.Error(t, db.CreateRule("b", "dest", compaction.Rule{Aggregator: "sum", BucketMs: 10}))
}

// TestMDelSymmetry checks §8's MDEL-symmetry property: MDEL FILTER sel
// removes exactly the set QUERYINDEX sel returned beforehand.
func TestMDelSymmetry(t *testing.T) {
	db := newTestDB()
	require.NoError(t, db.Create("http_status{status=200,method=GET}", CreateOptions{
		Labels: map[string]string{"status": "200", "method": "GET"},
	}))
	require.NoError(t, db.Create("http_status{status=200,method=POST}", CreateOptions{
		Labels: map[string]string{"status": "200", "method": "POST"},
	}))
	require.NoError(t, db.Create("http_status{status=404,method=GET}", CreateOptions{
		Labels: map[string]string{"status": "404", "method": "GET"},
	}))

	selector := `{status="200"}`
	before, err := db.QueryIndex(selector)
	require.NoError(t, err)
	require.Len(t, before, 2)

	removed, err := db.MDel(selector, nil, nil)
	require.NoError(t, err)
	require.Equal(t, len(before), removed)

	after, err := db.QueryIndex(selector)
	require.NoError(t, err)
	require.Empty(t, after)

	remaining, err := db.QueryIndex(`{status="404"}`)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestRangeAggregationSumBuckets(t *testing.T) {
	db := newTestDB()
	require.NoError(t, db.Create("counter", CreateOptions{}))
	for ts := int64(0); ts < 100; ts++ {
		_, err := db.Add("counter", ts, false, 1, AddOptions{})
		require.NoError(t, err)
	}
	points, err := db.Range("counter", 0, 99, false, false, RangeOptions{
		Aggregation: &rangeiter.AggregationSpec{Aggregator: "sum", BucketMs: 10},
	})
	require.NoError(t, err)
	require.Len(t, points, 10)
	for _, p := range points {
		require.Equal(t, float64(10), p.Val)
	}
}

func TestJoinInnerMatchesSameTimestamps(t *testing.T) {
	db := newTestDB()
	require.NoError(t, db.Create("a", CreateOptions{}))
	require.NoError(t, db.Create("b", CreateOptions{}))
	for _, ts := range []int64{1, 2, 3} {
		_, err := db.Add("a", ts, false, float64(ts), AddOptions{})
		require.NoError(t, err)
	}
	for _, ts := range []int64{2, 3, 4} {
		_, err := db.Add("b", ts, false, float64(ts)*10, AddOptions{})
		require.NoError(t, err)
	}
	rows, err := db.Join("a", "b", 0, 10, JoinOptions{Mode: JoinInner, Reduce: "sum"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(2), rows[0].TS)
	require.Equal(t, float64(22), rows[0].Val)
	require.Equal(t, int64(3), rows[1].TS)
	require.Equal(t, float64(33), rows[1].Val)
}

func TestInfoReportsLabelsAndSamples(t *testing.T) {
	db := newTestDB()
	require.NoError(t, db.Create("k", CreateOptions{Labels: map[string]string{"a": "b"}}))
	_, err := db.Add("k", 10, false, 1, AddOptions{})
	require.NoError(t, err)

	info, err := db.Info("k", true)
	require.NoError(t, err)
	require.Equal(t, "b", info.Labels["a"])
	require.Equal(t, 1, info.TotalSamples)
	require.Len(t, info.Chunks, 1)
}
