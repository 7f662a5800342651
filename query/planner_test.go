package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/tscore/labelindex"
)

func buildIndex() *labelindex.Index {
	idx := labelindex.NewIndex()
	idx.AddSeries("ts:cpu:web-1", map[string]string{"__name__": "cpu", "host": "web-1", "dc": "east"})
	idx.AddSeries("ts:cpu:web-2", map[string]string{"__name__": "cpu", "host": "web-2", "dc": "east"})
	idx.AddSeries("ts:cpu:db-1", map[string]string{"__name__": "cpu", "host": "db-1", "dc": "west"})
	idx.AddSeries("ts:mem:web-1", map[string]string{"__name__": "mem", "host": "web-1", "dc": "east"})
	return idx
}

func TestParseAndEvalEquality(t *testing.T) {
	idx := buildIndex()
	p := NewPlanner(idx)
	expr, err := Parse(`cpu{dc="east"}`)
	require.NoError(t, err)
	bm, err := p.Eval(expr)
	require.NoError(t, err)
	require.Equal(t, uint64(2), bm.GetCardinality())
}

func TestParseAndEvalNotEqual(t *testing.T) {
	idx := buildIndex()
	p := NewPlanner(idx)
	expr, err := Parse(`cpu{dc!="east"}`)
	require.NoError(t, err)
	bm, err := p.Eval(expr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), bm.GetCardinality())
}

func TestParseAndEvalRegex(t *testing.T) {
	idx := buildIndex()
	p := NewPlanner(idx)
	expr, err := Parse(`{host=~"web-.*"}`)
	require.NoError(t, err)
	bm, err := p.Eval(expr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), bm.GetCardinality())
}

func TestParseAndEvalOr(t *testing.T) {
	idx := buildIndex()
	p := NewPlanner(idx)
	expr, err := Parse(`cpu{host="db-1"} or mem{host="web-1"}`)
	require.NoError(t, err)
	bm, err := p.Eval(expr)
	require.NoError(t, err)
	require.Equal(t, uint64(2), bm.GetCardinality())
}

func TestParseAndEvalList(t *testing.T) {
	idx := buildIndex()
	p := NewPlanner(idx)
	expr, err := Parse(`cpu{host=("web-1","db-1")}`)
	require.NoError(t, err)
	bm, err := p.Eval(expr)
	require.NoError(t, err)
	require.Equal(t, uint64(2), bm.GetCardinality())
}

func TestNoPositiveMatcherIsRejected(t *testing.T) {
	idx := buildIndex()
	p := NewPlanner(idx)
	expr, err := Parse(`{dc!="east"}`)
	require.NoError(t, err)
	_, err = p.Eval(expr)
	require.Error(t, err)
}

func TestEmptyEqualityMatchesAbsence(t *testing.T) {
	idx := labelindex.NewIndex()
	idx.AddSeries("a", map[string]string{"__name__": "cpu"})
	idx.AddSeries("b", map[string]string{"__name__": "cpu", "host": "x"})
	p := NewPlanner(idx)
	expr, err := Parse(`cpu{host=""}`)
	require.NoError(t, err)
	bm, err := p.Eval(expr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), bm.GetCardinality())
}

func TestFilterByRange(t *testing.T) {
	idx := buildIndex()
	p := NewPlanner(idx)
	expr, _ := Parse(`cpu`)
	bm, err := p.Eval(expr)
	require.NoError(t, err)

	spans := map[uint32][2]int64{}
	it := bm.Iterator()
	ts := int64(0)
	for it.HasNext() {
		id := it.Next()
		spans[id] = [2]int64{ts, ts + 100}
		ts += 1000
	}
	spanOf := func(id uint32) (int64, int64, bool) {
		s, ok := spans[id]
		return s[0], s[1], ok
	}
	filtered := FilterByRange(bm, 0, 100, false, spanOf)
	require.Equal(t, uint64(1), filtered.GetCardinality())
}

func TestLabelNamesAndValuesWithSelector(t *testing.T) {
	idx := buildIndex()
	p := NewPlanner(idx)
	expr, _ := Parse(`cpu`)
	bm, err := p.Eval(expr)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"__name__", "dc", "host"}, LabelNames(idx, bm))
	require.ElementsMatch(t, []string{"east", "west"}, LabelValues(idx, bm, "dc"))
}

func TestLabelStatsTopMetric(t *testing.T) {
	idx := buildIndex()
	byMetric, _, _, _ := LabelStats(idx, idx.AllIDs(), "", 10)
	require.Equal(t, "cpu", byMetric[0].Key)
	require.Equal(t, 3, byMetric[0].Count)
}
