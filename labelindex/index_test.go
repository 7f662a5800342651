package labelindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAndLookupSeries(t *testing.T) {
	idx := NewIndex()
	id := idx.AddSeries("ts:cpu:a", map[string]string{"__name__": "cpu", "host": "a"})

	key, ok := idx.KeyOf(id)
	require.True(t, ok)
	require.Equal(t, "ts:cpu:a", key)

	gotID, ok := idx.IDOf("ts:cpu:a")
	require.True(t, ok)
	require.Equal(t, id, gotID)
}

func TestLabelNamesAndValuesSorted(t *testing.T) {
	idx := NewIndex()
	idx.AddSeries("ts:cpu:a", map[string]string{"__name__": "cpu", "host": "a"})
	idx.AddSeries("ts:cpu:b", map[string]string{"__name__": "cpu", "host": "b"})
	idx.AddSeries("ts:mem:a", map[string]string{"__name__": "mem", "host": "a"})

	require.Equal(t, []string{"__name__", "host"}, idx.LabelNames())
	require.Equal(t, []string{"a", "b"}, idx.LabelValues("host"))
	require.Equal(t, []string{"cpu", "mem"}, idx.LabelValues("__name__"))
}

func TestPostingsEquals(t *testing.T) {
	idx := NewIndex()
	idA := idx.AddSeries("ts:cpu:a", map[string]string{"__name__": "cpu", "host": "a"})
	idx.AddSeries("ts:cpu:b", map[string]string{"__name__": "cpu", "host": "b"})

	bm := idx.Postings().Equals("host", "a")
	require.Equal(t, uint64(1), bm.GetCardinality())
	require.True(t, bm.Contains(uint32(idA)))
}

func TestRemoveSeriesPrunesPostingsAndValues(t *testing.T) {
	idx := NewIndex()
	idx.AddSeries("ts:cpu:a", map[string]string{"__name__": "cpu", "host": "a"})
	idx.RemoveSeries("ts:cpu:a")

	require.Equal(t, 0, idx.Cardinality())
	require.True(t, idx.Postings().Equals("host", "a").IsEmpty())
	require.Empty(t, idx.LabelValues("host"))
}

func TestRemoveSeriesKeepsSharedValue(t *testing.T) {
	idx := NewIndex()
	idx.AddSeries("ts:cpu:a", map[string]string{"host": "a"})
	idx.AddSeries("ts:mem:a", map[string]string{"host": "a"})
	idx.RemoveSeries("ts:cpu:a")

	require.Contains(t, idx.LabelValues("host"), "a")
	require.Equal(t, 1, idx.Cardinality())
}

func TestMatchValuesRegexLike(t *testing.T) {
	idx := NewIndex()
	idx.AddSeries("ts:cpu:a", map[string]string{"host": "web-1"})
	idx.AddSeries("ts:cpu:b", map[string]string{"host": "web-2"})
	idx.AddSeries("ts:cpu:c", map[string]string{"host": "db-1"})

	bm := idx.Postings().MatchValues("host", func(v string) bool { return len(v) >= 3 && v[:3] == "web" })
	require.Equal(t, uint64(2), bm.GetCardinality())
}

func TestStringSetOrdering(t *testing.T) {
	s := NewStringSet()
	s.Add("banana")
	s.Add("apple")
	s.Add("cherry")
	require.Equal(t, []string{"apple", "banana", "cherry"}, s.Items())
	s.Remove("banana")
	require.Equal(t, []string{"apple", "cherry"}, s.Items())
	require.False(t, s.Has("banana"))
}
