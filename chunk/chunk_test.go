package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testChunkAppendAndIterate(t *testing.T, enc Encoding) {
	c := New(enc)
	samples := []Sample{{1000, 10.1}, {2000, 20.2}, {3000, 30.3}}
	for _, s := range samples {
		ok, err := c.Append(s.TS, s.Val, 4096)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, int64(1000), c.FirstTS())
	require.Equal(t, int64(3000), c.LastTS())
	require.Equal(t, 3, c.Count())

	var got []Sample
	it := c.Iterator(false)
	for it.Next() {
		ts, v := it.At()
		got = append(got, Sample{ts, v})
	}
	require.Equal(t, samples, got)

	var rev []Sample
	rit := c.Iterator(true)
	for rit.Next() {
		ts, v := rit.At()
		rev = append(rev, Sample{ts, v})
	}
	require.Equal(t, []Sample{{3000, 30.3}, {2000, 20.2}, {1000, 10.1}}, rev)
}

func TestUncompressedAppendAndIterate(t *testing.T) { testChunkAppendAndIterate(t, Uncompressed) }
func TestCompressedAppendAndIterate(t *testing.T)   { testChunkAppendAndIterate(t, Compressed) }

func testChunkUpsert(t *testing.T, enc Encoding) {
	c := New(enc)
	for _, s := range []Sample{{1000, 1}, {2000, 2}, {3000, 3}} {
		_, _ = c.Append(s.TS, s.Val, 4096)
	}
	found, err := c.Upsert(2000, 99)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []Sample{{1000, 1}, {2000, 99}, {3000, 3}}, c.Samples())

	found, err = c.Upsert(9999, 1)
	require.NoError(t, err)
	require.False(t, found)
}

func TestUncompressedUpsert(t *testing.T) { testChunkUpsert(t, Uncompressed) }
func TestCompressedUpsert(t *testing.T)   { testChunkUpsert(t, Compressed) }

func testChunkInsertAtAndSplit(t *testing.T, enc Encoding) {
	c := New(enc)
	for _, s := range []Sample{{1000, 1}, {3000, 3}} {
		_, _ = c.Append(s.TS, s.Val, 4096)
	}
	tail, err := c.InsertAt(2000, 2, 4096)
	require.NoError(t, err)
	require.Nil(t, tail)
	require.Equal(t, []Sample{{1000, 1}, {2000, 2}, {3000, 3}}, c.Samples())

	tail, err = c.InsertAt(500, 0, 16)
	require.NoError(t, err)
	require.NotNil(t, tail)
	all := append(c.Samples(), tail.Samples()...)
	require.Equal(t, []Sample{{500, 0}, {1000, 1}, {2000, 2}, {3000, 3}}, all)
}

func TestUncompressedInsertAtAndSplit(t *testing.T) { testChunkInsertAtAndSplit(t, Uncompressed) }
func TestCompressedInsertAtAndSplit(t *testing.T)   { testChunkInsertAtAndSplit(t, Compressed) }

func testChunkDeleteRange(t *testing.T, enc Encoding) {
	c := New(enc)
	for _, s := range []Sample{{1000, 1}, {2000, 2}, {3000, 3}, {4000, 4}} {
		_, _ = c.Append(s.TS, s.Val, 4096)
	}
	n := c.DeleteRange(2000, 3000)
	require.Equal(t, 2, n)
	require.Equal(t, []Sample{{1000, 1}, {4000, 4}}, c.Samples())
}

func TestUncompressedDeleteRange(t *testing.T) { testChunkDeleteRange(t, Uncompressed) }
func TestCompressedDeleteRange(t *testing.T)   { testChunkDeleteRange(t, Compressed) }

func TestAppendRejectsOverBudget(t *testing.T) {
	c := New(Uncompressed)
	ok, err := c.Append(1000, 1, 16)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = c.Append(2000, 2, 16)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFromSamplesSplitsAcrossChunks(t *testing.T) {
	samples := make([]Sample, 0, 10)
	for i := int64(0); i < 10; i++ {
		samples = append(samples, Sample{TS: i * 1000, Val: float64(i)})
	}
	chunks := FromSamples(Uncompressed, samples, 32)
	require.True(t, len(chunks) > 1)
	var roundTrip []Sample
	for _, c := range chunks {
		roundTrip = append(roundTrip, c.Samples()...)
	}
	require.Equal(t, samples, roundTrip)
}
