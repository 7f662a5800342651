package command

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/tscore/config"
)

func TestSaveLoadRoundTripsSeriesAndLabels(t *testing.T) {
	db := newTestDB()
	require.NoError(t, db.Create("temp:1", CreateOptions{Labels: map[string]string{"region": "eu"}}))
	_, err := db.Add("temp:1", 1000, false, 1.5, AddOptions{})
	require.NoError(t, err)
	_, err = db.Add("temp:1", 2000, false, 2.5, AddOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, db.Save(&buf))

	db2 := newTestDB()
	require.NoError(t, db2.Load(&buf))

	sample, ok, err := db2.Get("temp:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(2000), sample.TS)
	require.Equal(t, 2.5, sample.Val)

	ids := db2.index.AllIDs()
	require.EqualValues(t, 1, ids.GetCardinality())
}

// TestSaveLoadPreservesDigestAcrossChunkSplit exercises the case the
// maintainer review flagged: an out-of-order insert that forces
// seriesstore to split one chunk into two via Chunk.InsertAt. A save/load
// cycle must reproduce the exact chunk boundaries, not just the flat
// sample run, or series.Series.Digest() changes across the round trip.
func TestSaveLoadPreservesDigestAcrossChunkSplit(t *testing.T) {
	db := newTestDB()
	tiny := uint64(48) // config.MinChunkSizeBytes: forces a split on overflow
	// Uncompressed samples take 16 bytes each, so 48 bytes hold three; the
	// compressed encoding would fit all five samples in one chunk.
	enc := config.EncodingUncompressed
	require.NoError(t, db.Create("k", CreateOptions{ChunkSizeBytes: &tiny, Encoding: &enc}))

	for _, ts := range []int64{0, 1000, 2000, 3000} {
		_, err := db.Add("k", ts, false, float64(ts), AddOptions{})
		require.NoError(t, err)
	}
	// Out-of-order insert lands inside the first chunk's range, forcing
	// seriesstore.insertAt to split it.
	_, err := db.Add("k", 500, false, 99, AddOptions{})
	require.NoError(t, err)

	before := db.series["k"]
	require.Greater(t, before.Store.ChunkCount(), 1)
	digestBefore := before.Digest(false)

	var buf bytes.Buffer
	require.NoError(t, db.Save(&buf))

	db2 := newTestDB()
	require.NoError(t, db2.Load(&buf))

	after := db2.series["k"]
	require.Equal(t, before.Store.ChunkCount(), after.Store.ChunkCount())
	require.Equal(t, digestBefore, after.Digest(false))
}
