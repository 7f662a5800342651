package persist

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/tscore/aggregation"
	"github.com/ledgerwatch/tscore/chunk"
	"github.com/ledgerwatch/tscore/compaction"
	"github.com/ledgerwatch/tscore/config"
)

func chunkRecordsFromSamples(t *testing.T, enc chunk.Encoding, samples []chunk.Sample, budgetBytes int) []ChunkRecord {
	t.Helper()
	chunks := chunk.FromSamples(enc, samples, budgetBytes)
	out := make([]ChunkRecord, len(chunks))
	for i, c := range chunks {
		out[i] = ChunkRecord{FirstTS: c.FirstTS(), LastTS: c.LastTS(), Count: c.Count(), Payload: c.Bytes()}
	}
	return out
}

func TestSaveLoadRoundTrip(t *testing.T) {
	opts := config.DefaultSeriesOptions(config.DefaultGlobal())
	snap := Snapshot{
		Series: []SeriesRecord{
			{
				Key:     "src",
				Labels:  map[string]string{"__name__": "temp", "region": "eu"},
				Options: opts,
				Rules: []compaction.Rule{
					{DestKey: "dst", Aggregator: "sum", BucketMs: 1000},
				},
				Chunks: chunkRecordsFromSamples(t, chunk.Compressed,
					[]chunk.Sample{{TS: 1000, Val: 1.5}, {TS: 2000, Val: 2.5}}, 4096),
			},
			{
				Key:       "dst",
				Labels:    map[string]string{"__name__": "temp"},
				Options:   opts,
				SourceKey: "src",
				Chunks: chunkRecordsFromSamples(t, chunk.Compressed,
					[]chunk.Sample{{TS: 1000, Val: 4}}, 4096),
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, snap))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	require.Len(t, loaded.Series, 2)

	byKey := map[string]SeriesRecord{}
	for _, rec := range loaded.Series {
		byKey[rec.Key] = rec
	}

	src := byKey["src"]
	require.Equal(t, "eu", src.Labels["region"])
	require.Equal(t, opts.RetentionMs, src.Options.RetentionMs)
	require.Len(t, src.Rules, 1)
	require.Equal(t, "dst", src.Rules[0].DestKey)
	srcSamples, err := src.Samples()
	require.NoError(t, err)
	require.Equal(t, []chunk.Sample{{TS: 1000, Val: 1.5}, {TS: 2000, Val: 2.5}}, srcSamples)

	dst := byKey["dst"]
	require.Equal(t, "src", dst.SourceKey)
	dstSamples, err := dst.Samples()
	require.NoError(t, err)
	require.Equal(t, []chunk.Sample{{TS: 1000, Val: 4}}, dstSamples)
}

// TestSaveLoadPreservesChunkBoundaries locks in the chunk-level
// round-trip, not just the flattened sample run: a save/load cycle must
// come back with the same number of chunks and the same per-chunk
// first_ts/last_ts/count, which is what series.Series.Digest() hashes.
func TestSaveLoadPreservesChunkBoundaries(t *testing.T) {
	opts := config.DefaultSeriesOptions(config.DefaultGlobal())
	samples := []chunk.Sample{{TS: 0, Val: 1}, {TS: 1000, Val: 2}, {TS: 2000, Val: 3}}
	budget := 32 // forces FromSamples to split a 3-sample uncompressed run
	chunks := chunk.FromSamples(chunk.Uncompressed, samples, budget)
	require.Greater(t, len(chunks), 1)

	records := make([]ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = ChunkRecord{FirstTS: c.FirstTS(), LastTS: c.LastTS(), Count: c.Count(), Payload: c.Bytes()}
	}
	opts.Encoding = config.EncodingUncompressed
	snap := Snapshot{Series: []SeriesRecord{{Key: "k", Options: opts, Chunks: records}}}

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, snap))
	loaded, err := Load(&buf)
	require.NoError(t, err)

	require.Len(t, loaded.Series[0].Chunks, len(chunks))
	for i, cr := range loaded.Series[0].Chunks {
		require.Equal(t, chunks[i].FirstTS(), cr.FirstTS)
		require.Equal(t, chunks[i].LastTS(), cr.LastTS)
		require.Equal(t, chunks[i].Count(), cr.Count)
		require.Equal(t, chunks[i].Bytes(), cr.Payload)
	}
}

func TestSaveLoadPreservesConditionalRule(t *testing.T) {
	opts := config.DefaultSeriesOptions(config.DefaultGlobal())
	cond := &aggregation.Condition{Op: aggregation.Gt, Ref: 42}
	snap := Snapshot{
		Series: []SeriesRecord{
			{
				Key:     "src",
				Options: opts,
				Rules: []compaction.Rule{
					{DestKey: "dst", Aggregator: "sum", BucketMs: 1000, Condition: cond},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, snap))
	loaded, err := Load(&buf)
	require.NoError(t, err)

	require.NotNil(t, loaded.Series[0].Rules[0].Condition)
	require.Equal(t, cond.Op, loaded.Series[0].Rules[0].Condition.Op)
	require.Equal(t, cond.Ref, loaded.Series[0].Rules[0].Condition.Ref)
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff})
	_, err := Load(buf)
	require.Error(t, err)
}

func TestRewriteOrdersSourcesBeforeDestinations(t *testing.T) {
	opts := config.DefaultSeriesOptions(config.DefaultGlobal())
	snap := Snapshot{
		Series: []SeriesRecord{
			{
				Key:     "dst",
				Options: opts,
				Chunks:  chunkRecordsFromSamples(t, chunk.Compressed, []chunk.Sample{{TS: 1000, Val: 10}}, 4096),
			},
			{
				Key:     "src",
				Options: opts,
				Chunks:  chunkRecordsFromSamples(t, chunk.Compressed, []chunk.Sample{{TS: 1000, Val: 1}}, 4096),
				Rules:   []compaction.Rule{{DestKey: "dst", Aggregator: "sum", BucketMs: 1000}},
			},
		},
	}
	snap.Series[0].SourceKey = "src"

	cmds, err := Rewrite(snap)
	require.NoError(t, err)
	require.NotEmpty(t, cmds)

	var srcCreateIdx, dstCreateIdx, ruleIdx int = -1, -1, -1
	for i, c := range cmds {
		s := string(c)
		if strings.HasPrefix(s, "CREATE src") {
			srcCreateIdx = i
		}
		if strings.HasPrefix(s, "CREATE dst") {
			dstCreateIdx = i
		}
		if strings.HasPrefix(s, "CREATERULE src dst") {
			ruleIdx = i
		}
	}
	require.True(t, srcCreateIdx >= 0 && dstCreateIdx >= 0 && ruleIdx >= 0)
	require.Less(t, srcCreateIdx, dstCreateIdx)
	require.Less(t, dstCreateIdx, ruleIdx)
}

func TestMigratorLoadsCurrentVersionDirectly(t *testing.T) {
	opts := config.DefaultSeriesOptions(config.DefaultGlobal())
	snap := Snapshot{Series: []SeriesRecord{{Key: "k", Options: opts}}}

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, snap))

	loaded, err := NewMigrator().Migrate(&buf)
	require.NoError(t, err)
	require.Len(t, loaded.Series, 1)
	require.Equal(t, "k", loaded.Series[0].Key)
}
