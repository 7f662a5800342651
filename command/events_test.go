package command

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/tscore/compaction"
	"github.com/ledgerwatch/tscore/config"
)

func TestOnKeyMovedRebindsIndexAtomically(t *testing.T) {
	engine := NewEngine(config.DefaultGlobal(), nil)
	src := engine.DB(0)
	dst := engine.DB(1)

	require.NoError(t, src.Create("temp:1", CreateOptions{Labels: map[string]string{"region": "eu"}}))
	_, err := src.Add("temp:1", 1000, false, 1.5, AddOptions{})
	require.NoError(t, err)

	src.OnKeyMoved("temp:1", 0, 1)

	_, ok := src.series["temp:1"]
	require.False(t, ok)
	matches, err := src.QueryIndex(`{region="eu"}`)
	require.NoError(t, err)
	require.Empty(t, matches)

	s, ok := dst.series["temp:1"]
	require.True(t, ok)
	require.Equal(t, int64(1000), s.Store.LastTS())
	matches, err = dst.QueryIndex(`{region="eu"}`)
	require.NoError(t, err)
	require.Equal(t, []string{"temp:1"}, matches)
}

func TestOnDBSwappedExchangesContentsDisjointly(t *testing.T) {
	engine := NewEngine(config.DefaultGlobal(), nil)
	db0 := engine.DB(0)
	db1 := engine.DB(1)

	require.NoError(t, db0.Create("a", CreateOptions{Labels: map[string]string{"who": "zero"}}))
	require.NoError(t, db1.Create("b", CreateOptions{Labels: map[string]string{"who": "one"}}))

	db0.OnDBSwapped(0, 1)

	newDB0 := engine.DB(0)
	newDB1 := engine.DB(1)

	_, ok := newDB0.series["b"]
	require.True(t, ok)
	_, ok = newDB0.series["a"]
	require.False(t, ok)

	_, ok = newDB1.series["a"]
	require.True(t, ok)
	_, ok = newDB1.series["b"]
	require.False(t, ok)
}

func TestOnKeyRenamedUpdatesRuleBackPointers(t *testing.T) {
	engine := NewEngine(config.DefaultGlobal(), nil)
	db := engine.DB(0)

	require.NoError(t, db.Create("src", CreateOptions{}))
	require.NoError(t, db.Create("dest", CreateOptions{}))
	require.NoError(t, db.CreateRule("src", "dest", compaction.Rule{Aggregator: "sum", BucketMs: 10}))

	db.OnKeyRenamed("src", "src2")

	destSeries := db.series["dest"]
	require.Equal(t, "src2", destSeries.SourceKey)

	srcSeries := db.series["src2"]
	rl, ok := srcSeries.RuleTo("dest")
	require.True(t, ok)
	require.Equal(t, "dest", rl.Rule.DestKey)
}
