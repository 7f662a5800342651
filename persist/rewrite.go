package persist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RewriteCommand is one textual command emitted by Rewrite, ready for
// the host's AOF-rewrite hook (§6.1, §4.10) to write verbatim.
type RewriteCommand string

// Rewrite emits an idempotent sequence reconstructing every series in
// snap: CREATE then ADDBULK for each series, followed by the CREATERULE
// commands, with series ordered so that sources always precede their
// compaction destinations — re-running the sequence
// against an empty database reproduces it exactly (§4.10, and the
// replication-ordering behavior motivated by
// test_timeseries_replication.py / test_timeseries_replication_copy.py).
func Rewrite(snap Snapshot) ([]RewriteCommand, error) {
	byKey := make(map[string]SeriesRecord, len(snap.Series))
	for _, rec := range snap.Series {
		byKey[rec.Key] = rec
	}

	ordered := topoSort(snap.Series)

	var cmds []RewriteCommand
	for _, rec := range ordered {
		cmds = append(cmds, createCommand(rec))
		samples, err := rec.Samples()
		if err != nil {
			return nil, err
		}
		for _, s := range samples {
			cmds = append(cmds, RewriteCommand(fmt.Sprintf("ADDBULK %s %d %s", rec.Key, s.TS, formatFloat(s.Val))))
		}
	}
	for _, rec := range ordered {
		for _, rule := range rec.Rules {
			cmds = append(cmds, RewriteCommand(fmt.Sprintf(
				"CREATERULE %s %s AGGREGATION %s %d %d",
				rec.Key, rule.DestKey, rule.Aggregator, rule.BucketMs, rule.AlignMs)))
		}
	}
	return cmds, nil
}

// topoSort orders series so every SourceKey precedes the series that
// names it, breaking ties by key for determinism. Any cycle (which
// CreateRule should already have rejected at write time) falls back to
// key order for the offending subset rather than looping forever.
func topoSort(records []SeriesRecord) []SeriesRecord {
	byKey := make(map[string]SeriesRecord, len(records))
	keys := make([]string, 0, len(records))
	for _, rec := range records {
		byKey[rec.Key] = rec
		keys = append(keys, rec.Key)
	}
	sort.Strings(keys)

	visited := map[string]bool{}
	visiting := map[string]bool{}
	var out []SeriesRecord

	var visit func(key string)
	visit = func(key string) {
		if visited[key] || visiting[key] {
			return
		}
		rec, ok := byKey[key]
		if !ok {
			return
		}
		visiting[key] = true
		if rec.SourceKey != "" {
			visit(rec.SourceKey)
		}
		visiting[key] = false
		visited[key] = true
		out = append(out, rec)
	}
	for _, key := range keys {
		visit(key)
	}
	return out
}

func createCommand(rec SeriesRecord) RewriteCommand {
	var b strings.Builder
	b.WriteString("CREATE ")
	b.WriteString(rec.Key)
	fmt.Fprintf(&b, " RETENTION %d", rec.Options.RetentionMs)
	fmt.Fprintf(&b, " CHUNK_SIZE %d", rec.Options.ChunkSizeBytes)
	fmt.Fprintf(&b, " ENCODING %s", rec.Options.Encoding.String())
	fmt.Fprintf(&b, " DUPLICATE_POLICY %s", rec.Options.DuplicatePolicy.String())
	if len(rec.Labels) > 0 {
		names := make([]string, 0, len(rec.Labels))
		for name := range rec.Labels {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString(" LABELS")
		for _, name := range names {
			fmt.Fprintf(&b, " %s %s", name, rec.Labels[name])
		}
	}
	return RewriteCommand(b.String())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
