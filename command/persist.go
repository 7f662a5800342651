package command

import (
	"io"

	"github.com/ledgerwatch/tscore/chunk"
	"github.com/ledgerwatch/tscore/compaction"
	"github.com/ledgerwatch/tscore/config"
	"github.com/ledgerwatch/tscore/labelindex"
	"github.com/ledgerwatch/tscore/persist"
	"github.com/ledgerwatch/tscore/query"
	"github.com/ledgerwatch/tscore/series"
)

// Save implements host.Persister: serializes every series into a
// persist.Snapshot and writes it through persist.Save (§4.10, §6.1).
func (d *Database) Save(w io.Writer) error {
	snap := persist.Snapshot{Series: make([]persist.SeriesRecord, 0, len(d.series))}
	for _, s := range d.series {
		snap.Series = append(snap.Series, seriesToRecord(s))
	}
	return persist.Save(w, snap)
}

// seriesToRecord captures s's chunk list as-is (first_ts/last_ts/count/
// Bytes() per chunk) rather than flattening it to a sample run, so a
// save/load round trip reproduces the original chunk boundaries exactly
// (§6.5, §4.10's digest-equality requirement).
func seriesToRecord(s *series.Series) persist.SeriesRecord {
	rules := make([]compaction.Rule, len(s.OutgoingRules))
	for i, rl := range s.OutgoingRules {
		rules[i] = rl.Rule
	}
	chunks := s.Store.Chunks()
	records := make([]persist.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = persist.ChunkRecord{
			FirstTS: c.FirstTS(),
			LastTS:  c.LastTS(),
			Count:   c.Count(),
			Payload: append([]byte(nil), c.Bytes()...),
		}
	}
	return persist.SeriesRecord{
		Key:       s.Key,
		Labels:    labelsToMap(s.Labels),
		Options:   s.Options,
		SourceKey: s.SourceKey,
		Rules:     rules,
		Chunks:    records,
	}
}

// Load implements host.Persister: replaces this database's contents
// with the series reconstructed from r (§4.10). Open compaction-bucket
// state is left NoOpen; the first source write after load opens a fresh
// bucket, and the destination's stored samples are not consulted.
func (d *Database) Load(r io.Reader) error {
	snap, err := persist.Load(r)
	if err != nil {
		return err
	}
	d.series = make(map[string]*series.Series, len(snap.Series))
	d.index = labelindex.NewIndex()
	d.planner = query.NewPlanner(d.index)

	for _, rec := range snap.Series {
		normalized, err := series.NormalizeLabels(labelsToSlice(rec.Labels))
		if err != nil {
			return err
		}
		s := series.New(rec.Key, normalized, rec.Options)
		s.SourceKey = rec.SourceKey

		enc := chunk.Compressed
		if rec.Options.Encoding == config.EncodingUncompressed {
			enc = chunk.Uncompressed
		}
		chunks := make([]chunk.Chunk, len(rec.Chunks))
		for i, cr := range rec.Chunks {
			c, err := chunk.FromBytes(enc, cr.Payload, cr.FirstTS, cr.LastTS, cr.Count)
			if err != nil {
				return err
			}
			chunks[i] = c
		}
		s.Store.SetChunks(chunks)

		for _, rule := range rec.Rules {
			s.AddOutgoingRule(rule)
		}
		d.series[rec.Key] = s
		d.index.AddSeries(rec.Key, rec.Labels)
	}
	return nil
}

func labelsToSlice(m map[string]string) []series.Label {
	out := make([]series.Label, 0, len(m))
	for name, value := range m {
		out = append(out, series.Label{Name: name, Value: value})
	}
	return out
}

// RewriteAOF implements host.AOFRewriter: the CREATE + ADDBULK +
// CREATERULE sequence reconstructing key alone (§4.10). Cross-key
// source-before-destination ordering is persist.Rewrite's concern for
// a whole-database rewrite; a single key's own replay never depends on
// another key already existing except via CREATERULE, which the host
// appends only after both endpoints' own rewrite output.
func (d *Database) RewriteAOF(key string) ([]string, error) {
	s, err := d.lookup(key)
	if err != nil {
		return nil, err
	}
	rec := seriesToRecord(s)
	cmds, err := persist.Rewrite(persist.Snapshot{Series: []persist.SeriesRecord{rec}})
	if err != nil {
		return nil, err
	}
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = string(c)
	}
	return out, nil
}
