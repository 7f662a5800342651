package command

import (
	"github.com/ledgerwatch/tscore/chunk"
)

// ChunkInfo is one DEBUG-mode per-chunk descriptor within INFO's output.
type ChunkInfo struct {
	FirstTS   int64
	LastTS    int64
	Count     int
	SizeBytes int
	Encoding  chunk.Encoding
}

// Info is INFO key [DEBUG]'s full result (§4.7).
type Info struct {
	Key               string
	Labels            map[string]string
	TotalSamples      int
	FirstTS           int64
	LastTS            int64
	MemoryUsageBytes  int
	RetentionMs       int64
	ChunkSizeBytes    uint64
	Encoding          string
	DuplicatePolicy   string
	SourceKey         string
	OutgoingRuleDests []string
	Chunks            []ChunkInfo // only populated when debug=true
}

// Info implements INFO key [DEBUG] (§4.7).
func (d *Database) Info(key string, debug bool) (Info, error) {
	s, err := d.lookup(key)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Key:              key,
		Labels:           labelsToMap(s.Labels),
		TotalSamples:     s.Store.TotalSamples(),
		MemoryUsageBytes: s.MemoryUsage(),
		RetentionMs:      s.Options.RetentionMs,
		ChunkSizeBytes:   s.Options.ChunkSizeBytes,
		Encoding:         s.Options.Encoding.String(),
		DuplicatePolicy:  s.Options.DuplicatePolicy.String(),
		SourceKey:        s.SourceKey,
	}
	if s.Store.TotalSamples() > 0 {
		info.FirstTS = s.Store.FirstTS()
		info.LastTS = s.Store.LastTS()
	}
	for _, rl := range s.OutgoingRules {
		info.OutgoingRuleDests = append(info.OutgoingRuleDests, rl.Rule.DestKey)
	}
	if debug {
		for _, c := range s.Store.Chunks() {
			info.Chunks = append(info.Chunks, ChunkInfo{
				FirstTS: c.FirstTS(), LastTS: c.LastTS(),
				Count: c.Count(), SizeBytes: c.SizeBytes(), Encoding: c.Encoding(),
			})
		}
	}
	return info, nil
}

// DebugDigestValue implements DEBUG DIGEST-VALUE key (§4.1.4, §8.4): a
// stable content hash over the series' labels, config, rule links, and
// finalized samples, excluding any open compaction-bucket state.
func (d *Database) DebugDigestValue(key string) ([]byte, error) {
	s, err := d.lookup(key)
	if err != nil {
		return nil, err
	}
	return s.Digest(false), nil
}
