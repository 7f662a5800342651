// Package series implements Component C: the Series object — metadata
// (labels, retention, chunk-size, duplicate policy, rounding, encoding,
// ignore-thresholds), its chunk store (Component B), compaction-rule
// linkage, and digest (§3, §4.1.4).
package series

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/ledgerwatch/tscore/chunk"
	"github.com/ledgerwatch/tscore/compaction"
	"github.com/ledgerwatch/tscore/config"
	"github.com/ledgerwatch/tscore/seriesstore"
)

// RuleLink pairs an outgoing compaction rule with its open-bucket
// accumulator, both of which live on the source series (§3).
type RuleLink struct {
	Rule  compaction.Rule
	State compaction.BucketState
}

// Series is one host key's worth of time-series state.
type Series struct {
	Key     string
	Labels  []Label // sorted, unique by name
	Options config.SeriesOptions

	Store *seriesstore.Store

	// SourceKey is set when this series is a compaction destination; it
	// is a string, not a pointer, so it survives rename/save-load (§9).
	SourceKey string

	OutgoingRules []*RuleLink
}

// New creates an empty series with the given key, labels (already
// normalized) and options.
func New(key string, labels []Label, opts config.SeriesOptions) *Series {
	enc := chunk.Compressed
	if opts.Encoding == config.EncodingUncompressed {
		enc = chunk.Uncompressed
	}
	return &Series{
		Key:     key,
		Labels:  labels,
		Options: opts,
		Store:   seriesstore.New(enc, int(opts.ChunkSizeBytes), opts.DuplicatePolicy),
	}
}

// MetricName returns the __name__ label value, if present.
func (s *Series) MetricName() (string, bool) { return MetricName(s.Labels) }

// IsCompactionDestination reports whether this series was created by
// CREATERULE (has a source_key back-pointer).
func (s *Series) IsCompactionDestination() bool { return s.SourceKey != "" }

// AddOutgoingRule links a new compaction rule, starting with a closed
// bucket accumulator.
func (s *Series) AddOutgoingRule(r compaction.Rule) {
	s.OutgoingRules = append(s.OutgoingRules, &RuleLink{Rule: r})
}

// RemoveOutgoingRule unlinks the rule targeting destKey, if any. Returns
// true if a rule was removed.
func (s *Series) RemoveOutgoingRule(destKey string) bool {
	for i, rl := range s.OutgoingRules {
		if rl.Rule.DestKey == destKey {
			s.OutgoingRules = append(s.OutgoingRules[:i], s.OutgoingRules[i+1:]...)
			return true
		}
	}
	return false
}

// RuleTo returns the outgoing rule targeting destKey, if any.
func (s *Series) RuleTo(destKey string) (*RuleLink, bool) {
	for _, rl := range s.OutgoingRules {
		if rl.Rule.DestKey == destKey {
			return rl, true
		}
	}
	return nil, false
}

// MemoryUsage reports the caller-accounted byte estimate of §5: chunk
// payload plus labels plus rule metadata.
func (s *Series) MemoryUsage() int {
	n := 0
	for _, c := range s.Store.Chunks() {
		n += c.SizeBytes()
	}
	for _, l := range s.Labels {
		n += len(l.Name) + len(l.Value)
	}
	n += len(s.OutgoingRules) * 48
	n += len(s.SourceKey)
	return n
}

// Digest computes the stable content hash of §4.1.4: sorted labels,
// configuration tuple, outgoing-rule list in defined order, then for
// each chunk first_ts/last_ts/count/raw_payload. includeOpenBucket
// controls whether bucket_start of each outgoing rule is folded in —
// source-series digests exclude it (open-bucket state isn't persisted),
// destination digests only ever see finalized samples so the flag is
// irrelevant there (§4.10).
func (s *Series) Digest(includeOpenBucket bool) []byte {
	h := sha256.New()

	for _, l := range s.Labels {
		h.Write([]byte(l.Name))
		h.Write([]byte{0})
		h.Write([]byte(l.Value))
		h.Write([]byte{0})
	}

	writeInt := func(v int64) {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeInt(s.Options.RetentionMs)
	h.Write([]byte{byte(s.Options.Encoding)})
	writeInt(int64(s.Options.ChunkSizeBytes))
	h.Write([]byte{byte(s.Options.DuplicatePolicy)})
	h.Write([]byte{byte(s.Options.Rounding.Kind), byte(s.Options.Rounding.Digits)})
	writeInt(s.Options.IgnoreMaxTimeDiff)

	rules := append([]*RuleLink(nil), s.OutgoingRules...)
	sort.Slice(rules, func(i, j int) bool { return rules[i].Rule.DestKey < rules[j].Rule.DestKey })
	for _, rl := range rules {
		h.Write([]byte(rl.Rule.DestKey))
		h.Write([]byte(rl.Rule.Aggregator))
		writeInt(rl.Rule.BucketMs)
		writeInt(rl.Rule.AlignMs)
		if includeOpenBucket && rl.State.HasOpen {
			writeInt(rl.State.BucketStart)
		}
	}

	for _, c := range s.Store.Chunks() {
		writeInt(c.FirstTS())
		writeInt(c.LastTS())
		writeInt(int64(c.Count()))
		h.Write(c.Bytes())
	}

	return h.Sum(nil)
}
