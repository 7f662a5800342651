// Package seriesstore implements Component B: the ordered list of chunks
// backing a single series, with append, upsert, delete-range, retention
// trim, iteration and bulk load (§4.1).
package seriesstore

import (
	"math"
	"sort"

	"github.com/ledgerwatch/tscore/chunk"
	"github.com/ledgerwatch/tscore/config"
	tserr "github.com/ledgerwatch/tscore/errors"
)

// Store is the chunk list of one series. It knows nothing of labels,
// rules, or rounding — those are Component C's concern; Store only
// maintains the chunk-ordering and duplicate-timestamp invariants of §3.
type Store struct {
	chunks         []chunk.Chunk
	encoding       chunk.Encoding
	chunkSizeBytes int
	dupPolicy      config.DuplicatePolicy
}

func New(enc chunk.Encoding, chunkSizeBytes int, dup config.DuplicatePolicy) *Store {
	if chunkSizeBytes < chunk.MinChunkSizeBytes {
		chunkSizeBytes = chunk.MinChunkSizeBytes
	}
	return &Store{encoding: enc, chunkSizeBytes: chunkSizeBytes, dupPolicy: dup}
}

func (s *Store) IsEmpty() bool { return len(s.chunks) == 0 }

func (s *Store) FirstTS() int64 {
	if s.IsEmpty() {
		return 0
	}
	return s.chunks[0].FirstTS()
}

func (s *Store) LastTS() int64 {
	if s.IsEmpty() {
		return 0
	}
	return s.chunks[len(s.chunks)-1].LastTS()
}

func (s *Store) LastValue() float64 {
	if s.IsEmpty() {
		return 0
	}
	last := s.chunks[len(s.chunks)-1]
	samples := last.Samples()
	return samples[len(samples)-1].Val
}

func (s *Store) TotalSamples() int {
	n := 0
	for _, c := range s.chunks {
		n += c.Count()
	}
	return n
}

func (s *Store) ChunkCount() int { return len(s.chunks) }

// Chunks exposes the raw chunk list for digest/snapshot computation. The
// returned slice must not be mutated.
func (s *Store) Chunks() []chunk.Chunk { return s.chunks }

// SetChunks installs a chunk list built elsewhere (persist.Load
// reconstructing chunk.FromBytes results) in place of appending samples
// one at a time, preserving the exact chunk boundaries the list already
// carries rather than re-deriving them from a replay.
func (s *Store) SetChunks(chunks []chunk.Chunk) { s.chunks = chunks }

func combine(old, next float64, policy config.DuplicatePolicy) (float64, error) {
	switch policy {
	case config.DuplicateBlock:
		return 0, tserr.New(tserr.DuplicateTimestamp, "duplicate timestamp under block policy")
	case config.DuplicateFirst:
		return old, nil
	case config.DuplicateLast:
		return next, nil
	case config.DuplicateMin:
		return math.Min(old, next), nil
	case config.DuplicateMax:
		return math.Max(old, next), nil
	case config.DuplicateSum:
		return old + next, nil
	default:
		return 0, tserr.New(tserr.ParseError, "unknown duplicate policy")
	}
}

// Append adds one sample, applying hot-path append when ts is newer than
// every stored sample, or locating the owning chunk by binary search for
// out-of-order/duplicate timestamps (§4.1). Same-timestamp collisions
// are resolved by the store's configured duplicate policy.
func (s *Store) Append(ts int64, v float64) error {
	return s.AppendWithPolicy(ts, v, s.dupPolicy)
}

// AppendWithPolicy is Append with the duplicate policy overridden for
// this call only, used by compaction finalization to force Last
// regardless of the destination series' configured policy (§4.2).
func (s *Store) AppendWithPolicy(ts int64, v float64, policy config.DuplicatePolicy) error {
	if s.IsEmpty() {
		c := chunk.New(s.encoding)
		if _, err := c.Append(ts, v, s.chunkSizeBytes); err != nil {
			return err
		}
		s.chunks = append(s.chunks, c)
		return nil
	}

	last := s.chunks[len(s.chunks)-1]
	switch {
	case ts > last.LastTS():
		ok, err := last.Append(ts, v, s.chunkSizeBytes)
		if err != nil {
			return err
		}
		if !ok {
			nc := chunk.New(s.encoding)
			if _, err := nc.Append(ts, v, s.chunkSizeBytes); err != nil {
				return err
			}
			s.chunks = append(s.chunks, nc)
		}
		return nil
	case ts == last.LastTS():
		return s.upsertOrInsert(len(s.chunks)-1, ts, v, policy)
	default:
		idx := s.chunkContaining(ts)
		return s.upsertOrInsert(idx, ts, v, policy)
	}
}

// chunkContaining returns the index of the chunk whose [FirstTS,LastTS]
// should own ts, clamping to the first/last chunk at the series edges.
func (s *Store) chunkContaining(ts int64) int {
	i := sort.Search(len(s.chunks), func(i int) bool { return s.chunks[i].LastTS() >= ts })
	if i >= len(s.chunks) {
		i = len(s.chunks) - 1
	}
	return i
}

// upsertOrInsert handles a timestamp that may or may not already exist in
// chunks[idx]: if it exists, the duplicate policy decides the combined
// value; otherwise the sample is inserted at its sorted position.
func (s *Store) upsertOrInsert(idx int, ts int64, v float64, policy config.DuplicatePolicy) error {
	c := s.chunks[idx]
	if existing, ok := findExact(c, ts); ok {
		combined, err := combine(existing, v, policy)
		if err != nil {
			return err
		}
		if _, err := c.Upsert(ts, combined); err != nil {
			return err
		}
		return nil
	}
	return s.insertAt(idx, ts, v)
}

func findExact(c chunk.Chunk, ts int64) (float64, bool) {
	for _, s := range c.Samples() {
		if s.TS == ts {
			return s.Val, true
		}
		if s.TS > ts {
			break
		}
	}
	return 0, false
}

func (s *Store) insertAt(idx int, ts int64, v float64) error {
	c := s.chunks[idx]
	tail, err := c.InsertAt(ts, v, s.chunkSizeBytes)
	if err != nil {
		return err
	}
	if tail != nil {
		rest := append([]chunk.Chunk{tail}, s.chunks[idx+1:]...)
		s.chunks = append(s.chunks[:idx+1], rest...)
	}
	return nil
}

// DeleteRange removes every sample with t0 <= ts <= t1, dropping chunks
// that become empty, and returns the count deleted.
func (s *Store) DeleteRange(t0, t1 int64) int {
	deleted := 0
	out := s.chunks[:0]
	for _, c := range s.chunks {
		if c.LastTS() < t0 || c.FirstTS() > t1 {
			out = append(out, c)
			continue
		}
		deleted += c.DeleteRange(t0, t1)
		if !c.IsEmpty() {
			out = append(out, c)
		}
	}
	s.chunks = out
	return deleted
}

// TrimToRetention drops whole chunks older than now-retentionMs, and
// partially rewrites the oldest remaining chunk if it straddles the
// boundary (§4.1). retentionMs == 0 means unbounded; no-op.
func (s *Store) TrimToRetention(now, retentionMs int64) int {
	if retentionMs <= 0 || s.IsEmpty() {
		return 0
	}
	cutoff := now - retentionMs
	dropped := 0
	i := 0
	for i < len(s.chunks) && s.chunks[i].LastTS() < cutoff {
		dropped += s.chunks[i].Count()
		i++
	}
	s.chunks = s.chunks[i:]
	if len(s.chunks) > 0 && s.chunks[0].FirstTS() < cutoff {
		dropped += s.chunks[0].DeleteRange(s.chunks[0].FirstTS(), cutoff-1)
		if s.chunks[0].IsEmpty() {
			s.chunks = s.chunks[1:]
		}
	}
	return dropped
}

// InsertMany bulk-appends a sorted batch (MADDBULK/INGEST fast path).
// Runs that land strictly after LastTS append in bulk via FromSamples;
// runs overlapping existing data fall back to per-sample Append.
func (s *Store) InsertMany(samples []chunk.Sample) (accepted int, err error) {
	if len(samples) == 0 {
		return 0, nil
	}
	start := 0
	if !s.IsEmpty() {
		last := s.LastTS()
		for start < len(samples) && samples[start].TS <= last {
			if err := s.Append(samples[start].TS, samples[start].Val); err != nil {
				return accepted, err
			}
			accepted++
			start++
		}
	}
	if start < len(samples) {
		fresh := chunk.FromSamples(s.encoding, samples[start:], s.chunkSizeBytes)
		s.chunks = append(s.chunks, fresh...)
		accepted += len(samples) - start
	}
	return accepted, nil
}

// RangeSamples returns every sample with t0 <= ts < t1, decoded and
// sorted ascending. Used by the compaction engine's Rescanner path and
// by FILTER_BY_RANGE-adjacent callers that need the raw run rather than
// a merged iterator.
func (s *Store) RangeSamples(t0, t1 int64) []chunk.Sample {
	var out []chunk.Sample
	for _, c := range s.chunks {
		if c.LastTS() < t0 || c.FirstTS() >= t1 {
			continue
		}
		for _, smp := range c.Samples() {
			if smp.TS >= t0 && smp.TS < t1 {
				out = append(out, smp)
			}
		}
	}
	return out
}

// RangeInclusive returns every sample with t0 <= ts <= t1, decoded and
// sorted ascending, for RANGE/REVRANGE's inclusive bounds (§4.4).
func (s *Store) RangeInclusive(t0, t1 int64) []chunk.Sample {
	var out []chunk.Sample
	for _, c := range s.chunks {
		if c.LastTS() < t0 || c.FirstTS() > t1 {
			continue
		}
		for _, smp := range c.Samples() {
			if smp.TS >= t0 && smp.TS <= t1 {
				out = append(out, smp)
			}
		}
	}
	return out
}

// Iterator merges the per-chunk iterators into one forward/reverse cursor
// over the whole series (§4.1 "O(1) per step amortized").
func (s *Store) Iterator(reverse bool) chunk.Iterator {
	return newMergeIterator(s.chunks, reverse)
}

type mergeIterator struct {
	chunks  []chunk.Chunk
	idx     int
	cur     chunk.Iterator
	reverse bool
}

func newMergeIterator(chunks []chunk.Chunk, reverse bool) *mergeIterator {
	m := &mergeIterator{chunks: chunks, reverse: reverse}
	if reverse {
		m.idx = len(chunks)
	} else {
		m.idx = -1
	}
	return m
}

func (m *mergeIterator) Next() bool {
	for {
		if m.cur != nil && m.cur.Next() {
			return true
		}
		if m.reverse {
			m.idx--
			if m.idx < 0 {
				return false
			}
		} else {
			m.idx++
			if m.idx >= len(m.chunks) {
				return false
			}
		}
		m.cur = m.chunks[m.idx].Iterator(m.reverse)
	}
}

func (m *mergeIterator) At() (int64, float64) { return m.cur.At() }
