// Package chunk implements Component A of the engine: immutable-once-full
// containers of (timestamp,value) samples, in the two encodings spec §3
// requires — a flat uncompressed form and a Gorilla-style compressed
// form (delta-of-delta timestamps, XOR values).
//
// The compressed encoding is backed by github.com/prometheus/tsdb/chunkenc,
// already a direct dependency of the teacher's go.mod: tscore does not
// reimplement Gorilla bit-packing, it wraps the existing implementation
// with the chunk-size budget, split-on-overflow, and upsert semantics
// spec §4.1 requires on top of it.
package chunk

import "sort"

// Sample is the engine-wide (timestamp,value) pair, ordered by TS.
type Sample struct {
	TS  int64
	Val float64
}

// Encoding identifies which concrete Chunk implementation backs a series.
type Encoding uint8

const (
	Uncompressed Encoding = iota
	Compressed
)

// MinChunkSizeBytes is the smallest chunk_size the engine accepts (§3).
const MinChunkSizeBytes = 48

// Chunk is the common operation set both encodings implement (§3's "A
// chunk supports..." list).
type Chunk interface {
	Encoding() Encoding
	FirstTS() int64
	LastTS() int64
	Count() int
	// SizeBytes is the encoded payload size used against the chunk_size
	// budget; it is not a precise allocator byte count.
	SizeBytes() int
	IsEmpty() bool

	// Append adds a sample known to sort after every existing sample.
	// ok=false means the chunk has no room left under budgetBytes; the
	// caller (seriesstore) must allocate a new chunk instead. The
	// uncompressed encoding refuses a sample that would take it past the
	// budget; the compressed encoding refuses only once its payload has
	// already reached the budget, so its last accepted sample can take it
	// past. Append never mutates the receiver when ok is false.
	Append(ts int64, v float64, budgetBytes int) (ok bool, err error)

	// Upsert replaces the value at an existing timestamp. Returns false
	// if ts is not present.
	Upsert(ts int64, v float64) (found bool, err error)

	// InsertAt inserts a sample at an arbitrary timestamp not currently
	// present. If the chunk would exceed budgetBytes, it splits: the
	// receiver keeps the earlier half and tail holds the rest (non-nil).
	InsertAt(ts int64, v float64, budgetBytes int) (tail Chunk, err error)

	// DeleteRange removes every sample with t0 <= ts <= t1, returning the
	// count removed.
	DeleteRange(t0, t1 int64) int

	// Iterator yields samples in ascending (forward) or descending
	// (reverse) order.
	Iterator(reverse bool) Iterator

	// Samples decodes every sample in the chunk, in ascending order. Used
	// by upsert/insert/split/digest paths that need the full run.
	Samples() []Sample

	// Bytes is the stable on-disk/in-digest payload (§4.1.4, §6.5).
	Bytes() []byte

	// Clone deep-copies the chunk.
	Clone() Chunk
}

// Iterator walks a Chunk's samples.
type Iterator interface {
	Next() bool
	At() (int64, float64)
}

// New builds an empty chunk of the given encoding.
func New(enc Encoding) Chunk {
	if enc == Uncompressed {
		return newUncompressed()
	}
	return newCompressed()
}

// FromSamples builds a fresh chunk preloaded with a sorted, non-empty
// sample run, splitting across multiple chunks as needed to respect
// budgetBytes. Used by seriesstore.InsertMany's bulk fast path.
func FromSamples(enc Encoding, samples []Sample, budgetBytes int) []Chunk {
	if len(samples) == 0 {
		return nil
	}
	var out []Chunk
	cur := New(enc)
	for _, s := range samples {
		ok, err := cur.Append(s.TS, s.Val, budgetBytes)
		if err != nil {
			// Encoder failure on a monotonic append can't happen for
			// either encoding; treat defensively by starting a new chunk.
			ok = false
		}
		if !ok {
			out = append(out, cur)
			cur = New(enc)
			_, _ = cur.Append(s.TS, s.Val, budgetBytes)
		}
	}
	if !cur.IsEmpty() {
		out = append(out, cur)
	}
	return out
}

// FromBytes reconstructs a chunk directly from a previously encoded
// payload (as returned by Chunk.Bytes()) and the boundaries recorded
// alongside it, rather than replaying samples through Append. This is
// what lets a snapshot round-trip reproduce the exact chunk split
// points of the original series (§6.5's chunks_block), which an
// Append-replay cannot: an out-of-order insert that triggered a
// mid-chunk split at save time has no equivalent trigger during a
// purely-ascending replay.
func FromBytes(enc Encoding, data []byte, firstTS, lastTS int64, count int) (Chunk, error) {
	if enc == Uncompressed {
		return uncompressedFromBytes(data), nil
	}
	return compressedFromBytes(data, firstTS, lastTS, count)
}

// searchTS returns the index of the first sample with TS >= ts.
func searchTS(samples []Sample, ts int64) int {
	return sort.Search(len(samples), func(i int) bool { return samples[i].TS >= ts })
}
