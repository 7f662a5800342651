package chunk

import (
	"encoding/binary"
	"math"
	"sort"
)

// uncompressedChunk is the flat, two-parallel-vector encoding spec §3
// calls for. Each sample costs 16 bytes (int64 ts + float64 value); no
// pack library targets this — it is sixteen bytes of stdlib binary
// encoding, not an algorithm worth borrowing a dependency for.
type uncompressedChunk struct {
	ts  []int64
	val []float64
}

const uncompressedSampleBytes = 16

func newUncompressed() *uncompressedChunk {
	return &uncompressedChunk{}
}

// uncompressedFromBytes decodes a payload produced by Bytes(): the
// format is self-describing (16 bytes per sample), so no separate
// boundary/count arguments are needed to reconstruct it exactly.
func uncompressedFromBytes(data []byte) *uncompressedChunk {
	n := len(data) / uncompressedSampleBytes
	c := &uncompressedChunk{ts: make([]int64, n), val: make([]float64, n)}
	for i := 0; i < n; i++ {
		off := i * uncompressedSampleBytes
		c.ts[i] = int64(binary.LittleEndian.Uint64(data[off : off+8]))
		c.val[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[off+8 : off+16]))
	}
	return c
}

func (c *uncompressedChunk) Encoding() Encoding { return Uncompressed }

func (c *uncompressedChunk) IsEmpty() bool { return len(c.ts) == 0 }

func (c *uncompressedChunk) FirstTS() int64 {
	if len(c.ts) == 0 {
		return 0
	}
	return c.ts[0]
}

func (c *uncompressedChunk) LastTS() int64 {
	if len(c.ts) == 0 {
		return 0
	}
	return c.ts[len(c.ts)-1]
}

func (c *uncompressedChunk) Count() int { return len(c.ts) }

func (c *uncompressedChunk) SizeBytes() int { return len(c.ts) * uncompressedSampleBytes }

func (c *uncompressedChunk) Append(ts int64, v float64, budgetBytes int) (bool, error) {
	if !c.IsEmpty() && c.SizeBytes()+uncompressedSampleBytes > budgetBytes {
		return false, nil
	}
	c.ts = append(c.ts, ts)
	c.val = append(c.val, v)
	return true, nil
}

func (c *uncompressedChunk) Upsert(ts int64, v float64) (bool, error) {
	i := searchTS(c.Samples(), ts)
	if i >= len(c.ts) || c.ts[i] != ts {
		return false, nil
	}
	c.val[i] = v
	return true, nil
}

func (c *uncompressedChunk) InsertAt(ts int64, v float64, budgetBytes int) (Chunk, error) {
	i := searchTS(c.Samples(), ts)
	c.ts = append(c.ts, 0)
	c.val = append(c.val, 0)
	copy(c.ts[i+1:], c.ts[i:])
	copy(c.val[i+1:], c.val[i:])
	c.ts[i] = ts
	c.val[i] = v

	if c.SizeBytes() <= budgetBytes {
		return nil, nil
	}
	mid := len(c.ts) / 2
	tail := &uncompressedChunk{
		ts:  append([]int64(nil), c.ts[mid:]...),
		val: append([]float64(nil), c.val[mid:]...),
	}
	c.ts = c.ts[:mid]
	c.val = c.val[:mid]
	return tail, nil
}

func (c *uncompressedChunk) DeleteRange(t0, t1 int64) int {
	lo := searchTS(c.Samples(), t0)
	hi := sort.Search(len(c.ts), func(i int) bool { return c.ts[i] > t1 })
	n := hi - lo
	if n <= 0 {
		return 0
	}
	c.ts = append(c.ts[:lo], c.ts[hi:]...)
	c.val = append(c.val[:lo], c.val[hi:]...)
	return n
}

func (c *uncompressedChunk) Samples() []Sample {
	out := make([]Sample, len(c.ts))
	for i := range c.ts {
		out[i] = Sample{TS: c.ts[i], Val: c.val[i]}
	}
	return out
}

func (c *uncompressedChunk) Iterator(reverse bool) Iterator {
	if reverse {
		return &uncompressedIter{c: c, i: len(c.ts), reverse: true}
	}
	return &uncompressedIter{c: c, i: -1, reverse: false}
}

func (c *uncompressedChunk) Bytes() []byte {
	buf := make([]byte, 0, len(c.ts)*uncompressedSampleBytes)
	var tmp [8]byte
	for i := range c.ts {
		binary.LittleEndian.PutUint64(tmp[:], uint64(c.ts[i]))
		buf = append(buf, tmp[:]...)
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(c.val[i]))
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func (c *uncompressedChunk) Clone() Chunk {
	return &uncompressedChunk{
		ts:  append([]int64(nil), c.ts...),
		val: append([]float64(nil), c.val...),
	}
}

type uncompressedIter struct {
	c       *uncompressedChunk
	i       int
	reverse bool
}

func (it *uncompressedIter) Next() bool {
	if it.reverse {
		it.i--
		return it.i >= 0
	}
	it.i++
	return it.i < len(it.c.ts)
}

func (it *uncompressedIter) At() (int64, float64) {
	return it.c.ts[it.i], it.c.val[it.i]
}
