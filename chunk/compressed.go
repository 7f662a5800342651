package chunk

import (
	"github.com/prometheus/tsdb/chunkenc"
)

// compressedChunk wraps prometheus/tsdb/chunkenc.XORChunk: delta-of-delta
// encoded timestamps, XOR-encoded values, exactly the Gorilla layout spec
// §3 specifies for the compressed encoding. tscore adds the chunk_size
// budget, upsert-by-decode-reencode, and split-on-overflow semantics the
// bare chunkenc.Chunk does not have.
type compressedChunk struct {
	raw      chunkenc.Chunk
	firstTS  int64
	lastTS   int64
	count    int
	hasFirst bool
}

func newCompressed() *compressedChunk {
	return &compressedChunk{raw: chunkenc.NewXORChunk()}
}

// The firstTS, lastTS and count fields are not recoverable from the
// raw XOR-encoded payload without a full decode, so the caller (persist,
// which already wrote them alongside the payload per §6.5) supplies
// them directly rather than paying for a decode pass on every load.
func compressedFromBytes(data []byte, firstTS, lastTS int64, count int) (*compressedChunk, error) {
	raw, err := chunkenc.FromData(chunkenc.EncXOR, data)
	if err != nil {
		return nil, err
	}
	return &compressedChunk{
		raw:      raw,
		firstTS:  firstTS,
		lastTS:   lastTS,
		count:    count,
		hasFirst: count > 0,
	}, nil
}

func (c *compressedChunk) Encoding() Encoding { return Compressed }

func (c *compressedChunk) IsEmpty() bool { return c.count == 0 }

func (c *compressedChunk) FirstTS() int64 { return c.firstTS }
func (c *compressedChunk) LastTS() int64  { return c.lastTS }
func (c *compressedChunk) Count() int     { return c.count }

func (c *compressedChunk) SizeBytes() int { return len(c.raw.Bytes()) }

func (c *compressedChunk) Append(ts int64, v float64, budgetBytes int) (bool, error) {
	if !c.IsEmpty() && c.SizeBytes() >= budgetBytes {
		return false, nil
	}
	app, err := c.raw.Appender()
	if err != nil {
		return false, err
	}
	app.Append(ts, v)
	if !c.hasFirst {
		c.firstTS = ts
		c.hasFirst = true
	}
	c.lastTS = ts
	c.count++
	return true, nil
}

func (c *compressedChunk) decode() []Sample {
	out := make([]Sample, 0, c.count)
	it := c.raw.Iterator(nil)
	for it.Next() {
		ts, v := it.At()
		out = append(out, Sample{TS: ts, Val: v})
	}
	return out
}

func (c *compressedChunk) rebuild(samples []Sample) {
	nc := chunkenc.NewXORChunk()
	app, _ := nc.Appender()
	for _, s := range samples {
		app.Append(s.TS, s.Val)
	}
	c.raw = nc
	c.count = len(samples)
	if len(samples) > 0 {
		c.firstTS = samples[0].TS
		c.lastTS = samples[len(samples)-1].TS
		c.hasFirst = true
	} else {
		c.hasFirst = false
		c.firstTS, c.lastTS = 0, 0
	}
}

func (c *compressedChunk) Upsert(ts int64, v float64) (bool, error) {
	samples := c.decode()
	i := searchTS(samples, ts)
	if i >= len(samples) || samples[i].TS != ts {
		return false, nil
	}
	samples[i].Val = v
	c.rebuild(samples)
	return true, nil
}

func (c *compressedChunk) InsertAt(ts int64, v float64, budgetBytes int) (Chunk, error) {
	samples := c.decode()
	i := searchTS(samples, ts)
	samples = append(samples, Sample{})
	copy(samples[i+1:], samples[i:])
	samples[i] = Sample{TS: ts, Val: v}
	c.rebuild(samples)

	if c.SizeBytes() <= budgetBytes || len(samples) < 2 {
		return nil, nil
	}
	mid := len(samples) / 2
	tail := newCompressed()
	tail.rebuild(append([]Sample(nil), samples[mid:]...))
	c.rebuild(append([]Sample(nil), samples[:mid]...))
	return tail, nil
}

func (c *compressedChunk) DeleteRange(t0, t1 int64) int {
	samples := c.decode()
	lo := searchTS(samples, t0)
	hi := searchTS(samples, t1+1)
	n := hi - lo
	if n <= 0 {
		return 0
	}
	remaining := append(append([]Sample(nil), samples[:lo]...), samples[hi:]...)
	c.rebuild(remaining)
	return n
}

func (c *compressedChunk) Samples() []Sample { return c.decode() }

func (c *compressedChunk) Iterator(reverse bool) Iterator {
	samples := c.decode()
	if reverse {
		return &compressedIter{samples: samples, i: len(samples), reverse: true}
	}
	return &compressedIter{samples: samples, i: -1}
}

func (c *compressedChunk) Bytes() []byte { return c.raw.Bytes() }

func (c *compressedChunk) Clone() Chunk {
	nc := &compressedChunk{firstTS: c.firstTS, lastTS: c.lastTS, count: c.count, hasFirst: c.hasFirst}
	nc.rebuild(c.decode())
	return nc
}

type compressedIter struct {
	samples []Sample
	i       int
	reverse bool
}

func (it *compressedIter) Next() bool {
	if it.reverse {
		it.i--
		return it.i >= 0
	}
	it.i++
	return it.i < len(it.samples)
}

func (it *compressedIter) At() (int64, float64) {
	s := it.samples[it.i]
	return s.TS, s.Val
}
