// Package persist implements Component J: versioned snapshot save/load
// and AOF-rewrite for a command.Database (§4.10, §6.1's save/load and
// AOF-rewrite host hooks).
//
// The wire format is a flat little-endian binary stream, matching the
// sample encoding tscore's own chunk package already uses
// (chunk/uncompressed.go), rather than a general-purpose codec: a
// snapshot is an internal engine artifact, never a cross-service wire
// format, so there is no ecosystem serialization library to reach for
// here.
package persist

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/ledgerwatch/tscore/aggregation"
	"github.com/ledgerwatch/tscore/chunk"
	"github.com/ledgerwatch/tscore/compaction"
	"github.com/ledgerwatch/tscore/config"
	tserr "github.com/ledgerwatch/tscore/errors"
)

// FormatVersion is bumped whenever the snapshot layout changes; Load
// dispatches on it so Migrate can upgrade older snapshots in place.
const FormatVersion uint32 = 1

// ChunkRecord is one chunk's persisted form (§6.5's chunks_block entry:
// "u32 len | u64 first_ts | u64 last_ts | u32 sample_count | bytes
// payload"). Payload is the chunk's own Bytes(), carried verbatim so
// Load can reconstruct the exact chunk rather than replaying samples
// through Append, which would not reproduce a chunk boundary created by
// a mid-run out-of-order insert.
type ChunkRecord struct {
	FirstTS int64
	LastTS  int64
	Count   int
	Payload []byte
}

// SeriesRecord is one series' persisted form: its identity, config,
// outgoing rules, and chunk list. Open compaction-bucket state is never
// persisted (§4.10): a loaded rule starts with no open bucket.
type SeriesRecord struct {
	Key       string
	Labels    map[string]string
	Options   config.SeriesOptions
	SourceKey string
	Rules     []compaction.Rule
	Chunks    []ChunkRecord
}

// Samples decodes every chunk in record order, concatenating their
// sample runs back into one ascending list. Used where the exact chunk
// boundaries don't matter and a flat run is more convenient (e.g.
// persist.Rewrite's ADDBULK replay).
func (rec SeriesRecord) Samples() ([]chunk.Sample, error) {
	enc := chunk.Compressed
	if rec.Options.Encoding == config.EncodingUncompressed {
		enc = chunk.Uncompressed
	}
	var out []chunk.Sample
	for _, cr := range rec.Chunks {
		c, err := chunk.FromBytes(enc, cr.Payload, cr.FirstTS, cr.LastTS, cr.Count)
		if err != nil {
			return nil, err
		}
		out = append(out, c.Samples()...)
	}
	return out, nil
}

// Snapshot is the full save/load payload for one logical database.
type Snapshot struct {
	Series []SeriesRecord
}

func writeString(w *bufio.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeU32(w io.Writer, v uint32) error { return binary.Write(w, binary.LittleEndian, v) }
func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeU64(w io.Writer, v uint64) error { return binary.Write(w, binary.LittleEndian, v) }
func writeI64(w io.Writer, v int64) error  { return binary.Write(w, binary.LittleEndian, v) }
func writeF64(w io.Writer, v float64) error {
	return binary.Write(w, binary.LittleEndian, math.Float64bits(v))
}

func readU64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readI64(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readF64(r io.Reader) (float64, error) {
	var bits uint64
	if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// Save writes snap to w in the versioned binary layout (§6.5): header,
// then one record per series with its labels, config, rules, and
// samples.
func Save(w io.Writer, snap Snapshot) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, FormatVersion); err != nil {
		return tserr.Wrap(tserr.Unsupported, err)
	}
	if err := writeU64(bw, uint64(len(snap.Series))); err != nil {
		return tserr.Wrap(tserr.Unsupported, err)
	}
	for _, rec := range snap.Series {
		if err := saveSeries(bw, rec); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return tserr.Wrap(tserr.Unsupported, err)
	}
	return nil
}

func saveSeries(w *bufio.Writer, rec SeriesRecord) error {
	if err := writeString(w, rec.Key); err != nil {
		return err
	}
	if err := writeU64(w, uint64(len(rec.Labels))); err != nil {
		return err
	}
	for name, value := range rec.Labels {
		if err := writeString(w, name); err != nil {
			return err
		}
		if err := writeString(w, value); err != nil {
			return err
		}
	}
	if err := writeOptions(w, rec.Options); err != nil {
		return err
	}
	if err := writeString(w, rec.SourceKey); err != nil {
		return err
	}
	if err := writeU64(w, uint64(len(rec.Rules))); err != nil {
		return err
	}
	for _, rule := range rec.Rules {
		if err := writeRule(w, rule); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(len(rec.Chunks))); err != nil {
		return err
	}
	for _, cr := range rec.Chunks {
		if err := writeU32(w, uint32(len(cr.Payload))); err != nil {
			return err
		}
		if err := writeI64(w, cr.FirstTS); err != nil {
			return err
		}
		if err := writeI64(w, cr.LastTS); err != nil {
			return err
		}
		if err := writeU32(w, uint32(cr.Count)); err != nil {
			return err
		}
		if _, err := w.Write(cr.Payload); err != nil {
			return err
		}
	}
	return nil
}

func writeOptions(w *bufio.Writer, o config.SeriesOptions) error {
	if err := writeI64(w, o.RetentionMs); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(o.Encoding)); err != nil {
		return err
	}
	if err := writeU64(w, o.ChunkSizeBytes); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(o.DuplicatePolicy)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(o.Rounding.Kind)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(o.Rounding.Digits)); err != nil {
		return err
	}
	if err := writeI64(w, o.IgnoreMaxTimeDiff); err != nil {
		return err
	}
	return writeF64(w, o.IgnoreMaxValDiff)
}

func writeRule(w *bufio.Writer, r compaction.Rule) error {
	if err := writeString(w, r.DestKey); err != nil {
		return err
	}
	if err := writeString(w, r.Aggregator); err != nil {
		return err
	}
	if err := writeI64(w, r.BucketMs); err != nil {
		return err
	}
	if err := writeI64(w, r.AlignMs); err != nil {
		return err
	}
	hasCond := r.Condition != nil
	if err := binary.Write(w, binary.LittleEndian, hasCond); err != nil {
		return err
	}
	if hasCond {
		if err := binary.Write(w, binary.LittleEndian, uint8(r.Condition.Op)); err != nil {
			return err
		}
		if err := writeF64(w, r.Condition.Ref); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a snapshot previously written by Save. Snapshots written
// by an older FormatVersion are rejected; callers needing upgrade
// support should run Migrate first.
func Load(r io.Reader) (Snapshot, error) {
	br := bufio.NewReader(r)
	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return Snapshot{}, tserr.Wrap(tserr.Unsupported, err)
	}
	if version != FormatVersion {
		return Snapshot{}, tserr.New(tserr.Unsupported, "snapshot version %d, want %d (run Migrate)", version, FormatVersion)
	}
	count, err := readU64(br)
	if err != nil {
		return Snapshot{}, tserr.Wrap(tserr.Unsupported, err)
	}
	snap := Snapshot{Series: make([]SeriesRecord, 0, count)}
	for i := uint64(0); i < count; i++ {
		rec, err := loadSeries(br)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Series = append(snap.Series, rec)
	}
	return snap, nil
}

func loadSeries(r io.Reader) (SeriesRecord, error) {
	var rec SeriesRecord
	var err error
	if rec.Key, err = readString(r); err != nil {
		return rec, tserr.Wrap(tserr.Unsupported, err)
	}
	labelCount, err := readU64(r)
	if err != nil {
		return rec, tserr.Wrap(tserr.Unsupported, err)
	}
	if labelCount > 0 {
		rec.Labels = make(map[string]string, labelCount)
	}
	for i := uint64(0); i < labelCount; i++ {
		name, err := readString(r)
		if err != nil {
			return rec, tserr.Wrap(tserr.Unsupported, err)
		}
		value, err := readString(r)
		if err != nil {
			return rec, tserr.Wrap(tserr.Unsupported, err)
		}
		rec.Labels[name] = value
	}
	if rec.Options, err = readOptions(r); err != nil {
		return rec, err
	}
	if rec.SourceKey, err = readString(r); err != nil {
		return rec, tserr.Wrap(tserr.Unsupported, err)
	}
	ruleCount, err := readU64(r)
	if err != nil {
		return rec, tserr.Wrap(tserr.Unsupported, err)
	}
	for i := uint64(0); i < ruleCount; i++ {
		rule, err := readRule(r)
		if err != nil {
			return rec, err
		}
		rec.Rules = append(rec.Rules, rule)
	}
	chunkCount, err := readU32(r)
	if err != nil {
		return rec, tserr.Wrap(tserr.Unsupported, err)
	}
	rec.Chunks = make([]ChunkRecord, 0, chunkCount)
	for i := uint32(0); i < chunkCount; i++ {
		payloadLen, err := readU32(r)
		if err != nil {
			return rec, tserr.Wrap(tserr.Unsupported, err)
		}
		firstTS, err := readI64(r)
		if err != nil {
			return rec, tserr.Wrap(tserr.Unsupported, err)
		}
		lastTS, err := readI64(r)
		if err != nil {
			return rec, tserr.Wrap(tserr.Unsupported, err)
		}
		count, err := readU32(r)
		if err != nil {
			return rec, tserr.Wrap(tserr.Unsupported, err)
		}
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return rec, tserr.Wrap(tserr.Unsupported, err)
		}
		rec.Chunks = append(rec.Chunks, ChunkRecord{
			FirstTS: firstTS,
			LastTS:  lastTS,
			Count:   int(count),
			Payload: payload,
		})
	}
	return rec, nil
}

func readOptions(r io.Reader) (config.SeriesOptions, error) {
	var o config.SeriesOptions
	var err error
	if o.RetentionMs, err = readI64(r); err != nil {
		return o, tserr.Wrap(tserr.Unsupported, err)
	}
	var enc, dup, roundKind, roundDigits uint8
	if err := binary.Read(r, binary.LittleEndian, &enc); err != nil {
		return o, tserr.Wrap(tserr.Unsupported, err)
	}
	o.Encoding = config.Encoding(enc)
	if o.ChunkSizeBytes, err = readU64(r); err != nil {
		return o, tserr.Wrap(tserr.Unsupported, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &dup); err != nil {
		return o, tserr.Wrap(tserr.Unsupported, err)
	}
	o.DuplicatePolicy = config.DuplicatePolicy(dup)
	if err := binary.Read(r, binary.LittleEndian, &roundKind); err != nil {
		return o, tserr.Wrap(tserr.Unsupported, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &roundDigits); err != nil {
		return o, tserr.Wrap(tserr.Unsupported, err)
	}
	o.Rounding = config.Rounding{Kind: config.RoundingKind(roundKind), Digits: int(roundDigits)}
	if o.IgnoreMaxTimeDiff, err = readI64(r); err != nil {
		return o, tserr.Wrap(tserr.Unsupported, err)
	}
	if o.IgnoreMaxValDiff, err = readF64(r); err != nil {
		return o, tserr.Wrap(tserr.Unsupported, err)
	}
	return o, nil
}

func readRule(r io.Reader) (compaction.Rule, error) {
	var rule compaction.Rule
	var err error
	if rule.DestKey, err = readString(r); err != nil {
		return rule, tserr.Wrap(tserr.Unsupported, err)
	}
	if rule.Aggregator, err = readString(r); err != nil {
		return rule, tserr.Wrap(tserr.Unsupported, err)
	}
	if rule.BucketMs, err = readI64(r); err != nil {
		return rule, tserr.Wrap(tserr.Unsupported, err)
	}
	if rule.AlignMs, err = readI64(r); err != nil {
		return rule, tserr.Wrap(tserr.Unsupported, err)
	}
	var hasCond bool
	if err := binary.Read(r, binary.LittleEndian, &hasCond); err != nil {
		return rule, tserr.Wrap(tserr.Unsupported, err)
	}
	if hasCond {
		var op uint8
		if err := binary.Read(r, binary.LittleEndian, &op); err != nil {
			return rule, tserr.Wrap(tserr.Unsupported, err)
		}
		ref, err := readF64(r)
		if err != nil {
			return rule, tserr.Wrap(tserr.Unsupported, err)
		}
		cond := aggregation.Condition{Op: aggregation.Comparator(op), Ref: ref}
		rule.Condition = &cond
	}
	return rule, nil
}
