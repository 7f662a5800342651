// Package config holds the typed, host-supplied configuration for tscore.
// Per spec §1, loading configuration from a file or flag set is the
// host's job; tscore only accepts the parsed struct.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"

	tserr "github.com/ledgerwatch/tscore/errors"
)

// DuplicatePolicy mirrors the per-series duplicate_policy attribute (§3).
type DuplicatePolicy int

const (
	DuplicateBlock DuplicatePolicy = iota
	DuplicateFirst
	DuplicateLast
	DuplicateMin
	DuplicateMax
	DuplicateSum
)

func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(s) {
	case "block":
		return DuplicateBlock, nil
	case "first":
		return DuplicateFirst, nil
	case "last":
		return DuplicateLast, nil
	case "min":
		return DuplicateMin, nil
	case "max":
		return DuplicateMax, nil
	case "sum":
		return DuplicateSum, nil
	default:
		return 0, tserr.Arg("DUPLICATE_POLICY", "unknown policy %q", s)
	}
}

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateBlock:
		return "block"
	case DuplicateFirst:
		return "first"
	case DuplicateLast:
		return "last"
	case DuplicateMin:
		return "min"
	case DuplicateMax:
		return "max"
	case DuplicateSum:
		return "sum"
	default:
		return "unknown"
	}
}

// Encoding mirrors the per-series encoding attribute (§3).
type Encoding int

const (
	EncodingCompressed Encoding = iota
	EncodingUncompressed
)

func (e Encoding) String() string {
	if e == EncodingUncompressed {
		return "uncompressed"
	}
	return "compressed"
}

// Rounding mirrors the per-series rounding attribute (§3).
type RoundingKind int

const (
	RoundNone RoundingKind = iota
	RoundDecimalDigits
	RoundSignificantDigits
)

type Rounding struct {
	Kind   RoundingKind
	Digits int // 0..17 for decimal, 1..17 for significant
}

// Global, process-wide defaults recognized by the host per spec §6.2.
type Global struct {
	ChunkSizeBytes    uint64
	DuplicatePolicy   DuplicatePolicy
	RetentionMs       int64
	CompactionPolicy  []CompactionPolicyRule
}

// CompactionPolicyRule is one semicolon-separated entry of
// ts-compaction-policy: "agg:bucket:retention[|regex]", applied on
// implicit series creation.
type CompactionPolicyRule struct {
	Aggregator  string
	BucketMs    int64
	RetentionMs int64
	Regex       string // optional metric-name filter, empty = match all
}

const DefaultChunkSizeBytes = 4096
const MinChunkSizeBytes = 48

func DefaultGlobal() Global {
	return Global{
		ChunkSizeBytes:  DefaultChunkSizeBytes,
		DuplicatePolicy: DuplicateBlock,
		RetentionMs:     0,
	}
}

// SeriesOptions is the per-CREATE/ALTER option bag (§4.7).
type SeriesOptions struct {
	RetentionMs       int64
	Encoding          Encoding
	ChunkSizeBytes    uint64
	DuplicatePolicy   DuplicatePolicy
	Rounding          Rounding
	IgnoreMaxTimeDiff int64
	IgnoreMaxValDiff  float64
	Labels            map[string]string
}

func DefaultSeriesOptions(g Global) SeriesOptions {
	return SeriesOptions{
		RetentionMs:     g.RetentionMs,
		Encoding:        EncodingCompressed,
		ChunkSizeBytes:  g.ChunkSizeBytes,
		DuplicatePolicy: g.DuplicatePolicy,
		Rounding:        Rounding{Kind: RoundNone},
	}
}

// ParseByteSize parses a byte-size literal using the same suffix grammar
// the teacher's bitmapdb shard limit uses (datasize.ByteSize), e.g.
// "4096", "4KB", "1MB".
func ParseByteSize(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	var bs datasize.ByteSize
	if err := bs.UnmarshalText([]byte(s)); err != nil {
		return 0, tserr.Arg("CHUNK_SIZE", "invalid byte size %q: %v", s, err)
	}
	return bs.Bytes(), nil
}

// ParseDurationMs parses a millisecond-or-suffixed duration literal per
// spec §6.3: a bare integer is milliseconds; Ns/Nm/Nh/Nd/NM are seconds,
// minutes, hours, days, months (30 days). No example repo in the pack
// implements exactly this suffix grammar (Prometheus's model.Duration is
// close but lacks the calendar "M" for months and isn't a pack
// dependency), so this is a small hand-written parser rather than a
// borrowed library.
func ParseDurationMs(s string) (int64, error) {
	if s == "" {
		return 0, tserr.Arg("duration", "empty duration")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	unit := s[len(s)-1]
	numPart := s[:len(s)-1]
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, tserr.Arg("duration", "invalid duration %q", s)
	}
	switch unit {
	case 's':
		return n * int64(time.Second/time.Millisecond), nil
	case 'm':
		return n * int64(time.Minute/time.Millisecond), nil
	case 'h':
		return n * int64(time.Hour/time.Millisecond), nil
	case 'd':
		return n * 24 * int64(time.Hour/time.Millisecond), nil
	case 'M':
		return n * 30 * 24 * int64(time.Hour/time.Millisecond), nil
	default:
		return 0, tserr.Arg("duration", "unknown duration suffix in %q", s)
	}
}
