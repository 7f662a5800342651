package command

import (
	"sort"

	"github.com/ledgerwatch/tscore/aggregation"
	"github.com/ledgerwatch/tscore/chunk"
	tserr "github.com/ledgerwatch/tscore/errors"
	"github.com/ledgerwatch/tscore/rangeiter"
)

// JoinMode selects JOIN's pairing strategy (§4.7).
type JoinMode int

const (
	JoinInner JoinMode = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinASOF
	JoinAnti
	JoinSemi
)

// ASOFDirection selects which side of a timestamp ASOF may match.
type ASOFDirection int

const (
	ASOFPrevious ASOFDirection = iota
	ASOFNext
	ASOFNearest
)

// JoinOptions is JOIN's full option clause.
type JoinOptions struct {
	Mode         JoinMode
	ASOFDir      ASOFDirection
	ASOFTolMs    int64
	FilterByTS   []int64
	HasValueFilt bool
	ValueMin     float64
	ValueMax     float64
	Count        int
	Reduce       string // binop name from the aggregation kernel table, e.g. "sum"
	Aggregation  *rangeiter.AggregationSpec
}

// JoinRow is one row of JOIN's pairwise scan before REDUCE/AGGREGATION.
type JoinRow struct {
	TS         int64
	ValA, ValB float64
	HasA, HasB bool
}

// Join implements JOIN a b t0 t1 (INNER|LEFT|RIGHT|FULL|ASOF ...|ANTI|
// SEMI) [opts] (§4.7): a pairwise scan over two series restricted to
// [t0,t1], reduced pairwise and optionally re-aggregated.
func (d *Database) Join(a, b string, t0, t1 int64, opts JoinOptions) ([]rangeiter.Point, error) {
	sa, err := d.lookup(a)
	if err != nil {
		return nil, err
	}
	sb, err := d.lookup(b)
	if err != nil {
		return nil, err
	}
	samplesA := sa.Store.RangeInclusive(t0, t1)
	samplesB := sb.Store.RangeInclusive(t0, t1)

	var rows []JoinRow
	switch opts.Mode {
	case JoinInner, JoinLeft, JoinRight, JoinFull, JoinAnti, JoinSemi:
		rows = equiJoin(samplesA, samplesB, opts.Mode)
	case JoinASOF:
		rows = asofJoin(samplesA, samplesB, opts.ASOFDir, opts.ASOFTolMs)
	default:
		return nil, tserr.Arg("JOIN", "unknown join mode")
	}

	points, err := reduceRows(rows, opts.Reduce)
	if err != nil {
		return nil, err
	}
	points = applyJoinFilters(points, opts)

	if opts.Aggregation != nil {
		asSamples := make([]chunk.Sample, len(points))
		for i, p := range points {
			asSamples[i] = chunk.Sample{TS: p.TS, Val: p.Val}
		}
		return rangeiter.Run(asSamples, rangeiter.Options{T0: t0, T1: t1, Aggregation: opts.Aggregation})
	}
	return points, nil
}

// equiJoin pairs same-timestamp samples from two sorted streams.
func equiJoin(a, b []chunk.Sample, mode JoinMode) []JoinRow {
	var rows []JoinRow
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i].TS < b[j].TS):
			if mode == JoinLeft || mode == JoinFull || mode == JoinAnti {
				rows = append(rows, JoinRow{TS: a[i].TS, ValA: a[i].Val, HasA: true})
			}
			i++
		case i >= len(a) || (j < len(b) && b[j].TS < a[i].TS):
			if mode == JoinRight || mode == JoinFull {
				rows = append(rows, JoinRow{TS: b[j].TS, ValB: b[j].Val, HasB: true})
			}
			j++
		default:
			if mode != JoinAnti {
				rows = append(rows, JoinRow{TS: a[i].TS, ValA: a[i].Val, ValB: b[j].Val, HasA: true, HasB: true})
			}
			if mode == JoinSemi {
				rows[len(rows)-1].HasB = false
			}
			i++
			j++
		}
	}
	return rows
}

// asofJoin matches every a-sample to the nearest b-sample in the
// requested direction within tolMs.
func asofJoin(a, b []chunk.Sample, dir ASOFDirection, tolMs int64) []JoinRow {
	rows := make([]JoinRow, 0, len(a))
	for _, pa := range a {
		idx := sort.Search(len(b), func(k int) bool { return b[k].TS >= pa.TS })
		var best *chunk.Sample
		var bestDist int64 = -1
		consider := func(k int) {
			if k < 0 || k >= len(b) {
				return
			}
			dist := b[k].TS - pa.TS
			if dist < 0 {
				dist = -dist
			}
			if dist > tolMs {
				return
			}
			switch dir {
			case ASOFPrevious:
				if b[k].TS > pa.TS {
					return
				}
			case ASOFNext:
				if b[k].TS < pa.TS {
					return
				}
			}
			if best == nil || dist < bestDist {
				c := b[k]
				best = &c
				bestDist = dist
			}
		}
		switch dir {
		case ASOFPrevious:
			consider(idx - 1)
			if idx < len(b) && b[idx].TS == pa.TS {
				consider(idx)
			}
		case ASOFNext:
			consider(idx)
		case ASOFNearest:
			consider(idx - 1)
			consider(idx)
		}
		row := JoinRow{TS: pa.TS, ValA: pa.Val, HasA: true}
		if best != nil {
			row.ValB = best.Val
			row.HasB = true
		}
		rows = append(rows, row)
	}
	return rows
}

// reduceRows combines each two-sided row's (ValA,ValB) into a single
// value via a binary aggregator kernel. A one-sided row passes its
// present side's value through; a two-sided row with no reducer passes
// ValA through.
func reduceRows(rows []JoinRow, reducer string) ([]rangeiter.Point, error) {
	var kernel aggregation.Kernel
	if reducer != "" {
		k, err := aggregation.New(reducer, nil)
		if err != nil {
			return nil, tserr.Arg("REDUCE", "unknown reducer %q", reducer)
		}
		kernel = k
	}
	points := make([]rangeiter.Point, 0, len(rows))
	for _, r := range rows {
		switch {
		case r.HasA && r.HasB && kernel != nil:
			s := kernel.Init()
			s = kernel.Accept(s, r.TS, r.ValA)
			s = kernel.Accept(s, r.TS, r.ValB)
			points = append(points, rangeiter.Point{TS: r.TS, Val: kernel.Reduce(s, aggregation.ReduceContext{})})
		case r.HasA:
			points = append(points, rangeiter.Point{TS: r.TS, Val: r.ValA})
		case r.HasB:
			points = append(points, rangeiter.Point{TS: r.TS, Val: r.ValB})
		}
	}
	return points, nil
}

func applyJoinFilters(points []rangeiter.Point, opts JoinOptions) []rangeiter.Point {
	if len(opts.FilterByTS) > 0 {
		allow := map[int64]bool{}
		for _, ts := range opts.FilterByTS {
			allow[ts] = true
		}
		out := points[:0:0]
		for _, p := range points {
			if allow[p.TS] {
				out = append(out, p)
			}
		}
		points = out
	}
	if opts.HasValueFilt {
		out := points[:0:0]
		for _, p := range points {
			if p.Val >= opts.ValueMin && p.Val <= opts.ValueMax {
				out = append(out, p)
			}
		}
		points = out
	}
	if opts.Count > 0 && len(points) > opts.Count {
		points = points[:opts.Count]
	}
	return points
}
