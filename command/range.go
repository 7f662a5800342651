package command

import (
	"sort"

	"github.com/ledgerwatch/tscore/aggregation"
	tserr "github.com/ledgerwatch/tscore/errors"
	"github.com/ledgerwatch/tscore/rangeiter"
	"github.com/ledgerwatch/tscore/series"
)

// RangeOptions mirrors RANGE/REVRANGE's option clause (§4.4, §4.7).
// The bounds are not part of it: `-`/`+` arrive as separate isNegInf/
// isPosInf flags, which resolveBounds turns into the series' first/last
// timestamps.
type RangeOptions struct {
	FilterByTS   []int64
	HasValueFilt bool
	ValueMin     float64
	ValueMax     float64
	Count        int
	Align        *rangeiter.AlignMode
	AlignValue   int64
	Aggregation  *rangeiter.AggregationSpec
	Latest       bool
}

// resolveBounds turns the `-`/`+` series-extreme sentinels into concrete
// timestamps against s's current data.
func resolveBounds(s *series.Series, t0, t1 int64, isNegInf, isPosInf bool) (int64, int64) {
	if isNegInf {
		t0 = s.Store.FirstTS()
	}
	if isPosInf {
		t1 = s.Store.LastTS()
	}
	return t0, t1
}

func (d *Database) openBucketFor(s *series.Series) rangeiter.OpenBucket {
	if s.SourceKey == "" {
		return rangeiter.OpenBucket{}
	}
	src, ok := d.series[s.SourceKey]
	if !ok {
		return rangeiter.OpenBucket{}
	}
	rl, ok := src.RuleTo(s.Key)
	if !ok || !rl.State.HasOpen {
		return rangeiter.OpenBucket{}
	}
	return rangeiter.OpenBucket{
		HasOpen:     true,
		BucketStart: rl.State.BucketStart,
		Value:       rl.State.Value(rl.Rule.BucketMs),
	}
}

func (d *Database) rangeOne(key string, t0, t1 int64, isNegInf, isPosInf, reverse bool, opts RangeOptions) ([]rangeiter.Point, error) {
	s, err := d.lookup(key)
	if err != nil {
		return nil, err
	}
	t0, t1 = resolveBounds(s, t0, t1, isNegInf, isPosInf)
	samples := s.Store.RangeInclusive(t0, t1)

	riOpts := rangeiter.Options{
		T0: t0, T1: t1, Reverse: reverse,
		FilterByTS: opts.FilterByTS, HasValueFilt: opts.HasValueFilt,
		ValueMin: opts.ValueMin, ValueMax: opts.ValueMax,
		Count: opts.Count, Aggregation: opts.Aggregation,
		Latest: opts.Latest,
	}
	if opts.Latest {
		riOpts.Open = d.openBucketFor(s)
	}
	if opts.Aggregation != nil {
		spec := *opts.Aggregation
		spec.Align = rangeiter.AlignStart
		if opts.Align != nil {
			spec.Align = *opts.Align
		}
		spec.AlignValue = opts.AlignValue
		riOpts.Aggregation = &spec
	}
	return rangeiter.Run(samples, riOpts)
}

// Range implements RANGE key t0 t1 [opts] (§4.7).
func (d *Database) Range(key string, t0, t1 int64, isNegInf, isPosInf bool, opts RangeOptions) ([]rangeiter.Point, error) {
	return d.rangeOne(key, t0, t1, isNegInf, isPosInf, false, opts)
}

// RevRange implements REVRANGE key t0 t1 [opts].
func (d *Database) RevRange(key string, t0, t1 int64, isNegInf, isPosInf bool, opts RangeOptions) ([]rangeiter.Point, error) {
	return d.rangeOne(key, t0, t1, isNegInf, isPosInf, true, opts)
}

// QueryRange implements QUERY_RANGE key tstart tend STEP d — sugar for
// RANGE with aggregator=last, bucket=d (§4.7).
func (d *Database) QueryRange(key string, t0, t1, stepMs int64) ([]rangeiter.Point, error) {
	return d.Range(key, t0, t1, false, false, RangeOptions{
		Aggregation: &rangeiter.AggregationSpec{Aggregator: "last", BucketMs: stepMs},
	})
}

// SeriesPoints is one series' RANGE result within an MRANGE/MREVRANGE
// response, with its resolved labels.
type SeriesPoints struct {
	Key    string
	Labels map[string]string
	Points []rangeiter.Point
}

// MRangeOptions is MRANGE/MREVRANGE's option set layered over per-series
// RANGE options (§4.7).
type MRangeOptions struct {
	RangeOptions
	WithLabels     bool
	SelectedLabels []string
	GroupByLabel   string
	GroupByReduce  string
}

func (d *Database) mrange(selectorExpr string, t0, t1 int64, isNegInf, isPosInf, reverse bool, opts MRangeOptions) ([]SeriesPoints, error) {
	ids, err := d.resolveSelector(selectorExpr)
	if err != nil {
		return nil, err
	}
	keys := d.keysOf(ids)
	sort.Strings(keys)

	out := make([]SeriesPoints, 0, len(keys))
	for _, key := range keys {
		s := d.series[key]
		points, err := d.rangeOne(key, t0, t1, isNegInf, isPosInf, reverse, opts.RangeOptions)
		if err != nil {
			return nil, err
		}
		sp := SeriesPoints{Key: key, Points: points}
		if opts.WithLabels {
			sp.Labels = labelsToMap(s.Labels)
		} else if len(opts.SelectedLabels) > 0 {
			all := labelsToMap(s.Labels)
			sp.Labels = make(map[string]string, len(opts.SelectedLabels))
			for _, name := range opts.SelectedLabels {
				if v, ok := all[name]; ok {
					sp.Labels[name] = v
				}
			}
		}
		out = append(out, sp)
	}

	if opts.GroupByLabel != "" {
		return groupBy(out, opts.GroupByLabel, opts.GroupByReduce)
	}
	return out, nil
}

// MRange implements MRANGE t0 t1 [opts] FILTER selector [GROUPBY ...].
func (d *Database) MRange(selectorExpr string, t0, t1 int64, isNegInf, isPosInf bool, opts MRangeOptions) ([]SeriesPoints, error) {
	return d.mrange(selectorExpr, t0, t1, isNegInf, isPosInf, false, opts)
}

// MRevRange implements MREVRANGE t0 t1 [opts] FILTER selector [GROUPBY ...].
func (d *Database) MRevRange(selectorExpr string, t0, t1 int64, isNegInf, isPosInf bool, opts MRangeOptions) ([]SeriesPoints, error) {
	return d.mrange(selectorExpr, t0, t1, isNegInf, isPosInf, true, opts)
}

// groupBy reduces series within each timestamp bucket using a binary
// reducer from the same aggregator table, treating cross-series values
// as the stream (§4.7). The result's label set carries `__reducer__`.
func groupBy(series []SeriesPoints, label, reducer string) ([]SeriesPoints, error) {
	groups := map[string][]SeriesPoints{}
	var order []string
	for _, sp := range series {
		key := sp.Labels[label]
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], sp)
	}
	sort.Strings(order)

	kernel, err := aggregation.New(reducer, nil)
	if err != nil {
		return nil, tserr.Arg("GROUPBY", "unknown reducer %q", reducer)
	}

	out := make([]SeriesPoints, 0, len(order))
	for _, groupValue := range order {
		members := groups[groupValue]
		byTS := map[int64][]float64{}
		var tsOrder []int64
		for _, m := range members {
			for _, p := range m.Points {
				if _, ok := byTS[p.TS]; !ok {
					tsOrder = append(tsOrder, p.TS)
				}
				byTS[p.TS] = append(byTS[p.TS], p.Val)
			}
		}
		sort.Slice(tsOrder, func(i, j int) bool { return tsOrder[i] < tsOrder[j] })

		points := make([]rangeiter.Point, 0, len(tsOrder))
		for _, ts := range tsOrder {
			state := kernel.Init()
			for _, v := range byTS[ts] {
				state = kernel.Accept(state, ts, v)
			}
			points = append(points, rangeiter.Point{TS: ts, Val: kernel.Reduce(state, aggregation.ReduceContext{})})
		}
		out = append(out, SeriesPoints{
			Key:    label + "=" + groupValue,
			Labels: map[string]string{label: groupValue, "__reducer__": reducer},
			Points: points,
		})
	}
	return out, nil
}
