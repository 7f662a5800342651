package command

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/ledgerwatch/tscore/query"
)

// QueryIndex implements QUERYINDEX selector... (§4.7): sorted keys
// matching the selector.
func (d *Database) QueryIndex(selectorExpr string) ([]string, error) {
	ids, err := d.resolveSelector(selectorExpr)
	if err != nil {
		return nil, err
	}
	keys := d.keysOf(ids)
	sort.Strings(keys)
	return keys, nil
}

// Card implements CARD [FILTER selector] (§4.7): cardinality of the
// matching set. A bare CARD with no FILTER is legal everywhere here; the
// spec's cluster-mode-only restriction on it is not something this
// single-process engine enforces.
func (d *Database) Card(selectorExpr string) (uint64, error) {
	ids, err := d.optionalSelector(selectorExpr)
	if err != nil {
		return 0, err
	}
	if ids == nil {
		ids = d.index.AllIDs()
	}
	return ids.GetCardinality(), nil
}

// LabelNames implements LABELNAMES [FILTER selector] (§4.7).
func (d *Database) LabelNames(selectorExpr string) ([]string, error) {
	ids, err := d.optionalSelector(selectorExpr)
	if err != nil {
		return nil, err
	}
	return query.LabelNames(d.index, ids), nil
}

// LabelValues implements LABELVALUES name [FILTER selector] (§4.7).
func (d *Database) LabelValues(name, selectorExpr string) ([]string, error) {
	ids, err := d.optionalSelector(selectorExpr)
	if err != nil {
		return nil, err
	}
	return query.LabelValues(d.index, ids, name), nil
}

// optionalSelector evaluates selectorExpr, or returns nil (meaning "all
// series") when no selector was supplied.
func (d *Database) optionalSelector(selectorExpr string) (*roaring.Bitmap, error) {
	if selectorExpr == "" {
		return nil, nil
	}
	return d.resolveSelector(selectorExpr)
}

// LabelStats implements LABELSTATS [FOCUS label] [TOPK n] [FILTER
// selector] (§4.7): top-K vectors of series-by-metric, series-by-label,
// series-by-pair, and (with a focus label) series-by-focus-value.
func (d *Database) LabelStats(selectorExpr, focusLabel string, topK int) (byMetric, byLabel, byPair, byFocus []query.StatVector, err error) {
	ids, err := d.optionalSelector(selectorExpr)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if ids == nil {
		ids = d.index.AllIDs()
	}
	byMetric, byLabel, byPair, byFocus = query.LabelStats(d.index, ids, focusLabel, topK)
	return byMetric, byLabel, byPair, byFocus, nil
}

// Stats implements STATS (§4.7): index-wide counters.
type Stats struct {
	SeriesCount    int
	LabelNameCount int
	MetricCount    int
	TotalSamples   int
}

func (d *Database) Stats() Stats {
	st := Stats{SeriesCount: len(d.series)}
	metrics := map[string]struct{}{}
	for _, s := range d.series {
		st.TotalSamples += s.Store.TotalSamples()
		if name, ok := s.MetricName(); ok {
			metrics[name] = struct{}{}
		}
	}
	st.MetricCount = len(metrics)
	st.LabelNameCount = len(d.index.LabelNames())
	return st
}
