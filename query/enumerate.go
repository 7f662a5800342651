package query

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/ledgerwatch/tscore/labelindex"
)

// LabelNames returns the sorted set of label names across ids, or every
// indexed name when ids is nil (no selector given).
func LabelNames(idx *labelindex.Index, ids *roaring.Bitmap) []string {
	if ids == nil {
		return idx.LabelNames()
	}
	set := map[string]struct{}{}
	it := ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		for name := range idx.LabelsOf(labelindex.SeriesID(id)) {
			set[name] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// LabelValues returns the sorted set of values of name across ids, or
// every value recorded for name when ids is nil.
func LabelValues(idx *labelindex.Index, ids *roaring.Bitmap, name string) []string {
	if ids == nil {
		return idx.LabelValues(name)
	}
	set := map[string]struct{}{}
	it := ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		if v, ok := idx.LabelsOf(labelindex.SeriesID(id))[name]; ok {
			set[v] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// StatVector is one top-K LABELSTATS vector entry: a key (metric name,
// label name, "name=value" pair, or focus-label value) and its count.
type StatVector struct {
	Key   string
	Count int
}

// LabelStats computes the four top-K vectors of §4.5: series-count by
// metric name, label-value count by label name, series count by label
// pair, and (if focusLabel is non-empty) series count by focus-label
// value. topK is clamped to [1,1000], defaulting to 10.
func LabelStats(idx *labelindex.Index, ids *roaring.Bitmap, focusLabel string, topK int) (byMetric, byLabelValueCount, byPair, byFocusValue []StatVector) {
	if topK <= 0 {
		topK = 10
	}
	if topK > 1000 {
		topK = 1000
	}

	metricCount := map[string]int{}
	labelValueSets := map[string]map[string]struct{}{}
	pairCount := map[string]int{}
	focusCount := map[string]int{}

	it := ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		labels := idx.LabelsOf(labelindex.SeriesID(id))
		for name, value := range labels {
			if name == "__name__" {
				metricCount[value]++
			}
			vs, ok := labelValueSets[name]
			if !ok {
				vs = map[string]struct{}{}
				labelValueSets[name] = vs
			}
			vs[value] = struct{}{}
			pairCount[name+"="+value]++
			if focusLabel != "" && name == focusLabel {
				focusCount[value]++
			}
		}
	}

	labelValueCount := map[string]int{}
	for name, vs := range labelValueSets {
		labelValueCount[name] = len(vs)
	}

	byMetric = topVectors(metricCount, topK)
	byLabelValueCount = topVectors(labelValueCount, topK)
	byPair = topVectors(pairCount, topK)
	if focusLabel != "" {
		byFocusValue = topVectors(focusCount, topK)
	}
	return
}

func topVectors(counts map[string]int, topK int) []StatVector {
	out := make([]StatVector, 0, len(counts))
	for k, c := range counts {
		out = append(out, StatVector{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}
