package command

import (
	"sort"

	"github.com/ledgerwatch/tscore/query"
)

// FanoutReducer declares how a shard-aggregating host should combine
// partial results gathered from several logical databases (§9's
// "declare their reducer as data" design note). Merge is the only
// operation tscore itself performs; scatter/gather transport is a host
// concern (host.FanoutScatter).
type FanoutReducer int

const (
	// FanoutUnion merges key sets (QUERYINDEX, LABELNAMES, LABELVALUES).
	FanoutUnion FanoutReducer = iota
	// FanoutSumByKey sums numeric partials keyed by series key (CARD,
	// per-metric counts within LABELSTATS).
	FanoutSumByKey
	// FanoutTopKMerge merges several already-sorted top-K vectors into
	// one top-K (LABELSTATS).
	FanoutTopKMerge
)

// Merge combines partial results gathered from shards under r's
// reduction rule. Each partial is a flat key->value map; for FanoutUnion
// the values are ignored (presence only).
func (r FanoutReducer) Merge(partials ...map[string]float64) map[string]float64 {
	out := map[string]float64{}
	switch r {
	case FanoutUnion:
		for _, p := range partials {
			for k := range p {
				out[k] = 1
			}
		}
	case FanoutSumByKey:
		for _, p := range partials {
			for k, v := range p {
				out[k] += v
			}
		}
	case FanoutTopKMerge:
		for _, p := range partials {
			for k, v := range p {
				if cur, ok := out[k]; !ok || v > cur {
					out[k] = v
				}
			}
		}
	}
	return out
}

// TopK truncates a merged FanoutTopKMerge result to its K highest
// entries, matching LABELSTATS' own top-K ordering (descending count,
// ascending key on ties).
func (r FanoutReducer) TopK(merged map[string]float64, k int) []query.StatVector {
	out := make([]query.StatVector, 0, len(merged))
	for key, count := range merged {
		out = append(out, query.StatVector{Key: key, Count: int(count)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
