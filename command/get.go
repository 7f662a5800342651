package command

import "sort"

// Sample is the (timestamp,value) pair returned by GET/MGET.
type Sample struct {
	TS  int64
	Val float64
}

// Get implements GET key (§4.7): the last sample, or ok=false if empty.
func (d *Database) Get(key string) (Sample, bool, error) {
	s, err := d.lookup(key)
	if err != nil {
		return Sample{}, false, err
	}
	if s.Store.TotalSamples() == 0 {
		return Sample{}, false, nil
	}
	return Sample{TS: s.Store.LastTS(), Val: s.Store.LastValue()}, true, nil
}

// LabeledSample pairs a GET/MGET result with its key and, optionally,
// its labels (WITHLABELS / SELECTED_LABELS).
type LabeledSample struct {
	Key    string
	Labels map[string]string
	Sample Sample
	Has    bool
}

// MGetOptions selects which labels MGET attaches to each result.
type MGetOptions struct {
	WithLabels     bool
	SelectedLabels []string
	Latest         bool
}

// MGet implements MGET [LATEST] [WITHLABELS|SELECTED_LABELS] FILTER
// selector (§4.7): the latest sample per matching series, sorted by key.
func (d *Database) MGet(selectorExpr string, opts MGetOptions) ([]LabeledSample, error) {
	ids, err := d.resolveSelector(selectorExpr)
	if err != nil {
		return nil, err
	}
	keys := d.keysOf(ids)
	sort.Strings(keys)

	out := make([]LabeledSample, 0, len(keys))
	for _, key := range keys {
		s, ok := d.series[key]
		if !ok {
			continue
		}
		item := LabeledSample{Key: key}
		if opts.WithLabels {
			item.Labels = labelsToMap(s.Labels)
		} else if len(opts.SelectedLabels) > 0 {
			all := labelsToMap(s.Labels)
			item.Labels = make(map[string]string, len(opts.SelectedLabels))
			for _, name := range opts.SelectedLabels {
				if v, ok := all[name]; ok {
					item.Labels[name] = v
				}
			}
		}
		// LATEST is defined for RANGE/REVRANGE's bucketed output (§4.4);
		// MGET's result is already the raw last sample, so opts.Latest has
		// no further effect here.
		if s.Store.TotalSamples() > 0 {
			item.Sample = Sample{TS: s.Store.LastTS(), Val: s.Store.LastValue()}
			item.Has = true
		}
		out = append(out, item)
	}
	return out, nil
}
