package command

import (
	"math"

	"github.com/ledgerwatch/tscore/chunk"
	tserr "github.com/ledgerwatch/tscore/errors"
	"github.com/ledgerwatch/tscore/series"
)

// AddOptions carries ADD/MADD's per-call option set: an override of the
// series' configured duplicate policy, plus the CREATE option set used
// only when the key does not yet exist (§4.7).
type AddOptions struct {
	OnDuplicate    *DuplicateOverride
	CreateIfAbsent CreateOptions
}

// DuplicateOverride mirrors ON_DUPLICATE, which shadows the series'
// configured duplicate_policy for one call only.
type DuplicateOverride struct{ Policy string }

const nowSentinel = "*"

// resolveTS turns the ADD-family `*` timestamp literal into the host
// clock's current value; any other literal is returned unparsed-through
// by the caller, which already converted it to an int64.
func (d *Database) resolveTS(ts int64, isNow bool) int64 {
	if isNow {
		return d.clock()
	}
	return ts
}

// Add implements ADD key ts value [opts] (§4.7). isNow indicates the
// caller passed the `*` literal for ts.
func (d *Database) Add(key string, ts int64, isNow bool, value float64, opts AddOptions) (int64, error) {
	s, ok := d.series[key]
	if !ok {
		var err error
		s, err = d.createFromOptions(key, opts.CreateIfAbsent)
		if err != nil {
			return 0, err
		}
	}

	resolvedTS := d.resolveTS(ts, isNow)
	value = series.Round(value, s.Options.Rounding)

	if s.Store.TotalSamples() > 0 {
		lastTS, lastVal := s.Store.LastTS(), s.Store.LastValue()
		if series.ShouldIgnore(true, lastTS, lastVal, resolvedTS, value, s.Options.IgnoreMaxTimeDiff, s.Options.IgnoreMaxValDiff) {
			return resolvedTS, nil
		}
	}

	if err := d.appendWithOverride(s, resolvedTS, value, opts.OnDuplicate); err != nil {
		return 0, err
	}

	metricSamplesIngested.Inc(1)
	d.notify(key, "ts.add")
	if err := d.driveOutgoingRules(s, resolvedTS, value); err != nil {
		return 0, err
	}
	return resolvedTS, nil
}

func (d *Database) appendWithOverride(s *series.Series, ts int64, v float64, override *DuplicateOverride) error {
	if override == nil {
		return s.Store.Append(ts, v)
	}
	policy, err := parseDuplicateOverride(override.Policy)
	if err != nil {
		return err
	}
	return s.Store.AppendWithPolicy(ts, v, policy)
}

// MAddItem is one tuple of a batched MADD call.
type MAddItem struct {
	Key     string
	TS      int64
	IsNow   bool
	Value   float64
	Options AddOptions
}

// MAddResult is the per-tuple outcome MADD preserves order for (§4.7).
type MAddResult struct {
	TS  int64
	Err error
}

// MAdd runs Add across possibly-different keys, preserving per-tuple
// order and capturing failures inline rather than aborting the batch.
func (d *Database) MAdd(items []MAddItem) []MAddResult {
	out := make([]MAddResult, len(items))
	for i, it := range items {
		ts, err := d.Add(it.Key, it.TS, it.IsNow, it.Value, it.Options)
		out[i] = MAddResult{TS: ts, Err: err}
	}
	return out
}

// BulkPayload is the decoded `{values, timestamps}` body of
// ADDBULK/MADDBULK/INGEST (§4.7, §6.4).
type BulkPayload struct {
	Timestamps []int64
	Values     []float64
}

// BulkResult is `[accepted, total]` per series.
type BulkResult struct {
	Accepted int
	Total    int
}

// AddBulk implements ADDBULK/INGEST: bulk append from equal-length
// timestamp/value arrays, with finite-value validation (§4.7).
func (d *Database) AddBulk(key string, payload BulkPayload, opts AddOptions) (BulkResult, error) {
	if len(payload.Timestamps) != len(payload.Values) {
		return BulkResult{}, tserr.New(tserr.LengthMismatch, "values/timestamps length mismatch")
	}
	if len(payload.Timestamps) == 0 {
		return BulkResult{}, tserr.Arg("ADDBULK", "empty payload")
	}
	for _, v := range payload.Values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return BulkResult{}, tserr.Arg("ADDBULK", "non-finite value")
		}
	}

	s, ok := d.series[key]
	if !ok {
		var err error
		s, err = d.createFromOptions(key, opts.CreateIfAbsent)
		if err != nil {
			return BulkResult{}, err
		}
	}

	samples := make([]chunk.Sample, len(payload.Timestamps))
	for i := range payload.Timestamps {
		samples[i] = chunk.Sample{TS: payload.Timestamps[i], Val: series.Round(payload.Values[i], s.Options.Rounding)}
	}
	accepted, err := s.Store.InsertMany(samples)
	if err != nil {
		return BulkResult{}, err
	}

	for _, smp := range samples {
		if err := d.driveOutgoingRules(s, smp.TS, smp.Val); err != nil {
			return BulkResult{}, err
		}
	}
	metricSamplesIngested.Inc(int64(accepted))
	d.notify(key, "ts.add")
	return BulkResult{Accepted: accepted, Total: len(payload.Timestamps)}, nil
}

// MAddBulk runs AddBulk across possibly-different keys.
func (d *Database) MAddBulk(payloads map[string]BulkPayload, opts AddOptions) map[string]BulkResultOrErr {
	out := make(map[string]BulkResultOrErr, len(payloads))
	for key, payload := range payloads {
		res, err := d.AddBulk(key, payload, opts)
		out[key] = BulkResultOrErr{Result: res, Err: err}
	}
	return out
}

// BulkResultOrErr pairs a BulkResult with its per-series error, for
// MADDBULK's per-series result map.
type BulkResultOrErr struct {
	Result BulkResult
	Err    error
}

// IncrByDecrBy implements INCRBY/DECRBY key delta [TIMESTAMP t | RESET]
// (§4.7): the new value is last_value ± delta (0 if the series is
// empty). RESET permits a timestamp older than last_ts.
func (d *Database) IncrByDecrBy(key string, delta float64, negate bool, ts int64, useTS, isNow, reset bool, opts AddOptions) (int64, error) {
	s, ok := d.series[key]
	if !ok {
		var err error
		s, err = d.createFromOptions(key, opts.CreateIfAbsent)
		if err != nil {
			return 0, err
		}
	}

	resolvedTS := d.clock()
	if useTS {
		resolvedTS = d.resolveTS(ts, isNow)
	}

	lastVal := 0.0
	if s.Store.TotalSamples() > 0 {
		lastVal = s.Store.LastValue()
		if !reset && resolvedTS <= s.Store.LastTS() {
			return 0, tserr.New(tserr.NonMonotonic, "timestamp %d not after last_ts %d", resolvedTS, s.Store.LastTS())
		}
	}

	newVal := lastVal + delta
	if negate {
		newVal = lastVal - delta
	}
	newVal = series.Round(newVal, s.Options.Rounding)

	if err := d.appendWithOverride(s, resolvedTS, newVal, opts.OnDuplicate); err != nil {
		return 0, err
	}
	metricSamplesIngested.Inc(1)
	d.notify(key, "ts.incrby")
	if err := d.driveOutgoingRules(s, resolvedTS, newVal); err != nil {
		return 0, err
	}
	return resolvedTS, nil
}
