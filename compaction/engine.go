package compaction

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/ledgerwatch/tscore/aggregation"
)

// OnAppend implements the per-rule transition table of §4.2/§4.9 for a
// single incoming source sample (ts, v):
//
//   - no open bucket, or b > open.bucket_start: finalize the open bucket
//     (if any) into the destination, then open bucket b with a fresh
//     accumulator folding (ts, v).
//   - b == open.bucket_start: fold (ts, v) into the open accumulator.
//   - b < open.bucket_start: an upsert into an already-finalized bucket;
//     recompute it from scratch by rescanning the source and upsert the
//     destination (no change to the open bucket).
func OnAppend(rule Rule, state *BucketState, ts int64, v float64, source Rescanner, dest Finalizer) error {
	b := rule.BucketStart(ts)

	switch {
	case !state.HasOpen || b > state.BucketStart:
		if state.HasOpen {
			if err := finalize(rule, state, dest); err != nil {
				return err
			}
		}
		k, err := newKernel(rule)
		if err != nil {
			return err
		}
		state.kernel = k
		state.state = k.Init()
		state.state = k.Accept(state.state, ts, v)
		state.BucketStart = b
		state.HasOpen = true
		return nil

	case b == state.BucketStart:
		state.state = state.kernel.Accept(state.state, ts, v)
		return nil

	default: // b < state.BucketStart: upsert into a previously finalized bucket
		return recomputeAndUpsert(rule, b, source, dest)
	}
}

// OnDeleteRange implements §4.2's delete fan-out: every bucket
// intersecting [t0,t1] is either recomputed from the remaining source
// samples, or deleted from the destination if none remain. The open
// bucket itself is reset if it falls inside the deleted range, since its
// accumulator can no longer be trusted incrementally.
func OnDeleteRange(rule Rule, state *BucketState, t0, t1 int64, source Rescanner, dest Finalizer, deleteDest func(bucketStart int64) error) error {
	firstBucket := rule.BucketStart(t0)
	for b := firstBucket; b <= t1; b += rule.BucketMs {
		bucketEnd := b + rule.BucketMs
		if bucketEnd <= t0 {
			continue
		}
		samples := source.RangeSamples(b, bucketEnd)
		if len(samples) == 0 {
			if err := deleteDest(b); err != nil {
				return err
			}
		} else {
			v, err := reduceRange(rule, samples)
			if err != nil {
				return err
			}
			if err := dest.FinalizeBucket(rule.DestKey, b, v); err != nil {
				if err == ErrDestinationMissing {
					log.Warn("compaction destination missing on delete fan-out, retiring rule", "dest", rule.DestKey)
					return err
				}
				return err
			}
		}
	}
	if state.HasOpen && state.BucketStart >= firstBucket && state.BucketStart <= t1 {
		state.HasOpen = false
	}
	return nil
}

func finalize(rule Rule, state *BucketState, dest Finalizer) error {
	v := state.kernel.Reduce(state.state, aggregation.ReduceContext{BucketDurationMs: rule.BucketMs})
	err := dest.FinalizeBucket(rule.DestKey, state.BucketStart, v)
	state.HasOpen = false
	if err == ErrDestinationMissing {
		log.Warn("compaction destination missing on finalize, retiring rule", "dest", rule.DestKey)
		return err
	}
	return err
}

func recomputeAndUpsert(rule Rule, bucketStart int64, source Rescanner, dest Finalizer) error {
	samples := source.RangeSamples(bucketStart, bucketStart+rule.BucketMs)
	if len(samples) == 0 {
		return nil
	}
	v, err := reduceRange(rule, samples)
	if err != nil {
		return err
	}
	if err := dest.FinalizeBucket(rule.DestKey, bucketStart, v); err != nil {
		if err == ErrDestinationMissing {
			log.Warn("compaction destination missing on historical upsert, retiring rule", "dest", rule.DestKey)
		}
		return err
	}
	return nil
}
