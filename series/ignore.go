package series

import "math"

// ShouldIgnore implements §4.1's ignore-thresholds rule: a value from
// ADD/MADD is silently dropped (not an error) when it is newer than the
// last sample but within both the time and value tolerance of it.
// INCRBY/DECRBY and bulk-ingest paths never consult this — only the
// single/multi ADD commands do (§4.7).
func ShouldIgnore(hasLast bool, lastTS int64, lastVal float64, ts int64, v float64, maxTimeDiff int64, maxValDiff float64) bool {
	if !hasLast {
		return false
	}
	if ts <= lastTS {
		return false
	}
	if maxTimeDiff <= 0 && maxValDiff <= 0 {
		return false
	}
	if ts-lastTS > maxTimeDiff {
		return false
	}
	if math.Abs(v-lastVal) > maxValDiff {
		return false
	}
	return true
}
