package query

import "github.com/RoaringBitmap/roaring"

// SeriesRange reports a series' [first_ts,last_ts] span, as seen by the
// range postfilter. The caller holding the series table supplies it, so
// query imports neither series nor command.
type SeriesRange func(id uint32) (firstTS, lastTS int64, ok bool)

// FilterByRange restricts ids to those whose span intersects [t0,t1]
// (or, if not, does not), per §4.5's FILTER_BY_RANGE.
func FilterByRange(ids *roaring.Bitmap, t0, t1 int64, not bool, spanOf SeriesRange) *roaring.Bitmap {
	out := roaring.New()
	it := ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		first, last, ok := spanOf(id)
		intersects := ok && first <= t1 && last >= t0
		if intersects != not {
			out.Add(id)
		}
	}
	return out
}
