package command

import (
	tserr "github.com/ledgerwatch/tscore/errors"
)

// Del implements DEL key t0 t1 (§4.7): returns the count of samples
// removed.
func (d *Database) Del(key string, t0, t1 int64) (int, error) {
	s, err := d.lookup(key)
	if err != nil {
		return 0, err
	}
	n := s.Store.DeleteRange(t0, t1)
	if err := d.driveDeleteRange(s, t0, t1); err != nil {
		return n, err
	}
	d.notify(key, "ts.del")
	return n, nil
}

// MDel implements MDEL [t0 t1] FILTER selector (§4.7): without a range,
// deletes every matching series entirely (returns series count); with a
// range, deletes samples across matching series (returns sample count).
func (d *Database) MDel(selectorExpr string, t0, t1 *int64) (int, error) {
	if selectorExpr == "" {
		return 0, tserr.New(tserr.InvalidSelector, "MDEL requires FILTER")
	}
	ids, err := d.resolveSelector(selectorExpr)
	if err != nil {
		return 0, err
	}
	keys := d.keysOf(ids)

	if t0 == nil || t1 == nil {
		for _, key := range keys {
			d.delete(key)
			d.notify(key, "ts.del")
		}
		return len(keys), nil
	}

	total := 0
	for _, key := range keys {
		n, err := d.Del(key, *t0, *t1)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
