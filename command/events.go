package command

import (
	"github.com/ledgerwatch/tscore/host"
	"github.com/ledgerwatch/tscore/labelindex"
	"github.com/ledgerwatch/tscore/query"
	"github.com/ledgerwatch/tscore/series"
)

var _ host.KeyEventSink = (*Database)(nil)

// renameKey relabels a series in place: the series table and label
// index both move to newKey, and every sibling series' source_key or
// outgoing-rule destination pointing at oldKey follows it (§5, §9
// "source_key ... survives rename").
func (d *Database) renameKey(oldKey, newKey string) {
	s, ok := d.series[oldKey]
	if !ok {
		return
	}
	delete(d.series, oldKey)
	s.Key = newKey
	d.series[newKey] = s
	d.index.RemoveSeries(oldKey)
	d.index.AddSeries(newKey, labelsToMap(s.Labels))

	for _, other := range d.series {
		if other.SourceKey == oldKey {
			other.SourceKey = newKey
		}
		if rl, ok := other.RuleTo(oldKey); ok {
			rl.Rule.DestKey = newKey
		}
	}
}

// OnKeyDeleted implements host.KeyEventSink: the host's own DEL path
// (as opposed to TS.DEL, which deletes a time range) removed key
// outright.
func (d *Database) OnKeyDeleted(key string) {
	d.delete(key)
}

// OnKeyRenamed implements host.KeyEventSink.
func (d *Database) OnKeyRenamed(oldKey, newKey string) {
	d.renameKey(oldKey, newKey)
}

// OnKeyMoved implements host.KeyEventSink (§5 "Cross-database
// operations ... rebind a series and its index membership atomically").
// The sink is registered against fromDB; toDB is resolved through the
// shared Engine so the series table and label index entries move in
// one step, with no window where the key exists in both or neither.
func (d *Database) OnKeyMoved(key string, fromDB, toDB int) {
	if d.engine == nil || fromDB != d.dbIndex {
		return
	}
	dest := d.engine.DB(toDB)
	s, ok := d.series[key]
	if !ok {
		return
	}
	if _, exists := dest.series[key]; exists {
		return
	}
	delete(d.series, key)
	d.index.RemoveSeries(key)

	dest.series[key] = s
	dest.index.AddSeries(key, labelsToMap(s.Labels))
}

// OnKeyExpired implements host.KeyEventSink.
func (d *Database) OnKeyExpired(key string) {
	d.delete(key)
}

// OnDBFlushed implements host.KeyEventSink: FLUSHDB on this database
// clears the series table and index wholesale.
func (d *Database) OnDBFlushed(db int) {
	if d.engine != nil && db != d.dbIndex {
		return
	}
	d.series = map[string]*series.Series{}
	d.index = labelindex.NewIndex()
	d.planner = query.NewPlanner(d.index)
}

// OnKeyRestored implements host.KeyEventSink: RESTORE has already
// populated d.series[key] through Load/command-level restore; this
// hook only re-establishes label-index membership.
func (d *Database) OnKeyRestored(key string) {
	s, ok := d.series[key]
	if !ok {
		return
	}
	d.index.AddSeries(key, labelsToMap(s.Labels))
}

// OnDBSwapped implements host.KeyEventSink (§5, §8 property 10
// "Cross-DB isolation"). Swapping is a pointer exchange in the Engine's
// database table: each Database object keeps its own series table and
// index untouched, they simply answer to the other index afterward.
func (d *Database) OnDBSwapped(db1, db2 int) {
	if d.engine == nil {
		return
	}
	d.engine.swap(db1, db2)
}
