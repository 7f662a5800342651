package command

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/ledgerwatch/tscore/compaction"
	"github.com/ledgerwatch/tscore/config"
	"github.com/ledgerwatch/tscore/series"
)

// FinalizeBucket implements compaction.Finalizer by writing a finalized
// or recomputed bucket sample through the destination series' own
// append path, which recursively drives the destination's own outgoing
// rules (§4.2 "Chained rules").
func (d *Database) FinalizeBucket(destKey string, bucketStart int64, value float64) error {
	dest, ok := d.series[destKey]
	if !ok {
		return compaction.ErrDestinationMissing
	}
	if err := dest.Store.AppendWithPolicy(bucketStart, value, config.DuplicateLast); err != nil {
		return err
	}
	metricBucketsFinalized.Inc(1)
	d.notify(destKey, "ts.add:dest")

	for _, rl := range append([]*series.RuleLink(nil), dest.OutgoingRules...) {
		if err := compaction.OnAppend(rl.Rule, &rl.State, bucketStart, value, dest.Store, d); err != nil {
			if err == compaction.ErrDestinationMissing {
				log.Warn("retiring outgoing rule with missing destination", "src", destKey, "dest", rl.Rule.DestKey)
				dest.RemoveOutgoingRule(rl.Rule.DestKey)
				continue
			}
			return err
		}
	}
	return nil
}

// driveOutgoingRules feeds (ts, v) through every outgoing rule of s,
// retiring any rule whose destination has gone missing (§4.2 "Failure
// modes").
func (d *Database) driveOutgoingRules(s *series.Series, ts int64, v float64) error {
	for _, rl := range append([]*series.RuleLink(nil), s.OutgoingRules...) {
		if err := compaction.OnAppend(rl.Rule, &rl.State, ts, v, s.Store, d); err != nil {
			if err == compaction.ErrDestinationMissing {
				log.Warn("retiring outgoing rule with missing destination", "src", s.Key, "dest", rl.Rule.DestKey)
				s.RemoveOutgoingRule(rl.Rule.DestKey)
				continue
			}
			return err
		}
	}
	return nil
}

// driveDeleteRange fans a delete_range out across s's outgoing rules
// (§4.2 "On source delete_range").
func (d *Database) driveDeleteRange(s *series.Series, t0, t1 int64) error {
	for _, rl := range append([]*series.RuleLink(nil), s.OutgoingRules...) {
		deleteDest := func(bucketStart int64) error {
			dest, ok := d.series[rl.Rule.DestKey]
			if !ok {
				return nil
			}
			dest.Store.DeleteRange(bucketStart, bucketStart)
			d.notify(rl.Rule.DestKey, "ts.del:dest")
			return nil
		}
		if err := compaction.OnDeleteRange(rl.Rule, &rl.State, t0, t1, s.Store, d, deleteDest); err != nil {
			if err == compaction.ErrDestinationMissing {
				log.Warn("retiring outgoing rule with missing destination", "src", s.Key, "dest", rl.Rule.DestKey)
				s.RemoveOutgoingRule(rl.Rule.DestKey)
				continue
			}
			return err
		}
	}
	return nil
}
