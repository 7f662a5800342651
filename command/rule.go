package command

import (
	"github.com/ledgerwatch/tscore/compaction"
	tserr "github.com/ledgerwatch/tscore/errors"
)

// wouldCycle reports whether linking src->dst would create a cycle in
// the rule graph: true if dst (or anything reachable from dst's own
// outgoing rules) eventually points back at src.
func (d *Database) wouldCycle(src, dst string) bool {
	visited := map[string]bool{src: true}
	cur := dst
	for {
		if visited[cur] {
			return cur == src
		}
		visited[cur] = true
		s, ok := d.series[cur]
		if !ok || len(s.OutgoingRules) == 0 {
			return false
		}
		// A destination carries at most one outgoing rule chain slot per
		// the double-destination invariant on the far end, but a series
		// may itself fan out to several rules; a cycle exists if ANY of
		// them eventually loops back to src.
		for _, rl := range s.OutgoingRules {
			if rl.Rule.DestKey == src {
				return true
			}
			if d.wouldCycle(src, rl.Rule.DestKey) {
				return true
			}
		}
		return false
	}
}

// CreateRule implements CREATERULE src dst AGGREGATION agg bucket [align]
// (§4.7, §4.10). Chained rules are permitted — a destination may itself
// source further rules, per the compaction-chain walk driven from
// FinalizeBucket — but a destination may only ever have one source, and
// the rule graph must stay acyclic.
func (d *Database) CreateRule(src, dst string, rule compaction.Rule) error {
	rule.DestKey = dst
	srcSeries, err := d.lookup(src)
	if err != nil {
		return err
	}
	dstSeries, err := d.lookup(dst)
	if err != nil {
		return err
	}
	if dstSeries.SourceKey != "" && dstSeries.SourceKey != src {
		return tserr.New(tserr.InvalidRule, "dst %q already has source %q", dst, dstSeries.SourceKey)
	}
	if _, ok := srcSeries.RuleTo(dst); ok {
		return tserr.New(tserr.InvalidRule, "rule %s->%s already exists", src, dst)
	}
	if src == dst || d.wouldCycle(src, dst) {
		return tserr.New(tserr.InvalidRule, "rule %s->%s would create a cycle", src, dst)
	}
	srcSeries.AddOutgoingRule(rule)
	dstSeries.SourceKey = src
	return nil
}

// DeleteRule implements DELETERULE src dst (§4.7).
func (d *Database) DeleteRule(src, dst string) error {
	srcSeries, err := d.lookup(src)
	if err != nil {
		return err
	}
	if _, ok := srcSeries.RuleTo(dst); !ok {
		return tserr.New(tserr.InvalidRule, "no rule %s->%s", src, dst)
	}
	srcSeries.RemoveOutgoingRule(dst)
	if dstSeries, ok := d.series[dst]; ok {
		dstSeries.SourceKey = ""
	}
	return nil
}
