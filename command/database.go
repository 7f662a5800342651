// Package command implements Component I: validation and orchestration
// for the TS.* command surface, plus the per-logical-database state
// (series table and label index) those commands operate on (§4.7).
// Handlers here perform only argument validation and wiring; the actual
// storage/compaction/query logic lives in the lower components.
package command

import (
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/RoaringBitmap/roaring"

	"github.com/ledgerwatch/tscore/compaction"
	"github.com/ledgerwatch/tscore/config"
	tserr "github.com/ledgerwatch/tscore/errors"
	"github.com/ledgerwatch/tscore/host"
	"github.com/ledgerwatch/tscore/labelindex"
	"github.com/ledgerwatch/tscore/query"
	"github.com/ledgerwatch/tscore/series"
)

var (
	metricSamplesIngested = metrics.NewRegisteredCounter("tscore/samples/ingested", nil)
	metricBucketsFinalized = metrics.NewRegisteredCounter("tscore/compaction/buckets_finalized", nil)
)

// Database is one logical database's worth of engine state: the series
// table and its label index, plus the host hooks commands notify
// through. The host owns one Database per logical database (§5).
type Database struct {
	global config.Global
	clock  func() int64

	series map[string]*series.Series
	index  *labelindex.Index

	// planner is long-lived across calls so its regex cache (§2) actually
	// amortizes compile cost across queries instead of being rebuilt
	// empty on every resolveSelector call. It must be rebuilt whenever
	// index is replaced wholesale (flush, load) since Planner captures
	// the index pointer at construction.
	planner *query.Planner

	notifier host.Notifier

	// engine and dbIndex are set only when this Database was obtained
	// through an Engine; they let OnKeyMoved/OnDBSwapped reach sibling
	// databases (§5). A standalone NewDatabase (tests, cmd/tsbench)
	// leaves both zero and never needs them.
	engine  *Engine
	dbIndex int
}

// NewDatabase builds an empty logical database. notifier may be nil, in
// which case keyspace notifications are silently skipped (useful for
// cmd/tsbench and tests that have no host).
func NewDatabase(global config.Global, notifier host.Notifier) *Database {
	idx := labelindex.NewIndex()
	return &Database{
		global:   global,
		clock:    func() int64 { return time.Now().UnixMilli() },
		series:   map[string]*series.Series{},
		index:    idx,
		planner:  query.NewPlanner(idx),
		notifier: notifier,
	}
}

func (d *Database) notify(channel, event string) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(channel, event); err != nil {
		log.Warn("keyspace notification failed", "channel", channel, "event", event, "err", err)
	}
}

func (d *Database) lookup(key string) (*series.Series, error) {
	s, ok := d.series[key]
	if !ok {
		return nil, tserr.New(tserr.KeyDoesNotExist, "key %q", key)
	}
	return s, nil
}

// Index exposes the label index for the query package to plan against.
func (d *Database) Index() *labelindex.Index { return d.index }

func labelsToMap(labels []series.Label) map[string]string {
	m := make(map[string]string, len(labels))
	for _, l := range labels {
		m[l.Name] = l.Value
	}
	return m
}

// create builds and indexes a brand-new series, applying the
// process-wide compaction policy to auto-create outgoing rules when the
// key was implicitly created by a write rather than an explicit CREATE
// (§6.2's ts-compaction-policy).
func (d *Database) create(key string, labels []series.Label, opts config.SeriesOptions, applyPolicy bool) (*series.Series, error) {
	if _, exists := d.series[key]; exists {
		return nil, tserr.New(tserr.KeyExists, "key %q", key)
	}
	normalized, err := series.NormalizeLabels(labels)
	if err != nil {
		return nil, err
	}
	s := series.New(key, normalized, opts)
	d.series[key] = s
	d.index.AddSeries(key, labelsToMap(normalized))

	if applyPolicy {
		d.applyCompactionPolicy(s)
	}
	return s, nil
}

func (d *Database) applyCompactionPolicy(s *series.Series) {
	name, _ := s.MetricName()
	for _, rule := range d.global.CompactionPolicy {
		if rule.Regex != "" {
			if ok, _ := matchesSimpleRegex(rule.Regex, name); !ok {
				continue
			}
		}
		destKey := s.Key + ":" + rule.Aggregator + ":" + formatDuration(rule.BucketMs)
		destOpts := config.DefaultSeriesOptions(d.global)
		destOpts.RetentionMs = rule.RetentionMs
		dest, err := d.create(destKey, s.Labels, destOpts, false)
		if err != nil {
			log.Warn("compaction policy destination already exists", "src", s.Key, "dest", destKey)
			continue
		}
		dest.SourceKey = s.Key
		s.AddOutgoingRule(compaction.Rule{DestKey: destKey, Aggregator: rule.Aggregator, BucketMs: rule.BucketMs})
	}
}

func matchesSimpleRegex(pattern, name string) (bool, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return false, tserr.Arg("ts-compaction-policy", "invalid regex %q: %v", pattern, err)
	}
	return re.MatchString(name), nil
}

func formatDuration(ms int64) string {
	return time.Duration(ms * int64(time.Millisecond)).String()
}

// resolveSelector parses and evaluates a selector expression against
// this database's index, returning the matching series IDs.
func (d *Database) resolveSelector(selectorExpr string) (*roaring.Bitmap, error) {
	expr, err := query.Parse(selectorExpr)
	if err != nil {
		return nil, err
	}
	return d.planner.Eval(expr)
}

// keysOf maps a bitmap of series IDs back to their keys, in ascending ID
// order (stable but not necessarily sorted by key; callers that need a
// sorted key list, e.g. QUERYINDEX, sort separately).
func (d *Database) keysOf(ids *roaring.Bitmap) []string {
	var keys []string
	it := ids.Iterator()
	for it.HasNext() {
		if key, ok := d.index.KeyOf(labelindex.SeriesID(it.Next())); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// delete removes key from the series table and index, and retires any
// outgoing rules pointed at it from other series.
func (d *Database) delete(key string) {
	delete(d.series, key)
	d.index.RemoveSeries(key)
	for _, s := range d.series {
		s.RemoveOutgoingRule(key)
	}
}
