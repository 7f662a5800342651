package command

import (
	"github.com/ledgerwatch/tscore/config"
	tserr "github.com/ledgerwatch/tscore/errors"
	"github.com/ledgerwatch/tscore/series"
)

// CreateOptions is the CREATE/ALTER/implicit-create option set of §4.7.
// Metric, when non-empty, is parsed as `name{l=v,...}` and merged into
// Labels: its name becomes the reserved __name__ label, which LABELS
// itself rejects, and the brace set adds further labels.
type CreateOptions struct {
	RetentionMs       *int64
	Encoding          *config.Encoding
	ChunkSizeBytes    *uint64
	DuplicatePolicy   *config.DuplicatePolicy
	Rounding          *config.Rounding
	IgnoreMaxTimeDiff *int64
	IgnoreMaxValDiff  *float64
	Labels            map[string]string
	Metric            string
}

func (d *Database) resolveOptions(base config.SeriesOptions, opts CreateOptions) config.SeriesOptions {
	out := base
	if opts.RetentionMs != nil {
		out.RetentionMs = *opts.RetentionMs
	}
	if opts.Encoding != nil {
		out.Encoding = *opts.Encoding
	}
	if opts.ChunkSizeBytes != nil {
		out.ChunkSizeBytes = *opts.ChunkSizeBytes
	}
	if opts.DuplicatePolicy != nil {
		out.DuplicatePolicy = *opts.DuplicatePolicy
	}
	if opts.Rounding != nil {
		out.Rounding = *opts.Rounding
	}
	if opts.IgnoreMaxTimeDiff != nil {
		out.IgnoreMaxTimeDiff = *opts.IgnoreMaxTimeDiff
	}
	if opts.IgnoreMaxValDiff != nil {
		out.IgnoreMaxValDiff = *opts.IgnoreMaxValDiff
	}
	return out
}

func labelsFromOptions(opts CreateOptions) ([]series.Label, error) {
	var labels []series.Label
	for name, value := range opts.Labels {
		if err := series.ValidateLabelName(name); err != nil {
			return nil, err
		}
		labels = append(labels, series.Label{Name: name, Value: value})
	}
	if opts.Metric != "" {
		name, extra, err := parseMetricLiteral(opts.Metric)
		if err != nil {
			return nil, err
		}
		labels = append(labels, series.Label{Name: series.MetricNameLabel, Value: name})
		labels = append(labels, extra...)
	}
	return labels, nil
}

// Create implements CREATE key [opts] (§4.7): fails KeyExists if key is
// present.
func (d *Database) Create(key string, opts CreateOptions) error {
	labels, err := labelsFromOptions(opts)
	if err != nil {
		return err
	}
	seriesOpts := d.resolveOptions(config.DefaultSeriesOptions(d.global), opts)
	_, err = d.create(key, labels, seriesOpts, false)
	if err != nil {
		return err
	}
	d.notify(key, "ts.create")
	return nil
}

// createFromOptions is ADD/INCRBY/ADDBULK's implicit-creation path: the
// same option set as CREATE, applied when the key does not yet exist.
func (d *Database) createFromOptions(key string, opts CreateOptions) (*series.Series, error) {
	labels, err := labelsFromOptions(opts)
	if err != nil {
		return nil, err
	}
	seriesOpts := d.resolveOptions(config.DefaultSeriesOptions(d.global), opts)
	s, err := d.create(key, labels, seriesOpts, true)
	if err != nil {
		return nil, err
	}
	d.notify(key, "ts.create")
	return s, nil
}

// Alter implements ALTER key [opts] (§4.7), the same option set as
// CREATE except ENCODING (re-encoding in place isn't supported; chunk
// data keeps whatever encoding it was created with). Re-labeling
// updates the index atomically.
func (d *Database) Alter(key string, opts CreateOptions) error {
	if opts.Encoding != nil {
		return tserr.Arg("ENCODING", "ALTER cannot change a series' encoding")
	}
	s, err := d.lookup(key)
	if err != nil {
		return err
	}
	s.Options = d.resolveOptions(s.Options, opts)

	if opts.Labels != nil || opts.Metric != "" {
		newLabels, err := labelsFromOptions(opts)
		if err != nil {
			return err
		}
		normalized, err := series.NormalizeLabels(newLabels)
		if err != nil {
			return err
		}
		d.index.RemoveSeries(key)
		s.Labels = normalized
		d.index.AddSeries(key, labelsToMap(normalized))
	}
	d.notify(key, "ts.alter")
	return nil
}

func parseDuplicateOverride(policy string) (config.DuplicatePolicy, error) {
	return config.ParseDuplicatePolicy(policy)
}
