package series

import (
	"regexp"
	"sort"

	tserr "github.com/ledgerwatch/tscore/errors"
)

// Label is an ordered (name,value) pair (§3). __name__ is reserved for
// the derived metric name.
type Label struct {
	Name  string
	Value string
}

const MetricNameLabel = "__name__"

var labelNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateLabelName enforces §3's grammar, excluding the reserved
// __name__ from caller-supplied label sets (it is derived, not set
// directly as a LABELS entry).
func ValidateLabelName(name string) error {
	if name == MetricNameLabel {
		return tserr.Arg("LABELS", "%q is reserved", MetricNameLabel)
	}
	if !labelNameRE.MatchString(name) {
		return tserr.Arg("LABELS", "invalid label name %q", name)
	}
	return nil
}

// NormalizeLabels sorts by name and rejects duplicate names, enforcing
// the "unique by name" invariant of §3.
func NormalizeLabels(labels []Label) ([]Label, error) {
	out := append([]Label(nil), labels...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	for i := 1; i < len(out); i++ {
		if out[i].Name == out[i-1].Name {
			return nil, tserr.Arg("LABELS", "duplicate label name %q", out[i].Name)
		}
	}
	return out, nil
}

// MetricName returns the value of __name__, if present.
func MetricName(labels []Label) (string, bool) {
	for _, l := range labels {
		if l.Name == MetricNameLabel {
			return l.Value, true
		}
	}
	return "", false
}
