package command

import (
	"strings"

	tserr "github.com/ledgerwatch/tscore/errors"
	"github.com/ledgerwatch/tscore/series"
)

// parseMetricLiteral parses CREATE/ALTER's `METRIC "name{l=v,...}"`
// sugar into a metric name and its extra labels (§4.7).
func parseMetricLiteral(literal string) (string, []series.Label, error) {
	literal = strings.TrimSpace(literal)
	brace := strings.IndexByte(literal, '{')
	if brace < 0 {
		return literal, nil, nil
	}
	if !strings.HasSuffix(literal, "}") {
		return "", nil, tserr.Arg("METRIC", "malformed literal %q", literal)
	}
	name := strings.TrimSpace(literal[:brace])
	body := literal[brace+1 : len(literal)-1]
	if strings.TrimSpace(body) == "" {
		return name, nil, nil
	}

	var labels []series.Label
	for _, part := range strings.Split(body, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return "", nil, tserr.Arg("METRIC", "malformed label in %q", literal)
		}
		labelName := strings.TrimSpace(kv[0])
		labelValue := strings.Trim(strings.TrimSpace(kv[1]), `"`)
		if err := series.ValidateLabelName(labelName); err != nil {
			return "", nil, err
		}
		labels = append(labels, series.Label{Name: labelName, Value: labelValue})
	}
	return name, labels, nil
}
