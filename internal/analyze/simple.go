package analyze

import (
	"strings"

	"github.com/datachat/datachat/internal/dataset"
)

const previewRows = 10

// SimpleAnalyzer answers recognized query intents directly from the
// dataset with no external calls. It either succeeds or reports a
// structural data error such as a missing column.
type SimpleAnalyzer struct{}

// NewSimpleAnalyzer creates the deterministic analyzer.
func NewSimpleAnalyzer() *SimpleAnalyzer {
	return &SimpleAnalyzer{}
}

// summaryPayload bundles the full deterministic overview.
type summaryPayload struct {
	BasicInfo dataset.BasicInfo              `json:"basic_info"`
	Stats     map[string]dataset.ColumnStats `json:"stats"`
	Missing   dataset.MissingReport          `json:"missing"`
}

// previewPayload is the head of the dataset.
type previewPayload struct {
	Rows int                 `json:"rows"`
	Data []map[string]string `json:"data"`
}

// Analyze resolves the query against the dataset. The returned kind
// names the shape of the payload.
func (a *SimpleAnalyzer) Analyze(ds *dataset.Dataset, query string) (string, any, error) {
	q := strings.ToLower(query)

	if matchesAny(q, "summarize", "summary", "overview", "describe") {
		return "summary", summaryPayload{
			BasicInfo: ds.Info(),
			Stats:     ds.SummaryStats(),
			Missing:   ds.MissingValues(),
		}, nil
	}

	if matchesAny(q, "stats", "statistics", "statistical") {
		return "statistics", ds.SummaryStats(), nil
	}

	if matchesAny(q, "missing", "null", "nan", "empty") {
		return "missing_values", ds.MissingValues(), nil
	}

	if matchesAny(q, "histogram", "distribution") {
		for _, col := range ds.Columns {
			if strings.Contains(q, strings.ToLower(col)) {
				bins, err := ds.Histogram(col, 10)
				if err != nil {
					return "", nil, err
				}
				return "histogram", bins, nil
			}
		}
		return "", nil, dataset.ErrColumnNotFound{Column: "(none named in query)"}
	}

	// A named column wins over the generic preview intents.
	for _, col := range ds.Columns {
		if strings.Contains(q, strings.ToLower(col)) {
			info, err := ds.DescribeColumn(col)
			if err != nil {
				return "", nil, err
			}
			return "column_info", info, nil
		}
	}

	if matchesAny(q, "show", "preview", "display", "head", "first") {
		records := ds.Preview(previewRows)
		return "preview", previewPayload{Rows: len(records), Data: records}, nil
	}

	return "basic_info", ds.Info(), nil
}

func matchesAny(q string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}
