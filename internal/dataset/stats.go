package dataset

import (
	"fmt"
	"math"
	"sort"
)

// BasicInfo describes the shape of a dataset.
type BasicInfo struct {
	Rows        int               `json:"rows"`
	Columns     int               `json:"columns"`
	ColumnNames []string          `json:"column_names"`
	DTypes      map[string]string `json:"dtypes"`
}

// Info returns basic information about the dataset.
func (d *Dataset) Info() BasicInfo {
	return BasicInfo{
		Rows:        d.NumRows(),
		Columns:     d.NumCols(),
		ColumnNames: d.Columns,
		DTypes:      d.DTypes(),
	}
}

// ColumnStats are descriptive statistics for one numeric column.
type ColumnStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// SummaryStats computes descriptive statistics for every numeric
// column.
func (d *Dataset) SummaryStats() map[string]ColumnStats {
	stats := make(map[string]ColumnStats)
	for i, col := range d.Columns {
		if !d.IsNumeric(col) {
			continue
		}
		nums := d.numericValues(i)
		if len(nums) == 0 {
			continue
		}
		stats[col] = describe(nums)
	}
	return stats
}

func describe(nums []float64) ColumnStats {
	sorted := make([]float64, len(nums))
	copy(sorted, nums)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	variance := 0.0
	for _, v := range sorted {
		variance += (v - mean) * (v - mean)
	}
	std := 0.0
	if len(sorted) > 1 {
		std = math.Sqrt(variance / float64(len(sorted)-1))
	}

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return ColumnStats{
		Count:  len(sorted),
		Mean:   mean,
		Std:    std,
		Min:    sorted[0],
		Median: median,
		Max:    sorted[len(sorted)-1],
	}
}

// MissingColumn reports missing cells for one column.
type MissingColumn struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// MissingReport summarizes missing values across the dataset.
type MissingReport struct {
	TotalMissing       int                      `json:"total_missing"`
	ColumnsWithMissing int                      `json:"columns_with_missing"`
	Details            map[string]MissingColumn `json:"details"`
}

// MissingValues counts empty cells per column.
func (d *Dataset) MissingValues() MissingReport {
	report := MissingReport{Details: make(map[string]MissingColumn)}
	for i, col := range d.Columns {
		missing := 0
		for _, row := range d.Rows {
			if i >= len(row) || row[i] == "" {
				missing++
			}
		}
		if missing > 0 {
			pct := 0.0
			if len(d.Rows) > 0 {
				pct = float64(missing) / float64(len(d.Rows)) * 100
			}
			report.Details[col] = MissingColumn{Count: missing, Percentage: pct}
			report.TotalMissing += missing
			report.ColumnsWithMissing++
		}
	}
	return report
}

// ColumnInfo describes a single column in detail.
type ColumnInfo struct {
	Name         string         `json:"name"`
	DType        string         `json:"dtype"`
	NonNullCount int            `json:"non_null_count"`
	NullCount    int            `json:"null_count"`
	UniqueValues int            `json:"unique_values"`
	Stats        *ColumnStats   `json:"stats,omitempty"`
	TopValues    map[string]int `json:"top_values,omitempty"`
}

// DescribeColumn returns detailed information about one column. Missing
// columns are a structural data error.
func (d *Dataset) DescribeColumn(name string) (ColumnInfo, error) {
	idx, err := d.columnIndex(name)
	if err != nil {
		return ColumnInfo{}, err
	}

	values := d.columnValues(idx)
	unique := make(map[string]int)
	for _, v := range values {
		unique[v]++
	}

	info := ColumnInfo{
		Name:         name,
		NonNullCount: len(values),
		NullCount:    len(d.Rows) - len(values),
		UniqueValues: len(unique),
	}

	if d.IsNumeric(name) {
		info.DType = "number"
		if nums := d.numericValues(idx); len(nums) > 0 {
			stats := describe(nums)
			info.Stats = &stats
		}
	} else {
		info.DType = "string"
		// Top 10 most frequent values for non-numeric columns.
		type pair struct {
			value string
			count int
		}
		pairs := make([]pair, 0, len(unique))
		for v, c := range unique {
			pairs = append(pairs, pair{v, c})
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].count != pairs[j].count {
				return pairs[i].count > pairs[j].count
			}
			return pairs[i].value < pairs[j].value
		})
		if len(pairs) > 10 {
			pairs = pairs[:10]
		}
		info.TopValues = make(map[string]int, len(pairs))
		for _, p := range pairs {
			info.TopValues[p.value] = p.count
		}
	}

	return info, nil
}

// HistogramBin is one bucket of a histogram.
type HistogramBin struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// Histogram bins a numeric column into equal-width buckets. Non-numeric
// columns are a structural data error.
func (d *Dataset) Histogram(name string, bins int) ([]HistogramBin, error) {
	idx, err := d.columnIndex(name)
	if err != nil {
		return nil, err
	}
	if !d.IsNumeric(name) {
		return nil, fmt.Errorf("column %q is not numeric", name)
	}
	if bins <= 0 {
		bins = 10
	}

	nums := d.numericValues(idx)
	if len(nums) == 0 {
		return nil, fmt.Errorf("column %q has no values", name)
	}

	lo, hi := nums[0], nums[0]
	for _, v := range nums {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	width := (hi - lo) / float64(bins)
	if width == 0 {
		return []HistogramBin{{
			Range: fmt.Sprintf("%.2f - %.2f", lo, hi),
			Count: len(nums),
		}}, nil
	}

	counts := make([]int, bins)
	for _, v := range nums {
		b := int((v - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		counts[b]++
	}

	result := make([]HistogramBin, bins)
	for i := 0; i < bins; i++ {
		result[i] = HistogramBin{
			Range: fmt.Sprintf("%.2f - %.2f", lo+float64(i)*width, lo+float64(i+1)*width),
			Count: counts[i],
		}
	}
	return result, nil
}
