package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// ErrColumnNotFound reports a reference to a column the dataset does not
// have. It is a structural data error, surfaced to the caller and never
// retried.
type ErrColumnNotFound struct {
	Column string
}

func (e ErrColumnNotFound) Error() string {
	return fmt.Sprintf("column %q not found", e.Column)
}

// Dataset is an in-memory tabular dataset parsed from CSV. Cells are
// kept as strings; numeric interpretation happens per column on demand.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// FromCSV parses CSV bytes into a dataset. The first record is the
// header.
func FromCSV(data []byte) (*Dataset, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV contains no header row")
	}

	return &Dataset{
		Columns: records[0],
		Rows:    records[1:],
	}, nil
}

// NumRows returns the number of data rows.
func (d *Dataset) NumRows() int { return len(d.Rows) }

// NumCols returns the number of columns.
func (d *Dataset) NumCols() int { return len(d.Columns) }

func (d *Dataset) columnIndex(name string) (int, error) {
	for i, col := range d.Columns {
		if col == name {
			return i, nil
		}
	}
	return -1, ErrColumnNotFound{Column: name}
}

// columnValues returns the non-empty cells of a column.
func (d *Dataset) columnValues(idx int) []string {
	values := make([]string, 0, len(d.Rows))
	for _, row := range d.Rows {
		if idx < len(row) && row[idx] != "" {
			values = append(values, row[idx])
		}
	}
	return values
}

// numericValues parses a column as floats, skipping empty and
// non-numeric cells.
func (d *Dataset) numericValues(idx int) []float64 {
	values := d.columnValues(idx)
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			nums = append(nums, f)
		}
	}
	return nums
}

// IsNumeric reports whether every non-empty cell of the column parses
// as a number.
func (d *Dataset) IsNumeric(name string) bool {
	idx, err := d.columnIndex(name)
	if err != nil {
		return false
	}
	values := d.columnValues(idx)
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return false
		}
	}
	return true
}

// DTypes infers a coarse type per column: "number" or "string".
func (d *Dataset) DTypes() map[string]string {
	dtypes := make(map[string]string, len(d.Columns))
	for _, col := range d.Columns {
		if d.IsNumeric(col) {
			dtypes[col] = "number"
		} else {
			dtypes[col] = "string"
		}
	}
	return dtypes
}

// Sample returns a dataset of at most n rows drawn without replacement
// using the given seed. Row order is preserved, and the same seed always
// selects the same rows.
func (d *Dataset) Sample(n int, seed int64) *Dataset {
	if n >= len(d.Rows) {
		return d
	}

	rng := rand.New(rand.NewSource(seed))
	picked := rng.Perm(len(d.Rows))[:n]
	sort.Ints(picked)

	rows := make([][]string, 0, n)
	for _, idx := range picked {
		rows = append(rows, d.Rows[idx])
	}
	return &Dataset{Columns: d.Columns, Rows: rows}
}

// Preview returns the first n rows as records keyed by column name.
func (d *Dataset) Preview(n int) []map[string]string {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	records := make([]map[string]string, 0, n)
	for _, row := range d.Rows[:n] {
		record := make(map[string]string, len(d.Columns))
		for i, col := range d.Columns {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		records = append(records, record)
	}
	return records
}

// PreviewString serializes a header plus the first n rows for embedding
// in prompts and message parts.
func (d *Dataset) PreviewString(n int) string {
	var b strings.Builder
	b.WriteString(strings.Join(d.Columns, ", "))
	b.WriteString("\n")
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	for _, row := range d.Rows[:n] {
		b.WriteString(strings.Join(row, ", "))
		b.WriteString("\n")
	}
	return b.String()
}
