package export

import "fmt"

// Column names one field of a row and the label printed in headers.
type Column struct {
	Key   string
	Label string
	// Width is a relative hint used by the PDF and XLSX renderers.
	Width float64
}

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Columns []Column
	Rows    []map[string]string
}

func (d Dataset) validate(format string) error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("%s requires at least one column", format)
	}
	return nil
}

func (d Dataset) labels() []string {
	out := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		out[i] = col.Label
	}
	return out
}

func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		out[i] = row[col.Key]
	}
	return out
}

func (d Dataset) widths(total float64) []float64 {
	sum := 0.0
	for _, col := range d.Columns {
		sum += weight(col)
	}
	out := make([]float64, len(d.Columns))
	for i, col := range d.Columns {
		out[i] = total * weight(col) / sum
	}
	return out
}

func weight(col Column) float64 {
	if col.Width <= 0 {
		return 1
	}
	return col.Width
}
