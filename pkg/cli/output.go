package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is column-aligned text (default).
	FormatText OutputFormat = "text"
	// FormatJSON is an indented JSON array of objects.
	FormatJSON OutputFormat = "json"
	// FormatCSV is RFC 4180 CSV with a header record.
	FormatCSV OutputFormat = "csv"
)

// ParseOutputFormat validates an --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json, or csv)", s)
	}
}

// Table is tabular command output.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Append adds a row. Missing cells render empty.
func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Records returns each row as a header-keyed map.
func (t *Table) Records() []map[string]string {
	records := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(row) {
				rec[strings.ToLower(h)] = row[i]
			} else {
				rec[strings.ToLower(h)] = ""
			}
		}
		records = append(records, rec)
	}
	return records
}

// Formatter renders a Table.
type Formatter interface {
	FormatTo(w io.Writer, t *Table) error
}

// TextFormatter aligns columns with a tabwriter.
type TextFormatter struct{}

func (f *TextFormatter) FormatTo(w io.Writer, t *Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// JSONFormatter writes Records as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatTo(w io.Writer, t *Table) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(t.Records())
}

// CSVFormatter writes the header then one record per row.
type CSVFormatter struct{}

func (f *CSVFormatter) FormatTo(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if len(t.Headers) > 0 {
		if err := cw.Write(t.Headers); err != nil {
			return err
		}
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}
