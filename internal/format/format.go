// Package format renders query results as a table, JSON, YAML, or CSV.
package format

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Supported print formats. BibTeX is not rendered locally: 'get documents'
// obtains it from the provider via a content-type negotiation instead.
const (
	Table = "table"
	JSON  = "json"
	YAML  = "yaml"
	CSV   = "csv"
)

// Dataset is an ordered set of records sharing one header row.
type Dataset struct {
	Headers []string
	Rows    [][]string
}

// NewDataset creates an empty dataset with the given headers.
func NewDataset(headers ...string) *Dataset {
	return &Dataset{Headers: headers}
}

// Append adds one record. The number of values must match the headers.
func (d *Dataset) Append(values ...string) {
	d.Rows = append(d.Rows, values)
}

// records converts rows into header-keyed maps for structured formats.
func (d *Dataset) records() []map[string]string {
	recs := make([]map[string]string, 0, len(d.Rows))

	for _, row := range d.Rows {
		rec := make(map[string]string, len(d.Headers))
		for i, h := range d.Headers {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		recs = append(recs, rec)
	}

	return recs
}

// Render writes the dataset to w in the requested format.
func Render(w io.Writer, d *Dataset, format string) error {
	switch format {
	case Table, "":
		return renderTable(w, d)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(d.records()); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		return nil
	case YAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		if err := enc.Encode(d.records()); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return nil
	case CSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(d.Headers); err != nil {
			return fmt.Errorf("writing CSV header: %w", err)
		}
		if err := cw.WriteAll(d.Rows); err != nil {
			return fmt.Errorf("writing CSV rows: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported print format %q (supported: table, json, yaml, csv)", format)
	}
}

func renderTable(w io.Writer, d *Dataset) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if err := writeTabbedRow(tw, d.Headers); err != nil {
		return err
	}
	for _, row := range d.Rows {
		if err := writeTabbedRow(tw, row); err != nil {
			return err
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}

	return nil
}

func writeTabbedRow(w io.Writer, values []string) error {
	for i, v := range values {
		if i > 0 {
			if _, err := fmt.Fprint(w, "\t"); err != nil {
				return fmt.Errorf("rendering table: %w", err)
			}
		}
		if _, err := fmt.Fprint(w, v); err != nil {
			return fmt.Errorf("rendering table: %w", err)
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}

	return nil
}
