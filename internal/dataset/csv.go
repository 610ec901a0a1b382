package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
)

// DefaultMissing is the cell content that denotes an undefined value.
const DefaultMissing = "?"

// CSVOptions control how a CSV stream is turned into a dataset.
type CSVOptions struct {
	// Logger receives warnings about cells that are mapped to missing values.
	Logger *slog.Logger
	// Relation names the resulting dataset.
	Relation string
	// Class names the class column. Empty selects the last column; "-" selects none.
	Class string
	// Missing is the cell content for undefined values, DefaultMissing when empty.
	Missing string
	// Nominal forces columns to be nominal even if all their values are numeric.
	Nominal []string
	// Weight names an optional numeric column holding instance weights.
	Weight string
}

func (o CSVOptions) missing() string {
	if o.Missing == "" {
		return DefaultMissing
	}
	return o.Missing
}

// ReadCSV parses a CSV stream into a dataset, inferring the schema. The first row must
// hold the column names. A column is numeric when every defined cell parses as a number
// and it is not listed in opts.Nominal; otherwise it is nominal with its distinct values
// in lexical order.
func ReadCSV(r io.Reader, opts CSVOptions) (*Instances, error) {
	header, rows, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	weightCol := -1
	forced := make(map[string]bool, len(opts.Nominal))
	for _, n := range opts.Nominal {
		forced[n] = true
	}

	attrs := make([]*Attribute, 0, len(header))
	columns := make([]int, 0, len(header))
	for col, name := range header {
		if opts.Weight != "" && name == opts.Weight {
			weightCol = col
			continue
		}
		attrs = append(attrs, inferAttribute(name, col, rows, opts.missing(), forced[name]))
		columns = append(columns, col)
	}
	if opts.Weight != "" && weightCol < 0 {
		return nil, fmt.Errorf("%w: weight column %q", ErrUnknownAttribute, opts.Weight)
	}

	d, err := New(opts.Relation, attrs)
	if err != nil {
		return nil, err
	}
	if err := assignClass(d, opts.Class); err != nil {
		return nil, err
	}

	for i, row := range rows {
		weight := 1.0
		if weightCol >= 0 {
			weight, err = strconv.ParseFloat(strings.TrimSpace(row[weightCol]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: weight %q", ErrInvalidValue, i+2, row[weightCol])
			}
		}
		values := make([]float64, len(attrs))
		for k, a := range attrs {
			values[k] = parseCell(a, row[columns[k]], opts.missing())
		}
		if _, err := d.Add(values, weight); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	return d, nil
}

// ReadCSVLike parses a CSV stream using the schema of an existing dataset, matching
// columns by name. Nominal values outside the known domain become missing values.
func ReadCSVLike(r io.Reader, template *Instances, opts CSVOptions) (*Instances, error) {
	header, rows, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	colByName := make(map[string]int, len(header))
	for col, name := range header {
		colByName[name] = col
	}

	weightCol := -1
	if opts.Weight != "" {
		c, ok := colByName[opts.Weight]
		if !ok {
			return nil, fmt.Errorf("%w: weight column %q", ErrUnknownAttribute, opts.Weight)
		}
		weightCol = c
	}

	d := template.EmptyCopy()
	unknown := 0
	for i, row := range rows {
		weight := 1.0
		if weightCol >= 0 {
			weight, err = strconv.ParseFloat(strings.TrimSpace(row[weightCol]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: weight %q", ErrInvalidValue, i+2, row[weightCol])
			}
		}
		values := make([]float64, template.NumAttributes())
		for k, a := range template.schema.attributes {
			col, ok := colByName[a.name]
			if !ok {
				values[k] = Missing
				continue
			}
			cell := strings.TrimSpace(row[col])
			values[k] = parseCell(a, cell, opts.missing())
			if IsMissing(values[k]) && cell != opts.missing() && cell != "" {
				unknown++
			}
		}
		if _, err := d.Add(values, weight); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	if unknown > 0 {
		logger.Warn("Mapped unknown values to missing", "relation", template.Relation(), "cells", unknown)
	}
	return d, nil
}

// LoadCSV reads a CSV file, inferring the schema.
func LoadCSV(path string, opts CSVOptions) (*Instances, error) {
	f, err := os.Open(path) //nolint:gosec // path is provided by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	if opts.Relation == "" {
		opts.Relation = strings.TrimSuffix(f.Name(), ".csv")
	}
	d, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return d, nil
}

// LoadCSVLike reads a CSV file using the schema of template.
func LoadCSVLike(path string, template *Instances, opts CSVOptions) (*Instances, error) {
	f, err := os.Open(path) //nolint:gosec // path is provided by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	d, err := ReadCSVLike(f, template, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return d, nil
}

func readRecords(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: no header row", ErrInvalidValue)
		}
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return header, rows, nil
}

func inferAttribute(name string, col int, rows [][]string, missing string, nominal bool) *Attribute {
	numeric := !nominal
	distinct := make(map[string]struct{})
	for _, row := range rows {
		cell := strings.TrimSpace(row[col])
		if cell == missing || cell == "" {
			continue
		}
		distinct[cell] = struct{}{}
		if numeric {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
			}
		}
	}
	if numeric && len(distinct) > 0 {
		return NewNumericAttribute(name)
	}
	values := make([]string, 0, len(distinct))
	for v := range distinct {
		values = append(values, v)
	}
	sort.Strings(values)
	return NewNominalAttribute(name, values)
}

func parseCell(a *Attribute, cell, missing string) float64 {
	cell = strings.TrimSpace(cell)
	if cell == missing || cell == "" {
		return Missing
	}
	if a.IsNumeric() {
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return Missing
		}
		return v
	}
	i, ok := a.IndexOfValue(cell)
	if !ok {
		return Missing
	}
	return float64(i)
}

func assignClass(d *Instances, class string) error {
	switch class {
	case "-":
		return nil
	case "":
		if d.NumAttributes() == 0 {
			return nil
		}
		return d.SetClassIndex(d.NumAttributes() - 1)
	default:
		return d.SetClass(class)
	}
}
