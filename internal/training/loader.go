// Package training ingests historical (feature vector, realized outcome)
// records for offline model training. The parser is strict and
// schema-validated: malformed rows are collected and skipped, and nothing
// externally supplied is ever evaluated as code.
package training

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/signalworks/sibyl/internal/feature"
	"github.com/signalworks/sibyl/internal/scoring"
)

const intentColumn = "intent"

// RowError records a rejected training row.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ParseFile reads a CSV of historical outcomes. The header must contain an
// "intent" column; every other column must be a schema feature name. Rows
// with unparseable values or unknown intent labels are rejected
// individually, never the whole file.
func ParseFile(path string) ([]scoring.Example, []RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open training data: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads training records from r in CSV form.
func Parse(r io.Reader) ([]scoring.Example, []RowError, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	intentIdx := -1
	for i, col := range header {
		name := strings.TrimSpace(col)
		if name == intentColumn {
			intentIdx = i
			continue
		}
		if !feature.Known(name) {
			return nil, nil, fmt.Errorf("column %q is not in feature schema %s", name, feature.SchemaVersion)
		}
	}
	if intentIdx < 0 {
		return nil, nil, fmt.Errorf("training data has no %q column", intentColumn)
	}

	var examples []scoring.Example
	var rowErrs []RowError

	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}

		ex, err := parseRow(header, intentIdx, record)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}
		examples = append(examples, ex)
	}

	return examples, rowErrs, nil
}

func parseRow(header []string, intentIdx int, record []string) (scoring.Example, error) {
	if len(record) != len(header) {
		return scoring.Example{}, fmt.Errorf("expected %d fields, got %d", len(header), len(record))
	}

	intent := strings.TrimSpace(record[intentIdx])
	if scoring.ClassIndex(intent) < 0 {
		return scoring.Example{}, fmt.Errorf("unknown intent %q", intent)
	}

	vec := feature.NewVector()
	for i, cell := range record {
		if i == intentIdx {
			continue
		}
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue // absent feature, stays absent
		}
		x, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			// Booleans are accepted as true/false in historical exports.
			b, berr := strconv.ParseBool(cell)
			if berr != nil {
				return scoring.Example{}, fmt.Errorf("field %q: %w", header[i], err)
			}
			if b {
				x = 1
			}
		}
		if err := vec.Set(strings.TrimSpace(header[i]), x); err != nil {
			return scoring.Example{}, err
		}
	}

	return scoring.Example{Vector: vec, Intent: intent}, nil
}
