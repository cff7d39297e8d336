// Package tableio reads acquisition tables and normalized matrices from CSV
// and writes every result table back out as CSV.
package tableio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/RyanBlaney/tracequant/recording"
)

// ErrEmpty is returned for input without any rows
var ErrEmpty = errors.New("empty table")

// ReadTable reads a raw acquisition export: one header row of channel
// labels, then one row per timepoint. Cells are kept as text; only the
// selected signal columns are parsed as numbers.
func ReadTable(r io.Reader) (recording.Table, error) {
	records, err := readAll(r)
	if err != nil {
		return recording.Table{}, err
	}
	if len(records) == 0 {
		return recording.Table{}, ErrEmpty
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	return recording.Table{Header: header, Rows: records[1:]}, nil
}

// ReadRecording parses a headerless normalized matrix with one row per cell
func ReadRecording(name string, r io.Reader) (*recording.Recording, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}

	traces, err := parseRows(records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return recording.New(name, nil, traces)
}

func readAll(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	// row length is checked against the recording shape instead
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

// parseRows converts matrix records to floats
func parseRows(records [][]string) ([][]float64, error) {
	rows := make([][]float64, len(records))
	for i, rec := range records {
		row := make([]float64, len(rec))
		for j, cell := range rec {
			v, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", i+1, j+1, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return rows, nil
}

func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}
