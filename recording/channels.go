package recording

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/RyanBlaney/tracequant/config"
)

// Table is a raw acquisition export: labeled columns, one row per timepoint.
// Cells stay text until a column is selected, so non-signal columns such as
// timestamps or labels never need to be numeric.
type Table struct {
	Header []string
	Rows   [][]string
}

// SelectChannels keeps the columns whose label starts with the signal prefix,
// drops the trailing reference channel when at least cfg.DropTrailingAt signal
// columns exist, and transposes the result to one trace per cell.
func SelectChannels(name string, table Table, cfg config.ChannelConfig) (*Recording, error) {
	var columns []int
	for i, label := range table.Header {
		if strings.HasPrefix(label, cfg.SignalPrefix) {
			columns = append(columns, i)
		}
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%s: %w (prefix %q)", name, ErrNoSignalColumns, cfg.SignalPrefix)
	}
	if cfg.DropTrailingAt > 0 && len(columns) >= cfg.DropTrailingAt {
		columns = columns[:len(columns)-1]
	}

	channels := make([]string, len(columns))
	traces := make([][]float64, len(columns))
	for c, col := range columns {
		channels[c] = table.Header[col]
		traces[c] = make([]float64, len(table.Rows))
	}

	for t, row := range table.Rows {
		if len(row) != len(table.Header) {
			return nil, fmt.Errorf("%s: %w: row %d has %d values for %d columns", name, ErrShape, t, len(row), len(table.Header))
		}
		for c, col := range columns {
			v, err := parseCell(row[col])
			if err != nil {
				return nil, fmt.Errorf("%s: %w: row %d column %q: %v", name, ErrShape, t, table.Header[col], err)
			}
			traces[c][t] = v
		}
	}

	return New(name, channels, traces)
}

// parseCell reads an empty cell as NaN
func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

// RemoveStackOffsets undoes the vertical display offsets of stacked exports:
// channel i of n is shifted down by (n-(i+1))*step
func RemoveStackOffsets(rec *Recording, step float64) (*Recording, error) {
	n := rec.Cells()
	traces := make([][]float64, n)

	for i, tr := range rec.Traces {
		shift := float64(n-(i+1)) * step
		traces[i] = make([]float64, len(tr))
		for t, v := range tr {
			traces[i][t] = v - shift
		}
	}

	return rec.Derive(traces)
}
