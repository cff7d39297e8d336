package tableio

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/RyanBlaney/tracequant/recording"
)

// Output naming conventions shared by the CLI and the batch tables
const (
	NormalizedSuffix = "_normalized.csv"
	TraceSuffix      = "_average_neuronal_properties.csv"
	RawSuffix        = "_raw_neuronal_properties.csv"
	OnsetsSuffix     = "_stimulus_onsets.csv"
	PeaksSuffix      = "_stimulus_peaks.csv"
	SortedSuffix     = "_sorted_traces.csv"

	AreaBinCountsFile = "auc_bin_counts.csv"
	PeakBinCountsFile = "peak_bin_counts.csv"
	AveragesFile      = "averages_per_file.csv"
	AmplitudesFile    = "response_amplitudes.csv"
	GroupsFile        = "cumulative_probability.csv"
	CellCountsFile    = "cell_counts.csv"
	CorrelationsFile  = "average_correlations.csv"
)

// maxFileSize bounds a single input table
const maxFileSize = 512 << 20

// Dir reads inputs from and writes tables into one directory
type Dir struct {
	Root string
}

// List returns the names of regular files ending in suffix, sorted
func (d Dir) List(suffix string) ([]string, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.Root, err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// ReadTable reads a raw acquisition table
func (d Dir) ReadTable(name string) (recording.Table, error) {
	f, err := d.open(name)
	if err != nil {
		return recording.Table{}, err
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return recording.Table{}, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// ReadRecording reads a headerless normalized matrix
func (d Dir) ReadRecording(name string) (*recording.Recording, error) {
	f, err := d.open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadRecording(name, f)
}

// WriteTable creates name in the directory and fills it through fill.
// The file is written under a temporary name and renamed on success.
func (d Dir) WriteTable(name string, fill func(*Writer)) error {
	path := filepath.Join(d.Root, name)
	tmp, err := os.CreateTemp(d.Root, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	w := NewWriter(tmp)
	fill(w)
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (d Dir) open(name string) (*os.File, error) {
	path := filepath.Join(d.Root, name)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("%s: file too large (%d bytes, max %d)", name, info.Size(), maxFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// Stem strips the extension, or suffix when the name ends with it
func Stem(name, suffix string) string {
	if suffix != "" && strings.HasSuffix(name, suffix) {
		return strings.TrimSuffix(name, suffix)
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
