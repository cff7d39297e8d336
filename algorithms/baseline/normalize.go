package baseline

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/tracequant/algorithms/common"
	"github.com/RyanBlaney/tracequant/config"
	"github.com/RyanBlaney/tracequant/recording"
)

// ErrLengthMismatch is returned when a signal and its baseline differ in length
var ErrLengthMismatch = errors.New("signal and baseline lengths differ")

// Normalize computes (S - B) / (B + offset) elementwise. Non-finite results
// from zero or negative denominators become 0.
// Downstream thresholds assume this exact formula, not ΔF/F.
func Normalize(signal, base []float64, offset float64) ([]float64, error) {
	if len(signal) != len(base) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(signal), len(base))
	}

	out := make([]float64, len(signal))
	for i := range signal {
		out[i] = (signal[i] - base[i]) / (base[i] + offset)
	}
	common.SanitizeFinite(out, 0)

	return out, nil
}

// Normalizer runs the estimator and the normalization over whole recordings
type Normalizer struct {
	estimator *Estimator
	offset    float64
}

// NewNormalizer creates a normalizer from the baseline configuration
func NewNormalizer(cfg config.BaselineConfig) *Normalizer {
	return &Normalizer{
		estimator: NewEstimator(cfg),
		offset:    cfg.Offset,
	}
}

// NormalizeTrace returns the normalized trace and the baseline it used
func (n *Normalizer) NormalizeTrace(trace []float64) (normalized, base []float64) {
	base = n.estimator.Compute(trace)
	// lengths always match here
	normalized, _ = Normalize(trace, base, n.offset)
	return normalized, base
}

// NormalizeRecording normalizes each trace independently and returns the
// normalized matrix as a new recording
func (n *Normalizer) NormalizeRecording(rec *recording.Recording) (*recording.Recording, error) {
	traces := make([][]float64, rec.Cells())
	for i, tr := range rec.Traces {
		traces[i], _ = n.NormalizeTrace(tr)
	}
	return rec.Derive(traces)
}
