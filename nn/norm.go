package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Input normalization modes.
const (
	NormNone    = "none"
	NormCenter  = "center"
	NormMeanStd = "meanstd"
)

// NormBounds holds the per-dimension normalization bounds computed from the
// training inputs. For NormCenter they are (min, max); for NormMeanStd they
// are (mean, std).
type NormBounds struct {
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// SetNormalizeBounds computes the normalization bounds from a batch of
// inputs (rows are samples). Bounds are computed once: repeated calls after
// the first fit are no-ops, which keeps train and inference time consistent.
func (v *VarNeuralNetwork) SetNormalizeBounds(x *mat.Dense) {
	if v.norm == NormNone || v.normBounds != nil {
		return
	}
	r, c := x.Dims()
	lower := make([]float64, c)
	upper := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		switch v.norm {
		case NormCenter:
			lower[j], upper[j] = minMax(col)
		case NormMeanStd:
			m := stat.Mean(col, nil)
			lower[j] = m
			// numpy-style population std, not the sample estimator
			upper[j] = math.Sqrt(stat.MomentAbout(2, col, m, nil))
		}
	}
	v.normBounds = &NormBounds{Lower: lower, Upper: upper}
}

// Normalize applies the stored bounds to x and returns a new matrix.
// Identity when the mode is none or no bounds have been set. A zero std in
// meanstd mode produces Inf/NaN; degenerate dimensions are the caller's
// problem.
func (v *VarNeuralNetwork) Normalize(x *mat.Dense) *mat.Dense {
	if v.normBounds == nil {
		return mat.DenseCopyOf(x)
	}
	lb, ub := v.normBounds.Lower, v.normBounds.Upper
	switch v.norm {
	case NormCenter:
		return apply(func(i, j int, val float64) float64 {
			return (val - lb[j]) - 0.5*(ub[j]-lb[j])
		}, x)
	case NormMeanStd:
		return apply(func(i, j int, val float64) float64 {
			return (val - lb[j]) / ub[j]
		}, x)
	}
	return mat.DenseCopyOf(x)
}

// NormalizeBounds returns the stored bounds, nil before the first fit.
func (v *VarNeuralNetwork) NormalizeBounds() *NormBounds {
	return v.normBounds
}

func minMax(x []float64) (float64, float64) {
	lo, hi := x[0], x[0]
	for _, val := range x[1:] {
		if val < lo {
			lo = val
		}
		if val > hi {
			hi = val
		}
	}
	return lo, hi
}
