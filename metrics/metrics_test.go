package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestRESelf(t *testing.T) {
	u := []float64{1, -2, 3}
	if got := RE(u, u); got != 0 {
		t.Errorf("RE(u, u) = %g, want 0", got)
	}
}

func TestREMaxBoundedByRE(t *testing.T) {
	u := []float64{1, 2, 3}
	// uPred has the larger norm, so REMax divides by it.
	uPred := []float64{2, 4, 6}
	re := RE(u, uPred)
	reMax := REMax(u, uPred)
	if reMax > re {
		t.Errorf("REMax = %g exceeds RE = %g", reMax, re)
	}
}

func TestREKnownValue(t *testing.T) {
	u := []float64{3, 4}
	uPred := []float64{0, 0}
	if got := RE(u, uPred); math.Abs(got-1) > 1e-15 {
		t.Errorf("RE = %g, want 1", got)
	}
}

func TestRESAveragesColumns(t *testing.T) {
	u := mat.NewDense(2, 2, []float64{3, 3, 4, 4})
	uPred := mat.NewDense(2, 2, []float64{3, 0, 4, 0})
	// Column 0 exact, column 1 completely wrong: average is 0.5.
	if got := RES(u, uPred, false); math.Abs(got-0.5) > 1e-15 {
		t.Errorf("RES = %g, want 0.5", got)
	}
}

func TestREMeanStdExactEnsembles(t *testing.T) {
	u := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	errMean, errStd := REMeanStd(u, mat.DenseCopyOf(u))
	if errMean != 0 || errStd != 0 {
		t.Errorf("errMean = %g, errStd = %g, want 0, 0", errMean, errStd)
	}
}

func TestREMeanStdDetectsVarianceMismatch(t *testing.T) {
	u := mat.NewDense(1, 4, []float64{1, 2, 3, 4})
	// Same mean, double the spread.
	uPred := mat.NewDense(1, 4, []float64{0, 1.5, 3.5, 5})
	errMean, errStd := REMeanStd(u, uPred)
	if math.Abs(errMean) > 1e-12 {
		t.Errorf("errMean = %g, want ~0", errMean)
	}
	if errStd < 0.5 {
		t.Errorf("errStd = %g, want a large mismatch", errStd)
	}
}

func TestRelErrorMeanIgnoresUndefined(t *testing.T) {
	u := mat.NewDense(1, 3, []float64{0, 2, 2})
	uPred := mat.NewDense(1, 3, []float64{0, 1, 2})
	// The 0/0 entry is skipped; remaining errors are 0.5 and 0.
	if got := RelErrorMean(u, uPred); math.Abs(got-0.25) > 1e-15 {
		t.Errorf("RelErrorMean = %g, want 0.25", got)
	}
}

func TestMSE(t *testing.T) {
	v := mat.NewDense(2, 1, []float64{1, 3})
	vPred := mat.NewDense(2, 1, []float64{2, 1})
	// ((1)^2 + (2)^2) / 2
	if got := MSE(v, vPred); math.Abs(got-2.5) > 1e-15 {
		t.Errorf("MSE = %g, want 2.5", got)
	}
}
