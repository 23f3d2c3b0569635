// Package pod implements Proper Orthogonal Decomposition of solution
// snapshots and the surrogate model pipeline built on top of it: snapshots
// are projected onto a truncated orthonormal basis, a small ensemble of
// variance-aware networks regresses parameters to reduced coefficients, and
// predictions are lifted back to the full field with an uncertainty
// estimate.
package pod

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Basis computes the truncated POD basis of a snapshot matrix u
// (rows = degrees of freedom, columns = samples) via thin SVD.
//
// When nL > 0 exactly nL modes are kept. Otherwise the smallest L is chosen
// such that the discarded fraction of squared singular-value energy does
// not exceed eps.
func Basis(u *mat.Dense, eps float64, nL int) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(u, mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd factorization failed")
	}
	s := svd.Values(nil)
	var left mat.Dense
	svd.UTo(&left)

	l := nL
	if l <= 0 {
		l = truncationRank(s, eps)
	}
	if l > len(s) {
		l = len(s)
	}

	nH, _ := left.Dims()
	return mat.DenseCopyOf(left.Slice(0, nH, 0, l)), nil
}

// Project maps snapshots onto the basis: V = Phi^T U.
func Project(phi, u *mat.Dense) *mat.Dense {
	_, l := phi.Dims()
	_, nS := u.Dims()
	v := mat.NewDense(l, nS, nil)
	v.Product(phi.T(), u)
	return v
}

// Reconstruct lifts reduced coefficients back to the full field: U = Phi V.
func Reconstruct(phi, v *mat.Dense) *mat.Dense {
	nH, _ := phi.Dims()
	_, nS := v.Dims()
	u := mat.NewDense(nH, nS, nil)
	u.Product(phi, v)
	return u
}

// truncationRank returns the smallest mode count whose discarded energy
// fraction is at most eps. eps <= 0 keeps every mode.
func truncationRank(s []float64, eps float64) int {
	total := 0.0
	for _, v := range s {
		total += v * v
	}
	if total == 0 || eps <= 0 {
		return len(s)
	}
	kept := 0.0
	for l, v := range s {
		kept += v * v
		if (total-kept)/total <= eps {
			return l + 1
		}
	}
	return len(s)
}

// varianceToStd returns the element-wise square root of a full-field
// variance matrix.
func varianceToStd(v *mat.Dense) *mat.Dense {
	r, c := v.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, val float64) float64 {
		return math.Sqrt(val)
	}, v)
	return out
}
