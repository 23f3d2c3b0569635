package pod

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// rankKSnapshots builds snapshots that are exact combinations of k smooth
// modes, so the POD basis of rank k reconstructs them exactly.
func rankKSnapshots(rng *rand.Rand, nH, nS, k int) *mat.Dense {
	modes := mat.NewDense(nH, k, nil)
	for i := 0; i < nH; i++ {
		t := float64(i) / float64(nH-1)
		for j := 0; j < k; j++ {
			modes.Set(i, j, math.Sin(math.Pi*float64(j+1)*t))
		}
	}
	coeffs := mat.NewDense(k, nS, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < nS; j++ {
			coeffs.Set(i, j, rng.NormFloat64())
		}
	}
	u := mat.NewDense(nH, nS, nil)
	u.Product(modes, coeffs)
	return u
}

func TestBasisOrthonormal(t *testing.T) {
	u := rankKSnapshots(rand.New(rand.NewSource(1)), 50, 20, 3)
	phi, err := Basis(u, 1e-10, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, l := phi.Dims()
	gram := mat.NewDense(l, l, nil)
	gram.Product(phi.T(), phi)
	for i := 0; i < l; i++ {
		for j := 0; j < l; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(gram.At(i, j)-want) > 1e-10 {
				t.Fatalf("gram(%d,%d) = %g, want %g", i, j, gram.At(i, j), want)
			}
		}
	}
}

func TestBasisTruncatesToRank(t *testing.T) {
	u := rankKSnapshots(rand.New(rand.NewSource(2)), 50, 20, 3)
	phi, err := Basis(u, 1e-10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, l := phi.Dims(); l != 3 {
		t.Errorf("kept %d modes, want 3", l)
	}
}

func TestBasisFixedModeCount(t *testing.T) {
	u := rankKSnapshots(rand.New(rand.NewSource(3)), 50, 20, 5)
	phi, err := Basis(u, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, l := phi.Dims(); l != 2 {
		t.Errorf("kept %d modes, want 2", l)
	}
}

func TestProjectReconstructExactForFullRank(t *testing.T) {
	u := rankKSnapshots(rand.New(rand.NewSource(4)), 40, 15, 4)
	phi, err := Basis(u, 1e-12, 0)
	if err != nil {
		t.Fatal(err)
	}
	uRec := Reconstruct(phi, Project(phi, u))

	nH, nS := u.Dims()
	for i := 0; i < nH; i++ {
		for j := 0; j < nS; j++ {
			if math.Abs(u.At(i, j)-uRec.At(i, j)) > 1e-8 {
				t.Fatalf("reconstruction differs at (%d,%d): %g vs %g", i, j, u.At(i, j), uRec.At(i, j))
			}
		}
	}
}
