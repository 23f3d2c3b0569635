package nn

import "gonum.org/v1/gonum/mat"

// Small helpers over gonum matrices so the forward/backward passes read
// close to the math.

func dot(a, b mat.Matrix) *mat.Dense {
	r, _ := a.Dims()
	_, c := b.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(a, b)
	return o
}

func apply(fn func(i, j int, v float64) float64, m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(fn, m)
	return o
}

func scale(s float64, m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Scale(s, m)
	return o
}

func multiply(m, n mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.MulElem(m, n)
	return o
}

func add(m, n mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Add(m, n)
	return o
}

// addRowVector adds v to every row of m (bias broadcast).
func addRowVector(m *mat.Dense, v []float64) *mat.Dense {
	return apply(func(i, j int, x float64) float64 {
		return x + v[j]
	}, m)
}

// colSums returns the per-column sum of m.
func colSums(m mat.Matrix) []float64 {
	r, c := m.Dims()
	sums := make([]float64, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			sums[j] += m.At(i, j)
		}
	}
	return sums
}
