package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a simple n-D array backed by a flat []float64.
// It is the serialization-facing array type: model weights and snapshot
// ensembles cross package boundaries as Tensors, while the numeric kernels
// work on gonum matrices.
type Tensor struct {
	Data  []float64
	Shape []int
}

// New allocates a Tensor of given shape (product of dims = len(Data)).
func New(shape ...int) *Tensor {
	// Compute total size
	total := 1
	for _, d := range shape {
		total *= d
	}
	return &Tensor{
		Data:  make([]float64, total),
		Shape: append([]int(nil), shape...),
	}
}

// NewWithData creates a 1-D tensor from existing data slice.
func NewWithData(data []float64) *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: []int{len(data)},
	}
}

// FromDense copies a gonum matrix into a fresh 2-D tensor.
func FromDense(m *mat.Dense) *Tensor {
	r, c := m.Dims()
	t := New(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			t.Data[i*c+j] = m.At(i, j)
		}
	}
	return t
}

// Dense converts a 2-D tensor back into a gonum matrix.
func (t *Tensor) Dense() (*mat.Dense, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Dense requires a 2-D tensor, got shape %v", t.Shape)
	}
	return mat.NewDense(t.Shape[0], t.Shape[1], append([]float64(nil), t.Data...)), nil
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), t.Data...),
		Shape: append([]int(nil), t.Shape...),
	}
}

// At returns the element at the given indices.
// For a 3-D tensor [a, b, c], At(i, j, k) returns the element at position [i][j][k].
func (t *Tensor) At(indices ...int) float64 {
	return t.Data[t.index(indices)]
}

// Set sets the element at the given indices to the given value.
func (t *Tensor) Set(value float64, indices ...int) {
	t.Data[t.index(indices)] = value
}

func (t *Tensor) index(indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.Shape), len(indices)))
	}
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of bounds for dimension %d (shape: %v)", indices[i], i, t.Shape))
		}
		idx += indices[i] * stride
		stride *= t.Shape[i]
	}
	return idx
}
