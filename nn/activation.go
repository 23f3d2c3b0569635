package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Activator is the hidden-layer nonlinearity, expressed as an element-wise
// forward function and its derivative on the pre-activation.
type Activator interface {
	Activate(i, j int, v float64) float64
	Prime(i, j int, v float64) float64
	fmt.Stringer
}

var ActivatorLookup = map[string]Activator{
	"relu": ReLU{},
	"tanh": Tanh{},
}

type ReLU struct{}

func (r ReLU) Activate(i, j int, v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

func (r ReLU) Prime(i, j int, v float64) float64 {
	if v > 0 {
		return 1
	}
	return 0
}

func (r ReLU) String() string {
	return "relu"
}

type Tanh struct{}

func (t Tanh) Activate(i, j int, v float64) float64 {
	return math.Tanh(v)
}

func (t Tanh) Prime(i, j int, v float64) float64 {
	th := math.Tanh(v)
	return 1 - th*th
}

func (t Tanh) String() string {
	return "tanh"
}

// softplus computes log(1+exp(x)) without overflowing for large x.
func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func signMat(m *mat.Dense) *mat.Dense {
	return apply(func(i, j int, v float64) float64 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		}
		return 0
	}, m)
}
