package nn

import "math"

// Adam is an adaptive moment-based gradient descent optimizer over flat
// float64 parameter slices.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * g
//	v_t = beta2 * v_{t-1} + (1-beta2) * g²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014).
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int
	m     [][]float64 // first moment, parallel to the parameter slices
	v     [][]float64 // second moment
}

// NewAdam creates an Adam optimizer with the standard beta1=0.9,
// beta2=0.999, eps=1e-8 defaults.
func NewAdam(lr float64) *Adam {
	return &Adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
	}
}

// Step applies one Adam update in place. params and grads are parallel
// slices-of-slices; moment state is allocated lazily on the first call.
func (a *Adam) Step(params, grads [][]float64) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for k, p := range params {
			a.m[k] = make([]float64, len(p))
			a.v[k] = make([]float64, len(p))
		}
	}

	a.t++
	bc1 := 1.0 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1.0 - math.Pow(a.beta2, float64(a.t))

	for k, p := range params {
		g := grads[k]
		m := a.m[k]
		v := a.v[k]
		for i := range p {
			m[i] = a.beta1*m[i] + (1.0-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1.0-a.beta2)*g[i]*g[i]
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			p[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}

// Reset drops the moment estimates and the timestep, so a re-fit starts
// from fresh optimizer state.
func (a *Adam) Reset() {
	a.t = 0
	a.m = nil
	a.v = nil
}

// Timestep returns the number of updates applied since the last reset.
func (a *Adam) Timestep() int {
	return a.t
}
