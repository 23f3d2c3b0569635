package nn

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const defaultSigmaFloor = 1e-6

// Config describes a VarNeuralNetwork.
type Config struct {
	// Layers is the topology: input width, hidden widths, output width.
	// The network's final dense layer is 2x the last entry (mean + scale).
	Layers []int
	// LR is the Adam learning rate.
	LR float64
	// Lambda is the L2 regularization coefficient.
	Lambda float64
	// AdvEps enables fast-gradient-sign adversarial training when > 0.
	AdvEps float64
	// Soft0 scales the raw output before the softplus scale transform.
	// Defaults to 1.
	Soft0 float64
	// SigmaFloor is added to the softplus output so the predicted scale is
	// strictly positive. Defaults to 1e-6.
	SigmaFloor float64
	// Norm selects the input normalization mode (NormNone, NormCenter,
	// NormMeanStd). Defaults to NormNone.
	Norm string
	// NormBounds preloads normalization bounds, as when restoring a saved
	// model. Usually nil.
	NormBounds *NormBounds
	// Activation selects the hidden nonlinearity by name. Defaults to relu.
	Activation string
	// Rand is the RNG used for weight initialization. A nil value falls
	// back to a time-seeded source; pass an explicit one for
	// reproducibility.
	Rand *rand.Rand
}

// VarNeuralNetwork is a feed-forward regression network predicting a Normal
// distribution per output dimension. The last dense layer emits 2*nOut raw
// values; the first half is the mean, the second half goes through
// softplus(soft0*raw)+floor to become a strictly positive scale. Training
// minimizes the summed negative log-likelihood of the targets plus an L2
// penalty, optionally augmented with a fast-gradient-sign adversarial term.
type VarNeuralNetwork struct {
	layers     []int
	nOut       int
	lr         float64
	lam        float64
	advEps     float64
	soft0      float64
	sigmaFloor float64
	norm       string
	normBounds *NormBounds
	activator  Activator

	weights []*mat.Dense // layer i maps layers[i] -> layers[i+1] (in x out)
	biases  [][]float64

	opt *Adam
	rng *rand.Rand
}

// New builds a network from cfg, initializing weights with a
// Glorot-normal draw and biases at zero.
func New(cfg Config) (*VarNeuralNetwork, error) {
	if len(cfg.Layers) < 2 {
		return nil, fmt.Errorf("topology must have at least 2 layers (input and output), got %d", len(cfg.Layers))
	}
	for i, w := range cfg.Layers {
		if w <= 0 {
			return nil, fmt.Errorf("layer %d has non-positive width %d", i, w)
		}
	}
	norm := cfg.Norm
	if norm == "" {
		norm = NormNone
	}
	if norm != NormNone && norm != NormCenter && norm != NormMeanStd {
		return nil, fmt.Errorf("unknown normalization mode %q", norm)
	}
	actName := cfg.Activation
	if actName == "" {
		actName = "relu"
	}
	act, ok := ActivatorLookup[actName]
	if !ok {
		return nil, fmt.Errorf("unknown activation %q", actName)
	}
	soft0 := cfg.Soft0
	if soft0 == 0 {
		soft0 = 1
	}
	sigmaFloor := cfg.SigmaFloor
	if sigmaFloor == 0 {
		sigmaFloor = defaultSigmaFloor
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	v := &VarNeuralNetwork{
		layers:     append([]int(nil), cfg.Layers...),
		nOut:       cfg.Layers[len(cfg.Layers)-1],
		lr:         cfg.LR,
		lam:        cfg.Lambda,
		advEps:     cfg.AdvEps,
		soft0:      soft0,
		sigmaFloor: sigmaFloor,
		norm:       norm,
		normBounds: cfg.NormBounds,
		activator:  act,
		opt:        NewAdam(cfg.LR),
		rng:        rng,
	}
	v.initParameters()
	return v, nil
}

// Layers returns a copy of the topology.
func (v *VarNeuralNetwork) Layers() []int {
	return append([]int(nil), v.layers...)
}

// Summary returns a one-line description of the network.
func (v *VarNeuralNetwork) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "varnn %v", v.layers)
	fmt.Fprintf(&b, " (head 2x%d, %s, norm=%s, lr=%g, lambda=%g", v.nOut, v.activator, v.norm, v.lr, v.lam)
	if v.advEps > 0 {
		fmt.Fprintf(&b, ", adv_eps=%g", v.advEps)
	}
	b.WriteString(")")
	return b.String()
}

func (v *VarNeuralNetwork) initParameters() {
	nW := len(v.layers) - 1
	v.weights = make([]*mat.Dense, nW)
	v.biases = make([][]float64, nW)
	for i := 0; i < nW; i++ {
		in := v.layers[i]
		out := v.layers[i+1]
		if i == nW-1 {
			out = 2 * v.nOut
		}
		// Glorot-normal: stddev sqrt(2/(fan_in+fan_out))
		sd := math.Sqrt(2.0 / float64(in+out))
		data := make([]float64, in*out)
		for k := range data {
			data[k] = v.rng.NormFloat64() * sd
		}
		v.weights[i] = mat.NewDense(in, out, data)
		v.biases[i] = make([]float64, out)
	}
}

// forwardCache holds the per-layer intermediate values of one forward pass,
// reused by the backward pass.
type forwardCache struct {
	as    []*mat.Dense // activations; as[0] is the input batch
	zs    []*mat.Dense // pre-activations per dense layer
	mean  *mat.Dense   // n x nOut
	sraw  *mat.Dense   // raw scale half, n x nOut
	sigma *mat.Dense   // softplus-transformed scale, n x nOut
}

// forward runs the network on an already-normalized batch (rows = samples).
func (v *VarNeuralNetwork) forward(x *mat.Dense) *forwardCache {
	fc := &forwardCache{
		as: make([]*mat.Dense, 0, len(v.weights)+1),
		zs: make([]*mat.Dense, 0, len(v.weights)),
	}
	a := x
	fc.as = append(fc.as, a)
	for i, w := range v.weights {
		z := addRowVector(dot(a, w), v.biases[i])
		fc.zs = append(fc.zs, z)
		if i < len(v.weights)-1 {
			a = apply(v.activator.Activate, z)
		} else {
			a = z
		}
		fc.as = append(fc.as, a)
	}

	raw := fc.as[len(fc.as)-1]
	n, _ := raw.Dims()
	fc.mean = mat.DenseCopyOf(raw.Slice(0, n, 0, v.nOut))
	fc.sraw = mat.DenseCopyOf(raw.Slice(0, n, v.nOut, 2*v.nOut))
	fc.sigma = apply(func(i, j int, val float64) float64 {
		return softplus(v.soft0*val) + v.sigmaFloor
	}, fc.sraw)
	return fc
}

// nll is the summed Normal negative log-likelihood of target under the
// predicted (mean, sigma).
func nll(fc *forwardCache, target *mat.Dense) float64 {
	halfLog2Pi := 0.5 * math.Log(2*math.Pi)
	n, c := fc.mean.Dims()
	sum := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			d := target.At(i, j) - fc.mean.At(i, j)
			s := fc.sigma.At(i, j)
			sum += 0.5*(d/s)*(d/s) + math.Log(s) + halfLog2Pi
		}
	}
	return sum
}

// regularization returns lam * sum(p^2/2) over all weights and biases.
func (v *VarNeuralNetwork) regularization() float64 {
	sum := 0.0
	for i, w := range v.weights {
		r, c := w.Dims()
		for k := 0; k < r; k++ {
			for j := 0; j < c; j++ {
				val := w.At(k, j)
				sum += val * val
			}
		}
		for _, b := range v.biases[i] {
			sum += b * b
		}
	}
	return v.lam * 0.5 * sum
}

// backward backpropagates the NLL through the cached forward pass,
// returning the parameter gradients and the gradient with respect to the
// input batch.
func (v *VarNeuralNetwork) backward(fc *forwardCache, target *mat.Dense) (wG []*mat.Dense, bG [][]float64, xGrad *mat.Dense) {
	n, _ := fc.mean.Dims()
	nW := len(v.weights)
	wG = make([]*mat.Dense, nW)
	bG = make([][]float64, nW)

	// Gradient of the NLL at the raw output layer: [dL/dmean | dL/dsraw].
	delta := mat.NewDense(n, 2*v.nOut, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < v.nOut; j++ {
			d := target.At(i, j) - fc.mean.At(i, j)
			s := fc.sigma.At(i, j)
			delta.Set(i, j, -d/(s*s))
			dSigma := 1.0/s - d*d/(s*s*s)
			dRaw := dSigma * v.soft0 * sigmoid(v.soft0*fc.sraw.At(i, j))
			delta.Set(i, j+v.nOut, dRaw)
		}
	}

	for i := nW - 1; i >= 0; i-- {
		wG[i] = dot(fc.as[i].T(), delta)
		bG[i] = colSums(delta)
		if i > 0 {
			delta = multiply(dot(delta, v.weights[i].T()), apply(v.activator.Prime, fc.zs[i-1]))
		} else {
			xGrad = dot(delta, v.weights[0].T())
		}
	}
	return wG, bG, xGrad
}

func (v *VarNeuralNetwork) addRegGrads(wG []*mat.Dense, bG [][]float64) {
	for i := range wG {
		wG[i] = add(wG[i], scale(v.lam, v.weights[i]))
		for j := range bG[i] {
			bG[i][j] += v.lam * v.biases[i][j]
		}
	}
}

func accumulate(dst, src []*mat.Dense, dstB, srcB [][]float64) {
	for i := range dst {
		dst[i] = add(dst[i], src[i])
		for j := range dstB[i] {
			dstB[i][j] += srcB[i][j]
		}
	}
}

// step performs one full-batch optimization step on a normalized batch and
// returns the loss value it minimized.
func (v *VarNeuralNetwork) step(x, target *mat.Dense) float64 {
	fc := v.forward(x)
	loss := nll(fc, target) + v.regularization()
	wG, bG, xGrad := v.backward(fc, target)
	v.addRegGrads(wG, bG)

	if v.advEps > 0 {
		// Fast-gradient-sign perturbation of the inputs; the perturbed
		// batch is a constant with respect to the parameters.
		xAdv := add(x, scale(v.advEps, signMat(xGrad)))
		fcAdv := v.forward(xAdv)
		loss += nll(fcAdv, target) + v.regularization()
		wGAdv, bGAdv, _ := v.backward(fcAdv, target)
		v.addRegGrads(wGAdv, bGAdv)
		accumulate(wG, wGAdv, bG, bGAdv)
	}

	v.opt.Step(v.paramSlices(), gradSlices(wG, bG))
	return loss
}

func (v *VarNeuralNetwork) paramSlices() [][]float64 {
	out := make([][]float64, 0, 2*len(v.weights))
	for i, w := range v.weights {
		out = append(out, w.RawMatrix().Data, v.biases[i])
	}
	return out
}

func gradSlices(wG []*mat.Dense, bG [][]float64) [][]float64 {
	out := make([][]float64, 0, 2*len(wG))
	for i, g := range wG {
		out = append(out, g.RawMatrix().Data, bG[i])
	}
	return out
}

// Fit trains the network on (x, target) for a fixed number of full-batch
// epochs, reporting every epoch's loss to lg. Numeric degeneracy (NaN/Inf
// losses) is not intercepted; it propagates to the predictions.
func (v *VarNeuralNetwork) Fit(x, target *mat.Dense, epochs int, lg TrainLogger) float64 {
	lg.LogTrainStart()

	v.SetNormalizeBounds(x)
	xn := v.Normalize(x)
	v.opt.Reset()

	var loss float64
	for epoch := 0; epoch < epochs; epoch++ {
		loss = v.step(xn, target)
		lg.LogTrainEpoch(epoch, loss)
	}

	lg.LogTrainEnd(epochs, loss)
	return loss
}

// FitSimple is Fit without a logger.
func (v *VarNeuralNetwork) FitSimple(x, target *mat.Dense, epochs int) float64 {
	v.SetNormalizeBounds(x)
	xn := v.Normalize(x)
	v.opt.Reset()

	var loss float64
	for epoch := 0; epoch < epochs; epoch++ {
		loss = v.step(xn, target)
	}
	return loss
}

// Predict returns the predicted mean and variance for each input row.
// Inputs are normalized with the stored bounds.
func (v *VarNeuralNetwork) Predict(x *mat.Dense) (mean, variance *mat.Dense) {
	fc := v.forward(v.Normalize(x))
	variance = multiply(fc.sigma, fc.sigma)
	return fc.mean, variance
}

// PredictDist returns the full predicted distribution, one Normal per
// output dimension per input row.
func (v *VarNeuralNetwork) PredictDist(x *mat.Dense) [][]distuv.Normal {
	fc := v.forward(v.Normalize(x))
	n, c := fc.mean.Dims()
	dists := make([][]distuv.Normal, n)
	for i := 0; i < n; i++ {
		dists[i] = make([]distuv.Normal, c)
		for j := 0; j < c; j++ {
			dists[i][j] = distuv.Normal{Mu: fc.mean.At(i, j), Sigma: fc.sigma.At(i, j)}
		}
	}
	return dists
}
