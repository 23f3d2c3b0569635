package pod

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"poduqnn/nn"
)

// ModelConfig describes the surrogate pipeline.
type ModelConfig struct {
	// Eps is the allowed discarded-energy fraction of the POD truncation.
	Eps float64
	// NL fixes the number of POD modes when > 0, overriding Eps.
	NL int
	// NModels is the ensemble size. Defaults to 1.
	NModels int
	// HLayers are the hidden-layer widths of each ensemble member.
	HLayers []int
	// LR, Lambda, AdvEps, Soft0 and Norm are passed through to nn.Config.
	LR     float64
	Lambda float64
	AdvEps float64
	Soft0  float64
	Norm   string
	// Seed is the base RNG seed; member i is initialized from Seed+i.
	Seed int64
}

// Model is a POD + regression-ensemble surrogate. It owns the truncated
// basis and NModels variance-aware networks mapping PDE parameters to
// reduced coefficients.
type Model struct {
	cfg   ModelConfig
	basis *mat.Dense
	nets  []*nn.VarNeuralNetwork
}

// NewModel validates the configuration. The basis and the networks are
// built by GenerateDataset and Train.
func NewModel(cfg ModelConfig) (*Model, error) {
	if cfg.NModels == 0 {
		cfg.NModels = 1
	}
	if cfg.NModels < 0 {
		return nil, fmt.Errorf("ensemble size must be positive, got %d", cfg.NModels)
	}
	if len(cfg.HLayers) == 0 {
		return nil, fmt.Errorf("at least one hidden layer is required")
	}
	return &Model{cfg: cfg}, nil
}

// Basis returns the truncated POD basis, nil before GenerateDataset.
func (m *Model) Basis() *mat.Dense {
	return m.basis
}

// GenerateDataset computes the POD basis from the snapshot matrix u
// (rows = degrees of freedom, columns = samples), projects the snapshots to
// reduced coefficients and splits parameters/coefficients into train and
// validation sets. x holds one parameter sample per row, aligned with the
// columns of u. uVal keeps the full-field validation snapshots for error
// reporting.
func (m *Model) GenerateDataset(x, u *mat.Dense, trainRatio float64) (xTrain, vTrain, xVal, vVal, uVal *mat.Dense, err error) {
	nS, nP := x.Dims()
	nH, nU := u.Dims()
	if nU != nS {
		return nil, nil, nil, nil, nil, fmt.Errorf("parameter rows (%d) and snapshot columns (%d) differ", nS, nU)
	}
	if trainRatio <= 0 || trainRatio >= 1 {
		return nil, nil, nil, nil, nil, fmt.Errorf("train ratio must be in (0, 1), got %g", trainRatio)
	}

	m.basis, err = Basis(u, m.cfg.Eps, m.cfg.NL)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	v := Project(m.basis, u) // L x nS
	l, _ := v.Dims()

	nTrain := int(trainRatio * float64(nS))
	if nTrain < 1 || nTrain >= nS {
		return nil, nil, nil, nil, nil, fmt.Errorf("split of %d samples at ratio %g leaves an empty set", nS, trainRatio)
	}

	xTrain = mat.DenseCopyOf(x.Slice(0, nTrain, 0, nP))
	xVal = mat.DenseCopyOf(x.Slice(nTrain, nS, 0, nP))
	// Network targets are row-per-sample, so the coefficient blocks are
	// transposed out of the L x nS layout.
	vTrain = transpose(v.Slice(0, l, 0, nTrain))
	vVal = transpose(v.Slice(0, l, nTrain, nS))
	uVal = mat.DenseCopyOf(u.Slice(0, nH, nTrain, nS))
	return xTrain, vTrain, xVal, vVal, uVal, nil
}

// Train fits every ensemble member on the projected training set. Each
// member gets its own deterministic seed. lg may be nil; when set it
// receives the epoch reports of every member in turn.
func (m *Model) Train(xTrain, vTrain *mat.Dense, epochs int, lg nn.TrainLogger) error {
	_, nIn := xTrain.Dims()
	_, nOut := vTrain.Dims()
	layers := make([]int, 0, len(m.cfg.HLayers)+2)
	layers = append(layers, nIn)
	layers = append(layers, m.cfg.HLayers...)
	layers = append(layers, nOut)

	m.nets = m.nets[:0]
	for i := 0; i < m.cfg.NModels; i++ {
		net, err := nn.New(nn.Config{
			Layers: layers,
			LR:     m.cfg.LR,
			Lambda: m.cfg.Lambda,
			AdvEps: m.cfg.AdvEps,
			Soft0:  m.cfg.Soft0,
			Norm:   m.cfg.Norm,
			Rand:   rand.New(rand.NewSource(m.cfg.Seed + int64(i))),
		})
		if err != nil {
			return fmt.Errorf("ensemble member %d: %w", i, err)
		}
		// Registered before fitting so a validation callback can predict
		// with the members trained so far.
		m.nets = append(m.nets, net)
		if lg != nil {
			net.Fit(xTrain, vTrain, epochs, lg)
		} else {
			net.FitSimple(xTrain, vTrain, epochs)
		}
	}
	return nil
}

// Nets returns the trained ensemble members.
func (m *Model) Nets() []*nn.VarNeuralNetwork {
	return m.nets
}

// NewModelFromParts rebuilds a prediction-only model from a saved basis and
// ensemble, as loaded from persisted artifacts.
func NewModelFromParts(basis *mat.Dense, nets []*nn.VarNeuralNetwork) (*Model, error) {
	if basis == nil {
		return nil, fmt.Errorf("nil basis")
	}
	if len(nets) == 0 {
		return nil, fmt.Errorf("empty ensemble")
	}
	return &Model{basis: basis, nets: nets}, nil
}

// PredictV returns the ensemble's mixture mean and variance of the reduced
// coefficients for each parameter row of x.
func (m *Model) PredictV(x *mat.Dense) (mean, variance *mat.Dense, err error) {
	if len(m.nets) == 0 {
		return nil, nil, fmt.Errorf("model has not been trained")
	}
	n, _ := x.Dims()
	var nOut int

	// Mixture of Gaussians: mean of member means; variance by the law of
	// total variance over the member distributions.
	var mixMean, second *mat.Dense
	for _, net := range m.nets {
		mu, va := net.Predict(x)
		if mixMean == nil {
			_, nOut = mu.Dims()
			mixMean = mat.NewDense(n, nOut, nil)
			second = mat.NewDense(n, nOut, nil)
		}
		mixMean.Add(mixMean, mu)
		second.Apply(func(i, j int, val float64) float64 {
			return val + va.At(i, j) + mu.At(i, j)*mu.At(i, j)
		}, second)
	}
	invM := 1.0 / float64(len(m.nets))
	mixMean.Scale(invM, mixMean)
	variance = mat.NewDense(n, nOut, nil)
	variance.Apply(func(i, j int, val float64) float64 {
		mm := mixMean.At(i, j)
		return val*invM - mm*mm
	}, second)
	return mixMean, variance, nil
}

// Predict lifts the ensemble prediction back to the full field, returning
// the mean solution and its standard deviation (columns = samples).
func (m *Model) Predict(x *mat.Dense) (uMean, uStd *mat.Dense, err error) {
	if m.basis == nil {
		return nil, nil, fmt.Errorf("model has no basis, call GenerateDataset first")
	}
	vMean, vVar, err := m.PredictV(x)
	if err != nil {
		return nil, nil, err
	}
	uMean = Reconstruct(m.basis, transpose(vMean))
	// Var(Phi v) = (Phi .* Phi) Var(v) for independent coefficients.
	phiSq := mat.DenseCopyOf(m.basis)
	phiSq.MulElem(phiSq, phiSq)
	uVar := Reconstruct(phiSq, transpose(vVar))
	return uMean, varianceToStd(uVar), nil
}

func transpose(a mat.Matrix) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(c, r, nil)
	out.Copy(a.T())
	return out
}
