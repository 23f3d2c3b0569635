package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// recordLogger captures everything the training loop reports.
type recordLogger struct {
	started bool
	ended   bool
	losses  []float64
}

func (r *recordLogger) LogTrainStart() { r.started = true }
func (r *recordLogger) LogTrainEpoch(epoch int, loss float64) {
	r.losses = append(r.losses, loss)
}
func (r *recordLogger) LogTrainEnd(epochs int, loss float64) { r.ended = true }

func TestNewRejectsBadTopology(t *testing.T) {
	if _, err := New(Config{Layers: []int{3}, LR: 0.01}); err == nil {
		t.Error("expected error for single-layer topology")
	}
	if _, err := New(Config{Layers: nil, LR: 0.01}); err == nil {
		t.Error("expected error for empty topology")
	}
	if _, err := New(Config{Layers: []int{2, 0, 1}, LR: 0.01}); err == nil {
		t.Error("expected error for zero-width layer")
	}
	if _, err := New(Config{Layers: []int{2, 4, 1}, LR: 0.01, Norm: "minmax"}); err == nil {
		t.Error("expected error for unknown normalization mode")
	}
}

func TestPredictVarianceStrictlyPositive(t *testing.T) {
	v := testNet(t, Config{Layers: []int{3, 16, 2}, LR: 0.001, Soft0: 0.01})

	rng := rand.New(rand.NewSource(7))
	x := mat.NewDense(20, 3, nil)
	for i := 0; i < 20; i++ {
		for j := 0; j < 3; j++ {
			// Large magnitudes push the raw scale far negative.
			x.Set(i, j, 1e3*(rng.Float64()*2-1))
		}
	}

	_, variance := v.Predict(x)
	r, c := variance.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if !(variance.At(i, j) > 0) {
				t.Fatalf("variance at (%d,%d) = %g, want > 0", i, j, variance.At(i, j))
			}
		}
	}
}

func TestPredictDistMatchesPredict(t *testing.T) {
	v := testNet(t, Config{Layers: []int{2, 8, 2}, LR: 0.001})
	x := randomBatch(rand.New(rand.NewSource(8)), 5, 2)

	mean, variance := v.Predict(x)
	dists := v.PredictDist(x)
	require.Len(t, dists, 5)
	for i := range dists {
		for j := range dists[i] {
			assert.Equal(t, mean.At(i, j), dists[i][j].Mu)
			assert.InDelta(t, variance.At(i, j), dists[i][j].Sigma*dists[i][j].Sigma, 1e-12)
		}
	}
}

// linearDataset samples a known linear function v = 3*x1 - 2*x2 + 0.5.
func linearDataset(rng *rand.Rand, n int) (*mat.Dense, *mat.Dense) {
	x := mat.NewDense(n, 2, nil)
	v := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x1 := 4*rng.Float64() - 1
		x2 := 4*rng.Float64() - 1
		x.Set(i, 0, x1)
		x.Set(i, 1, x2)
		v.Set(i, 0, 3*x1-2*x2+0.5)
	}
	return x, v
}

func TestFitLearnsLinearFunction(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	xTrain, vTrain := linearDataset(rng, 100)
	xVal, vVal := linearDataset(rng, 50)

	net := testNet(t, Config{
		Layers: []int{2, 8, 8, 1},
		LR:     0.01,
		Norm:   NormMeanStd,
		Rand:   rand.New(rand.NewSource(42)),
	})

	lg := &recordLogger{}
	net.Fit(xTrain, vTrain, 2000, lg)
	require.True(t, lg.started)
	require.True(t, lg.ended)
	require.Len(t, lg.losses, 2000)

	mean, _ := net.Predict(xVal)
	num, den := 0.0, 0.0
	for i := 0; i < 50; i++ {
		d := vVal.At(i, 0) - mean.At(i, 0)
		num += d * d
		den += vVal.At(i, 0) * vVal.At(i, 0)
	}
	relErr := math.Sqrt(num / den)
	if relErr >= 0.05 {
		t.Errorf("validation relative error = %g, want < 0.05", relErr)
	}
}

func TestAdversarialTermIncreasesLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	x, v := linearDataset(rng, 40)

	base := testNet(t, Config{
		Layers: []int{2, 8, 1},
		LR:     0.001,
		Lambda: 0.01,
		Norm:   NormMeanStd,
		Rand:   rand.New(rand.NewSource(11)),
	})
	adv := testNet(t, Config{
		Layers: []int{2, 8, 1},
		LR:     0.001,
		Lambda: 0.01,
		AdvEps: 0.05,
		Norm:   NormMeanStd,
		Rand:   rand.New(rand.NewSource(11)),
	})

	lgBase := &recordLogger{}
	lgAdv := &recordLogger{}
	base.Fit(x, v, 1, lgBase)
	adv.Fit(x, v, 1, lgAdv)

	// Same seed, same batch: the first-epoch loss uses identical initial
	// weights, so the additive adversarial term must show up.
	if !(lgAdv.losses[0] > lgBase.losses[0]) {
		t.Errorf("adversarial loss %g not greater than base loss %g", lgAdv.losses[0], lgBase.losses[0])
	}
}

func TestRefitResetsOptimizerState(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	x, v := linearDataset(rng, 20)
	net := testNet(t, Config{Layers: []int{2, 4, 1}, LR: 0.01, Norm: NormMeanStd})

	net.FitSimple(x, v, 5)
	assert.Equal(t, 5, net.opt.Timestep())
	net.FitSimple(x, v, 3)
	assert.Equal(t, 3, net.opt.Timestep())
}

func TestSummaryMentionsTopology(t *testing.T) {
	net := testNet(t, Config{Layers: []int{2, 8, 1}, LR: 0.01, AdvEps: 0.01})
	s := net.Summary()
	assert.Contains(t, s, "[2 8 1]")
	assert.Contains(t, s, "adv_eps")
}
