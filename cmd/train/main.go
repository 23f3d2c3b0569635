// poduqnn-train: trains a POD + variance-network surrogate on a synthetic
// parametric Shekel-style dataset and saves the ensemble artifacts.
//
// Usage:
//
//	poduqnn-train --epochs=5000 --layers="16 16" --nmodels=3 --out=cache
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"poduqnn/logger"
	"poduqnn/metrics"
	"poduqnn/nn"
	"poduqnn/pod"
)

var (
	hpFile     = flag.String("hp", "", "JSON hyperparameter file (overrides flags)")
	epochs     = flag.Int("epochs", 5000, "Training epochs")
	lr         = flag.Float64("lr", 0.001, "Learning rate")
	lambda     = flag.Float64("lambda", 0.001, "L2 regularization coefficient")
	advEps     = flag.Float64("adv-eps", 0, "Adversarial perturbation magnitude (0 disables)")
	soft0      = flag.Float64("soft0", 0.01, "Scale factor inside the softplus transform")
	norm       = flag.String("norm", nn.NormMeanStd, "Input normalization: none, center, meanstd")
	layersFlag = flag.String("layers", "64 64", "Hidden layer widths, space separated")
	nModels    = flag.Int("nmodels", 1, "Ensemble size")
	podEps     = flag.Float64("eps", 1e-10, "POD discarded-energy tolerance")
	nL         = flag.Int("nl", 0, "Fixed POD mode count (0 = use eps)")
	nSamples   = flag.Int("samples", 300, "Snapshot count")
	nX         = flag.Int("nx", 300, "Mesh size")
	trainRatio = flag.Float64("train-ratio", 0.8, "Train/validation split ratio")
	seed       = flag.Int64("seed", 42, "Random seed")
	logFreq    = flag.Int("log-frequency", 100, "Epochs between progress reports")
	outDir     = flag.String("out", "cache", "Output directory for model artifacts")
)

// hyperParams mirrors the JSON hyperparameter files of the experiment
// drivers; zero values fall back to the flag defaults.
type hyperParams struct {
	Epochs     int     `json:"epochs"`
	LR         float64 `json:"lr"`
	Lambda     float64 `json:"lambda"`
	AdvEps     float64 `json:"adv_eps"`
	Soft0      float64 `json:"soft_0"`
	Norm       string  `json:"norm"`
	HLayers    []int   `json:"h_layers"`
	NModels    int     `json:"n_m"`
	Eps        float64 `json:"eps"`
	NL         int     `json:"n_l"`
	NSamples   int     `json:"n_s"`
	NX         int     `json:"n_x"`
	TrainRatio float64 `json:"train_val_ratio"`
	BatchSize  int     `json:"batch_size"` // accepted for file compatibility, unused
	LogFreq    int     `json:"log_frequency"`
}

func main() {
	flag.Parse()

	hLayers, err := parseLayers(*layersFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --layers: %v\n", err)
		os.Exit(1)
	}
	if *hpFile != "" {
		if err := applyHyperParams(*hpFile, &hLayers); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading hyperparameters: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("POD-UQNN trainer")
	fmt.Printf("  Epochs:        %d\n", *epochs)
	fmt.Printf("  Learning rate: %g\n", *lr)
	fmt.Printf("  Lambda:        %g\n", *lambda)
	fmt.Printf("  Adv eps:       %g\n", *advEps)
	fmt.Printf("  Hidden layers: %v\n", hLayers)
	fmt.Printf("  Ensemble:      %d\n", *nModels)
	fmt.Printf("  Samples:       %d (mesh %d)\n", *nSamples, *nX)
	fmt.Println()

	rng := rand.New(rand.NewSource(*seed))
	x, u := generateSnapshots(*nX, *nSamples, rng)

	model, err := pod.NewModel(pod.ModelConfig{
		Eps:     *podEps,
		NL:      *nL,
		NModels: *nModels,
		HLayers: hLayers,
		LR:      *lr,
		Lambda:  *lambda,
		AdvEps:  *advEps,
		Soft0:   *soft0,
		Norm:    *norm,
		Seed:    *seed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building model: %v\n", err)
		os.Exit(1)
	}

	xTrain, vTrain, xVal, _, uVal, err := model.GenerateDataset(x, u, *trainRatio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating dataset: %v\n", err)
		os.Exit(1)
	}
	_, nModes := vTrain.Dims()
	fmt.Printf("POD basis: %d modes\n", nModes)

	lg := logger.New(*epochs, *logFreq)
	lg.SetErrorFn(func() float64 {
		uPred, _, err := model.Predict(xVal)
		if err != nil {
			return 0
		}
		return metrics.RES(uVal, uPred, false)
	})

	if err := model.Train(xTrain, vTrain, *epochs, lg); err != nil {
		fmt.Fprintf(os.Stderr, "Error training: %v\n", err)
		os.Exit(1)
	}

	uPred, _, err := model.Predict(xVal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error predicting: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nValidation relative error: %.4e\n", metrics.RES(uVal, uPred, false))

	if err := saveEnsemble(model, *outDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving model: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Saved ensemble artifacts to %s\n", *outDir)
}

// generateSnapshots builds a parametric Shekel-style solution ensemble on a
// 1-D mesh over [0, 10]: two inverse-quadratic wells whose locations are
// the PDE parameters.
func generateSnapshots(nX, nS int, rng *rand.Rand) (x, u *mat.Dense) {
	x = mat.NewDense(nS, 2, nil)
	u = mat.NewDense(nX, nS, nil)
	for s := 0; s < nS; s++ {
		mu1 := 2.0 + 2.0*rng.Float64()
		mu2 := 6.0 + 2.0*rng.Float64()
		x.Set(s, 0, mu1)
		x.Set(s, 1, mu2)
		for i := 0; i < nX; i++ {
			xi := 10.0 * float64(i) / float64(nX-1)
			val := 1.0/((xi-mu1)*(xi-mu1)+0.1) + 1.0/((xi-mu2)*(xi-mu2)+0.2)
			u.Set(i, s, val)
		}
	}
	return x, u
}

func saveEnsemble(model *pod.Model, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for i, net := range model.Nets() {
		weightsPath := filepath.Join(dir, fmt.Sprintf("model-%d-weights.json", i))
		paramsPath := filepath.Join(dir, fmt.Sprintf("model-%d-params.json", i))
		if err := net.Save(weightsPath, paramsPath); err != nil {
			return err
		}
	}
	return saveBasis(model, filepath.Join(dir, "basis.json"))
}

func saveBasis(model *pod.Model, path string) error {
	phi := model.Basis()
	r, c := phi.Dims()
	basis := struct {
		Shape []int     `json:"shape"`
		Data  []float64 `json:"data"`
	}{Shape: []int{r, c}}
	basis.Data = make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			basis.Data = append(basis.Data, phi.At(i, j))
		}
	}
	data, err := json.MarshalIndent(basis, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func parseLayers(s string) ([]int, error) {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return nil, fmt.Errorf("no layer widths given")
	}
	layers := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		layers[i] = n
	}
	return layers, nil
}

func applyHyperParams(path string, hLayers *[]int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var hp hyperParams
	if err := json.Unmarshal(data, &hp); err != nil {
		return err
	}
	if hp.Epochs > 0 {
		*epochs = hp.Epochs
	}
	if hp.LR > 0 {
		*lr = hp.LR
	}
	if hp.Lambda > 0 {
		*lambda = hp.Lambda
	}
	if hp.AdvEps > 0 {
		*advEps = hp.AdvEps
	}
	if hp.Soft0 > 0 {
		*soft0 = hp.Soft0
	}
	if hp.Norm != "" {
		*norm = hp.Norm
	}
	if len(hp.HLayers) > 0 {
		*hLayers = hp.HLayers
	}
	if hp.NModels > 0 {
		*nModels = hp.NModels
	}
	if hp.Eps > 0 {
		*podEps = hp.Eps
	}
	if hp.NL > 0 {
		*nL = hp.NL
	}
	if hp.NSamples > 0 {
		*nSamples = hp.NSamples
	}
	if hp.NX > 0 {
		*nX = hp.NX
	}
	if hp.TrainRatio > 0 {
		*trainRatio = hp.TrainRatio
	}
	if hp.LogFreq > 0 {
		*logFreq = hp.LogFreq
	}
	return nil
}
