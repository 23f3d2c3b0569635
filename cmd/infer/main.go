// poduqnn-infer: loads a saved surrogate ensemble and predicts full-field
// solutions with uncertainty for new parameter points.
//
// Usage:
//
//	poduqnn-infer --dir=cache --nmodels=3 --input=points.json
//
// The input file holds one parameter point per row: [[mu1, mu2], ...].
// Output is JSON with the reconstructed mean field and its standard
// deviation, one column per input point.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"poduqnn/nn"
	"poduqnn/pod"
)

var (
	dir       = flag.String("dir", "cache", "Directory holding the saved artifacts")
	nModels   = flag.Int("nmodels", 1, "Ensemble size to load")
	inputFile = flag.String("input", "", "JSON file with parameter points (rows)")
)

func main() {
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "--input is required")
		os.Exit(1)
	}

	model, err := loadEnsemble(*dir, *nModels)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading model: %v\n", err)
		os.Exit(1)
	}

	x, err := loadPoints(*inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading input: %v\n", err)
		os.Exit(1)
	}

	uMean, uStd, err := model.Predict(x)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error predicting: %v\n", err)
		os.Exit(1)
	}

	out := struct {
		Mean [][]float64 `json:"mean"`
		Std  [][]float64 `json:"std"`
	}{Mean: toRows(uMean), Std: toRows(uStd)}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
}

func loadEnsemble(dir string, n int) (*pod.Model, error) {
	basis, err := loadBasis(filepath.Join(dir, "basis.json"))
	if err != nil {
		return nil, err
	}
	nets := make([]*nn.VarNeuralNetwork, 0, n)
	for i := 0; i < n; i++ {
		weightsPath := filepath.Join(dir, fmt.Sprintf("model-%d-weights.json", i))
		paramsPath := filepath.Join(dir, fmt.Sprintf("model-%d-params.json", i))
		net, err := nn.Load(weightsPath, paramsPath)
		if err != nil {
			return nil, fmt.Errorf("ensemble member %d: %w", i, err)
		}
		nets = append(nets, net)
	}
	return pod.NewModelFromParts(basis, nets)
}

func loadBasis(path string) (*mat.Dense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read basis: %w", err)
	}
	var basis struct {
		Shape []int     `json:"shape"`
		Data  []float64 `json:"data"`
	}
	if err := json.Unmarshal(data, &basis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal basis: %w", err)
	}
	if len(basis.Shape) != 2 || len(basis.Data) != basis.Shape[0]*basis.Shape[1] {
		return nil, fmt.Errorf("malformed basis artifact %s", path)
	}
	return mat.NewDense(basis.Shape[0], basis.Shape[1], basis.Data), nil
}

func loadPoints(path string) (*mat.Dense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("no parameter points in %s", path)
	}
	x := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(rows[0]))
		}
		for j, v := range row {
			x.Set(i, j, v)
		}
	}
	return x, nil
}

func toRows(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}
