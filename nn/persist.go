package nn

import (
	"encoding/json"
	"fmt"
	"os"

	"poduqnn/tensor"
)

// ArtifactVersion tags both persisted artifacts so a mismatched pair is
// detectable.
const ArtifactVersion = "1.0"

// WeightData is the serializable form of one parameter array.
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// LayerWeight contains the weight matrix and bias vector of one dense layer.
type LayerWeight struct {
	Weight *WeightData `json:"weight"`
	Bias   *WeightData `json:"bias"`
}

// ModelWeights is the weights artifact.
type ModelWeights struct {
	Version string        `json:"version"`
	Layers  []LayerWeight `json:"layers"`
}

// ModelParams is the params artifact: everything needed to rebuild the
// network shell the weights are loaded into.
type ModelParams struct {
	Version    string      `json:"version"`
	Layers     []int       `json:"layers"`
	LR         float64     `json:"lr"`
	Lambda     float64     `json:"lambda"`
	AdvEps     float64     `json:"adv_eps"`
	Soft0      float64     `json:"soft_0"`
	SigmaFloor float64     `json:"sigma_floor"`
	Norm       string      `json:"norm"`
	NormBounds *NormBounds `json:"norm_bounds,omitempty"`
	Activation string      `json:"activation"`
}

// Save writes the trained parameters and the model hyperparameters to the
// paired artifacts.
func (v *VarNeuralNetwork) Save(weightsPath, paramsPath string) error {
	params := ModelParams{
		Version:    ArtifactVersion,
		Layers:     v.Layers(),
		LR:         v.lr,
		Lambda:     v.lam,
		AdvEps:     v.advEps,
		Soft0:      v.soft0,
		SigmaFloor: v.sigmaFloor,
		Norm:       v.norm,
		NormBounds: v.normBounds,
		Activation: v.activator.String(),
	}
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := os.WriteFile(paramsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write params: %w", err)
	}

	weights := ModelWeights{Version: ArtifactVersion}
	for i, w := range v.weights {
		wt := tensor.FromDense(w)
		bt := tensor.NewWithData(v.biases[i])
		weights.Layers = append(weights.Layers, LayerWeight{
			Weight: &WeightData{Name: fmt.Sprintf("dense_%d_weight", i), Shape: wt.Shape, Data: wt.Data},
			Bias:   &WeightData{Name: fmt.Sprintf("dense_%d_bias", i), Shape: bt.Shape, Data: bt.Data},
		})
	}
	data, err = json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	if err := os.WriteFile(weightsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write weights: %w", err)
	}
	return nil
}

// Load rebuilds a saved network from its artifact pair. A missing params
// artifact is an explicit error: without it the weights are uninterpretable.
func Load(weightsPath, paramsPath string) (*VarNeuralNetwork, error) {
	if _, err := os.Stat(paramsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("missing model params artifact %s", paramsPath)
	}
	data, err := os.ReadFile(paramsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read params: %w", err)
	}
	var params ModelParams
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}

	v, err := New(Config{
		Layers:     params.Layers,
		LR:         params.LR,
		Lambda:     params.Lambda,
		AdvEps:     params.AdvEps,
		Soft0:      params.Soft0,
		SigmaFloor: params.SigmaFloor,
		Norm:       params.Norm,
		NormBounds: params.NormBounds,
		Activation: params.Activation,
	})
	if err != nil {
		return nil, err
	}

	data, err = os.ReadFile(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}
	var weights ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	if len(weights.Layers) != len(v.weights) {
		return nil, fmt.Errorf("weights artifact has %d layers, topology %v needs %d",
			len(weights.Layers), params.Layers, len(v.weights))
	}
	for i, lw := range weights.Layers {
		if lw.Weight == nil || lw.Bias == nil {
			return nil, fmt.Errorf("layer %d is missing weight or bias", i)
		}
		r, c := v.weights[i].Dims()
		if len(lw.Weight.Shape) != 2 || lw.Weight.Shape[0] != r || lw.Weight.Shape[1] != c {
			return nil, fmt.Errorf("layer %d weight shape %v, want [%d %d]", i, lw.Weight.Shape, r, c)
		}
		wt := &tensor.Tensor{Data: lw.Weight.Data, Shape: lw.Weight.Shape}
		d, err := wt.Dense()
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		v.weights[i] = d
		if len(lw.Bias.Data) != len(v.biases[i]) {
			return nil, fmt.Errorf("layer %d bias has %d values, want %d", i, len(lw.Bias.Data), len(v.biases[i]))
		}
		copy(v.biases[i], lw.Bias.Data)
	}
	return v, nil
}
