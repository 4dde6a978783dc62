package models

import (
	"context"
	"fmt"
	"slices"

	"github.com/Mineru98/crossmodal-retrieval-go/rank"
)

// Default tensor names of an exported sentence encoder graph
const (
	DefaultTokenInput     = "src_seq"
	DefaultPositionInput  = "src_pos"
	DefaultMeanOutput     = "mean"
	DefaultVarianceOutput = "variance"
)

// ProbabilisticConfig holds configuration for ProbabilisticEncoder
type ProbabilisticConfig struct {
	ModelPath         string
	SharedLibraryPath string // onnxruntime shared library; empty uses the platform default
	TokenInput        string
	PositionInput     string
	MeanOutput        string
	VarianceOutput    string
	Metric            rank.Metric
}

func (c *ProbabilisticConfig) applyDefaults() {
	if c.TokenInput == "" {
		c.TokenInput = DefaultTokenInput
	}
	if c.PositionInput == "" {
		c.PositionInput = DefaultPositionInput
	}
	if c.MeanOutput == "" {
		c.MeanOutput = DefaultMeanOutput
	}
	if c.VarianceOutput == "" {
		c.VarianceOutput = DefaultVarianceOutput
	}
	if c.Metric == "" {
		c.Metric = rank.Mahalanobis
	}
}

// runner is the slice of ONNXModel the encoder needs
type runner interface {
	Run(inputs map[string]any) (map[string]Output, error)
	Close() error
}

// ProbabilisticEncoder embeds token sequences as diagonal Gaussians
// (mean, variance) with an ONNX sentence encoder. It implements
// crossmodal.Encoder.
type ProbabilisticEncoder struct {
	model runner
	cfg   ProbabilisticConfig
}

// NewProbabilisticEncoder loads the encoder graph from cfg.ModelPath
func NewProbabilisticEncoder(cfg ProbabilisticConfig) (*ProbabilisticEncoder, error) {
	model, err := NewONNXModel(cfg.ModelPath, cfg.SharedLibraryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load ONNX model: %w", err)
	}
	enc := newProbabilisticEncoder(model, cfg)
	if err := checkNames(model.InputNames(), model.OutputNames(), enc.cfg); err != nil {
		_ = model.Close()
		return nil, err
	}
	return enc, nil
}

// checkNames verifies that the graph exposes the configured tensors. The
// variance output is required only by a probabilistic metric.
func checkNames(inputs, outputs []string, cfg ProbabilisticConfig) error {
	for _, name := range []string{cfg.TokenInput, cfg.PositionInput} {
		if !slices.Contains(inputs, name) {
			return fmt.Errorf("model has no input %q (inputs: %v)", name, inputs)
		}
	}
	wanted := []string{cfg.MeanOutput}
	if cfg.Metric.Probabilistic() {
		wanted = append(wanted, cfg.VarianceOutput)
	}
	for _, name := range wanted {
		if !slices.Contains(outputs, name) {
			return fmt.Errorf("model has no output %q (outputs: %v)", name, outputs)
		}
	}
	return nil
}

func newProbabilisticEncoder(model runner, cfg ProbabilisticConfig) *ProbabilisticEncoder {
	cfg.applyDefaults()
	return &ProbabilisticEncoder{model: model, cfg: cfg}
}

// Encode runs the encoder on one batch. When the metric is not
// probabilistic every variance entry is 1; a probabilistic metric needs
// the variance output.
func (e *ProbabilisticEncoder) Encode(ctx context.Context, tokens, positions [][]int64) ([][]float32, [][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if len(tokens) != len(positions) {
		return nil, nil, fmt.Errorf("tokens has %d rows, positions has %d", len(tokens), len(positions))
	}
	if len(tokens) == 0 {
		return nil, nil, nil
	}

	outputs, err := e.model.Run(map[string]any{
		e.cfg.TokenInput:    padRows(tokens),
		e.cfg.PositionInput: padRows(positions),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("model inference failed: %w", err)
	}

	meanOut, ok := outputs[e.cfg.MeanOutput]
	if !ok {
		return nil, nil, fmt.Errorf("could not find %q in model output", e.cfg.MeanOutput)
	}
	means, err := splitRows(meanOut, len(tokens))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", e.cfg.MeanOutput, err)
	}

	if !e.cfg.Metric.Probabilistic() {
		return means, unitRows(len(means), len(means[0])), nil
	}
	varOut, ok := outputs[e.cfg.VarianceOutput]
	if !ok {
		return nil, nil, fmt.Errorf("could not find %q in model output; metric %s needs a variance head",
			e.cfg.VarianceOutput, e.cfg.Metric)
	}
	variances, err := splitRows(varOut, len(tokens))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", e.cfg.VarianceOutput, err)
	}
	return means, variances, nil
}

// Close releases encoder resources
func (e *ProbabilisticEncoder) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// padRows right-pads ragged rows with zeros to the longest row
func padRows(rows [][]int64) [][]int64 {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	out := make([][]int64, len(rows))
	for i, r := range rows {
		if len(r) == width {
			out[i] = r
			continue
		}
		out[i] = make([]int64, width)
		copy(out[i], r)
	}
	return out
}

// splitRows reshapes a [batch, dim] output into batch rows
func splitRows(out Output, batch int) ([][]float32, error) {
	if len(out.Shape) != 2 || out.Shape[0] != int64(batch) {
		return nil, fmt.Errorf("unexpected output shape %v for batch of %d", out.Shape, batch)
	}
	dim := int(out.Shape[1])
	if len(out.Data) != batch*dim {
		return nil, fmt.Errorf("output has %d values, shape %v", len(out.Data), out.Shape)
	}
	rows := make([][]float32, batch)
	for i := range rows {
		rows[i] = out.Data[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return rows, nil
}

func unitRows(n, dim int) [][]float32 {
	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = make([]float32, dim)
		for d := range rows[i] {
			rows[i][d] = 1
		}
	}
	return rows
}
