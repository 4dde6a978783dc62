package models

import (
	"fmt"
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"
)

// Output is one float32 tensor produced by a model run
type Output struct {
	Data  []float32
	Shape []int64
}

// ONNXModel wraps an ONNX Runtime session for inference
type ONNXModel struct {
	session     *onnxruntime.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
}

var envMu sync.Mutex

// initEnvironment initializes ONNX Runtime once per process
func initEnvironment(sharedLibraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if onnxruntime.IsInitialized() {
		return nil
	}
	if sharedLibraryPath != "" {
		onnxruntime.SetSharedLibraryPath(sharedLibraryPath)
	}
	return onnxruntime.InitializeEnvironment()
}

// NewONNXModel creates a new ONNX model from a file
func NewONNXModel(modelPath, sharedLibraryPath string) (*ONNXModel, error) {
	if err := initEnvironment(sharedLibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		_ = options.Destroy()
	}()

	inputs, outputs, err := onnxruntime.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}

	inputNames := make([]string, len(inputs))
	for i, input := range inputs {
		inputNames[i] = input.Name
	}
	outputNames := make([]string, len(outputs))
	for i, output := range outputs {
		outputNames[i] = output.Name
	}

	session, err := onnxruntime.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXModel{
		session:     session,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

// Run runs inference on the model. Every model input must be present in
// inputs; every float32 output is returned by name.
func (m *ONNXModel) Run(inputs map[string]any) (map[string]Output, error) {
	inputValues := make([]onnxruntime.Value, len(m.inputNames))
	defer func() {
		for _, value := range inputValues {
			if value != nil {
				_ = value.Destroy()
			}
		}
	}()

	for i, name := range m.inputNames {
		input, exists := inputs[name]
		if !exists {
			return nil, fmt.Errorf("missing input: %s", name)
		}

		tensor, err := createTensor(input)
		if err != nil {
			return nil, fmt.Errorf("failed to create tensor for %s: %w", name, err)
		}
		inputValues[i] = tensor
	}

	// nil outputs are allocated by Run
	outputValues := make([]onnxruntime.Value, len(m.outputNames))
	defer func() {
		for _, value := range outputValues {
			if value != nil {
				_ = value.Destroy()
			}
		}
	}()

	if err := m.session.Run(inputValues, outputValues); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	outputs := make(map[string]Output, len(m.outputNames))
	for i, name := range m.outputNames {
		if outputValues[i] == nil {
			continue
		}
		tensor, ok := outputValues[i].(*onnxruntime.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("unsupported output type for %s", name)
		}
		// copy: the tensor memory is released by the deferred Destroy
		data := append([]float32(nil), tensor.GetData()...)
		outputs[name] = Output{Data: data, Shape: append([]int64(nil), tensor.GetShape()...)}
	}

	return outputs, nil
}

// createTensor creates an ONNX tensor from a row-major Go matrix
func createTensor(input any) (onnxruntime.Value, error) {
	switch v := input.(type) {
	case [][]int64:
		rows, cols := int64(len(v)), int64(0)
		if rows > 0 {
			cols = int64(len(v[0]))
		}
		flat := make([]int64, rows*cols)
		for i, row := range v {
			if int64(len(row)) != cols {
				return nil, fmt.Errorf("ragged input: row %d has %d columns, want %d", i, len(row), cols)
			}
			copy(flat[int64(i)*cols:], row)
		}
		return onnxruntime.NewTensor(onnxruntime.NewShape(rows, cols), flat)
	case [][]float32:
		rows, cols := int64(len(v)), int64(0)
		if rows > 0 {
			cols = int64(len(v[0]))
		}
		flat := make([]float32, rows*cols)
		for i, row := range v {
			if int64(len(row)) != cols {
				return nil, fmt.Errorf("ragged input: row %d has %d columns, want %d", i, len(row), cols)
			}
			copy(flat[int64(i)*cols:], row)
		}
		return onnxruntime.NewTensor(onnxruntime.NewShape(rows, cols), flat)
	default:
		return nil, fmt.Errorf("unsupported input type: %T", input)
	}
}

// InputNames returns the names of model inputs
func (m *ONNXModel) InputNames() []string {
	return m.inputNames
}

// OutputNames returns the names of model outputs
func (m *ONNXModel) OutputNames() []string {
	return m.outputNames
}

// Close releases model resources
func (m *ONNXModel) Close() error {
	if m.session != nil {
		err := m.session.Destroy()
		m.session = nil
		if err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}
	return nil
}
