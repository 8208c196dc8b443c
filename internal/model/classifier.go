package model

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// Options configures NewClassifier.
type Options struct {
	ModelPath         string
	MetadataPath      string
	LabelsPath        string
	SharedLibraryPath string
	WarmUp            bool
	Logger            logrus.FieldLogger
}

// Classifier owns one ONNX Runtime session. It is built once and shared
// read-only; Predict serializes access to the bound tensors.
type Classifier struct {
	session      *ort.AdvancedSession
	Metadata     Metadata
	labels       []Label
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// LoadMetadata reads and validates the model metadata file.
func LoadMetadata(path string) (Metadata, error) {
	metaFile, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if len(metadata.InputShape) == 0 || len(metadata.OutputShape) == 0 {
		return Metadata{}, fmt.Errorf("metadata must define input_shape and output_shape")
	}
	if metadata.InputName == "" {
		metadata.InputName = "input"
	}
	if metadata.OutputName == "" {
		metadata.OutputName = "output"
	}
	metadata.Layout = strings.ToUpper(metadata.Layout)
	switch metadata.Layout {
	case "", LayoutNCHW, LayoutNHWC:
	default:
		return Metadata{}, fmt.Errorf("unsupported layout %q", metadata.Layout)
	}

	if metadata.Std == [3]float32{} && metadata.Mean != [3]float32{} {
		return Metadata{}, fmt.Errorf("metadata sets mean %v without std", metadata.Mean)
	}

	spec := metadata.InputSpec()
	for c, std := range spec.Std {
		if std == 0 {
			return Metadata{}, fmt.Errorf("std for channel %d must be non-zero", c)
		}
	}
	if want := 3 * spec.ImageSize * spec.ImageSize; metadata.InputSize() != want {
		return Metadata{}, fmt.Errorf("input_shape %v does not hold one %dx%d RGB image",
			metadata.InputShape, spec.ImageSize, spec.ImageSize)
	}
	return metadata, nil
}

// resolveLabels prefers an explicit labels file over the metadata classes.
func resolveLabels(metadata Metadata, labelsPath string) ([]Label, error) {
	var (
		labels []Label
		err    error
	)
	if labelsPath != "" {
		labels, err = LoadLabels(labelsPath)
	} else {
		labels, err = LabelsFromClasses(metadata.Classes)
	}
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no class labels configured")
	}
	if n := metadata.NumClasses(); len(labels) != n {
		return nil, fmt.Errorf("label count %d does not match model output size %d", len(labels), n)
	}
	return labels, nil
}

// NewClassifier loads the model, its metadata and labels, and optionally runs
// one warm-up inference so the first real image does not pay for lazy
// initialization.
func NewClassifier(opts Options) (*Classifier, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	metadata, err := LoadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}

	labels, err := resolveLabels(metadata, opts.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}

	if opts.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(opts.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	c := &Classifier{
		session:      session,
		Metadata:     metadata,
		labels:       labels,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}

	log.WithFields(logrus.Fields{
		"model":   opts.ModelPath,
		"classes": len(labels),
		"layout":  metadata.InputSpec().Layout,
	}).Info("Model loaded")

	if opts.WarmUp {
		if _, err := c.Predict(make([]float32, metadata.InputSize())); err != nil {
			c.Close()
			return nil, fmt.Errorf("warm-up inference failed: %w", err)
		}
		log.Debug("Warm-up inference complete")
	}

	return c, nil
}

// Predict runs one forward pass and returns the class probabilities.
func (c *Classifier) Predict(inputData []float32) ([]float32, error) {
	if want := c.Metadata.InputSize(); len(inputData) != want {
		return nil, fmt.Errorf("expected %d input values, got %d", want, len(inputData))
	}

	c.mu.Lock()
	copy(c.inputTensor.GetData(), inputData)
	if err := c.session.Run(); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	raw := c.outputTensor.GetData()
	output := make([]float32, len(raw))
	copy(output, raw)
	c.mu.Unlock()

	if c.Metadata.Softmax {
		return Softmax(output), nil
	}
	return output, nil
}

// Decode maps a probability vector to the k best labelled predictions.
func (c *Classifier) Decode(probs []float32, k int) []Prediction {
	return DecodePredictions(c.labels, probs, k)
}

// InputSpec returns the preprocessing parameters for this model.
func (c *Classifier) InputSpec() InputSpec {
	return c.Metadata.InputSpec()
}

// InputSize is the number of values Predict expects.
func (c *Classifier) InputSize() int {
	return c.Metadata.InputSize()
}

func (c *Classifier) Close() {
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	ort.DestroyEnvironment()
}
