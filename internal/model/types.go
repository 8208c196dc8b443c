package model

// Channel layouts accepted in Metadata.Layout.
const (
	LayoutNCHW = "NCHW"
	LayoutNHWC = "NHWC"
)

// Metadata describes the exported classifier: tensor shapes and names plus
// the preprocessing the network was trained with.
type Metadata struct {
	InputShape    []int64    `json:"input_shape"`
	OutputShape   []int64    `json:"output_shape"`
	InputName     string     `json:"input_name"`
	OutputName    string     `json:"output_name"`
	Classes       []string   `json:"classes"`
	ImageSize     int        `json:"image_size"`
	Layout        string     `json:"layout"`
	Mean          [3]float32 `json:"mean"`
	Std           [3]float32 `json:"std"`
	Interpolation string     `json:"interpolation"`
	Softmax       bool       `json:"softmax"`
}

// InputSpec is everything the preprocessor needs to build an input tensor.
type InputSpec struct {
	ImageSize     int
	Layout        string
	Mean          [3]float32
	Std           [3]float32
	Interpolation string
}

// Prediction is one decoded entry of the classifier output.
type Prediction struct {
	ID          string  `json:"id,omitempty"`
	Label       string  `json:"label"`
	Probability float32 `json:"probability"`
}

// PredictionRequest carries an already preprocessed input tensor.
type PredictionRequest struct {
	Image []float32 `json:"image"`
}

// PredictionResponse lists the ranked top-k predictions for one input.
type PredictionResponse struct {
	Class       string       `json:"class"`
	Confidence  float32      `json:"confidence"`
	Predictions []Prediction `json:"predictions"`
}

// InputSpec returns the preprocessing parameters, filling defaults that
// reproduce MobileNetV2 scaling to [-1, 1]. A configured mean is never
// replaced.
func (m Metadata) InputSpec() InputSpec {
	spec := InputSpec{
		ImageSize:     m.ImageSize,
		Layout:        m.Layout,
		Mean:          m.Mean,
		Std:           m.Std,
		Interpolation: m.Interpolation,
	}
	if spec.ImageSize <= 0 {
		spec.ImageSize = 224
	}
	if spec.Layout == "" {
		spec.Layout = LayoutNCHW
	}
	if spec.Std == [3]float32{} {
		spec.Std = [3]float32{0.5, 0.5, 0.5}
		if spec.Mean == [3]float32{} {
			spec.Mean = [3]float32{0.5, 0.5, 0.5}
		}
	}
	if spec.Interpolation == "" {
		spec.Interpolation = "bilinear"
	}
	return spec
}

// InputSize is the number of float32 values in one input tensor.
func (m Metadata) InputSize() int {
	if len(m.InputShape) == 0 {
		return 0
	}
	size := 1
	for _, dim := range m.InputShape {
		size *= int(dim)
	}
	return size
}

// NumClasses is the size of the last output dimension.
func (m Metadata) NumClasses() int {
	if len(m.OutputShape) == 0 {
		return 0
	}
	return int(m.OutputShape[len(m.OutputShape)-1])
}
