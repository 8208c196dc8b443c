// Package detector decides whether an image shows a phone using the ranked
// output of an image classifier.
package detector

import (
	"fmt"
	"image"
	"strings"

	"github.com/Brownie44l1/phonedetect/internal/model"
	"github.com/Brownie44l1/phonedetect/internal/preprocess"
	"github.com/sirupsen/logrus"
)

const (
	DefaultThreshold = 0.3
	DefaultTopK      = 5
)

// DefaultKeywords are matched case-insensitively as substrings of labels.
var DefaultKeywords = []string{"cellphone", "mobile phone", "smartphone", "phone"}

// Classifier is the inference backend the detector needs. *model.Classifier
// satisfies it.
type Classifier interface {
	Predict(input []float32) ([]float32, error)
	Decode(probs []float32, k int) []model.Prediction
	InputSpec() model.InputSpec
}

// Result is the immutable outcome for one image. Label is empty exactly when
// Detected is false.
type Result struct {
	ImagePath   string  `json:"image" yaml:"image"`
	Detected    bool    `json:"detected" yaml:"detected"`
	Label       string  `json:"label,omitempty" yaml:"label,omitempty"`
	Probability float64 `json:"probability" yaml:"probability"`
}

func negative(path string) Result {
	return Result{ImagePath: path}
}

// Options tunes the decision rule.
type Options struct {
	Keywords  []string
	Threshold float64
	TopK      int
	Logger    logrus.FieldLogger
}

type Detector struct {
	classifier Classifier
	keywords   []string
	threshold  float64
	topK       int
	log        logrus.FieldLogger
}

// New validates opts and builds a Detector around an already loaded
// classifier. Empty Keywords and a zero TopK fall back to the defaults.
func New(classifier Classifier, opts Options) (*Detector, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}

	keywords := opts.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			return nil, fmt.Errorf("keywords must not be blank")
		}
		normalized = append(normalized, kw)
	}

	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("threshold %v outside [0, 1]", opts.Threshold)
	}

	topK := opts.TopK
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 0 {
		return nil, fmt.Errorf("top-k must be positive, got %d", topK)
	}

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Detector{
		classifier: classifier,
		keywords:   normalized,
		threshold:  opts.Threshold,
		topK:       topK,
		log:        log,
	}, nil
}

// Detect classifies the image at path. Files that cannot be read or decoded
// produce a negative result and a warning instead of an error.
func (d *Detector) Detect(path string) Result {
	img, _, err := preprocess.LoadImage(path)
	if err != nil {
		d.log.WithField("image", path).WithError(err).Warn("Cannot read image")
		return negative(path)
	}
	return d.DetectImage(path, img)
}

// DetectImage applies the decision rule to an already decoded image. name is
// only used to label the result.
func (d *Detector) DetectImage(name string, img image.Image) Result {
	input := preprocess.ToTensor(img, d.classifier.InputSpec())

	probs, err := d.classifier.Predict(input)
	if err != nil {
		d.log.WithField("image", name).WithError(err).Error("Inference failed")
		return negative(name)
	}

	predictions := d.classifier.Decode(probs, d.topK)
	d.log.WithFields(logrus.Fields{
		"image":       name,
		"predictions": predictions,
	}).Debug("Decoded predictions")

	match, ok := d.Match(predictions)
	if !ok {
		return negative(name)
	}
	return Result{
		ImagePath:   name,
		Detected:    true,
		Label:       match.Label,
		Probability: clamp(float64(match.Probability)),
	}
}

// Match walks predictions in the given (descending) order and returns the
// first whose label contains a keyword and whose probability reaches the
// threshold.
func (d *Detector) Match(predictions []model.Prediction) (model.Prediction, bool) {
	for _, p := range predictions {
		if float64(p.Probability) >= d.threshold && d.isPhoneLabel(p.Label) {
			return p, true
		}
	}
	return model.Prediction{}, false
}

func (d *Detector) isPhoneLabel(label string) bool {
	lower := strings.ToLower(label)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
