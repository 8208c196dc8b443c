package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/Brownie44l1/phonedetect/internal/detector"
	"github.com/Brownie44l1/phonedetect/internal/model"
	"github.com/sirupsen/logrus"
)

// Request body limits: multipart image uploads and raw JSON tensors.
const (
	maxUploadSize  = 10 << 20
	maxPredictBody = 32 << 20
)

type Handler struct {
	classifier detector.Classifier
	detector   *detector.Detector
	topK       int
	maxBody    int64
	log        logrus.FieldLogger
}

func NewHandler(c detector.Classifier, d *detector.Detector, topK int, log logrus.FieldLogger) *Handler {
	if topK <= 0 {
		topK = detector.DefaultTopK
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		classifier: c,
		detector:   d,
		topK:       topK,
		maxBody:    maxPredictBody,
		log:        log,
	}
}

// Routes registers every endpoint on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/predict", h.Predict)
	mux.HandleFunc("/detect", h.Detect)
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}

// Predict classifies a preprocessed tensor and returns the ranked top-k.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	size := h.classifier.InputSpec().ImageSize
	expectedSize := 3 * size * size
	if len(req.Image) != expectedSize {
		http.Error(w, fmt.Sprintf("Expected %d values, got %d", expectedSize, len(req.Image)),
			http.StatusBadRequest)
		return
	}

	probs, err := h.classifier.Predict(req.Image)
	if err != nil {
		h.log.WithError(err).Error("Prediction failed")
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
		return
	}

	predictions := h.classifier.Decode(probs, h.topK)
	resp := model.PredictionResponse{Predictions: predictions}
	if len(predictions) > 0 {
		resp.Class = predictions[0].Label
		resp.Confidence = predictions[0].Probability
	}
	writeJSON(w, resp)
}

// Detect runs the phone decision rule on an uploaded image.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		h.log.WithField("image", header.Filename).WithError(err).Warn("Cannot decode upload")
		http.Error(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	h.log.WithFields(logrus.Fields{
		"image":  header.Filename,
		"format": format,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	}).Debug("Received upload")

	writeJSON(w, h.detector.DetectImage(header.Filename, img))
}
