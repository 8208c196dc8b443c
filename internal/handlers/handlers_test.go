package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Brownie44l1/phonedetect/internal/detector"
	"github.com/Brownie44l1/phonedetect/internal/model"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testImageSize = 4

type fakeClassifier struct {
	probs []float32
}

var testLabels = []model.Label{
	{Name: "notebook"},
	{ID: "n02992529", Name: "cellular_telephone"},
	{Name: "tabby"},
}

func (f *fakeClassifier) Predict(input []float32) ([]float32, error) {
	return f.probs, nil
}

func (f *fakeClassifier) Decode(probs []float32, k int) []model.Prediction {
	return model.DecodePredictions(testLabels, probs, k)
}

func (f *fakeClassifier) InputSpec() model.InputSpec {
	return model.Metadata{ImageSize: testImageSize}.InputSpec()
}

func newTestHandler(t *testing.T, probs []float32) *Handler {
	t.Helper()
	logger, _ := test.NewNullLogger()
	fake := &fakeClassifier{probs: probs}
	d, err := detector.New(fake, detector.Options{Threshold: 0.3, Logger: logger})
	require.NoError(t, err)
	return NewHandler(fake, d, 2, logger)
}

func multipartImage(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 6))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestDetect(t *testing.T) {
	h := newTestHandler(t, []float32{0.2, 0.7, 0.1})

	body, contentType := multipartImage(t, "image", "desk.png", pngBytes(t))
	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res detector.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Detected)
	assert.Equal(t, "desk.png", res.ImagePath)
	assert.Equal(t, "cellular_telephone", res.Label)
	assert.InDelta(t, 0.7, res.Probability, 1e-6)
}

func TestDetectNegative(t *testing.T) {
	h := newTestHandler(t, []float32{0.6, 0.25, 0.15})

	body, contentType := multipartImage(t, "image", "desk.png", pngBytes(t))
	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Detect(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"image":"desk.png","detected":false,"probability":0}`, rec.Body.String())
}

func TestDetectBadRequests(t *testing.T) {
	h := newTestHandler(t, []float32{0.2, 0.7, 0.1})

	rec := httptest.NewRecorder()
	h.Detect(rec, httptest.NewRequest(http.MethodGet, "/detect", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	body, contentType := multipartImage(t, "photo", "desk.png", pngBytes(t))
	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	h.Detect(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, contentType = multipartImage(t, "image", "notes.txt", []byte("plain text"))
	req = httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	h.Detect(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredict(t *testing.T) {
	h := newTestHandler(t, []float32{0.2, 0.7, 0.1})

	input := make([]float32, 3*testImageSize*testImageSize)
	payload, err := json.Marshal(model.PredictionRequest{Image: input})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Predict(rec, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(payload)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cellular_telephone", resp.Class)
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, "n02992529", resp.Predictions[0].ID)
	assert.Equal(t, "notebook", resp.Predictions[1].Label)
}

func TestPredictBadRequests(t *testing.T) {
	h := newTestHandler(t, []float32{0.2, 0.7, 0.1})

	rec := httptest.NewRecorder()
	h.Predict(rec, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Predict(rec, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"image":[1,2,3]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Expected 48 values, got 3")

	rec = httptest.NewRecorder()
	h.Predict(rec, httptest.NewRequest(http.MethodGet, "/predict", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPredictBodyLimit(t *testing.T) {
	h := newTestHandler(t, []float32{0.2, 0.7, 0.1})
	h.maxBody = 64

	payload := `{"image":[` + strings.Repeat("0.5,", 100) + `0.5]}`
	rec := httptest.NewRecorder()
	h.Predict(rec, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(payload)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "too large")
}

func TestPredictDefaultBodyLimit(t *testing.T) {
	h := newTestHandler(t, nil)
	assert.Equal(t, int64(maxPredictBody), h.maxBody)
}
