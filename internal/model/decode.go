package model

import (
	"math"
	"sort"
)

// Softmax converts raw logits into a probability distribution.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}

	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	probs := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxVal))
		probs[i] = float32(e)
		sum += e
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sum)
	}
	return probs
}

// DecodePredictions returns the k most probable classes in descending order.
// Equal probabilities keep class index order. Missing labels fall back to an
// empty string so a short label list never panics.
func DecodePredictions(labels []Label, probs []float32, k int) []Prediction {
	if k <= 0 || len(probs) == 0 {
		return nil
	}

	indices := make([]int, len(probs))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return probs[indices[a]] > probs[indices[b]]
	})

	if k > len(indices) {
		k = len(indices)
	}

	predictions := make([]Prediction, 0, k)
	for _, idx := range indices[:k] {
		var label Label
		if idx < len(labels) {
			label = labels[idx]
		}
		predictions = append(predictions, Prediction{
			ID:          label.ID,
			Label:       label.Name,
			Probability: probs[idx],
		})
	}
	return predictions
}
