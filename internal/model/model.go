// Package model holds the trained credit model artifact: an immutable bias
// plus per-feature weight vector produced by training and shared read-only
// across concurrent assessments.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"chamacredit/internal/features"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

var (
	ErrNotTrained        = errors.New("model not trained")
	ErrInvalidPrediction = errors.New("prediction produced a non-finite score")
)

// Model is the persisted weight set. It is replaced wholesale by re-training
// and never mutated after load, so it needs no locking.
type Model struct {
	Bias         float64            `json:"bias"`
	Weights      map[string]float64 `json:"weights"`
	FeatureNames []string           `json:"featureNames"`
	Trained      bool               `json:"trained"`
	Version      string             `json:"version"`
	TrainedAt    time.Time          `json:"timestamp"`
}

// Prediction is a scored probability with its qualitative confidence.
type Prediction struct {
	Score       int
	Probability float64
	Confidence  Confidence
}

// Load reads a model artifact from disk.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if !m.Trained || len(m.FeatureNames) == 0 {
		return nil, ErrNotTrained
	}
	return &m, nil
}

// Save writes the artifact atomically so a concurrent Load never observes a
// partial file.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model artifact: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create artifact directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write model artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace model artifact: %w", err)
	}
	return nil
}

// Predict scores a feature vector. It is a pure function of the vector and
// the frozen weights: normalize with the training rules, dot product plus
// bias, sigmoid, scale to 0-100. Features the model never saw contribute
// nothing; weights for features the vector lacks multiply zero.
func (m *Model) Predict(vec *features.Vector) (Prediction, error) {
	if m == nil || !m.Trained {
		return Prediction{}, ErrNotTrained
	}

	normalized := Normalize(vec)
	z := m.Bias
	for _, name := range m.FeatureNames {
		z += m.Weights[name] * normalized[name]
	}

	p := Sigmoid(z)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return Prediction{}, ErrInvalidPrediction
	}

	score := int(math.Round(p * 100))
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	return Prediction{
		Score:       score,
		Probability: p,
		Confidence:  ConfidenceFromProbability(p),
	}, nil
}

func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// ConfidenceFromProbability grades how decisively the sigmoid output sits
// away from the 0.5 midpoint.
func ConfidenceFromProbability(p float64) Confidence {
	switch {
	case p >= 0.8 || p <= 0.2:
		return ConfidenceHigh
	case p >= 0.6 || p <= 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
