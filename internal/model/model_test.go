package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chamacredit/internal/features"
)

func trainedModel() *Model {
	names := FeatureNames()
	weights := make(map[string]float64, len(names))
	for i, name := range names {
		weights[name] = 0.1 * float64(i%5)
	}
	return &Model{
		Bias:         -0.5,
		Weights:      weights,
		FeatureNames: names,
		Trained:      true,
		Version:      "test-version",
		TrainedAt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func sampleVector() *features.Vector {
	vec := features.SafeDefaultVector(1)
	vec.Values[features.FeatTotalSavings] = 250000
	vec.Values[features.FeatContributionCount] = 18
	vec.Values[features.FeatConsistency] = 0.9
	vec.Values[features.FeatRepaymentDiscipline] = 0.85
	vec.ContributionFrequency = features.FrequencyMonthly
	vec.EngagementLevel = features.EngagementMedium
	return vec
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts", "model.json")

	m := trainedModel()
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Version != m.Version {
		t.Errorf("version = %q, want %q", loaded.Version, m.Version)
	}
	if loaded.Bias != m.Bias {
		t.Errorf("bias = %v, want %v", loaded.Bias, m.Bias)
	}
	if len(loaded.FeatureNames) != len(m.FeatureNames) {
		t.Fatalf("feature names = %d, want %d", len(loaded.FeatureNames), len(m.FeatureNames))
	}

	// A reloaded model must score identically to the one that was saved.
	vec := sampleVector()
	before, err := m.Predict(vec)
	if err != nil {
		t.Fatalf("Predict before save: %v", err)
	}
	after, err := loaded.Predict(vec)
	if err != nil {
		t.Fatalf("Predict after load: %v", err)
	}
	if before.Score != after.Score || before.Probability != after.Probability {
		t.Errorf("prediction drifted across save/load: %+v vs %+v", before, after)
	}
}

func TestSaveLeavesNoPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := trainedModel().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary artifact left behind")
	}
}

func TestLoadRejectsUntrained(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	m := trainedModel()
	m.Trained = false
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := Load(path); err != ErrNotTrained {
		t.Errorf("Load of untrained artifact = %v, want ErrNotTrained", err)
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed artifact")
	}
}

func TestPredictUntrained(t *testing.T) {
	var m *Model
	if _, err := m.Predict(sampleVector()); err != ErrNotTrained {
		t.Errorf("nil model Predict = %v, want ErrNotTrained", err)
	}
	m = &Model{}
	if _, err := m.Predict(sampleVector()); err != ErrNotTrained {
		t.Errorf("untrained Predict = %v, want ErrNotTrained", err)
	}
}

func TestPredictScoreBounds(t *testing.T) {
	m := trainedModel()
	tests := []struct {
		name string
		bias float64
	}{
		{"strongly negative", -50},
		{"strongly positive", 50},
		{"neutral", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.Bias = tt.bias
			p, err := m.Predict(sampleVector())
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
			if p.Score < 0 || p.Score > 100 {
				t.Errorf("score %d out of [0,100]", p.Score)
			}
		})
	}
}

func TestPredictDeterministic(t *testing.T) {
	m := trainedModel()
	vec := sampleVector()
	first, err := m.Predict(vec)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := m.Predict(vec)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		if again != first {
			t.Fatalf("prediction varies across runs: %+v vs %+v", first, again)
		}
	}
}

func TestNormalizeBounds(t *testing.T) {
	vec := features.SafeDefaultVector(1)
	// Push raw values well past every cap.
	for _, name := range FeatureNames() {
		vec.Values[name] = 1e12
	}
	normalized := Normalize(vec)
	for name, v := range normalized {
		if v < 0 || v > 1 {
			t.Errorf("normalized %s = %v out of [0,1]", name, v)
		}
	}
}

func TestNormalizeMissingKeysZero(t *testing.T) {
	vec := &features.Vector{MemberID: 1, Values: map[string]float64{}}
	normalized := Normalize(vec)
	for _, name := range FeatureNames() {
		if _, ok := normalized[name]; !ok {
			t.Errorf("normalized output missing %s", name)
		}
	}
	if normalized[features.FeatTotalSavings] != 0 {
		t.Errorf("missing savings should normalize to 0, got %v", normalized[features.FeatTotalSavings])
	}
}

func TestNormalizeOneHot(t *testing.T) {
	vec := features.SafeDefaultVector(1)
	vec.ContributionFrequency = features.FrequencyWeekly
	vec.EngagementLevel = features.EngagementHigh
	normalized := Normalize(vec)

	if normalized["contributionFrequency_weekly"] != 1 {
		t.Error("weekly one-hot not set")
	}
	if normalized["contributionFrequency_monthly"] != 0 || normalized["contributionFrequency_irregular"] != 0 {
		t.Error("inactive frequency one-hots should be zero")
	}
	if normalized["engagementLevel_high"] != 1 {
		t.Error("high engagement one-hot not set")
	}
	if normalized["engagementLevel_medium"] != 0 || normalized["engagementLevel_low"] != 0 {
		t.Error("inactive engagement one-hots should be zero")
	}
}

func TestSigmoid(t *testing.T) {
	if got := Sigmoid(0); got != 0.5 {
		t.Errorf("Sigmoid(0) = %v, want 0.5", got)
	}
	if got := Sigmoid(100); got <= 0.99 {
		t.Errorf("Sigmoid(100) = %v, want near 1", got)
	}
	if got := Sigmoid(-100); got >= 0.01 {
		t.Errorf("Sigmoid(-100) = %v, want near 0", got)
	}
	if math.IsNaN(Sigmoid(math.Inf(-1))) {
		t.Error("Sigmoid(-inf) should not be NaN")
	}
}

func TestConfidenceFromProbability(t *testing.T) {
	tests := []struct {
		p    float64
		want Confidence
	}{
		{0.95, ConfidenceHigh},
		{0.8, ConfidenceHigh},
		{0.05, ConfidenceHigh},
		{0.2, ConfidenceHigh},
		{0.7, ConfidenceMedium},
		{0.6, ConfidenceMedium},
		{0.4, ConfidenceMedium},
		{0.3, ConfidenceMedium},
		{0.55, ConfidenceLow},
		{0.5, ConfidenceLow},
		{0.45, ConfidenceLow},
	}
	for _, tt := range tests {
		if got := ConfidenceFromProbability(tt.p); got != tt.want {
			t.Errorf("ConfidenceFromProbability(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
