// Package training implements the offline batch job that fits the credit
// model: heuristic target labels over extracted feature vectors, trained by
// mini-batch gradient descent with a sigmoid link.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"chamacredit/internal/features"
	"chamacredit/internal/model"
)

// Store lists the members eligible for the training set.
type Store interface {
	MemberIDsWithActivity(ctx context.Context) ([]int64, error)
}

// Options tune the gradient descent run. Zero values fall back to the
// deployment defaults.
type Options struct {
	Epochs       int
	LearningRate float64
	MinSamples   int
	WarnSamples  int
}

func (o Options) withDefaults() Options {
	if o.Epochs <= 0 {
		o.Epochs = 200
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.01
	}
	if o.MinSamples <= 0 {
		o.MinSamples = 5
	}
	if o.WarnSamples <= 0 {
		o.WarnSamples = 20
	}
	return o
}

// Result reports a completed training run.
type Result struct {
	Model         *model.Model
	Samples       int
	LowConfidence bool
}

var ErrTooFewSamples = errors.New("training set below usability threshold")

type Trainer struct {
	store     Store
	extractor *features.Extractor
	opts      Options
	rng       *rand.Rand
	now       func() time.Time
}

func NewTrainer(store Store, extractor *features.Extractor, opts Options) *Trainer {
	return &Trainer{
		store:     store,
		extractor: extractor,
		opts:      opts.withDefaults(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

// Train builds the training set, fits bias and weights, and returns the new
// model. It aborts only when the member store is unreachable or the sample
// count is below the usability floor; a small-but-usable set still trains,
// flagged low confidence.
func (t *Trainer) Train(ctx context.Context) (*Result, error) {
	memberIDs, err := t.store.MemberIDsWithActivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("list eligible members: %w", err)
	}

	names := model.FeatureNames()
	var (
		rows    [][]float64
		targets []float64
	)
	for _, id := range memberIDs {
		vec := t.extractor.Extract(ctx, id, 0)
		normalized := model.Normalize(vec)
		row := make([]float64, len(names))
		for i, name := range names {
			row[i] = normalized[name]
		}
		rows = append(rows, row)
		targets = append(targets, TargetScore(vec)/100)
	}

	n := len(rows)
	if n < t.opts.MinSamples {
		return nil, fmt.Errorf("%w: %d samples, need %d", ErrTooFewSamples, n, t.opts.MinSamples)
	}
	lowConfidence := n < t.opts.WarnSamples
	if lowConfidence {
		slog.WarnContext(ctx, "Training set is small, model confidence will be limited",
			"samples", n, "recommended_minimum", t.opts.WarnSamples)
	}

	bias, weights := t.fit(rows, targets)

	weightsByName := make(map[string]float64, len(names))
	for i, name := range names {
		weightsByName[name] = weights[i]
	}

	m := &model.Model{
		Bias:         bias,
		Weights:      weightsByName,
		FeatureNames: names,
		Trained:      true,
		Version:      uuid.NewString(),
		TrainedAt:    t.now().UTC(),
	}

	slog.InfoContext(ctx, "Model training completed",
		"version", m.Version,
		"samples", n,
		"epochs", t.opts.Epochs,
		"low_confidence", lowConfidence)

	return &Result{Model: m, Samples: n, LowConfidence: lowConfidence}, nil
}

// fit runs mini-batch gradient descent on the sigmoid-linked linear model.
// Batch size is min(32, n/4) with a floor of one; the training set is
// reshuffled every epoch.
func (t *Trainer) fit(rows [][]float64, targets []float64) (float64, []float64) {
	n := len(rows)
	dims := len(rows[0])

	batchSize := n / 4
	if batchSize > 32 {
		batchSize = 32
	}
	if batchSize < 1 {
		batchSize = 1
	}

	bias := 0.0
	weights := make([]float64, dims)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	gradW := make([]float64, dims)
	for epoch := 0; epoch < t.opts.Epochs; epoch++ {
		t.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}
			size := float64(end - start)

			gradB := 0.0
			for i := range gradW {
				gradW[i] = 0
			}
			for _, idx := range order[start:end] {
				row := rows[idx]
				z := bias
				for i, x := range row {
					z += weights[i] * x
				}
				diff := model.Sigmoid(z) - targets[idx]
				gradB += diff
				for i, x := range row {
					gradW[i] += diff * x
				}
			}

			bias -= t.opts.LearningRate * gradB / size
			for i := range weights {
				weights[i] -= t.opts.LearningRate * gradW[i] / size
			}
		}
	}

	return bias, weights
}
