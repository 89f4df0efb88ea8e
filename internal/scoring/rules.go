// Package scoring turns feature vectors and snapshots into credit scores,
// risk categories, loan ceilings and explanations.
package scoring

import (
	"context"
	"fmt"
	"math"

	"chamacredit/internal/features"
)

// Scoring anchors. Sub-scores reach their full category weight at these
// reference points.
const (
	contributionTarget = 12      // approved contributions
	savingsTargetUnits = 500_000 // currency units
	ageTargetMonths    = 20

	// Below this savings level no loan limit is usable.
	MinimumSavingsUnits = 10_000
)

// Config is the rule-based scorer's weight and threshold set. It is read
// from external configuration storage and passed in explicitly; Validate is
// a pure function so an invalid update can be rejected while the prior
// configuration stays in effect.
type Config struct {
	ContributionWeight float64 `json:"contributionWeight"`
	PaymentWeight      float64 `json:"paymentWeight"`
	SavingsWeight      float64 `json:"savingsWeight"`
	AgeWeight          float64 `json:"ageWeight"`

	ApproveThreshold float64 `json:"approveThreshold"`
	ReviewThreshold  float64 `json:"reviewThreshold"`

	ModelEnabled bool `json:"modelEnabled"`
}

func DefaultConfig() Config {
	return Config{
		ContributionWeight: 40,
		PaymentWeight:      30,
		SavingsWeight:      20,
		AgeWeight:          10,
		ApproveThreshold:   70,
		ReviewThreshold:    40,
		ModelEnabled:       true,
	}
}

func (c Config) Validate() error {
	weights := []float64{c.ContributionWeight, c.PaymentWeight, c.SavingsWeight, c.AgeWeight}
	var sum float64
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("category weight %v is negative", w)
		}
		sum += w
	}
	if math.Abs(sum-100) > 1e-9 {
		return fmt.Errorf("category weights sum to %v, must sum to 100", sum)
	}
	if c.ApproveThreshold > 100 || c.ApproveThreshold <= c.ReviewThreshold {
		return fmt.Errorf("approve threshold %v must be in (review, 100]", c.ApproveThreshold)
	}
	if c.ReviewThreshold < 0 {
		return fmt.Errorf("review threshold %v must be non-negative", c.ReviewThreshold)
	}
	return nil
}

// ScoreSnapshot is the deterministic weighted-sum fallback formula. The same
// snapshot always scores the same.
func ScoreSnapshot(snap *features.Snapshot, cfg Config) float64 {
	if snap == nil || !snap.HasMember() {
		return 0
	}

	contribution := capRatio(float64(snap.ContributionCount)/contributionTarget) * cfg.ContributionWeight

	// Payment history: on-time completion ratio. No completed loans means no
	// evidence of missed payments either, so the category pays out in full.
	payment := cfg.PaymentWeight
	if snap.CompletedLoans > 0 {
		payment = float64(snap.OnTimeCompletedLoans) / float64(snap.CompletedLoans) * cfg.PaymentWeight
	}

	savings := capRatio(snap.Savings.Units()/savingsTargetUnits) * cfg.SavingsWeight
	age := capRatio(float64(snap.MembershipMonths)/ageTargetMonths) * cfg.AgeWeight

	score := contribution + payment + savings + age
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Score is the live-query shape of the rule-based scorer: it builds the
// snapshot and defers to ScoreSnapshot, so both shapes agree on identical
// inputs.
func Score(ctx context.Context, src features.Source, memberID int64, cfg Config) (float64, error) {
	snap, err := features.NewSnapshotBuilder(src).Build(ctx, memberID)
	if err != nil {
		return 0, fmt.Errorf("build snapshot for member %d: %w", memberID, err)
	}
	return ScoreSnapshot(snap, cfg), nil
}

func capRatio(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
