package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"chamacredit/internal/core"
	"chamacredit/internal/features"
	"chamacredit/internal/model"
)

type Risk string

const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
)

var (
	// ErrModelUnavailable signals the orchestrator to fall through to the
	// rule-based path. It is expected traffic, not a fault.
	ErrModelUnavailable = errors.New("trained model unavailable")
	ErrInvalidVector    = errors.New("feature vector failed validation")
)

// Assessment is the model path's full output.
type Assessment struct {
	CreditScore    int
	Risk           Risk
	LoanLimit      core.Money
	Explanation    string
	Confidence     model.Confidence
	FeatureSummary map[string]float64
}

// Assessor wraps the trained model with feature extraction, risk
// categorization, loan ceiling computation and explanation building.
type Assessor struct {
	extractor *features.Extractor
	model     *model.Model
}

// NewAssessor accepts a nil model; Assess then reports ErrModelUnavailable
// and the caller falls back.
func NewAssessor(extractor *features.Extractor, m *model.Model) *Assessor {
	return &Assessor{extractor: extractor, model: m}
}

// Assess scores one member through the trained model. Every error return is
// a fall-through signal for the orchestrator, never a user-facing failure.
func (a *Assessor) Assess(ctx context.Context, memberID, groupID int64) (*Assessment, error) {
	if a.model == nil || !a.model.Trained {
		return nil, ErrModelUnavailable
	}

	vec := a.extractor.Extract(ctx, memberID, groupID)
	if !vec.Valid() {
		return nil, ErrInvalidVector
	}

	pred, err := a.model.Predict(vec)
	if err != nil {
		return nil, fmt.Errorf("model prediction: %w", err)
	}

	risk := RiskCategory(pred.Score, vec)
	limit := LoanLimit(pred.Score, risk, vec)

	slog.DebugContext(ctx, "Model assessment completed",
		"member_id", memberID,
		"score", pred.Score,
		"risk", risk,
		"confidence", pred.Confidence)

	return &Assessment{
		CreditScore: pred.Score,
		Risk:        risk,
		LoanLimit:   limit,
		Explanation: BuildExplanation(VectorFactors(vec), risk),
		Confidence:  pred.Confidence,
		FeatureSummary: map[string]float64{
			features.FeatTotalSavings:        vec.Get(features.FeatTotalSavings),
			features.FeatContributionCount:   vec.Get(features.FeatContributionCount),
			features.FeatConsistency:         vec.Get(features.FeatConsistency),
			features.FeatRepaymentDiscipline: vec.Get(features.FeatRepaymentDiscipline),
			features.FeatDefaultRate:         vec.Get(features.FeatDefaultRate),
			features.FeatOutstandingBalance:  vec.Get(features.FeatOutstandingBalance),
		},
	}, nil
}

// RiskCategory applies the tri-level classification with its override
// conditions. Overrides win over the blended numeric score: one default on
// record forces High no matter how strong the rest looks.
func RiskCategory(score int, vec *features.Vector) Risk {
	savings := vec.Get(features.FeatTotalSavings)
	outstanding := vec.Get(features.FeatOutstandingBalance)

	highLoanRatio := false
	if savings > 0 {
		highLoanRatio = outstanding/savings > 3
	} else if outstanding > 0 {
		highLoanRatio = true
	}

	switch {
	case score < 40,
		vec.Get(features.FeatDefaultedLoans) > 0,
		vec.Get(features.FeatDefaultRate) > 0.3,
		vec.Get(features.FeatUnpaidFineAmount) > 5_000,
		highLoanRatio:
		return RiskHigh
	case score >= 70 &&
		vec.Get(features.FeatConsistency) >= 0.8 &&
		vec.Get(features.FeatRepaymentDiscipline) >= 0.9 &&
		vec.Get(features.FeatAttendanceRate) >= 0.8 &&
		vec.Get(features.FeatTotalFines) == 0:
		return RiskLow
	default:
		return RiskMedium
	}
}

// LoanLimit computes the recommended ceiling for a new loan from the full
// feature vector.
func LoanLimit(score int, risk Risk, vec *features.Vector) core.Money {
	return limitFrom(score, risk,
		vec.Get(features.FeatTotalSavings),
		vec.Get(features.FeatOutstandingBalance),
		vec.Get(features.FeatUnpaidFineAmount))
}

// SnapshotRisk mirrors RiskCategory for the fallback path, with the
// snapshot's coarser signals standing in for the full vector. The same
// override conditions apply: any default history forces High.
func SnapshotRisk(score int, snap *features.Snapshot, cfg Config) Risk {
	savings := snap.Savings.Units()
	outstanding := snap.Outstanding.Units()

	highLoanRatio := false
	if savings > 0 {
		highLoanRatio = outstanding/savings > 3
	} else if outstanding > 0 {
		highLoanRatio = true
	}

	switch {
	case float64(score) < cfg.ReviewThreshold,
		snap.DefaultedLoans > 0,
		snap.UnpaidFineAmount.Units() > 5_000,
		highLoanRatio:
		return RiskHigh
	case float64(score) >= cfg.ApproveThreshold &&
		snap.DefaultedLoans == 0 &&
		snap.FineCount == 0 &&
		snap.AttendanceRate() >= 0.8:
		return RiskLow
	default:
		return RiskMedium
	}
}

// SnapshotLoanLimit computes the ceiling from snapshot aggregates using the
// same formula as the model path.
func SnapshotLoanLimit(score int, risk Risk, snap *features.Snapshot) core.Money {
	return limitFrom(score, risk,
		snap.Savings.Units(),
		snap.Outstanding.Units(),
		snap.UnpaidFineAmount.Units())
}

// limitFrom is the shared ceiling formula: a risk-tiered multiple of
// savings, scaled by score, halved under heavy existing exposure, reduced
// by unpaid fines, hard-capped at five times savings, and zeroed below the
// minimum savings floor.
func limitFrom(score int, risk Risk, savings, outstanding, unpaidFines float64) core.Money {
	if savings < MinimumSavingsUnits {
		return core.Money{}
	}

	var base float64
	switch risk {
	case RiskLow:
		base = math.Min(savings*3, savings+500_000)
	case RiskMedium:
		base = math.Min(savings*1.5, savings+200_000)
	default:
		base = math.Min(savings, savings+50_000)
	}

	limit := base * float64(score) / 100
	if outstanding/savings > 0.5 {
		limit /= 2
	}
	limit -= unpaidFines
	if limit < 0 {
		limit = 0
	}
	if ceiling := savings * 5; limit > ceiling {
		limit = ceiling
	}

	return core.Money{Cents: int64(math.Round(limit * 100))}
}
