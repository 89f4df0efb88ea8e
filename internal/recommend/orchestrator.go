// Package recommend is the engine's single public entry point: it sequences
// snapshot building, the model assessment, the rule-based fallback and the
// emergency heuristic, and always hands the loan workflow a well-formed
// recommendation.
package recommend

import (
	"context"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"chamacredit/internal/core"
	"chamacredit/internal/features"
	"chamacredit/internal/loanmath"
	"chamacredit/internal/model"
	"chamacredit/internal/scoring"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReview  Decision = "review"
	DecisionReject  Decision = "reject"
)

// Path labels for logs and metrics.
const (
	PathModel     = "model"
	PathRules     = "rules"
	PathEmergency = "emergency"
	PathNoData    = "no_data"
	PathNoMember  = "no_member"
)

// Recommendation is the shape every branch of the engine fills in. Degraded
// paths are distinguishable only through Confidence, never through an error.
type Recommendation struct {
	Recommendation       Decision         `json:"recommendation"`
	Confidence           model.Confidence `json:"confidence"`
	MaxRecommendedAmount core.Money       `json:"maxRecommendedAmount"`
	CreditScore          int              `json:"creditScore"`
	RiskCategory         scoring.Risk     `json:"riskCategory"`
	InterestRate         decimal.Decimal  `json:"interestRate"`
	Message              string           `json:"message"`
	Explanation          string           `json:"explanation"`
	MonthlyPayment       core.Money       `json:"monthlyPayment"`
	Savings              core.Money       `json:"savings"`
}

// Metrics records recommendation outcomes. Implementations must tolerate
// being nil-checked out; the prometheus collector satisfies it.
type Metrics interface {
	RecordRecommendation(path string, decision string)
	ObserveCreditScore(score int)
}

// request carries the per-call inputs through the strategy chain.
type request struct {
	memberID  int64
	requested core.Money
	snapshot  *features.Snapshot
}

// strategy is one layer of the fallback chain. A false second return means
// "fall through to the next layer"; each layer is consulted at most once.
type strategy interface {
	name() string
	evaluate(ctx context.Context, req request) (*Recommendation, bool)
}

type Orchestrator struct {
	src        features.Source
	snapshots  *features.SnapshotBuilder
	assessor   *scoring.Assessor
	cfg        scoring.Config
	metrics    Metrics
	strategies []strategy
}

// New wires the fallback chain in its fixed order: model, rules, emergency.
// The assessor may wrap a nil model; metrics may be nil.
func New(src features.Source, assessor *scoring.Assessor, cfg scoring.Config, metrics Metrics) *Orchestrator {
	o := &Orchestrator{
		src:       src,
		snapshots: features.NewSnapshotBuilder(src),
		assessor:  assessor,
		cfg:       cfg,
		metrics:   metrics,
	}
	o.strategies = []strategy{
		&modelStrategy{o},
		&ruleStrategy{o},
		&emergencyStrategy{o},
	}
	return o
}

// Recommend produces the loan recommendation for one member. It never
// returns an error: every internal failure is absorbed into the next layer
// of the chain, and the terminal layers cannot fail.
func (o *Orchestrator) Recommend(ctx context.Context, memberID int64, requested core.Money) *Recommendation {
	snap, err := o.snapshots.Build(ctx, memberID)
	if err != nil {
		slog.ErrorContext(ctx, "Snapshot build failed, returning minimal safe recommendation",
			"member_id", memberID, "error", err)
		rec := o.minimalSafe(snap, requested)
		o.record(PathNoData, rec)
		return rec
	}

	if !snap.HasMember() {
		rec := &Recommendation{
			Recommendation: DecisionReject,
			Confidence:     model.ConfidenceLow,
			CreditScore:    0,
			RiskCategory:   scoring.RiskHigh,
			InterestRate:   loanmath.InterestRate(0),
			Message:        "Member not found",
			Explanation:    "No member record exists for this request.",
		}
		o.record(PathNoMember, rec)
		return rec
	}

	req := request{memberID: memberID, requested: requested, snapshot: snap}
	for _, s := range o.strategies {
		rec, ok := o.evaluateSafely(ctx, s, req)
		if !ok {
			continue
		}
		o.record(s.name(), rec)
		return rec
	}

	// The emergency strategy is terminal, so this is unreachable; kept so
	// the contract survives a future strategy-list edit.
	rec := o.minimalSafe(snap, requested)
	o.record(PathNoData, rec)
	return rec
}

// evaluateSafely keeps a strategy failure inside the chain: a panic in one
// layer becomes a fall-through to the next, which is how an unhandled fault
// anywhere above reaches the emergency layer instead of the caller.
func (o *Orchestrator) evaluateSafely(ctx context.Context, s strategy, req request) (rec *Recommendation, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Recommendation strategy panicked, falling through",
				"strategy", s.name(), "member_id", req.memberID, "panic", r)
			rec, ok = nil, false
		}
	}()
	return s.evaluate(ctx, req)
}

func (o *Orchestrator) record(path string, rec *Recommendation) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordRecommendation(path, string(rec.Recommendation))
	o.metrics.ObserveCreditScore(rec.CreditScore)
}

// minimalSafe is the step-1 floor: the data layer gave us nothing usable.
func (o *Orchestrator) minimalSafe(snap *features.Snapshot, requested core.Money) *Recommendation {
	decision := DecisionReview
	if snap.HasMember() {
		// Partial data that still surfaced a member is treated more
		// conservatively than a silent store.
		decision = DecisionReject
	}
	const score = 50
	rate := loanmath.InterestRate(score)
	return &Recommendation{
		Recommendation: decision,
		Confidence:     model.ConfidenceLow,
		CreditScore:    score,
		RiskCategory:   scoring.RiskMedium,
		InterestRate:   rate,
		Message:        "Member data is temporarily unavailable",
		Explanation:    "The data store could not be read; a neutral score was assigned. Retry before acting on this recommendation.",
		MonthlyPayment: loanmath.MonthlyPayment(requested, rate, loanmath.DefaultTermMonths),
	}
}

// finalize applies the shared decision mapping, pricing and the minimum
// savings override to a scored result.
func (o *Orchestrator) finalize(score int, risk scoring.Risk, confidence model.Confidence,
	limit core.Money, explanation string, savings core.Money, requested core.Money) *Recommendation {

	if savings.Units() < scoring.MinimumSavingsUnits {
		limit = core.Money{}
	}

	decision := DecisionReview
	switch {
	case risk == scoring.RiskHigh || float64(score) < o.cfg.ReviewThreshold:
		decision = DecisionReject
	case risk == scoring.RiskLow && float64(score) >= o.cfg.ApproveThreshold:
		decision = DecisionApprove
	}

	rate := loanmath.InterestRate(score)

	var message string
	switch decision {
	case DecisionApprove:
		message = "Loan request can be approved"
	case DecisionReview:
		message = "Loan request needs manual review"
	default:
		message = "Loan request should be declined"
	}

	return &Recommendation{
		Recommendation:       decision,
		Confidence:           confidence,
		MaxRecommendedAmount: limit,
		CreditScore:          score,
		RiskCategory:         risk,
		InterestRate:         rate,
		Message:              message,
		Explanation:          explanation,
		MonthlyPayment:       loanmath.MonthlyPayment(requested, rate, loanmath.DefaultTermMonths),
		Savings:              savings,
	}
}

type modelStrategy struct{ o *Orchestrator }

func (s *modelStrategy) name() string { return PathModel }

func (s *modelStrategy) evaluate(ctx context.Context, req request) (*Recommendation, bool) {
	if !s.o.cfg.ModelEnabled || s.o.assessor == nil {
		return nil, false
	}

	groupID := int64(0)
	if req.snapshot.Member != nil {
		groupID = req.snapshot.Member.GroupID
	}
	assessment, err := s.o.assessor.Assess(ctx, req.memberID, groupID)
	if err != nil {
		slog.InfoContext(ctx, "Model assessment unavailable, falling back to rules",
			"member_id", req.memberID, "reason", err)
		return nil, false
	}

	savings := core.Money{Cents: int64(assessment.FeatureSummary[features.FeatTotalSavings] * 100)}
	return s.o.finalize(assessment.CreditScore, assessment.Risk, assessment.Confidence,
		assessment.LoanLimit, assessment.Explanation, savings, req.requested), true
}

type ruleStrategy struct{ o *Orchestrator }

func (s *ruleStrategy) name() string { return PathRules }

func (s *ruleStrategy) evaluate(ctx context.Context, req request) (*Recommendation, bool) {
	snap := req.snapshot
	if snap.ContributionsUnavailable {
		// Savings cannot be trusted; let emergency recovery recompute them.
		return nil, false
	}
	// Round rather than truncate so rule and model scores land in the same
	// interest and decision buckets at the boundaries.
	score := int(math.Round(scoring.ScoreSnapshot(snap, s.o.cfg)))
	risk := scoring.SnapshotRisk(score, snap, s.o.cfg)
	limit := scoring.SnapshotLoanLimit(score, risk, snap)
	explanation := scoring.BuildExplanation(scoring.SnapshotFactors(snap), risk)

	return s.o.finalize(score, risk, model.ConfidenceMedium, limit, explanation,
		snap.Savings, req.requested), true
}

// emergencyStrategy only runs when the layers above both fell through,
// which in practice means the snapshot itself is suspect. It re-derives
// savings straight from approved contributions and produces a bounded
// conservative score.
type emergencyStrategy struct{ o *Orchestrator }

func (s *emergencyStrategy) name() string { return PathEmergency }

func (s *emergencyStrategy) evaluate(ctx context.Context, req request) (*Recommendation, bool) {
	savings := req.snapshot.Savings
	contributionCount := req.snapshot.ContributionCount
	if savings.IsZero() || req.snapshot.ContributionsUnavailable {
		if contribs, err := s.o.src.ContributionsByMember(ctx, req.memberID); err == nil {
			contributionCount = 0
			for _, c := range contribs {
				if c.Status == core.ContributionApproved {
					savings = savings.Add(c.Amount)
					contributionCount++
				}
			}
		}
	}

	score := 30 + contributionCount*2
	if req.snapshot.DefaultedLoans > 0 {
		score -= 15
	}
	if score < 30 {
		score = 30
	} else if score > 70 {
		score = 70
	}

	decision := DecisionReject
	if savings.Units() >= scoring.MinimumSavingsUnits {
		decision = DecisionReview
	}

	slog.WarnContext(ctx, "Emergency recovery produced the recommendation",
		"member_id", req.memberID, "score", score, "decision", decision)

	rate := loanmath.InterestRate(score)
	return &Recommendation{
		Recommendation: decision,
		Confidence:     model.ConfidenceLow,
		CreditScore:    score,
		RiskCategory:   scoring.RiskHigh,
		InterestRate:   rate,
		Message:        "Assessment degraded, manual review recommended",
		Explanation:    "The scoring pipeline was unavailable; a conservative estimate was derived from contribution history alone.",
		MonthlyPayment: loanmath.MonthlyPayment(req.requested, rate, loanmath.DefaultTermMonths),
		Savings:        savings,
	}, true
}
