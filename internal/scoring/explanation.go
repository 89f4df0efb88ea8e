package scoring

import (
	"fmt"
	"strings"

	"chamacredit/internal/features"
)

// Factor is one positive or negative observation feeding the explanation
// narrative. Both the model path and the rule-based path build the same
// factor shape so their explanations read identically.
type Factor struct {
	Positive bool
	Text     string
}

// VectorFactors derives explanation factors from the full feature vector.
func VectorFactors(vec *features.Vector) []Factor {
	var factors []Factor
	add := func(positive bool, format string, args ...any) {
		factors = append(factors, Factor{Positive: positive, Text: fmt.Sprintf(format, args...)})
	}

	if consistency := vec.Get(features.FeatConsistency); consistency >= 0.8 {
		add(true, "contributes on a steady %s cadence", vec.ContributionFrequency)
	} else if consistency < 0.4 && vec.Get(features.FeatContributionCount) > 1 {
		add(false, "contribution timing is erratic")
	}
	if count := vec.Get(features.FeatContributionCount); count >= contributionTarget {
		add(true, "long contribution record (%.0f approved contributions)", count)
	} else if count == 0 {
		add(false, "no approved contributions on record")
	}
	if trend := vec.Get(features.FeatGrowthTrend); trend > 0.2 {
		add(true, "contribution amounts are growing")
	} else if trend < -0.2 {
		add(false, "contribution amounts are shrinking")
	}
	if missed := vec.Get(features.FeatMissedContributions); missed > 3 {
		add(false, "missed roughly %.0f expected contributions", missed)
	}

	if vec.Get(features.FeatDefaultedLoans) > 0 {
		add(false, "has defaulted on a previous loan")
	}
	if discipline := vec.Get(features.FeatRepaymentDiscipline); discipline >= 0.9 &&
		vec.Get(features.FeatOnTimePayments)+vec.Get(features.FeatEarlyPayments) > 0 {
		add(true, "repays loans on or ahead of schedule")
	} else if discipline < 0.5 && vec.Get(features.FeatLatePayments) > 0 {
		add(false, "frequently pays loan installments late")
	}

	savings := vec.Get(features.FeatTotalSavings)
	if savings >= savingsTargetUnits {
		add(true, "strong savings position")
	} else if savings < MinimumSavingsUnits {
		add(false, "savings below the minimum lending threshold")
	}
	if outstanding := vec.Get(features.FeatOutstandingBalance); savings > 0 && outstanding > 2*savings {
		add(false, "outstanding loan balance exceeds twice the savings")
	}

	if vec.Get(features.FeatAttendanceRate) >= 0.8 && vec.Get(features.FeatMeetingsHeld) > 0 {
		add(true, "attends group meetings reliably")
	}
	if unpaidFines := vec.Get(features.FeatUnpaidFineAmount); unpaidFines > 0 {
		add(false, "carries %.0f in unpaid fines", unpaidFines)
	}

	return factors
}

// SnapshotFactors derives the same factor shape from snapshot counts, for
// the rule-based path where no full vector exists.
func SnapshotFactors(snap *features.Snapshot) []Factor {
	var factors []Factor
	add := func(positive bool, format string, args ...any) {
		factors = append(factors, Factor{Positive: positive, Text: fmt.Sprintf(format, args...)})
	}

	if snap.ContributionCount >= contributionTarget {
		add(true, "long contribution record (%d approved contributions)", snap.ContributionCount)
	} else if snap.ContributionCount == 0 {
		add(false, "no approved contributions on record")
	} else if snap.RecentContributionCount == 0 {
		add(false, "no contributions in the last six months")
	}

	if snap.DefaultedLoans > 0 {
		add(false, "has defaulted on a previous loan")
	}
	if snap.CompletedLoans > 0 {
		if snap.OnTimeCompletedLoans == snap.CompletedLoans {
			add(true, "completed %d loan(s) with nothing left owing", snap.CompletedLoans)
		} else {
			add(false, "past loans were not fully cleared on completion")
		}
	}

	if snap.Savings.Units() >= savingsTargetUnits {
		add(true, "strong savings position")
	} else if snap.Savings.Units() < MinimumSavingsUnits {
		add(false, "savings below the minimum lending threshold")
	}
	if savings := snap.Savings.Units(); savings > 0 && snap.Outstanding.Units() > 2*savings {
		add(false, "outstanding loan balance exceeds twice the savings")
	}

	if snap.MeetingsHeld > 0 && snap.AttendanceRate() >= 0.8 {
		add(true, "attends group meetings reliably")
	}
	if snap.UnpaidFineAmount.Cents > 0 {
		add(false, "carries %.0f in unpaid fines", snap.UnpaidFineAmount.Units())
	}

	return factors
}

// BuildExplanation renders up to three strengths and three concerns, closed
// by the risk tier's recommendation sentence.
func BuildExplanation(factors []Factor, risk Risk) string {
	var positives, negatives []string
	for _, f := range factors {
		if f.Positive && len(positives) < 3 {
			positives = append(positives, f.Text)
		} else if !f.Positive && len(negatives) < 3 {
			negatives = append(negatives, f.Text)
		}
	}

	var b strings.Builder
	if len(positives) > 0 {
		b.WriteString("Strengths: ")
		b.WriteString(strings.Join(positives, "; "))
		b.WriteString(". ")
	}
	if len(negatives) > 0 {
		b.WriteString("Concerns: ")
		b.WriteString(strings.Join(negatives, "; "))
		b.WriteString(". ")
	}
	if len(positives) == 0 && len(negatives) == 0 {
		b.WriteString("Not enough history to highlight specific factors. ")
	}

	switch risk {
	case RiskLow:
		b.WriteString("Low risk: standard loan terms are appropriate.")
	case RiskMedium:
		b.WriteString("Medium risk: lend within the recommended limit and monitor repayments.")
	default:
		b.WriteString("High risk: require guarantors or additional savings before lending.")
	}
	return b.String()
}
