package training

import "chamacredit/internal/features"

// TargetScore computes the heuristic label the model is trained against,
// on the 0-100 scale. Its weighting is intentionally independent of the
// rule-based fallback formula: this one defines what "good" looks like for
// the label, the fallback is a serving-time approximation.
func TargetScore(vec *features.Vector) float64 {
	// Contribution behavior, up to 30 points.
	contribution := vec.Get(features.FeatConsistency)*15 +
		capAt(vec.Get(features.FeatContributionCount)/24, 1)*10 +
		positive(vec.Get(features.FeatGrowthTrend))*5

	// Repayment behavior, up to 30 points.
	classified := vec.Get(features.FeatOnTimePayments) +
		vec.Get(features.FeatEarlyPayments) +
		vec.Get(features.FeatLatePayments)
	earlyShare := 0.0
	if classified > 0 {
		earlyShare = vec.Get(features.FeatEarlyPayments) / classified
	}
	repayment := vec.Get(features.FeatRepaymentDiscipline)*22 +
		earlyShare*4 + 4 -
		vec.Get(features.FeatDefaultRate)*10
	if repayment < 0 {
		repayment = 0
	} else if repayment > 30 {
		repayment = 30
	}

	// Savings strength, up to 20 points.
	savings := vec.Get(features.FeatTotalSavings)
	savingsScore := capAt(savings/500_000, 1)*12 +
		capAt(positive(vec.Get(features.FeatSavingsGrowthRate)), 1)*4 +
		vec.Get(features.FeatBalanceStability)*4

	// Engagement, up to 15 points.
	engagement := vec.Get(features.FeatParticipationScore)*10 +
		vec.Get(features.FeatAttendanceRate)*5

	// Membership age, up to 5 points.
	age := capAt(vec.Get(features.FeatMembershipMonths)/24, 1) * 5

	score := contribution + repayment + savingsScore + engagement + age

	// Penalties.
	score -= capAt(vec.Get(features.FeatUnpaidFineAmount)/1000, 10)
	if missed := vec.Get(features.FeatMissedContributions); missed > 3 {
		score -= capAt(missed-3, 5)
	}
	if outstanding := vec.Get(features.FeatOutstandingBalance); savings > 0 && outstanding > 2*savings {
		score -= 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func capAt(x, max float64) float64 {
	if x > max {
		return max
	}
	if x < 0 {
		return 0
	}
	return x
}

func positive(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}
