package model

import (
	"math"

	"chamacredit/internal/features"
)

// featureRange scales a raw feature into [0,1]. Log-scaled ranges compress
// heavy-tailed monetary features before scaling.
type featureRange struct {
	Min float64
	Max float64
	Log bool
}

// numericOrder fixes the feature vector layout. Training and prediction both
// derive their weight ordering from this list, so the two can never disagree
// on which column a name maps to.
var numericOrder = []string{
	features.FeatContributionCount,
	features.FeatTotalContributions,
	features.FeatAvgContribution,
	features.FeatRecentContributions,
	features.FeatPriorContributions,
	features.FeatConsistency,
	features.FeatMissedContributions,
	features.FeatGrowthTrend,
	features.FeatTotalLoans,
	features.FeatCompletedLoans,
	features.FeatActiveLoans,
	features.FeatDefaultedLoans,
	features.FeatTotalBorrowed,
	features.FeatTotalRepaid,
	features.FeatOutstandingBalance,
	features.FeatRepaymentDiscipline,
	features.FeatOnTimePayments,
	features.FeatLatePayments,
	features.FeatEarlyPayments,
	features.FeatDefaultRate,
	features.FeatAvgRepaymentSpeed,
	features.FeatTotalSavings,
	features.FeatAvgMonthlySavings,
	features.FeatWithdrawalCount,
	features.FeatWithdrawalAmount,
	features.FeatBalanceStability,
	features.FeatSavingsGrowthRate,
	features.FeatMeetingsHeld,
	features.FeatMeetingsAttended,
	features.FeatAttendanceRate,
	features.FeatTotalFines,
	features.FeatPaidFines,
	features.FeatUnpaidFines,
	features.FeatUnpaidFineAmount,
	features.FeatFineComplianceRate,
	features.FeatParticipationScore,
	features.FeatHasOccupation,
	features.FeatHasNationalID,
	features.FeatHasAddress,
	features.FeatAccountActive,
	features.FeatMembershipMonths,
}

var numericRanges = map[string]featureRange{
	features.FeatContributionCount:   {0, 100, false},
	features.FeatTotalContributions:  {0, 5_000_000, true},
	features.FeatAvgContribution:     {0, 100_000, true},
	features.FeatRecentContributions: {0, 1_000_000, true},
	features.FeatPriorContributions:  {0, 1_000_000, true},
	features.FeatConsistency:         {0, 1, false},
	features.FeatMissedContributions: {0, 24, false},
	features.FeatGrowthTrend:         {-1, 1, false},
	features.FeatTotalLoans:          {0, 20, false},
	features.FeatCompletedLoans:      {0, 20, false},
	features.FeatActiveLoans:         {0, 10, false},
	features.FeatDefaultedLoans:      {0, 10, false},
	features.FeatTotalBorrowed:       {0, 5_000_000, true},
	features.FeatTotalRepaid:         {0, 5_000_000, true},
	features.FeatOutstandingBalance:  {0, 5_000_000, true},
	features.FeatRepaymentDiscipline: {0, 1, false},
	features.FeatOnTimePayments:      {0, 100, false},
	features.FeatLatePayments:        {0, 100, false},
	features.FeatEarlyPayments:       {0, 100, false},
	features.FeatDefaultRate:         {0, 1, false},
	features.FeatAvgRepaymentSpeed:   {0, 3, false},
	features.FeatTotalSavings:        {0, 5_000_000, true},
	features.FeatAvgMonthlySavings:   {0, 500_000, true},
	features.FeatWithdrawalCount:     {0, 50, false},
	features.FeatWithdrawalAmount:    {0, 5_000_000, true},
	features.FeatBalanceStability:    {0, 1, false},
	features.FeatSavingsGrowthRate:   {-1, 2, false},
	features.FeatMeetingsHeld:        {0, 100, false},
	features.FeatMeetingsAttended:    {0, 100, false},
	features.FeatAttendanceRate:      {0, 1, false},
	features.FeatTotalFines:          {0, 20, false},
	features.FeatPaidFines:           {0, 20, false},
	features.FeatUnpaidFines:         {0, 20, false},
	features.FeatUnpaidFineAmount:    {0, 100_000, true},
	features.FeatFineComplianceRate:  {0, 1, false},
	features.FeatParticipationScore:  {0, 1, false},
	features.FeatHasOccupation:       {0, 1, false},
	features.FeatHasNationalID:       {0, 1, false},
	features.FeatHasAddress:          {0, 1, false},
	features.FeatAccountActive:       {0, 1, false},
	features.FeatMembershipMonths:    {0, 120, false},
}

// One-hot columns for the two categorical features. The closed value sets
// live in the features package; anything outside them encodes as all zeros.
var frequencyValues = []string{
	features.FrequencyWeekly,
	features.FrequencyMonthly,
	features.FrequencyIrregular,
}

var engagementValues = []string{
	features.EngagementHigh,
	features.EngagementMedium,
	features.EngagementLow,
}

func oneHotKey(feature, value string) string {
	return feature + "_" + value
}

// FeatureNames returns the full ordered column list: numeric features first,
// then the one-hot encodings.
func FeatureNames() []string {
	names := make([]string, 0, len(numericOrder)+len(frequencyValues)+len(engagementValues))
	names = append(names, numericOrder...)
	for _, v := range frequencyValues {
		names = append(names, oneHotKey("contributionFrequency", v))
	}
	for _, v := range engagementValues {
		names = append(names, oneHotKey("engagementLevel", v))
	}
	return names
}

func (r featureRange) scale(x float64) float64 {
	if r.Log {
		span := math.Log1p(r.Max)
		if span == 0 {
			return 0
		}
		if x < 0 {
			x = 0
		}
		return clamp01(math.Log1p(x) / span)
	}
	span := r.Max - r.Min
	if span == 0 {
		return 0
	}
	return clamp01((x - r.Min) / span)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Normalize maps a raw vector into the named [0,1] inputs the model
// consumes. Missing keys normalize to zero, never to an error.
func Normalize(vec *features.Vector) map[string]float64 {
	out := make(map[string]float64, len(numericOrder)+6)
	for _, name := range numericOrder {
		out[name] = numericRanges[name].scale(vec.Get(name))
	}
	for _, v := range frequencyValues {
		if vec != nil && vec.ContributionFrequency == v {
			out[oneHotKey("contributionFrequency", v)] = 1
		} else {
			out[oneHotKey("contributionFrequency", v)] = 0
		}
	}
	for _, v := range engagementValues {
		if vec != nil && vec.EngagementLevel == v {
			out[oneHotKey("engagementLevel", v)] = 1
		} else {
			out[oneHotKey("engagementLevel", v)] = 0
		}
	}
	return out
}
